package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const testCANMap = `direction,frame_id,frame_name,cycle_ms,dlc,signal_name,start_bit,bit_length,endianness,signed,factor,offset,min,max,default,unit,comment
vehicle,0x100,WHEEL_SPEED,10,8,speed_kph,0,16,little,false,0.01,0,0,655.35,0,kph,
vehicle,0x110,LKAS_BUTTON,20,8,lkas_pressed,0,1,little,false,1,0,0,1,0,,
vehicle,0x111,CRUISE_BUTTONS,20,8,buttons,0,3,little,false,1,0,0,7,0,,
vehicle,0x120,CRUISE_STATE,20,8,main_on,0,1,little,false,1,0,0,1,0,,
vehicle,0x120,CRUISE_STATE,20,8,cruise_engaged,1,1,little,false,1,0,0,1,0,,
vehicle,0x130,BRAKE,10,8,brake_pressed,0,1,little,false,1,0,0,1,0,,
adas,0x200,LKAS_CMD,10,8,steer_torque,0,16,little,true,1,0,-2048,2047,0,Nm,
adas,0x201,LFA_CMD,20,8,lfa_icon,0,2,little,false,1,0,0,3,0,,
adas,0x300,HUD,100,8,hud_speed,0,8,little,false,1,0,0,255,0,,
`

const pcmProfile = `name: test_pcm
can_map: can_map.csv
mads:
  mads_enabled: true
  disengage_lat_on_brake: true
signals:
  speed:
    frame: WHEEL_SPEED
    signal: speed_kph
    threshold: 0
  lkas_button:
    frame: LKAS_BUTTON
    signal: lkas_pressed
  acc_main:
    frame: CRUISE_STATE
    signal: main_on
  controls_allowed:
    frame: CRUISE_STATE
    signal: cruise_engaged
  brake:
    frame: BRAKE
    signal: brake_pressed
steering_frames: [LKAS_CMD, LFA_CMD]
lag_timeout_ms: 500
`

const nonPCMProfile = `name: test_non_pcm
can_map: can_map.csv
mads:
  mads_enabled: true
signals:
  lkas_button:
    frame: LKAS_BUTTON
    signal: lkas_pressed
  main_cruise_button:
    frame: CRUISE_BUTTONS
    signal: buttons
    equals: [1]
steering_frames: [LKAS_CMD]
`

// writeProfile lays out a profile and the test CAN map in a fresh directory
// and returns the profile path.
func writeProfile(t *testing.T, profile string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "can_map.csv"), []byte(testCANMap), 0o644))
	path := filepath.Join(dir, "profile.yaml")
	require.NoError(t, os.WriteFile(path, []byte(profile), 0o644))
	return path
}

func loadTestVehicle(t *testing.T, profile string) *Vehicle {
	t.Helper()
	v, err := LoadVehicle(writeProfile(t, profile))
	require.NoError(t, err)
	return v
}
