package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const header = "direction,frame_id,frame_name,cycle_ms,dlc,signal_name,start_bit,bit_length,endianness,signed,factor,offset,min,max,default,unit,comment\n"

const sampleMap = header + `# vehicle bus
vehicle,0x120,CRUISE_STATE,20,8,cruise_engaged,1,1,little,false,1,0,0,1,0,,
vehicle,0x120,CRUISE_STATE,20,8,main_on,0,1,little,false,1,0,0,1,0,,
vehicle,256,WHEEL_SPEED,10,8,speed_kph,0,16,little,false,0.01,0,0,655.35,0,kph,
adas,0x200,LKAS_CMD,10,4,steer_torque,0,16,little,true,1,0,-2048,2047,0,Nm,
adas,0x200,LKAS_CMD,10,4,steer_req,16,1,little,false,1,0,0,1,0,,
`

func TestParseCANMap(t *testing.T) {
	m, err := ParseCANMap(strings.NewReader(sampleMap))
	require.NoError(t, err)

	assert.Equal(t, []string{"CRUISE_STATE", "LKAS_CMD", "WHEEL_SPEED"}, m.FrameNames())

	fd, err := m.FrameByID(0x120)
	require.NoError(t, err)
	assert.Equal(t, "CRUISE_STATE", fd.Name)
	assert.Equal(t, "vehicle", fd.Direction)
	assert.Equal(t, 20, fd.CycleMS)
	require.Len(t, fd.Signals, 2)
	assert.Equal(t, "main_on", fd.Signals[0].Name, "signals are sorted by start bit")

	fd, err = m.FrameByName("WHEEL_SPEED")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x100), fd.ID, "decimal ids are accepted")
	sig, err := fd.Signal("speed_kph")
	require.NoError(t, err)
	assert.Equal(t, 0.01, sig.Factor)
	assert.Equal(t, "kph", sig.Unit)

	fd, err = m.FrameByName("LKAS_CMD")
	require.NoError(t, err)
	assert.Equal(t, 4, fd.DLC)
	assert.True(t, fd.Signals[0].Signed)
}

func TestCANMapLookupErrors(t *testing.T) {
	m, err := ParseCANMap(strings.NewReader(sampleMap))
	require.NoError(t, err)

	_, err = m.FrameByName("NOPE")
	assert.ErrorIs(t, err, ErrUnknownFrame)
	_, err = m.FrameByID(0x7FF)
	assert.ErrorIs(t, err, ErrUnknownFrame)

	fd, _ := m.FrameByName("CRUISE_STATE")
	_, err = fd.Signal("nope")
	assert.ErrorIs(t, err, ErrUnknownSignal)
}

func TestParseCANMapRejects(t *testing.T) {
	tests := []struct {
		name string
		rows string
		want string
	}{
		{"bad id", "vehicle,0xZZ,A,10,8,s,0,1,little,false,1,0,0,1,0,,\n", "invalid frame_id"},
		{"big endian", "vehicle,0x1,A,10,8,s,0,1,big,false,1,0,0,1,0,,\n", "endianness"},
		{"zero bits", "vehicle,0x1,A,10,8,s,0,0,little,false,1,0,0,1,0,,\n", "bit_length"},
		{"bad dlc", "vehicle,0x1,A,10,9,s,0,1,little,false,1,0,0,1,0,,\n", "invalid dlc"},
		{"outside dlc", "vehicle,0x1,A,10,1,s,4,8,little,false,1,0,0,1,0,,\n", "outside dlc"},
		{"zero factor", "vehicle,0x1,A,10,8,s,0,1,little,false,0,0,0,1,0,,\n", "factor"},
		{"inconsistent dlc", "vehicle,0x1,A,10,8,s,0,1,little,false,1,0,0,1,0,,\nvehicle,0x1,A,10,4,t,1,1,little,false,1,0,0,1,0,,\n", "inconsistent DLC"},
		{"duplicate name", "vehicle,0x1,A,10,8,s,0,1,little,false,1,0,0,1,0,,\nvehicle,0x2,A,10,8,t,0,1,little,false,1,0,0,1,0,,\n", "frame name A"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCANMap(strings.NewReader(header + tt.rows))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := ParseCANMap(strings.NewReader("frame_id,frame_name\n"))
	assert.ErrorContains(t, err, "missing required column")
}

func TestLoadCANMap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "can_map.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleMap), 0o644))

	m, err := LoadCANMap(path)
	require.NoError(t, err)
	assert.Len(t, m.ByID, 3)

	_, err = LoadCANMap(filepath.Join(t.TempDir(), "missing.csv"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "TRUE", "1", "yes"} {
		assert.True(t, parseBool(s), s)
	}
	for _, s := range []string{"false", "0", "", "no"} {
		assert.False(t, parseBool(s), s)
	}
}
