package lateral

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.einride.tech/can"

	"mads-gate/utils"
)

const testCANMap = `direction,frame_id,frame_name,cycle_ms,dlc,signal_name,start_bit,bit_length,endianness,signed,factor,offset,min,max,default,unit,comment
rx,0x100,WHEEL_SPEED,10,8,speed_kph,0,16,little,false,0.01,0,0,655.35,0,kph,
rx,0x110,LKAS_BUTTON,20,8,lkas_pressed,0,1,little,false,1,0,0,1,0,,
rx,0x111,CRUISE_BUTTONS,20,8,buttons,0,3,little,false,1,0,0,7,0,,1=main 2=set 3=resume
rx,0x120,CRUISE_STATE,20,8,main_on,0,1,little,false,1,0,0,1,0,,
rx,0x120,CRUISE_STATE,20,8,cruise_engaged,1,1,little,false,1,0,0,1,0,,
rx,0x120,CRUISE_STATE,20,8,lkas_button,2,1,little,false,1,0,0,1,0,,
rx,0x130,BRAKE,10,8,brake_pressed,0,1,little,false,1,0,0,1,0,,
tx,0x200,LKAS_CMD,10,8,steer_torque,0,16,little,true,1,0,-2048,2047,0,Nm,
tx,0x200,LKAS_CMD,10,8,steer_req,16,1,little,false,1,0,0,1,0,,
`

func loadTestMap(t *testing.T) *utils.CANMap {
	t.Helper()
	m, err := utils.ParseCANMap(strings.NewReader(testCANMap))
	require.NoError(t, err)
	return m
}

func pcmBindings() Bindings {
	return Bindings{
		Speed:      &SignalBinding{Frame: "WHEEL_SPEED", Signal: "speed_kph", Threshold: ptr(0.0)},
		LkasButton: &SignalBinding{Frame: "LKAS_BUTTON", Signal: "lkas_pressed"},
		AccMain:    &SignalBinding{Frame: "CRUISE_STATE", Signal: "main_on"},
		Brake:      &SignalBinding{Frame: "BRAKE", Signal: "brake_pressed"},
	}
}

func nonPCMBindings() Bindings {
	return Bindings{
		Speed:            &SignalBinding{Frame: "WHEEL_SPEED", Signal: "speed_kph", Threshold: ptr(0.0)},
		LkasButton:       &SignalBinding{Frame: "LKAS_BUTTON", Signal: "lkas_pressed"},
		MainCruiseButton: &SignalBinding{Frame: "CRUISE_BUTTONS", Signal: "buttons", Equals: []float64{1}},
		Brake:            &SignalBinding{Frame: "BRAKE", Signal: "brake_pressed"},
	}
}

func ptr[T any](v T) *T { return &v }

// harness drives a Monitor with encoded frames, the way a car port would.
type harness struct {
	t    *testing.T
	name string
	cmap *utils.CANMap
	m    *Monitor
}

func newHarness(t *testing.T, name string, b Bindings) *harness {
	t.Helper()
	cmap := loadTestMap(t)
	dec, err := NewSignalDecoder(name, cmap, b)
	require.NoError(t, err)
	return &harness{t: t, name: name, cmap: cmap, m: NewMonitor(dec, Config{})}
}

func harnesses(t *testing.T) []*harness {
	return []*harness{
		newHarness(t, "pcm", pcmBindings()),
		newHarness(t, "non_pcm", nonPCMBindings()),
	}
}

// state gives direct access for injection; tests are single threaded.
func (h *harness) state() *State { return h.m.state }

func (h *harness) pcm() bool { return h.m.Decoder().Class() == PCM }

func (h *harness) frame(name string, values map[string]float64) can.Frame {
	h.t.Helper()
	f, err := h.cmap.EncodeEinrideFrame(name, values)
	require.NoError(h.t, err)
	return f
}

func (h *harness) rx(f can.Frame) {
	h.t.Helper()
	h.m.HandleFrame(f)
	checkInvariants(h.t, h.m)
}

func (h *harness) speedMsg() can.Frame {
	return h.frame("WHEEL_SPEED", map[string]float64{"speed_kph": 0})
}

func (h *harness) lkasButtonMsg(pressed bool) can.Frame {
	return h.frame("LKAS_BUTTON", map[string]float64{"lkas_pressed": b2f(pressed)})
}

func (h *harness) mainButtonMsg(pressed bool) can.Frame {
	v := 0.0
	if pressed {
		v = 1
	}
	return h.frame("CRUISE_BUTTONS", map[string]float64{"buttons": v})
}

func (h *harness) accStateMsg(on bool) can.Frame {
	return h.frame("CRUISE_STATE", map[string]float64{"main_on": b2f(on)})
}

func (h *harness) brakeMsg(pressed bool) can.Frame {
	return h.frame("BRAKE", map[string]float64{"brake_pressed": b2f(pressed)})
}

func (h *harness) pressLkas() {
	h.rx(h.lkasButtonMsg(true))
	h.rx(h.lkasButtonMsg(false))
}

func (h *harness) pressMain() {
	h.rx(h.mainButtonMsg(true))
	h.rx(h.mainButtonMsg(false))
}

// cleanup mirrors a fresh epoch with MADS disabled.
func (h *harness) cleanup() {
	s := h.state()
	s.setLkasButtonSample(ButtonUnknown)
	s.setControlsAllowedLat(false)
	s.setControlsRequestedLat(false)
	s.setAccMainOn(false)
	h.m.Reconfigure(Config{})
}

func (h *harness) enableMads(enabled, disengageOnBrake bool) {
	h.m.Reconfigure(Config{MadsEnabled: enabled, DisengageLatOnBrake: disengageOnBrake})
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// checkInvariants asserts the properties that must hold after every update.
func checkInvariants(t *testing.T, m *Monitor) {
	t.Helper()
	snap := m.Snapshot()
	if snap.ControlsAllowed && !snap.Faulted {
		require.True(t, snap.LatActive, "controls_allowed must imply lat_active")
	}
	if !snap.Config.MadsEnabled {
		require.Equal(t, snap.ControlsAllowed && !snap.Faulted, snap.LatActive,
			"with MADS disabled lat_active follows controls_allowed")
	}
	if snap.Faulted {
		require.False(t, snap.LatActive, "a faulted monitor never permits steering")
	}
}
