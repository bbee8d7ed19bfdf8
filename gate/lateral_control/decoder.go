package lateral

import "go.einride.tech/can"

// BoolSignalFunc decodes one boolean input from a frame. ok is false when
// the frame does not carry the input.
type BoolSignalFunc func(f can.Frame) (value bool, ok bool)

// Decoder maps raw vehicle frames to MADS inputs. Every field is optional:
// a nil field means the vehicle does not provide that input and the
// matching path of the state machine is never driven.
type Decoder struct {
	Name string

	Speed            BoolSignalFunc
	LkasButton       BoolSignalFunc
	MainCruiseButton BoolSignalFunc
	AccMain          BoolSignalFunc
	Brake            BoolSignalFunc
	ControlsAllowed  BoolSignalFunc
}

// Class derives the vehicle class: a vehicle that broadcasts its
// main-cruise state is PCM.
func (d Decoder) Class() VehicleClass {
	if d.AccMain != nil {
		return PCM
	}
	return NonPCM
}

// Capabilities lists which inputs the decoder provides.
func (d Decoder) Capabilities() Events {
	var e Events
	if d.Speed != nil {
		e |= EventSpeed
	}
	if d.LkasButton != nil {
		e |= EventLkasButton
	}
	if d.MainCruiseButton != nil {
		e |= EventMainCruiseButton
	}
	if d.AccMain != nil {
		e |= EventAccMain
	}
	if d.Brake != nil {
		e |= EventBrake
	}
	if d.ControlsAllowed != nil {
		e |= EventControlsAllowed
	}
	return e
}

// Events is a bitset of the inputs decoded from one frame.
type Events uint8

const (
	EventSpeed Events = 1 << iota
	EventLkasButton
	EventMainCruiseButton
	EventAccMain
	EventBrake
	EventControlsAllowed
)

func (e Events) Has(f Events) bool {
	return e&f == f
}

// apply decodes f and feeds every input it carries into s. The order is
// fixed: main-cruise level, controls_allowed, buttons, brake, then the tick.
// A button edge therefore applies after a controls_allowed edge seen in the
// same frame.
func (d Decoder) apply(f can.Frame, s *State) Events {
	var e Events
	if v, ok := decode(d.AccMain, f); ok {
		e |= EventAccMain
		s.OnAccMainState(v)
	}
	if v, ok := decode(d.ControlsAllowed, f); ok {
		e |= EventControlsAllowed
		s.OnControlsAllowed(v)
	}
	if v, ok := decode(d.MainCruiseButton, f); ok {
		e |= EventMainCruiseButton
		s.OnMainCruiseButton(v)
	}
	if v, ok := decode(d.LkasButton, f); ok {
		e |= EventLkasButton
		s.OnLkasButton(v)
	}
	if v, ok := decode(d.Brake, f); ok {
		e |= EventBrake
		s.OnBrake(v)
	}
	if _, ok := decode(d.Speed, f); ok {
		e |= EventSpeed
	}
	s.OnSpeedTick()
	return e
}

func decode(fn BoolSignalFunc, f can.Frame) (bool, bool) {
	if fn == nil {
		return false, false
	}
	return fn(f)
}
