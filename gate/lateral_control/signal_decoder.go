package lateral

import (
	"fmt"

	"go.einride.tech/can"

	"mads-gate/utils"
)

// SignalBinding selects one signal of the CAN map and turns its physical
// value into a boolean. With Equals set the input is true when the value is
// one of Equals; otherwise it is true when the value is at least Threshold
// (1 when unset). Invert negates the result.
type SignalBinding struct {
	Frame     string    `yaml:"frame"`
	Signal    string    `yaml:"signal"`
	Threshold *float64  `yaml:"threshold,omitempty"`
	Equals    []float64 `yaml:"equals,omitempty"`
	Invert    bool      `yaml:"invert,omitempty"`
}

// Bindings lists the signal for each MADS input. A nil binding means the
// vehicle does not provide that input.
type Bindings struct {
	Speed            *SignalBinding `yaml:"speed,omitempty"`
	LkasButton       *SignalBinding `yaml:"lkas_button,omitempty"`
	MainCruiseButton *SignalBinding `yaml:"main_cruise_button,omitempty"`
	AccMain          *SignalBinding `yaml:"acc_main,omitempty"`
	Brake            *SignalBinding `yaml:"brake,omitempty"`
	ControlsAllowed  *SignalBinding `yaml:"controls_allowed,omitempty"`
}

// NewSignalDecoder builds a Decoder whose inputs are read from cmap. All
// name lookups happen here, so the returned functions do no map access and
// no allocation per frame.
func NewSignalDecoder(name string, cmap *utils.CANMap, b Bindings) (Decoder, error) {
	d := Decoder{Name: name}
	targets := []struct {
		input   string
		binding *SignalBinding
		dst     *BoolSignalFunc
	}{
		{"speed", b.Speed, &d.Speed},
		{"lkas_button", b.LkasButton, &d.LkasButton},
		{"main_cruise_button", b.MainCruiseButton, &d.MainCruiseButton},
		{"acc_main", b.AccMain, &d.AccMain},
		{"brake", b.Brake, &d.Brake},
		{"controls_allowed", b.ControlsAllowed, &d.ControlsAllowed},
	}
	for _, t := range targets {
		if t.binding == nil {
			continue
		}
		fn, err := bindSignal(cmap, *t.binding)
		if err != nil {
			return Decoder{}, fmt.Errorf("%s: %w", t.input, err)
		}
		*t.dst = fn
	}
	return d, nil
}

func bindSignal(cmap *utils.CANMap, b SignalBinding) (BoolSignalFunc, error) {
	fd, err := cmap.FrameByName(b.Frame)
	if err != nil {
		return nil, err
	}
	sig, err := fd.Signal(b.Signal)
	if err != nil {
		return nil, err
	}

	id := fd.ID
	threshold := 1.0
	if b.Threshold != nil {
		threshold = *b.Threshold
	}
	equals := append([]float64(nil), b.Equals...)
	invert := b.Invert

	return func(f can.Frame) (bool, bool) {
		if f.ID != id || f.IsRemote {
			return false, false
		}
		v := utils.DecodeSignal(sig, f)
		var on bool
		if len(equals) > 0 {
			for _, e := range equals {
				if v == e {
					on = true
					break
				}
			}
		} else {
			on = v >= threshold
		}
		return on != invert, true
	}, nil
}
