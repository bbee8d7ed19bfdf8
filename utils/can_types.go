package utils

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrUnknownFrame is returned when a frame name or id is not in the map.
	ErrUnknownFrame = errors.New("unknown frame")
	// ErrUnknownSignal is returned when a frame has no signal of that name.
	ErrUnknownSignal = errors.New("unknown signal")
)

type SignalDef struct {
	Name       string
	StartBit   int
	BitLength  int
	Signed     bool
	Factor     float64
	Offset     float64
	Min        float64
	Max        float64
	Default    float64
	Unit       string
	Comment    string
	Endianness string // only "little" supported
}

// FrameDef describes one CAN message and its signals, sorted by start bit.
type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction string
	CycleMS   int
	Signals   []SignalDef
}

// Signal returns the signal definition called name.
func (fd *FrameDef) Signal(name string) (*SignalDef, error) {
	for i := range fd.Signals {
		if fd.Signals[i].Name == name {
			return &fd.Signals[i], nil
		}
	}
	return nil, fmt.Errorf("frame %s: %w %q", fd.Name, ErrUnknownSignal, name)
}

// CANMap indexes the frames of one vehicle bus by id and by name.
type CANMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

func (m *CANMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
