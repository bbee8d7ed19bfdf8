package utils

import (
	"fmt"
	"math"

	"go.einride.tech/can"
)

// EncodeFrame packs physical signal values into the payload of frameName.
// Missing signals take their default value.
func (m *CANMap) EncodeFrame(frameName string, values map[string]float64) ([]byte, uint32, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return nil, 0, err
	}
	if fd.DLC <= 0 || fd.DLC > 8 {
		return nil, 0, fmt.Errorf("frame %s has invalid DLC %d", fd.Name, fd.DLC)
	}
	for name := range values {
		if _, err := fd.Signal(name); err != nil {
			return nil, 0, err
		}
	}

	var payload uint64
	for _, s := range fd.Signals {
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		v = clamp(v, s.Min, s.Max)

		raw := int64(math.Round((v - s.Offset) / s.Factor))
		raw = clampRaw(raw, s.BitLength, s.Signed)
		payload = setBits(payload, s.StartBit, s.BitLength, toUnsigned(raw, s.BitLength))
	}

	return unpackPayload(payload, fd.DLC), fd.ID, nil
}

// EncodeEinrideFrame is EncodeFrame producing a can.Frame ready to transmit.
func (m *CANMap) EncodeEinrideFrame(frameName string, values map[string]float64) (can.Frame, error) {
	payload, id, err := m.EncodeFrame(frameName, values)
	if err != nil {
		return can.Frame{}, err
	}

	var f can.Frame
	f.ID = id
	f.Length = uint8(len(payload))
	copy(f.Data[:], payload)

	return f, nil
}

// DecodeFrame unpacks every signal of the frame with the given id.
func (m *CANMap) DecodeFrame(frameID uint32, data []byte) (map[string]float64, error) {
	fd, err := m.FrameByID(frameID)
	if err != nil {
		return nil, err
	}
	if len(data) < fd.DLC {
		return nil, fmt.Errorf("frame 0x%X expects DLC %d, got %d", frameID, fd.DLC, len(data))
	}

	payload := packPayload(data[:fd.DLC])
	out := make(map[string]float64, len(fd.Signals))
	for i := range fd.Signals {
		out[fd.Signals[i].Name] = decodeSignal(&fd.Signals[i], payload)
	}
	return out, nil
}

// DecodeSignal returns the physical value of one signal of f. It does not
// allocate, so it can sit on the per-frame path.
func DecodeSignal(sig *SignalDef, f can.Frame) float64 {
	n := int(f.Length)
	if n > len(f.Data) {
		n = len(f.Data)
	}
	return decodeSignal(sig, packPayload(f.Data[:n]))
}

func decodeSignal(sig *SignalDef, payload uint64) float64 {
	u := getBits(payload, sig.StartBit, sig.BitLength)
	raw := toSigned(u, sig.BitLength, sig.Signed)
	return float64(raw)*sig.Factor + sig.Offset
}
