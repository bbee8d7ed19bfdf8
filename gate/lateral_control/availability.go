package lateral

import "strings"

// AvailabilityFlags is a bitset of buttons seen on the bus during the
// current configuration epoch.
type AvailabilityFlags uint8

const (
	MainButtonAvailable AvailabilityFlags = 1 << iota
	LkasButtonAvailable
)

// Has reports whether every bit of f is set.
func (a AvailabilityFlags) Has(f AvailabilityFlags) bool {
	return a&f == f
}

func (a AvailabilityFlags) String() string {
	if a == 0 {
		return "none"
	}
	var parts []string
	if a.Has(MainButtonAvailable) {
		parts = append(parts, "main")
	}
	if a.Has(LkasButtonAvailable) {
		parts = append(parts, "lkas")
	}
	return strings.Join(parts, "|")
}

func flagFor(k ButtonKind) AvailabilityFlags {
	if k == MainButton {
		return MainButtonAvailable
	}
	return LkasButtonAvailable
}

// Availability records which optional buttons have been observed. Flags
// only ever get set; Reset is the sole way to clear them.
type Availability struct {
	flags AvailabilityFlags
}

// MarkSeen sets the flag for k.
func (a *Availability) MarkSeen(k ButtonKind) {
	a.flags |= flagFor(k)
}

// Observe marks k as seen for any sample other than ButtonUnknown.
func (a *Availability) Observe(k ButtonKind, sample ButtonState) {
	if sample != ButtonUnknown {
		a.MarkSeen(k)
	}
}

func (a *Availability) Flags() AvailabilityFlags {
	return a.flags
}

func (a *Availability) Reset() {
	a.flags = 0
}
