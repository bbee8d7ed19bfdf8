package lateral

// ButtonState is the last sampled value of a physical button.
// ButtonUnknown means no message carrying the button was ever observed.
type ButtonState int8

const (
	ButtonUnknown  ButtonState = -1
	ButtonReleased ButtonState = 0
	ButtonPressed  ButtonState = 1
)

func (b ButtonState) String() string {
	switch b {
	case ButtonUnknown:
		return "unknown"
	case ButtonReleased:
		return "released"
	case ButtonPressed:
		return "pressed"
	default:
		return "invalid"
	}
}

// ButtonStateFromBool maps a decoded boolean to a sampled button state.
func ButtonStateFromBool(pressed bool) ButtonState {
	if pressed {
		return ButtonPressed
	}
	return ButtonReleased
}

// Edge is the transition reported by a tracker for one observation.
type Edge uint8

const (
	EdgeNone Edge = iota
	EdgeRising
	EdgeFalling
)

func (e Edge) String() string {
	switch e {
	case EdgeRising:
		return "rising"
	case EdgeFalling:
		return "falling"
	default:
		return "none"
	}
}

// edgeOf compares two boolean levels.
func edgeOf(current, previous bool) Edge {
	switch {
	case current && !previous:
		return EdgeRising
	case !current && previous:
		return EdgeFalling
	default:
		return EdgeNone
	}
}

// DisengageReason records why lateral control was last dropped.
type DisengageReason uint8

const (
	DisengageNone DisengageReason = iota
	DisengageBrake
	DisengageLag
	DisengageButton
	DisengageAccMainOff
)

func (r DisengageReason) String() string {
	switch r {
	case DisengageNone:
		return "none"
	case DisengageBrake:
		return "brake"
	case DisengageLag:
		return "lag"
	case DisengageButton:
		return "button"
	case DisengageAccMainOff:
		return "acc_main_off"
	default:
		return "unknown"
	}
}

// ButtonKind identifies one of the optional buttons tracked for availability.
type ButtonKind uint8

const (
	MainButton ButtonKind = iota
	LkasButton
)

func (k ButtonKind) String() string {
	if k == MainButton {
		return "main"
	}
	return "lkas"
}

// VehicleClass tells whether the car broadcasts its main-cruise state (PCM)
// or the monitor has to derive it from main button presses.
type VehicleClass uint8

const (
	NonPCM VehicleClass = iota
	PCM
)

func (c VehicleClass) String() string {
	if c == PCM {
		return "pcm"
	}
	return "non_pcm"
}
