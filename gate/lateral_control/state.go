package lateral

// State is the lateral admission state machine (MADS). It decides whether
// steering commands may be forwarded, from button edges, main-cruise state,
// the external controls_allowed gate and brake input.
//
// State is not safe for concurrent use; Monitor wraps it with a single lock.
// Every method is O(1) and allocation free.
type State struct {
	cfg   Config
	class VehicleClass

	lkas  ButtonTracker
	main  ButtonTracker
	avail Availability

	controlsAllowed     bool
	controlsAllowedPrev bool

	controlsAllowedLat   bool
	controlsRequestedLat bool

	accMainOn       bool
	accMainApplied  bool
	accMainOnNonPCM bool

	braking         bool
	disengagedBrake bool

	reason     DisengageReason
	prevReason DisengageReason
}

// NewState returns a state machine for a vehicle of the given class with
// MADS disabled and lateral control not permitted.
func NewState(class VehicleClass) *State {
	s := &State{class: class}
	s.Reconfigure(Config{})
	return s
}

// Reconfigure replaces the configuration and starts a new epoch: both
// buttons return to unknown, the admission bits and availability flags are
// cleared. The external controls_allowed level and brake level are inputs,
// not epoch state, and are kept.
func (s *State) Reconfigure(cfg Config) {
	s.cfg = cfg

	s.lkas.Reset()
	s.main.Reset()
	s.avail.Reset()

	s.controlsAllowedLat = false
	s.controlsRequestedLat = false

	s.accMainOn = false
	s.accMainApplied = false
	s.accMainOnNonPCM = false

	s.disengagedBrake = false
	s.reason = DisengageNone
	s.prevReason = DisengageNone
}

// setClass changes the vehicle class. Callers follow it with Reconfigure so
// the class never changes within an epoch.
func (s *State) setClass(class VehicleClass) {
	s.class = class
}

// OnSpeedTick runs once per processed frame. It applies a main-cruise level
// change that has not been synced yet and re-checks the controls_allowed
// rising edge. Calling it again without new input changes nothing.
func (s *State) OnSpeedTick() {
	s.syncAccMain()
	s.checkControlsAllowed()
}

// OnLkasButton feeds a decoded LKAS/LFA button sample.
func (s *State) OnLkasButton(pressed bool) {
	s.observeLkas(ButtonStateFromBool(pressed))
}

// OnMainCruiseButton feeds a decoded main/cruise button sample. Only
// non-PCM vehicles toggle the virtual main-cruise state from it.
func (s *State) OnMainCruiseButton(pressed bool) {
	s.observeMain(ButtonStateFromBool(pressed))
}

// OnAccMainState feeds the PCM-reported main-cruise level. A change of
// level is applied at once: the driver request follows the level and, with
// MADS enabled, so does controls_allowed_lat. controls_requested_lat tracks
// the level even with MADS disabled, not mads_enabled AND acc_main_on;
// lat_active is unaffected since controls_allowed_lat still needs MADS.
func (s *State) OnAccMainState(on bool) {
	s.accMainOn = on
	s.syncAccMain()
}

// OnControlsAllowed feeds the external controls_allowed level. A rising
// edge with MADS enabled engages lateral control; a falling edge leaves
// controls_allowed_lat alone.
func (s *State) OnControlsAllowed(allowed bool) {
	s.controlsAllowed = allowed
	s.checkControlsAllowed()
}

// OnBrake feeds the brake pedal level. While pressed, and if configured,
// lateral control is dropped and cannot be engaged. Every pressed sample
// drops it, moving or not. Releasing the brake re-engages it when the brake
// dropped or held off an engagement and the driver still requests lateral
// assist.
func (s *State) OnBrake(pressed bool) {
	wasBraking := s.braking
	s.braking = pressed

	if pressed {
		if s.cfg.DisengageLatOnBrake {
			if s.controlsAllowedLat {
				s.disengagedBrake = true
			}
			s.controlsAllowedLat = false
			if s.reason != DisengageBrake {
				s.recordReason(DisengageBrake)
			}
		}
		return
	}

	if wasBraking {
		s.resumeAfterBrake()
	}
}

// ExitControls drops lateral control for reason. The reason is recorded
// only if lateral control was engaged.
func (s *State) ExitControls(reason DisengageReason) {
	if !s.controlsAllowedLat {
		return
	}
	s.controlsAllowedLat = false
	s.disengagedBrake = false
	s.recordReason(reason)
}

func (s *State) observeLkas(sample ButtonState) {
	s.avail.Observe(LkasButton, sample)
	if s.lkas.Observe(sample) != EdgeRising || !s.cfg.MadsEnabled {
		return
	}
	if s.controlsAllowedLat {
		s.ExitControls(DisengageButton)
	} else {
		s.engage()
	}
}

func (s *State) observeMain(sample ButtonState) {
	s.avail.Observe(MainButton, sample)
	if s.main.Observe(sample) != EdgeRising || s.class != NonPCM {
		return
	}
	s.accMainOnNonPCM = !s.accMainOnNonPCM
	s.controlsRequestedLat = s.accMainOnNonPCM
	if !s.cfg.MadsEnabled {
		return
	}
	if s.accMainOnNonPCM {
		s.engage()
	} else {
		s.ExitControls(DisengageAccMainOff)
	}
}

func (s *State) syncAccMain() {
	if edgeOf(s.accMainOn, s.accMainApplied) == EdgeNone {
		return
	}
	s.accMainApplied = s.accMainOn
	s.controlsRequestedLat = s.accMainOn
	if !s.cfg.MadsEnabled {
		return
	}
	if s.accMainOn {
		s.engage()
	} else {
		s.ExitControls(DisengageAccMainOff)
	}
}

func (s *State) checkControlsAllowed() {
	edge := edgeOf(s.controlsAllowed, s.controlsAllowedPrev)
	s.controlsAllowedPrev = s.controlsAllowed
	if edge == EdgeRising && s.cfg.MadsEnabled {
		s.engage()
	}
}

func (s *State) resumeAfterBrake() {
	if !s.disengagedBrake {
		return
	}
	s.disengagedBrake = false
	if s.cfg.MadsEnabled && s.cfg.DisengageLatOnBrake && s.controlsRequestedLat {
		s.engage()
	}
}

// engage turns lateral control on. While the brake is held with
// disengage_lat_on_brake the request is parked until release.
func (s *State) engage() {
	if s.controlsAllowedLat {
		return
	}
	if s.braking && s.cfg.DisengageLatOnBrake {
		s.disengagedBrake = true
		return
	}
	s.controlsAllowedLat = true
	s.disengagedBrake = false
	if s.reason != DisengageNone {
		s.recordReason(DisengageNone)
	}
}

func (s *State) recordReason(r DisengageReason) {
	s.prevReason = s.reason
	s.reason = r
}

// LatActive is the final steering permission: controls_allowed always
// implies it, otherwise it needs MADS enabled and controls_allowed_lat.
func (s *State) LatActive() bool {
	return s.controlsAllowed || (s.cfg.MadsEnabled && s.controlsAllowedLat)
}

func (s *State) Config() Config                       { return s.cfg }
func (s *State) Class() VehicleClass                  { return s.class }
func (s *State) MadsEnabled() bool                    { return s.cfg.MadsEnabled }
func (s *State) DisengageLatOnBrake() bool            { return s.cfg.DisengageLatOnBrake }
func (s *State) ControlsAllowed() bool                { return s.controlsAllowed }
func (s *State) ControlsAllowedLat() bool             { return s.controlsAllowedLat }
func (s *State) ControlsRequestedLat() bool           { return s.controlsRequestedLat }
func (s *State) AccMainOn() bool                      { return s.accMainOn }
func (s *State) AccMainOnNonPCM() bool                { return s.accMainOnNonPCM }
func (s *State) Braking() bool                        { return s.braking }
func (s *State) AvailabilityFlags() AvailabilityFlags { return s.avail.Flags() }
func (s *State) DisengageReason() DisengageReason     { return s.reason }
func (s *State) PreviousDisengageReason() DisengageReason {
	return s.prevReason
}
func (s *State) LkasButton() ButtonState { return s.lkas.Last() }
func (s *State) MainButton() ButtonState { return s.main.Last() }

// Snapshot is a copy of every output of the state machine.
type Snapshot struct {
	Config                  Config
	Class                   VehicleClass
	ControlsAllowed         bool
	ControlsAllowedLat      bool
	ControlsRequestedLat    bool
	AccMainOn               bool
	AccMainOnNonPCM         bool
	Braking                 bool
	LatActive               bool
	Availability            AvailabilityFlags
	DisengageReason         DisengageReason
	PreviousDisengageReason DisengageReason
	LkasButton              ButtonState
	MainButton              ButtonState
	Faulted                 bool
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Config:                  s.cfg,
		Class:                   s.class,
		ControlsAllowed:         s.controlsAllowed,
		ControlsAllowedLat:      s.controlsAllowedLat,
		ControlsRequestedLat:    s.controlsRequestedLat,
		AccMainOn:               s.accMainOn,
		AccMainOnNonPCM:         s.accMainOnNonPCM,
		Braking:                 s.braking,
		LatActive:               s.LatActive(),
		Availability:            s.avail.Flags(),
		DisengageReason:         s.reason,
		PreviousDisengageReason: s.prevReason,
		LkasButton:              s.lkas.Last(),
		MainButton:              s.main.Last(),
	}
}
