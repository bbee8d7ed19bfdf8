package lateral

// Direct state injection for test positioning. Button injection goes through
// the same trackers as decoded frames, so a rising edge injected here has the
// same effect as one decoded from the bus. Level injection only moves the
// level; the next OnSpeedTick applies it.

func (s *State) setLkasButtonSample(sample ButtonState) {
	s.observeLkas(sample)
}

func (s *State) setMainButtonSample(sample ButtonState) {
	s.observeMain(sample)
}

func (s *State) setAccMainOn(on bool) {
	s.accMainOn = on
}

func (s *State) setControlsAllowed(allowed bool) {
	s.controlsAllowed = allowed
}

func (s *State) setControlsAllowedLat(allowed bool) {
	s.controlsAllowedLat = allowed
}

func (s *State) setControlsRequestedLat(requested bool) {
	s.controlsRequestedLat = requested
}
