package lateral

import (
	"fmt"
	"sync"

	"go.einride.tech/can"
)

// Transition is reported to the Observer when a frame or call changed
// lat_active, the disengage reason or the fault latch.
type Transition struct {
	Before  Snapshot
	After   Snapshot
	Cause   string
	FrameID uint32 // set when Cause is "frame"
}

// Observer receives transitions. It runs after the lock is released and
// must not block.
type Observer func(Transition)

// Monitor is the frame handling entry point. It owns the only State and
// holds one exclusive lock for the whole processing of a frame, so readers
// never see a half-updated state.
//
// A panic raised while processing (a broken decoder, for instance) latches
// the monitor faulted: LatActive reports false until the next Activate or
// Reconfigure.
type Monitor struct {
	mu       sync.Mutex
	state    *State
	dec      Decoder
	faulted  bool
	fault    string
	observer Observer
}

func NewMonitor(dec Decoder, cfg Config) *Monitor {
	s := NewState(dec.Class())
	s.Reconfigure(cfg)
	return &Monitor{state: s, dec: dec}
}

// SetObserver installs fn, replacing any previous observer.
func (m *Monitor) SetObserver(fn Observer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// HandleFrame decodes f and applies every input it carries, followed by the
// per-frame tick. It returns the inputs found in the frame.
func (m *Monitor) HandleFrame(f can.Frame) Events {
	var events Events
	m.update("frame", f.ID, func(s *State) {
		events = m.dec.apply(f, s)
	})
	return events
}

// SetControlsAllowed feeds the controls_allowed level from the longitudinal
// monitor.
func (m *Monitor) SetControlsAllowed(allowed bool) {
	m.update("controls_allowed", 0, func(s *State) { s.OnControlsAllowed(allowed) })
}

// ExitControls drops lateral control for reason.
func (m *Monitor) ExitControls(reason DisengageReason) {
	m.update("exit_controls", 0, func(s *State) { s.ExitControls(reason) })
}

// Reconfigure starts a new epoch with cfg and clears the fault latch.
func (m *Monitor) Reconfigure(cfg Config) {
	m.update("reconfigure", 0, func(s *State) {
		s.Reconfigure(cfg)
		m.faulted = false
		m.fault = ""
	})
}

// Activate swaps in a new vehicle decoder and configuration atomically.
func (m *Monitor) Activate(dec Decoder, cfg Config) {
	m.update("activate", 0, func(s *State) {
		m.dec = dec
		s.setClass(dec.Class())
		s.Reconfigure(cfg)
		m.faulted = false
		m.fault = ""
	})
}

func (m *Monitor) update(cause string, frameID uint32, fn func(s *State)) {
	m.mu.Lock()
	before := m.snapshotLocked()
	m.apply(cause, frameID, fn)
	after := m.snapshotLocked()
	observer := m.observer
	m.mu.Unlock()

	if observer != nil && changed(before, after) {
		observer(Transition{Before: before, After: after, Cause: cause, FrameID: frameID})
	}
}

func (m *Monitor) apply(cause string, frameID uint32, fn func(s *State)) {
	defer func() {
		if r := recover(); r != nil {
			m.faulted = true
			if cause == "frame" {
				cause = fmt.Sprintf("frame 0x%X", frameID)
			}
			m.fault = fmt.Sprintf("%s: %v", cause, r)
		}
	}()
	fn(m.state)
}

func changed(a, b Snapshot) bool {
	return a.LatActive != b.LatActive ||
		a.ControlsAllowedLat != b.ControlsAllowedLat ||
		a.DisengageReason != b.DisengageReason ||
		a.Faulted != b.Faulted ||
		a.Config != b.Config
}

// LatActive must be checked immediately before forwarding a steering
// command.
func (m *Monitor) LatActive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.faulted && m.state.LatActive()
}

func (m *Monitor) DisengageReason() DisengageReason {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.DisengageReason()
}

func (m *Monitor) AvailabilityFlags() AvailabilityFlags {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.AvailabilityFlags()
}

// Faulted reports whether processing panicked, and why.
func (m *Monitor) Faulted() (bool, string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.faulted, m.fault
}

// Decoder returns the active decoder.
func (m *Monitor) Decoder() Decoder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dec
}

// Snapshot returns every output taken under one lock.
func (m *Monitor) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Monitor) snapshotLocked() Snapshot {
	s := m.state.Snapshot()
	if m.faulted {
		s.Faulted = true
		s.LatActive = false
	}
	return s
}
