package lateral

// ButtonTracker latches the last sample of one button and reports edges.
type ButtonTracker struct {
	last ButtonState
}

// NewButtonTracker returns a tracker that has not seen the button yet.
func NewButtonTracker() ButtonTracker {
	return ButtonTracker{last: ButtonUnknown}
}

// Observe records sample and returns the edge relative to the previous one.
// Unknown counts as not pressed, so Unknown -> Pressed is a rising edge.
func (t *ButtonTracker) Observe(sample ButtonState) Edge {
	edge := edgeOf(sample == ButtonPressed, t.last == ButtonPressed)
	t.last = sample
	return edge
}

// Last returns the most recent sample.
func (t *ButtonTracker) Last() ButtonState {
	return t.last
}

// Reset forgets the button.
func (t *ButtonTracker) Reset() {
	t.last = ButtonUnknown
}
