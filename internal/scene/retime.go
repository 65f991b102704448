package scene

import "errors"

var ErrInvalidFPS = errors.New("frame rate must be positive")

// RetimeFrame converts a frame number from one frame rate to another by
// adding one half and truncating toward zero. from must be positive.
func RetimeFrame(frame, from, to int) int {
	// trunc(frame*to/from + 1/2) in exact integer arithmetic.
	n := 2*int64(frame)*int64(to) + int64(from)
	return int(n / (2 * int64(from)))
}

// Retime changes the manifest's frame rate and rescales its frame range
// and current frame so the animation keeps its duration. The step is kept.
func (m *Manifest) Retime(fps int) error {
	if fps <= 0 || m.FPS <= 0 {
		return ErrInvalidFPS
	}
	old := m.FPS
	m.Frames.Start = RetimeFrame(m.Frames.Start, old, fps)
	m.Frames.End = RetimeFrame(m.Frames.End, old, fps)
	m.Current = RetimeFrame(m.Current, old, fps)
	m.FPS = fps
	return nil
}
