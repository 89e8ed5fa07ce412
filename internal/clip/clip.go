package clip

// Clip is a decoded sound normalized to the engine's operating rate.
// Samples are interleaved float32 values in [-1, 1]. A Clip is never
// mutated after it has been handed to the Store.
type Clip struct {
	Name       string
	Samples    []float32
	Channels   int
	SampleRate int
}

// Frames returns the number of frames (samples per channel).
func (c *Clip) Frames() int {
	if c == nil || c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

// Duration returns the clip length in seconds.
func (c *Clip) Duration() float64 {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return float64(c.Frames()) / float64(c.SampleRate)
}
