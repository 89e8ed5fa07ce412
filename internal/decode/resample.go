package decode

import "math"

// cutoffFraction places the anti-alias cutoff just below the target
// Nyquist frequency.
const cutoffFraction = 0.9

// Resample converts interleaved samples from srcRate to dstRate using
// Catmull-Rom cubic interpolation. The channel count is preserved and the
// output has round(frames * dstRate / srcRate) frames. When the rates
// match, in is returned unchanged.
func Resample(in []float32, channels, srcRate, dstRate int) []float32 {
	if channels <= 0 || srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return in
	}
	inFrames := len(in) / channels
	if inFrames == 0 {
		return nil
	}

	outFrames := int(math.Round(float64(inFrames) * float64(dstRate) / float64(srcRate)))
	ratio := float64(srcRate) / float64(dstRate)

	src := in
	if ratio > 1 {
		src = lowPass(in, channels, lowPassAlpha(srcRate, dstRate))
	}

	at := func(frame, ch int) float32 {
		if frame < 0 {
			frame = 0
		} else if frame >= inFrames {
			frame = inFrames - 1
		}
		return src[frame*channels+ch]
	}

	out := make([]float32, outFrames*channels)
	for f := range outFrames {
		pos := float64(f) * ratio
		i := int(pos)
		x := float32(pos - float64(i))
		for c := range channels {
			out[f*channels+c] = cubicInterpolate(at(i-1, c), at(i, c), at(i+1, c), at(i+2, c), x)
		}
	}
	return out
}

// lowPassAlpha is the one-pole smoothing coefficient for a cutoff at
// cutoffFraction of the target Nyquist frequency. It approaches 1 (no
// filtering) as the rates converge.
func lowPassAlpha(srcRate, dstRate int) float32 {
	fc := cutoffFraction * float64(dstRate) / 2
	return float32(1 - math.Exp(-2*math.Pi*fc/float64(srcRate)))
}

// lowPass runs a one-pole low-pass filter over each channel, seeded with
// the first frame to avoid a start-up transient.
func lowPass(in []float32, channels int, alpha float32) []float32 {
	out := make([]float32, len(in))
	state := make([]float32, channels)
	copy(state, in[:channels])
	for i, v := range in {
		c := i % channels
		state[c] = alpha*v + (1-alpha)*state[c]
		out[i] = state[c]
	}
	return out
}

// cubicInterpolate evaluates the Catmull-Rom spline through y0..y3 at x,
// where x in [0, 1] is the position between y1 and y2.
func cubicInterpolate(y0, y1, y2, y3, x float32) float32 {
	a0 := -0.5*y0 + 1.5*y1 - 1.5*y2 + 0.5*y3
	a1 := y0 - 2.5*y1 + 2*y2 - 0.5*y3
	a2 := -0.5*y0 + 0.5*y2
	a3 := y1
	return a0*x*x*x + a1*x*x + a2*x + a3
}
