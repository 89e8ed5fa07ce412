package decode

import (
	"math"
	"testing"
)

func TestResampleLength(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		frames   int
		channels int
		src, dst int
		want     int
	}{
		{"44.1k to 48k stereo", 88200, 2, 44100, 48000, 96000},
		{"22.05k to 48k mono", 22050, 1, 22050, 48000, 48000},
		{"96k to 48k mono", 9600, 1, 96000, 48000, 4800},
		{"8k to 48k stereo", 80, 2, 8000, 48000, 480},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in := make([]float32, tt.frames*tt.channels)
			out := Resample(in, tt.channels, tt.src, tt.dst)
			if got := len(out) / tt.channels; got != tt.want {
				t.Errorf("Resample() frames = %d, want %d", got, tt.want)
			}
			if len(out)%tt.channels != 0 {
				t.Errorf("Resample() returned a partial frame")
			}
		})
	}
}

func TestResampleSameRateIsIdentity(t *testing.T) {
	t.Parallel()

	in := []float32{0.1, 0.2, 0.3}
	out := Resample(in, 1, 48000, 48000)
	if &out[0] != &in[0] {
		t.Error("Resample() at equal rates should return the input slice")
	}
}

func TestResampleConstantSignal(t *testing.T) {
	t.Parallel()

	in := make([]float32, 441*2)
	for i := range in {
		if i%2 == 0 {
			in[i] = 0.25
		} else {
			in[i] = -0.75
		}
	}

	out := Resample(in, 2, 44100, 48000)
	for f := 0; f < len(out)/2; f++ {
		if math.Abs(float64(out[2*f]-0.25)) > 1e-6 {
			t.Fatalf("left frame %d = %v, want 0.25", f, out[2*f])
		}
		if math.Abs(float64(out[2*f+1]+0.75)) > 1e-6 {
			t.Fatalf("right frame %d = %v, want -0.75", f, out[2*f+1])
		}
	}
}

func TestResampleEmpty(t *testing.T) {
	t.Parallel()

	if out := Resample(nil, 2, 44100, 48000); len(out) != 0 {
		t.Errorf("Resample(nil) len = %d, want 0", len(out))
	}
}

func TestCubicInterpolateEndpoints(t *testing.T) {
	t.Parallel()

	for i := range 50 {
		y0, y1, y2, y3 := float32(i), float32(i+1), float32(i+2), float32(i+3)
		if got := cubicInterpolate(y0, y1, y2, y3, 0); got != y1 {
			t.Errorf("x=0: got %v, want %v", got, y1)
		}
		if got := cubicInterpolate(y0, y1, y2, y3, 1); got != y2 {
			t.Errorf("x=1: got %v, want %v", got, y2)
		}
	}
}

func TestLowPassAlphaFollowsRateRatio(t *testing.T) {
	t.Parallel()

	steep := lowPassAlpha(96000, 48000)
	gentle := lowPassAlpha(48100, 48000)
	for _, a := range []float32{steep, gentle, lowPassAlpha(192000, 8000)} {
		if a <= 0 || a > 1 {
			t.Errorf("lowPassAlpha() = %v, want within (0, 1]", a)
		}
	}
	if steep >= gentle {
		t.Errorf("lowPassAlpha(96000, 48000) = %v, want below lowPassAlpha(48100, 48000) = %v", steep, gentle)
	}
	if gentle < 0.9 {
		t.Errorf("lowPassAlpha(48100, 48000) = %v, want close to 1 for a near-unity ratio", gentle)
	}
	if math.Abs(float64(steep)-0.757) > 0.01 {
		t.Errorf("lowPassAlpha(96000, 48000) = %v, want about 0.757", steep)
	}
}

func TestResampleNearUnityRatioKeepsHighFrequencies(t *testing.T) {
	t.Parallel()

	// A 10 kHz tone sits well inside the 48 kHz passband.
	const frames = 4810
	in := make([]float32, frames)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 10000 * float64(i) / 48100))
	}

	out := Resample(in, 1, 48100, 48000)
	var peak float64
	for _, v := range out[100 : len(out)-100] {
		peak = max(peak, math.Abs(float64(v)))
	}
	if peak < 0.7 {
		t.Errorf("Resample() 10 kHz peak = %.3f, want at least 0.7", peak)
	}
}
