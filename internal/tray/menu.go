package tray

import (
	"fmt"
	"math"
	"net/url"
	"strings"

	"github.com/petems/soundboard-tray/internal/audio"
)

var volumeSteps = []float32{0, 0.25, 0.5, 0.75, 1}

func volumeLabel(v float32) string {
	return fmt.Sprintf("%d%%", int(math.Round(float64(v)*100)))
}

// nearestStep returns the volume step closest to v.
func nearestStep(v float32) float32 {
	best := volumeSteps[0]
	for _, s := range volumeSteps[1:] {
		if math.Abs(float64(s-v)) < math.Abs(float64(best-v)) {
			best = s
		}
	}
	return best
}

// statusTitle sets the tray title with a speaker emoji and what is playing
func statusTitle(nowPlaying string) string {
	if nowPlaying == "" {
		return "🔈"
	}
	return "🔊 " + nowPlaying
}

func nowPlayingLabel(name string) string {
	if name == "" {
		return "Now: (nothing)"
	}
	return "Now: " + name
}

type micChoice struct {
	ID       int
	Label    string
	Selected bool
}

// micChoices lists the input-capable devices as "id: name".
func micChoices(devices []audio.Device, selected *int) []micChoice {
	inputs := audio.Inputs(devices)
	out := make([]micChoice, 0, len(inputs))
	for _, d := range inputs {
		out = append(out, micChoice{
			ID:       d.ID,
			Label:    fmt.Sprintf("%d: %s", d.ID, d.Name),
			Selected: selected != nil && *selected == d.ID,
		})
	}
	return out
}

// parseClipboardPaths extracts file paths from clipboard text: one per
// line, optionally quoted or given as file:// URLs.
func parseClipboardPaths(text string) []string {
	var paths []string
	for _, line := range strings.Split(text, "\n") {
		p := strings.TrimSpace(line)
		p = strings.Trim(p, `"'`)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "file://") {
			u, err := url.Parse(p)
			if err != nil || u.Path == "" {
				continue
			}
			p = u.Path
		}
		paths = append(paths, p)
	}
	return paths
}
