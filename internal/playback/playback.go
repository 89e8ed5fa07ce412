package playback

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/petems/soundboard-tray/internal/clip"
	"github.com/rs/zerolog"
)

// ErrUnknownClip is returned by Play for a name the clip source does not have.
// It is informational: the controller state is left untouched.
var ErrUnknownClip = errors.New("unknown clip")

// ClipSource resolves display names to clips.
type ClipSource interface {
	Get(name string) (*clip.Clip, bool)
}

// Observer is told whenever the playing clip changes. An empty name means
// nothing is playing. Observers must not call Play or Stop synchronously.
type Observer interface {
	NowPlayingChanged(name string)
}

// State is a snapshot of the controller.
type State struct {
	Clip   *clip.Clip
	Cursor int
	Volume float32
}

// Playing reports whether a clip is active.
func (s State) Playing() bool { return s.Clip != nil }

type Config struct {
	Clips    ClipSource
	Observer Observer // Optional - can be nil
	Logger   zerolog.Logger
	Volume   float32
}

// Controller is the Idle/Playing state machine consulted by the render
// callback. Play and Stop come from control goroutines, Fill from the
// render callback; both sides go through mu, which is only ever held for
// a pointer swap or a single block copy.
type Controller struct {
	clips    ClipSource
	observer Observer
	log      zerolog.Logger

	mu     sync.Mutex
	active *clip.Clip
	cursor int

	volume atomic.Uint32 // float32 bits

	// ended is signalled by Fill when a clip runs out. Run turns it into
	// an observer notification off the real-time thread.
	ended chan struct{}

	notifyMu  sync.Mutex
	published string
}

func New(cfg Config) *Controller {
	c := &Controller{
		clips:    cfg.Clips,
		observer: cfg.Observer,
		log:      cfg.Logger,
		ended:    make(chan struct{}, 1),
	}
	c.SetVolume(cfg.Volume)
	return c
}

// Play starts the named clip from the beginning, preempting whatever was
// playing. Unknown names leave the state untouched.
func (c *Controller) Play(name string) error {
	cl, ok := c.clips.Get(name)
	if !ok {
		return fmt.Errorf("%q: %w", name, ErrUnknownClip)
	}

	c.mu.Lock()
	c.active = cl
	c.cursor = 0
	c.mu.Unlock()

	c.log.Debug().Str("clip", name).Int("frames", cl.Frames()).Msg("Playback started")
	c.publish()
	return nil
}

// Stop returns to Idle. It reports whether a clip was playing; stopping
// while Idle changes nothing and notifies no one.
func (c *Controller) Stop() bool {
	c.mu.Lock()
	wasPlaying := c.active != nil
	c.active = nil
	c.cursor = 0
	c.mu.Unlock()

	if wasPlaying {
		c.log.Debug().Msg("Playback stopped")
		c.publish()
	}
	return wasPlaying
}

// SetVolume sets the clip gain, clamped to [0, 1].
func (c *Controller) SetVolume(v float32) {
	switch {
	case math.IsNaN(float64(v)) || v < 0:
		v = 0
	case v > 1:
		v = 1
	}
	c.volume.Store(math.Float32bits(v))
}

// Volume returns the current clip gain.
func (c *Controller) Volume() float32 {
	return math.Float32frombits(c.volume.Load())
}

// NowPlaying returns the active clip's name, or "" when Idle.
func (c *Controller) NowPlaying() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		return ""
	}
	return c.active.Name
}

// State returns a consistent snapshot.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{Clip: c.active, Cursor: c.cursor, Volume: c.Volume()}
}

// Fill writes the clip contribution for one mono block into out: up to
// len(out) frames from the cursor, downmixed and scaled by the volume,
// followed by silence. It advances the cursor and drops to Idle when the
// clip is exhausted. It reports whether a clip was playing when the block
// started. Fill never allocates or blocks beyond mu.
func (c *Controller) Fill(out []float32) bool {
	clear(out)
	vol := c.Volume()

	c.mu.Lock()
	cl := c.active
	if cl == nil {
		c.mu.Unlock()
		return false
	}

	frames := cl.Frames()
	n := min(len(out), frames-c.cursor)
	ch := cl.Channels
	src := cl.Samples[c.cursor*ch : (c.cursor+n)*ch]

	if ch == 1 {
		for i := range n {
			out[i] = src[i] * vol
		}
	} else {
		inv := 1 / float32(ch)
		for i := range n {
			var sum float32
			for _, s := range src[i*ch : (i+1)*ch] {
				sum += s
			}
			out[i] = sum * inv * vol
		}
	}

	c.cursor += n
	finished := c.cursor >= frames
	if finished {
		c.active = nil
		c.cursor = 0
	}
	c.mu.Unlock()

	if finished {
		select {
		case c.ended <- struct{}{}:
		default:
		}
	}
	return true
}

// Run delivers end-of-clip notifications until ctx is done.
func (c *Controller) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.ended:
			c.publish()
		}
	}
}

// publish tells the observer about the current clip if it differs from
// the last one reported.
func (c *Controller) publish() {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()

	name := c.NowPlaying()
	if name == c.published {
		return
	}
	c.published = name
	if c.observer != nil {
		c.observer.NowPlayingChanged(name)
	}
}
