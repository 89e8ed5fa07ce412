package clip

import (
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/puzpuzpuz/xsync/v3"
)

var (
	// ErrNameTaken is returned by Put when a clip is already stored under the name.
	ErrNameTaken = errors.New("clip name already taken")
	// ErrNilClip is returned by Put when no clip is given.
	ErrNilClip = errors.New("nil clip")
)

// Store holds decoded clips keyed by display name. Names can be reserved
// while their clip is still decoding so that concurrent loads of files
// with the same base name never collide. A reserved name maps to nil.
type Store struct {
	clips *xsync.MapOf[string, *Clip]
}

// NewStore creates an empty clip store.
func NewStore() *Store {
	return &Store{
		clips: xsync.NewMapOf[string, *Clip](),
	}
}

// Get returns the clip registered under name. Reserved names that have
// no clip yet are reported as missing.
func (s *Store) Get(name string) (*Clip, bool) {
	c, ok := s.clips.Load(name)
	if !ok || c == nil {
		return nil, false
	}
	return c, true
}

// Put registers c under name. The name may be free or reserved by Reserve;
// an already registered clip is never overwritten.
func (s *Store) Put(name string, c *Clip) error {
	if c == nil {
		return ErrNilClip
	}

	taken := false
	s.clips.Compute(name, func(old *Clip, loaded bool) (*Clip, bool) {
		if loaded && old != nil {
			taken = true
			return old, false
		}
		c.Name = name
		return c, false
	})
	if taken {
		return fmt.Errorf("%q: %w", name, ErrNameTaken)
	}
	return nil
}

// UniqueName returns candidate, or candidate with " (n)" inserted before
// the extension for the smallest n that is not in use.
func (s *Store) UniqueName(candidate string) string {
	name := candidate
	for i := 1; s.exists(name); i++ {
		name = numbered(candidate, i)
	}
	return name
}

// Reserve atomically claims a unique name derived from candidate and
// returns it. The reservation is filled by Put or dropped by Release.
func (s *Store) Reserve(candidate string) string {
	name := candidate
	for i := 1; ; i++ {
		if _, loaded := s.clips.LoadOrStore(name, nil); !loaded {
			return name
		}
		name = numbered(candidate, i)
	}
}

// TryReserve claims exactly name, reporting false if it is already
// reserved or registered.
func (s *Store) TryReserve(name string) bool {
	_, loaded := s.clips.LoadOrStore(name, nil)
	return !loaded
}

// Release drops a reservation that never received a clip.
func (s *Store) Release(name string) {
	s.clips.Compute(name, func(old *Clip, loaded bool) (*Clip, bool) {
		return old, loaded && old == nil
	})
}

// Names returns the registered clip names in sorted order.
func (s *Store) Names() []string {
	names := make([]string, 0, s.clips.Size())
	s.clips.Range(func(name string, c *Clip) bool {
		if c != nil {
			names = append(names, name)
		}
		return true
	})
	slices.Sort(names)
	return names
}

// Len returns the number of registered clips.
func (s *Store) Len() int {
	n := 0
	s.clips.Range(func(_ string, c *Clip) bool {
		if c != nil {
			n++
		}
		return true
	})
	return n
}

func (s *Store) exists(name string) bool {
	_, ok := s.clips.Load(name)
	return ok
}

func numbered(name string, n int) string {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	return fmt.Sprintf("%s (%d)%s", base, n, ext)
}
