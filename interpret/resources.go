package interpret

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"time"
)

var ErrNoResourceForID = errors.New("no resource for id")

// NoResourceError reports a result id missing from one lookup table.
type NoResourceError struct {
	Table string
	ID    ResultID
}

func (e *NoResourceError) Error() string {
	return fmt.Sprintf("no %s for result id %q", e.Table, e.ID)
}

func (e *NoResourceError) Is(target error) bool { return target == ErrNoResourceForID }

const (
	TableSound     = "sound"
	TableAnimation = "animation"
)

type Sound struct {
	Name string
	Path string // WAV file
}

// Animation fades the idle control out and a result card in. Image is the
// path of the result's picture; the terminal UI shows its file name on the
// card under Name.
type Animation struct {
	Name    string
	Image   string
	FadeOut time.Duration
	FadeIn  time.Duration
}

// Resources holds the two id tables. They are independent: an id may have a
// sound and no animation, or the reverse.
type Resources struct {
	sounds     map[ResultID]Sound
	animations map[ResultID]Animation
}

func NewResources(sounds map[ResultID]Sound, animations map[ResultID]Animation) *Resources {
	r := &Resources{
		sounds:     make(map[ResultID]Sound, len(sounds)),
		animations: make(map[ResultID]Animation, len(animations)),
	}
	for id, s := range sounds {
		r.sounds[id] = s
	}
	for id, a := range animations {
		r.animations[id] = a
	}
	return r
}

// DefaultResources maps "0" to the door and "1" to the gun.
func DefaultResources() *Resources {
	return NewResources(
		map[ResultID]Sound{
			"0": {Name: "door", Path: "assets/door.wav"},
			"1": {Name: "gun", Path: "assets/gun.wav"},
		},
		map[ResultID]Animation{
			"0": {Name: "door", Image: "assets/door.png", FadeOut: 400 * time.Millisecond, FadeIn: 600 * time.Millisecond},
			"1": {Name: "gun", Image: "assets/gun.png", FadeOut: 400 * time.Millisecond, FadeIn: 600 * time.Millisecond},
		},
	)
}

// IDs lists every id with a sound or an animation, sorted.
func (r *Resources) IDs() []ResultID {
	if r == nil {
		return nil
	}
	seen := make(map[ResultID]bool, len(r.sounds)+len(r.animations))
	for id := range r.sounds {
		seen[id] = true
	}
	for id := range r.animations {
		seen[id] = true
	}
	ids := slices.Collect(maps.Keys(seen))
	slices.Sort(ids)
	return ids
}

func (r *Resources) Sound(id ResultID) (Sound, bool) {
	if r == nil {
		return Sound{}, false
	}
	s, ok := r.sounds[id]
	return s, ok
}

func (r *Resources) Animation(id ResultID) (Animation, bool) {
	if r == nil {
		return Animation{}, false
	}
	a, ok := r.animations[id]
	return a, ok
}
