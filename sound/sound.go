// Package sound plays the result sounds and the short cue tones that frame a
// recording. Playback is fire-and-forget: callers never wait on the device.
package sound

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"voicecue/interpret"
	"voicecue/log"
)

var disabled atomic.Bool

// Disable silences every player in the process, e.g. for -nosound.
func Disable() { disabled.Store(true) }

var ErrNotWAV = errors.New("not a 16-bit PCM wav file")

// Clip is decoded interleaved 16-bit PCM.
type Clip struct {
	PCM        []byte
	SampleRate int
	Channels   int
}

func (c Clip) Samples() []int16 {
	out := make([]int16, len(c.PCM)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(c.PCM[i*2:]))
	}
	return out
}

// Output renders one clip and returns when it has finished.
type Output func(Clip) error

type Player struct {
	out Output

	mu    sync.Mutex
	cache map[string]Clip
	wg    sync.WaitGroup
}

// NewPlayer returns a player on the platform audio output. A nil out selects
// the default device.
func NewPlayer(out Output) *Player {
	if out == nil {
		out = play
	}
	return &Player{out: out, cache: make(map[string]Clip)}
}

// Play starts s in the background. Load and device errors are logged.
func (p *Player) Play(s interpret.Sound) {
	if disabled.Load() {
		return
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		clip, err := p.load(s.Path)
		if err != nil {
			log.Warnf("sound %s: %v", s.Name, err)
			return
		}
		if err := p.out(clip); err != nil {
			log.Warnf("sound %s: playback: %v", s.Name, err)
		}
	}()
}

// Cue plays one of the generated tones.
func (p *Player) Cue(c Cue) {
	if disabled.Load() {
		return
	}
	clip := cueClip(c)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := p.out(clip); err != nil {
			log.Warnf("sound: %s cue: %v", c, err)
		}
	}()
}

// Wait blocks until every started playback has returned.
func (p *Player) Wait() { p.wg.Wait() }

func (p *Player) load(path string) (Clip, error) {
	p.mu.Lock()
	clip, ok := p.cache[path]
	p.mu.Unlock()
	if ok {
		return clip, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Clip{}, err
	}
	clip, err = DecodeWAV(data)
	if err != nil {
		return Clip{}, fmt.Errorf("%s: %w", path, err)
	}

	p.mu.Lock()
	p.cache[path] = clip
	p.mu.Unlock()
	return clip, nil
}

// DecodeWAV walks the RIFF chunks of data, skipping any it does not need
// (LIST, fact, cue), and returns the PCM of the data chunk.
func DecodeWAV(data []byte) (Clip, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return Clip{}, ErrNotWAV
	}

	var clip Clip
	var haveFmt bool
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4 : pos+8]))
		body := data[pos+8 : min(pos+8+size, len(data))]

		switch id {
		case "fmt ":
			if len(body) < 16 {
				return Clip{}, ErrNotWAV
			}
			format := binary.LittleEndian.Uint16(body[0:2])
			bits := binary.LittleEndian.Uint16(body[14:16])
			// 0xFFFE is WAVE_FORMAT_EXTENSIBLE, used by most editors for plain PCM too
			if (format != 1 && format != 0xFFFE) || bits != 16 {
				return Clip{}, fmt.Errorf("%w (format %d, %d bits)", ErrNotWAV, format, bits)
			}
			clip.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			clip.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return Clip{}, ErrNotWAV
			}
			clip.PCM = body[:len(body)&^1]
			if clip.Channels < 1 || clip.SampleRate <= 0 {
				return Clip{}, ErrNotWAV
			}
			return clip, nil
		}
		pos += 8 + size + size&1
	}
	return Clip{}, ErrNotWAV
}
