package sound

import (
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"voicecue/encoder"
	"voicecue/interpret"
)

type recorder struct {
	mu    sync.Mutex
	clips []Clip
}

func (r *recorder) out(c Clip) error {
	r.mu.Lock()
	r.clips = append(r.clips, c)
	r.mu.Unlock()
	return nil
}

func stereoWAV(t *testing.T, frames int, withList bool) []byte {
	t.Helper()
	var chunks []byte
	put := func(id string, body []byte) {
		hdr := make([]byte, 8)
		copy(hdr, id)
		binary.LittleEndian.PutUint32(hdr[4:], uint32(len(body)))
		chunks = append(chunks, hdr...)
		chunks = append(chunks, body...)
		if len(body)%2 == 1 {
			chunks = append(chunks, 0)
		}
	}

	fmtBody := make([]byte, 16)
	binary.LittleEndian.PutUint16(fmtBody[0:], 1)
	binary.LittleEndian.PutUint16(fmtBody[2:], 2)
	binary.LittleEndian.PutUint32(fmtBody[4:], 44100)
	binary.LittleEndian.PutUint32(fmtBody[8:], 44100*4)
	binary.LittleEndian.PutUint16(fmtBody[12:], 4)
	binary.LittleEndian.PutUint16(fmtBody[14:], 16)
	put("fmt ", fmtBody)
	if withList {
		put("LIST", []byte("INFOISFT\x03\x00\x00\x00ab\x00"))
	}
	put("data", make([]byte, frames*4))

	out := append([]byte("RIFF\x00\x00\x00\x00WAVE"), chunks...)
	binary.LittleEndian.PutUint32(out[4:], uint32(len(out)-8))
	return out
}

func TestDecodeWAV(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		rate     int
		channels int
		bytes    int
	}{
		{"mono", encoder.WAV(make([]byte, 320), 16000), 16000, 1, 320},
		{"stereo", stereoWAV(t, 100, false), 44100, 2, 400},
		{"extra chunks", stereoWAV(t, 10, true), 44100, 2, 40},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clip, err := DecodeWAV(tt.data)
			if err != nil {
				t.Fatal(err)
			}
			if clip.SampleRate != tt.rate || clip.Channels != tt.channels || len(clip.PCM) != tt.bytes {
				t.Errorf("clip = %d Hz, %d ch, %d bytes", clip.SampleRate, clip.Channels, len(clip.PCM))
			}
		})
	}
}

func TestDecodeWAVRejects(t *testing.T) {
	float := stereoWAV(t, 4, false)
	binary.LittleEndian.PutUint16(float[20:], 3) // IEEE float

	for name, data := range map[string][]byte{
		"empty":    nil,
		"not riff": []byte("OggS\x00\x00\x00\x00\x00\x00\x00\x00"),
		"float":    float,
		"no data":  []byte("RIFF\x04\x00\x00\x00WAVE"),
	} {
		if _, err := DecodeWAV(data); !errors.Is(err, ErrNotWAV) {
			t.Errorf("%s: err = %v", name, err)
		}
	}
}

func TestPlayLoadsAndCaches(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "door.wav")
	if err := os.WriteFile(path, encoder.WAV(make([]byte, 800), 16000), 0o644); err != nil {
		t.Fatal(err)
	}

	rec := &recorder{}
	p := NewPlayer(rec.out)
	s := interpret.Sound{Name: "door", Path: path}
	p.Play(s)
	p.Wait()

	// second play must not touch the file
	os.Remove(path)
	p.Play(s)
	p.Wait()

	if len(rec.clips) != 2 {
		t.Fatalf("played %d clips", len(rec.clips))
	}
	if len(rec.clips[1].PCM) != 800 {
		t.Errorf("cached clip = %d bytes", len(rec.clips[1].PCM))
	}
}

func TestPlayMissingFile(t *testing.T) {
	rec := &recorder{}
	p := NewPlayer(rec.out)
	p.Play(interpret.Sound{Name: "gone", Path: filepath.Join(t.TempDir(), "gone.wav")})
	p.Wait()
	if len(rec.clips) != 0 {
		t.Error("played a clip that does not exist")
	}
}

func TestCues(t *testing.T) {
	rec := &recorder{}
	p := NewPlayer(rec.out)
	for _, c := range []Cue{CueStart, CueEnd, CueError} {
		p.Cue(c)
	}
	p.Wait()

	if len(rec.clips) != 3 {
		t.Fatalf("played %d cues", len(rec.clips))
	}
	for _, c := range rec.clips {
		if c.SampleRate != cueRate || c.Channels != 1 || len(c.PCM) == 0 {
			t.Errorf("cue clip = %d Hz, %d ch, %d bytes", c.SampleRate, c.Channels, len(c.PCM))
		}
	}
	// the error cue is two beeps with a gap
	want := 2*int(cueRate*0.08)*2 + int(cueRate*0.05)*2
	if got := len(cueClip(CueError).PCM); got != want {
		t.Errorf("error cue = %d bytes, want %d", got, want)
	}
}
