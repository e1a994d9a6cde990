package session

import (
	"encoding/binary"
	"math"
	"sync"
)

const (
	frameMs        = 20
	speechDebounce = 3 // consecutive loud frames before voice counts as present

	// speechRMS is the frame energy, in 16-bit sample units, above which a
	// frame counts as speech. Room noise on a laptop mic sits well below it.
	speechRMS = 500.0
)

// speechDetector classifies 20ms frames by RMS energy and keeps per-tick counts.
type speechDetector struct {
	frameBytes int

	mu           sync.Mutex
	buf          []byte
	run          int
	voiced       bool
	totalFrames  int
	speechFrames int
	tickTotal    int
	tickSpeech   int
	level        float64
}

func newSpeechDetector(sampleRate int) *speechDetector {
	return &speechDetector{frameBytes: sampleRate * frameMs / 1000 * 2}
}

func frameRMS(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(binary.LittleEndian.Uint16(frame[i*2:])))
		sum += s * s
	}
	return math.Sqrt(sum / float64(n))
}

func (d *speechDetector) Process(data []byte) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.buf = append(d.buf, data...)
	for len(d.buf) >= d.frameBytes {
		rms := frameRMS(d.buf[:d.frameBytes])
		d.buf = d.buf[d.frameBytes:]

		d.level = rms
		d.totalFrames++
		if rms >= speechRMS {
			d.speechFrames++
			d.run++
			if d.run >= speechDebounce {
				d.voiced = true
			}
		} else {
			d.run = 0
		}
	}
}

// Level is the RMS of the most recent frame scaled to 0..1.
func (d *speechDetector) Level() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return min(d.level/8000, 1)
}

func (d *speechDetector) VoiceDetected() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.voiced
}

// HasSpeechTick reports whether enough frames since the previous call were speech.
func (d *speechDetector) HasSpeechTick() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	t := d.totalFrames - d.tickTotal
	s := d.speechFrames - d.tickSpeech
	d.tickTotal, d.tickSpeech = d.totalFrames, d.speechFrames
	if t == 0 {
		return false
	}
	return float64(s)/float64(t) >= speechMinRatio
}
