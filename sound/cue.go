package sound

import (
	"math"
	"sync"
)

type Cue int

const (
	CueStart Cue = iota
	CueEnd
	CueError
)

func (c Cue) String() string {
	switch c {
	case CueStart:
		return "start"
	case CueEnd:
		return "end"
	}
	return "error"
}

const (
	cueRate = 44100

	// Start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error: low pitch double beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30
)

var (
	cueOnce  sync.Once
	cueClips map[Cue]Clip
)

func cueClip(c Cue) Clip {
	cueOnce.Do(func() {
		cueClips = map[Cue]Clip{
			// 200ms tails keep the pulse buffer filled
			CueStart: {PCM: generateTick(cueRate, startFreq, 0.2, startVolume, startDecay), SampleRate: cueRate, Channels: 1},
			CueEnd:   {PCM: generateTick(cueRate, endFreq, 0.2, endVolume, endDecay), SampleRate: cueRate, Channels: 1},
			CueError: {PCM: generateDoubleBeep(cueRate, errorFreq, 0.08, 0.05, errorVolume, errorDecay), SampleRate: cueRate, Channels: 1},
		}
	})
	return cueClips[c]
}

func generateTick(sampleRate int, freq float64, duration float64, volume float64, decay float64) []byte {
	n := int(float64(sampleRate) * duration)
	buf := make([]byte, n*2)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sampleRate)
		envelope := math.Exp(-t * decay)
		sample := int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
		buf[i*2] = byte(sample)
		buf[i*2+1] = byte(sample >> 8)
	}
	return buf
}

func generateDoubleBeep(sampleRate int, freq float64, beepDur float64, gapDur float64, volume float64, decay float64) []byte {
	beep := generateTick(sampleRate, freq, beepDur, volume, decay)
	gap := make([]byte, int(float64(sampleRate)*gapDur)*2)
	result := make([]byte, 0, len(beep)*2+len(gap))
	result = append(result, beep...)
	result = append(result, gap...)
	result = append(result, beep...)
	return result
}
