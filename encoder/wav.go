package encoder

import (
	"bytes"
	"encoding/binary"
	"sync"
)

const WAVHeaderSize = 44

type WavEncoder struct {
	sampleRate  int
	pcm         bytes.Buffer
	out         []byte
	totalFrames uint64
	mu          sync.Mutex
}

func NewWav(sampleRate int) *WavEncoder {
	if sampleRate <= 0 {
		sampleRate = SampleRate
	}
	return &WavEncoder{sampleRate: sampleRate}
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var b [2]byte
	for _, s := range block {
		binary.LittleEndian.PutUint16(b[:], uint16(s))
		e.pcm.Write(b[:])
	}
	e.totalFrames += uint64(len(block))
	return nil
}

func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.out = WAV(e.pcm.Bytes(), e.sampleRate)
	return nil
}

// Bytes returns the finished file. Before Close it returns nil.
func (e *WavEncoder) Bytes() []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.out
}

func (e *WavEncoder) TotalFrames() uint64 {
	return e.totalFrames
}

// WAV wraps 16-bit mono PCM in a canonical RIFF header sized to the payload.
func WAV(pcm []byte, sampleRate int) []byte {
	dataSize := len(pcm)
	buf := make([]byte, WAVHeaderSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(WAVHeaderSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], Channels)
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*Channels*BitsPerSample/8))
	binary.LittleEndian.PutUint16(buf[32:34], Channels*BitsPerSample/8)
	binary.LittleEndian.PutUint16(buf[34:36], BitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[WAVHeaderSize:], pcm)
	return buf
}

// ParseWAV returns the PCM payload and sample rate of a canonical 16-bit WAV file.
func ParseWAV(data []byte) (pcm []byte, sampleRate int, ok bool) {
	if len(data) < WAVHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, 0, false
	}
	sampleRate = int(binary.LittleEndian.Uint32(data[24:28]))
	size := int(binary.LittleEndian.Uint32(data[40:44]))
	end := min(WAVHeaderSize+size, len(data))
	return data[WAVHeaderSize:end], sampleRate, true
}
