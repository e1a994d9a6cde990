package encoder

import (
	"encoding/binary"
	"fmt"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Format string

const (
	FormatWAV  Format = "wav"
	FormatFLAC Format = "flac"
)

func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatWAV:
		return FormatWAV, nil
	case FormatFLAC:
		return FormatFLAC, nil
	}
	return "", fmt.Errorf("unknown chunk format %q (want wav or flac)", s)
}

// Encoder turns a stream of 16-bit mono sample blocks into one container.
type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}

func New(format Format, sampleRate int) (Encoder, error) {
	switch format {
	case FormatWAV, "":
		return NewWav(sampleRate), nil
	case FormatFLAC:
		return NewFlac(sampleRate)
	}
	return nil, fmt.Errorf("unknown chunk format %q", format)
}

// Samples converts little-endian 16-bit PCM into samples. A trailing odd byte is ignored.
func Samples(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return out
}

// EncodePCM runs the whole of pcm through a fresh encoder and returns the container bytes.
func EncodePCM(format Format, sampleRate int, pcm []byte) ([]byte, error) {
	enc, err := New(format, sampleRate)
	if err != nil {
		return nil, err
	}
	samples := Samples(pcm)
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return enc.Bytes(), nil
}
