package encoder

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrEncode  = errors.New("chunk encode failed")
	ErrNoAudio = errors.New("no audio captured yet")
)

// Framing decides how much of the recording each chunk carries.
type Framing string

const (
	// FramingCumulative sends everything captured since the session began.
	FramingCumulative Framing = "cumulative"
	// FramingIncremental sends only what was captured since the previous chunk.
	FramingIncremental Framing = "incremental"
)

func ParseFraming(s string) (Framing, error) {
	switch Framing(s) {
	case "", FramingCumulative:
		return FramingCumulative, nil
	case FramingIncremental:
		return FramingIncremental, nil
	}
	return "", fmt.Errorf("unknown framing %q (want cumulative or incremental)", s)
}

type ChunkConfig struct {
	Format     Format
	Framing    Framing
	SampleRate int
}

// Chunk is one encoded snapshot, ready to be sent once and thrown away.
type Chunk struct {
	Payload    string // base64 of the container bytes
	Bytes      int
	Samples    int
	Offset     int // first sample carried, relative to session start
	Format     Format
	SampleRate int
}

func (c Chunk) Duration() time.Duration {
	if c.SampleRate == 0 {
		return 0
	}
	return time.Duration(c.Samples) * time.Second / time.Duration(c.SampleRate)
}

// Snapshotter is anything holding the session's captured PCM.
// Snapshot must return a copy the caller may keep.
type Snapshotter interface {
	Snapshot() []byte
}

type ChunkEncoder struct {
	cfg ChunkConfig

	mu     sync.Mutex
	cursor int // bytes already claimed by incremental chunks
}

func NewChunkEncoder(cfg ChunkConfig) *ChunkEncoder {
	if cfg.Format == "" {
		cfg.Format = FormatWAV
	}
	if cfg.Framing == "" {
		cfg.Framing = FramingCumulative
	}
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = SampleRate
	}
	return &ChunkEncoder{cfg: cfg}
}

func (c *ChunkEncoder) Config() ChunkConfig { return c.cfg }

// Reset forgets the incremental cursor. Call it when a new session starts.
func (c *ChunkEncoder) Reset() {
	c.mu.Lock()
	c.cursor = 0
	c.mu.Unlock()
}

// Encode reads the current recording and produces a chunk. The recording itself
// is never modified. ErrNoAudio means there is nothing to send yet.
func (c *ChunkEncoder) Encode(src Snapshotter) (chunk Chunk, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrEncode, r)
		}
	}()

	if src == nil {
		return Chunk{}, ErrNoAudio
	}
	pcm := src.Snapshot()
	end := len(pcm) &^ 1

	start := 0
	if c.cfg.Framing == FramingIncremental {
		c.mu.Lock()
		start = c.cursor
		if start > end {
			start = 0
		}
		if end > start {
			c.cursor = end
		}
		c.mu.Unlock()
	}

	if end <= start {
		return Chunk{}, ErrNoAudio
	}

	data, err := EncodePCM(c.cfg.Format, c.cfg.SampleRate, pcm[start:end])
	if err != nil {
		return Chunk{}, fmt.Errorf("%w: %v", ErrEncode, err)
	}

	return Chunk{
		Payload:    base64.StdEncoding.EncodeToString(data),
		Bytes:      len(data),
		Samples:    (end - start) / 2,
		Offset:     start / 2,
		Format:     c.cfg.Format,
		SampleRate: c.cfg.SampleRate,
	}, nil
}
