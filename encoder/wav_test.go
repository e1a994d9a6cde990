package encoder

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWAVHeader(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0}
	out := WAV(pcm, 16000)

	if len(out) != WAVHeaderSize+len(pcm) {
		t.Fatalf("len = %d, want %d", len(out), WAVHeaderSize+len(pcm))
	}
	if string(out[0:4]) != "RIFF" || string(out[8:12]) != "WAVE" || string(out[36:40]) != "data" {
		t.Fatalf("bad magic: %q", out[:44])
	}
	if got := binary.LittleEndian.Uint32(out[4:8]); got != uint32(36+len(pcm)) {
		t.Errorf("riff size = %d, want %d", got, 36+len(pcm))
	}
	if got := binary.LittleEndian.Uint32(out[24:28]); got != 16000 {
		t.Errorf("sample rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(out[28:32]); got != 32000 {
		t.Errorf("byte rate = %d", got)
	}
	if got := binary.LittleEndian.Uint32(out[40:44]); got != uint32(len(pcm)) {
		t.Errorf("data size = %d", got)
	}
	if !bytes.Equal(out[WAVHeaderSize:], pcm) {
		t.Error("payload mismatch")
	}
}

func TestParseWAV(t *testing.T) {
	pcm := []byte{9, 8, 7, 6}
	got, rate, ok := ParseWAV(WAV(pcm, 44100))
	if !ok {
		t.Fatal("ParseWAV rejected its own output")
	}
	if rate != 44100 {
		t.Errorf("rate = %d", rate)
	}
	if !bytes.Equal(got, pcm) {
		t.Errorf("pcm = %v", got)
	}

	if _, _, ok := ParseWAV([]byte("not a wav")); ok {
		t.Error("ParseWAV accepted garbage")
	}
}

func TestWavEncoder(t *testing.T) {
	enc := NewWav(0)
	if enc.Bytes() != nil {
		t.Error("Bytes before Close should be nil")
	}
	if err := enc.EncodeBlock([]int16{1, -1, 300}); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	if enc.TotalFrames() != 3 {
		t.Errorf("TotalFrames = %d, want 3", enc.TotalFrames())
	}
	pcm, rate, ok := ParseWAV(enc.Bytes())
	if !ok || rate != SampleRate {
		t.Fatalf("ok=%v rate=%d", ok, rate)
	}
	samples := Samples(pcm)
	want := []int16{1, -1, 300}
	for i := range want {
		if samples[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, samples[i], want[i])
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatWAV, "wav": FormatWAV, "flac": FormatFLAC} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("mp3"); err == nil {
		t.Error("expected error for mp3")
	}
}
