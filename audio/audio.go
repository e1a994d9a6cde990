package audio

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrPermissionDenied = errors.New("microphone permission denied")

var btKeywords = []string{
	"airpods", "bose", "wh-1000", "wf-1000",
	"jabra", "galaxy buds", "pixel buds",
	"bluetooth", " bt ", " bt)",
}

// IsBluetooth guesses from the device name whether the input is a headset
// running in its low-bandwidth hands-free profile.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
}

// Opener creates a fresh capture device for one recording session.
type Opener func() (CaptureDevice, error)

func ContextOpener(ctx Context, device *DeviceInfo, config CaptureConfig) Opener {
	return func() (CaptureDevice, error) {
		return ctx.NewCapture(device, config)
	}
}

// Permission gates access to the microphone.
type Permission interface {
	Request(ctx context.Context) error
}

type PermissionFunc func(ctx context.Context) error

func (f PermissionFunc) Request(ctx context.Context) error { return f(ctx) }

// DevicePermission grants access when the audio server exposes at least one
// capture device. Sandboxed desktops hide sources from apps they have not
// authorised, so an empty list is treated as a refusal.
type DevicePermission struct {
	Ctx Context
}

func (p DevicePermission) Request(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	devices, err := p.Ctx.Devices()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	}
	if len(devices) == 0 {
		return ErrPermissionDenied
	}
	return nil
}
