//go:build !linux

package sound

import (
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoOnce sync.Once
	malgoCtx  *malgo.AllocatedContext
	malgoErr  error
)

func play(c Clip) error {
	malgoOnce.Do(func() {
		malgoCtx, malgoErr = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	})
	if malgoErr != nil {
		return malgoErr
	}
	if len(c.PCM) == 0 {
		return nil
	}

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = uint32(c.Channels)
	config.SampleRate = uint32(c.SampleRate)

	frameBytes := uint32(2 * c.Channels)
	var pos atomic.Uint32
	done := make(chan struct{})
	var doneOnce sync.Once

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, _ []byte, frameCount uint32) {
			p := pos.Load()
			total := uint32(len(c.PCM))
			n := min(frameCount*frameBytes, total-p)
			copy(pOutput[:n], c.PCM[p:p+n])
			clear(pOutput[n:])
			pos.Store(p + n)
			if p+n >= total {
				doneOnce.Do(func() { close(done) })
			}
		},
	}

	device, err := malgo.InitDevice(malgoCtx.Context, config, callbacks)
	if err != nil {
		return err
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return err
	}
	<-done
	return device.Stop()
}
