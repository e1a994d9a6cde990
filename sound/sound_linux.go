//go:build linux

package sound

import (
	"github.com/jfreymuth/pulse"
	"github.com/jfreymuth/pulse/proto"
)

func play(c Clip) error {
	samples := c.Samples()
	if len(samples) == 0 {
		return nil
	}
	client, err := pulse.NewClient(pulse.ClientApplicationName("voicecue"))
	if err != nil {
		return err
	}
	defer client.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})

	layout := pulse.PlaybackMono
	volumes := proto.ChannelVolumes{uint32(proto.VolumeNorm)}
	if c.Channels == 2 {
		layout = pulse.PlaybackStereo
		volumes = proto.ChannelVolumes{uint32(proto.VolumeNorm), uint32(proto.VolumeNorm)}
	}
	stream, err := client.NewPlayback(reader,
		layout,
		pulse.PlaybackSampleRate(c.SampleRate),
		pulse.PlaybackLatency(0.1),
		pulse.PlaybackRawOption(func(p *proto.CreatePlaybackStream) {
			p.ChannelVolumes = volumes
		}),
	)
	if err != nil {
		return err
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
	return nil
}
