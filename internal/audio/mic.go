package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/gordonklaus/portaudio"
)

// Init and Terminate bracket all PortAudio use in a process.
func Init() error      { return portaudio.Initialize() }
func Terminate() error { return portaudio.Terminate() }

var loopbackKeywords = []string{"blackhole", "vb-cable", "loopback", "monitor", "soundflower", "stereo mix"}

// IsLoopback reports whether a device name looks like a system-audio
// loopback input rather than a microphone.
func IsLoopback(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range loopbackKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Mic wraps a PortAudio mono input stream.
type Mic struct {
	Device     string
	SampleRate int
	stream     *portaudio.Stream
	buf        []int16
}

// OpenMic opens an input stream. source "mic" (or "") selects the default
// input device, "system" the first loopback device, and anything else the
// first input device whose name contains it.
func OpenMic(source string, sampleRate, framesPerBuffer int) (*Mic, error) {
	dev, err := findDevice(source)
	if err != nil {
		return nil, err
	}

	buf := make([]int16, framesPerBuffer)
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   dev,
			Channels: 1,
			Latency:  dev.DefaultHighInputLatency,
		},
		SampleRate:      float64(sampleRate),
		FramesPerBuffer: framesPerBuffer,
	}
	stream, err := portaudio.OpenStream(params, buf)
	if err != nil {
		return nil, fmt.Errorf("open %q at %d Hz: %w", dev.Name, sampleRate, err)
	}
	return &Mic{Device: dev.Name, SampleRate: sampleRate, stream: stream, buf: buf}, nil
}

func findDevice(source string) (*portaudio.DeviceInfo, error) {
	if source == "" || source == "mic" {
		dev, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("default input device: %w", err)
		}
		return dev, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("list audio devices: %w", err)
	}
	for _, dev := range devices {
		if dev.MaxInputChannels < 1 {
			continue
		}
		if source == "system" && IsLoopback(dev.Name) {
			return dev, nil
		}
		if source != "system" && strings.Contains(strings.ToLower(dev.Name), strings.ToLower(source)) {
			return dev, nil
		}
	}
	if source == "system" {
		return nil, fmt.Errorf("no loopback input device found (install BlackHole, VB-Cable or enable a monitor source)")
	}
	return nil, fmt.Errorf("no input device matching %q", source)
}

func (m *Mic) Start() error { return m.stream.Start() }
func (m *Mic) Stop() error  { return m.stream.Stop() }
func (m *Mic) Close() error { return m.stream.Close() }

// Stream reads from the device and writes PCM16-LE to w until ctx is done
// or a read or write fails.
func (m *Mic) Stream(ctx context.Context, w io.Writer) error {
	var out bytes.Buffer
	out.Grow(len(m.buf) * bytesPerSample)
	for ctx.Err() == nil {
		if err := m.stream.Read(); err != nil {
			return err
		}
		out.Reset()
		if err := binary.Write(&out, binary.LittleEndian, m.buf); err != nil {
			return err
		}
		if _, err := w.Write(out.Bytes()); err != nil {
			return err
		}
	}
	return nil
}
