package audio

import (
	"sync"
	"time"
)

const (
	DefaultSampleRate = 16000
	pcmChannels       = 1
	pcmBitDepth       = 16
	bytesPerSample    = pcmBitDepth / 8
)

// Segment is a fixed-duration slice of mono PCM16-LE audio.
type Segment struct {
	Source     string
	PCM        []byte
	SampleRate int
	Duration   time.Duration
	CapturedAt time.Time
}

// PCMDuration converts a PCM16 mono byte length to playback time.
func PCMDuration(n, sampleRate int) time.Duration {
	if sampleRate <= 0 {
		return 0
	}
	samples := n / bytesPerSample
	return time.Duration(samples) * time.Second / time.Duration(sampleRate)
}

// Segmenter is an io.Writer that cuts a PCM byte stream into segments of
// a fixed duration and hands each one to emit.
type Segmenter struct {
	source     string
	sampleRate int
	size       int
	emit       func(Segment)
	now        func() time.Time

	mu  sync.Mutex
	buf []byte
}

func NewSegmenter(source string, sampleRate int, d time.Duration, emit func(Segment)) *Segmenter {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	size := int(d.Seconds()*float64(sampleRate)) * bytesPerSample
	if size < bytesPerSample {
		size = bytesPerSample
	}
	return &Segmenter{source: source, sampleRate: sampleRate, size: size, emit: emit, now: time.Now}
}

func (s *Segmenter) Write(p []byte) (int, error) {
	s.mu.Lock()
	s.buf = append(s.buf, p...)
	var ready [][]byte
	for len(s.buf) >= s.size {
		seg := make([]byte, s.size)
		copy(seg, s.buf[:s.size])
		ready = append(ready, seg)
		s.buf = s.buf[s.size:]
	}
	s.mu.Unlock()

	for _, pcm := range ready {
		s.send(pcm)
	}
	return len(p), nil
}

// Flush emits whatever partial segment is buffered. It reports whether a
// segment was emitted.
func (s *Segmenter) Flush() bool {
	s.mu.Lock()
	n := len(s.buf) - len(s.buf)%bytesPerSample
	if n == 0 {
		s.buf = nil
		s.mu.Unlock()
		return false
	}
	pcm := append([]byte(nil), s.buf[:n]...)
	s.buf = nil
	s.mu.Unlock()

	s.send(pcm)
	return true
}

func (s *Segmenter) send(pcm []byte) {
	s.emit(Segment{
		Source:     s.source,
		PCM:        pcm,
		SampleRate: s.sampleRate,
		Duration:   PCMDuration(len(pcm), s.sampleRate),
		CapturedAt: s.now(),
	})
}

// SplitPCM cuts a complete PCM buffer into segments, the last one possibly
// shorter.
func SplitPCM(source string, pcm []byte, sampleRate int, d time.Duration) []Segment {
	var out []Segment
	seg := NewSegmenter(source, sampleRate, d, func(s Segment) { out = append(out, s) })
	_, _ = seg.Write(pcm)
	seg.Flush()
	return out
}
