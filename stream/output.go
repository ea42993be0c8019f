package stream

import (
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Output is the audio sink a session plays into. The default implementation
// is the system speaker; tests swap in a silent one they can drive by hand.
type Output interface {
	Init(rate beep.SampleRate) error
	Play(s beep.Streamer)
	Lock()
	Unlock()
	Clear()
}

var output Output = &speakerOutput{}

// SetNullOutput replaces the speaker with a silent output and returns it.
// Intended for tests, mirroring how the filesystem backend is swapped.
func SetNullOutput() *NullOutput {
	o := &NullOutput{}
	output = o
	return o
}

// speakerOutput plays through the system audio device. The device is opened
// once per process at a fixed sample rate; sessions resample into it.
type speakerOutput struct {
	once sync.Once
	err  error
}

func (o *speakerOutput) Init(rate beep.SampleRate) error {
	o.once.Do(func() {
		o.err = speaker.Init(rate, rate.N(time.Second/10))
	})
	return o.err
}

func (o *speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }
func (o *speakerOutput) Lock()                { speaker.Lock() }
func (o *speakerOutput) Unlock()              { speaker.Unlock() }
func (o *speakerOutput) Clear()               { speaker.Clear() }

// NullOutput discards samples. Playback only advances when Pump is called,
// which makes track progression deterministic in tests.
type NullOutput struct {
	mu       sync.Mutex
	streamer beep.Streamer
}

func (o *NullOutput) Init(beep.SampleRate) error { return nil }

func (o *NullOutput) Play(s beep.Streamer) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamer = s
}

func (o *NullOutput) Lock()   { o.mu.Lock() }
func (o *NullOutput) Unlock() { o.mu.Unlock() }

func (o *NullOutput) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.streamer = nil
}

// Pump streams n samples through the active streamer, the way the speaker's
// playback loop would.
func (o *NullOutput) Pump(n int) {
	buf := make([][2]float64, 512)
	for n > 0 {
		chunk := buf
		if n < len(chunk) {
			chunk = chunk[:n]
		}

		o.mu.Lock()
		s := o.streamer
		if s == nil {
			o.mu.Unlock()
			return
		}
		got, ok := s.Stream(chunk)
		o.mu.Unlock()

		if !ok || got == 0 {
			return
		}
		n -= got
	}
}
