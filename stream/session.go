// Package stream owns a single active audio stream: decoding, pause and
// resume, seeking and playhead tracking. A session plays one downloaded
// track; advancing between tracks is the playback controller's job.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"

	"github.com/decibelle-cli/decibelle/filesystem"
	"github.com/decibelle-cli/decibelle/library"
	"github.com/decibelle-cli/decibelle/log"
)

var (
	// ErrUnavailable reports that the track's audio could not be reached.
	ErrUnavailable = errors.New("stream unavailable")

	// ErrNotDecodable reports a payload the audio backend cannot decode.
	ErrNotDecodable = errors.New("stream not decodable")

	// ErrBackend reports an audio output device failure.
	ErrBackend = errors.New("audio backend failure")
)

// sampleRate is the fixed output rate. Tracks at other rates are resampled.
const (
	sampleRate      = beep.SampleRate(44100)
	resampleQuality = 4
)

// State is a session's transport state.
type State int

const (
	Idle State = iota
	Opening
	Ready
	Playing
	Paused
	Seeking
	Ended
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Opening:
		return "opening"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Seeking:
		return "seeking"
	case Ended:
		return "ended"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one open audio stream. Commands are serialized: a second
// command waits until the previous one's backend action has been issued.
type Session struct {
	// cmd serializes Play/Pause/SeekTo/Close against each other.
	cmd sync.Mutex

	mu       sync.Mutex
	state    State
	err      error
	track    library.Track
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	duration time.Duration
	endPos   time.Duration

	out      Output
	done     chan struct{}
	doneOnce sync.Once
}

// Open decodes the track's downloaded audio at path and prepares it for
// playback, paused at the beginning. Callers start it with Play.
func Open(ctx context.Context, path string, track library.Track) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &Session{
		state: Opening,
		track: track,
		out:   output,
		done:  make(chan struct{}),
	}

	file, err := filesystem.API().Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, path, err)
	}

	s.streamer, s.format, err = decode(file, track.MimeType, path)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("%w: %v", ErrNotDecodable, err)
	}

	if err := s.out.Init(sampleRate); err != nil {
		_ = s.streamer.Close()
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	var src beep.Streamer = s.streamer
	if s.format.SampleRate != sampleRate {
		src = beep.Resample(resampleQuality, s.format.SampleRate, sampleRate, s.streamer)
	}
	s.ctrl = &beep.Ctrl{Streamer: src, Paused: true}
	s.duration = s.format.SampleRate.D(s.streamer.Len())
	s.state = Ready

	s.out.Play(beep.Seq(s.ctrl, beep.Callback(s.onEnd)))
	log.Debugf("opened track %q (%s, %s)", track.Title, s.format.SampleRate.D(s.streamer.Len()), track.MimeType)

	return s, nil
}

// Play starts or resumes audio. A no-op when already playing.
func (s *Session) Play() error {
	s.cmd.Lock()
	defer s.cmd.Unlock()

	s.mu.Lock()
	switch s.state {
	case Playing:
		s.mu.Unlock()
		return nil
	case Ready, Paused:
		s.state = Playing
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot play from state %s", state)
	}
	s.mu.Unlock()

	s.setPaused(false)
	return nil
}

// Pause suspends audio. A no-op when already paused.
func (s *Session) Pause() error {
	s.cmd.Lock()
	defer s.cmd.Unlock()

	s.mu.Lock()
	switch s.state {
	case Paused, Ready:
		s.mu.Unlock()
		return nil
	case Playing:
		s.state = Paused
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot pause from state %s", state)
	}
	s.mu.Unlock()

	s.setPaused(true)
	return nil
}

// SeekTo moves the playhead to an absolute offset, clamped to the track.
// The session returns to the state it was in before the seek.
func (s *Session) SeekTo(offset time.Duration) error {
	s.cmd.Lock()
	defer s.cmd.Unlock()

	s.mu.Lock()
	switch s.state {
	case Ready, Playing, Paused:
	default:
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("cannot seek from state %s", state)
	}
	prev := s.state
	s.state = Seeking
	duration := s.duration
	streamer, format := s.streamer, s.format
	s.mu.Unlock()

	if offset < 0 {
		offset = 0
	}
	if offset > duration {
		offset = duration
	}

	s.out.Lock()
	err := streamer.Seek(format.SampleRate.N(offset))
	s.out.Unlock()

	s.mu.Lock()
	if s.state == Seeking {
		s.state = prev
	}
	s.mu.Unlock()

	if err != nil {
		return fmt.Errorf("%w: seek: %v", ErrBackend, err)
	}
	return nil
}

// Position reports the current playhead offset. Cheap enough to poll every
// render tick, and valid in any state.
func (s *Session) Position() time.Duration {
	s.mu.Lock()
	streamer, format := s.streamer, s.format
	state, endPos := s.state, s.endPos
	s.mu.Unlock()

	switch state {
	case Ended:
		return endPos
	case Idle, Opening, Closed:
		return 0
	}

	s.out.Lock()
	n := streamer.Position()
	s.out.Unlock()
	return format.SampleRate.D(n)
}

// Duration reports the track's total length.
func (s *Session) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

// State reports the current transport state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Track returns the track this session plays.
func (s *Session) Track() library.Track {
	return s.track
}

// Done is closed when the stream ends, cleanly or not. Err distinguishes
// the two.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err reports the error that ended the stream, if any. Meaningful once Done
// is closed.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stops audio and releases the decoder. Idempotent.
func (s *Session) Close() error {
	s.cmd.Lock()
	defer s.cmd.Unlock()

	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return nil
	}
	s.state = Closed
	streamer := s.streamer
	s.mu.Unlock()

	s.out.Clear()
	err := streamer.Close()
	s.doneOnce.Do(func() { close(s.done) })
	return err
}

func (s *Session) setPaused(paused bool) {
	s.out.Lock()
	s.ctrl.Paused = paused
	s.out.Unlock()
}

// onEnd runs on the output's playback goroutine when the streamer is
// exhausted, which covers both clean track end and a mid-stream decoder
// failure.
func (s *Session) onEnd() {
	s.mu.Lock()
	if s.state == Closed {
		s.mu.Unlock()
		return
	}
	if err := s.streamer.Err(); err != nil {
		s.err = fmt.Errorf("%w: %v", ErrBackend, err)
	}
	// Runs on the output goroutine, so reading the streamer here is safe.
	s.endPos = s.format.SampleRate.D(s.streamer.Position())
	s.state = Ended
	s.mu.Unlock()

	s.doneOnce.Do(func() { close(s.done) })
}

// decode picks a decoder from the track's mime type, falling back to the
// file extension.
func decode(rsc io.ReadSeekCloser, mimeType, path string) (beep.StreamSeekCloser, beep.Format, error) {
	kind := strings.ToLower(mimeType)
	if kind == "" {
		kind = strings.ToLower(filepath.Ext(path))
	}

	switch {
	case strings.Contains(kind, "mp3") || strings.Contains(kind, "mpeg"):
		return mp3.Decode(rsc)
	case strings.Contains(kind, "flac"):
		return flac.Decode(rsc)
	case strings.Contains(kind, "ogg") || strings.Contains(kind, "vorbis") || strings.Contains(kind, "opus"):
		return vorbis.Decode(rsc)
	case strings.Contains(kind, "wav"):
		return wav.Decode(rsc)
	default:
		return mp3.Decode(rsc)
	}
}
