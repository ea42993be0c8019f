// Package playback orchestrates audio playback across a book's tracks. The
// Controller is the sole owner of the transport state: the UI issues
// commands and polls snapshots, the stream session produces audio, and the
// syncer reconciles position with the server.
package playback

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/decibelle-cli/decibelle/key"
	"github.com/decibelle-cli/decibelle/library"
	"github.com/decibelle-cli/decibelle/log"
	"github.com/decibelle-cli/decibelle/stream"
	"github.com/decibelle-cli/decibelle/syncer"
)

// Transport is the user-facing playback state.
type Transport int

const (
	Stopped Transport = iota
	Buffering
	Playing
	Paused
	Seeking
	TrackEnded
)

func (t Transport) String() string {
	switch t {
	case Stopped:
		return "stopped"
	case Buffering:
		return "buffering"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Seeking:
		return "seeking"
	case TrackEnded:
		return "track ended"
	default:
		return "unknown"
	}
}

// Fetcher resolves a track to a locally playable file. Tracks are downloaded
// before decoding so that seeking never depends on the network.
type Fetcher interface {
	FetchTrack(ctx context.Context, bookID string, track library.Track) (string, error)
}

// Snapshot is a read-only view of the controller, cheap to take every
// render tick.
type Snapshot struct {
	Book       *library.Book
	TrackIndex int
	TrackTitle string

	// Position and Duration are track-local; Global is the position on the
	// book's whole timeline.
	Position time.Duration
	Duration time.Duration
	Global   time.Duration

	Chapter   string
	Transport Transport

	// Dirty reports a local position the server has not confirmed yet.
	Dirty bool

	// Err is a user-visible playback failure message, set when audio
	// stopped for a reason the user should know about.
	Err string
}

// Controller drives one book's playback. All exported methods are safe for
// concurrent use and return without blocking on network or audio I/O.
type Controller struct {
	fetcher Fetcher
	sync    *syncer.Syncer

	openTimeout time.Duration
	openRetries int
	backoff     time.Duration

	mu         sync.Mutex
	gen        uint64
	book       *library.Book
	trackIndex int
	session    *stream.Session
	transport  Transport
	dirty      bool
	lastErr    string

	// pendingOffset is where playback should land once the session being
	// opened becomes ready; pendingAutoplay is whether it should start
	// playing when it does. Pause and Stop during Buffering act on these.
	pendingOffset   time.Duration
	pendingAutoplay bool
}

// New creates a controller. The syncer's confirmation callback is claimed
// to maintain the dirty flag.
func New(fetcher Fetcher, progress *syncer.Syncer) *Controller {
	c := &Controller{
		fetcher:     fetcher,
		sync:        progress,
		openTimeout: time.Duration(viper.GetInt(key.PlayerOpenTimeout)) * time.Second,
		openRetries: viper.GetInt(key.PlayerOpenRetries),
		backoff:     time.Second,
	}
	if c.openTimeout <= 0 {
		c.openTimeout = 10 * time.Second
	}
	progress.OnConfirm(c.confirmed)
	return c
}

// LoadBook switches playback to a book, resuming from its last-known
// progress. Any current session is flushed and closed. The stream opens
// asynchronously; the controller reports Buffering until it is ready.
func (c *Controller) LoadBook(book *library.Book) error {
	if len(book.Tracks) == 0 {
		return fmt.Errorf("%q has no audio tracks", book.Title)
	}

	c.mu.Lock()
	c.flushLocked()
	c.closeSessionLocked()

	c.gen++
	gen := c.gen
	c.book = book
	c.trackIndex = book.Resume.TrackIndex
	if c.trackIndex < 0 || c.trackIndex >= len(book.Tracks) {
		c.trackIndex = 0
	}
	c.pendingOffset = book.Resume.Offset
	c.pendingAutoplay = true
	c.transport = Buffering
	c.lastErr = ""
	track := book.Tracks[c.trackIndex]
	offset := c.pendingOffset
	c.mu.Unlock()

	log.Infof("loading %q from track %d at %s", book.Title, track.Index, offset)
	go c.openTrack(gen, book, track, offset)
	return nil
}

// TogglePlayPause flips between Playing and Paused. While a track is still
// opening it flips whether the open lands playing or paused. Duplicate
// presses in the same state are no-ops by construction.
func (c *Controller) TogglePlayPause() {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.transport {
	case Playing:
		c.pauseLocked()
	case Paused:
		c.resumeLocked()
	case Buffering, Seeking:
		c.pendingAutoplay = !c.pendingAutoplay
	}
}

// Pause suspends playback. During Buffering the pending open lands paused
// instead; otherwise a no-op unless playing.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.transport {
	case Playing:
		c.pauseLocked()
	case Buffering, Seeking:
		c.pendingAutoplay = false
	}
}

// Resume restarts paused playback. A no-op unless paused or buffering.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch c.transport {
	case Paused:
		c.resumeLocked()
	case Buffering, Seeking:
		c.pendingAutoplay = true
	}
}

// Seek moves the playhead by delta. Seeking past the end of the current
// track carries the overflow into the following tracks; seeking past the
// end of the book stops playback. Backward seeks clamp at zero.
func (c *Controller) Seek(delta time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.session == nil || (c.transport != Playing && c.transport != Paused) {
		return
	}

	target := c.session.Position() + delta
	track := c.book.Tracks[c.trackIndex]

	if target >= 0 && target <= track.Duration {
		if err := c.session.SeekTo(target); err != nil {
			log.Warnf("seek failed: %v", err)
			return
		}
		c.dirty = true
		return
	}

	if target < 0 {
		if err := c.session.SeekTo(0); err != nil {
			log.Warnf("seek failed: %v", err)
			return
		}
		c.dirty = true
		return
	}

	// Overflow crosses a track boundary. Map the book-global target back
	// onto a (track, offset) pair, which also handles carrying across
	// several short tracks at once.
	global := track.StartOffset + target
	if global >= c.book.Duration {
		c.stopLocked()
		return
	}
	index, offset := c.book.TrackForPosition(global)
	c.switchTrackLocked(index, offset, Seeking)
}

// NextTrack advances to the following track, or stops at the end of the book.
func (c *Controller) NextTrack() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.book == nil || c.session == nil {
		return
	}
	if c.trackIndex+1 >= len(c.book.Tracks) {
		c.stopLocked()
		return
	}
	c.switchTrackLocked(c.trackIndex+1, 0, Buffering)
}

// PreviousTrack goes back one track, or restarts the first.
func (c *Controller) PreviousTrack() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.book == nil || c.session == nil {
		return
	}
	index := c.trackIndex - 1
	if index < 0 {
		index = 0
	}
	c.switchTrackLocked(index, 0, Buffering)
}

// Stop ends playback, flushing a final progress sync. The loaded book is
// kept so playback can restart from the synced position.
func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

// Tick drives time-based work and must be called periodically (once per
// render tick is fine). While playing it feeds the debounced sync and
// keeps the dirty flag honest.
func (c *Controller) Tick() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.transport != Playing || c.book == nil || c.session == nil {
		return
	}
	c.dirty = true
	global := c.book.GlobalPosition(c.trackIndex, c.session.Position())
	c.sync.Sync(c.book.ID, global.Seconds(), c.book.Duration.Seconds())
}

// Snapshot returns a read-only view of the current playback state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Book:       c.book,
		TrackIndex: c.trackIndex,
		Transport:  c.transport,
		Dirty:      c.dirty,
		Err:        c.lastErr,
	}
	if c.book == nil {
		return snap
	}

	track := c.book.Tracks[c.trackIndex]
	snap.TrackTitle = track.Title
	snap.Duration = track.Duration

	if c.session != nil {
		snap.Position = c.session.Position()
	} else {
		snap.Position = c.pendingOffset
	}
	snap.Global = c.book.GlobalPosition(c.trackIndex, snap.Position)

	if chapter, ok := c.book.ChapterAt(snap.Global); ok {
		snap.Chapter = chapter.Title
	}
	return snap
}

// Shutdown stops playback and gives in-flight syncs a bounded chance to
// finish.
func (c *Controller) Shutdown(ctx context.Context) {
	c.mu.Lock()
	c.gen++
	c.flushLocked()
	c.closeSessionLocked()
	c.transport = Stopped
	c.mu.Unlock()

	c.sync.Shutdown(ctx)
}

func (c *Controller) pauseLocked() {
	if err := c.session.Pause(); err != nil {
		log.Warnf("pause failed: %v", err)
		return
	}
	c.transport = Paused
	c.flushLocked()
}

func (c *Controller) resumeLocked() {
	if err := c.session.Play(); err != nil {
		log.Warnf("resume failed: %v", err)
		return
	}
	c.transport = Playing
}

func (c *Controller) stopLocked() {
	// Invalidate any open still in flight so a buffering track cannot
	// start playing after the user stopped.
	c.gen++
	c.flushLocked()
	c.closeSessionLocked()
	if c.book != nil {
		c.book.Resume = library.Progress{TrackIndex: c.trackIndex, Offset: c.pendingOffset}
	}
	c.transport = Stopped
}

// switchTrackLocked closes the current session and opens another track of
// the same book. Playback resumes automatically if it was running. The via
// transport is shown while the open is in flight: Seeking for seek-induced
// switches, Buffering otherwise. Both resolve to Playing or Paused.
func (c *Controller) switchTrackLocked(index int, offset time.Duration, via Transport) {
	autoplay := c.transport == Playing

	c.flushLocked()
	c.closeSessionLocked()

	c.gen++
	gen := c.gen
	c.trackIndex = index
	c.pendingOffset = offset
	c.pendingAutoplay = autoplay
	c.transport = via
	track := c.book.Tracks[index]

	go c.openTrack(gen, c.book, track, offset)
}

// flushLocked pushes the current position immediately, if there is one.
func (c *Controller) flushLocked() {
	if c.book == nil || c.session == nil {
		return
	}
	global := c.book.GlobalPosition(c.trackIndex, c.session.Position())
	c.sync.Flush(c.book.ID, global.Seconds(), c.book.Duration.Seconds())
}

func (c *Controller) closeSessionLocked() {
	if c.session == nil {
		return
	}
	if c.book != nil {
		c.pendingOffset = c.session.Position()
	}
	if err := c.session.Close(); err != nil {
		log.Warnf("closing stream: %v", err)
	}
	c.session = nil
}

// openTrack fetches and opens a track off the caller's goroutine, retrying
// transient failures a bounded number of times. Results tagged with a stale
// generation are discarded: the user has moved on.
func (c *Controller) openTrack(gen uint64, book *library.Book, track library.Track, offset time.Duration) {
	var session *stream.Session
	var err error

	for attempt := 0; attempt <= c.openRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(c.backoff * time.Duration(attempt))
		}
		if c.stale(gen) {
			return
		}

		session, err = c.tryOpen(gen, book, track, offset)
		if err == nil {
			break
		}
		log.Warnf("opening track %d of %q failed (attempt %d/%d): %v",
			track.Index, book.Title, attempt+1, c.openRetries+1, err)
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		if session != nil {
			_ = session.Close()
		}
		return
	}

	if err != nil {
		c.transport = Stopped
		c.lastErr = fmt.Sprintf("cannot play %q: %v", track.Title, err)
		c.mu.Unlock()
		return
	}

	c.session = session
	c.lastErr = ""
	if c.pendingAutoplay {
		if err := session.Play(); err != nil {
			log.Warnf("starting playback: %v", err)
		}
		c.transport = Playing
	} else {
		c.transport = Paused
	}
	c.mu.Unlock()

	go c.watch(gen, session, book, track)
}

func (c *Controller) tryOpen(gen uint64, book *library.Book, track library.Track, offset time.Duration) (*stream.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.openTimeout)
	defer cancel()

	path, err := c.fetcher.FetchTrack(ctx, book.ID, track)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", stream.ErrUnavailable, err)
	}
	if c.stale(gen) {
		return nil, context.Canceled
	}

	session, err := stream.Open(ctx, path, track)
	if err != nil {
		return nil, err
	}

	if offset > 0 {
		if err := session.SeekTo(offset); err != nil {
			_ = session.Close()
			return nil, err
		}
	}
	return session, nil
}

// watch waits for the session to end and decides what happens next: advance
// on a clean end, retry the same track on a stream error, stop at the end
// of the book.
func (c *Controller) watch(gen uint64, session *stream.Session, book *library.Book, track library.Track) {
	<-session.Done()

	c.mu.Lock()
	if gen != c.gen || c.session != session {
		c.mu.Unlock()
		return
	}

	if err := session.Err(); err != nil {
		// Died mid-stream. Reopen the same track where it stopped.
		position := session.Position()
		log.Warnf("stream for track %d of %q ended with error at %s: %v", track.Index, book.Title, position, err)

		c.session = nil
		_ = session.Close()
		c.gen++
		c.pendingOffset = position
		c.pendingAutoplay = c.transport == Playing
		c.transport = Buffering
		next := c.gen
		c.mu.Unlock()

		go c.openTrack(next, book, track, position)
		return
	}

	// Clean end of track.
	c.transport = TrackEnded
	c.session = nil
	_ = session.Close()

	global := book.GlobalPosition(track.Index, track.Duration)
	c.sync.Flush(book.ID, global.Seconds(), book.Duration.Seconds())

	if track.Index+1 < len(book.Tracks) {
		c.gen++
		next := c.gen
		c.trackIndex = track.Index + 1
		c.pendingOffset = 0
		c.pendingAutoplay = true
		c.transport = Buffering
		nextTrack := book.Tracks[c.trackIndex]
		c.mu.Unlock()

		log.Infof("advancing to track %d of %q", nextTrack.Index, book.Title)
		go c.openTrack(next, book, nextTrack, 0)
		return
	}

	c.pendingOffset = track.Duration
	c.transport = Stopped
	c.mu.Unlock()
	log.Infof("finished %q", book.Title)
}

func (c *Controller) stale(gen uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return gen != c.gen
}

// confirmed clears the dirty flag after the server acknowledged a position
// for the currently loaded book.
func (c *Controller) confirmed(bookID string, _ float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.book != nil && c.book.ID == bookID {
		c.dirty = false
	}
}
