// Package syncer pushes local playback positions back to the server. It is
// deliberately decoupled from the playback transport: audio must never wait
// on a progress write, and a lost write only costs staleness.
package syncer

import (
	"context"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/decibelle-cli/decibelle/key"
	"github.com/decibelle-cli/decibelle/log"
)

// Pusher writes one progress record to the server.
type Pusher interface {
	PushProgress(ctx context.Context, bookID string, position, duration float64) error
}

// ticket is one outstanding progress write. At most one exists per book;
// a newer position supersedes a ticket that is still in flight.
type ticket struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Syncer debounces and retries progress writes. All methods return without
// blocking on the network.
type Syncer struct {
	pusher   Pusher
	interval time.Duration
	timeout  time.Duration
	retries  int
	backoff  time.Duration

	// onConfirm runs after a write the server acknowledged, with the
	// confirmed position. The playback controller uses it to clear the
	// dirty flag.
	onConfirm func(bookID string, position float64)

	mu          sync.Mutex
	inflight    map[string]*ticket
	lastSuccess map[string]time.Time
}

// New creates a syncer over the given pusher, configured from the settings.
func New(pusher Pusher) *Syncer {
	s := &Syncer{
		pusher:      pusher,
		interval:    time.Duration(viper.GetInt(key.PlayerSyncInterval)) * time.Second,
		timeout:     time.Duration(viper.GetInt(key.PlayerSyncTimeout)) * time.Second,
		retries:     viper.GetInt(key.PlayerSyncRetries),
		backoff:     500 * time.Millisecond,
		inflight:    make(map[string]*ticket),
		lastSuccess: make(map[string]time.Time),
	}
	if s.interval <= 0 {
		s.interval = 10 * time.Second
	}
	if s.timeout <= 0 {
		s.timeout = 5 * time.Second
	}
	return s
}

// OnConfirm registers the confirmed-write callback. Must be set before the
// first submission.
func (s *Syncer) OnConfirm(fn func(bookID string, position float64)) {
	s.onConfirm = fn
}

// Sync submits a position while playing. It is debounced: nothing happens
// until the sync interval has elapsed since the last confirmed write for
// this book, so it is safe to call on every tick.
func (s *Syncer) Sync(bookID string, position, duration float64) {
	s.submit(bookID, position, duration, false)
}

// Flush submits a position immediately, bypassing the debounce. Used on
// pause, stop, track switches and shutdown, where the position is final.
func (s *Syncer) Flush(bookID string, position, duration float64) {
	s.submit(bookID, position, duration, true)
}

// Shutdown waits for in-flight writes to settle, bounded by ctx. Writes
// still pending when the deadline passes are abandoned.
func (s *Syncer) Shutdown(ctx context.Context) {
	s.mu.Lock()
	pending := make([]*ticket, 0, len(s.inflight))
	for _, t := range s.inflight {
		pending = append(pending, t)
	}
	s.mu.Unlock()

	for _, t := range pending {
		select {
		case <-t.done:
		case <-ctx.Done():
			return
		}
	}
}

func (s *Syncer) submit(bookID string, position, duration float64, force bool) {
	s.mu.Lock()

	if !force && time.Since(s.lastSuccess[bookID]) < s.interval {
		s.mu.Unlock()
		return
	}

	if prev, ok := s.inflight[bookID]; ok {
		prev.cancel()
	}

	ctx, cancel := context.WithCancel(context.Background())
	t := &ticket{cancel: cancel, done: make(chan struct{})}
	s.inflight[bookID] = t
	s.mu.Unlock()

	go s.run(ctx, t, bookID, position, duration)
}

func (s *Syncer) run(ctx context.Context, t *ticket, bookID string, position, duration float64) {
	defer close(t.done)

	var err error
	for attempt := 0; attempt <= s.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.backoff << (attempt - 1)):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			// Superseded by a newer position. The newer ticket owns
			// the inflight slot now.
			return
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err = s.pusher.PushProgress(attemptCtx, bookID, position, duration)
		cancel()
		if err == nil {
			break
		}
		log.Warnf("progress sync for %s failed (attempt %d/%d): %v", bookID, attempt+1, s.retries+1, err)
	}

	s.mu.Lock()
	if s.inflight[bookID] == t {
		delete(s.inflight, bookID)
	}
	if err != nil {
		s.mu.Unlock()
		log.Warnf("dropping progress sync for %s at %.1fs", bookID, position)
		return
	}
	s.lastSuccess[bookID] = time.Now()
	confirm := s.onConfirm
	s.mu.Unlock()

	if confirm != nil {
		confirm(bookID, position)
	}
}
