package syncer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

type push struct {
	bookID   string
	position float64
}

type fakePusher struct {
	mu      sync.Mutex
	calls   []push
	failing bool
	block   chan struct{}
}

func (f *fakePusher) PushProgress(ctx context.Context, bookID string, position, duration float64) error {
	f.mu.Lock()
	f.calls = append(f.calls, push{bookID: bookID, position: position})
	failing, block := f.failing, f.block
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if failing {
		return errors.New("server unreachable")
	}
	return nil
}

func (f *fakePusher) pushes() []push {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]push(nil), f.calls...)
}

func newTestSyncer(p Pusher) *Syncer {
	return &Syncer{
		pusher:      p,
		interval:    10 * time.Second,
		timeout:     time.Second,
		retries:     2,
		backoff:     time.Millisecond,
		inflight:    make(map[string]*ticket),
		lastSuccess: make(map[string]time.Time),
	}
}

func settle(s *Syncer) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	s.Shutdown(ctx)
}

func TestSyncer(t *testing.T) {
	Convey("The progress syncer", t, func() {
		Convey("Flush pushes immediately and confirms", func() {
			pusher := &fakePusher{}
			s := newTestSyncer(pusher)

			var confirmedMu sync.Mutex
			var confirmed []push
			s.OnConfirm(func(bookID string, position float64) {
				confirmedMu.Lock()
				confirmed = append(confirmed, push{bookID, position})
				confirmedMu.Unlock()
			})

			s.Flush("book-1", 42, 300)
			settle(s)

			So(pusher.pushes(), ShouldResemble, []push{{"book-1", 42}})
			confirmedMu.Lock()
			So(confirmed, ShouldResemble, []push{{"book-1", 42}})
			confirmedMu.Unlock()
		})

		Convey("Sync is debounced against the last confirmed write", func() {
			pusher := &fakePusher{}
			s := newTestSyncer(pusher)

			s.Sync("book-1", 10, 300)
			settle(s)
			s.Sync("book-1", 11, 300)
			s.Sync("book-1", 12, 300)
			settle(s)

			So(pusher.pushes(), ShouldResemble, []push{{"book-1", 10}})
		})

		Convey("The debounce expires", func() {
			pusher := &fakePusher{}
			s := newTestSyncer(pusher)
			s.interval = 10 * time.Millisecond

			s.Sync("book-1", 10, 300)
			settle(s)
			time.Sleep(20 * time.Millisecond)
			s.Sync("book-1", 20, 300)
			settle(s)

			So(pusher.pushes(), ShouldResemble, []push{{"book-1", 10}, {"book-1", 20}})
		})

		Convey("A newer position supersedes an in-flight ticket", func() {
			pusher := &fakePusher{block: make(chan struct{})}
			s := newTestSyncer(pusher)

			var confirmedMu sync.Mutex
			var confirmed []push
			s.OnConfirm(func(bookID string, position float64) {
				confirmedMu.Lock()
				confirmed = append(confirmed, push{bookID, position})
				confirmedMu.Unlock()
			})

			s.Flush("book-1", 10, 300)
			time.Sleep(20 * time.Millisecond) // let the first attempt start
			s.Flush("book-1", 20, 300)
			close(pusher.block)
			settle(s)

			confirmedMu.Lock()
			So(confirmed, ShouldResemble, []push{{"book-1", 20}})
			confirmedMu.Unlock()
		})

		Convey("Failures retry a bounded number of times, then drop", func() {
			pusher := &fakePusher{failing: true}
			s := newTestSyncer(pusher)

			confirmed := false
			s.OnConfirm(func(string, float64) { confirmed = true })

			s.Flush("book-1", 10, 300)
			settle(s)

			So(len(pusher.pushes()), ShouldEqual, 3) // initial + 2 retries
			So(confirmed, ShouldBeFalse)

			Convey("and a later flush starts fresh", func() {
				pusher.mu.Lock()
				pusher.failing = false
				pusher.mu.Unlock()

				s.Flush("book-1", 20, 300)
				settle(s)
				So(len(pusher.pushes()), ShouldEqual, 4)
			})
		})

		Convey("Submission never blocks on the network", func() {
			pusher := &fakePusher{block: make(chan struct{})}
			s := newTestSyncer(pusher)

			start := time.Now()
			s.Flush("book-1", 10, 300)
			So(time.Since(start), ShouldBeLessThan, 100*time.Millisecond)
			close(pusher.block)
			settle(s)
		})

		Convey("Books sync independently", func() {
			pusher := &fakePusher{}
			s := newTestSyncer(pusher)

			s.Flush("book-1", 10, 300)
			s.Flush("book-2", 20, 600)
			settle(s)

			pushes := pusher.pushes()
			So(len(pushes), ShouldEqual, 2)
		})

		Convey("Shutdown respects its deadline", func() {
			pusher := &fakePusher{block: make(chan struct{})}
			s := newTestSyncer(pusher)

			s.Flush("book-1", 10, 300)
			ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
			defer cancel()

			start := time.Now()
			s.Shutdown(ctx)
			So(time.Since(start), ShouldBeLessThan, time.Second)
			close(pusher.block)
		})
	})
}
