package cover

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"

	"github.com/decibelle-cli/decibelle/key"
	"github.com/decibelle-cli/decibelle/termgfx"
)

type fakeFetcher struct {
	calls   atomic.Int64
	fail    bool
	garbage bool
	block   chan struct{}
}

func (f *fakeFetcher) FetchCover(ctx context.Context, bookID string) ([]byte, error) {
	f.calls.Add(1)
	if f.block != nil {
		<-f.block
	}
	if f.fail {
		return nil, errors.New("boom")
	}
	if f.garbage {
		return []byte("not an image"), nil
	}

	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func TestGetOrFetch(t *testing.T) {
	Convey("GetOrFetch", t, func() {
		ctx := context.Background()

		Convey("Fetches, decodes and caches the cover", func() {
			fetcher := &fakeFetcher{}
			cache := New(fetcher)

			entry, err := cache.GetOrFetch(ctx, "book-1")
			So(err, ShouldBeNil)
			So(entry.Bitmap, ShouldNotBeNil)

			again, err := cache.GetOrFetch(ctx, "book-1")
			So(err, ShouldBeNil)
			So(again, ShouldEqual, entry)
			So(fetcher.calls.Load(), ShouldEqual, 1)
		})

		Convey("The cache size follows the cache.covers setting", func() {
			viper.Set(key.CacheCovers, 3)
			So(New(&fakeFetcher{}).limit, ShouldEqual, 3)

			viper.Set(key.CacheCovers, 0)
			So(New(&fakeFetcher{}).limit, ShouldEqual, defaultLimit)
		})

		Convey("Peek never fetches", func() {
			fetcher := &fakeFetcher{}
			cache := New(fetcher)

			_, ok := cache.Peek("book-1")
			So(ok, ShouldBeFalse)
			So(fetcher.calls.Load(), ShouldEqual, 0)
		})

		Convey("Concurrent callers for one unseen cover share a single fetch", func() {
			fetcher := &fakeFetcher{block: make(chan struct{})}
			cache := New(fetcher)

			const callers = 8
			var wg sync.WaitGroup
			entries := make([]*Entry, callers)
			for i := 0; i < callers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					entries[i], _ = cache.GetOrFetch(ctx, "book-1")
				}(i)
			}

			time.Sleep(50 * time.Millisecond)
			close(fetcher.block)
			wg.Wait()

			So(fetcher.calls.Load(), ShouldEqual, 1)
			for _, entry := range entries {
				So(entry, ShouldEqual, entries[0])
			}
		})

		Convey("A failed fetch enters cooldown and is not retried immediately", func() {
			fetcher := &fakeFetcher{fail: true}
			cache := New(fetcher)

			_, err := cache.GetOrFetch(ctx, "book-1")
			So(err, ShouldNotBeNil)

			_, err = cache.GetOrFetch(ctx, "book-1")
			So(err, ShouldEqual, ErrUnavailable)
			So(fetcher.calls.Load(), ShouldEqual, 1)
		})

		Convey("Cooldown expires and the fetch is attempted again", func() {
			fetcher := &fakeFetcher{fail: true}
			cache := New(fetcher)
			cache.cooldown = 10 * time.Millisecond

			cache.GetOrFetch(ctx, "book-1")
			time.Sleep(20 * time.Millisecond)
			fetcher.fail = false

			entry, err := cache.GetOrFetch(ctx, "book-1")
			So(err, ShouldBeNil)
			So(entry, ShouldNotBeNil)
			So(fetcher.calls.Load(), ShouldEqual, 2)
		})

		Convey("An undecodable payload fails like a network error", func() {
			fetcher := &fakeFetcher{garbage: true}
			cache := New(fetcher)

			_, err := cache.GetOrFetch(ctx, "book-1")
			So(err, ShouldNotBeNil)

			_, err = cache.GetOrFetch(ctx, "book-1")
			So(err, ShouldEqual, ErrUnavailable)
		})

		Convey("A canceled context releases the waiter without poisoning the cache", func() {
			fetcher := &fakeFetcher{block: make(chan struct{})}
			cache := New(fetcher)

			canceled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := cache.GetOrFetch(canceled, "book-1")
			So(errors.Is(err, context.Canceled), ShouldBeTrue)

			close(fetcher.block)
			entry, err := cache.GetOrFetch(ctx, "book-1")
			So(err, ShouldBeNil)
			So(entry, ShouldNotBeNil)
		})

		Convey("Eviction is strict LRU", func() {
			fetcher := &fakeFetcher{}
			cache := New(fetcher)
			cache.limit = 2

			cache.GetOrFetch(ctx, "a")
			cache.GetOrFetch(ctx, "b")
			cache.GetOrFetch(ctx, "a") // refresh a
			cache.GetOrFetch(ctx, "c") // evicts b

			So(cache.Len(), ShouldEqual, 2)
			_, ok := cache.Peek("a")
			So(ok, ShouldBeTrue)
			_, ok = cache.Peek("b")
			So(ok, ShouldBeFalse)
			_, ok = cache.Peek("c")
			So(ok, ShouldBeTrue)
		})
	})
}

type countingEncoder struct {
	protocol termgfx.Protocol
	calls    int
	ceiling  int
	sizes    []termgfx.Size
}

func (e *countingEncoder) Protocol() termgfx.Protocol {
	return e.protocol
}

func (e *countingEncoder) Encode(_ image.Image, cells termgfx.Size) ([]byte, error) {
	e.calls++
	e.sizes = append(e.sizes, cells)
	if e.ceiling > 0 && cells.Width > e.ceiling {
		return nil, termgfx.ErrTooLarge
	}
	return []byte(fmt.Sprintf("%dx%d", cells.Width, cells.Height)), nil
}

func TestRender(t *testing.T) {
	Convey("Entry.Render", t, func() {
		entry := &Entry{Bitmap: image.NewRGBA(image.Rect(0, 0, 4, 4))}

		Convey("Encodes once per protocol and geometry", func() {
			enc := &countingEncoder{protocol: termgfx.Kitty}

			first, err := entry.Render(enc, termgfx.Size{Width: 10, Height: 5})
			So(err, ShouldBeNil)
			second, err := entry.Render(enc, termgfx.Size{Width: 10, Height: 5})
			So(err, ShouldBeNil)
			So(string(second), ShouldEqual, string(first))
			So(enc.calls, ShouldEqual, 1)

			_, err = entry.Render(enc, termgfx.Size{Width: 20, Height: 10})
			So(err, ShouldBeNil)
			So(enc.calls, ShouldEqual, 2)
		})

		Convey("A too-large payload is retried once at half the rectangle", func() {
			enc := &countingEncoder{protocol: termgfx.Sixel, ceiling: 50}

			payload, err := entry.Render(enc, termgfx.Size{Width: 80, Height: 40})
			So(err, ShouldBeNil)
			So(string(payload), ShouldEqual, "40x20")
			So(enc.sizes, ShouldResemble, []termgfx.Size{
				{Width: 80, Height: 40},
				{Width: 40, Height: 20},
			})
		})

		Convey("A second rejection is surfaced", func() {
			enc := &countingEncoder{protocol: termgfx.Sixel, ceiling: 10}

			_, err := entry.Render(enc, termgfx.Size{Width: 80, Height: 40})
			So(errors.Is(err, termgfx.ErrTooLarge), ShouldBeTrue)
		})
	})
}
