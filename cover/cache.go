// Package cover fetches, decodes and caches book cover art for terminal
// display. Decoded bitmaps live in a small LRU cache; encoded escape
// payloads are derived per protocol and cell geometry on demand and share
// the lifetime of their bitmap.
package cover

import (
	"bytes"
	"container/list"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"sync"
	"time"

	"github.com/spf13/viper"

	"github.com/decibelle-cli/decibelle/key"
	"github.com/decibelle-cli/decibelle/log"
	"github.com/decibelle-cli/decibelle/termgfx"
)

// ErrUnavailable reports that a cover recently failed to fetch or decode and
// is inside its cooldown window. Callers should show a placeholder instead of
// retrying.
var ErrUnavailable = errors.New("cover art unavailable")

const (
	// defaultLimit is the fallback cache size when cache.covers is unset
	// or invalid. Only on-screen and adjacent items ever need art, so
	// this stays small.
	defaultLimit = 16

	defaultCooldown     = 30 * time.Second
	defaultFetchTimeout = 5 * time.Second
)

// Fetcher retrieves the raw cover image bytes for a book.
type Fetcher interface {
	FetchCover(ctx context.Context, bookID string) ([]byte, error)
}

type encodeKey struct {
	protocol termgfx.Protocol
	cells    termgfx.Size
}

// Entry is a decoded cover. The bitmap is immutable once the entry exists;
// encoded payloads are produced lazily per protocol and geometry.
type Entry struct {
	Bitmap image.Image

	mu      sync.Mutex
	encoded map[encodeKey][]byte
}

// Render returns the terminal escape payload for this cover, encoding it on
// first use and caching the result. A payload the protocol rejects as too
// large is retried once at half the cell rectangle before giving up.
func (e *Entry) Render(enc termgfx.Encoder, cells termgfx.Size) ([]byte, error) {
	key := encodeKey{protocol: enc.Protocol(), cells: cells}

	e.mu.Lock()
	defer e.mu.Unlock()

	if payload, ok := e.encoded[key]; ok {
		return payload, nil
	}

	payload, err := enc.Encode(e.Bitmap, cells)
	if errors.Is(err, termgfx.ErrTooLarge) {
		half := termgfx.Size{Width: cells.Width / 2, Height: cells.Height / 2}
		log.Warnf("cover exceeds %s ceiling at %dx%d cells, retrying at %dx%d",
			enc.Protocol(), cells.Width, cells.Height, half.Width, half.Height)
		payload, err = enc.Encode(e.Bitmap, half)
	}
	if err != nil {
		return nil, err
	}

	if e.encoded == nil {
		e.encoded = make(map[encodeKey][]byte)
	}
	e.encoded[key] = payload
	return payload, nil
}

type pending struct {
	done  chan struct{}
	entry *Entry
	err   error
}

// Cache is a coalescing LRU of decoded covers. Concurrent requests for the
// same unseen cover share a single fetch; failed covers enter a cooldown
// window during which they resolve immediately to ErrUnavailable.
type Cache struct {
	fetcher      Fetcher
	limit        int
	cooldown     time.Duration
	fetchTimeout time.Duration

	mu       sync.Mutex
	order    *list.List
	entries  map[string]*list.Element
	inflight map[string]*pending
	failures map[string]time.Time
}

type lruItem struct {
	key   string
	entry *Entry
}

// New creates a cover cache over the given fetcher, sized by the
// cache.covers setting.
func New(fetcher Fetcher) *Cache {
	limit := viper.GetInt(key.CacheCovers)
	if limit <= 0 {
		limit = defaultLimit
	}
	return &Cache{
		fetcher:      fetcher,
		limit:        limit,
		cooldown:     defaultCooldown,
		fetchTimeout: defaultFetchTimeout,
		order:        list.New(),
		entries:      make(map[string]*list.Element),
		inflight:     make(map[string]*pending),
		failures:     make(map[string]time.Time),
	}
}

// GetOrFetch returns the decoded cover for a book, fetching it if needed.
// At most one fetch per book is in flight at any time; later callers await
// the first. Blocks until the entry is available, the fetch fails, or ctx
// is done.
func (c *Cache) GetOrFetch(ctx context.Context, bookID string) (*Entry, error) {
	c.mu.Lock()

	if elem, ok := c.entries[bookID]; ok {
		c.order.MoveToFront(elem)
		entry := elem.Value.(*lruItem).entry
		c.mu.Unlock()
		return entry, nil
	}

	if until, ok := c.failures[bookID]; ok {
		if time.Now().Before(until) {
			c.mu.Unlock()
			return nil, ErrUnavailable
		}
		delete(c.failures, bookID)
	}

	if p, ok := c.inflight[bookID]; ok {
		c.mu.Unlock()
		return c.await(ctx, p)
	}

	p := &pending{done: make(chan struct{})}
	c.inflight[bookID] = p
	c.mu.Unlock()

	go c.fetch(bookID, p)
	return c.await(ctx, p)
}

// Peek returns a cached cover without fetching. Useful on the render path,
// which must never block.
func (c *Cache) Peek(bookID string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[bookID]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(elem)
	return elem.Value.(*lruItem).entry, true
}

// Len reports the number of decoded covers currently held.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache) await(ctx context.Context, p *pending) (*Entry, error) {
	select {
	case <-p.done:
		return p.entry, p.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Cache) fetch(bookID string, p *pending) {
	ctx, cancel := context.WithTimeout(context.Background(), c.fetchTimeout)
	defer cancel()

	entry, err := c.fetchAndDecode(ctx, bookID)

	c.mu.Lock()
	delete(c.inflight, bookID)
	if err != nil {
		c.failures[bookID] = time.Now().Add(c.cooldown)
		log.Warnf("cover fetch for %s failed: %v", bookID, err)
	} else {
		c.insert(bookID, entry)
	}
	c.mu.Unlock()

	p.entry, p.err = entry, err
	close(p.done)
}

func (c *Cache) fetchAndDecode(ctx context.Context, bookID string) (*Entry, error) {
	raw, err := c.fetcher.FetchCover(ctx, bookID)
	if err != nil {
		return nil, err
	}

	bitmap, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("decode cover: %w", err)
	}

	return &Entry{Bitmap: bitmap}, nil
}

// insert adds an entry at the front of the LRU, evicting from the back.
// Callers hold c.mu.
func (c *Cache) insert(bookID string, entry *Entry) {
	c.entries[bookID] = c.order.PushFront(&lruItem{key: bookID, entry: entry})

	for c.order.Len() > c.limit {
		oldest := c.order.Back()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*lruItem).key)
	}
}
