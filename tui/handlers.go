// Package tui provides the primary terminal user interface implementation.
package tui

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/samber/lo"
	"github.com/spf13/viper"

	"github.com/decibelle-cli/decibelle/api"
	"github.com/decibelle-cli/decibelle/history"
	"github.com/decibelle-cli/decibelle/key"
	"github.com/decibelle-cli/decibelle/library"
	"github.com/decibelle-cli/decibelle/log"
	"github.com/decibelle-cli/decibelle/util"
)

// requestTimeout bounds the browsing calls issued from the UI. Playback and
// sync carry their own deadlines.
const requestTimeout = 15 * time.Second

type bookReadyMsg *library.Book

type coverMsg struct {
	bookID  string
	payload string
}

type coverFailedMsg struct {
	bookID string
}

type tickMsg time.Time

func (b *statefulBubble) loadLibraries() tea.Cmd {
	return func() tea.Msg {
		b.progressStatus = "Connecting to " + b.client.BaseURL()
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		libraries, err := b.client.Libraries(ctx)
		if err != nil {
			log.Error(err)
			b.errorChannel <- err
			return nil
		}

		log.Infof("found %s", util.Quantify(len(libraries), "library", "libraries"))
		b.librariesChannel <- libraries
		return nil
	}
}

func (b *statefulBubble) waitForLibraries() tea.Cmd {
	return func() tea.Msg {
		select {
		case libraries := <-b.librariesChannel:
			return libraries
		case err := <-b.errorChannel:
			b.lastError = err
			return err
		}
	}
}

func (b *statefulBubble) loadBooks(lib *api.Library) tea.Cmd {
	return func() tea.Msg {
		b.progressStatus = "Fetching " + lib.Name
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		items, err := b.client.LibraryItems(ctx, lib.ID)
		if err != nil {
			log.Error(err)
			b.errorChannel <- err
			return nil
		}

		books := make([]*library.Book, 0, len(items))
		for i := range items {
			books = append(books, library.FromItem(&items[i]))
		}
		sort.Slice(books, func(i, j int) bool {
			return strings.Compare(books[i].Title, books[j].Title) < 0
		})

		log.Infof("found %s in %s", util.Quantify(len(books), "book", "books"), lib.Name)
		b.booksChannel <- books
		return nil
	}
}

func (b *statefulBubble) waitForBooks() tea.Cmd {
	return func() tea.Msg {
		select {
		case books := <-b.booksChannel:
			return books
		case err := <-b.errorChannel:
			b.lastError = err
			return err
		}
	}
}

// openBook resolves everything playback needs for a book: the expanded
// item, its audio tracks and the server's resume point.
func (b *statefulBubble) openBook(bookID string) tea.Cmd {
	return func() tea.Msg {
		b.progressStatus = "Opening book"
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		book, err := b.resolveBook(ctx, bookID, -1)
		if err != nil {
			log.Error(err)
			b.errorChannel <- err
			return nil
		}

		b.bookReadyChannel <- book
		return nil
	}
}

// resolveBook fetches the expanded item and its resume point. A non-negative
// resumeAt overrides the server progress record (used by continue-listening,
// which already knows the position).
func (b *statefulBubble) resolveBook(ctx context.Context, bookID string, resumeAt float64) (*library.Book, error) {
	item, err := b.client.Item(ctx, bookID)
	if err != nil {
		return nil, err
	}

	book := library.FromItem(item)
	if len(book.Tracks) == 0 {
		// The item was served minified. A play session negotiation returns
		// the track list.
		tracks, err := b.client.OpenPlaybackSession(ctx, bookID)
		if err != nil {
			return nil, err
		}
		for i, t := range tracks {
			book.Tracks = append(book.Tracks, library.Track{
				Index:       i,
				Title:       t.Title,
				StartOffset: time.Duration(t.StartOffset * float64(time.Second)),
				Duration:    time.Duration(t.Duration * float64(time.Second)),
				ContentURL:  t.ContentURL,
				MimeType:    t.MimeType,
			})
		}
	}
	if len(book.Tracks) == 0 {
		return nil, fmt.Errorf("%q has no audio tracks", book.Title)
	}

	switch {
	case resumeAt >= 0:
		book.SetResume(resumeAt)
	default:
		progress, err := b.client.Progress(ctx, bookID)
		if err == nil {
			book.SetResume(progress.CurrentTime)
		} else if !errors.Is(err, api.ErrNotFound) {
			log.Warnf("fetching progress for %s: %v", bookID, err)
		}
	}

	return book, nil
}

func (b *statefulBubble) waitForBookReady() tea.Cmd {
	return func() tea.Msg {
		select {
		case book := <-b.bookReadyChannel:
			return bookReadyMsg(book)
		case err := <-b.errorChannel:
			b.lastError = err
			return err
		}
	}
}

// continueListening resolves the most recently played book: the server's
// continue-listening shelf first, the local history as a fallback when the
// server has nothing to offer.
func (b *statefulBubble) continueListening() tea.Cmd {
	return func() tea.Msg {
		b.progressStatus = "Looking up where you left off"
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		libraries, err := b.client.Libraries(ctx)
		if err == nil {
			for i := range libraries {
				item, position, err := b.client.ContinueListening(ctx, libraries[i].ID)
				if err != nil || item == nil {
					continue
				}

				book, err := b.resolveBook(ctx, item.ID, position)
				if err != nil {
					continue
				}
				b.bookReadyChannel <- book
				return nil
			}
		} else {
			log.Warnf("continue-listening shelf unavailable: %v", err)
		}

		// Server had nothing. Try the local history.
		saved, err := history.Get()
		if err != nil || len(saved) == 0 {
			b.errorChannel <- errors.New("nothing to continue: play something first")
			return nil
		}

		entries := lo.Values(saved)
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].LastPlayed.After(entries[j].LastPlayed)
		})

		book, err := b.resolveBook(ctx, entries[0].BookID, entries[0].Position)
		if err != nil {
			log.Error(err)
			b.errorChannel <- err
			return nil
		}
		b.bookReadyChannel <- book
		return nil
	}
}

func (b *statefulBubble) loadHistory() (tea.Cmd, error) {
	saved, err := history.Get()
	if err != nil {
		return nil, err
	}

	entries := lo.Values(saved)
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].LastPlayed.After(entries[j].LastPlayed)
	})

	var items []list.Item
	for _, e := range entries {
		items = append(items, &listItem{internal: e})
	}

	return b.historyC.SetItems(items), nil
}

// saveHistory records the playing book's position locally, so continuing
// works even when the server is unreachable next time.
func (b *statefulBubble) saveHistory() {
	if !viper.GetBool(key.HistorySaveOnListen) || b.selectedBook == nil {
		return
	}

	snap := b.controller.Snapshot()
	if err := history.Save(b.client.BaseURL(), b.selectedBook, snap.Global.Seconds()); err != nil {
		log.Warnf("saving history: %v", err)
	}
}

// fetchCover asks the cache for the playing book's art and encodes it for
// the detected protocol. Failures degrade to the placeholder silently.
func (b *statefulBubble) fetchCover(book *library.Book) tea.Cmd {
	cells := b.coverCells
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		entry, err := b.covers.GetOrFetch(ctx, book.CoverID)
		if err != nil {
			return coverFailedMsg{bookID: book.ID}
		}

		payload, err := entry.Render(b.encoder, cells)
		if err != nil {
			log.Warnf("encoding cover for %s: %v", book.ID, err)
			return coverFailedMsg{bookID: book.ID}
		}
		return coverMsg{bookID: book.ID, payload: string(payload)}
	}
}

// tick drives the player view refresh and the debounced progress sync.
func (b *statefulBubble) tick() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}
