// Package library defines the domain models for browsing and playing remote audiobooks.
package library

import (
	"time"

	"github.com/decibelle-cli/decibelle/api"
)

// Track is an immutable descriptor of one playable audio file within a book.
type Track struct {
	// Index within the book's ordered track sequence, starting at 0.
	Index int
	// Title as reported by the server.
	Title string
	// StartOffset positions the track on the book's global timeline.
	StartOffset time.Duration
	// Duration of this track alone.
	Duration time.Duration
	// ContentURL is the server-relative stream location.
	ContentURL string
	// MimeType of the audio payload.
	MimeType string
}

// Progress is a resume point within a book.
type Progress struct {
	TrackIndex int
	Offset     time.Duration
}

// Chapter is a titled span on the book's global timeline.
type Chapter struct {
	Title string
	Start time.Duration
	End   time.Duration
}

// Book aggregates everything the player needs about one audiobook.
type Book struct {
	ID       string
	Title    string
	Author   string
	Narrator string
	Series   string

	// CoverID identifies the cover image on the server. Equal to the book ID
	// for Audiobookshelf, kept separate so caching stays content-addressed.
	CoverID string

	Tracks   []Track
	Chapters []Chapter

	// Duration of the whole book.
	Duration time.Duration

	// Resume holds the last-known remote progress, fetched when the book was listed.
	Resume Progress
}

func secs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// FromItem converts an expanded server item into a Book.
func FromItem(item *api.LibraryItem) *Book {
	book := &Book{
		ID:      item.ID,
		CoverID: item.ID,
	}

	if item.Media == nil {
		return book
	}

	media := item.Media
	book.Title = media.Metadata.Title
	book.Author = media.Metadata.AuthorName
	book.Narrator = media.Metadata.NarratorName
	book.Series = media.Metadata.SeriesName
	book.Duration = secs(media.Duration)

	for i, t := range media.Tracks {
		book.Tracks = append(book.Tracks, Track{
			Index:       i,
			Title:       t.Title,
			StartOffset: secs(t.StartOffset),
			Duration:    secs(t.Duration),
			ContentURL:  t.ContentURL,
			MimeType:    t.MimeType,
		})
	}

	for _, ch := range media.Chapters {
		book.Chapters = append(book.Chapters, Chapter{
			Title: ch.Title,
			Start: secs(ch.Start),
			End:   secs(ch.End),
		})
	}

	return book
}

// SetResume translates a book-global position in seconds into a track-local resume point.
func (b *Book) SetResume(globalSeconds float64) {
	index, offset := b.TrackForPosition(secs(globalSeconds))
	b.Resume = Progress{TrackIndex: index, Offset: offset}
}

// TrackForPosition maps a book-global position to a (track index, track-local offset) pair.
// Positions past the end of the book land at the end of the last track.
func (b *Book) TrackForPosition(global time.Duration) (int, time.Duration) {
	if len(b.Tracks) == 0 {
		return 0, 0
	}
	if global < 0 {
		global = 0
	}

	for _, t := range b.Tracks {
		if global < t.StartOffset+t.Duration {
			return t.Index, global - t.StartOffset
		}
	}

	last := b.Tracks[len(b.Tracks)-1]
	return last.Index, last.Duration
}

// GlobalPosition maps a track-local offset back onto the book's global timeline.
func (b *Book) GlobalPosition(trackIndex int, offset time.Duration) time.Duration {
	if trackIndex < 0 || trackIndex >= len(b.Tracks) {
		return offset
	}
	return b.Tracks[trackIndex].StartOffset + offset
}

// ChapterAt returns the chapter containing a book-global position, if any.
func (b *Book) ChapterAt(global time.Duration) (Chapter, bool) {
	for _, ch := range b.Chapters {
		if global >= ch.Start && global < ch.End {
			return ch, true
		}
	}
	return Chapter{}, false
}
