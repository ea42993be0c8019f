package history

import (
	"fmt"
	"time"

	"github.com/decibelle-cli/decibelle/library"
	"github.com/decibelle-cli/decibelle/util"
)

// SavedBook represents a single book preserved in the user's listening history.
type SavedBook struct {
	ServerURL string `json:"server_url"`
	BookID    string `json:"book_id"`
	Title     string `json:"title"`
	Author    string `json:"author"`

	// Position is the book-global playhead in seconds.
	Position           float64 `json:"position"`
	DurationSeconds    float64 `json:"duration_seconds"`
	ListenedPercentage float64 `json:"listened_percentage"`

	LastPlayed time.Time `json:"last_played"`
}

func (s *SavedBook) encode() string {
	return fmt.Sprintf("%s (%s)", s.BookID, s.ServerURL)
}

func (s *SavedBook) String() string {
	position := time.Duration(s.Position * float64(time.Second))
	return fmt.Sprintf("%s : %s / %s", s.Title, util.FormatDuration(position), util.FormatDuration(time.Duration(s.DurationSeconds*float64(time.Second))))
}

func newSavedBook(serverURL string, book *library.Book) *SavedBook {
	return &SavedBook{
		ServerURL:       serverURL,
		BookID:          book.ID,
		Title:           book.Title,
		Author:          book.Author,
		DurationSeconds: book.Duration.Seconds(),
		LastPlayed:      time.Now(),
	}
}
