// Package api implements the HTTP client for Audiobookshelf-compatible servers.
package api

// Library is a top-level media collection on the server.
type Library struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	MediaType string `json:"mediaType"`
	Icon      string `json:"icon,omitempty"`
	Provider  string `json:"provider,omitempty"`
}

type librariesResponse struct {
	Libraries []Library `json:"libraries"`
}

// LibraryItem is a single book entry, minified in list responses and
// expanded (tracks, chapters) when fetched individually.
type LibraryItem struct {
	ID        string `json:"id"`
	LibraryID string `json:"libraryId"`
	MediaType string `json:"mediaType,omitempty"`
	Media     *Media `json:"media,omitempty"`
	IsMissing bool   `json:"isMissing,omitempty"`
	AddedAt   int64  `json:"addedAt,omitempty"`
	UpdatedAt int64  `json:"updatedAt,omitempty"`
}

// Media carries the audio payload description of a library item.
type Media struct {
	Metadata  MediaMetadata `json:"metadata"`
	CoverPath string        `json:"coverPath,omitempty"`
	Duration  float64       `json:"duration,omitempty"`
	Tracks    []AudioTrack  `json:"tracks,omitempty"`
	Chapters  []Chapter     `json:"chapters,omitempty"`
	NumTracks int           `json:"numTracks,omitempty"`
}

// MediaMetadata mirrors the server's book metadata, minified fields included.
type MediaMetadata struct {
	Title         string   `json:"title"`
	Subtitle      string   `json:"subtitle,omitempty"`
	AuthorName    string   `json:"authorName,omitempty"`
	NarratorName  string   `json:"narratorName,omitempty"`
	SeriesName    string   `json:"seriesName,omitempty"`
	Genres        []string `json:"genres,omitempty"`
	PublishedYear string   `json:"publishedYear,omitempty"`
	Description   string   `json:"description,omitempty"`
	Language      string   `json:"language,omitempty"`
}

// AudioTrack is one playable file of a book, positioned on the book's global timeline.
type AudioTrack struct {
	Index       int     `json:"index"`
	StartOffset float64 `json:"startOffset"`
	Duration    float64 `json:"duration"`
	Title       string  `json:"title"`
	ContentURL  string  `json:"contentUrl"`
	MimeType    string  `json:"mimeType"`
}

// EndOffset returns the track's end position on the book timeline, in seconds.
func (t *AudioTrack) EndOffset() float64 {
	return t.StartOffset + t.Duration
}

// ContainsTimestamp reports whether a book-global position falls inside this track.
func (t *AudioTrack) ContainsTimestamp(position float64) bool {
	return position >= t.StartOffset && position < t.EndOffset()
}

// Chapter is a titled span on the book's global timeline.
type Chapter struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Title string  `json:"title"`
}

type libraryItemsResponse struct {
	Results []LibraryItem `json:"results"`
	Total   int           `json:"total,omitempty"`
	Page    int           `json:"page,omitempty"`
}

// PersonalizedShelf is one row of the server's personalized home view.
type PersonalizedShelf struct {
	ID       string        `json:"id"`
	Label    string        `json:"label"`
	Type     string        `json:"type"`
	Entities []LibraryItem `json:"entities"`
}

// MediaProgress is the server's progress record for one book.
type MediaProgress struct {
	ID            string  `json:"id"`
	LibraryItemID string  `json:"libraryItemId"`
	Duration      float64 `json:"duration"`
	Progress      float64 `json:"progress"`
	CurrentTime   float64 `json:"currentTime"`
	IsFinished    bool    `json:"isFinished"`
	LastUpdate    int64   `json:"lastUpdate"`
}

// playbackSession is the (partial) response of POST /api/items/{id}/play.
type playbackSession struct {
	ID          string       `json:"id"`
	AudioTracks []AudioTrack `json:"audioTracks"`
}
