package playback

import (
	"context"

	"github.com/decibelle-cli/decibelle/api"
	"github.com/decibelle-cli/decibelle/library"
)

// ClientFetcher adapts the server client to the Fetcher interface, caching
// each track on disk before it is decoded.
type ClientFetcher struct {
	client *api.Client
}

func NewClientFetcher(client *api.Client) ClientFetcher {
	return ClientFetcher{client: client}
}

func (f ClientFetcher) FetchTrack(ctx context.Context, bookID string, track library.Track) (string, error) {
	return f.client.DownloadTrack(ctx, bookID, api.AudioTrack{
		Index:       track.Index,
		Title:       track.Title,
		StartOffset: track.StartOffset.Seconds(),
		Duration:    track.Duration.Seconds(),
		ContentURL:  track.ContentURL,
		MimeType:    track.MimeType,
	})
}
