// Package api implements the HTTP client for Audiobookshelf-compatible servers.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/decibelle-cli/decibelle/constant"
	"github.com/decibelle-cli/decibelle/filesystem"
	"github.com/decibelle-cli/decibelle/key"
	"github.com/decibelle-cli/decibelle/log"
	"github.com/decibelle-cli/decibelle/network"
	"github.com/decibelle-cli/decibelle/where"
	"github.com/spf13/viper"
)

// Sentinel errors for server responses the caller may branch on.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized: check the configured API key")
)

// Client speaks the Audiobookshelf REST protocol. All operations are
// idempotent and safe to retry.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a Client from the global configuration.
func NewClient() *Client {
	return &Client{
		baseURL: strings.TrimRight(viper.GetString(key.ServerURL), "/"),
		apiKey:  viper.GetString(key.ServerAPIKey),
		http:    network.Client,
	}
}

// NewClientWith builds a Client against an explicit server, bypassing global configuration.
func NewClientWith(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    network.Client,
	}
}

// BaseURL returns the configured server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("User-Agent", constant.UserAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, target any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode >= 400:
		return fmt.Errorf("%s %s: unexpected status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	if target == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(target)
}

// Libraries fetches all libraries visible to the authenticated user.
func (c *Client) Libraries(ctx context.Context) ([]Library, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/libraries", nil)
	if err != nil {
		return nil, err
	}

	var wrapper librariesResponse
	if err := c.do(req, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Libraries, nil
}

// LibraryItems fetches the (minified) item listing of a library.
func (c *Client) LibraryItems(ctx context.Context, libraryID string) ([]LibraryItem, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/libraries/%s/items", libraryID), nil)
	if err != nil {
		return nil, err
	}

	var wrapper libraryItemsResponse
	if err := c.do(req, &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Results, nil
}

// Item fetches a single library item with tracks and chapters expanded.
func (c *Client) Item(ctx context.Context, itemID string) (*LibraryItem, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/items/%s?expanded=1", itemID), nil)
	if err != nil {
		return nil, err
	}

	var item LibraryItem
	if err := c.do(req, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// Personalized fetches the server's personalized shelves for a library.
func (c *Client) Personalized(ctx context.Context, libraryID string) ([]PersonalizedShelf, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/libraries/%s/personalized", libraryID), nil)
	if err != nil {
		return nil, err
	}

	var shelves []PersonalizedShelf
	if err := c.do(req, &shelves); err != nil {
		return nil, err
	}
	return shelves, nil
}

// ContinueListening returns the most recent in-progress item of a library
// together with its saved position in seconds, or nil when there is none.
func (c *Client) ContinueListening(ctx context.Context, libraryID string) (*LibraryItem, float64, error) {
	shelves, err := c.Personalized(ctx, libraryID)
	if err != nil {
		return nil, 0, err
	}

	for _, shelf := range shelves {
		if shelf.ID != "continue-listening" || len(shelf.Entities) == 0 {
			continue
		}

		item := shelf.Entities[0]
		progress, err := c.Progress(ctx, item.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return &item, 0, nil
			}
			return nil, 0, err
		}
		return &item, progress.CurrentTime, nil
	}

	return nil, 0, nil
}

// Progress fetches the authenticated user's progress record for an item.
// Returns ErrNotFound when the book has never been listened to.
func (c *Client) Progress(ctx context.Context, itemID string) (*MediaProgress, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/me/progress/%s", itemID), nil)
	if err != nil {
		return nil, err
	}

	var progress MediaProgress
	if err := c.do(req, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// PushProgress persists a playback position (book-global, in seconds) to the server.
func (c *Client) PushProgress(ctx context.Context, itemID string, currentTime, duration float64) error {
	payload := map[string]any{
		"currentTime": currentTime,
		"duration":    duration,
	}
	if duration > 0 {
		payload["progress"] = currentTime / duration
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	req, err := c.newRequest(ctx, http.MethodPatch, fmt.Sprintf("/api/me/progress/%s", itemID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// OpenPlaybackSession negotiates a direct-play session for an item and returns
// the stream track list the server granted.
func (c *Client) OpenPlaybackSession(ctx context.Context, itemID string) ([]AudioTrack, error) {
	payload := map[string]any{
		"deviceInfo": map[string]string{
			"clientName":    constant.ClientName,
			"clientVersion": constant.Version,
		},
		"forceDirectPlay":    true,
		"supportedMimeTypes": []string{"audio/flac", "audio/mpeg", "audio/mp4", "audio/ogg", "audio/wav"},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, fmt.Sprintf("/api/items/%s/play", itemID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}

	var session playbackSession
	if err := c.do(req, &session); err != nil {
		return nil, err
	}
	if len(session.AudioTracks) == 0 {
		return nil, ErrNotFound
	}
	return session.AudioTracks, nil
}

// FetchCover downloads the raw cover image bytes of an item.
func (c *Client) FetchCover(ctx context.Context, itemID string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, fmt.Sprintf("/api/items/%s/cover", itemID), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch cover %s: %w", itemID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch cover %s: unexpected status %d", itemID, resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}

// DownloadTrack streams one audio track to the local track directory and
// returns its path. Already-downloaded tracks are reused as-is.
func (c *Client) DownloadTrack(ctx context.Context, itemID string, track AudioTrack) (string, error) {
	fs := filesystem.API()
	path := filepath.Join(where.Tracks(), fmt.Sprintf("%s_%d%s", itemID, track.Index, filepath.Ext(track.ContentURL)))

	if exists, _ := fs.Exists(path); exists {
		log.Debugf("track %d of %s already downloaded", track.Index, itemID)
		return path, nil
	}

	req, err := c.newRequest(ctx, http.MethodGet, track.ContentURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("download track %d of %s: %w", track.Index, itemID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("download track %d of %s: unexpected status %d", track.Index, itemID, resp.StatusCode)
	}

	tmp := path + ".part"
	f, err := fs.Create(tmp)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		_ = fs.Remove(tmp)
		return "", fmt.Errorf("download track %d of %s: %w", track.Index, itemID, err)
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	if err := fs.Rename(tmp, path); err != nil {
		return "", err
	}

	log.Infof("downloaded track %d of %s to %s", track.Index, itemID, path)
	return path, nil
}
