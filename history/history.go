// Package history tracks local listening state, persisted on disk. It backs
// the continue-listening entry point when the server is unreachable or has
// no progress record yet.
package history

import (
	"github.com/metafates/gache"

	"github.com/decibelle-cli/decibelle/filesystem"
	"github.com/decibelle-cli/decibelle/library"
	"github.com/decibelle-cli/decibelle/where"
)

// cacher provides an abstracted, disk-backed registry for listening records.
var cacher = gache.New[map[string]*SavedBook](
	&gache.Options{
		Path:       where.History(),
		FileSystem: &filesystem.GacheFs{},
	},
)

// Get returns the complete collection of listening records from the persistent store.
func Get() (map[string]*SavedBook, error) {
	cached, expired, err := cacher.Get()
	if err != nil {
		return nil, err
	}
	if expired || cached == nil {
		return make(map[string]*SavedBook), nil
	}
	return cached, nil
}

// Save persists the listening position of a book to the history registry.
func Save(serverURL string, book *library.Book, global float64) error {
	saved, err := Get()
	if err != nil {
		return err
	}

	record := newSavedBook(serverURL, book)
	record.Position = global
	if book.Duration > 0 {
		record.ListenedPercentage = global / book.Duration.Seconds()
	}

	// Idempotency: keep the furthest observed position so a re-listen from
	// the start does not clobber real progress.
	if existing, exists := saved[record.encode()]; exists {
		if record.Position < existing.Position {
			record.Position = existing.Position
			record.ListenedPercentage = existing.ListenedPercentage
		}
	}

	saved[record.encode()] = record
	return cacher.Set(saved)
}

// Remove permanently deletes a listening record from the history registry.
func Remove(book *SavedBook) error {
	saved, err := Get()
	if err != nil {
		return err
	}

	delete(saved, book.encode())
	return cacher.Set(saved)
}
