// Package filesystem routes all file access through a swappable afero backend,
// so tests and CI can run against an in-memory filesystem.
package filesystem

import "github.com/spf13/afero"

var active = afero.Afero{Fs: afero.NewOsFs()}

// API returns the afero handle every package must use for file access.
func API() afero.Afero {
	return active
}

// SetOsFs points the backend at the real operating system filesystem.
func SetOsFs() {
	active = afero.Afero{Fs: afero.NewOsFs()}
}

// SetMemMapFs swaps in a fresh volatile in-memory backend. Intended for tests;
// previously written files are gone after the swap.
func SetMemMapFs() {
	active = afero.Afero{Fs: afero.NewMemMapFs()}
}
