// Package constant defines immutable application-level identifiers and configuration defaults.
package constant

const (
	// Decibelle is the canonical application identifier used for filesystem paths and CLI branding.
	Decibelle = "decibelle"

	// Version is the current application semantic version string.
	Version = "0.1.0"

	// UserAgent identifies the client on every request to the audiobook server.
	UserAgent = "Decibelle/" + Version

	// ClientName is reported to the server when opening a playback session.
	ClientName = "Decibelle"
)

// Build metadata, injected at link time via -ldflags.
var (
	BuiltAt  = "unknown"
	BuiltBy  = "unknown"
	Revision = "unknown"
)
