// Package key defines the canonical set of configuration identifiers used for centralized settings management.
package key

// Server Connection - these keys describe the remote audiobook server.
const (
	ServerURL    = "server.url"
	ServerAPIKey = "server.api_key"
)

// Cover Art Rendering - these keys govern terminal graphics negotiation and caching.
const (
	ImageProtocol   = "image.protocol"
	ImageCellWidth  = "image.cell_width"
	ImageCellHeight = "image.cell_height"
	CacheCovers     = "cache.covers"
)

// Media Playback - these keys control the streaming and transport behavior.
const (
	PlayerSeekStep     = "player.seek_step"
	PlayerOpenRetries  = "player.open_retries"
	PlayerOpenTimeout  = "player.open_timeout"
	PlayerSyncInterval = "player.sync_interval"
	PlayerSyncRetries  = "player.sync_retries"
	PlayerSyncTimeout  = "player.sync_timeout"
)

// History Tracking - these keys configure the persistence of listening state.
const (
	HistorySaveOnListen = "history.save_on_listen"
)

// Terminal User Interface (TUI) - these keys define the interactive environment's styling and logic.
const (
	TUITheme       = "tui.theme"
	TUIItemSpacing = "tui.item_spacing"
	IconsPlain     = "icons.plain"
)

// Logging Infrastructure - these keys manage the application's internal diagnostics.
const (
	LogsWrite = "logs.write"
	LogsLevel = "logs.level"
	LogsJson  = "logs.json"
)

// CLI Execution Environment - these settings govern the non-TUI application behavior.
const (
	CliColored      = "cli.colored"
	CliVersionCheck = "cli.version_check"
)
