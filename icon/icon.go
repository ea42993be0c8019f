// Package icon provides a multi-variant rendering engine for UI symbols and feedback indicators.
//
// Icons can be displayed as nerd-font glyphs, plain ASCII, or Unicode symbols
// depending on user preference.
package icon

// Icon identifies a UI symbol in the global registry.
type Icon int

const (
	Success Icon = iota
	Fail
	Progress
	Play
	Pause
	Stop
	Buffering
	Book
	Library
	Note
)

// iconDef encapsulates the visual representations of a single UI symbol.
type iconDef struct {
	unicode string
	plain   string
}

var icons = map[Icon]iconDef{
	Success:   {"✓", "+"},
	Fail:      {"✗", "x"},
	Progress:  {"⏳", "..."},
	Play:      {"▶", ">"},
	Pause:     {"⏸", "||"},
	Stop:      {"■", "[]"},
	Buffering: {"◌", "~"},
	Book:      {"📖", "#"},
	Library:   {"🗂", "="},
	Note:      {"♪", "*"},
}

// plainOutput forces ASCII fallbacks; toggled for terminals without Unicode support.
var plainOutput bool

// SetPlain switches the registry to ASCII-only output.
func SetPlain(plain bool) {
	plainOutput = plain
}

// Get returns the rendered string for a specified Icon identifier from the global registry.
func Get(i Icon) string {
	def, ok := icons[i]
	if !ok {
		return ""
	}
	if plainOutput {
		return def.plain
	}
	return def.unicode
}
