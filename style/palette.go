// Package style provides a functional API for composing and applying lipgloss-based TUI styles.
package style

import "github.com/charmbracelet/lipgloss"

// Palette defines the color scheme applied across the Terminal User Interface.
type Palette struct {
	Name string

	Base    lipgloss.Color
	Text    lipgloss.Color
	Subtext lipgloss.Color
	Overlay lipgloss.Color
	Surface lipgloss.Color

	Accent    lipgloss.Color
	Secondary lipgloss.Color
	Success   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
}

// CatppuccinMocha is the default dark palette.
var CatppuccinMocha = Palette{
	Name:      "catppuccin_mocha",
	Base:      lipgloss.Color("#1e1e2e"),
	Text:      lipgloss.Color("#cdd6f4"),
	Subtext:   lipgloss.Color("#a6adc8"),
	Overlay:   lipgloss.Color("#6c7086"),
	Surface:   lipgloss.Color("#313244"),
	Accent:    lipgloss.Color("#cba6f7"),
	Secondary: lipgloss.Color("#b4befe"),
	Success:   lipgloss.Color("#a6e3a1"),
	Warning:   lipgloss.Color("#f9e2af"),
	Error:     lipgloss.Color("#f38ba8"),
}

// TokyoNight is the alternative palette.
var TokyoNight = Palette{
	Name:      "tokyo_night",
	Base:      lipgloss.Color("#1a1b26"),
	Text:      lipgloss.Color("#c0caf5"),
	Subtext:   lipgloss.Color("#a9b1d6"),
	Overlay:   lipgloss.Color("#565f89"),
	Surface:   lipgloss.Color("#24283b"),
	Accent:    lipgloss.Color("#7aa2f7"),
	Secondary: lipgloss.Color("#bb9af7"),
	Success:   lipgloss.Color("#9ece6a"),
	Warning:   lipgloss.Color("#e0af68"),
	Error:     lipgloss.Color("#f7768e"),
}

// Theme holds the palette active for this session. Set once at startup.
var Theme = CatppuccinMocha

// ApplyTheme selects the active palette by name. Unknown names keep the default.
func ApplyTheme(name string) {
	switch name {
	case TokyoNight.Name:
		Theme = TokyoNight
	case CatppuccinMocha.Name:
		Theme = CatppuccinMocha
	}
}
