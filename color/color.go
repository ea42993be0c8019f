// Package color provides the palette shared by the CLI and the TUI.
package color

import "github.com/charmbracelet/lipgloss"

// New initializes a lipgloss.Color from a string value.
func New(value string) lipgloss.Color {
	return lipgloss.Color(value)
}

// ANSI palette entries. Kept as ANSI indices so the user's terminal theme
// decides the exact shade.
var (
	Red    = New("1")
	Green  = New("2")
	Yellow = New("3")
	Blue   = New("4")
	Purple = New("5")
	Cyan   = New("6")
	White  = New("7")

	HiRed    = New("9")
	HiPurple = New("13")
)

// Accent colors with no good ANSI counterpart.
var (
	Orange = New("#ffb703")
)
