// Package tui provides the primary terminal user interface implementation.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Init kicks off the initial data load: the continue-listening resolution
// when requested, the library browser otherwise.
func (b *statefulBubble) Init() tea.Cmd {
	if b.options != nil && b.options.Continue {
		b.setState(loadingState)
		return tea.Batch(b.startLoading(), b.continueListening(), b.waitForBookReady())
	}

	b.setState(loadingState)
	return tea.Batch(b.startLoading(), b.loadLibraries(), b.waitForLibraries())
}
