// Package ui provides internal state management and rendering utilities for ephemeral terminal notifications.
package ui

import (
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/decibelle-cli/decibelle/style"
)

// lifetime is how long a notification stays on screen.
const lifetime = 3 * time.Second

// Model holds the single notification line composed onto the active view.
// A plain string message replaces the current notification; ClearNotificationMsg
// removes it.
type Model struct {
	notification string
}

// ClearNotificationMsg removes the visible notification.
type ClearNotificationMsg struct{}

// NotifySyncFailure produces the notice shown when a progress push to the
// server keeps failing in the background.
func NotifySyncFailure() tea.Cmd {
	return func() tea.Msg {
		return "Progress not synced yet - will retry in the background"
	}
}

// Update consumes notification messages and schedules their expiry.
func (m *Model) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case string:
		m.notification = msg
		return tea.Tick(lifetime, func(time.Time) tea.Msg {
			return ClearNotificationMsg{}
		})
	case ClearNotificationMsg:
		m.notification = ""
	}
	return nil
}

// View appends the notification to the last line of the rendered frame, so
// it never shifts the layout above it.
func (m *Model) View(frame string) string {
	if m.notification == "" {
		return frame
	}

	lines := strings.Split(frame, "\n")
	if len(lines) == 0 {
		return frame
	}

	last := len(lines) - 1
	lines[last] += "  " + style.Faint(m.notification)
	return strings.Join(lines, "\n")
}
