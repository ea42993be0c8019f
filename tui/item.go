// Package tui provides the primary terminal user interface implementation.
package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/lipgloss"
	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/decibelle-cli/decibelle/api"
	"github.com/decibelle-cli/decibelle/history"
	"github.com/decibelle-cli/decibelle/library"
	"github.com/decibelle-cli/decibelle/style"
	"github.com/decibelle-cli/decibelle/util"
)

// listItem implements the list.Item interface, wrapping various domain models for terminal display.
type listItem struct {
	internal interface{}
}

// Title retrieves the primary display text for the list item.
func (t *listItem) Title() (title string) {
	switch e := t.internal.(type) {
	case *api.Library:
		title = e.Name
	case *library.Book:
		title = e.Title
		if e.Series != "" {
			title += " " + style.Faint(e.Series)
		}
	case *history.SavedBook:
		title = e.Title
	case string:
		title = e
	default:
		title = t.FilterValue()
	}
	return
}

// Description retrieves the secondary metadata line for the list item.
func (t *listItem) Description() (description string) {
	switch e := t.internal.(type) {
	case *api.Library:
		description = e.MediaType
	case *library.Book:
		var parts []string
		if e.Author != "" {
			parts = append(parts, e.Author)
		}
		if e.Duration > 0 {
			parts = append(parts, lipgloss.NewStyle().Foreground(style.Theme.Subtext).Render(util.FormatDuration(e.Duration)))
		}
		if resume := e.GlobalPosition(e.Resume.TrackIndex, e.Resume.Offset); resume > 0 {
			parts = append(parts, lipgloss.NewStyle().Foreground(style.Theme.Warning).
				Render(fmt.Sprintf("at %s", util.FormatDuration(resume))))
		}
		description = strings.Join(parts, " • ")
	case *history.SavedBook:
		position := time.Duration(e.Position * float64(time.Second))
		total := time.Duration(e.DurationSeconds * float64(time.Second))
		description = fmt.Sprintf("%s • %s / %s", e.Author, util.FormatDuration(position), util.FormatDuration(total))
	case string:
		description = ""
	}
	return
}

// FilterValue returns the string used for real-time list filtering and searching.
func (t *listItem) FilterValue() string {
	switch e := t.internal.(type) {
	case *api.Library:
		return e.Name
	case *library.Book:
		if e.Author != "" {
			return e.Title + " " + e.Author
		}
		return e.Title
	case *history.SavedBook:
		return e.Title
	case string:
		return e
	default:
		return ""
	}
}

// fuzzyFilter ranks list entries with normalized fuzzy matching, so partial
// and slightly misspelled titles still surface.
func fuzzyFilter(term string, targets []string) []list.Rank {
	ranks := fuzzy.RankFindNormalizedFold(term, targets)
	sort.Sort(ranks)

	result := make([]list.Rank, len(ranks))
	for i, r := range ranks {
		result[i] = list.Rank{Index: r.OriginalIndex}
	}
	return result
}
