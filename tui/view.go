// Package tui provides the primary terminal user interface implementation.
package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wrap"

	"github.com/decibelle-cli/decibelle/color"
	"github.com/decibelle-cli/decibelle/icon"
	"github.com/decibelle-cli/decibelle/playback"
	"github.com/decibelle-cli/decibelle/style"
	"github.com/decibelle-cli/decibelle/termgfx"
	"github.com/decibelle-cli/decibelle/util"
)

var (
	listExtraPaddingStyle = lipgloss.NewStyle().Padding(1, 2, 1, 0)
	paddingStyle          = lipgloss.NewStyle().Padding(1, 2)
)

func (b *statefulBubble) View() string {
	var output string

	switch b.state {
	case loadingState:
		output = b.viewLoading()
	case historyState:
		output = b.viewHistory()
	case librariesState:
		output = b.viewLibraries()
	case booksState:
		output = b.viewBooks()
	case playerState:
		output = b.viewPlayer()
	case errorState:
		output = b.viewError()
	default:
		output = "Unknown state"
	}

	return b.notifier.View(output)
}

func (b *statefulBubble) viewLoading() string {
	return b.renderLines(
		true,
		[]string{
			style.Title("Loading"),
			"",
			b.spinnerC.View() + " " + b.progressStatus,
		},
	)
}

func (b *statefulBubble) viewHistory() string {
	return listExtraPaddingStyle.Render(b.historyC.View())
}

func (b *statefulBubble) viewLibraries() string {
	return listExtraPaddingStyle.Render(b.librariesC.View())
}

func (b *statefulBubble) viewBooks() string {
	return listExtraPaddingStyle.Render(b.booksC.View())
}

func (b *statefulBubble) viewPlayer() string {
	snap := b.controller.Snapshot()

	var title, author string
	if snap.Book != nil {
		title = snap.Book.Title
		author = snap.Book.Author
	}

	trackLine := snap.TrackTitle
	if snap.Book != nil && len(snap.Book.Tracks) > 1 {
		trackLine = fmt.Sprintf("Track %d/%d", snap.TrackIndex+1, len(snap.Book.Tracks))
		if snap.TrackTitle != "" {
			trackLine += " · " + snap.TrackTitle
		}
	}

	var ratio float64
	if snap.Book != nil && snap.Book.Duration > 0 {
		ratio = float64(snap.Global) / float64(snap.Book.Duration)
		ratio = util.Clamp(ratio, 0, 1)
	}

	timeLine := fmt.Sprintf(
		"%s %s / %s",
		transportIcon(snap.Transport),
		util.FormatDuration(snap.Position),
		util.FormatDuration(snap.Duration),
	)
	if snap.Book != nil {
		timeLine += style.Faint(fmt.Sprintf("  (%s of %s)",
			util.FormatDuration(snap.Global),
			util.FormatDuration(snap.Book.Duration),
		))
	}
	if snap.Dirty {
		timeLine += " " + style.Faint("●")
	}

	lines := []string{
		style.Title("Now Listening"),
		"",
		style.Truncate(b.width)(style.Fg(color.Purple)(title)),
		style.Truncate(b.width)(style.Faint(author)),
		"",
	}
	if trackLine != "" {
		lines = append(lines, style.Truncate(b.width)(trackLine))
	}
	if snap.Chapter != "" {
		lines = append(lines, style.Truncate(b.width)(style.Faint(snap.Chapter)))
	}
	lines = append(lines,
		"",
		timeLine,
		b.progressC.ViewAs(ratio),
	)
	if snap.Err != "" {
		lines = append(lines, "", icon.Get(icon.Fail)+" "+wrap.String(snap.Err, util.Max(b.width-8, 20)))
	}

	info := strings.Join(lines, "\n")

	// Half-block covers are plain ANSI text and compose like any other
	// string. Pixel protocols place the bitmap themselves, so their payload
	// must ride after the frame with an absolute cursor move.
	if b.coverPayload != "" && b.encoder.Protocol() == termgfx.Halfblocks {
		frame := lipgloss.JoinHorizontal(lipgloss.Top, b.coverPayload+"  ", info)
		return b.framePlayer(frame)
	}

	out := b.framePlayer(info)
	if b.coverPayload != "" {
		out += b.coverOverlay()
	}
	return out
}

// framePlayer pads the player body to full height and appends the help bar.
func (b *statefulBubble) framePlayer(body string) string {
	h := lipgloss.Height(body)
	if b.height > h {
		body += strings.Repeat("\n", b.height-h)
	}
	body += b.helpC.View(b.keymap)
	return paddingStyle.Render(body)
}

// coverOverlay positions a pixel-protocol payload at the top-right of the
// frame without disturbing the cursor the text frame ends on.
func (b *statefulBubble) coverOverlay() string {
	col := util.Max(b.width-b.coverCells.Width-1, 1)
	return fmt.Sprintf("\x1b7\x1b[%d;%dH%s\x1b8", 2, col, b.coverPayload)
}

func transportIcon(t playback.Transport) string {
	switch t {
	case playback.Playing:
		return icon.Get(icon.Play)
	case playback.Paused:
		return icon.Get(icon.Pause)
	case playback.Buffering, playback.Seeking:
		return icon.Get(icon.Progress)
	default:
		return icon.Get(icon.Stop)
	}
}

func (b *statefulBubble) viewError() string {
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	errorBody := errorStyle.Render(fmt.Sprintf("Critical Failure: %v", b.lastError.Error()))
	errorMsg := wrap.String(errorBody, b.width)
	return b.renderLines(
		true,
		append([]string{
			style.ErrorTitle("Error"),
			"",
			icon.Get(icon.Fail) + " An error occurred:",
			"",
		},
			errorMsg,
		),
	)
}

func (b *statefulBubble) renderLines(addHelp bool, lines []string) string {
	h := len(lines)
	l := strings.Join(lines, "\n")
	if addHelp {
		if b.height > h {
			l += strings.Repeat("\n", b.height-h)
		}
		l += b.helpC.View(b.keymap)
	}

	return paddingStyle.Render(l)
}
