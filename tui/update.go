// Package tui provides the primary terminal user interface implementation.
package tui

import (
	"time"

	bubblesKey "github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/viper"

	"github.com/decibelle-cli/decibelle/api"
	"github.com/decibelle-cli/decibelle/history"
	"github.com/decibelle-cli/decibelle/internal/ui"
	"github.com/decibelle-cli/decibelle/key"
	"github.com/decibelle-cli/decibelle/library"
	"github.com/decibelle-cli/decibelle/log"
)

// syncWarnAfter is how long a playback position may stay unconfirmed by the
// server before the user is told syncing is failing.
const syncWarnAfter = 30 * time.Second

func (b *statefulBubble) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	// Notifications ride on plain string messages.
	if uiCmd := b.notifier.Update(msg); uiCmd != nil {
		cmd = tea.Batch(cmd, uiCmd)
	}

	switch msg := msg.(type) {
	case error:
		b.stopLoading()
		b.raiseError(msg)
		return b, cmd
	case tea.WindowSizeMsg:
		b.resize(msg.Width, msg.Height)
		if b.selectedBook != nil {
			// Geometry changed, the encoded cover no longer fits.
			return b, tea.Batch(cmd, b.fetchCover(b.selectedBook))
		}
		return b, cmd
	case []api.Library:
		return b.receivedLibraries(msg, cmd)
	case []*library.Book:
		return b.receivedBooks(msg, cmd)
	case bookReadyMsg:
		return b.receivedBook((*library.Book)(msg), cmd)
	case coverMsg:
		if b.selectedBook != nil && b.selectedBook.ID == msg.bookID {
			b.coverPayload = msg.payload
			b.coverBookID = msg.bookID
		}
		return b, cmd
	case coverFailedMsg:
		if b.selectedBook != nil && b.selectedBook.ID == msg.bookID {
			b.coverPayload = ""
			b.coverBookID = ""
		}
		return b, cmd
	case tickMsg:
		return b.ticked(cmd)
	case spinner.TickMsg:
		b.spinnerC, cmd = b.spinnerC.Update(msg)
		return b, cmd
	case tea.KeyMsg:
		switch {
		case bubblesKey.Matches(msg, b.keymap.forceQuit):
			return b, tea.Quit
		}

		if b.busy && b.state != playerState && b.state != errorState {
			return b, nil
		}

		switch {
		case bubblesKey.Matches(msg, b.keymap.back):
			onListBack := func(l *list.Model) tea.Cmd {
				l.ResetSelected()
				l.ResetFilter()
				return tea.Batch(cmd, l.NewStatusMessage(""))
			}

			switch b.state {
			case playerState:
				b.leavePlayer()
			case booksState:
				if b.booksC.FilterState() != list.Unfiltered {
					b.booksC, cmd = b.booksC.Update(msg)
					return b, cmd
				}
				cmd = onListBack(&b.booksC)
			case historyState:
				if b.historyC.FilterState() != list.Unfiltered {
					b.historyC, cmd = b.historyC.Update(msg)
					return b, cmd
				}
				cmd = onListBack(&b.historyC)
			case librariesState:
				if b.librariesC.FilterState() != list.Unfiltered {
					b.librariesC, cmd = b.librariesC.Update(msg)
					return b, cmd
				}
				cmd = onListBack(&b.librariesC)
			}

			b.previousState()
			b.stopLoading()
			return b, cmd
		}
	}

	switch b.state {
	case loadingState:
		return b.updateLoading(msg)
	case historyState:
		return b.updateHistory(msg)
	case librariesState:
		return b.updateLibraries(msg)
	case booksState:
		return b.updateBooks(msg)
	case playerState:
		return b.updatePlayer(msg)
	case errorState:
		return b.updateError(msg)
	default:
		return b, nil
	}
}

func (b *statefulBubble) receivedLibraries(libraries []api.Library, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	items := make([]list.Item, len(libraries))
	for i := range libraries {
		items[i] = &listItem{internal: &libraries[i]}
	}

	b.stopLoading()
	b.newState(librariesState)
	return b, tea.Batch(cmd, b.librariesC.SetItems(items))
}

func (b *statefulBubble) receivedBooks(books []*library.Book, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	items := make([]list.Item, len(books))
	for i := range books {
		items[i] = &listItem{internal: books[i]}
	}

	b.stopLoading()
	b.newState(booksState)
	return b, tea.Batch(cmd, b.booksC.SetItems(items))
}

func (b *statefulBubble) receivedBook(book *library.Book, cmd tea.Cmd) (tea.Model, tea.Cmd) {
	b.selectedBook = book
	b.coverPayload = ""
	b.coverBookID = ""

	if err := b.controller.LoadBook(book); err != nil {
		b.stopLoading()
		b.raiseError(err)
		return b, cmd
	}

	b.stopLoading()
	b.newState(playerState)
	b.saveHistory()
	return b, tea.Batch(cmd, b.fetchCover(book), b.tick(), b.spinnerC.Tick)
}

func (b *statefulBubble) ticked(cmd tea.Cmd) (tea.Model, tea.Cmd) {
	if b.selectedBook == nil {
		return b, cmd
	}

	b.controller.Tick()

	snap := b.controller.Snapshot()
	if snap.Err != "" && snap.Err != b.lastShownErr {
		b.lastShownErr = snap.Err
		cmd = tea.Batch(cmd, func() tea.Msg { return snap.Err })
	}

	// A position that stays unconfirmed across several sync intervals means
	// the server is not taking our pushes.
	switch {
	case !snap.Dirty:
		b.dirtySince = time.Time{}
	case b.dirtySince.IsZero():
		b.dirtySince = time.Now()
	case time.Since(b.dirtySince) > syncWarnAfter:
		b.dirtySince = time.Now()
		cmd = tea.Batch(cmd, ui.NotifySyncFailure())
	}

	// Keep ticking while a book is loaded, even off the player view, so
	// syncs continue in the background.
	return b, tea.Batch(cmd, b.tick())
}

func (b *statefulBubble) leavePlayer() {
	b.saveHistory()
	b.controller.Stop()
}

func (b *statefulBubble) updateLoading(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	b.spinnerC, cmd = b.spinnerC.Update(msg)
	return b, cmd
}

func (b *statefulBubble) updateLibraries(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok && b.librariesC.FilterState() != list.Filtering {
		switch {
		case bubblesKey.Matches(msg, b.keymap.confirm):
			item, ok := b.librariesC.SelectedItem().(*listItem)
			if !ok {
				return b, nil
			}
			lib := item.internal.(*api.Library)
			b.selectedLibrary = lib

			b.newState(loadingState)
			return b, tea.Batch(b.startLoading(), b.loadBooks(lib), b.waitForBooks())
		case bubblesKey.Matches(msg, b.keymap.historyView):
			return b.enterHistory()
		}
	}

	b.librariesC, cmd = b.librariesC.Update(msg)
	return b, cmd
}

func (b *statefulBubble) updateBooks(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok && b.booksC.FilterState() != list.Filtering {
		switch {
		case bubblesKey.Matches(msg, b.keymap.listen):
			item, ok := b.booksC.SelectedItem().(*listItem)
			if !ok {
				return b, nil
			}
			book := item.internal.(*library.Book)

			b.newState(loadingState)
			return b, tea.Batch(b.startLoading(), b.openBook(book.ID), b.waitForBookReady())
		case bubblesKey.Matches(msg, b.keymap.historyView):
			return b.enterHistory()
		}
	}

	b.booksC, cmd = b.booksC.Update(msg)
	return b, cmd
}

func (b *statefulBubble) enterHistory() (tea.Model, tea.Cmd) {
	cmd, err := b.loadHistory()
	if err != nil {
		b.raiseError(err)
		return b, nil
	}
	b.newState(historyState)
	return b, cmd
}

func (b *statefulBubble) updateHistory(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok && b.historyC.FilterState() != list.Filtering {
		switch {
		case bubblesKey.Matches(msg, b.keymap.confirm):
			item, ok := b.historyC.SelectedItem().(*listItem)
			if !ok {
				return b, nil
			}
			entry := item.internal.(*history.SavedBook)

			b.newState(loadingState)
			return b, tea.Batch(b.startLoading(), b.openBook(entry.BookID), b.waitForBookReady())
		case bubblesKey.Matches(msg, b.keymap.remove):
			item, ok := b.historyC.SelectedItem().(*listItem)
			if !ok {
				return b, nil
			}
			if err := history.Remove(item.internal.(*history.SavedBook)); err != nil {
				log.Warn(err)
				return b, nil
			}
			reload, err := b.loadHistory()
			if err != nil {
				b.raiseError(err)
				return b, nil
			}
			return b, reload
		}
	}

	b.historyC, cmd = b.historyC.Update(msg)
	return b, cmd
}

func (b *statefulBubble) updatePlayer(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	if msg, ok := msg.(tea.KeyMsg); ok {
		seekStep := time.Duration(viper.GetInt(key.PlayerSeekStep)) * time.Second
		if seekStep <= 0 {
			seekStep = 15 * time.Second
		}

		switch {
		case bubblesKey.Matches(msg, b.keymap.playPause):
			b.controller.TogglePlayPause()
		case bubblesKey.Matches(msg, b.keymap.seekForward):
			b.controller.Seek(seekStep)
		case bubblesKey.Matches(msg, b.keymap.seekBackward):
			b.controller.Seek(-seekStep)
		case bubblesKey.Matches(msg, b.keymap.nextTrack):
			b.controller.NextTrack()
		case bubblesKey.Matches(msg, b.keymap.prevTrack):
			b.controller.PreviousTrack()
		case bubblesKey.Matches(msg, b.keymap.stop):
			b.controller.Stop()
			b.saveHistory()
		case bubblesKey.Matches(msg, b.keymap.quit):
			return b, tea.Quit
		}
		return b, nil
	}

	b.spinnerC, cmd = b.spinnerC.Update(msg)
	return b, cmd
}

func (b *statefulBubble) updateError(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		if bubblesKey.Matches(msg, b.keymap.quit) {
			return b, tea.Quit
		}
	}
	return b, nil
}
