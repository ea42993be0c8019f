// Package tui provides the primary terminal user interface implementation.
package tui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	bubblesKey "github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/samber/mo"
	"github.com/spf13/viper"

	"github.com/decibelle-cli/decibelle/api"
	"github.com/decibelle-cli/decibelle/cover"
	"github.com/decibelle-cli/decibelle/internal/ui"
	"github.com/decibelle-cli/decibelle/key"
	"github.com/decibelle-cli/decibelle/library"
	"github.com/decibelle-cli/decibelle/playback"
	"github.com/decibelle-cli/decibelle/style"
	"github.com/decibelle-cli/decibelle/syncer"
	"github.com/decibelle-cli/decibelle/termgfx"
	"github.com/decibelle-cli/decibelle/util"
)

// statefulBubble encapsulates the comprehensive application state, including component models and workflow tracking.
type statefulBubble struct {
	state         state
	statesHistory util.Stack[state]
	loading       bool
	busy          bool // Protects against rapid input during async ops

	keymap *statefulKeymap

	// components
	spinnerC   spinner.Model
	historyC   list.Model
	librariesC list.Model
	booksC     list.Model
	progressC  progress.Model
	helpC      help.Model

	// collaborators
	client     *api.Client
	controller *playback.Controller
	covers     *cover.Cache
	encoder    termgfx.Encoder

	selectedLibrary *api.Library
	selectedBook    *library.Book

	librariesChannel chan []api.Library
	booksChannel     chan []*library.Book
	bookReadyChannel chan *library.Book
	errorChannel     chan error

	progressStatus string

	// coverPayload is the encoded escape sequence for the playing book's
	// art, empty while it is being fetched or after a fetch failure.
	coverPayload string
	coverBookID  string
	coverCells   termgfx.Size

	lastError    error
	lastShownErr string
	dirtySince   time.Time

	width, height int
	notifier      *ui.Model

	options *Options
}

// raiseError dispatches a terminal error and transitions the application to the failure view.
func (b *statefulBubble) raiseError(err error) {
	b.lastError = err
	b.newState(errorState)
}

// setState performs a synchronous transition of both the application workflow and its associated keymap.
func (b *statefulBubble) setState(s state) {
	b.state = s
	b.keymap.setState(s)
}

// newState facilitates an idempotent transition to a target state, recording the previous state in the navigation history when appropriate.
func (b *statefulBubble) newState(s state) {
	if b.state == s {
		return
	}

	// Do not push these states to history
	if b.state != loadingState && b.state != playerState {
		b.statesHistory.Push(b.state)
	}

	b.setState(s)
}

// previousState restores the application to its immediate predecessor in the navigation stack.
func (b *statefulBubble) previousState() {
	if b.statesHistory.Len() > 0 {
		s := b.statesHistory.Pop()
		b.setState(s)
	}
}

// resize propagates terminal dimension changes to all child component models.
func (b *statefulBubble) resize(width, height int) {
	x, y := paddingStyle.GetFrameSize()
	xx, yy := listExtraPaddingStyle.GetFrameSize()

	styledWidth := width - x
	styledHeight := height - y

	listWidth := width - xx
	listHeight := height - yy

	b.historyC.SetSize(listWidth, listHeight)
	b.historyC.Help.Width = listWidth

	b.librariesC.SetSize(listWidth, listHeight)
	b.librariesC.Help.Width = listWidth

	b.booksC.SetSize(listWidth, listHeight)
	b.booksC.Help.Width = listWidth

	b.progressC.Width = util.Min(styledWidth-4, 60)

	b.width = styledWidth
	b.height = styledHeight
	b.helpC.Width = listWidth

	// Roughly a third of the screen for cover art, bounded so the pixel
	// protocols stay under their payload ceilings.
	b.coverCells = termgfx.Size{
		Width:  util.Clamp(styledWidth/3, 8, 40),
		Height: util.Clamp(styledHeight-6, 4, 20),
	}
	b.coverPayload = ""
	b.coverBookID = ""
}

// startLoading enters a concurrent loading state, initializing visual indicators across child components.
func (b *statefulBubble) startLoading() tea.Cmd {
	b.loading = true
	b.busy = true
	return tea.Batch(b.librariesC.StartSpinner(), b.booksC.StartSpinner(), b.spinnerC.Tick)
}

// stopLoading exits the loading state and synchronizes child component visual indicators.
func (b *statefulBubble) stopLoading() tea.Cmd {
	b.loading = false
	b.busy = false
	b.librariesC.StopSpinner()
	b.booksC.StopSpinner()
	return nil
}

// cleanup flushes playback state before the program exits.
func (b *statefulBubble) cleanup() {
	b.saveHistory()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	b.controller.Shutdown(ctx)
}

// newBubble performs a complete initialization of the application's primary UI model.
func newBubble(options *Options) (*statefulBubble, error) {
	client := api.NewClient()
	if client.BaseURL() == "" {
		return nil, errors.New("no server configured: set server.url with `decibelle config set server.url <url>`")
	}

	keymap := newStatefulKeymap()
	bubble := statefulBubble{
		statesHistory: util.Stack[state]{},
		keymap:        keymap,

		client:     client,
		covers:     cover.New(client),
		controller: playback.New(playback.NewClientFetcher(client), syncer.New(client)),
		encoder: termgfx.NewEncoder(
			termgfx.Detect(),
			viper.GetInt(key.ImageCellWidth),
			viper.GetInt(key.ImageCellHeight),
		),

		librariesChannel: make(chan []api.Library),
		booksChannel:     make(chan []*library.Book),
		bookReadyChannel: make(chan *library.Book),
		errorChannel:     make(chan error),

		notifier: &ui.Model{},
	}

	type listOptions struct {
		TitleStyle mo.Option[lipgloss.Style]
	}

	makeList := func(title string, description bool, options *listOptions) list.Model {
		delegate := list.NewDefaultDelegate()
		delegate.SetSpacing(viper.GetInt(key.TUIItemSpacing))
		delegate.ShowDescription = description
		delegate.Styles.SelectedTitle = lipgloss.NewStyle().
			Border(lipgloss.ThickBorder(), false, false, false, true).
			BorderForeground(style.Theme.Accent).
			Foreground(style.Theme.Accent).
			Padding(0, 0, 0, 1)
		delegate.Styles.NormalTitle = delegate.Styles.NormalTitle.Foreground(lipgloss.Color("7"))
		delegate.Styles.SelectedDesc = delegate.Styles.SelectedTitle

		listC := list.New([]list.Item{}, delegate, 0, 0)
		listC.KeyMap = bubble.keymap.forList()
		listC.AdditionalShortHelpKeys = bubble.keymap.ShortHelp
		listC.AdditionalFullHelpKeys = func() []bubblesKey.Binding {
			return bubble.keymap.FullHelp()[0]
		}
		listC.Title = title
		listC.Styles.NoItems = paddingStyle
		if titleStyle, ok := options.TitleStyle.Get(); ok {
			listC.Styles.Title = titleStyle
		}
		listC.StatusMessageLifetime = time.Hour * 999
		listC.SetShowPagination(false)
		listC.SetShowStatusBar(false)

		return listC
	}

	bubble.helpC = help.New()

	bubble.spinnerC = spinner.New()
	bubble.spinnerC.Spinner = spinner.Dot
	bubble.spinnerC.Style = lipgloss.NewStyle().Foreground(style.Theme.Accent)

	bubble.progressC = progress.New(progress.WithDefaultGradient())

	bubble.librariesC = makeList("Libraries", false, &listOptions{
		TitleStyle: mo.Some(
			lipgloss.NewStyle().Foreground(style.Theme.Base).Background(style.Theme.Accent).Padding(0, 1),
		),
	})
	bubble.librariesC.SetStatusBarItemName("library", "libraries")

	bubble.booksC = makeList("Audiobooks", true, &listOptions{
		TitleStyle: mo.Some(
			lipgloss.NewStyle().Foreground(style.Theme.Base).Background(style.Theme.Secondary).Padding(0, 1),
		),
	})
	bubble.booksC.SetStatusBarItemName("book", "books")
	bubble.booksC.Filter = fuzzyFilter

	bubble.historyC = makeList("Continue Listening", true, &listOptions{
		TitleStyle: mo.Some(
			lipgloss.NewStyle().Foreground(style.Theme.Base).Background(style.Theme.Warning).Padding(0, 1),
		),
	})
	bubble.historyC.SetStatusBarItemName("entry", "entries")

	bubble.options = options

	if w, h, err := util.TerminalSize(); err == nil {
		bubble.resize(w, h)
	}

	return &bubble, nil
}
