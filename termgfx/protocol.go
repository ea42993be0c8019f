// Package termgfx negotiates and produces terminal graphics: it detects which
// bitmap protocol the running terminal supports and encodes images into the
// matching escape sequences.
//
// Supported protocols are Kitty, iTerm2 and Sixel, with a universal
// half-block-character fallback that works on any color terminal.
package termgfx

import (
	"errors"
	"fmt"
	"image"

	"github.com/muesli/termenv"
)

// Protocol identifies a terminal bitmap-display mechanism.
type Protocol int

const (
	Halfblocks Protocol = iota
	Sixel
	ITerm2
	Kitty
)

// String returns the canonical lowercase protocol name.
func (p Protocol) String() string {
	switch p {
	case Kitty:
		return "kitty"
	case ITerm2:
		return "iterm2"
	case Sixel:
		return "sixel"
	default:
		return "halfblocks"
	}
}

// ParseProtocol resolves a protocol by its configuration name.
func ParseProtocol(name string) (Protocol, error) {
	switch name {
	case "kitty":
		return Kitty, nil
	case "iterm2":
		return ITerm2, nil
	case "sixel":
		return Sixel, nil
	case "halfblocks":
		return Halfblocks, nil
	default:
		return Halfblocks, fmt.Errorf("unknown image protocol %q", name)
	}
}

// ErrTooLarge signals that a bitmap exceeds the protocol's size ceiling.
// Callers must resize further and retry; nothing partial is ever emitted.
var ErrTooLarge = errors.New("bitmap exceeds protocol size ceiling")

// Size is a region measured in terminal cells.
type Size struct {
	Width  int
	Height int
}

// Encoder turns a decoded bitmap into the escape sequence that displays it
// within a given cell region. Implementations are pure functions of their
// inputs and safe for concurrent use.
type Encoder interface {
	Protocol() Protocol
	Encode(img image.Image, cells Size) ([]byte, error)
}

// NewEncoder returns the Encoder for a protocol, using the given pixels-per-cell
// geometry for pixel-based protocols.
func NewEncoder(p Protocol, cellWidth, cellHeight int) Encoder {
	if cellWidth <= 0 {
		cellWidth = defaultCellWidth
	}
	if cellHeight <= 0 {
		cellHeight = defaultCellHeight
	}

	switch p {
	case Kitty:
		return &kittyEncoder{cellWidth: cellWidth, cellHeight: cellHeight}
	case ITerm2:
		return &itermEncoder{cellWidth: cellWidth, cellHeight: cellHeight}
	case Sixel:
		return &sixelEncoder{cellWidth: cellWidth, cellHeight: cellHeight}
	default:
		return &halfblocksEncoder{profile: termenv.TrueColor}
	}
}

// Assumed pixel-per-cell geometry when the terminal reports nothing better.
const (
	defaultCellWidth  = 8
	defaultCellHeight = 16
)
