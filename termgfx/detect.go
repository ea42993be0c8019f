package termgfx

import (
	"os"
	"strings"
	"sync"

	"github.com/decibelle-cli/decibelle/key"
	"github.com/decibelle-cli/decibelle/log"
	"github.com/spf13/viper"
)

var (
	detectOnce sync.Once
	detected   Protocol
)

// Detect determines the graphics protocol for this session. An explicit
// protocol in the configuration wins unconditionally; otherwise the terminal's
// identification environment is probed in precedence order Kitty, iTerm2,
// Sixel, falling back to Halfblocks.
//
// The result is computed once per process. Switching terminals requires a restart.
func Detect() Protocol {
	detectOnce.Do(func() {
		detected = detect(viper.GetString(key.ImageProtocol), os.Getenv)
		log.Infof("terminal graphics protocol: %s", detected)
	})
	return detected
}

// detect is the pure detection core, parameterized for tests.
func detect(configured string, getenv func(string) string) Protocol {
	if configured != "" && configured != "auto" {
		p, err := ParseProtocol(configured)
		if err == nil {
			return p
		}
		log.Warnf("%v, falling back to auto detection", err)
	}

	switch {
	case supportsKitty(getenv):
		return Kitty
	case supportsITerm2(getenv):
		return ITerm2
	case supportsSixel(getenv):
		return Sixel
	default:
		return Halfblocks
	}
}

func supportsKitty(getenv func(string) string) bool {
	if getenv("KITTY_WINDOW_ID") != "" {
		return true
	}
	term := getenv("TERM")
	if strings.Contains(term, "kitty") || term == "xterm-ghostty" {
		return true
	}
	switch getenv("TERM_PROGRAM") {
	case "WezTerm", "ghostty":
		return true
	}
	return false
}

func supportsITerm2(getenv func(string) string) bool {
	if getenv("TERM_PROGRAM") == "iTerm.app" {
		return true
	}
	return getenv("LC_TERMINAL") == "iTerm2"
}

func supportsSixel(getenv func(string) string) bool {
	term := getenv("TERM")
	if strings.Contains(term, "sixel") {
		return true
	}
	switch term {
	case "foot", "foot-extra", "mlterm", "yaft-256color":
		return true
	}
	return false
}
