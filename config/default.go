// Package config provides centralized management for application settings, defaults, and the Viper-based configuration engine.
package config

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"text/template"

	"github.com/decibelle-cli/decibelle/color"
	"github.com/decibelle-cli/decibelle/constant"
	"github.com/decibelle-cli/decibelle/key"
	"github.com/decibelle-cli/decibelle/style"
	"github.com/samber/lo"
	"github.com/spf13/viper"
)

// Field represents a configuration field definition.
type Field struct {
	Key         string
	Value       any
	Description string
}

// Pretty returns a colored string representation of the field for display.
func (f *Field) Pretty() string {
	var b strings.Builder
	lo.Must0(prettyTemplate.Execute(&b, f))
	return b.String()
}

// Env returns the environment variable name for this field.
func (f *Field) Env() string {
	env := strings.ToUpper(EnvKeyReplacer.Replace(f.Key))
	prefix := strings.ToUpper(constant.Decibelle + "_")
	if strings.HasPrefix(env, prefix) {
		return env
	}
	return prefix + env
}

// MarshalJSON customizes JSON output to include current and default values.
func (f *Field) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Key         string `json:"key"`
		Value       any    `json:"value"`
		Default     any    `json:"default"`
		Description string `json:"description"`
		Type        string `json:"type"`
	}{
		Key:         f.Key,
		Value:       viper.Get(f.Key),
		Default:     f.Value,
		Description: f.Description,
		Type:        f.typeName(),
	})
}

// typeName returns the string representation of the field's underlying value type.
func (f *Field) typeName() string {
	switch f.Value.(type) {
	case string:
		return "string"
	case int:
		return "int"
	case bool:
		return "bool"
	case []string:
		return "[]string"
	default:
		return "unknown"
	}
}

// Default holds the map of all configuration fields.
var Default = make(map[string]Field)

// EnvExposed holds keys that are bound to environment variables.
var EnvExposed []string

func init() {
	// register validates and adds a new configuration field to the global registry.
	register := func(k string, v any, desc string) {
		if _, exists := Default[k]; exists {
			panic("Duplicate config key: " + k)
		}
		f := Field{Key: k, Value: v, Description: desc}
		Default[k] = f
		EnvExposed = append(EnvExposed, k)
	}

	register(key.ServerURL, "http://localhost:13378", "Audiobookshelf server URL")
	register(key.ServerAPIKey, "", "Audiobookshelf API key.\nGenerate one in the server's settings page")
	register(key.ImageProtocol, "auto", "Terminal graphics protocol for cover art.\nAvailable options are: auto, kitty, iterm2, sixel, halfblocks.\n\"auto\" probes the terminal and picks the best supported protocol")
	register(key.ImageCellWidth, 8, "Assumed terminal cell width in pixels.\nUsed to size covers for pixel-based protocols")
	register(key.ImageCellHeight, 16, "Assumed terminal cell height in pixels")
	register(key.CacheCovers, 16, "Number of decoded covers kept in the in-memory LRU cache")
	register(key.PlayerSeekStep, 15, "Seconds to seek forward/backward per keypress")
	register(key.PlayerOpenRetries, 2, "How many times to retry opening a track after a stream error")
	register(key.PlayerOpenTimeout, 10, "Seconds to wait for a track stream to open before failing")
	register(key.PlayerSyncInterval, 10, "Seconds between progress syncs to the server while playing")
	register(key.PlayerSyncRetries, 2, "How many times to retry a failed progress sync before dropping it")
	register(key.PlayerSyncTimeout, 5, "Seconds to wait for a progress sync request")
	register(key.HistorySaveOnListen, true, "Record played books in the local listening history")
	register(key.TUITheme, "catppuccin_mocha", "Color theme.\nAvailable options are: catppuccin_mocha, tokyo_night")
	register(key.TUIItemSpacing, 1, "Spacing between items in the TUI")
	register(key.IconsPlain, false, "Use plain ASCII icons instead of Unicode symbols")
	register(key.LogsWrite, false, "Write logs")
	register(key.LogsLevel, "info", "Available options are: (from less to most verbose)\npanic, fatal, error, warn, info, debug, trace")
	register(key.LogsJson, false, "Use json format for logs")
	register(key.CliColored, true, "Enable colored CLI output")
	register(key.CliVersionCheck, true, "Enable automatic version check")
}

var prettyTemplate = lo.Must(template.New("pretty").Funcs(template.FuncMap{
	"faint":    style.Faint,
	"bold":     style.Bold,
	"purple":   style.Fg(color.Purple),
	"blue":     style.Fg(color.Blue),
	"cyan":     style.Fg(color.Cyan),
	"value":    func(k string) any { return viper.Get(k) },
	"typename": func(v any) string { return reflect.TypeOf(v).String() },
	"hl": func(v any) string {
		switch value := v.(type) {
		case bool:
			b := strconv.FormatBool(value)
			if value {
				return style.Fg(color.Green)(b)
			}
			return style.Fg(color.Red)(b)
		case string:
			return style.Fg(color.Yellow)(value)
		default:
			return fmt.Sprint(value)
		}
	},
}).Parse(`{{ faint .Description }}
{{ blue "Key:" }}     {{ purple .Key }}
{{ blue "Env:" }}     {{ .Env }}
{{ blue "Value:" }}   {{ hl (value .Key) }}
{{ blue "Default:" }} {{ hl (.Value) }}
{{ blue "Type:" }}    {{ typename .Value }}`))
