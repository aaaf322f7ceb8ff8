// Package config holds the marketplace user settings (mirror lists and the
// catalog view preferences), the JSON file store they persist to, and the
// YAML host configuration marketctl reads at startup.
package config

import (
	"errors"
	"fmt"
	"slices"
)

// DefaultMirrorList is the mirror list used when none is configured.
const DefaultMirrorList = "https://ghproxy.com/https://raw.githubusercontent.com/mo-jinran/LiteLoaderQQNT-Plugin-List/main/list.json"

// Accepted values of the view preference pairs.
const (
	TypeAll = "all"

	ScopeAll     = "all"
	ScopeCurrent = "current"

	StrategyRandom   = "random"
	StrategySequence = "sequence"

	DirectionForward = "forward"
	DirectionReverse = "reverse"

	ColumnsSingle = "single"
	ColumnsDouble = "double"

	DensityLoose   = "loose"
	DensityCompact = "compact"
)

var (
	typeValues      = []string{TypeAll, "core", "extension", "theme", "framework"}
	scopeValues     = []string{ScopeAll, ScopeCurrent, "win32", "linux", "darwin"}
	strategyValues  = []string{StrategyRandom, StrategySequence}
	directionValues = []string{DirectionForward, DirectionReverse}
	columnsValues   = []string{ColumnsSingle, ColumnsDouble}
	densityValues   = []string{DensityLoose, DensityCompact}
)

// ErrInvalid marks a preference value outside its accepted set.
var ErrInvalid = errors.New("config: invalid value")

// Config is the session configuration. The pair fields keep the wire shape
// of two-element JSON arrays.
type Config struct {
	MirrorList []string  `json:"mirrorlist"`
	PluginType [2]string `json:"plugin_type"` // type filter, platform scope
	SortOrder  [2]string `json:"sort_order"`  // strategy, direction
	ListStyle  [2]string `json:"list_style"`  // columns, density
}

// Default returns the configuration used when nothing is stored.
func Default() Config {
	return Config{
		MirrorList: []string{DefaultMirrorList},
		PluginType: [2]string{TypeAll, ScopeCurrent},
		SortOrder:  [2]string{StrategyRandom, DirectionForward},
		ListStyle:  [2]string{ColumnsSingle, DensityLoose},
	}
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	c.MirrorList = slices.Clone(c.MirrorList)
	return c
}

// TypeFilter is the plugin type shown, or "all".
func (c Config) TypeFilter() string { return c.PluginType[0] }

// Scope is the platform filter: "all", "current" or a platform token.
func (c Config) Scope() string { return c.PluginType[1] }

// Strategy is "random" or "sequence".
func (c Config) Strategy() string { return c.SortOrder[0] }

// Direction is "forward" or "reverse".
func (c Config) Direction() string { return c.SortOrder[1] }

// Validate reports the first preference value that is not recognised.
func (c Config) Validate() error {
	checks := []struct {
		field string
		value string
		allow []string
	}{
		{"plugin_type[0]", c.PluginType[0], typeValues},
		{"plugin_type[1]", c.PluginType[1], scopeValues},
		{"sort_order[0]", c.SortOrder[0], strategyValues},
		{"sort_order[1]", c.SortOrder[1], directionValues},
		{"list_style[0]", c.ListStyle[0], columnsValues},
		{"list_style[1]", c.ListStyle[1], densityValues},
	}
	for _, ch := range checks {
		if !slices.Contains(ch.allow, ch.value) {
			return fmt.Errorf("%w: %s: unknown value %q", ErrInvalid, ch.field, ch.value)
		}
	}
	return nil
}

// Equal reports whether two configs hold the same values.
func (c Config) Equal(o Config) bool {
	return slices.Equal(c.MirrorList, o.MirrorList) &&
		c.PluginType == o.PluginType &&
		c.SortOrder == o.SortOrder &&
		c.ListStyle == o.ListStyle
}
