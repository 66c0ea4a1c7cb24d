// Package config loads client configuration from an optional TOML file
// and watches collaborator files for live reload.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

// Config holds client settings. Flags override file values; the file
// overrides defaults.
type Config struct {
	// Timeout is the connection timeout in seconds.
	Timeout int `toml:"timeout"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	// LogFile receives session logs. Empty disables logging during
	// the session so output cannot corrupt the raw display.
	LogFile string `toml:"log_file"`

	// Expansions is the path to the key=value shortcuts file.
	Expansions string `toml:"expansions"`

	// LuaScripts is the directory holding *.lua trigger scripts.
	LuaScripts string `toml:"lua_scripts"`

	// LuaPatterns is the path to the regex|script|comment file.
	LuaPatterns string `toml:"lua_patterns"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Timeout:  30,
		LogLevel: "info",
	}
}

// DefaultPath returns the conventional config file location, or empty
// if the user config directory cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "baud", "config.toml")
}

// Load reads TOML configuration from path over the defaults. A missing
// file is not an error; the defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}
