// Package config provides configuration management for chroma-backfill.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

const (
	// DataDirEnv overrides the memory data directory.
	DataDirEnv = "CLAUDE_MEM_DATA_DIR"

	// DBFileName is the memory store file inside the data directory.
	DBFileName = "claude-mem.db"

	// SettingsFileName is the settings file inside the data directory.
	SettingsFileName = "settings.json"

	DefaultChromaHost     = "127.0.0.1"
	DefaultChromaPort     = 8000
	DefaultChromaTenant   = "default_tenant"
	DefaultChromaDatabase = "default_database"
)

// Settings keys shared with the memory worker. Each can also be set as an
// environment variable of the same name, which wins over the file.
const (
	KeyChromaHost     = "CLAUDE_MEM_CHROMA_HOST"
	KeyChromaPort     = "CLAUDE_MEM_CHROMA_PORT"
	KeyChromaSSL      = "CLAUDE_MEM_CHROMA_SSL"
	KeyChromaTenant   = "CLAUDE_MEM_CHROMA_TENANT"
	KeyChromaDatabase = "CLAUDE_MEM_CHROMA_DATABASE"
	KeyChromaAPIKey   = "CLAUDE_MEM_CHROMA_API_KEY"
)

var settingKeys = []string{KeyChromaHost, KeyChromaPort, KeyChromaSSL, KeyChromaTenant, KeyChromaDatabase, KeyChromaAPIKey}

// Config holds the backfill's connection settings.
type Config struct {
	DBPath         string
	ChromaHost     string
	ChromaTenant   string
	ChromaDatabase string
	ChromaAPIKey   string
	ChromaPort     int
	ChromaSSL      bool
}

// DataDir returns the memory data directory.
func DataDir() string {
	if dir := os.Getenv(DataDirEnv); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return filepath.Join(home, ".claude-mem")
}

// DBPath returns the default memory store path.
func DBPath() string {
	return filepath.Join(DataDir(), DBFileName)
}

// SettingsPath returns the settings file path.
func SettingsPath() string {
	return filepath.Join(DataDir(), SettingsFileName)
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		DBPath:         DBPath(),
		ChromaHost:     DefaultChromaHost,
		ChromaPort:     DefaultChromaPort,
		ChromaTenant:   DefaultChromaTenant,
		ChromaDatabase: DefaultChromaDatabase,
	}
}

// Load reads settings.json from the data directory and applies environment
// overrides. A missing or unreadable settings file yields the defaults.
func Load() (*Config, error) {
	cfg := Default()

	settings := readSettings(SettingsPath())
	for _, key := range settingKeys {
		if v := os.Getenv(key); v != "" {
			settings[key] = v
		}
	}

	if v := settings[KeyChromaHost]; v != "" {
		cfg.ChromaHost = v
	}
	if v, err := strconv.Atoi(settings[KeyChromaPort]); err == nil && v > 0 {
		cfg.ChromaPort = v
	}
	cfg.ChromaSSL = settings[KeyChromaSSL] == "true"
	if v := settings[KeyChromaTenant]; v != "" {
		cfg.ChromaTenant = v
	}
	if v := settings[KeyChromaDatabase]; v != "" {
		cfg.ChromaDatabase = v
	}
	cfg.ChromaAPIKey = settings[KeyChromaAPIKey]

	return cfg, nil
}

// readSettings returns the flat settings map with every value as a string.
// Older files nest the keys under "env".
func readSettings(path string) map[string]string {
	settings := make(map[string]string)

	// #nosec G304 -- path is derived from the data directory
	data, err := os.ReadFile(path)
	if err != nil {
		return settings
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return settings
	}
	if nested, ok := raw["env"]; ok {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(nested, &env); err == nil {
			raw = env
		}
	}

	for key, value := range raw {
		if s, ok := settingString(value); ok {
			settings[key] = s
		}
	}
	return settings
}

// settingString accepts string, number and boolean values.
func settingString(value json.RawMessage) (string, bool) {
	text := strings.TrimSpace(string(value))
	if text == "" || text == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(value, &s); err == nil {
		return s, true
	}
	switch {
	case text == "true" || text == "false":
		return text, true
	case text[0] == '-' || (text[0] >= '0' && text[0] <= '9'):
		return text, true
	}
	return "", false
}
