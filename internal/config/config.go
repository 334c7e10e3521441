// Package config resolves the per-user application directories and loads the
// user-editable YAML configuration. Environment variables override the file.
//
// The database location is not part of the configuration: the store always
// lives at DataDir()/DBFileName.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

const (
	appName     = "GHNotify"
	appNameUnix = "ghnotify"

	// DBFileName is the fixed name of the notification store file.
	DBFileName = "github.sqlite3"

	configFileName = "config.yaml"

	// Version is the config_version this build writes and understands.
	Version = 1
)

// Env var names used as overrides.
const (
	EnvListenAddr = "GHNOTIFY_LISTEN_ADDR"
	EnvLogLevel   = "GHNOTIFY_LOG_LEVEL"
	EnvLogFormat  = "GHNOTIFY_LOG_FORMAT"
	EnvLogFile    = "GHNOTIFY_LOG_FILE"
	EnvLogSource  = "GHNOTIFY_LOG_SOURCE"
)

// APIConfig configures the local HTTP API.
type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// LoggingConfig configures console and file logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" | "json"
	Source bool   `yaml:"source"`
	File   string `yaml:"file"` // optional, rotated
}

// AppConfig is the user-editable configuration. ConfigVersion is checked
// by LoadFile; a file written by a newer build is rejected.
type AppConfig struct {
	ConfigVersion int           `yaml:"config_version"`
	API           APIConfig     `yaml:"api"`
	Logging       LoggingConfig `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: Version,
		API:           APIConfig{ListenAddr: "127.0.0.1:7878"},
		Logging:       LoggingConfig{Level: "info", Format: "text"},
	}
}

// home is swapped in tests.
var home = os.UserHomeDir

// DataDir returns the per-user application-support directory that holds the
// notification store.
func DataDir() (string, error) {
	h, err := home()
	if err != nil {
		return "", err
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(h, "Library", "Application Support", appName), nil
	case "windows":
		base := os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(h, "AppData", "Roaming")
		}
		return filepath.Join(base, appName), nil
	default:
		if x := os.Getenv("XDG_DATA_HOME"); x != "" {
			return filepath.Join(x, appNameUnix), nil
		}
		if h == "" {
			return "", errors.New("cannot resolve data directory")
		}
		return filepath.Join(h, ".local", "share", appNameUnix), nil
	}
}

// DBPath returns the fixed location of the notification store.
func DBPath() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DBFileName), nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		dir, err := DataDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(dir, configFileName), nil
	}
	if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
		return filepath.Join(x, appNameUnix, configFileName), nil
	}
	h, err := home()
	if err != nil {
		return "", err
	}
	return filepath.Join(h, ".config", appNameUnix, configFileName), nil
}

// Load reads the user config file (if present), applies defaults and merges
// environment overrides. A missing file is not an error; a malformed one is.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		cfg := Defaults()
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	return LoadFile(path)
}

// LoadFile is Load with an explicit path.
func LoadFile(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := validate(data); err != nil {
			applyEnvOverrides(&cfg)
			return cfg, fmt.Errorf("%s: %w", path, err)
		}
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			applyEnvOverrides(&cfg)
			return cfg, err
		}
		mergeInto(&cfg, &fileCfg)
		if cfg.ConfigVersion > Version {
			applyEnvOverrides(&cfg)
			return cfg, fmt.Errorf("%s: config_version %d is newer than supported version %d", path, cfg.ConfigVersion, Version)
		}
	case !errors.Is(err, os.ErrNotExist):
		applyEnvOverrides(&cfg)
		return cfg, err
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Save writes cfg as YAML to path, creating the directory if needed.
func Save(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

//go:embed config.schema.json
var schemaJSON []byte

var schemaLoader = gojsonschema.NewBytesLoader(schemaJSON)

// validate checks a YAML config document against config.schema.json.
// Unknown keys are errors.
func validate(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	if doc == nil {
		return nil
	}
	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, len(result.Errors()))
	for i, e := range result.Errors() {
		msgs[i] = e.String()
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

func mergeInto(dst *AppConfig, src *AppConfig) {
	if src.ConfigVersion != 0 {
		dst.ConfigVersion = src.ConfigVersion
	}
	if v := strings.TrimSpace(src.API.ListenAddr); v != "" {
		dst.API.ListenAddr = v
	}
	if v := strings.TrimSpace(src.Logging.Level); v != "" {
		dst.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(src.Logging.Format); v != "" {
		dst.Logging.Format = strings.ToLower(v)
	}
	dst.Logging.Source = src.Logging.Source
	if v := strings.TrimSpace(src.Logging.File); v != "" {
		dst.Logging.File = v
	}
}

func applyEnvOverrides(cfg *AppConfig) {
	if v := strings.TrimSpace(os.Getenv(EnvListenAddr)); v != "" {
		cfg.API.ListenAddr = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFormat)); v != "" {
		cfg.Logging.Format = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogFile)); v != "" {
		cfg.Logging.File = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogSource)); v != "" {
		lv := strings.ToLower(v)
		cfg.Logging.Source = lv == "1" || lv == "true" || lv == "on" || lv == "yes"
	}
}
