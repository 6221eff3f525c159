package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds the client-side defaults that every command shares.
// A missing config file is not an error; the built-in defaults apply.
type Config struct {
	P4RuntimeAddr        string `toml:"p4runtime_addr"`
	OvsdbAddr            string `toml:"ovsdb_addr"`
	ElectionHigh         uint64 `toml:"election_high"`
	ElectionLow          uint64 `toml:"election_low"`
	ArbitrationTimeoutMS int    `toml:"arbitration_timeout_ms"`
	Output               string `toml:"output"`
}

// DefaultPath returns ~/.p4ctl/config.toml, or "" when the home
// directory cannot be determined.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".p4ctl", "config.toml")
}

func Default() Config {
	return Config{
		P4RuntimeAddr:        "localhost:50051",
		OvsdbAddr:            "127.0.0.1:5000",
		ElectionHigh:         1,
		ElectionLow:          0,
		ArbitrationTimeoutMS: 2000,
		Output:               "table",
	}
}

// Load reads cfg from path, filling unset fields with defaults. When
// path does not exist the defaults are returned as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if err := loadToml(path, &cfg); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, err
	}
	applyDefaults(&cfg)
	if err := Validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.P4RuntimeAddr == "" {
		cfg.P4RuntimeAddr = def.P4RuntimeAddr
	}
	if cfg.OvsdbAddr == "" {
		cfg.OvsdbAddr = def.OvsdbAddr
	}
	if cfg.ElectionHigh == 0 && cfg.ElectionLow == 0 {
		cfg.ElectionHigh, cfg.ElectionLow = def.ElectionHigh, def.ElectionLow
	}
	if cfg.ArbitrationTimeoutMS == 0 {
		cfg.ArbitrationTimeoutMS = def.ArbitrationTimeoutMS
	}
	if cfg.Output == "" {
		cfg.Output = def.Output
	}
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func Validate(cfg Config) error {
	if strings.TrimSpace(cfg.P4RuntimeAddr) == "" {
		return fmt.Errorf("config missing p4runtime_addr")
	}
	if strings.TrimSpace(cfg.OvsdbAddr) == "" {
		return fmt.Errorf("config missing ovsdb_addr")
	}
	if cfg.ArbitrationTimeoutMS < 0 {
		return fmt.Errorf("config arbitration_timeout_ms must not be negative")
	}
	switch strings.ToLower(cfg.Output) {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("config output %q not one of table, json, yaml", cfg.Output)
	}
	return nil
}
