package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Fatalf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestLoadFillsUnsetFields(t *testing.T) {
	path := writeConfig(t, `
p4runtime_addr = "10.0.0.5:50051"
output = "json"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.P4RuntimeAddr != "10.0.0.5:50051" {
		t.Fatalf("p4runtime_addr = %q", cfg.P4RuntimeAddr)
	}
	if cfg.Output != "json" {
		t.Fatalf("output = %q", cfg.Output)
	}
	if cfg.OvsdbAddr != "127.0.0.1:5000" || cfg.ElectionHigh != 1 || cfg.ArbitrationTimeoutMS != 2000 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
}

func TestLoadElectionOverride(t *testing.T) {
	path := writeConfig(t, `
election_high = 0
election_low = 9
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ElectionHigh != 0 || cfg.ElectionLow != 9 {
		t.Fatalf("election = (%d,%d), want (0,9)", cfg.ElectionHigh, cfg.ElectionLow)
	}
}

func TestLoadRejectsBadOutput(t *testing.T) {
	path := writeConfig(t, `output = "xml"`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unsupported output format")
	}
}

func TestLoadRejectsBadToml(t *testing.T) {
	path := writeConfig(t, `p4runtime_addr = [`)
	if _, err := Load(path); err == nil {
		t.Fatal("expected parse error")
	}
}
