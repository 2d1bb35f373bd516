package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadCreatesDefaultsOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "reizoko.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("first load: %v", err)
	}
	if cfg.Listen != ":2026" || cfg.RoomIdleDays != 90 {
		t.Fatalf("defaults wrong: %+v", cfg)
	}

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config file not written: %v", err)
	}

	// The written file loads back to the same config.
	again, err := Load(path)
	if err != nil {
		t.Fatalf("second load: %v", err)
	}
	if *again != *cfg {
		t.Fatalf("round trip changed config:\n got %+v\nwant %+v", again, cfg)
	}
}

func TestLoadNormalizesPartialConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reizoko.yaml")
	if err := os.WriteFile(path, []byte("listen: \":9999\"\nroom_idle_days: -5\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Listen != ":9999" {
		t.Fatalf("explicit value lost: %q", cfg.Listen)
	}
	if cfg.DataDir != "./data" || cfg.CleanupCron != "0 3 * * *" || cfg.PresenceTTLSeconds != 60 {
		t.Fatalf("missing fields not filled: %+v", cfg)
	}
	if cfg.RoomIdleDays != 0 {
		t.Fatalf("negative idle days kept: %d", cfg.RoomIdleDays)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reizoko.yaml")
	if err := os.WriteFile(path, []byte("listen: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("malformed yaml accepted")
	}
}

func TestLoadEmptyPath(t *testing.T) {
	if _, err := Load(""); err == nil {
		t.Fatal("empty path accepted")
	}
}

func TestSaveKeepsSecretOutOfDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reizoko.yaml")
	if err := Save(path, DefaultConfig()); err != nil {
		t.Fatalf("save: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(data) == 0 {
		t.Fatal("empty config written")
	}
	// jwt_secret is omitempty; the default file must not pin an empty secret.
	if strings.Contains(string(data), "jwt_secret") {
		t.Fatalf("default config leaked a secret field:\n%s", data)
	}
}
