package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "valid_config.yaml"))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cfg.DeckRoots) != 1 || cfg.DeckRoots[0] != "/etc/deckfsd/decks/main" {
		t.Errorf("deck roots = %v", cfg.DeckRoots)
	}
	if cfg.Hardware.Backend != "mock" {
		t.Errorf("backend = %q", cfg.Hardware.Backend)
	}
}

func TestLoadMissingDeckRoots(t *testing.T) {
	path := writeTemp(t, "version: 1\nhardware:\n  backend: mock\n  rows: 1\n  cols: 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing deck roots")
	}
}

func TestLoadUnknownBackend(t *testing.T) {
	path := writeTemp(t, "version: 1\ndeck_roots: [/a]\nhardware:\n  backend: bogus\n  rows: 1\n  cols: 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestLoadPeriphRequiresSPIPortAndInputDevice(t *testing.T) {
	path := writeTemp(t, "version: 1\ndeck_roots: [/a]\nhardware:\n  backend: periph\n  rows: 1\n  cols: 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for periph backend missing spi_port/input_device")
	}
}

func TestLoadSnapshotRequiresAddr(t *testing.T) {
	path := writeTemp(t, "version: 1\ndeck_roots: [/a]\nhardware:\n  backend: mock\n  rows: 1\n  cols: 1\nsnapshot:\n  enabled: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for snapshot enabled without addr")
	}
}

func TestLoadMissingFonts(t *testing.T) {
	path := writeTemp(t, "version: 1\ndeck_roots: [/a]\nhardware:\n  backend: mock\n  rows: 1\n  cols: 1\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for missing fonts")
	}
}

func TestLoadFileNotFound(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func writeTemp(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "deckfsd.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing temp config: %v", err)
	}
	return path
}
