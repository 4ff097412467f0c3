package cli

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCommandsRegistered(t *testing.T) {
	if rootCmd == nil {
		t.Fatal("rootCmd should not be nil")
	}

	expected := map[string]bool{
		"sessions":   false,
		"events":     false,
		"baseline":   false,
		"stats":      false,
		"health":     false,
		"interfaces": false,
		"watch":      false,
		"config":     false,
	}

	for _, cmd := range rootCmd.Commands() {
		name := strings.Fields(cmd.Use)[0]
		if _, ok := expected[name]; ok {
			expected[name] = true
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("expected command %q to be registered with root command", name)
		}
	}
}

func TestSessionsSubcommands(t *testing.T) {
	expected := map[string]bool{
		"list":  false,
		"get":   false,
		"start": false,
		"stop":  false,
		"ack":   false,
	}

	for _, cmd := range sessionsCmd.Commands() {
		name := strings.Fields(cmd.Use)[0]
		if _, ok := expected[name]; ok {
			expected[name] = true
		}
	}

	for name, found := range expected {
		if !found {
			t.Errorf("expected sessions subcommand %q to be registered", name)
		}
	}
}

func TestPersistentFlags(t *testing.T) {
	for _, flag := range []string{"config", "server", "output", "timeout"} {
		if rootCmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("expected persistent flag %q", flag)
		}
	}
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig on missing file: %v", err)
	}
	if cfg.Server != "" || cfg.Output != "" {
		t.Fatalf("missing file should load empty, got %+v", cfg)
	}

	cfg.Server = "http://harrierd.internal:8175"
	cfg.Output = "json"
	if err := cfg.save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig after save: %v", err)
	}
	if loaded.Server != cfg.Server {
		t.Errorf("server = %q, want %q", loaded.Server, cfg.Server)
	}
	if loaded.Output != "json" {
		t.Errorf("output = %q, want json", loaded.Output)
	}
}

func TestConfigRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server: [unclosed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestEventsFlags(t *testing.T) {
	for _, flag := range []string{"type", "subject", "facet", "sort", "desc", "offset", "limit"} {
		if eventsCmd.Flags().Lookup(flag) == nil {
			t.Errorf("expected events flag %q", flag)
		}
	}
}
