package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	cfg := Default()
	cfg.Chat = "chat123"
	cfg.BrainURL = "http://brain:3001"
	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Chat != "chat123" {
		t.Errorf("Chat = %q, want %q", loaded.Chat, "chat123")
	}
	if loaded.BrainURL != "http://brain:3001" {
		t.Errorf("BrainURL = %q, want %q", loaded.BrainURL, "http://brain:3001")
	}
}

func TestLoadMissingUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.PollInterval() != 2*time.Second {
		t.Errorf("PollInterval = %v, want 2s", cfg.PollInterval())
	}
	if cfg.RetryMaxAttempts != 10 {
		t.Errorf("RetryMaxAttempts = %d, want 10", cfg.RetryMaxAttempts)
	}
	if cfg.RetryWindow() != 20*time.Second {
		t.Errorf("RetryWindow = %v, want 20s", cfg.RetryWindow())
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("MOJI_TARGET_CHAT", "+15551234567")
	t.Setenv("MOJI_BRAIN_URL", "http://other:9000")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Chat != "+15551234567" {
		t.Errorf("Chat = %q, want env override", cfg.Chat)
	}
	if cfg.BrainURL != "http://other:9000" {
		t.Errorf("BrainURL = %q, want env override", cfg.BrainURL)
	}
}

func TestValidateRequiresChat(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should fail without a watched chat")
	}
	cfg.Chat = "chat123"
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestSavePermissions(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")

	if err := Save(path, Default()); err != nil {
		t.Fatal(err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	perm := info.Mode().Perm()
	if perm != 0600 {
		t.Errorf("file permission = %o, want 0600", perm)
	}
}
