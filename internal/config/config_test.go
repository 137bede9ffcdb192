package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "fridamgr.yaml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Frida.Version != "latest" {
		t.Fatalf("expected default version latest, got %q", cfg.Frida.Version)
	}
	if cfg.Android.ServerPort != 27042 {
		t.Fatalf("expected default port 27042, got %d", cfg.Android.ServerPort)
	}
	if cfg.Android.RootCommand != "su" {
		t.Fatalf("expected default root command su, got %q", cfg.Android.RootCommand)
	}
	if cfg.Android.Server.Source != SourceDownload {
		t.Fatalf("expected default source download, got %q", cfg.Android.Server.Source)
	}
}

func TestLoadAppliesPartialOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fridamgr.yaml")
	contents := `version: 1
frida:
  version: "16.4.0"
android:
  server_port: 31337
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Frida.Version != "16.4.0" {
		t.Fatalf("expected version 16.4.0, got %q", cfg.Frida.Version)
	}
	if cfg.Android.ServerPort != 31337 {
		t.Fatalf("expected port 31337, got %d", cfg.Android.ServerPort)
	}
	if cfg.Android.PushPath != "/data/local/tmp/" {
		t.Fatalf("expected default push path, got %q", cfg.Android.PushPath)
	}
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fridamgr.yaml")
	contents := `version: 1
android:
  arch: mips
  server:
    source: torrent
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	if !strings.Contains(err.Error(), "android.arch") {
		t.Fatalf("expected arch error, got %v", err)
	}
	if !strings.Contains(err.Error(), "android.server.source") {
		t.Fatalf("expected source error, got %v", err)
	}
}

func TestValidateServerName(t *testing.T) {
	if err := ValidateServerName("frida-server_2.test"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ValidateServerName("bad name"); err == nil {
		t.Fatal("expected error for name with space")
	}
	if err := ValidateServerName(""); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fridamgr.yaml")

	cfg := Default()
	cfg.Frida.Version = "16.1.4"
	cfg.Android.ServerName = "inject"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if loaded.Frida.Version != "16.1.4" {
		t.Fatalf("expected version 16.1.4, got %q", loaded.Frida.Version)
	}
	if loaded.Android.ServerName != "inject" {
		t.Fatalf("expected server name inject, got %q", loaded.Android.ServerName)
	}
}
