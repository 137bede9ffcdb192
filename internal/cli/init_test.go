package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestResolveInitDir(t *testing.T) {
	t.Run("project flag takes precedence", func(t *testing.T) {
		dir, err := resolveInitDir("/custom/path", []string{"ignored"})
		if err != nil {
			t.Fatal(err)
		}
		if dir != "/custom/path" {
			t.Fatalf("got %s, want /custom/path", dir)
		}
	})

	t.Run("dot uses cwd", func(t *testing.T) {
		cwd, _ := os.Getwd()
		dir, err := resolveInitDir("", []string{"."})
		if err != nil {
			t.Fatal(err)
		}
		if dir != cwd {
			t.Fatalf("got %s, want %s", dir, cwd)
		}
	})

	t.Run("named arg creates subdirectory", func(t *testing.T) {
		cwd, _ := os.Getwd()
		dir, err := resolveInitDir("", []string{"my-device-lab"})
		if err != nil {
			t.Fatal(err)
		}
		want := filepath.Join(cwd, "my-device-lab")
		if dir != want {
			t.Fatalf("got %s, want %s", dir, want)
		}
	})
}

func TestInitCreatesConfig(t *testing.T) {
	t.Setenv("FRIDAMGR_HOME", t.TempDir())
	dir := t.TempDir()

	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs([]string{"init", "--project", dir})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("init returned error: %v", err)
	}

	configPath := filepath.Join(dir, "fridamgr.yaml")
	contents, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("expected config written: %v", err)
	}
	if !strings.Contains(string(contents), "version: latest") {
		t.Fatalf("expected default frida version in config, got:\n%s", contents)
	}
	if !strings.Contains(out.String(), "Initialized project") {
		t.Fatalf("unexpected output: %s", out.String())
	}
}

func TestInitIsIdempotent(t *testing.T) {
	t.Setenv("FRIDAMGR_HOME", t.TempDir())
	dir := t.TempDir()

	for i := 0; i < 2; i++ {
		cmd := newRootCmd()
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs([]string{"init", "--project", dir})
		if err := cmd.Execute(); err != nil {
			t.Fatalf("init returned error: %v", err)
		}
	}
}
