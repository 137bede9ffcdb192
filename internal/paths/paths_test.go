package paths

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolveUsesFlag(t *testing.T) {
	dir := t.TempDir()
	pp, err := Resolve(dir)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if pp.Root != dir {
		t.Fatalf("expected root %s, got %s", dir, pp.Root)
	}
	if pp.ConfigFile != filepath.Join(dir, "fridamgr.yaml") {
		t.Fatalf("unexpected config file: %s", pp.ConfigFile)
	}
}

func TestResolveDefaultsToCwd(t *testing.T) {
	pp, err := Resolve("")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if pp.Root != cwd {
		t.Fatalf("expected cwd root %s, got %s", cwd, pp.Root)
	}
}

func TestGlobalDirOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FRIDAMGR_HOME", dir)

	global, err := GlobalDir()
	if err != nil {
		t.Fatalf("global dir: %v", err)
	}
	if global != dir {
		t.Fatalf("expected override %s, got %s", dir, global)
	}

	cache, err := CacheRoot()
	if err != nil {
		t.Fatalf("cache root: %v", err)
	}
	if cache != filepath.Join(dir, "cache") {
		t.Fatalf("unexpected cache root: %s", cache)
	}
	if ok, _ := DirExists(cache); !ok {
		t.Fatalf("cache root not created")
	}

	mapFile, err := VersionMapFile()
	if err != nil {
		t.Fatalf("version map file: %v", err)
	}
	if mapFile != filepath.Join(dir, "version-map.yaml") {
		t.Fatalf("unexpected version map path: %s", mapFile)
	}
}

func TestResolveProjectPath(t *testing.T) {
	if got := ResolveProjectPath("/proj", "bin/frida-server"); got != filepath.Join("/proj", "bin", "frida-server") {
		t.Fatalf("relative path: %s", got)
	}
	if got := ResolveProjectPath("/proj", "/abs/frida-server"); got != "/abs/frida-server" {
		t.Fatalf("absolute path: %s", got)
	}
}

func TestFileExists(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if ok, err := FileExists(file); err != nil || ok {
		t.Fatalf("expected missing file, ok=%v err=%v", ok, err)
	}
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if ok, err := FileExists(file); err != nil || !ok {
		t.Fatalf("expected file, ok=%v err=%v", ok, err)
	}
	if ok, err := FileExists(dir); err != nil || ok {
		t.Fatalf("directory should not count as file, ok=%v err=%v", ok, err)
	}
}
