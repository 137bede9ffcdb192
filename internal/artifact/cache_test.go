package artifact

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ulikunitz/xz"
)

func xzCompress(t *testing.T, payload []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatalf("create xz writer: %v", err)
	}
	if _, err := w.Write(payload); err != nil {
		t.Fatalf("write xz payload: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close xz writer: %v", err)
	}
	return buf.Bytes()
}

func TestAcquireDownloadsOnceThenHits(t *testing.T) {
	payload := []byte("fake frida-server binary")
	compressed := xzCompress(t, payload)

	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.URL.Path != "/16.4.0/frida-server-16.4.0-android-arm64.xz" {
			t.Errorf("unexpected request path %q", r.URL.Path)
		}
		_, _ = w.Write(compressed)
	}))
	defer srv.Close()

	cache := &Cache{Root: t.TempDir(), ReleasesURL: srv.URL, HTTPClient: srv.Client()}
	key := Key{Version: "16.4.0", Arch: ArchARM64}

	path, err := cache.Acquire(context.Background(), key, Download())
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cached binary: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("cached contents mismatch: %q", got)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat cached binary: %v", err)
	}
	if info.Mode().Perm() != 0o755 {
		t.Fatalf("expected mode 0755, got %v", info.Mode().Perm())
	}

	if _, err := cache.Acquire(context.Background(), key, Download()); err != nil {
		t.Fatalf("second Acquire returned error: %v", err)
	}
	if requests != 1 {
		t.Fatalf("expected exactly one download, got %d", requests)
	}
}

func TestAcquireDownloadFailedLeavesNoResidue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	cache := &Cache{Root: t.TempDir(), ReleasesURL: srv.URL, HTTPClient: srv.Client()}
	key := Key{Version: "16.4.0", Arch: ArchARM}

	_, err := cache.Acquire(context.Background(), key, Download())
	if !errors.Is(err, ErrDownloadFailed) {
		t.Fatalf("expected ErrDownloadFailed, got %v", err)
	}
	if cache.Has(key) {
		t.Fatal("expected no artifact under the final path after failure")
	}
}

func TestAcquireCorruptArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not an xz stream"))
	}))
	defer srv.Close()

	cache := &Cache{Root: t.TempDir(), ReleasesURL: srv.URL, HTTPClient: srv.Client()}
	key := Key{Version: "16.4.0", Arch: ArchX86}

	_, err := cache.Acquire(context.Background(), key, Download())
	if !errors.Is(err, ErrCorrupt) {
		t.Fatalf("expected ErrCorrupt, got %v", err)
	}
	if cache.Has(key) {
		t.Fatal("expected no artifact under the final path after failure")
	}
	matches, _ := filepath.Glob(filepath.Join(cache.Root, "servers", "16.4.0", "x86", "*.tmp"))
	if len(matches) != 0 {
		t.Fatalf("expected temp files cleaned up, found %v", matches)
	}
}

func holdLock(t *testing.T, cache *Cache, key Key) string {
	t.Helper()
	lockPath := filepath.Join(cache.Root, "servers", key.Version+"-"+string(key.Arch)+".lock")
	if err := os.MkdirAll(filepath.Dir(lockPath), 0o755); err != nil {
		t.Fatalf("prepare cache root: %v", err)
	}
	if err := os.WriteFile(lockPath, nil, 0o600); err != nil {
		t.Fatalf("write lock file: %v", err)
	}
	return lockPath
}

func TestAcquireWaitsForInstallLock(t *testing.T) {
	cache := &Cache{Root: t.TempDir()}
	key := Key{Version: "16.4.0", Arch: ArchARM64}
	lockPath := holdLock(t, cache, key)

	done := make(chan error, 1)
	go func() {
		_, err := cache.Acquire(context.Background(), key, Download())
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Acquire returned while lock held: %v", err)
	case <-time.After(300 * time.Millisecond):
	}

	// Simulate the lock holder finishing its install, then releasing.
	final := cache.Path(key)
	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		t.Fatalf("prepare cache dir: %v", err)
	}
	if err := os.WriteFile(final, []byte("bin"), 0o755); err != nil {
		t.Fatalf("write cached binary: %v", err)
	}
	if err := os.Remove(lockPath); err != nil {
		t.Fatalf("release lock: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Acquire returned error after lock release: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Acquire still blocked after lock release")
	}
}

func TestAcquireLockAbortsOnCancel(t *testing.T) {
	cache := &Cache{Root: t.TempDir()}
	key := Key{Version: "16.4.0", Arch: ArchARM64}
	holdLock(t, cache, key)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.Acquire(ctx, key, Download())
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Acquire did not abort on cancel")
	}
	if cache.Has(key) {
		t.Fatal("expected no artifact under the final path after cancel")
	}
}

func TestAcquireLocalSource(t *testing.T) {
	dir := t.TempDir()
	source := filepath.Join(dir, "frida-server-custom")
	if err := os.WriteFile(source, []byte("locally built server"), 0o644); err != nil {
		t.Fatalf("write source binary: %v", err)
	}

	cache := &Cache{Root: t.TempDir()}
	key := Key{Version: "16.1.4", Arch: ArchARM64}

	path, err := cache.Acquire(context.Background(), key, Local(source))
	if err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read cached binary: %v", err)
	}
	if string(got) != "locally built server" {
		t.Fatalf("cached contents mismatch: %q", got)
	}
}

func TestAcquireLocalSourceMissing(t *testing.T) {
	cache := &Cache{Root: t.TempDir()}
	key := Key{Version: "16.1.4", Arch: ArchARM64}

	_, err := cache.Acquire(context.Background(), key, Local(filepath.Join(t.TempDir(), "nope")))
	if !errors.Is(err, ErrLocalMissing) {
		t.Fatalf("expected ErrLocalMissing, got %v", err)
	}
}

func TestInstalledAndRemove(t *testing.T) {
	cache := &Cache{Root: t.TempDir()}
	keys := []Key{
		{Version: "16.4.0", Arch: ArchARM64},
		{Version: "16.4.0", Arch: ArchARM},
		{Version: "15.2.2", Arch: ArchARM64},
	}
	for _, key := range keys {
		path := cache.Path(key)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("prepare cache dir: %v", err)
		}
		if err := os.WriteFile(path, []byte("bin"), 0o755); err != nil {
			t.Fatalf("write cached binary: %v", err)
		}
	}

	entries, err := cache.Installed()
	if err != nil {
		t.Fatalf("Installed returned error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	if entries[0].Key != (Key{Version: "16.4.0", Arch: ArchARM}) {
		t.Fatalf("unexpected first entry: %+v", entries[0].Key)
	}

	if err := cache.Remove(Key{Version: "15.2.2", Arch: ArchARM64}); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	entries, err = cache.Installed()
	if err != nil {
		t.Fatalf("Installed returned error: %v", err)
	}
	for _, entry := range entries {
		if entry.Key.Version == "15.2.2" {
			t.Fatalf("expected 15.2.2 gone, still present: %+v", entry)
		}
	}

	// Removing an absent key is a no-op.
	if err := cache.Remove(Key{Version: "1.0.0", Arch: ArchX86}); err != nil {
		t.Fatalf("Remove of absent key returned error: %v", err)
	}
}

func TestFromABI(t *testing.T) {
	cases := map[string]Arch{
		"arm64-v8a":   ArchARM64,
		"aarch64":     ArchARM64,
		"armeabi-v7a": ArchARM,
		"armeabi":     ArchARM,
		"arm":         ArchARM,
		"x86_64":      ArchX8664,
		"x86":         ArchX86,
		"mystery":     ArchARM64,
	}
	for abi, want := range cases {
		if got := FromABI(abi); got != want {
			t.Errorf("FromABI(%q) = %q, want %q", abi, got, want)
		}
	}
}

func TestParseArch(t *testing.T) {
	if _, err := Parse("arm64"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := Parse("mips"); err == nil {
		t.Fatal("expected error for unsupported architecture")
	}
}
