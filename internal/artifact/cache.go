package artifact

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ulikunitz/xz"
)

// Failure kinds surfaced by Acquire. None of them leave residue under the
// final cache path.
var (
	ErrDownloadFailed = errors.New("download failed")
	ErrCorrupt        = errors.New("corrupt artifact")
	ErrLocalMissing   = errors.New("local artifact missing")
)

// BinaryName is the filename every cached server binary is stored under.
const BinaryName = "frida-server"

// Key addresses one cached binary.
type Key struct {
	Version string
	Arch    Arch
}

func (k Key) String() string {
	return k.Version + "/" + string(k.Arch)
}

// Source selects where an artifact comes from.
type Source struct {
	local string
}

// Download fetches the artifact from the remote distribution source.
func Download() Source { return Source{} }

// Local copies the binary at path into the cache, bypassing the network.
func Local(path string) Source { return Source{local: path} }

// Entry describes one binary present in the cache.
type Entry struct {
	Key  Key
	Path string
	Size int64
}

// Cache stores decompressed server binaries under one directory per
// (version, architecture) pair.
type Cache struct {
	Root        string
	ReleasesURL string
	HTTPClient  *http.Client
}

// Path returns the final location for a key whether or not it exists yet.
func (c *Cache) Path(key Key) string {
	return filepath.Join(c.Root, "servers", key.Version, string(key.Arch), BinaryName)
}

// Has reports whether the cache already holds the binary for a key.
func (c *Cache) Has(key Key) bool {
	info, err := os.Stat(c.Path(key))
	return err == nil && info.Mode().IsRegular()
}

// Acquire ensures the binary for a key is present in the cache and returns its
// path. A cache hit returns immediately with no side effects. On miss the
// binary is fetched (or copied, for a local source), written to a temporary
// file, then renamed into place so concurrent callers never observe a partial
// binary.
func (c *Cache) Acquire(ctx context.Context, key Key, src Source) (string, error) {
	final := c.Path(key)
	if c.Has(key) {
		return final, nil
	}

	unlock, err := c.acquireLock(ctx, key)
	if err != nil {
		return "", err
	}
	defer unlock()

	if c.Has(key) {
		return final, nil
	}

	if err := os.MkdirAll(filepath.Dir(final), 0o755); err != nil {
		return "", fmt.Errorf("prepare cache dir: %w", err)
	}

	if src.local != "" {
		if err := c.installLocal(src.local, final); err != nil {
			return "", err
		}
		return final, nil
	}
	if err := c.installDownload(ctx, key, final); err != nil {
		return "", err
	}
	return final, nil
}

// URL returns the remote distribution location of the compressed artifact.
func (c *Cache) URL(key Key) string {
	base := c.ReleasesURL
	if base == "" {
		base = "https://github.com/frida/frida/releases/download"
	}
	return fmt.Sprintf("%s/%s/frida-server-%s-android-%s.xz", base, key.Version, key.Version, key.Arch)
}

func (c *Cache) installDownload(ctx context.Context, key Key, final string) error {
	url := c.URL(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "fridamgr")

	client := c.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Minute}
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDownloadFailed, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: %s: unexpected status %s", ErrDownloadFailed, url, resp.Status)
	}

	reader, err := xz.NewReader(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return c.commit(final, reader)
}

func (c *Cache) installLocal(source, final string) error {
	info, err := os.Stat(source)
	if err != nil || !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrLocalMissing, source)
	}

	file, err := os.Open(source)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrLocalMissing, source, err)
	}
	defer file.Close()

	return c.commit(final, file)
}

// commit streams the binary to a temp file next to the final path, then makes
// it visible with a single rename.
func (c *Cache) commit(final string, contents io.Reader) error {
	tmpFile, err := os.CreateTemp(filepath.Dir(final), BinaryName+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	written, err := io.Copy(tmpFile, contents)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if written == 0 {
		return fmt.Errorf("%w: decompressed to empty file", ErrCorrupt)
	}

	if err := os.Chmod(tmpPath, 0o755); err != nil {
		return fmt.Errorf("chmod binary: %w", err)
	}
	if err := os.Rename(tmpPath, final); err != nil {
		return fmt.Errorf("finalize binary: %w", err)
	}
	return nil
}

func (c *Cache) acquireLock(ctx context.Context, key Key) (func(), error) {
	if err := os.MkdirAll(filepath.Join(c.Root, "servers"), 0o755); err != nil {
		return nil, fmt.Errorf("prepare cache root: %w", err)
	}

	lockPath := filepath.Join(c.Root, "servers", fmt.Sprintf("%s-%s.lock", key.Version, key.Arch))
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err == nil {
			_ = f.Close()
			return func() { _ = os.Remove(lockPath) }, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("acquire lock: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Installed lists every binary present in the cache, newest version first
// within lexical order of versions.
func (c *Cache) Installed() ([]Entry, error) {
	root := filepath.Join(c.Root, "servers")
	versions, err := os.ReadDir(root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read cache: %w", err)
	}

	var entries []Entry
	for _, versionDir := range versions {
		if !versionDir.IsDir() {
			continue
		}
		arches, err := os.ReadDir(filepath.Join(root, versionDir.Name()))
		if err != nil {
			return nil, fmt.Errorf("read cache: %w", err)
		}
		for _, archDir := range arches {
			if !archDir.IsDir() {
				continue
			}
			key := Key{Version: versionDir.Name(), Arch: Arch(archDir.Name())}
			info, err := os.Stat(c.Path(key))
			if err != nil {
				continue
			}
			entries = append(entries, Entry{Key: key, Path: c.Path(key), Size: info.Size()})
		}
	}

	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Key.Version != entries[j].Key.Version {
			return entries[i].Key.Version > entries[j].Key.Version
		}
		return entries[i].Key.Arch < entries[j].Key.Arch
	})
	return entries, nil
}

// Remove deletes one cached binary and prunes the version directory when it
// becomes empty. Removing an absent key is a no-op.
func (c *Cache) Remove(key Key) error {
	archDir := filepath.Dir(c.Path(key))
	if err := os.RemoveAll(archDir); err != nil {
		return fmt.Errorf("remove cached binary: %w", err)
	}

	versionDir := filepath.Dir(archDir)
	remaining, err := os.ReadDir(versionDir)
	if err == nil && len(remaining) == 0 {
		_ = os.Remove(versionDir)
	}
	return nil
}
