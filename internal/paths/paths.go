package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// ProjectPaths captures canonical locations for a fridamgr project.
type ProjectPaths struct {
	Root       string
	ConfigFile string
}

// Resolve determines the project root using the optional --project flag or the
// current working directory when the flag is empty.
func Resolve(projectFlag string) (ProjectPaths, error) {
	var (
		root string
		err  error
	)

	if projectFlag != "" {
		root, err = filepath.Abs(projectFlag)
	} else {
		root, err = os.Getwd()
	}
	if err != nil {
		return ProjectPaths{}, fmt.Errorf("resolve project root: %w", err)
	}

	return ProjectPaths{
		Root:       root,
		ConfigFile: filepath.Join(root, "fridamgr.yaml"),
	}, nil
}

// ResolveProjectPath resolves a configured path against the project root,
// leaving absolute paths untouched.
func ResolveProjectPath(root, value string) string {
	if filepath.IsAbs(value) {
		return filepath.Clean(value)
	}
	return filepath.Join(root, value)
}

// GlobalDir returns the user-level fridamgr directory (~/.fridamgr, or the
// FRIDAMGR_HOME override). It creates the directory if it does not exist.
func GlobalDir() (string, error) {
	if override, ok := os.LookupEnv("FRIDAMGR_HOME"); ok && override != "" {
		abs, err := filepath.Abs(override)
		if err != nil {
			return "", fmt.Errorf("resolve FRIDAMGR_HOME: %w", err)
		}
		if err := os.MkdirAll(abs, 0o755); err != nil {
			return "", fmt.Errorf("create global dir: %w", err)
		}
		return abs, nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("detect user home: %w", err)
	}
	dir := filepath.Join(home, ".fridamgr")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create global dir: %w", err)
	}
	return dir, nil
}

// CacheRoot returns the global artifact cache directory (~/.fridamgr/cache).
func CacheRoot() (string, error) {
	global, err := GlobalDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(global, "cache")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create cache root: %w", err)
	}
	return dir, nil
}

// VersionMapFile returns the path of the persisted version map
// (~/.fridamgr/version-map.yaml). The file itself may not exist yet.
func VersionMapFile() (string, error) {
	global, err := GlobalDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(global, "version-map.yaml"), nil
}

// GlobalLogsDir returns the global logs directory (~/.fridamgr/logs).
// It creates the directory if it does not exist.
func GlobalLogsDir() (string, error) {
	global, err := GlobalDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(global, "logs")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create global logs dir: %w", err)
	}
	return dir, nil
}

// FileExists reports whether a path exists and is a regular file.
func FileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.Mode().IsRegular(), nil
}

// DirExists reports whether a path exists and is a directory.
func DirExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return info.IsDir(), nil
}
