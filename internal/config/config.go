package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultServerName is the process name used when the push path is a
// directory and no override is configured.
const DefaultServerName = "frida-server"

// Config captures the per-project fridamgr configuration.
type Config struct {
	Version      int                `yaml:"version"`
	Frida        FridaConfig        `yaml:"frida"`
	Android      AndroidConfig      `yaml:"android"`
	Distribution DistributionConfig `yaml:"distribution"`
}

// FridaConfig pins the frida-server version and, optionally, the companion
// frida-tools version. Version may be an alias such as "latest".
type FridaConfig struct {
	Version      string `yaml:"version"`
	ToolsVersion string `yaml:"tools_version,omitempty"`
}

// AndroidConfig describes how the server is placed and run on the device.
type AndroidConfig struct {
	Arch        string       `yaml:"arch"`
	ServerName  string       `yaml:"server_name,omitempty"`
	ServerPort  int          `yaml:"server_port"`
	AutoStart   bool         `yaml:"auto_start"`
	RootCommand string       `yaml:"root_command"`
	PushPath    string       `yaml:"push_path"`
	ADBPath     string       `yaml:"adb_path"`
	Server      ServerSource `yaml:"server"`
}

// ServerSource selects where the server binary comes from.
type ServerSource struct {
	Source    string `yaml:"source"`
	LocalPath string `yaml:"local_path,omitempty"`
}

// ServerSource values.
const (
	SourceDownload = "download"
	SourceLocal    = "local"
)

// DistributionConfig points at the remote distribution source used for
// artifact downloads and version-map refresh.
type DistributionConfig struct {
	ReleasesURL string `yaml:"releases_url"`
	APIURL      string `yaml:"api_url"`
}

// Default returns the baseline configuration.
func Default() Config {
	return Config{
		Version: 1,
		Frida: FridaConfig{
			Version: "latest",
		},
		Android: AndroidConfig{
			Arch:        "auto",
			ServerPort:  27042,
			RootCommand: "su",
			PushPath:    "/data/local/tmp/",
			ADBPath:     "adb",
			Server: ServerSource{
				Source: SourceDownload,
			},
		},
		Distribution: DistributionConfig{
			ReleasesURL: "https://github.com/frida/frida/releases/download",
			APIURL:      "https://api.github.com",
		},
	}
}

// Load reads the YAML configuration from disk if it exists, otherwise returns
// the default configuration.
func Load(path string) (Config, error) {
	contents, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg := Default()
			cfg.ApplyDefaults()
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(contents, &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()

	if errs := cfg.Validate(); len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid config in %q: %s", path, joinErrors(errs))
	}
	return cfg, nil
}

// ApplyDefaults ensures nested fields fall back to sensible defaults when the
// YAML omits them.
func (c *Config) ApplyDefaults() {
	defaults := Default()

	if c.Version == 0 {
		c.Version = defaults.Version
	}
	if c.Frida.Version == "" {
		c.Frida.Version = defaults.Frida.Version
	}
	if c.Android.Arch == "" {
		c.Android.Arch = defaults.Android.Arch
	}
	if c.Android.ServerPort == 0 {
		c.Android.ServerPort = defaults.Android.ServerPort
	}
	if c.Android.RootCommand == "" {
		c.Android.RootCommand = defaults.Android.RootCommand
	}
	if c.Android.PushPath == "" {
		c.Android.PushPath = defaults.Android.PushPath
	}
	if c.Android.ADBPath == "" {
		c.Android.ADBPath = defaults.Android.ADBPath
	}
	if c.Android.Server.Source == "" {
		c.Android.Server.Source = defaults.Android.Server.Source
	}
	if c.Distribution.ReleasesURL == "" {
		c.Distribution.ReleasesURL = defaults.Distribution.ReleasesURL
	}
	if c.Distribution.APIURL == "" {
		c.Distribution.APIURL = defaults.Distribution.APIURL
	}
}

// Validate reports configuration problems as human-readable messages.
func (c Config) Validate() []string {
	var errs []string

	if c.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported config version %d", c.Version))
	}

	switch c.Android.Arch {
	case "auto", "arm", "arm64", "x86", "x86_64":
	default:
		errs = append(errs, fmt.Sprintf("android.arch must be auto, arm, arm64, x86 or x86_64 (got %q)", c.Android.Arch))
	}

	if c.Android.ServerPort <= 0 || c.Android.ServerPort > 65535 {
		errs = append(errs, fmt.Sprintf("android.server_port must be in 1..65535 (got %d)", c.Android.ServerPort))
	}

	switch c.Android.Server.Source {
	case SourceDownload:
		if c.Android.Server.LocalPath != "" {
			errs = append(errs, "android.server.local_path is only valid with source: local")
		}
	case SourceLocal:
	default:
		errs = append(errs, fmt.Sprintf("android.server.source must be download or local (got %q)", c.Android.Server.Source))
	}

	if name := c.Android.ServerName; name != "" {
		if err := ValidateServerName(name); err != nil {
			errs = append(errs, err.Error())
		}
	}

	return errs
}

// ValidateServerName rejects names that would break remote path derivation or
// the process-name match used by lifecycle probes.
func ValidateServerName(name string) error {
	if name == "" {
		return fmt.Errorf("server name must not be empty")
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
		case r == '-' || r == '_' || r == '.':
		default:
			return fmt.Errorf("server name %q contains invalid character %q", name, r)
		}
	}
	return nil
}

// Marshal returns the YAML encoding of the configuration.
func (c Config) Marshal() ([]byte, error) {
	buf, err := yaml.Marshal(&c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return buf, nil
}

// Save writes the configuration, replacing the file atomically.
func (c Config) Save(path string) error {
	buf, err := c.Marshal()
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf, 0o644); err != nil {
		return fmt.Errorf("write temp config: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}

func joinErrors(errs []string) string {
	out := ""
	for i, e := range errs {
		if i > 0 {
			out += "; "
		}
		out += e
	}
	return out
}
