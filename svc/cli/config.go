package cli

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/pkg/errors"
	yamlv3 "gopkg.in/yaml.v3"
)

const (
	DefaultConfigName = ".crosssync.yml"
	envPrefix         = "CROSSSYNC_"
)

// Config is the command line tool's settings file.
type Config struct {
	Server      string        `koanf:"server" yaml:"server"`
	User        string        `koanf:"user" yaml:"user"`
	Timeout     time.Duration `koanf:"timeout" yaml:"timeout"`
	Copy        bool          `koanf:"copy" yaml:"copy"`
	ExportWidth int           `koanf:"export_width" yaml:"export_width"`
}

func DefaultConfig() *Config {
	return &Config{
		Server:      "http://localhost:8080",
		Timeout:     10 * time.Second,
		Copy:        true,
		ExportWidth: 80,
	}
}

// DefaultConfigPath is ~/.crosssync.yml, or the working directory when the
// home directory is unknown.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultConfigName
	}
	return filepath.Join(home, DefaultConfigName)
}

// LoadConfig reads path when it exists, then overlays CROSSSYNC_* variables.
func LoadConfig(path string) (*Config, error) {
	k := koanf.New(".")
	c := DefaultConfig()
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "read config %s", path)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "access config %s", path)
	}
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	}), nil); err != nil {
		return nil, errors.Wrap(err, "load env overrides")
	}
	if err := k.Unmarshal("", c); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return c, c.Validate()
}

func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrapf(err, "write config %s", path)
	}
	return nil
}

func (c *Config) Validate() error {
	u, err := url.Parse(c.Server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.Errorf("server must be an absolute http(s) URL, got %q", c.Server)
	}
	c.Server = strings.TrimRight(c.Server, "/")
	if c.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	if c.ExportWidth < 20 || c.ExportWidth > 400 {
		return errors.Errorf("export_width must be between 20 and 400, got %d", c.ExportWidth)
	}
	return nil
}
