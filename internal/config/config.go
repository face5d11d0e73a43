// Package config holds the server and client settings.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"rafyaudit/internal/utils"
)

// Names used to locate configuration.
const (
	FileName  = "rafyaudit"
	FileType  = "yaml"
	EnvPrefix = "RAFYAUDIT"
)

type Backend struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Server struct {
	Address      string        `mapstructure:"address"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	TLSCertFile  string        `mapstructure:"tls_cert_file"`
	TLSKeyFile   string        `mapstructure:"tls_key_file"`
}

type Session struct {
	// Secret is hex; cookie and draft keys are derived from it.
	Secret       string `mapstructure:"secret"`
	SecureCookie bool   `mapstructure:"secure_cookie"`
	MaxAge       int    `mapstructure:"max_age"`
}

type Drafts struct {
	Directory string        `mapstructure:"directory"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// Config is the whole configuration tree.
type Config struct {
	Backend   Backend `mapstructure:"backend"`
	Server    Server  `mapstructure:"server"`
	Session   Session `mapstructure:"session"`
	Drafts    Drafts  `mapstructure:"drafts"`
	LogLevel  string  `mapstructure:"log_level"`
	LogFormat string  `mapstructure:"log_format"`
}

// Defaults are applied below file and environment values.
func Defaults() map[string]any {
	return map[string]any{
		"backend.base_url":      "http://localhost:8001/api",
		"backend.timeout":       "30s",
		"server.address":        ":8080",
		"server.read_timeout":   "15s",
		"server.write_timeout":  "60s",
		"server.tls_cert_file":  "",
		"server.tls_key_file":   "",
		"session.secret":        "",
		"session.secure_cookie": false,
		"session.max_age":       86400,
		"drafts.directory":      filepath.Join(os.TempDir(), "rafyaudit-drafts"),
		"drafts.ttl":            "12h",
		"log_level":             string(utils.LogLevelInfo),
		"log_format":            string(utils.LogFormatStructured),
	}
}

// SearchPaths are the directories searched for rafyaudit.yaml.
func SearchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".rafyaudit"))
	}
	return paths
}

// Load reads file (or the searched default) plus RAFYAUDIT_* overrides.
func Load(file string) (Config, string, error) {
	var cfg Config
	l := utils.NewConfigurationLoader(FileName, FileType, EnvPrefix, SearchPaths())
	used, err := l.Load(file, Defaults(), &cfg)
	if err != nil {
		return Config{}, "", err
	}
	return cfg, used, nil
}

var ErrMissingSecret = errors.New("session.secret is required")

// Validate checks the settings the web server cannot run without.
func (c Config) Validate() error {
	u, err := url.Parse(c.Backend.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.base_url %q is not an absolute URL", c.Backend.BaseURL)
	}
	if c.Session.Secret == "" {
		return ErrMissingSecret
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		return errors.New("server.tls_cert_file and server.tls_key_file go together")
	}
	if c.Drafts.Directory == "" {
		return errors.New("drafts.directory is required")
	}
	return nil
}
