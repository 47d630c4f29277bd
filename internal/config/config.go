// Package config loads the notifier configuration from an optional YAML file
// and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/nickromney-org/release-notifier/internal/connect"
	"github.com/nickromney-org/release-notifier/internal/tlsclient"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "RELEASE_NOTIFIER_"

// DefaultTimeoutMillis is the connect and read timeout in milliseconds
const DefaultTimeoutMillis = 10000

// Config holds everything the caller supplies to the notifier
type Config struct {
	ServerID string `yaml:"server_id"`

	// Feed is a predefined source name, owner/repo or GitHub URL.
	// FeedURL, when set, is used verbatim instead.
	Feed            string `yaml:"feed"`
	FeedURL         string `yaml:"feed_url"`
	RegistrationURL string `yaml:"registration_url"`
	UsageURL        string `yaml:"usage_url"`

	TLS           tlsclient.TLSPolicy `yaml:"tls"`
	TimeoutMillis int                 `yaml:"timeout_ms"`

	ArchivePath string `yaml:"archive_path"`
	LogLevel    string `yaml:"log_level"`

	// GitHubToken is never read from the file
	GitHubToken string `yaml:"-"`
}

// Default returns the production configuration
func Default() Config {
	endpoints := connect.DefaultEndpoints()
	return Config{
		Feed:            "engine",
		RegistrationURL: endpoints.RegistrationURL,
		UsageURL:        endpoints.UsageURL,
		TimeoutMillis:   DefaultTimeoutMillis,
		ArchivePath:     DefaultArchivePath(),
		LogLevel:        "warn",
	}
}

// DefaultArchivePath is the archive database under the user config dir
func DefaultArchivePath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "release-notifier", "archive.db")
}

// Load starts from Default, applies the YAML file at path (if any) and then
// environment overrides. Unknown keys in the file are an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config %s: %w", path, err)
		}

		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}

	if v, ok := get("SERVER_ID"); ok {
		c.ServerID = v
	}
	if v, ok := get("FEED"); ok {
		c.Feed = v
	}
	if v, ok := get("FEED_URL"); ok {
		c.FeedURL = v
	}
	if v, ok := get("REGISTRATION_URL"); ok {
		c.RegistrationURL = v
	}
	if v, ok := get("USAGE_URL"); ok {
		c.UsageURL = v
	}
	if v, ok := get("TLS_PROTOCOLS"); ok {
		c.TLS.Protocols = splitList(v)
	}
	if v, ok := get("TLS_CIPHER_SUITES"); ok {
		c.TLS.CipherSuites = splitList(v)
	}
	if v, ok := get("TIMEOUT_MS"); ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sTIMEOUT_MS %q: %w", EnvPrefix, v, err)
		}
		c.TimeoutMillis = ms
	}
	if v, ok := get("ARCHIVE_PATH"); ok {
		c.ArchivePath = v
	}
	if v, ok := get("LOG_LEVEL"); ok {
		c.LogLevel = v
	}
	if v, ok := lookup("GITHUB_TOKEN"); ok && v != "" {
		c.GitHubToken = v
	}

	return nil
}

// Validate checks endpoints, timeout and log level
func (c Config) Validate() error {
	if c.TimeoutMillis <= 0 {
		return fmt.Errorf("timeout_ms must be positive, got %d", c.TimeoutMillis)
	}

	endpoints, err := c.Endpoints()
	if err != nil {
		return err
	}
	for name, u := range map[string]string{
		"feed_url":         endpoints.FeedURL,
		"registration_url": endpoints.RegistrationURL,
		"usage_url":        endpoints.UsageURL,
	} {
		if err := validateURL(u); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}

	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("invalid log_level: %w", err)
	}

	return nil
}

// Endpoints resolves the feed source into concrete endpoints
func (c Config) Endpoints() (connect.Endpoints, error) {
	feedURL := c.FeedURL
	if feedURL == "" {
		source, err := ParseFeedSource(c.Feed)
		if err != nil {
			return connect.Endpoints{}, err
		}
		feedURL = source.FeedURL()
	}

	return connect.Endpoints{
		FeedURL:         feedURL,
		RegistrationURL: c.RegistrationURL,
		UsageURL:        c.UsageURL,
	}, nil
}

// ReleasesPageURL returns the page to show users, if the feed is on GitHub
func (c Config) ReleasesPageURL() (string, bool) {
	feed := c.Feed
	if c.FeedURL != "" {
		feed = c.FeedURL
	}
	source, err := ParseFeedSource(feed)
	if err != nil {
		return "", false
	}
	return source.ReleasesPageURL(), true
}

// Timeout returns the timeout as a duration
func (c Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutMillis) * time.Millisecond
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%q is not an https URL", raw)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
