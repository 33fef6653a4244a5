// Package config loads the exporter's environment configuration,
// generalizing the teacher's internal/infrastructure/config to the
// generic URL/KEY datastore credentials this spec names (§6) plus the
// daemon's optional cycle-interval overrides.
package config

import (
	"bufio"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds everything the daemon and the open/close commands need
// from the environment.
type Config struct {
	URL string `envconfig:"URL" required:"true"`
	Key string `envconfig:"KEY" required:"true"`

	WatchLogInterval       time.Duration `envconfig:"WATCH_LOG_INTERVAL" default:"250ms"`
	WatchAggregateInterval time.Duration `envconfig:"WATCH_AGGREGATE_INTERVAL" default:"5s"`
	WatchAutoClose         time.Duration `envconfig:"WATCH_AUTO_CLOSE" default:"2h"`
	WatchGapThreshold      time.Duration `envconfig:"WATCH_GAP_THRESHOLD" default:"120s"`

	SiteURL string `envconfig:"SITE_URL" default:"https://claude-dashboard.dev"`

	GitHubOrg   string `envconfig:"GITHUB_ORG" default:""`
	GitHubToken string `envconfig:"GITHUB_TOKEN" default:""`
}

// LoadDotEnv reads a simple KEY=VALUE .env file and applies any variable
// not already set in the process environment. No third-party dotenv
// library is present in the retrieved pack (see DESIGN.md), so this is a
// small line-oriented stdlib reader in the same spirit as the teacher's
// other small file-backed parsers (frontmatter, slug map).
func LoadDotEnv(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.Trim(strings.TrimSpace(value), `"'`)
		if _, set := os.LookupEnv(key); set {
			continue
		}
		os.Setenv(key, value)
	}
	return scanner.Err()
}

// Load loads the .env file at dotenvPath (if present; a missing file is
// not an error here — the open command's preflight is what requires its
// presence, §4.9 step 1) and then processes envconfig.
func Load(dotenvPath string) (*Config, error) {
	if dotenvPath != "" {
		if err := LoadDotEnv(dotenvPath); err != nil && !os.IsNotExist(err) {
			return nil, err
		}
	}
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
