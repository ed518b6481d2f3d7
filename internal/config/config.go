package config

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/docs2static/internal/foundation/errors"
)

// DefaultConfigFile is the configuration file looked up when none is given.
const DefaultConfigFile = "docs2static.yaml"

// DefaultAPIBase is the Docs instance bare document ids are bound to.
const DefaultAPIBase = "https://docs.suite.anct.gouv.fr"

// Config represents the application configuration.
type Config struct {
	Output     OutputConfig   `yaml:"output"`
	API        APIConfig      `yaml:"api"`
	Cache      CacheConfig    `yaml:"cache"`
	Retry      RetryConfig    `yaml:"retry"`
	Backend    BackendConfig  `yaml:"backend"`
	Metrics    MetricsConfig  `yaml:"metrics"`
	Events     EventsConfig   `yaml:"events"`
	Schedule   ScheduleConfig `yaml:"schedule"`
	References []string       `yaml:"references,omitempty"`
}

// OutputConfig controls where and in which formats documents are mirrored.
type OutputConfig struct {
	Directory string        `yaml:"directory"`
	Format    ContentFormat `yaml:"format"`
}

// APIConfig describes how the remote Docs API is reached.
type APIConfig struct {
	DefaultBase string        `yaml:"default_base"`
	Timeout     time.Duration `yaml:"timeout"`
	UserAgent   string        `yaml:"user_agent"`
	// Throttle is the politeness delay inserted between successive remote calls.
	Throttle time.Duration `yaml:"throttle"`
	// PathSegmentLength is the number of characters each tree level appends to a
	// document path in the bulk listing.
	PathSegmentLength int `yaml:"path_segment_length"`
}

// CacheConfig configures the on-disk HTTP response cache.
type CacheConfig struct {
	Disabled bool          `yaml:"disabled"`
	Path     string        `yaml:"path"`
	TTL      time.Duration `yaml:"ttl"`

	// Refresh skips cache reads while still storing fresh responses.
	Refresh bool `yaml:"refresh"`
}

// RetryConfig configures the backoff used for rate limited requests.
type RetryConfig struct {
	Mode       RetryBackoffMode `yaml:"mode"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// BackendConfig selects and configures the static site generator.
type BackendConfig struct {
	Type        string   `yaml:"type"` // none|zensical|hugo
	GitHubRepo  string   `yaml:"github_repo,omitempty"`
	Branch      string   `yaml:"branch"`
	SSHKeyPath  string   `yaml:"ssh_key_path,omitempty"`
	AuthorName  string   `yaml:"author_name"`
	AuthorEmail string   `yaml:"author_email"`
	Zensical    []string `yaml:"zensical_command"`
	Hugo        []string `yaml:"hugo_command"`
}

// MetricsConfig configures the Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile,omitempty"`
}

// EventsConfig configures the optional NATS notification sink.
type EventsConfig struct {
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject"`
}

// ScheduleConfig configures the periodic sync mode.
type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// Default returns a configuration populated with every default value.
func Default() *Config {
	return &Config{
		Output: OutputConfig{
			Directory: "content",
			Format:    FormatBoth,
		},
		API: APIConfig{
			DefaultBase:       DefaultAPIBase,
			Timeout:           30 * time.Second,
			UserAgent:         "docs2static",
			Throttle:          100 * time.Millisecond,
			PathSegmentLength: 7,
		},
		Cache: CacheConfig{
			Path: ".docs2static/cache.db",
			TTL:  24 * time.Hour,
		},
		Retry: RetryConfig{
			Mode:       RetryBackoffFixed,
			Initial:    2 * time.Second,
			Max:        30 * time.Second,
			MaxRetries: 1,
		},
		Backend: BackendConfig{
			Type:        "none",
			Branch:      "gh-pages",
			AuthorName:  "Docs2Static Bot",
			AuthorEmail: "bot@docs2static.local",
			Zensical:    []string{"uv", "run", "zensical"},
			Hugo:        []string{"hugo"},
		},
		Events: EventsConfig{
			Subject: "docs2static.documents",
		},
		Schedule: ScheduleConfig{
			Interval: time.Hour,
		},
	}
}

// Load reads configuration from configPath layered over the defaults.
// A missing file is not an error: the defaults plus environment apply.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	cfg := Default()
	data, err := os.ReadFile(configPath) // #nosec G304 -- user supplied config path
	switch {
	case os.IsNotExist(err):
		slog.Debug("Configuration file not found, using defaults", "path", configPath)
	case err != nil:
		return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	default:
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, derrors.WrapError(err, derrors.CategoryConfig, "failed to unmarshal config").
				WithContext("path", configPath).
				Build()
		}
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the program relies on.
func (c *Config) Validate() error {
	if c.Output.Directory == "" {
		return derrors.ValidationError("output.directory cannot be empty").Build()
	}
	if NormalizeFormat(string(c.Output.Format)) == "" {
		return derrors.ValidationError("invalid output.format").WithContext("value", c.Output.Format).Build()
	}
	c.Output.Format = NormalizeFormat(string(c.Output.Format))
	backendType, err := NormalizeBackend(c.Backend.Type)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryValidation, "unsupported backend.type").
			WithContext("value", c.Backend.Type).
			Build()
	}
	c.Backend.Type = backendType
	if c.API.PathSegmentLength <= 0 {
		return derrors.ValidationError("api.path_segment_length must be > 0").Build()
	}
	if c.API.Throttle < 0 {
		return derrors.ValidationError("api.throttle cannot be negative").Build()
	}
	if c.Retry.MaxRetries < 0 {
		return derrors.ValidationError("retry.max_retries cannot be negative").Build()
	}
	if c.Retry.Mode != "" {
		mode := NormalizeRetryBackoff(string(c.Retry.Mode))
		if mode == "" {
			return derrors.ValidationError("invalid retry.mode").WithContext("value", c.Retry.Mode).Build()
		}
		c.Retry.Mode = mode
	}
	return nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return derrors.ConfigError(fmt.Sprintf("configuration file already exists: %s (use --force to overwrite)", configPath)).Build()
	}

	example := Default()
	example.Backend.Type = "zensical"
	example.Backend.GitHubRepo = "${GITHUB_REPO}"
	example.References = []string{"https://notes.liiib.re/docs/fa5583b2-37fc-4016-998f-f5237fd41642/"}

	data, err := yaml.Marshal(example)
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryInternal, "failed to marshal example config").Build()
	}
	header := "# docs2static configuration\n# Durations use Go syntax (30s, 24h). ${VAR} references are expanded from the environment.\n"
	if err := os.WriteFile(configPath, append([]byte(header), data...), 0o600); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	slog.Info("Configuration file created", "path", configPath)
	return nil
}
