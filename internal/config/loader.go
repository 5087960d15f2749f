package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [LoadFromReader] for fields left empty.
const (
	DefaultListenAddr      = ":8080"
	DefaultPoseURL         = "http://localhost:8000/predict"
	DefaultLandmarkBaseURL = "http://localhost:8000"
	DefaultPointCount      = 21
)

// ValidTranslatorNames lists known translator provider names. Used by
// [Validate] to warn about unrecognised names.
var ValidTranslatorNames = []string{
	"openai", "openai-direct", "anthropic", "gemini", "ollama", "deepseek", "mistral", "groq",
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	applyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyDefaults fills empty fields with their documented defaults.
func applyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Adapters.Pose.URL == "" {
		cfg.Adapters.Pose.URL = DefaultPoseURL
	}
	if cfg.Adapters.Landmark.BaseURL == "" {
		cfg.Adapters.Landmark.BaseURL = DefaultLandmarkBaseURL
	}
	if cfg.Landmarks.PointCount == 0 {
		cfg.Landmarks.PointCount = DefaultPointCount
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil {
		if tls.CertFile == "" {
			errs = append(errs, errors.New("server.tls.cert_file is required when tls is set"))
		}
		if tls.KeyFile == "" {
			errs = append(errs, errors.New("server.tls.key_file is required when tls is set"))
		}
	}

	// Adapters
	if err := validateURL("adapters.pose.url", cfg.Adapters.Pose.URL); err != nil {
		errs = append(errs, err)
	}
	if err := validateURL("adapters.landmark.base_url", cfg.Adapters.Landmark.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if cfg.Adapters.Pose.Timeout < 0 {
		errs = append(errs, fmt.Errorf("adapters.pose.timeout %s is negative", cfg.Adapters.Pose.Timeout))
	}
	if cfg.Adapters.Landmark.Timeout < 0 {
		errs = append(errs, fmt.Errorf("adapters.landmark.timeout %s is negative", cfg.Adapters.Landmark.Timeout))
	}

	// Translator name validation — warn for unknown names.
	if name := cfg.Translator.Name; name != "" && !slices.Contains(ValidTranslatorNames, name) {
		slog.Warn("unknown translator name — may be a typo or third-party provider",
			"name", name,
			"known", ValidTranslatorNames,
		)
	}
	if cfg.Translator.Name == "" {
		slog.Warn("translator.name is empty; chat translation will be disabled")
	}
	for i, fb := range cfg.Translator.Fallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("translator.fallbacks[%d].name is required", i))
		} else if !slices.Contains(ValidTranslatorNames, fb.Name) {
			slog.Warn("unknown fallback translator name",
				"name", fb.Name,
				"known", ValidTranslatorNames,
			)
		}
	}

	// Landmarks
	if cfg.Landmarks.PointCount < 0 {
		errs = append(errs, fmt.Errorf("landmarks.point_count %d is negative", cfg.Landmarks.PointCount))
	}
	if cfg.Landmarks.DataDir == "" && cfg.Landmarks.PostgresDSN == "" {
		slog.Warn("no landmarks.data_dir or landmarks.postgres_dsn configured; landmark lookups fall back to the remote adapter only")
	}

	// Vocabulary — reuse the table constructor's validation so the config
	// loader and the runtime agree on what a valid vocabulary is.
	if _, err := cfg.VocabTable(); err != nil {
		errs = append(errs, err)
	}
	for sign := range cfg.Videos {
		if sign == "" {
			errs = append(errs, errors.New("videos contains an empty sign name"))
		}
	}

	return errors.Join(errs...)
}

// validateURL checks that s is an absolute http(s) URL.
func validateURL(field, s string) error {
	u, err := url.Parse(s)
	if err != nil {
		return fmt.Errorf("%s %q is not a valid URL: %w", field, s, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%s %q must use http or https", field, s)
	}
	if u.Host == "" {
		return fmt.Errorf("%s %q has no host", field, s)
	}
	return nil
}

// SlogLevel converts the configured log level to a [slog.Level].
// An empty or invalid level maps to info.
func (l LogLevel) SlogLevel() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
