package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/Dirstral/ragmcp/internal/protocol"
)

// Options for loading config. ConfigPath is relative to the working directory
// if not absolute.
type Options struct {
	ConfigPath string
	// DotEnvFiles defaults to .env.local and .env when nil.
	DotEnvFiles  []string
	SkipValidate bool
	// Overrides apply last (flags > env > file > defaults). Nil means no CLI overrides.
	Overrides *Overrides
}

// Overrides holds CLI flag values. Only non-nil fields are applied.
type Overrides struct {
	OllamaURL   *string
	StoragePath *string
}

// Load builds config with precedence: defaults -> config file -> env vars -> Overrides.
// Relative storage and index paths are resolved against the config file directory.
func Load(opts Options) (*Config, error) {
	cfg := Default()

	dotenv := opts.DotEnvFiles
	if dotenv == nil {
		dotenv = []string{".env.local", ".env"}
	}
	if err := loadDotEnvFiles(dotenv...); err != nil {
		return nil, fmt.Errorf("%w: failed loading dotenv files: %v", ErrConfigInvalid, err)
	}

	configPath := opts.ConfigPath
	if strings.TrimSpace(configPath) == "" {
		configPath = protocol.DefaultConfigPath
	}
	absPath, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("%w: config path %s: %v", ErrConfigInvalid, configPath, err)
	}
	if err := decodeFile(absPath, &cfg); err != nil {
		return nil, err
	}
	cfg.SourcePath = absPath

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	if opts.Overrides != nil {
		applyOverrides(&cfg, opts.Overrides)
	}

	resolvePaths(&cfg, filepath.Dir(absPath))

	if !opts.SkipValidate {
		if err := Validate(&cfg); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

func decodeFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: configuration file not found: %s", ErrConfigInvalid, path)
		}
		return fmt.Errorf("%w: cannot read config file %s: %v", ErrConfigInvalid, path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("%w: malformed YAML in %s: %v", ErrConfigInvalid, path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("%w: malformed TOML in %s: %v", ErrConfigInvalid, path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("%w: unknown key %q in %s", ErrConfigInvalid, undecoded[0].String(), path)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("%w: malformed JSON in %s: %v", ErrConfigInvalid, path, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := strings.TrimSpace(os.Getenv("RAGMCP_OLLAMA_URL")); v != "" {
		cfg.OllamaURL = v
	} else if v := strings.TrimSpace(os.Getenv("OLLAMA_HOST")); v != "" {
		cfg.OllamaURL = normalizeHost(v)
	}
	if v := strings.TrimSpace(os.Getenv("RAGMCP_STORAGE_PATH")); v != "" {
		cfg.StoragePath = v
	}
	if v := strings.TrimSpace(os.Getenv("RAGMCP_EMBEDDING_MODEL")); v != "" {
		cfg.Model.Embedding = v
	}
	if v := strings.TrimSpace(os.Getenv("RAGMCP_LLM_MODEL")); v != "" {
		cfg.Model.LLM = v
	}
	if v := strings.TrimSpace(os.Getenv("RAGMCP_REQUEST_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%w: RAGMCP_REQUEST_TIMEOUT=%q: %v", ErrConfigInvalid, v, err)
		}
		cfg.RequestTimeout = d
	}
	return nil
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o.OllamaURL != nil && *o.OllamaURL != "" {
		cfg.OllamaURL = *o.OllamaURL
	}
	if o.StoragePath != nil && *o.StoragePath != "" {
		cfg.StoragePath = *o.StoragePath
	}
}

// normalizeHost accepts OLLAMA_HOST values such as "0.0.0.0:11434" that omit
// the scheme.
func normalizeHost(v string) string {
	if strings.Contains(v, "://") {
		return v
	}
	return "http://" + v
}

func resolvePaths(cfg *Config, baseDir string) {
	cfg.StoragePath = resolve(baseDir, cfg.StoragePath)
	for i := range cfg.Indices {
		paths := make([]string, len(cfg.Indices[i].Paths))
		for j, p := range cfg.Indices[i].Paths {
			paths[j] = resolve(baseDir, p)
		}
		cfg.Indices[i].Paths = paths
	}
}

func resolve(baseDir, p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return ""
	}
	if strings.HasPrefix(p, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}
	return filepath.Join(baseDir, p)
}
