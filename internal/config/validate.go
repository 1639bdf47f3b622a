package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var toolNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// Validate enforces the shape of the configuration file: required fields,
// non-empty path and pattern lists, and unique, path-safe tool names.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("%w: nil config", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.StoragePath) == "" {
		return fmt.Errorf("%w: dbStoragePath is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.Model.Embedding) == "" {
		return fmt.Errorf("%w: model.embedding is required", ErrConfigInvalid)
	}
	if strings.TrimSpace(cfg.Model.LLM) == "" {
		return fmt.Errorf("%w: model.llm is required", ErrConfigInvalid)
	}
	if len(cfg.Indices) == 0 {
		return fmt.Errorf("%w: indices must contain at least one entry", ErrConfigInvalid)
	}

	seen := make(map[string]int, len(cfg.Indices))
	for i, spec := range cfg.Indices {
		field := fmt.Sprintf("indices[%d]", i)
		if strings.TrimSpace(spec.Name) == "" {
			return fmt.Errorf("%w: %s.name is required", ErrConfigInvalid, field)
		}
		if !toolNamePattern.MatchString(spec.ToolName) {
			return fmt.Errorf("%w: %s.toolName=%q must match %s", ErrConfigInvalid, field, spec.ToolName, toolNamePattern.String())
		}
		if prev, dup := seen[spec.ToolName]; dup {
			return fmt.Errorf("%w: %s.toolName=%q duplicates indices[%d]", ErrConfigInvalid, field, spec.ToolName, prev)
		}
		seen[spec.ToolName] = i
		if strings.TrimSpace(spec.Description) == "" {
			return fmt.Errorf("%w: %s.description is required", ErrConfigInvalid, field)
		}
		if len(spec.Paths) == 0 {
			return fmt.Errorf("%w: %s.paths must not be empty", ErrConfigInvalid, field)
		}
		for j, p := range spec.Paths {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("%w: %s.paths[%d] is empty", ErrConfigInvalid, field, j)
			}
		}
		if len(spec.GlobPatterns) == 0 {
			return fmt.Errorf("%w: %s.globPattern must not be empty", ErrConfigInvalid, field)
		}
		for j, p := range spec.GlobPatterns {
			if strings.TrimSpace(p) == "" {
				return fmt.Errorf("%w: %s.globPattern[%d] is empty", ErrConfigInvalid, field, j)
			}
		}
	}

	u, err := url.Parse(cfg.OllamaURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: ollama url %q must be an absolute http(s) URL", ErrConfigInvalid, cfg.OllamaURL)
	}
	if cfg.RequestTimeout < 0 {
		return fmt.Errorf("%w: request timeout must not be negative", ErrConfigInvalid)
	}
	if cfg.RetrievalK <= 0 {
		return fmt.Errorf("%w: retrieval k must be positive", ErrConfigInvalid)
	}
	return nil
}
