package config

import (
	"errors"
	"time"
)

// ErrConfigInvalid prefixes every configuration error so callers can map it
// to a dedicated exit code.
var ErrConfigInvalid = errors.New("CONFIG_INVALID")

// Config is the loaded rag configuration. It is produced once by Load and
// treated as read-only afterwards.
type Config struct {
	StoragePath string      `json:"dbStoragePath" yaml:"dbStoragePath" toml:"dbStoragePath"`
	Model       ModelConfig `json:"model" yaml:"model" toml:"model"`
	Indices     []IndexSpec `json:"indices" yaml:"indices" toml:"indices"`

	// OllamaURL is the base URL shared by the embedding and generation
	// providers. Optional in the file; defaults to the local Ollama address.
	OllamaURL string `json:"ollamaUrl,omitempty" yaml:"ollamaUrl,omitempty" toml:"ollamaUrl,omitempty"`

	// Runtime-only settings.
	RequestTimeout time.Duration `json:"-" yaml:"-" toml:"-"`
	RetrievalK     int           `json:"-" yaml:"-" toml:"-"`
	SourcePath     string        `json:"-" yaml:"-" toml:"-"`
}

type ModelConfig struct {
	Embedding string `json:"embedding" yaml:"embedding" toml:"embedding"`
	LLM       string `json:"llm" yaml:"llm" toml:"llm"`
}

// IndexSpec describes one tool and the documents its index is built from.
type IndexSpec struct {
	Name         string   `json:"name" yaml:"name" toml:"name"`
	ToolName     string   `json:"toolName" yaml:"toolName" toml:"toolName"`
	Description  string   `json:"description" yaml:"description" toml:"description"`
	Paths        []string `json:"paths" yaml:"paths" toml:"paths"`
	GlobPatterns []string `json:"globPattern" yaml:"globPattern" toml:"globPattern"`
}

// ToolNames returns the configured tool names in configuration order.
func (c *Config) ToolNames() []string {
	names := make([]string, 0, len(c.Indices))
	for _, spec := range c.Indices {
		names = append(names, spec.ToolName)
	}
	return names
}

// ToolNameSet returns the configured tool names as a set.
func (c *Config) ToolNameSet() map[string]struct{} {
	set := make(map[string]struct{}, len(c.Indices))
	for _, spec := range c.Indices {
		set[spec.ToolName] = struct{}{}
	}
	return set
}

// Index returns the spec registered under toolName.
func (c *Config) Index(toolName string) (IndexSpec, bool) {
	for _, spec := range c.Indices {
		if spec.ToolName == toolName {
			return spec, true
		}
	}
	return IndexSpec{}, false
}
