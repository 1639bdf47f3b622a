package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

type snapshot struct {
	Source         string      `yaml:"source"`
	StoragePath    string      `yaml:"dbStoragePath"`
	OllamaURL      string      `yaml:"ollamaUrl"`
	RequestTimeout string      `yaml:"requestTimeout"`
	RetrievalK     int         `yaml:"retrievalK"`
	Model          ModelConfig `yaml:"model"`
	Indices        []IndexSpec `yaml:"indices"`
}

// SnapshotYAML renders the effective configuration, runtime settings
// included, as YAML.
func SnapshotYAML(cfg *Config) ([]byte, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	return yaml.Marshal(snapshot{
		Source:         cfg.SourcePath,
		StoragePath:    cfg.StoragePath,
		OllamaURL:      cfg.OllamaURL,
		RequestTimeout: cfg.RequestTimeout.String(),
		RetrievalK:     cfg.RetrievalK,
		Model:          cfg.Model,
		Indices:        cfg.Indices,
	})
}
