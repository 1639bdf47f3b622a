package config

import (
	"time"

	"github.com/Dirstral/ragmcp/internal/protocol"
)

const DefaultRequestTimeout = 120 * time.Second

// Default returns the values used before the config file is applied.
func Default() Config {
	return Config{
		OllamaURL:      protocol.DefaultOllamaURL,
		RequestTimeout: DefaultRequestTimeout,
		RetrievalK:     protocol.DefaultRetrievalK,
	}
}
