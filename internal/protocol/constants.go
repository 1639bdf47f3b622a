package protocol

const (
	// ServerName is the MCP implementation name announced to clients.
	ServerName = "RAG"

	// MarkerFileName is the collection database inside a tool's index
	// directory. Its presence means the tool has a built index.
	MarkerFileName = "collection.sqlite3"

	// BuildingSuffix marks a collection database that is still being written.
	BuildingSuffix = ".building"

	PromptArgument = "prompt"
)

const (
	DefaultOllamaURL      = "http://127.0.0.1:11434"
	DefaultConfigPath     = "rag_config.json"
	DefaultRetrievalK     = 4
	DefaultChunkSize      = 1000
	DefaultChunkOverlap   = 50
	DefaultEmbedBatchSize = 32
)

const (
	ErrorCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrorCodeProviderRejected    = "PROVIDER_REJECTED"
	ErrorCodeEmptyResponse       = "EMPTY_RESPONSE"
)
