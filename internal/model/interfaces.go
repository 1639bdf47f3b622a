package model

import "context"

// Embedder turns texts into vectors. Implementations return exactly one
// vector per input, in input order.
type Embedder interface {
	Embed(ctx context.Context, inputs []string) ([][]float32, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Retriever returns the chunks closest to query from a single collection.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]Hit, error)
}

// Loader reads one file into zero or more documents.
type Loader interface {
	Load(ctx context.Context, path string) ([]Document, error)
}
