// Package ollama adapts the Ollama HTTP API to the embedding and generation
// interfaces used by the builder and the retrieval tools.
package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"

	"github.com/Dirstral/ragmcp/internal/logging"
	"github.com/Dirstral/ragmcp/internal/model"
	"github.com/Dirstral/ragmcp/internal/protocol"
)

type Options struct {
	BaseURL        string
	Timeout        time.Duration
	EmbeddingModel string
	LLMModel       string
	Logger         logrus.FieldLogger
	// HTTPClient replaces both the request client and the pull client.
	HTTPClient *http.Client
}

// Client is safe for concurrent use. It holds no per-request state.
type Client struct {
	api            *api.Client
	embeddingModel string
	llmModel       string
	logger         logrus.FieldLogger

	// pullAPI has no client timeout; a model download is bounded by its
	// context only.
	pullAPI *api.Client
}

func NewClient(opts Options) (*Client, error) {
	baseURL := strings.TrimSpace(opts.BaseURL)
	if baseURL == "" {
		baseURL = protocol.DefaultOllamaURL
	}
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url: %w", err)
	}

	hc, pullHC := opts.HTTPClient, opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: opts.Timeout}
		pullHC = &http.Client{}
	}

	return &Client{
		api:            api.NewClient(parsed, hc),
		pullAPI:        api.NewClient(parsed, pullHC),
		embeddingModel: opts.EmbeddingModel,
		llmModel:       opts.LLMModel,
		logger:         logging.OrDiscard(opts.Logger),
	}, nil
}

// Embed returns one vector per input using the configured embedding model.
func (c *Client) Embed(ctx context.Context, inputs []string) ([][]float32, error) {
	if len(inputs) == 0 {
		return [][]float32{}, nil
	}
	resp, err := c.api.Embed(ctx, &api.EmbedRequest{
		Model: c.embeddingModel,
		Input: inputs,
	})
	if err != nil {
		return nil, mapError("embed", err)
	}
	if len(resp.Embeddings) != len(inputs) {
		return nil, &model.ProviderError{
			Code:    protocol.ErrorCodeEmptyResponse,
			Message: fmt.Sprintf("embed: got %d embeddings for %d inputs", len(resp.Embeddings), len(inputs)),
		}
	}
	return resp.Embeddings, nil
}

// Generate runs a single non-streaming completion with the configured LLM.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	stream := false
	var out strings.Builder
	err := c.api.Generate(ctx, &api.GenerateRequest{
		Model:  c.llmModel,
		Prompt: prompt,
		Stream: &stream,
	}, func(resp api.GenerateResponse) error {
		out.WriteString(resp.Response)
		return nil
	})
	if err != nil {
		return "", mapError("generate", err)
	}
	text := strings.TrimSpace(out.String())
	if text == "" {
		return "", &model.ProviderError{Code: protocol.ErrorCodeEmptyResponse, Message: "generate: empty response"}
	}
	return text, nil
}

// Heartbeat checks that the Ollama server answers.
func (c *Client) Heartbeat(ctx context.Context) error {
	if err := c.api.Heartbeat(ctx); err != nil {
		return mapError("heartbeat", err)
	}
	return nil
}

// Pull downloads name, reporting each distinct status line to progress. The
// pull only counts as done when the stream ends with a "success" status.
func (c *Client) Pull(ctx context.Context, name string, progress func(status string)) error {
	last := ""
	err := c.pullAPI.Pull(ctx, &api.PullRequest{Model: name}, func(resp api.ProgressResponse) error {
		if resp.Status == last {
			return nil
		}
		last = resp.Status
		c.logger.WithFields(logrus.Fields{"model": name, "status": resp.Status}).Debug("pull progress")
		if progress != nil {
			progress(resp.Status)
		}
		return nil
	})
	if err != nil {
		return mapError("pull "+name, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if last != pullSuccessStatus {
		return &model.ProviderError{
			Code:      protocol.ErrorCodeEmptyResponse,
			Message:   fmt.Sprintf("pull %s: stream ended before completion (last status %q)", name, last),
			Retryable: true,
		}
	}
	return nil
}

const pullSuccessStatus = "success"

func mapError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var se api.StatusError
	if errors.As(err, &se) {
		msg := strings.TrimSpace(se.ErrorMessage)
		if msg == "" {
			msg = se.Status
		}
		retryable := se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
		code := protocol.ErrorCodeProviderRejected
		if retryable {
			code = protocol.ErrorCodeProviderUnavailable
		}
		return &model.ProviderError{
			Code:       code,
			Message:    op + ": " + msg,
			Retryable:  retryable,
			StatusCode: se.StatusCode,
			Cause:      err,
		}
	}

	return &model.ProviderError{
		Code:      protocol.ErrorCodeProviderUnavailable,
		Message:   op + ": " + err.Error(),
		Retryable: true,
		Cause:     err,
	}
}
