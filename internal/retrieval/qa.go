package retrieval

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Dirstral/ragmcp/internal/model"
	"github.com/Dirstral/ragmcp/internal/protocol"
)

const promptTemplate = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s

Question: %s
Helpful Answer:`

// QA answers questions with retrieval-augmented generation over one
// retriever.
type QA struct {
	Retriever model.Retriever
	Generator model.Generator
	K         int

	// Timeout bounds a whole Answer call. Zero means no bound beyond ctx.
	Timeout time.Duration
}

func (q QA) Answer(ctx context.Context, question string) (string, error) {
	if q.Retriever == nil || q.Generator == nil {
		return "", errors.New("retriever and generator are required")
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return "", errors.New("question is required")
	}

	k := q.K
	if k <= 0 {
		k = protocol.DefaultRetrievalK
	}
	if q.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.Timeout)
		defer cancel()
	}

	hits, err := q.Retriever.Retrieve(ctx, question, k)
	if err != nil {
		return "", q.wrapTimeout(ctx, "retrieve", err)
	}
	answer, err := q.Generator.Generate(ctx, BuildPrompt(question, hits))
	if err != nil {
		return "", q.wrapTimeout(ctx, "generate", err)
	}
	return answer, nil
}

func (q QA) wrapTimeout(ctx context.Context, step string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timed out after %s: %w", step, q.Timeout, context.DeadlineExceeded)
	}
	return fmt.Errorf("%s: %w", step, err)
}

// BuildPrompt stuffs the retrieved chunks into the answer prompt in rank
// order, separated by blank lines.
func BuildPrompt(question string, hits []model.Hit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		text := strings.TrimSpace(h.Text)
		if text == "" {
			continue
		}
		parts = append(parts, text)
	}
	return fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n"), question)
}
