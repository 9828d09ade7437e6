// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package oracle

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/pdiddy/paper-crawler/pkg/types"
)

// batchParallelism bounds concurrent completions inside one batch call.
const batchParallelism = 8

// chatClient is the slice of the go-openai client the oracle needs.
// A narrow interface so tests can substitute a stub.
type chatClient interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ChatOracle implements TextOracle and ScoreOracle against an
// OpenAI-compatible chat-completions endpoint.
type ChatOracle struct {
	client chatClient
	model  string
}

// NewChatOracle builds an oracle for one role (crawler or selector).
func NewChatOracle(cfg types.OracleConfig) *ChatOracle {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &ChatOracle{
		client: openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
	}
}

// Generate sends one prompt and returns the completion text.
func (o *ChatOracle) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateBatch completes every prompt and returns results in input order.
// Requests run concurrently up to batchParallelism; the first failure fails
// the whole batch.
func (o *ChatOracle) GenerateBatch(ctx context.Context, prompts []string) ([]string, error) {
	results := make([]string, len(prompts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchParallelism)

	for i, prompt := range prompts {
		i, prompt := i, prompt
		g.Go(func() error {
			text, err := o.Generate(gctx, prompt)
			if err != nil {
				return fmt.Errorf("prompt %d: %w", i, err)
			}
			results[i] = text
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// scoreRe matches the first decimal number in a completion. The selector
// model is prompted to answer with a bare relevance value.
var scoreRe = regexp.MustCompile(`-?\d+(?:\.\d+)?`)

// Score completes every prompt and parses one relevance value per prompt,
// clamped to [0,1]. Order matches the input.
func (o *ChatOracle) Score(ctx context.Context, prompts []string) ([]float64, error) {
	texts, err := o.GenerateBatch(ctx, prompts)
	if err != nil {
		return nil, err
	}

	scores := make([]float64, len(texts))
	for i, text := range texts {
		scores[i] = parseScore(text)
	}
	return scores, nil
}

// parseScore extracts the first number from text and clamps it to [0,1].
// A completion with no number scores zero.
func parseScore(text string) float64 {
	m := scoreRe.FindString(text)
	if m == "" {
		return 0
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil {
		return 0
	}
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
