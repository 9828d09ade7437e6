// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package oracle wraps the text-generation and relevance-scoring models the
// crawl engine calls. The engine only sees the two interfaces; the concrete
// client speaks any OpenAI-compatible chat-completions API, which covers
// both hosted models and self-served crawler/selector checkpoints.
package oracle

import "context"

// TextOracle generates free text from prompts. GenerateBatch returns one
// result per prompt, in input order.
type TextOracle interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateBatch(ctx context.Context, prompts []string) ([]string, error)
}

// ScoreOracle scores prompts. The returned slice has one value per prompt,
// in input order, each in [0,1].
type ScoreOracle interface {
	Score(ctx context.Context, prompts []string) ([]float64, error)
}
