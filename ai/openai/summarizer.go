package openai

import (
	"context"
	"log/slog"
	"strings"

	"github.com/poiesic/flowrun/ai"
	"github.com/tmc/langchaingo/llms"
)

// Summarizer implements ai.Summarizer using an OpenAI-compatible chat model.
type Summarizer struct {
	client   llms.Model
	maxWords int
	logger   *slog.Logger
}

func newSummarizer(config *ai.Config) (*Summarizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	client, err := newChatClient(config)
	if err != nil {
		return nil, err
	}
	return newSummarizerWithModel(client, config.MaxSummaryWords), nil
}

func newSummarizerWithModel(client llms.Model, maxWords int) *Summarizer {
	return &Summarizer{
		client:   client,
		maxWords: maxWords,
		logger:   slog.Default().With("component", "openai-summarizer"),
	}
}

// NewSummarizer creates a summarizer using the provided configuration.
func NewSummarizer(config *ai.Config) (ai.Summarizer, error) {
	return newSummarizer(config)
}

// Summarize returns a plain-English summary of text.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	s.logger.Debug("summarizing text", "length", len(text))

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, buildSummaryPrompt(s.maxWords)),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}
	response, err := s.client.GenerateContent(ctx, content, llms.WithTemperature(0.2))
	if err != nil {
		s.logger.Error("failed to generate summary", "err", err)
		return "", err
	}
	if len(response.Choices) < 1 {
		return "", ai.ErrEmptyResponse
	}

	summary := strings.TrimSpace(stripFences(response.Choices[0].Content))
	if summary == "" {
		return "", ai.ErrEmptyResponse
	}
	return summary, nil
}
