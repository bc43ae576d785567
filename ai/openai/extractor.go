package openai

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/poiesic/flowrun/ai"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// parseAttempts bounds how many times a malformed JSON answer is re-requested.
const parseAttempts = 3

// ConceptExtractor implements ai.ConceptExtractor using an OpenAI-compatible chat model.
type ConceptExtractor struct {
	client        llms.Model
	minImportance int
	logger        *slog.Logger
}

// concept matches the JSON objects the model is asked to produce.
type concept struct {
	Concept    string `json:"concept"`
	Type       string `json:"type"`
	Importance int    `json:"importance"`
}

type analysis struct {
	CoreConcepts []concept `json:"core_concepts"`
}

func newConceptExtractor(config *ai.Config) (*ConceptExtractor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	client, err := newChatClient(config)
	if err != nil {
		return nil, err
	}
	return newConceptExtractorWithModel(client, config.MinImportance), nil
}

func newConceptExtractorWithModel(client llms.Model, minImportance int) *ConceptExtractor {
	return &ConceptExtractor{
		client:        client,
		minImportance: minImportance,
		logger:        slog.Default().With("component", "openai-extractor"),
	}
}

func newChatClient(config *ai.Config) (llms.Model, error) {
	return openai.New(
		openai.WithBaseURL(config.ChatHost),
		openai.WithToken(config.Token),
		openai.WithModel(config.ChatModel),
	)
}

// NewConceptExtractor creates a concept extractor using the provided configuration.
func NewConceptExtractor(config *ai.Config) (ai.ConceptExtractor, error) {
	return newConceptExtractor(config)
}

// ExtractConcepts asks the model for the concepts in text and keeps those at
// or above the configured importance, most important first.
func (e *ConceptExtractor) ExtractConcepts(ctx context.Context, text string) ([]ai.ExtractedConcept, error) {
	text = scrubString(text)
	if text == "" {
		return []ai.ExtractedConcept{}, nil
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, buildSystemPrompt()),
		llms.TextParts(llms.ChatMessageTypeHuman, text),
	}

	var (
		result  analysis
		lastErr error
	)
	for attempt := 1; attempt <= parseAttempts; attempt++ {
		response, err := e.client.GenerateContent(ctx, content, llms.WithTemperature(0.0), llms.WithJSONMode())
		if err != nil {
			e.logger.Error("failed to generate content", "attempt", attempt, "err", err)
			return nil, err
		}
		if len(response.Choices) < 1 {
			e.logger.Debug("no choices returned from model")
			return []ai.ExtractedConcept{}, nil
		}

		result, lastErr = parseAnalysis(response.Choices[0].Content)
		if lastErr == nil {
			break
		}
		e.logger.Warn("error parsing model response", "attempt", attempt, "err", lastErr)
	}
	if lastErr != nil {
		return nil, fmt.Errorf("parse concepts after %d attempts: %w", parseAttempts, lastErr)
	}

	extracted := filterConcepts(result.CoreConcepts, e.minImportance)
	e.logger.Debug("extracted concepts", "total", len(result.CoreConcepts), "kept", len(extracted))
	return extracted, nil
}

func parseAnalysis(raw string) (analysis, error) {
	var result analysis
	err := sonic.UnmarshalString(repairJSON(extractJSON(raw)), &result)
	return result, err
}

// filterConcepts drops low-importance and duplicate concepts and sorts the
// rest by importance, highest first.
func filterConcepts(in []concept, minImportance int) []ai.ExtractedConcept {
	seen := make(map[string]struct{}, len(in))
	out := make([]ai.ExtractedConcept, 0, len(in))
	for _, c := range in {
		name := strings.ToLower(strings.TrimSpace(c.Concept))
		if name == "" || c.Importance < minImportance {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, ai.ExtractedConcept{
			Name:       name,
			Type:       strings.ReplaceAll(strings.TrimSpace(c.Type), " ", "_"),
			Importance: c.Importance,
		})
	}
	slices.SortStableFunc(out, func(a, b ai.ExtractedConcept) int {
		return b.Importance - a.Importance
	})
	return out
}
