// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import "context"

// Embedder generates vector embeddings from text for similarity search.
// Implementations must be safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates embeddings for multiple texts in one request.
	// The result is in the same order as the input.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// ConceptExtractor infers the concepts a text talks about.
// Implementations must be safe for concurrent use.
type ConceptExtractor interface {
	// ExtractConcepts returns the concepts found in text, most important
	// first. Returns an empty slice if no concepts are found.
	ExtractConcepts(ctx context.Context, text string) ([]ExtractedConcept, error)
}

// Summarizer condenses text into a short plain-English summary.
// Implementations must be safe for concurrent use.
type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Provider aggregates the AI services a deployment uses so they share
// configuration and are closed together.
type Provider interface {
	Embedder() Embedder
	ConceptExtractor() ConceptExtractor
	Summarizer() Summarizer

	// Close releases resources held by the provider and its services.
	Close() error
}
