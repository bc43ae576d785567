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

package mock

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/poiesic/flowrun/ai"
)

// maxConcepts bounds how many words the default extractor turns into concepts.
const maxConcepts = 5

// MockConceptExtractor is a test double for ai.ConceptExtractor.
type MockConceptExtractor struct {
	// ExtractConceptsFunc is called by ExtractConcepts if set.
	ExtractConceptsFunc func(ctx context.Context, text string) ([]ai.ExtractedConcept, error)

	callCount atomic.Int64
}

// NewMockConceptExtractor creates a mock concept extractor with default behavior.
func NewMockConceptExtractor() *MockConceptExtractor {
	return &MockConceptExtractor{}
}

// ExtractConcepts turns the first distinct words of text into concepts with
// decreasing importance.
func (m *MockConceptExtractor) ExtractConcepts(ctx context.Context, text string) ([]ai.ExtractedConcept, error) {
	m.callCount.Add(1)

	if m.ExtractConceptsFunc != nil {
		return m.ExtractConceptsFunc(ctx, text)
	}

	concepts := make([]ai.ExtractedConcept, 0, maxConcepts)
	seen := make(map[string]struct{})
	importance := 10
	for _, word := range strings.Fields(strings.ToLower(text)) {
		if len(concepts) == maxConcepts {
			break
		}
		word = strings.Trim(word, ".,!?;:\"'()[]{}—–-")
		if word == "" {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}

		conceptType := "abstract_concept"
		if len(word) > 5 {
			conceptType = "product"
		}
		concepts = append(concepts, ai.ExtractedConcept{
			Name:       word,
			Type:       conceptType,
			Importance: importance,
		})
		importance--
	}
	return concepts, nil
}

// CallCount returns the number of times ExtractConcepts was called.
func (m *MockConceptExtractor) CallCount() int {
	return int(m.callCount.Load())
}

// Reset clears the call count and custom functions.
func (m *MockConceptExtractor) Reset() {
	m.callCount.Store(0)
	m.ExtractConceptsFunc = nil
}
