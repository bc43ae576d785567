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

// Package mock provides deterministic test doubles for the ai services.
//
// Constructors return concrete types so tests can inject behavior through
// the exported func fields and assert on call counts:
//
//	embedder := mock.NewMockEmbedder()
//	embedder.EmbedTextFunc = func(ctx context.Context, text string) ([]float32, error) {
//	    return []float32{0.1, 0.2, 0.3}, nil
//	}
//	provider := mock.NewMockProviderWithServices(embedder, nil, nil)
//
// Defaults:
//
//   - MockEmbedder: unit vectors derived from a hash of the text
//   - MockConceptExtractor: the first words of the text as concepts
//   - MockSummarizer: the first sentence of the text
//
// All doubles are safe for concurrent use.
package mock
