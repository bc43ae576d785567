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

// Package ai defines the AI services the processing flows depend on.
//
// The flows that embed chunks, infer concepts and write summaries depend on
// the interfaces here rather than on a particular provider:
//
//   - Embedder: generates vector embeddings from text
//   - ConceptExtractor: infers the concepts a text mentions
//   - Summarizer: produces a short plain-English summary
//   - Provider: bundles the three so they share configuration
//
// ai/openai implements them over OpenAI-compatible APIs with langchaingo;
// ai/mock provides deterministic doubles for tests.
//
// Production constructors return interfaces; mock constructors return
// concrete types so tests can inject behavior and count calls.
//
//	cfg := ai.NewConfig(ai.WithHost("http://localhost:11434"))
//	provider, err := openai.NewProvider(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	summary, err := provider.Summarizer().Summarize(ctx, text)
package ai
