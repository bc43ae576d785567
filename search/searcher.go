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

package search

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/poiesic/flowrun/ai"
	"github.com/poiesic/flowrun/core"
	"github.com/poiesic/flowrun/graph"
	"github.com/poiesic/flowrun/query"
	"github.com/poiesic/flowrun/storage"
)

const (
	// DefaultThreshold is the minimum cosine similarity for a semantic hit.
	DefaultThreshold = 0.5

	// DefaultPageSize is the number of chunks read per store query.
	DefaultPageSize = 256

	bothBoost       = 1.5
	conceptualScore = 1.2
	verbatimBoost   = 0.3
)

// Result is one ranked chunk.
type Result struct {
	Chunk      *core.Record
	Document   string  // ID of the document the chunk was first split from
	Similarity float32 // Cosine similarity, 0 for conceptual-only hits
	Score      float32
}

// Text returns the chunk text.
func (r *Result) Text() string {
	return r.Chunk.String(graph.FieldText)
}

// Searcher ranks chunks against a query.
type Searcher struct {
	store     storage.RecordRepository
	embedder  ai.Embedder
	extractor ai.ConceptExtractor
	threshold float32
	pageSize  int
	logger    *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithExtractor enables the conceptual stage.
func WithExtractor(extractor ai.ConceptExtractor) Option {
	return func(s *Searcher) error {
		s.extractor = extractor
		return nil
	}
}

// WithThreshold sets the minimum similarity for a semantic hit.
// Default is DefaultThreshold.
func WithThreshold(threshold float32) Option {
	return func(s *Searcher) error {
		if threshold < -1 || threshold > 1 {
			return errors.New("threshold must be between -1 and 1")
		}
		s.threshold = threshold
		return nil
	}
}

// WithPageSize sets how many chunks are read per store query.
// Default is DefaultPageSize.
func WithPageSize(size int) Option {
	return func(s *Searcher) error {
		if size <= 0 {
			return errors.New("page size must be positive")
		}
		s.pageSize = size
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.RecordRepository, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		store:     store,
		embedder:  embedder,
		threshold: DefaultThreshold,
		pageSize:  DefaultPageSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")
	return s, nil
}

// Search returns up to maxHits chunks ranked by relevance to text.
func (s *Searcher) Search(ctx context.Context, text string, maxHits int) ([]*Result, error) {
	return s.SearchWithMonitor(ctx, text, maxHits, nil)
}

// SearchWithMonitor is Search with stage callbacks delivered to monitor.
func (s *Searcher) SearchWithMonitor(ctx context.Context, text string, maxHits int, monitor SearchMonitor) ([]*Result, error) {
	if maxHits <= 0 {
		return nil, ErrInvalidLimit
	}
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	monitor.Start(text)

	// 1. Semantic stage
	embedding, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", text, "err", err)
		return nil, err
	}
	semantic, err := s.nearest(ctx, embedding, maxHits)
	if err != nil {
		s.logger.Error("error scanning chunk embeddings", "err", err)
		return nil, err
	}
	semanticSet := make(map[string]struct{}, len(semantic))
	semanticIDs := make([]string, 0, len(semantic))
	for _, hit := range semantic {
		semanticSet[hit.Chunk.ID] = struct{}{}
		semanticIDs = append(semanticIDs, hit.Chunk.ID)
	}
	monitor.AfterSemanticSearch(semanticIDs)

	// 2. Conceptual stage
	conceptual, err := s.conceptualMatches(ctx, text, monitor)
	if err != nil {
		return nil, err
	}

	// 3. Combine and score
	hits := make(map[string]*Result, len(semantic)+len(conceptual))
	for _, hit := range semantic {
		hits[hit.Chunk.ID] = hit
	}
	for id := range conceptual {
		if _, ok := hits[id]; ok {
			continue
		}
		chunk, err := s.store.Get(ctx, graph.TableChunk, id)
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug("mentions edge points at missing chunk", "chunk", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		hits[id] = &Result{Chunk: chunk, Document: chunk.String(graph.FieldDocument)}
	}

	results := make([]*Result, 0, len(hits))
	for id, hit := range hits {
		_, inConceptual := conceptual[id]
		_, inSemantic := semanticSet[id]

		switch {
		case inSemantic && inConceptual:
			hit.Score = bothBoost * hit.Similarity
			monitor.SemanticAndConceptualHit(hit.Chunk)
		case inConceptual:
			hit.Score = conceptualScore
			monitor.ConceptualHit(hit.Chunk)
		default:
			hit.Score = hit.Similarity
			monitor.SemanticHit(hit.Chunk)
		}
		if containsAllQueryWords(hit.Text(), text) {
			hit.Score += verbatimBoost
		}
		results = append(results, hit)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
	if len(results) > maxHits {
		results = results[:maxHits]
	}
	monitor.Finish(results)

	return results, nil
}

// nearest pages through embedded chunks and keeps the limit most similar
// ones at or above the threshold.
func (s *Searcher) nearest(ctx context.Context, embedding []float32, limit int) ([]*Result, error) {
	var hits []*Result
	q := query.Query{
		Table: graph.TableChunk,
		Where: query.Present{Field: graph.FieldEmbedding},
		Limit: s.pageSize,
	}
	for {
		page, err := s.store.Find(ctx, q)
		if err != nil {
			return nil, err
		}
		for _, chunk := range page {
			raw, _ := chunk.Get(graph.FieldEmbedding)
			vec, ok := toVector(raw)
			if !ok {
				s.logger.Warn("chunk embedding has unexpected type", "chunk", chunk.ID)
				continue
			}
			sim := CosineSimilarity(embedding, vec)
			if sim < s.threshold {
				continue
			}
			hits = append(hits, &Result{
				Chunk:      chunk,
				Document:   chunk.String(graph.FieldDocument),
				Similarity: sim,
			})
		}
		if len(page) < s.pageSize {
			break
		}
		q.After = page[len(page)-1].ID
		if err := ctx.Err(); err != nil {
			return nil, err
		}
	}

	sort.Slice(hits, func(i, j int) bool {
		return hits[i].Similarity > hits[j].Similarity
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// conceptualMatches returns the IDs of chunks that mention any concept
// extracted from text.
func (s *Searcher) conceptualMatches(ctx context.Context, text string, monitor SearchMonitor) (map[string]struct{}, error) {
	matches := map[string]struct{}{}
	if s.extractor == nil {
		return matches, nil
	}

	extracted, err := s.extractor.ExtractConcepts(ctx, text)
	if err != nil {
		s.logger.Error("error extracting concepts from query", "err", err)
		return nil, err
	}

	names := make([]string, 0, len(extracted))
	for _, ec := range extracted {
		name := strings.ToLower(strings.TrimSpace(ec.Name))
		if name == "" {
			continue
		}
		concept, err := s.store.Get(ctx, graph.TableConcept, name)
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.Debug("concept not found in database", "concept", name)
			continue
		}
		if err != nil {
			s.logger.Warn("error looking up concept", "concept", name, "err", err)
			continue
		}
		names = append(names, name)

		edges, err := graph.Incoming(ctx, s.store, graph.EdgeMentions, concept)
		if err != nil {
			s.logger.Warn("failed to get chunks for concept", "concept", name, "err", err)
			continue
		}
		prefix := graph.TableChunk + ":"
		for _, edge := range edges {
			if ref := edge.String(graph.FieldIn); strings.HasPrefix(ref, prefix) {
				matches[strings.TrimPrefix(ref, prefix)] = struct{}{}
			}
		}
	}
	monitor.AfterQueryConceptExtraction(names)

	ids := make([]string, 0, len(matches))
	for id := range matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	monitor.AfterConceptuallyRelatedSearch(ids)

	return matches, nil
}
