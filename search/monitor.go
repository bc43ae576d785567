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

import "github.com/poiesic/flowrun/core"

// SearchMonitor receives callbacks at each stage of a search.
// Implementations are used for tracing and debugging ranking decisions.
type SearchMonitor interface {
	Start(query string)
	AfterSemanticSearch(chunkIDs []string)
	AfterQueryConceptExtraction(concepts []string)
	AfterConceptuallyRelatedSearch(chunkIDs []string)
	SemanticAndConceptualHit(chunk *core.Record)
	SemanticHit(chunk *core.Record)
	ConceptualHit(chunk *core.Record)
	Finish(results []*Result)
}

type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ string)                            {}
func (n *noopMonitor) AfterSemanticSearch(_ []string)            {}
func (n *noopMonitor) AfterQueryConceptExtraction(_ []string)    {}
func (n *noopMonitor) AfterConceptuallyRelatedSearch(_ []string) {}
func (n *noopMonitor) SemanticAndConceptualHit(_ *core.Record)   {}
func (n *noopMonitor) SemanticHit(_ *core.Record)                {}
func (n *noopMonitor) ConceptualHit(_ *core.Record)              {}
func (n *noopMonitor) Finish(_ []*Result)                        {}
