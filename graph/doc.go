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

// Package graph defines the document processing flows: converting uploaded
// files to text, chunking that text, and enriching chunks with embeddings,
// inferred concepts and summaries. Results are linked by edge records so the
// store can be walked as a graph from document to chunk to concept.
//
// Register binds the flows to a flow.Executor; RegisterQueue binds the same
// handlers to a queue.Queue for deployments that use explicit tasks.
//
//	flow        table     stamp              depends on   priority
//	convert     document  converted          path         4
//	chunk       document  chunked            text         3
//	embed       chunk     embedded           text         2
//	infer       chunk     concepts_inferred  text         1
//	summarize   chunk     summarized         text         0
package graph
