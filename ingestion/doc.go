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

// Package ingestion adds files to the record store as document records.
//
// Ingester walks the given paths, fingerprints each file's content and
// creates one document record per distinct content, keyed by fingerprint, so
// ingesting the same file twice is a no-op. Files are read concurrently on a
// worker pool. The document flows take over from there: a new document has a
// path and no text, which makes it a candidate for the convert flow.
package ingestion
