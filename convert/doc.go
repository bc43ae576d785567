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

// Package convert extracts plain text from uploaded documents and splits it
// into chunks for embedding.
//
// PDF text comes from ledongthuc/pdf with a printable-text fallback for
// files the parser cannot read, spreadsheets are rendered as one markdown
// table per sheet with excelize, and markdown or plain text passes through.
// Chunker splits the result with langchaingo's text splitters.
package convert
