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


// Package query provides a small typed predicate language for selecting
// records by field presence and equality.
//
// Predicates are plain values. Storage backends either evaluate them
// in-process with Match (BadgerDB) or compile them to parameterized SQL
// (SQLite); field names and values never get interpolated into query text.
//
// The flow scanner builds its candidate query as
//
//	query.And{query.Absent{Field: stamp}, query.Present{Field: dep1}, ...}
//
// A field that is missing and a field that holds an explicit null are both
// "absent" for every backend.
package query
