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


// Package storage provides the storage abstraction layer for flowrun.
//
// This package defines repository interfaces that decouple the flow scheduler
// from the database that holds records and flow descriptors. Two backends are
// provided: BadgerDB (storage/badger, the default) and SQLite (storage/sqlite).
//
// # Constructor Return Type Pattern
//
// Public backend constructors return the storage.Store interface:
//
//	store, err := badger.NewStore(path)  // returns storage.Store
//
// Internal constructors (newBackend, newRecordRepository, etc.) may return
// concrete types since they're only used within the implementation package.
//
// # Architecture
//
//   - RecordRepository: generic schemaless records grouped by table
//   - FlowRepository: persisted flow descriptors
//   - Store: both of the above plus Close
//
// Records are selected with the typed predicates of the query package.
// RecordRepository.UpdateIf is the single atomic commit point used for
// at-most-once stamping and for task state transitions.
//
// # Usage
//
//	store, err := badger.NewStore("/path/to/db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
// Use in tests with in-memory storage:
//
//	store, err := badger.NewMemoryStore()
//
// # Thread Safety
//
// All implementations must be safe for concurrent use.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation.
package storage
