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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidFlow indicates a Flow descriptor failed validation.
	ErrInvalidFlow = errors.New("invalid flow")

	// ErrEmptyFlowName indicates the flow Name field is empty.
	ErrEmptyFlowName = errors.New("flow name cannot be empty")

	// ErrEmptyTable indicates a table name is empty.
	ErrEmptyTable = errors.New("table cannot be empty")

	// ErrEmptyStamp indicates the flow Stamp field is empty.
	ErrEmptyStamp = errors.New("stamp field cannot be empty")

	// ErrStampIsDependency indicates the stamp field is also listed as a dependency,
	// which would make the flow unsatisfiable.
	ErrStampIsDependency = errors.New("stamp field cannot be a dependency")

	// ErrEmptyDependency indicates a dependency entry is empty.
	ErrEmptyDependency = errors.New("dependency field cannot be empty")

	// ErrInvalidRecord indicates a Record failed validation.
	ErrInvalidRecord = errors.New("invalid record")

	// ErrEmptyRecordID indicates the record ID is empty.
	ErrEmptyRecordID = errors.New("record id cannot be empty")

	// ErrInvalidTaskStatus indicates an unknown TaskStatus value.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrAlreadyStamped is returned by conditional stamp writes when the stamp
	// was set by someone else first.
	ErrAlreadyStamped = errors.New("record already stamped")
)
