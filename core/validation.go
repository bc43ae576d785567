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

import (
	"fmt"
	"slices"
)

// ValidateFlow validates a Flow descriptor according to domain rules.
//
// Validation rules:
//   - Name, Table and Stamp must not be empty
//   - Dependencies must not contain empty names
//   - Stamp must not also be a dependency
//
// NOT validated (populated at registration):
//   - Hash (empty is allowed and means "unversioned")
//   - Seq, UpdatedAt (assigned by the store)
func ValidateFlow(flow *Flow) error {
	if flow == nil {
		return fmt.Errorf("%w: flow is nil", ErrInvalidFlow)
	}

	if flow.Name == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFlow, ErrEmptyFlowName)
	}

	if flow.Table == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFlow, ErrEmptyTable)
	}

	if flow.Stamp == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFlow, ErrEmptyStamp)
	}

	if slices.Contains(flow.Dependencies, "") {
		return fmt.Errorf("%w: %w", ErrInvalidFlow, ErrEmptyDependency)
	}

	if slices.Contains(flow.Dependencies, flow.Stamp) {
		return fmt.Errorf("%w: %w: %q", ErrInvalidFlow, ErrStampIsDependency, flow.Stamp)
	}

	return nil
}

// ValidateRecord validates that a record can be written to storage.
func ValidateRecord(record *Record) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidRecord)
	}

	if record.Table == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyTable)
	}

	if record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidRecord, ErrEmptyRecordID)
	}

	return nil
}

// ValidateTaskStatus validates that a TaskStatus has a known value.
func ValidateTaskStatus(status TaskStatus) error {
	switch status {
	case TaskPending, TaskProcessing, TaskProcessed, TaskFailed:
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidTaskStatus, status)
}
