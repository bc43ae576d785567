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


package flow

import "errors"

var (
	// ErrNoHandler is returned when a flow has no registered handler.
	ErrNoHandler = errors.New("no handler registered for flow")

	// ErrNilHandler is returned when registering a nil handler.
	ErrNilHandler = errors.New("handler cannot be nil")

	// ErrHandlerPanic wraps a panic recovered from a handler.
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrRegistrationFailed is returned when a flow descriptor could not be
	// persisted. The flow is still registered in-process.
	ErrRegistrationFailed = errors.New("flow registration failed")

	// ErrStoreRequired is returned when a nil store is passed to a constructor.
	ErrStoreRequired = errors.New("store is required")

	// ErrRunnerRequired is returned when a nil runner is passed to the scheduler.
	ErrRunnerRequired = errors.New("runner is required")

	// ErrUnknownFlow is returned when a flow name is neither stored nor registered.
	ErrUnknownFlow = errors.New("unknown flow")

	// ErrInvalidDelay is returned for non-positive or inverted backoff delays.
	ErrInvalidDelay = errors.New("invalid backoff delay")

	// ErrInvalidMaxAttempts is returned when maxAttempts is not positive.
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")
)
