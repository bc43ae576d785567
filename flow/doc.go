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


// Package flow implements the incremental flow scheduler.
//
// A flow is a named transformation step over one table of records. A record
// is a candidate for a flow when the flow's stamp field is absent and all of
// its dependency fields are present. The flow's handler does the work and
// marks the record done by setting the stamp, normally to the flow's logic
// hash so records processed by an older version of the handler can be found
// later (Executor.Stale) and re-surfaced on request (Executor.Reset).
//
// # Components
//
//   - StableHash: version hash of a handler's logic, stable across formatting
//   - Registry: persisted flow descriptors, listed in priority order
//   - Scanner: paged candidate queries built from typed predicates
//   - Dispatch: per-executor table of flow name to Handler
//   - Executor: one pass over all flows (RunOnce), with Stop
//   - Scheduler: repeated passes with exponential backoff while idle
//
// # Usage
//
//	exe, err := flow.NewExecutor(store)
//	if err != nil {
//	    return err
//	}
//	defer exe.Release()
//
//	_, err = exe.Register(ctx, flow.Spec{
//	    Name:         "chunk",
//	    Table:        "document",
//	    Stamp:        "chunked",
//	    Dependencies: []string{"text"},
//	    Priority:     3,
//	}, chunkDocument)
//
//	sched, err := flow.NewScheduler(exe, flow.WithDelays(time.Second, time.Minute))
//	go sched.Run(ctx)
//	...
//	sched.Stop()
//
// # Retry semantics
//
// A failed handler leaves its record un-stamped, so the record is a candidate
// again on the next pass. There is no attempt limit. Handlers must be
// idempotent, and should commit with Commit so that the stamp is written at
// most once even when candidates run concurrently (WithConcurrency).
package flow
