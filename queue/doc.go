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


// Package queue implements the explicit status-queue strategy.
//
// Instead of scanning for records whose stamp is absent, work is described by
// task records in the "task" table. Each task names a kind and the record it
// operates on, and moves through pending, processing, and then processed or
// failed. Every transition is a conditional update, so a task is claimed by
// at most one worker.
//
// A deployment uses either this queue or the flow executor. Queue implements
// flow.Runner, so it is driven by the same backoff scheduler.
package queue
