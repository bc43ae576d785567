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


package storage

import (
	"fmt"
	"maps"

	"github.com/bytedance/sonic"
	"github.com/poiesic/flowrun/core"
)

// MarshalFlow serializes a Flow descriptor to bytes.
func MarshalFlow(flow *core.Flow) []byte {
	buf := make([]byte, core.FlowMUS.Size(*flow))
	core.FlowMUS.Marshal(*flow, buf)
	return buf
}

// UnmarshalFlow deserializes a Flow descriptor from bytes.
func UnmarshalFlow(data []byte) (*core.Flow, error) {
	flow, _, err := core.FlowMUS.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: flow: %w", ErrSerializationFailed, err)
	}
	return &flow, nil
}

// MarshalFields serializes record fields to a JSON document.
// Nil values are dropped so stored documents never carry explicit nulls.
func MarshalFields(fields map[string]any) ([]byte, error) {
	clean := make(map[string]any, len(fields))
	for k, v := range fields {
		if v != nil {
			clean[k] = v
		}
	}
	data, err := sonic.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("%w: fields: %w", ErrSerializationFailed, err)
	}
	return data, nil
}

// UnmarshalFields deserializes a JSON document into record fields.
// Numbers decode as float64.
func UnmarshalFields(data []byte) (map[string]any, error) {
	fields := map[string]any{}
	if len(data) == 0 {
		return fields, nil
	}
	if err := sonic.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("%w: fields: %w", ErrSerializationFailed, err)
	}
	return fields, nil
}

// ApplyFields merges fields into dst in place. A nil value deletes the field.
func ApplyFields(dst map[string]any, fields map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(fields))
	}
	for k, v := range fields {
		if v == nil {
			delete(dst, k)
			continue
		}
		dst[k] = v
	}
	return dst
}

// NormalizeFields returns a copy of fields as they would read back from
// storage: nil values removed and numbers converted to float64.
func NormalizeFields(fields map[string]any) (map[string]any, error) {
	data, err := MarshalFields(maps.Clone(fields))
	if err != nil {
		return nil, err
	}
	return UnmarshalFields(data)
}
