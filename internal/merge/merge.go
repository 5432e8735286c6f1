// Package merge reconciles a freshly fetched record with its cached version
// field by field, so that writes only happen when something actually changed
// and fields the fetch did not carry are left alone.
package merge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Fields is a record in its JSON object form.
type Fields map[string]json.RawMessage

var jsonNull = []byte("null")

// ToFields converts a record to its JSON object form.
func ToFields(v any) (Fields, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	var f Fields
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("record is not a JSON object: %w", err)
	}
	return f, nil
}

// Apply copies every field of incoming that differs from existing into a copy
// of existing and returns it with the sorted names of the changed fields.
// Null or missing fields in incoming are not considered. Values are compared
// on their compacted serialized form.
func Apply(existing, incoming Fields) (Fields, []string) {
	merged := make(Fields, len(existing)+len(incoming))
	for k, v := range existing {
		merged[k] = v
	}
	var changed []string
	for k, v := range incoming {
		nv := compact(v)
		if nv == nil || bytes.Equal(nv, jsonNull) {
			continue
		}
		if old, ok := existing[k]; ok && bytes.Equal(compact(old), nv) {
			continue
		}
		merged[k] = nv
		changed = append(changed, k)
	}
	sort.Strings(changed)
	return merged, changed
}

// Record merges incoming into existing. A nil existing means there is no
// cached version: incoming is returned as-is and reported as changed. When
// nothing differs, *existing is returned unchanged.
func Record[T any](existing *T, incoming T) (T, bool, error) {
	if existing == nil {
		return incoming, true, nil
	}
	ef, err := ToFields(existing)
	if err != nil {
		return *existing, false, err
	}
	inf, err := ToFields(incoming)
	if err != nil {
		return *existing, false, err
	}
	merged, changed := Apply(ef, inf)
	if len(changed) == 0 {
		return *existing, false, nil
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return *existing, false, fmt.Errorf("marshal merged record: %w", err)
	}
	var out T
	if err := json.Unmarshal(data, &out); err != nil {
		return *existing, false, fmt.Errorf("unmarshal merged record: %w", err)
	}
	return out, true, nil
}

func compact(v json.RawMessage) []byte {
	if len(v) == 0 {
		return nil
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return v
	}
	return buf.Bytes()
}
