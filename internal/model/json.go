package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// The wire shape accepts "target" as either a single descriptor or an
// array of descriptors; it is always emitted as an array. Every key the
// store does not understand round-trips through Extra untouched.

const timeLayout = time.RFC3339Nano

// wellKnownKeys are the JSON keys that map onto typed Annotation fields.
var wellKnownKeys = map[string]bool{
	"id":          true,
	"type":        true,
	"target":      true,
	"created":     true,
	"modified":    true,
	"target_list": true,
}

// MarshalJSON implements json.Marshaler.
func (a *Annotation) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Extra)+6)
	for k, v := range a.Extra {
		out[k] = v
	}
	if a.ID != "" {
		out["id"] = a.ID
	}
	if a.Type != "" {
		out["type"] = a.Type
	}
	out["target"] = a.Targets
	if !a.Created.IsZero() {
		out["created"] = a.Created.Format(timeLayout)
	}
	if !a.Modified.IsZero() {
		out["modified"] = a.Modified.Format(timeLayout)
	}
	if len(a.TargetList) > 0 {
		out["target_list"] = a.TargetList
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (a *Annotation) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode annotation: %w", err)
	}

	*a = Annotation{}
	if v, ok := raw["id"]; ok {
		if err := json.Unmarshal(v, &a.ID); err != nil {
			return fmt.Errorf("decode annotation id: %w", err)
		}
	}
	if v, ok := raw["type"]; ok {
		if err := json.Unmarshal(v, &a.Type); err != nil {
			return fmt.Errorf("decode annotation type: %w", err)
		}
	}
	if v, ok := raw["target"]; ok {
		targets, err := decodeTargets(v)
		if err != nil {
			return err
		}
		a.Targets = targets
	}
	if v, ok := raw["target_list"]; ok {
		targets, err := decodeTargets(v)
		if err != nil {
			return err
		}
		a.TargetList = targets
	}
	for _, f := range []struct {
		key string
		dst *time.Time
	}{{"created", &a.Created}, {"modified", &a.Modified}} {
		v, ok := raw[f.key]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return fmt.Errorf("decode annotation %s: %w", f.key, err)
		}
		ts, err := time.Parse(timeLayout, s)
		if err != nil {
			return fmt.Errorf("decode annotation %s: %w", f.key, err)
		}
		*f.dst = ts
	}

	for k, v := range raw {
		if wellKnownKeys[k] {
			continue
		}
		if a.Extra == nil {
			a.Extra = make(map[string]json.RawMessage)
		}
		a.Extra[k] = v
	}
	return nil
}

// decodeTargets accepts a single target object or an array of them.
func decodeTargets(data json.RawMessage) ([]Target, error) {
	var list []Target
	if err := json.Unmarshal(data, &list); err == nil {
		return list, nil
	}
	var single Target
	if err := json.Unmarshal(data, &single); err != nil {
		return nil, fmt.Errorf("decode annotation target: %w", err)
	}
	return []Target{single}, nil
}
