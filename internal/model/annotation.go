// Package model defines the annotation and collection records managed by
// annostore. Annotations follow the shape of W3C Web Annotation records:
// a handful of fields the store understands, plus arbitrary descriptive
// metadata (motivation, creator, body, ...) carried through unchanged as
// opaque extension fields.
package model

import (
	"encoding/json"
	"time"

	"github.com/annolab/annostore/internal/errors"
)

// AnnotationType is the target type marking a reference to another
// annotation. A target of this type makes the record part of an
// annotation chain.
const AnnotationType = "Annotation"

// Target describes one resource (or annotation) an annotation is about.
type Target struct {
	ID       string          `json:"id"`
	Type     string          `json:"type,omitempty"`
	Selector json.RawMessage `json:"selector,omitempty"`
}

// IsAnnotation reports whether the target references another annotation.
func (t Target) IsAnnotation() bool {
	return t.Type == AnnotationType
}

// Annotation is one annotation record.
//
// ID, Created and Modified are owned by the store: ID is assigned on
// creation and immutable afterwards, Modified is refreshed on every
// update and never set by the caller. TargetList is the derived,
// index-only closure of the annotation's target chain; it is computed
// by the chain resolver and never supplied by the caller.
type Annotation struct {
	ID       string
	Type     string
	Targets  []Target
	Created  time.Time
	Modified time.Time

	// TargetList holds the full ancestor closure of the target chain.
	TargetList []Target

	// Extra carries descriptive metadata the store treats as opaque.
	Extra map[string]json.RawMessage
}

// Validate checks the structural invariants of an annotation.
func (a *Annotation) Validate() error {
	if len(a.Targets) == 0 {
		return errors.New(errors.KindValidation, "annotation MUST have at least one target")
	}
	return nil
}

// TargetIDs returns the ids of the annotation's direct targets, in
// declaration order.
func (a *Annotation) TargetIDs() []string {
	ids := make([]string, len(a.Targets))
	for i, t := range a.Targets {
		ids[i] = t.ID
	}
	return ids
}

// HasAnnotationTargets reports whether any direct target is itself an
// annotation, i.e. whether this record starts an annotation chain.
func (a *Annotation) HasAnnotationTargets() bool {
	for _, t := range a.Targets {
		if t.IsAnnotation() {
			return true
		}
	}
	return false
}

// Clone returns a deep copy. Store reads hand out clones so callers
// cannot mutate stored state by reference.
func (a *Annotation) Clone() *Annotation {
	if a == nil {
		return nil
	}
	c := *a
	c.Targets = cloneTargets(a.Targets)
	c.TargetList = cloneTargets(a.TargetList)
	if a.Extra != nil {
		c.Extra = make(map[string]json.RawMessage, len(a.Extra))
		for k, v := range a.Extra {
			c.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return &c
}

func cloneTargets(ts []Target) []Target {
	if ts == nil {
		return nil
	}
	out := make([]Target, len(ts))
	for i, t := range ts {
		out[i] = t
		out[i].Selector = append(json.RawMessage(nil), t.Selector...)
	}
	return out
}
