// Package editor implements the declarative edit pipeline: parse a
// replacement spec, apply it to the downloaded file, preview the diff,
// optionally back up the original, and re-upload the batch.
package editor

import (
	"encoding/json"
	"fmt"
)

// Insertion places content at a line position of the original file.
// Position 0 is before the first line; position len(file) appends.
type Insertion struct {
	Line    int
	Content string
}

// LineRange replaces the inclusive 0-based line range [Start, End].
type LineRange struct {
	Start   int
	End     int
	Content string
}

// TextSub substitutes every occurrence of Old with New.
type TextSub struct {
	Old string
	New string
}

// Spec is a parsed replacement spec, partitioned by operation class.
// Application order: insertions (descending line), then ranges
// (descending start), then substitutions in declared order.
type Spec struct {
	Insertions []Insertion
	Ranges     []LineRange
	Subs       []TextSub
}

// ParseSpec reads the JSON replacement spec. Each element is a two-item
// array: [[start, end], content] replaces a line range, [[line, null],
// content] inserts at a position, and [old, new] substitutes text.
func ParseSpec(raw string) (*Spec, error) {
	var elems []json.RawMessage

	if err := json.Unmarshal([]byte(raw), &elems); err != nil {
		return nil, fmt.Errorf("editor: replacement spec is not a JSON list: %w", err)
	}

	spec := &Spec{}

	for i, elem := range elems {
		if err := parseElement(spec, elem); err != nil {
			return nil, fmt.Errorf("editor: spec element %d: %w", i, err)
		}
	}

	return spec, nil
}

// parseElement classifies one spec element and appends it to its class.
func parseElement(spec *Spec, elem json.RawMessage) error {
	var pair []json.RawMessage

	if err := json.Unmarshal(elem, &pair); err != nil {
		return fmt.Errorf("not a two-item array: %w", err)
	}

	if len(pair) != 2 {
		return fmt.Errorf("has %d items, want 2", len(pair))
	}

	var second string
	if err := json.Unmarshal(pair[1], &second); err != nil {
		return fmt.Errorf("second item is not a string: %w", err)
	}

	// A string first item is a text substitution; an array is a line
	// operation.
	var old string
	if err := json.Unmarshal(pair[0], &old); err == nil {
		if old == "" {
			return fmt.Errorf("substitution old_text is empty")
		}

		spec.Subs = append(spec.Subs, TextSub{Old: old, New: second})

		return nil
	}

	var indices []*int

	if err := json.Unmarshal(pair[0], &indices); err != nil {
		return fmt.Errorf("first item is neither a string nor a line pair: %w", err)
	}

	if len(indices) != 2 {
		return fmt.Errorf("line pair has %d items, want 2", len(indices))
	}

	if indices[0] == nil {
		return fmt.Errorf("line pair start is null")
	}

	if indices[1] == nil {
		spec.Insertions = append(spec.Insertions, Insertion{Line: *indices[0], Content: second})
		return nil
	}

	spec.Ranges = append(spec.Ranges, LineRange{Start: *indices[0], End: *indices[1], Content: second})

	return nil
}

// Empty reports whether the spec holds no operations.
func (s *Spec) Empty() bool {
	return len(s.Insertions) == 0 && len(s.Ranges) == 0 && len(s.Subs) == 0
}
