package model

import (
	"reflect"
	"time"
)

// Document is the free-form nested key/value data held in a profile.
type Document = map[string]any

// ProfileSnapshot is one version of a user's accumulated personal context.
// Several rows may exist per user; the most recently created is authoritative.
type ProfileSnapshot struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Document  Document  `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// MergeDocument returns base with patch deep-merged into it. Neither input is
// modified.
//
// For every key in patch: two maps merge recursively, two sequences gain the
// incoming elements not already present, anything else is overwritten.
func MergeDocument(base, patch Document) Document {
	out := copyDocument(base)
	for key, incoming := range patch {
		existing, ok := out[key]
		if !ok {
			out[key] = copyValue(incoming)
			continue
		}

		existingMap, existingIsMap := existing.(map[string]any)
		incomingMap, incomingIsMap := incoming.(map[string]any)
		if existingIsMap && incomingIsMap {
			out[key] = MergeDocument(existingMap, incomingMap)
			continue
		}

		existingSeq, existingIsSeq := existing.([]any)
		incomingSeq, incomingIsSeq := incoming.([]any)
		if existingIsSeq && incomingIsSeq {
			out[key] = appendUnique(existingSeq, incomingSeq)
			continue
		}

		out[key] = copyValue(incoming)
	}
	return out
}

func appendUnique(existing, incoming []any) []any {
	merged := make([]any, 0, len(existing)+len(incoming))
	for _, v := range existing {
		merged = append(merged, copyValue(v))
	}
	for _, v := range incoming {
		if !containsValue(merged, v) {
			merged = append(merged, copyValue(v))
		}
	}
	return merged
}

func containsValue(seq []any, v any) bool {
	for _, item := range seq {
		if reflect.DeepEqual(item, v) {
			return true
		}
	}
	return false
}

func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return copyDocument(val)
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = copyValue(item)
		}
		return cp
	default:
		return val
	}
}
