package domain

import (
	"encoding/json"
	"reflect"
	"time"
)

// ComputeSectionDiff compares an original and an updated sub-record.
//
// Only keys present in updated are considered; a key missing from original
// counts as absent and always produces a change. Keys that exist only in
// original are not reported, and an updated side that is absent yields no
// changes at all. The result follows the field order of updated.
func ComputeSectionDiff(original, updated Fields) SectionDiff {
	if !updated.Present() {
		return SectionDiff{}
	}

	diff := make(SectionDiff, 0, len(updated))
	for _, field := range updated {
		var (
			oldValue any
			found    bool
		)
		if original.Present() {
			oldValue, found = original.Get(field.Name)
		}
		if found && sameValue(oldValue, field.Value) {
			continue
		}
		diff = append(diff, FieldDiff{
			Field: field.Name,
			Change: FieldChange{
				Old:        oldValue,
				OldPresent: found,
				New:        field.Value,
			},
		})
	}
	return diff
}

// ComputeChangeSet diffs the root fields under SectionSite and then each of
// sectionKeys in order, keeping only sections with at least one change.
// Nested section names never appear among the root fields.
func ComputeChangeSet(original, updated Record, sectionKeys []SectionKey) ChangeSet {
	nested := make(map[string]struct{}, len(sectionKeys))
	for _, key := range sectionKeys {
		nested[string(key)] = struct{}{}
	}

	var changes ChangeSet
	if diff := ComputeSectionDiff(withoutKeys(original.Root, nested), withoutKeys(updated.Root, nested)); len(diff) > 0 {
		changes.Sections = append(changes.Sections, SectionChanges{Key: SectionSite, Diff: diff})
	}

	for _, key := range sectionKeys {
		if key == SectionSite {
			continue
		}
		diff := ComputeSectionDiff(original.Section(key), updated.Section(key))
		if len(diff) > 0 {
			changes.Sections = append(changes.Sections, SectionChanges{Key: key, Diff: diff})
		}
	}
	return changes
}

func withoutKeys(fields Fields, drop map[string]struct{}) Fields {
	if fields == nil || len(drop) == 0 {
		return fields
	}
	out := make(Fields, 0, len(fields))
	for _, field := range fields {
		if _, skip := drop[field.Name]; skip {
			continue
		}
		out = append(out, field)
	}
	return out
}

// sameValue is a shallow scalar comparison. Numbers compare by value so a
// decoded float64 and an int column value are not reported as a change.
func sameValue(a, b any) bool {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		return ok && af == bf
	}
	if at, ok := a.(time.Time); ok {
		bt, ok := b.(time.Time)
		return ok && at.Equal(bt)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	if ta.Comparable() {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
