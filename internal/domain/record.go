package domain

import "sort"

// Field is a single named scalar value of a record.
type Field struct {
	Name  string
	Value any
}

// Fields is a flat, ordered mapping of field name to scalar value. A nil
// Fields means the sub-record is absent; an empty non-nil Fields is present
// but carries no values.
type Fields []Field

// Present reports whether the sub-record exists.
func (f Fields) Present() bool {
	return f != nil
}

// Get returns the value stored under name and whether the key exists.
func (f Fields) Get(name string) (any, bool) {
	for _, field := range f {
		if field.Name == name {
			return field.Value, true
		}
	}
	return nil, false
}

// Set returns a copy of f with name set to value, appending when new.
func (f Fields) Set(name string, value any) Fields {
	out := make(Fields, len(f), len(f)+1)
	copy(out, f)
	for i := range out {
		if out[i].Name == name {
			out[i].Value = value
			return out
		}
	}
	return append(out, Field{Name: name, Value: value})
}

// Map flattens the fields into a map; nil stays nil.
func (f Fields) Map() map[string]any {
	if f == nil {
		return nil
	}
	out := make(map[string]any, len(f))
	for _, field := range f {
		out[field.Name] = field.Value
	}
	return out
}

// FieldsFromMap orders a map by the given column order. Keys not listed in
// order follow alphabetically. A nil map yields absent Fields.
func FieldsFromMap(values map[string]any, order []string) Fields {
	if values == nil {
		return nil
	}
	out := make(Fields, 0, len(values))
	seen := make(map[string]struct{}, len(order))
	for _, name := range order {
		if value, ok := values[name]; ok {
			out = append(out, Field{Name: name, Value: value})
			seen[name] = struct{}{}
		}
	}
	rest := make([]string, 0, len(values)-len(seen))
	for name := range values {
		if _, ok := seen[name]; !ok {
			rest = append(rest, name)
		}
	}
	sort.Strings(rest)
	for _, name := range rest {
		out = append(out, Field{Name: name, Value: values[name]})
	}
	return out
}

// Record is an editable aggregate: root scalar fields plus named one-to-one
// sub-records.
type Record struct {
	Root     Fields
	Sections map[SectionKey]Fields
}

// Section returns the sub-record stored under key, nil when absent.
func (r Record) Section(key SectionKey) Fields {
	if r.Sections == nil {
		return nil
	}
	return r.Sections[key]
}

// NormalizeSubRecord collapses the shapes a store may return for a
// one-to-one relation into a single map or nil: a one-element list becomes
// its element, an empty list becomes nil.
func NormalizeSubRecord(value any) map[string]any {
	switch typed := value.(type) {
	case map[string]any:
		return typed
	case []any:
		if len(typed) == 0 {
			return nil
		}
		if first, ok := typed[0].(map[string]any); ok {
			return first
		}
		return nil
	case []map[string]any:
		if len(typed) == 0 {
			return nil
		}
		return typed[0]
	default:
		return nil
	}
}

// RecordFromMap splits a loosely-typed site document into a Record. Root
// fields and sub-record fields are projected onto the registered editable
// columns; bookkeeping columns such as ids and timestamps are dropped.
func RecordFromMap(values map[string]any) Record {
	record := Record{Sections: make(map[SectionKey]Fields, len(siteSections))}
	if values == nil {
		return record
	}

	record.Root = project(values, siteRoot)
	for _, section := range siteSections {
		sub := NormalizeSubRecord(values[string(section.Key)])
		if sub == nil {
			record.Sections[section.Key] = nil
			continue
		}
		record.Sections[section.Key] = project(sub, section)
	}
	return record
}

func project(values map[string]any, spec SectionSpec) Fields {
	out := make(Fields, 0, len(spec.Columns))
	for _, column := range spec.Columns {
		if value, ok := values[column]; ok {
			out = append(out, Field{Name: column, Value: value})
		}
	}
	return out
}
