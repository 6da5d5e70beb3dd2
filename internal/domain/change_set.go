package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// commentKey is the reserved ChangeSet key carrying the submitter's comment.
const commentKey = "comment"

// FieldChange records the old and new value of one changed field. OldPresent
// is false when the field did not exist before (for example a sub-record
// created by the edit); it is serialised by omitting "old".
type FieldChange struct {
	Old        any
	OldPresent bool
	New        any
}

func (c FieldChange) MarshalJSON() ([]byte, error) {
	if !c.OldPresent {
		return json.Marshal(struct {
			New any `json:"new"`
		}{New: c.New})
	}
	return json.Marshal(struct {
		Old any `json:"old"`
		New any `json:"new"`
	}{Old: c.Old, New: c.New})
}

func (c *FieldChange) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("field change: %w", err)
	}
	*c = FieldChange{}
	if oldRaw, ok := raw["old"]; ok {
		if err := json.Unmarshal(oldRaw, &c.Old); err != nil {
			return fmt.Errorf("field change old: %w", err)
		}
		c.OldPresent = true
	}
	if newRaw, ok := raw["new"]; ok {
		if err := json.Unmarshal(newRaw, &c.New); err != nil {
			return fmt.Errorf("field change new: %w", err)
		}
	}
	return nil
}

// FieldDiff pairs a field name with its change.
type FieldDiff struct {
	Field  string
	Change FieldChange
}

// SectionDiff is the ordered set of changed fields within one section.
type SectionDiff []FieldDiff

// Get returns the change recorded for field.
func (d SectionDiff) Get(field string) (FieldChange, bool) {
	for _, entry := range d {
		if entry.Field == field {
			return entry.Change, true
		}
	}
	return FieldChange{}, false
}

func (d SectionDiff) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, entry := range d {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(entry.Field)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(entry.Change)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", entry.Field, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (d *SectionDiff) UnmarshalJSON(data []byte) error {
	out := SectionDiff{}
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		var change FieldChange
		if err := json.Unmarshal(raw, &change); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}
		out = append(out, FieldDiff{Field: key, Change: change})
		return nil
	})
	if err != nil {
		return err
	}
	*d = out
	return nil
}

// SectionChanges is one non-empty section of a ChangeSet.
type SectionChanges struct {
	Key  SectionKey
	Diff SectionDiff
}

// ChangeSet is the full proposal of a pending edit: the changed sections in
// display order and an optional free-text comment.
type ChangeSet struct {
	Sections []SectionChanges
	Comment  string
}

// Section returns the diff stored under key.
func (c ChangeSet) Section(key SectionKey) (SectionDiff, bool) {
	for _, section := range c.Sections {
		if section.Key == key {
			return section.Diff, true
		}
	}
	return nil, false
}

// FieldCount totals the changed fields across all sections.
func (c ChangeSet) FieldCount() int {
	total := 0
	for _, section := range c.Sections {
		total += len(section.Diff)
	}
	return total
}

// IsEmpty reports a ChangeSet with no sections and a blank comment, which
// must never be submitted.
func (c ChangeSet) IsEmpty() bool {
	return len(c.Sections) == 0 && strings.TrimSpace(c.Comment) == ""
}

func (c ChangeSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	written := 0
	for _, section := range c.Sections {
		if len(section.Diff) == 0 {
			continue
		}
		if written > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(string(section.Key))
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(section.Diff)
		if err != nil {
			return nil, fmt.Errorf("section %s: %w", section.Key, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
		written++
	}
	if c.Comment != "" {
		if written > 0 {
			buf.WriteByte(',')
		}
		value, err := json.Marshal(c.Comment)
		if err != nil {
			return nil, err
		}
		buf.WriteString(`"` + commentKey + `":`)
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *ChangeSet) UnmarshalJSON(data []byte) error {
	out := ChangeSet{}
	err := decodeOrderedObject(data, func(key string, raw json.RawMessage) error {
		if key == commentKey {
			if err := json.Unmarshal(raw, &out.Comment); err != nil {
				return fmt.Errorf("comment: %w", err)
			}
			return nil
		}
		sectionKey, err := ParseSectionKey(key)
		if err != nil {
			return err
		}
		var diff SectionDiff
		if err := json.Unmarshal(raw, &diff); err != nil {
			return fmt.Errorf("section %s: %w", key, err)
		}
		if len(diff) > 0 {
			out.Sections = append(out.Sections, SectionChanges{Key: sectionKey, Diff: diff})
		}
		return nil
	})
	if err != nil {
		return err
	}
	*c = out
	return nil
}

// decodeOrderedObject walks a JSON object in document order.
func decodeOrderedObject(data []byte, fn func(key string, raw json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("value for %s: %w", key, err)
		}
		if err := fn(key, raw); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
