package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChangeSetJSON_KeepsSectionAndFieldOrder(t *testing.T) {
	changes := ChangeSet{
		Sections: []SectionChanges{
			{Key: SectionPower, Diff: SectionDiff{
				{Field: "kva_of_dg", Change: FieldChange{Old: nil, OldPresent: true, New: 25.0}},
				{Field: "generator", Change: FieldChange{Old: false, OldPresent: true, New: true}},
			}},
			{Key: SectionSite, Diff: SectionDiff{
				{Field: "district", Change: FieldChange{New: "Kaski"}},
			}},
		},
		Comment: "generator installed",
	}

	encoded, err := json.Marshal(changes)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"site_power": {"kva_of_dg": {"old": null, "new": 25}, "generator": {"old": false, "new": true}},
		"site": {"district": {"new": "Kaski"}},
		"comment": "generator installed"
	}`, string(encoded))
	assert.Equal(t,
		`{"site_power":{"kva_of_dg":{"old":null,"new":25},"generator":{"old":false,"new":true}},"site":{"district":{"new":"Kaski"}},"comment":"generator installed"}`,
		string(encoded))

	var decoded ChangeSet
	require.NoError(t, json.Unmarshal(encoded, &decoded))
	require.Len(t, decoded.Sections, 2)
	assert.Equal(t, SectionPower, decoded.Sections[0].Key)
	assert.Equal(t, "kva_of_dg", decoded.Sections[0].Diff[0].Field)
	assert.Equal(t, "generator", decoded.Sections[0].Diff[1].Field)
	assert.Equal(t, "generator installed", decoded.Comment)

	district, ok := decoded.Sections[1].Diff.Get("district")
	require.True(t, ok)
	assert.False(t, district.OldPresent)
	assert.Equal(t, "Kaski", district.New)
}

func TestChangeSetJSON_RejectsUnknownSection(t *testing.T) {
	var decoded ChangeSet
	err := json.Unmarshal([]byte(`{"site_powr": {"generator": {"old": null, "new": true}}}`), &decoded)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "site_powr")
}

func TestChangeSetJSON_DropsEmptySections(t *testing.T) {
	var decoded ChangeSet
	require.NoError(t, json.Unmarshal([]byte(`{"site": {}, "comment": "only a note"}`), &decoded))
	assert.Empty(t, decoded.Sections)
	assert.Equal(t, "only a note", decoded.Comment)

	encoded, err := json.Marshal(ChangeSet{Sections: []SectionChanges{{Key: SectionSite}}})
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(encoded))
}

func TestChangeSet_IsEmpty(t *testing.T) {
	assert.True(t, ChangeSet{}.IsEmpty())
	assert.True(t, ChangeSet{Comment: "   "}.IsEmpty())
	assert.False(t, ChangeSet{Comment: "why"}.IsEmpty())
	assert.False(t, ChangeSet{Sections: []SectionChanges{{Key: SectionSite, Diff: SectionDiff{{Field: "a"}}}}}.IsEmpty())
}

func TestRecordFromMap_NormalizesSubRecords(t *testing.T) {
	record := RecordFromMap(map[string]any{
		"site_id":            "KTM001",
		"site_name":          "Baneshwor",
		"created_at":         "2024-01-01T00:00:00Z",
		"site_configuration": []any{map[string]any{"id": 4.0, "site_id": "KTM001", "band_4g": "1800"}},
		"site_landowner":     []any{},
		"site_power":         map[string]any{"generator": true},
	})

	assert.Equal(t, Fields{{Name: "site_name", Value: "Baneshwor"}}, record.Root)
	assert.Equal(t, Fields{{Name: "band_4g", Value: "1800"}}, record.Section(SectionConfiguration))
	assert.Nil(t, record.Section(SectionLandowner))
	assert.Equal(t, Fields{{Name: "generator", Value: true}}, record.Section(SectionPower))
	assert.Nil(t, record.Section(SectionTransmission))
}

func TestFieldsFromMap_Ordering(t *testing.T) {
	fields := FieldsFromMap(map[string]any{"b": 1, "extra": 2, "a": 3}, []string{"b", "a"})
	require.Len(t, fields, 3)
	assert.Equal(t, []string{"b", "a", "extra"}, []string{fields[0].Name, fields[1].Name, fields[2].Name})
	assert.Nil(t, FieldsFromMap(nil, nil))
}
