package domain

import "fmt"

// SectionKey names one section of a ChangeSet: the root record or one of its
// one-to-one sub-records.
type SectionKey string

const (
	// SectionSite is the reserved key for the root record's scalar fields.
	SectionSite          SectionKey = "site"
	SectionConfiguration SectionKey = "site_configuration"
	SectionLandowner     SectionKey = "site_landowner"
	SectionPower         SectionKey = "site_power"
	SectionNEA           SectionKey = "site_nea"
	SectionTransmission  SectionKey = "site_transmission"
)

// TargetTypeSite is the target type recorded on pending edits against sites.
const TargetTypeSite = "site"

// SectionSpec describes the table backing a section and the columns an edit
// may touch, in display order.
type SectionSpec struct {
	Key       SectionKey
	Table     string
	KeyColumn string
	Columns   []string
}

// HasColumn reports whether the column is editable within the section.
func (s SectionSpec) HasColumn(name string) bool {
	for _, column := range s.Columns {
		if column == name {
			return true
		}
	}
	return false
}

var siteRoot = SectionSpec{
	Key:       SectionSite,
	Table:     "site",
	KeyColumn: "site_id",
	Columns: []string{
		"site_name", "district", "address", "latitude", "longitude",
		"site_type", "tower_type", "tower_height", "building_height",
	},
}

var siteSections = []SectionSpec{
	{
		Key:       SectionConfiguration,
		Table:     "site_configuration",
		KeyColumn: "site_id",
		Columns: []string{
			"config_2g", "config_3g", "config_4g", "config_5g",
			"band_2g", "band_3g", "band_4g",
		},
	},
	{
		Key:       SectionLandowner,
		Table:     "site_landowner",
		KeyColumn: "site_id",
		Columns:   []string{"land_owner", "land_owner_contact", "key_information"},
	},
	{
		Key:       SectionPower,
		Table:     "site_power",
		KeyColumn: "site_id",
		Columns: []string{
			"transformer", "supply_phase", "generator", "kva_of_dg",
			"nea_subscriber_details", "meter_box_mcb_rating", "meter_power_rating",
			"power_plant_company", "modules_installed", "modules_operational",
			"battery_banks", "total_battery_capacity", "battery_installation_date",
			"battery_bank_company", "rectifier_capacity", "load_current",
		},
	},
	{
		Key:       SectionNEA,
		Table:     "site_nea",
		KeyColumn: "site_id",
		Columns:   []string{"nea_office", "nea_office_contact", "nea_field_person", "nea_field_contact"},
	},
	{
		Key:       SectionTransmission,
		Table:     "site_transmission",
		KeyColumn: "site_id",
		Columns: []string{
			"transmission_link", "transmission_device", "transmission_l2",
			"transmission_l3", "l3_aggregation", "radio_parent", "microwave_type",
			"microwave_capacity", "microwave_antenna_size",
		},
	},
}

// SiteRoot returns the section spec for the site table itself.
func SiteRoot() SectionSpec {
	return siteRoot
}

// SiteSectionKeys returns the nested section keys of a site in display order.
func SiteSectionKeys() []SectionKey {
	keys := make([]SectionKey, len(siteSections))
	for i, section := range siteSections {
		keys[i] = section.Key
	}
	return keys
}

// LookupSection resolves a section key, including the root key.
func LookupSection(key SectionKey) (SectionSpec, bool) {
	if key == SectionSite {
		return siteRoot, true
	}
	for _, section := range siteSections {
		if section.Key == key {
			return section, true
		}
	}
	return SectionSpec{}, false
}

// ParseSectionKey validates a raw section name against the registry.
func ParseSectionKey(raw string) (SectionKey, error) {
	key := SectionKey(raw)
	if _, ok := LookupSection(key); !ok {
		return "", fmt.Errorf("unknown section %q", raw)
	}
	return key, nil
}

// Label renders a section key for summaries ("site_power" -> "site power").
func (k SectionKey) Label() string {
	out := []byte(k)
	for i, b := range out {
		if b == '_' {
			out[i] = ' '
		}
	}
	return string(out)
}
