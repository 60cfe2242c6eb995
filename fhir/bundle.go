package fhir

import "strings"

// Placeholders used in patient records for missing fields.
const (
	NoName       = "[No Name]"
	NoFamilyName = "[No Family Name]"
	NoBirthDate  = "[No Birth Date]"
)

// Bundle is the subset of the FHIR R4 Bundle resource returned by searches.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	Type         string        `json:"type,omitempty"`
	Total        *int          `json:"total,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

type BundleEntry struct {
	FullURL  string   `json:"fullUrl,omitempty"`
	Resource *Patient `json:"resource,omitempty"`
}

type Patient struct {
	ResourceType string      `json:"resourceType"`
	ID           string      `json:"id,omitempty"`
	Name         []HumanName `json:"name,omitempty"`
	BirthDate    string      `json:"birthDate,omitempty"`
}

type HumanName struct {
	Family string   `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// GivenName returns the given names of the first name, space separated.
func (p *Patient) GivenName() (string, bool) {
	if p == nil || len(p.Name) == 0 {
		return "", false
	}
	given := strings.TrimSpace(strings.Join(p.Name[0].Given, " "))
	return given, given != ""
}

// FamilyName returns the family name of the first name.
func (p *Patient) FamilyName() (string, bool) {
	if p == nil || len(p.Name) == 0 || p.Name[0].Family == "" {
		return "", false
	}
	return p.Name[0].Family, true
}

func (p *Patient) BirthDateValue() (string, bool) {
	if p == nil || p.BirthDate == "" {
		return "", false
	}
	return p.BirthDate, true
}

// Record formats the patient as "<given> <family> / <birth date>".
// Each missing field is replaced by its placeholder on its own.
func Record(p *Patient) string {
	return orElse(p.GivenName)(NoName) + " " +
		orElse(p.FamilyName)(NoFamilyName) + " / " +
		orElse(p.BirthDateValue)(NoBirthDate)
}

// Records formats every patient entry of the bundle, in bundle order.
func (b *Bundle) Records() []string {
	if b == nil {
		return nil
	}
	records := make([]string, 0, len(b.Entry))
	for _, entry := range b.Entry {
		records = append(records, Record(entry.Resource))
	}
	return records
}

func orElse(get func() (string, bool)) func(string) string {
	return func(placeholder string) string {
		if val, ok := get(); ok {
			return val
		}
		return placeholder
	}
}
