package fhir

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/zorgbijjou/golang-fhir-models/fhir-models/caramel/to"
	"github.com/zorgbijjou/golang-fhir-models/fhir-models/fhir"
)

// Bundle represents a FHIR searchset bundle response
type Bundle struct {
	ResourceType string `json:"resourceType"`
	Type         string `json:"type"`
	Total        *int   `json:"total,omitempty"`
	Entry        []struct {
		Resource json.RawMessage `json:"resource"`
	} `json:"entry"`
}

// Identifier, HumanName and Reference mirror the library datatypes with
// coded fields such as use kept as plain strings: the library rejects
// codes it does not know, and Epic sends local ones.

// Identifier is a FHIR Identifier.
type Identifier struct {
	Use    string                `json:"use,omitempty"`
	Type   *fhir.CodeableConcept `json:"type,omitempty"`
	System *string               `json:"system,omitempty"`
	Value  *string               `json:"value,omitempty"`
}

// HumanName is a FHIR HumanName.
type HumanName struct {
	Use    string   `json:"use,omitempty"`
	Text   *string  `json:"text,omitempty"`
	Family *string  `json:"family,omitempty"`
	Given  []string `json:"given,omitempty"`
}

// Reference is a FHIR Reference.
type Reference struct {
	Reference  *string     `json:"reference,omitempty"`
	Type       *string     `json:"type,omitempty"`
	Identifier *Identifier `json:"identifier,omitempty"`
	Display    *string     `json:"display,omitempty"`
}

// Location is the part of a FHIR Location resource the bridge reads.
// Status is kept as a plain string so unknown codes never fail parsing.
type Location struct {
	ID                   string       `json:"id"`
	Name                 string       `json:"name,omitempty"`
	Status               string       `json:"status,omitempty"`
	Identifier           []Identifier `json:"identifier,omitempty"`
	ManagingOrganization *Reference   `json:"managingOrganization,omitempty"`
	PartOf               *Reference   `json:"partOf,omitempty"`
}

// Patient is the part of a FHIR Patient resource the bridge reads.
type Patient struct {
	ID         string       `json:"id"`
	Meta       *fhir.Meta   `json:"meta,omitempty"`
	Active     *bool        `json:"active,omitempty"`
	Name       []HumanName  `json:"name,omitempty"`
	Gender     string       `json:"gender,omitempty"`
	BirthDate  string       `json:"birthDate,omitempty"`
	Identifier []Identifier `json:"identifier,omitempty"`
}

// EncounterLocation is one entry of Encounter.location.
type EncounterLocation struct {
	Location     Reference             `json:"location"`
	Status       string                `json:"status,omitempty"`
	PhysicalType *fhir.CodeableConcept `json:"physicalType,omitempty"`
	Period       *fhir.Period          `json:"period,omitempty"`
	Identifier   *Identifier           `json:"identifier,omitempty"`
}

// Hospitalization holds the admission details of an encounter.
// Its presence alone marks the encounter as a hospital stay.
type Hospitalization struct {
	AdmitSource          *fhir.CodeableConcept `json:"admitSource,omitempty"`
	DischargeDisposition *fhir.CodeableConcept `json:"dischargeDisposition,omitempty"`
}

// Encounter is the part of a FHIR Encounter resource the bridge reads.
type Encounter struct {
	ID              string              `json:"id"`
	Meta            *fhir.Meta          `json:"meta,omitempty"`
	Status          string              `json:"status,omitempty"`
	Class           *fhir.Coding        `json:"class,omitempty"`
	Subject         *Reference          `json:"subject,omitempty"`
	Period          *fhir.Period        `json:"period,omitempty"`
	Hospitalization *Hospitalization    `json:"hospitalization,omitempty"`
	Location        []EncounterLocation `json:"location,omitempty"`
}

// ParseEncounter decodes a raw FHIR Encounter.
func ParseEncounter(data []byte) (Encounter, error) {
	var encounter Encounter
	if err := json.Unmarshal(data, &encounter); err != nil {
		return Encounter{}, fmt.Errorf("failed to parse encounter: %w", err)
	}
	return encounter, nil
}

// ParseLocation decodes a raw FHIR Location.
func ParseLocation(data []byte) (Location, error) {
	var location Location
	if err := json.Unmarshal(data, &location); err != nil {
		return Location{}, fmt.Errorf("failed to parse location: %w", err)
	}
	return location, nil
}

// ParsePatient decodes a raw FHIR Patient.
func ParsePatient(data []byte) (Patient, error) {
	var patient Patient
	if err := json.Unmarshal(data, &patient); err != nil {
		return Patient{}, fmt.Errorf("failed to parse patient: %w", err)
	}
	return patient, nil
}

// SubjectReference returns the raw subject reference, or "" when absent.
func (e Encounter) SubjectReference() string {
	if e.Subject == nil {
		return ""
	}
	return to.Value(e.Subject.Reference)
}

// ClassDisplay returns class.display, or "" when absent.
func (e Encounter) ClassDisplay() string {
	if e.Class == nil {
		return ""
	}
	return to.Value(e.Class.Display)
}

// PeriodStart returns period.start, or "" when absent.
func (e Encounter) PeriodStart() string {
	return periodStart(e.Period)
}

// PeriodEnd returns period.end, or "" when absent.
func (e Encounter) PeriodEnd() string {
	if e.Period == nil {
		return ""
	}
	return to.Value(e.Period.End)
}

// DischargeDisposition returns hospitalization.dischargeDisposition.text.
func (e Encounter) DischargeDisposition() string {
	if e.Hospitalization == nil || e.Hospitalization.DischargeDisposition == nil {
		return ""
	}
	return to.Value(e.Hospitalization.DischargeDisposition.Text)
}

// AdmitSource returns hospitalization.admitSource.text.
func (e Encounter) AdmitSource() string {
	if e.Hospitalization == nil || e.Hospitalization.AdmitSource == nil {
		return ""
	}
	return to.Value(e.Hospitalization.AdmitSource.Text)
}

// Reference returns location.reference, or "" when absent.
func (l EncounterLocation) Reference() string {
	return to.Value(l.Location.Reference)
}

// PhysicalTypeCode returns physicalType.coding[0].code, or "".
func (l EncounterLocation) PhysicalTypeCode() string {
	if l.PhysicalType == nil || len(l.PhysicalType.Coding) == 0 {
		return ""
	}
	return to.Value(l.PhysicalType.Coding[0].Code)
}

// IdentifierValue returns the identifier carried by the entry itself,
// falling back to the identifier embedded in the location reference.
func (l EncounterLocation) IdentifierValue() string {
	if l.Identifier != nil {
		if value := strings.TrimSpace(to.Value(l.Identifier.Value)); value != "" {
			return value
		}
	}
	if l.Location.Identifier != nil {
		return strings.TrimSpace(to.Value(l.Location.Identifier.Value))
	}
	return ""
}

// PeriodStart returns period.start, or "" when absent.
func (l EncounterLocation) PeriodStart() string {
	return periodStart(l.Period)
}

// HasPeriod reports whether the entry carries a period object at all.
func (l EncounterLocation) HasPeriod() bool {
	return l.Period != nil
}

// Display returns location.display, or "" when absent.
func (l EncounterLocation) Display() string {
	return to.Value(l.Location.Display)
}

// HasManagingOrganization reports whether managingOrganization is present,
// whatever form the reference takes.
func (l Location) HasManagingOrganization() bool {
	return l.ManagingOrganization != nil
}

// HasPartOf reports whether partOf is present.
func (l Location) HasPartOf() bool {
	return l.PartOf != nil
}

// PartOfReference returns partOf.reference, or "" when absent.
func (l Location) PartOfReference() string {
	if l.PartOf == nil {
		return ""
	}
	return to.Value(l.PartOf.Reference)
}

// HasTaxIdentifier reports whether any identifier is typed "TAX" and
// carries a non-blank value.
func (l Location) HasTaxIdentifier() bool {
	for _, identifier := range l.Identifier {
		if strings.TrimSpace(to.Value(identifier.Value)) == "" || identifier.Type == nil {
			continue
		}
		for _, coding := range identifier.Type.Coding {
			if to.Value(coding.Code) == "TAX" {
				return true
			}
		}
	}
	return false
}

// VersionID returns meta.versionId, or "" when absent.
func (p Patient) VersionID() string {
	if p.Meta == nil {
		return ""
	}
	return to.Value(p.Meta.VersionId)
}

// FirstName returns name[0].given[0], or "".
func (p Patient) FirstName() string {
	if len(p.Name) == 0 || len(p.Name[0].Given) == 0 {
		return ""
	}
	return p.Name[0].Given[0]
}

// LastName returns name[0].family, or "".
func (p Patient) LastName() string {
	if len(p.Name) == 0 {
		return ""
	}
	return to.Value(p.Name[0].Family)
}

// IdentifierValues returns identifier values, skipping those issued under
// any of the excluded systems.
func (p Patient) IdentifierValues(excludedSystems ...string) []string {
	values := make([]string, 0, len(p.Identifier))
	for _, identifier := range p.Identifier {
		value := to.Value(identifier.Value)
		if value == "" || slices.Contains(excludedSystems, to.Value(identifier.System)) {
			continue
		}
		values = append(values, value)
	}
	return values
}

func periodStart(period *fhir.Period) string {
	if period == nil {
		return ""
	}
	return to.Value(period.Start)
}
