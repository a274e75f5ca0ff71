// Package location classifies raw FHIR locations into the
// hospital / department / room / bed hierarchy.
package location

import (
	"stealthcompany.com/adtbridge/internal/fhir"
)

// Kind is the role a location plays in the hierarchy.
type Kind int

const (
	Unclassified Kind = iota
	Hospital
	Department
	Room
	Bed
)

// Physical type codes carried on Encounter.location entries.
const (
	RoomCode = "ro"
	BedCode  = "bd"
)

func (k Kind) String() string {
	switch k {
	case Hospital:
		return "hospital"
	case Department:
		return "department"
	case Room:
		return "room"
	case Bed:
		return "bed"
	default:
		return "unclassified"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Period is the validity period of an encounter-location entry.
type Period struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

// Record is a classified location. It is never mutated after New.
type Record struct {
	ID       string  `json:"id"`
	Name     string  `json:"name,omitempty"`
	Status   string  `json:"status,omitempty"`
	PartOfID string  `json:"part_of_id,omitempty"`
	Period   *Period `json:"period,omitempty"`
	Kind     Kind    `json:"kind"`
}

// Classify labels a location. Structural predicates are evaluated
// independently and folded with precedence Hospital > Department > Room > Bed.
func Classify(res fhir.Location, entry fhir.EncounterLocation) Kind {
	switch {
	case IsHospital(res):
		return Hospital
	case IsDepartment(res):
		return Department
	case IsRoom(entry):
		return Room
	case IsBed(entry):
		return Bed
	default:
		return Unclassified
	}
}

// IsHospital reports whether the location carries a TAX identifier.
func IsHospital(res fhir.Location) bool {
	return res.HasTaxIdentifier()
}

// IsDepartment reports whether the location is managed by an
// organization and part of a larger location. Presence is enough: the
// references may be given by display or identifier only.
func IsDepartment(res fhir.Location) bool {
	return res.HasManagingOrganization() && res.HasPartOf()
}

// IsRoom looks at the encounter-location entry, not the resource.
func IsRoom(entry fhir.EncounterLocation) bool {
	return entry.PhysicalTypeCode() == RoomCode
}

// IsBed looks at the encounter-location entry, not the resource.
func IsBed(entry fhir.EncounterLocation) bool {
	return entry.PhysicalTypeCode() == BedCode
}

// New classifies res against entry and builds its Record.
func New(res fhir.Location, entry fhir.EncounterLocation) Record {
	record := Record{
		ID:     res.ID,
		Name:   res.Name,
		Status: res.Status,
		Kind:   Classify(res, entry),
	}

	if partOf, ok := fhir.ResolveReference(res.PartOfReference()); ok {
		record.PartOfID = partOf
	}

	if entry.HasPeriod() {
		record.Period = &Period{Start: entry.PeriodStart()}
		if entry.Period.End != nil {
			record.Period.End = *entry.Period.End
		}
	}

	// Beds are identified by the entry, not the resource
	if record.Kind == Bed {
		if id := entry.IdentifierValue(); id != "" {
			record.ID = id
		}
	}

	return record
}

// FromEntry builds a Record for an entry that carries no resolvable
// reference, only an inline identifier. ok is false when there is none.
func FromEntry(entry fhir.EncounterLocation) (Record, bool) {
	id := entry.IdentifierValue()
	if id == "" {
		return Record{}, false
	}

	return New(fhir.Location{ID: id, Name: entry.Display()}, entry), true
}
