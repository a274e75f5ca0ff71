package aggregator

import (
	"stealthcompany.com/adtbridge/internal/adt"
	"stealthcompany.com/adtbridge/internal/location"
)

type departmentEntry struct {
	department location.Record
	hospitalID string
}

// workingSet collects the classified locations of one encounter.
type workingSet struct {
	hospitals     map[string]location.Record
	hospitalOrder []string

	// first write wins; every qualifying entry still gets a stay
	departments       map[string]location.Record
	departmentEntries []departmentEntry

	rooms []location.Record
	beds  []location.Record
}

func newWorkingSet() *workingSet {
	return &workingSet{
		hospitals:   make(map[string]location.Record),
		departments: make(map[string]location.Record),
	}
}

func (ws *workingSet) addHospital(record location.Record) {
	if _, ok := ws.hospitals[record.ID]; ok {
		return
	}
	ws.hospitals[record.ID] = record
	ws.hospitalOrder = append(ws.hospitalOrder, record.ID)
}

func (ws *workingSet) addDepartment(record location.Record, hospitalID string) {
	if existing, ok := ws.departments[record.ID]; ok {
		record = location.Record{
			ID:       existing.ID,
			Name:     existing.Name,
			Status:   existing.Status,
			PartOfID: existing.PartOfID,
			Period:   record.Period,
			Kind:     existing.Kind,
		}
	} else {
		ws.departments[record.ID] = record
	}
	ws.departmentEntries = append(ws.departmentEntries, departmentEntry{department: record, hospitalID: hospitalID})
}

func (ws *workingSet) addRoom(record location.Record) {
	ws.rooms = append(ws.rooms, record)
}

func (ws *workingSet) addBed(record location.Record) {
	ws.beds = append(ws.beds, record)
}

// match links beds to rooms, rooms to departments and departments to
// hospitals, then builds one message per hospital in discovery order.
func (ws *workingSet) match(template adt.HospitalStay, patient adt.Patient) []adt.Message {
	// Bed -> Room
	roomIDs := make(map[string]bool, len(ws.rooms))
	for _, room := range ws.rooms {
		roomIDs[room.ID] = true
	}
	roomBed := make(map[string]string)
	for _, bed := range ws.beds {
		if roomIDs[bed.PartOfID] {
			roomBed[bed.PartOfID] = bed.ID
		}
	}

	// Room -> Department
	departmentRoom := make(map[string]string)
	for _, room := range ws.rooms {
		if _, ok := ws.departments[room.PartOfID]; ok {
			departmentRoom[room.PartOfID] = room.ID
		}
	}

	// Department -> Hospital
	stays := make(map[string]*adt.Message)
	for _, entry := range ws.departmentEntries {
		hospital, ok := ws.hospitals[entry.hospitalID]
		if !ok {
			continue
		}

		message, ok := stays[hospital.ID]
		if !ok {
			stay := template
			stay.Hospital = adt.Reference{ID: hospital.ID}
			message = &adt.Message{
				Hospital:        adt.Reference{ID: hospital.ID},
				Patient:         patient,
				HospitalStay:    stay,
				DepartmentStays: []adt.DepartmentStay{},
			}
			stays[hospital.ID] = message
		}

		message.DepartmentStays = append(message.DepartmentStays, departmentStay(message.HospitalStay.ID, hospital.ID, entry.department, departmentRoom, roomBed))
	}

	messages := make([]adt.Message, 0, len(stays))
	for _, hospitalID := range ws.hospitalOrder {
		if message, ok := stays[hospitalID]; ok {
			messages = append(messages, *message)
		}
	}
	return messages
}

func departmentStay(stayID, hospitalID string, department location.Record, departmentRoom, roomBed map[string]string) adt.DepartmentStay {
	stay := adt.DepartmentStay{
		ID:           adt.DepartmentStayID(stayID, department.ID),
		HospitalStay: adt.Reference{ID: stayID},
		Location: adt.StayLocation{
			Hospital:   adt.Reference{ID: hospitalID},
			Venue:      adt.Reference{ID: hospitalID},
			Department: adt.Reference{ID: department.ID},
		},
	}

	if department.Period != nil {
		stay.StartsAt = adt.NullString(department.Period.Start)
	}

	if roomID, ok := departmentRoom[department.ID]; ok {
		stay.Location.Room = &adt.Reference{ID: roomID}
		if bedID, ok := roomBed[roomID]; ok {
			stay.Location.Bed = &adt.Reference{ID: bedID}
		}
	}

	return stay
}
