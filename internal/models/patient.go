package models

import (
	"encoding/json"
	"strings"
	"time"
)

// PatientStatus represents where a patient sits in the visit pipeline
type PatientStatus string

const (
	StatusRegistered         PatientStatus = "registered"
	StatusAwaitingDoctor     PatientStatus = "awaiting_doctor"
	StatusAwaitingMedication PatientStatus = "awaiting_medication"
	StatusCompleted          PatientStatus = "completed"
)

// DateLayout is the calendar date format used for dates of birth.
const DateLayout = "2006-01-02"

// DoctorNote is the doctor's consultation outcome
type DoctorNote struct {
	Diagnosis    string `json:"diagnosis"`
	Instructions string `json:"instructions"`
}

// UnmarshalJSON accepts "treatment" as an alias for "instructions".
func (d *DoctorNote) UnmarshalJSON(data []byte) error {
	var wire struct {
		Diagnosis    string `json:"diagnosis"`
		Instructions string `json:"instructions"`
		Treatment    string `json:"treatment"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	d.Diagnosis = wire.Diagnosis
	d.Instructions = wire.Instructions
	if d.Instructions == "" {
		d.Instructions = wire.Treatment
	}
	return nil
}

// Medication is what the pharmacist dispensed
type Medication struct {
	Drugs    []string `json:"drugs"`
	Dosage   string   `json:"dosage"`
	Duration string   `json:"duration"`
}

// HandledBy records which staff member performed each step
type HandledBy struct {
	Nurse      string `json:"nurse,omitempty"`
	Doctor     string `json:"doctor,omitempty"`
	Pharmacist string `json:"pharmacist,omitempty"`
}

// Patient is the front-end's cached copy of a server-owned patient record.
// ID is normalized once when the record is decoded from the API.
type Patient struct {
	ID          string        `json:"id"`
	FirstName   string        `json:"firstName"`
	LastName    string        `json:"lastName"`
	DateOfBirth string        `json:"dateOfBirth"`
	PhoneNumber string        `json:"phoneNumber,omitempty"`
	Address     string        `json:"address,omitempty"`
	Status      PatientStatus `json:"status"`
	NurseNotes  string        `json:"nurseNotes,omitempty"`
	DoctorNote  *DoctorNote   `json:"doctorNote,omitempty"`
	Medication  *Medication   `json:"medication,omitempty"`
	HandledBy   *HandledBy    `json:"handledBy,omitempty"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// patientWire mirrors the upstream JSON, which has used both _id and id and
// both doctorNote and doctorNotes over time.
type patientWire struct {
	MongoID     string        `json:"_id"`
	ID          string        `json:"id"`
	FirstName   string        `json:"firstName"`
	LastName    string        `json:"lastName"`
	DateOfBirth string        `json:"dateOfBirth"`
	PhoneNumber string        `json:"phoneNumber"`
	Address     string        `json:"address"`
	Status      PatientStatus `json:"status"`
	NurseNotes  string        `json:"nurseNotes"`
	DoctorNote  *DoctorNote   `json:"doctorNote"`
	DoctorNotes *DoctorNote   `json:"doctorNotes"`
	Medication  *Medication   `json:"medication"`
	HandledBy   *HandledBy    `json:"handledBy"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// UnmarshalJSON normalizes the identifier and doctor note aliases.
func (p *Patient) UnmarshalJSON(data []byte) error {
	var w patientWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	id := w.MongoID
	if id == "" {
		id = w.ID
	}
	note := w.DoctorNote
	if note == nil {
		note = w.DoctorNotes
	}

	*p = Patient{
		ID:          id,
		FirstName:   w.FirstName,
		LastName:    w.LastName,
		DateOfBirth: w.DateOfBirth,
		PhoneNumber: w.PhoneNumber,
		Address:     w.Address,
		Status:      w.Status,
		NurseNotes:  w.NurseNotes,
		DoctorNote:  note,
		Medication:  w.Medication,
		HandledBy:   w.HandledBy,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
	return nil
}

// FullName returns "First Last".
func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// BirthDate parses DateOfBirth. Full timestamps are accepted because some
// server versions serialize dates that way.
func (p *Patient) BirthDate() (time.Time, error) {
	return ParseBirthDate(p.DateOfBirth)
}

// Age returns the patient's age in whole years at now, or -1 when the date of
// birth cannot be parsed.
func (p *Patient) Age(now time.Time) int {
	dob, err := p.BirthDate()
	if err != nil {
		return -1
	}
	return AgeAt(dob, now)
}

// HasTreatment reports whether a doctor has left instructions for the patient.
func (p *Patient) HasTreatment() bool {
	return p.DoctorNote != nil && strings.TrimSpace(p.DoctorNote.Instructions) != ""
}

// ParseBirthDate parses a YYYY-MM-DD date or an RFC 3339 timestamp.
func ParseBirthDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// AgeAt returns whole years elapsed between dob and now. It is negative when
// dob lies in the future.
func AgeAt(dob, now time.Time) int {
	age := now.Year() - dob.Year()
	if now.Month() < dob.Month() || (now.Month() == dob.Month() && now.Day() < dob.Day()) {
		age--
	}
	return age
}

// RegisterPatientRequest is the registrar's intake form.
type RegisterPatientRequest struct {
	FirstName   string `json:"firstName" form:"firstName" validate:"notblank"`
	LastName    string `json:"lastName" form:"lastName" validate:"notblank"`
	DateOfBirth string `json:"dateOfBirth" form:"dateOfBirth" validate:"required,birthdate"`
	PhoneNumber string `json:"phoneNumber" form:"phoneNumber" validate:"notblank"`
	Address     string `json:"address" form:"address" validate:"notblank"`
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (r RegisterPatientRequest) Trimmed() RegisterPatientRequest {
	return RegisterPatientRequest{
		FirstName:   strings.TrimSpace(r.FirstName),
		LastName:    strings.TrimSpace(r.LastName),
		DateOfBirth: strings.TrimSpace(r.DateOfBirth),
		PhoneNumber: strings.TrimSpace(r.PhoneNumber),
		Address:     strings.TrimSpace(r.Address),
	}
}

// NurseAssessment is the nurse's vitals/assessment form.
type NurseAssessment struct {
	Notes string `json:"notes" form:"notes" validate:"notblank"`
}

// DoctorConsultation is the doctor's consultation form. Diagnosis is optional.
type DoctorConsultation struct {
	Diagnosis    string `json:"diagnosis" form:"diagnosis"`
	Instructions string `json:"instructions" form:"instructions" validate:"notblank"`
}

// Dispense is the pharmacist's dispensing form.
type Dispense struct {
	Drugs    []string `json:"drugs" form:"drugs" validate:"min=1,dive,notblank"`
	Dosage   string   `json:"dosage" form:"dosage" validate:"notblank"`
	Duration string   `json:"duration" form:"duration" validate:"notblank"`
}

// StatusUpdate is the body of PATCH /patients/{id}/status.
type StatusUpdate struct {
	Status PatientStatus `json:"status"`
}
