// Package workflow defines the patient visit pipeline and which role may
// advance a patient from each stage.
//
//	registered -> awaiting_doctor -> awaiting_medication -> completed
//
// Every transition is triggered by exactly one role and moves a patient
// exactly one stage forward.
package workflow

import (
	"fmt"

	"medflow-web/internal/models"
)

// pipeline is the only valid order of statuses.
var pipeline = []models.PatientStatus{
	models.StatusRegistered,
	models.StatusAwaitingDoctor,
	models.StatusAwaitingMedication,
	models.StatusCompleted,
}

// Transition is a role-triggered move from one status to the next.
type Transition struct {
	From models.PatientStatus
	To   models.PatientStatus
	Role models.Role
	// Action names the transition in logs and messages.
	Action string
}

var transitions = map[models.Role]Transition{
	models.RoleNurse: {
		From:   models.StatusRegistered,
		To:     models.StatusAwaitingDoctor,
		Role:   models.RoleNurse,
		Action: "assessment",
	},
	models.RoleDoctor: {
		From:   models.StatusAwaitingDoctor,
		To:     models.StatusAwaitingMedication,
		Role:   models.RoleDoctor,
		Action: "consultation",
	},
	models.RolePharmacist: {
		From:   models.StatusAwaitingMedication,
		To:     models.StatusCompleted,
		Role:   models.RolePharmacist,
		Action: "dispense",
	},
}

// InvalidStateTransition is returned when a patient is not in the status a
// transition requires.
type InvalidStateTransition struct {
	PatientID string
	Role      models.Role
	From      models.PatientStatus
	To        models.PatientStatus
}

func (e *InvalidStateTransition) Error() string {
	if e.Role != "" {
		return fmt.Sprintf("invalid transition for patient %s: %s cannot move a patient from %q to %q",
			e.PatientID, e.Role, e.From, e.To)
	}
	return fmt.Sprintf("invalid transition for patient %s: %q to %q", e.PatientID, e.From, e.To)
}

// Statuses returns the pipeline in order.
func Statuses() []models.PatientStatus {
	out := make([]models.PatientStatus, len(pipeline))
	copy(out, pipeline)
	return out
}

// ParseStatus validates s as a pipeline status.
func ParseStatus(s string) (models.PatientStatus, error) {
	status := models.PatientStatus(s)
	if Rank(status) < 0 {
		return "", fmt.Errorf("unknown patient status %q", s)
	}
	return status, nil
}

// Rank returns the position of status in the pipeline, or -1.
func Rank(status models.PatientStatus) int {
	for i, s := range pipeline {
		if s == status {
			return i
		}
	}
	return -1
}

// Valid reports whether status is a pipeline status.
func Valid(status models.PatientStatus) bool {
	return Rank(status) >= 0
}

// IsTerminal reports whether no further transition exists from status.
func IsTerminal(status models.PatientStatus) bool {
	return status == models.StatusCompleted
}

// Next returns the status that follows status.
func Next(status models.PatientStatus) (models.PatientStatus, bool) {
	r := Rank(status)
	if r < 0 || r == len(pipeline)-1 {
		return "", false
	}
	return pipeline[r+1], true
}

// TransitionFor returns the transition a role may trigger. Registrars and
// admins trigger none.
func TransitionFor(role models.Role) (Transition, bool) {
	t, ok := transitions[role]
	return t, ok
}

// SourceStatus returns the status a role's queue lists. ok is false for roles
// that see every patient.
func SourceStatus(role models.Role) (status models.PatientStatus, ok bool) {
	t, ok := transitions[role]
	if !ok {
		return "", false
	}
	return t.From, true
}

// Guard fails with InvalidStateTransition unless role may act on the patient
// in its current status.
func Guard(role models.Role, patient *models.Patient) error {
	t, ok := transitions[role]
	if !ok {
		return &InvalidStateTransition{PatientID: patient.ID, Role: role, From: patient.Status}
	}
	if patient.Status != t.From {
		return &InvalidStateTransition{PatientID: patient.ID, Role: role, From: patient.Status, To: t.To}
	}
	return nil
}

// CheckAdvance fails unless to is exactly one stage after from.
func CheckAdvance(from, to models.PatientStatus) error {
	next, ok := Next(from)
	if !ok || next != to {
		return &InvalidStateTransition{From: from, To: to}
	}
	return nil
}

// Regressed reports whether moving from -> to would go backwards.
func Regressed(from, to models.PatientStatus) bool {
	return Valid(from) && Valid(to) && Rank(to) < Rank(from)
}
