// Package views holds the role-scoped screens: each keeps a local list of
// the patients its role works on and submits that role's single workflow
// transition.
package views

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"medflow-web/internal/apiclient"
	"medflow-web/internal/models"
	"medflow-web/internal/utils"
	"medflow-web/internal/workflow"
)

// DefaultDiagnosis is recorded when a doctor leaves the diagnosis blank.
const DefaultDiagnosis = "No diagnosis provided"

// ErrStaleRefresh is returned when a refresh finished after a newer refresh
// or a local change; its result was discarded.
var ErrStaleRefresh = errors.New("refresh result superseded")

// View is one role's screen.
type View struct {
	role      models.Role
	api       *apiclient.Client
	sess      apiclient.Session
	list      *PatientList
	validator *utils.Validator
	logger    zerolog.Logger
	now       func() time.Time
}

// Role returns the role the view serves.
func (v *View) Role() models.Role {
	return v.role
}

// List exposes the view's local patient list.
func (v *View) List() *PatientList {
	return v.list
}

// Refresh fetches the patients relevant to the view's role and replaces the
// local list: the role's source status for nurse, doctor and pharmacist, and
// every patient for registrar and admin.
func (v *View) Refresh(ctx context.Context) ([]models.Patient, error) {
	if v.list.Closed() {
		return nil, utils.ErrSessionClosed
	}
	status, _ := workflow.SourceStatus(v.role)

	gen := v.list.beginRefresh()
	patients, err := v.api.ListPatients(ctx, v.sess, status)
	if err != nil {
		return nil, fmt.Errorf("list patients for %s: %w", v.role, err)
	}

	// Defend against a server that ignores the status filter.
	if status != "" {
		kept := patients[:0]
		for _, p := range patients {
			if p.Status == status {
				kept = append(kept, p)
			}
		}
		patients = kept
	}

	if !v.list.commit(gen, patients, v.now()) {
		if v.list.Closed() {
			return nil, utils.ErrSessionClosed
		}
		return nil, ErrStaleRefresh
	}
	return v.list.Snapshot(), nil
}

// Patients returns the cached list narrowed by f.
func (v *View) Patients(f Filter) []models.Patient {
	return f.Apply(v.list.Snapshot(), v.now())
}

// SubmitTransition validates payload, checks the patient is still in the
// view's source status, issues the role's transition and, on success, drops
// the patient from the local list.
//
// payload must be the role's form: models.NurseAssessment,
// models.DoctorConsultation or models.Dispense.
func (v *View) SubmitTransition(ctx context.Context, patientID string, payload interface{}) (*models.Patient, error) {
	tr, ok := workflow.TransitionFor(v.role)
	if !ok {
		return nil, &workflow.InvalidStateTransition{PatientID: patientID, Role: v.role}
	}

	call, err := v.prepare(payload)
	if err != nil {
		return nil, err
	}

	current, ok := v.list.Find(patientID)
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", tr.Action, patientID, utils.ErrPatientNotQueued)
	}
	if err := workflow.Guard(v.role, &current); err != nil {
		return nil, err
	}
	if v.role == models.RolePharmacist && !current.HasTreatment() {
		return nil, utils.NewValidationError("drugs", "No treatment prescribed by doctor")
	}

	if !v.list.claim(patientID) {
		return nil, utils.ErrSubmissionInProgress
	}
	defer v.list.release(patientID)

	updated, err := call(ctx, patientID)
	if err != nil {
		v.logger.Warn().Err(err).Str("patient_id", patientID).Str("action", tr.Action).Msg("transition failed")
		return nil, err
	}

	// Some server versions record the notes without moving the status.
	if updated.Status == tr.From {
		updated, err = v.api.UpdateStatus(ctx, v.sess, patientID, tr.To)
		if err != nil {
			return nil, err
		}
	}
	if updated.ID == "" {
		updated.ID = patientID
	}

	// The patient stays queued locally until the server confirms the move.
	if err := workflow.CheckAdvance(tr.From, updated.Status); err != nil {
		evt := v.logger.Warn()
		if workflow.Regressed(tr.From, updated.Status) {
			evt = v.logger.Error()
		}
		evt.Str("patient_id", patientID).Str("status", string(updated.Status)).Msg("unexpected status after transition")
		return nil, &utils.ServerError{Message: fmt.Sprintf("server reported status %q after %s", updated.Status, tr.Action)}
	}
	v.list.Remove(patientID)

	v.logger.Info().
		Str("patient_id", patientID).
		Str("action", tr.Action).
		Str("status", string(updated.Status)).
		Msg("transition submitted")
	return updated, nil
}

type transitionCall func(ctx context.Context, patientID string) (*models.Patient, error)

// prepare validates payload for the view's role and returns the API call
// that submits it.
func (v *View) prepare(payload interface{}) (transitionCall, error) {
	switch p := payload.(type) {
	case models.NurseAssessment:
		if v.role != models.RoleNurse {
			break
		}
		if err := v.validator.Struct(p); err != nil {
			return nil, err
		}
		notes := strings.TrimSpace(p.Notes)
		return func(ctx context.Context, id string) (*models.Patient, error) {
			return v.api.UpdateNurseNotes(ctx, v.sess, id, notes)
		}, nil

	case models.DoctorConsultation:
		if v.role != models.RoleDoctor {
			break
		}
		if err := v.validator.Struct(p); err != nil {
			return nil, err
		}
		note := models.DoctorNote{
			Diagnosis:    strings.TrimSpace(p.Diagnosis),
			Instructions: strings.TrimSpace(p.Instructions),
		}
		if note.Diagnosis == "" {
			note.Diagnosis = DefaultDiagnosis
		}
		return func(ctx context.Context, id string) (*models.Patient, error) {
			return v.api.UpdateDoctorNote(ctx, v.sess, id, note)
		}, nil

	case models.Dispense:
		if v.role != models.RolePharmacist {
			break
		}
		if err := v.validator.Struct(p); err != nil {
			return nil, err
		}
		med := models.Medication{
			Drugs:    trimAll(p.Drugs),
			Dosage:   strings.TrimSpace(p.Dosage),
			Duration: strings.TrimSpace(p.Duration),
		}
		return func(ctx context.Context, id string) (*models.Patient, error) {
			return v.api.UpdateMedication(ctx, v.sess, id, med)
		}, nil
	}
	return nil, utils.NewValidationError("payload", fmt.Sprintf("%s cannot submit %T", v.role, payload))
}

// Register creates a patient from the registrar's form and appends it to the
// local list.
func (v *View) Register(ctx context.Context, req models.RegisterPatientRequest) (*models.Patient, error) {
	if v.role != models.RoleRegistrar {
		return nil, utils.NewValidationError("payload", fmt.Sprintf("%s cannot register patients", v.role))
	}
	req = req.Trimmed()
	if err := v.validator.Struct(req); err != nil {
		return nil, err
	}

	p, err := v.api.RegisterPatient(ctx, v.sess, req)
	if err != nil {
		v.logger.Warn().Err(err).Msg("registration failed")
		return nil, err
	}
	if p.Status == "" {
		p.Status = models.StatusRegistered
	}
	if p.Status != models.StatusRegistered {
		return nil, &utils.ServerError{Message: fmt.Sprintf("new patient reported status %q", p.Status)}
	}

	v.list.Append(*p)
	v.logger.Info().Str("patient_id", p.ID).Msg("patient registered")
	return p, nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
