package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medflow-web/internal/apiclient"
	"medflow-web/internal/config"
	"medflow-web/internal/middleware"
	"medflow-web/internal/models"
	"medflow-web/internal/session"
	"medflow-web/internal/utils"
	"medflow-web/internal/views"
	"medflow-web/internal/workflow"
)

// ScreenHandler serves the role screens and their form submissions.
type ScreenHandler struct {
	API    *apiclient.Client
	Cfg    *config.Config
	Logger zerolog.Logger
	Now    func() time.Time
}

// NewScreenHandler creates a new ScreenHandler.
func NewScreenHandler(api *apiclient.Client, cfg *config.Config, logger zerolog.Logger) *ScreenHandler {
	return &ScreenHandler{API: api, Cfg: cfg, Logger: logger, Now: time.Now}
}

// PatientRow is a patient as shown in a list, with derived columns.
type PatientRow struct {
	models.Patient
	Name string `json:"fullName"`
	Age  *int   `json:"age,omitempty"`
}

// Screen is the view model of a role screen.
type Screen struct {
	Role      models.Role   `json:"role"`
	Username  string        `json:"username,omitempty"`
	Action    string        `json:"action,omitempty"`
	Patients  []PatientRow  `json:"patients"`
	FetchedAt time.Time     `json:"fetchedAt"`
	Stale     bool          `json:"stale,omitempty"`
	Stats     *views.Stats  `json:"stats,omitempty"`
	Filter    ScreenFilters `json:"filter"`
}

// ScreenFilters echoes the filters applied to a screen.
type ScreenFilters struct {
	Query  string               `json:"q,omitempty"`
	Status models.PatientStatus `json:"status,omitempty"`
	Since  views.Window         `json:"since,omitempty"`
}

// view returns the session's view for role, creating its workspace on
// first use.
func (h *ScreenHandler) view(c *gin.Context, role models.Role) (*views.View, *session.Context, bool) {
	sc, ok := middleware.GetSessionFromContext(c)
	if !ok {
		RespondError(c, h.Cfg, utils.ErrSessionClosed)
		return nil, nil, false
	}

	closer := sc.Workspace(func(sc *session.Context) session.Closer {
		return views.NewWorkspace(h.API, sc, sc.Role(), h.Logger, views.WithClock(h.Now))
	})
	ws, ok := closer.(*views.Workspace)
	if !ok {
		RespondError(c, h.Cfg, utils.ErrSessionClosed)
		return nil, nil, false
	}

	v, err := ws.View(role)
	if errors.Is(err, utils.ErrSessionClosed) {
		RespondError(c, h.Cfg, err)
		return nil, nil, false
	}
	if err != nil {
		c.Redirect(http.StatusFound, middleware.LoginPath)
		c.Abort()
		return nil, nil, false
	}
	return v, sc, true
}

// List serves the patient list screen for role. The list is fetched again
// unless refresh=false is given and a cached copy exists.
func (h *ScreenHandler) List(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		since := ""
		if role == models.RoleAdmin {
			since = c.Query("since")
		}
		filter, err := views.ParseFilter(c.Query("q"), c.Query("status"), since)
		if err != nil {
			utils.BadRequest(c, err.Error())
			return
		}

		v, sc, ok := h.view(c, role)
		if !ok {
			return
		}

		stale := false
		if c.Query("refresh") != "false" || !v.List().Loaded() {
			if _, err := v.Refresh(c.Request.Context()); err != nil {
				if !errors.Is(err, views.ErrStaleRefresh) {
					RespondError(c, h.Cfg, err)
					return
				}
				// A newer refresh or local change won; serve what is cached.
				stale = true
			}
		}

		screen := Screen{
			Role:      role,
			Username:  sc.Username(),
			Patients:  h.rows(v.Patients(filter)),
			FetchedAt: v.List().FetchedAt(),
			Stale:     stale,
			Filter:    ScreenFilters{Query: filter.Query, Status: filter.Status, Since: filter.Since},
		}
		if t, ok := workflow.TransitionFor(role); ok {
			screen.Action = t.Action
		}
		if role == models.RoleAdmin {
			stats := views.ComputeStats(v.List().Snapshot())
			screen.Stats = &stats
		}
		utils.Success(c, "Patients fetched successfully", screen)
	}
}

func (h *ScreenHandler) rows(patients []models.Patient) []PatientRow {
	now := h.Now()
	out := make([]PatientRow, 0, len(patients))
	for i := range patients {
		row := PatientRow{Patient: patients[i], Name: patients[i].FullName()}
		if age := patients[i].Age(now); age >= 0 {
			row.Age = &age
		}
		out = append(out, row)
	}
	return out
}

// Register creates a patient from the registration form.
func (h *ScreenHandler) Register(c *gin.Context) {
	var req models.RegisterPatientRequest
	if err := c.ShouldBind(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	v, _, ok := h.view(c, models.RoleRegistrar)
	if !ok {
		return
	}
	p, err := v.Register(c.Request.Context(), req)
	if err != nil {
		RespondError(c, h.Cfg, err)
		return
	}
	utils.Created(c, "Patient registered successfully", h.rows([]models.Patient{*p})[0])
}

// Assessment records the nurse's assessment and sends the patient to the doctor.
func (h *ScreenHandler) Assessment(c *gin.Context) {
	var form models.NurseAssessment
	if err := c.ShouldBind(&form); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	h.submit(c, models.RoleNurse, form, "Assessment submitted successfully")
}

// Consultation records the doctor's note and sends the patient to the pharmacy.
func (h *ScreenHandler) Consultation(c *gin.Context) {
	var form models.DoctorConsultation
	if err := c.ShouldBind(&form); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	h.submit(c, models.RoleDoctor, form, "Consultation submitted successfully")
}

// Dispense records the medication given and completes the visit.
func (h *ScreenHandler) Dispense(c *gin.Context) {
	var form models.Dispense
	if err := c.ShouldBind(&form); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}
	h.submit(c, models.RolePharmacist, form, "Medication dispensed successfully")
}

func (h *ScreenHandler) submit(c *gin.Context, role models.Role, payload interface{}, message string) {
	v, _, ok := h.view(c, role)
	if !ok {
		return
	}
	// A session resumed from the store has no cached list yet.
	if !v.List().Loaded() {
		if _, err := v.Refresh(c.Request.Context()); err != nil && !errors.Is(err, views.ErrStaleRefresh) {
			RespondError(c, h.Cfg, err)
			return
		}
	}
	p, err := v.SubmitTransition(c.Request.Context(), c.Param("id"), payload)
	if err != nil {
		RespondError(c, h.Cfg, err)
		return
	}
	utils.Success(c, message, h.rows([]models.Patient{*p})[0])
}
