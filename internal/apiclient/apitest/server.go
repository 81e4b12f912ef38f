// Package apitest runs an in-process stand-in for the remote patient API so
// the front-end can be exercised end to end in tests.
package apitest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"medflow-web/internal/models"
	"medflow-web/internal/utils"
)

const signingKey = "apitest-signing-key"

type account struct {
	password string
	role     models.Role
}

// Server is a fake upstream API backed by memory.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	accounts  map[string]account
	tokens    map[string]string // token -> username
	patients  map[string]*models.Patient
	calls     []string
	forbidden bool

	// MedicationLeavesStatus makes the medication endpoint attach the
	// medication without completing the visit.
	MedicationLeavesStatus bool
	// WrapData wraps every success body in {"data": ...}.
	WrapData bool
	// LegacyIDs emits "id" instead of "_id".
	LegacyIDs bool
	// OmitUsername leaves user.username out of login responses.
	OmitUsername bool
	// TransitionStatus, when set, is the status every notes or medication
	// update leaves the patient in.
	TransitionStatus models.PatientStatus
	// ListGate, when set, blocks every patient list request until it
	// receives a value or is closed.
	ListGate chan struct{}
}

// NewServer starts a fake API and stops it when the test ends.
func NewServer(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		accounts: make(map[string]account),
		tokens:   make(map[string]string),
		patients: make(map[string]*models.Patient),
	}

	r := gin.New()
	r.Use(s.record)
	r.POST("/auth/login", s.login)

	authed := r.Group("/patients", s.authenticate)
	authed.POST("/register", s.register)
	authed.GET("", s.list)
	authed.PATCH("/:id/nurse-notes", s.nurseNotes)
	authed.PATCH("/:id/doctor-note", s.doctorNote)
	authed.PATCH("/:id/medication", s.medication)
	authed.PATCH("/:id/status", s.status)

	s.Server = httptest.NewServer(r)
	t.Cleanup(s.Close)
	return s
}

// AddUser registers an account the fake will accept at login.
func (s *Server) AddUser(username, password string, role models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[username] = account{password: password, role: role}
}

// Token issues a token for username without going through login.
func (s *Server) Token(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(username)
}

// Revoke makes the API reject token with 401.
func (s *Server) Revoke(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tokens, token)
}

// ForbidAll makes every authenticated endpoint answer 403.
func (s *Server) ForbidAll(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forbidden = on
}

// Seed stores a patient directly and returns it.
func (s *Server) Seed(p models.Patient) models.Patient {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Status == "" {
		p.Status = models.StatusRegistered
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().Add(time.Duration(len(s.patients)) * time.Millisecond)
	}
	p.UpdatedAt = p.CreatedAt
	stored := p
	s.patients[p.ID] = &stored
	return stored
}

// Patient returns the server's copy of a patient.
func (s *Server) Patient(id string) (models.Patient, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.patients[id]
	if !ok {
		return models.Patient{}, false
	}
	return *p, true
}

// Calls returns "METHOD /path" for every request received, in order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount counts received requests whose "METHOD /path" starts with prefix.
func (s *Server) CallCount(prefix string) int {
	n := 0
	for _, c := range s.Calls() {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

func (s *Server) record(c *gin.Context) {
	s.mu.Lock()
	s.calls = append(s.calls, c.Request.Method+" "+c.Request.URL.Path)
	s.mu.Unlock()
	c.Next()
}

func (s *Server) issueLocked(username string) string {
	acct := s.accounts[username]
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &utils.Claims{
		Username: username,
		Role:     acct.role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  username,
			ID:       uuid.NewString(),
			IssuedAt: jwt.NewNumericDate(time.Now()),
		},
	}).SignedString([]byte(signingKey))
	if err != nil {
		panic(fmt.Sprintf("apitest: sign token: %v", err))
	}
	s.tokens[token] = username
	return token
}

func (s *Server) respond(c *gin.Context, code int, body interface{}) {
	if s.WrapData {
		c.JSON(code, gin.H{"data": body})
		return
	}
	c.JSON(code, body)
}

func (s *Server) wire(p *models.Patient) gin.H {
	out := gin.H{
		"firstName":   p.FirstName,
		"lastName":    p.LastName,
		"dateOfBirth": p.DateOfBirth,
		"phoneNumber": p.PhoneNumber,
		"address":     p.Address,
		"status":      p.Status,
		"createdAt":   p.CreatedAt,
		"updatedAt":   p.UpdatedAt,
	}
	if s.LegacyIDs {
		out["id"] = p.ID
	} else {
		out["_id"] = p.ID
	}
	if p.NurseNotes != "" {
		out["nurseNotes"] = p.NurseNotes
	}
	if p.DoctorNote != nil {
		out["doctorNote"] = p.DoctorNote
	}
	if p.Medication != nil {
		out["medication"] = p.Medication
	}
	return out
}

func (s *Server) login(c *gin.Context) {
	var creds models.Credentials
	if err := c.ShouldBindJSON(&creds); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "invalid body"})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[creds.Username]
	if !ok || acct.password != creds.Password {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Invalid credentials"})
		return
	}

	user := gin.H{"role": acct.role}
	if !s.OmitUsername {
		user["username"] = creds.Username
	}
	s.respond(c, http.StatusOK, gin.H{"token": s.issueLocked(creds.Username), "user": user})
}

func (s *Server) authenticate(c *gin.Context) {
	token := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")

	s.mu.Lock()
	_, ok := s.tokens[token]
	forbidden := s.forbidden
	s.mu.Unlock()

	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Invalid token"})
		return
	}
	if forbidden {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"message": "Forbidden"})
		return
	}
	c.Next()
}

func (s *Server) register(c *gin.Context) {
	var req models.RegisterPatientRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.FirstName == "" || req.LastName == "" || req.DateOfBirth == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "missing fields"})
		return
	}
	p := s.Seed(models.Patient{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		DateOfBirth: req.DateOfBirth,
		PhoneNumber: req.PhoneNumber,
		Address:     req.Address,
		Status:      models.StatusRegistered,
		CreatedAt:   time.Now(),
	})
	s.respond(c, http.StatusCreated, s.wire(&p))
}

func (s *Server) list(c *gin.Context) {
	if s.ListGate != nil {
		<-s.ListGate
	}
	status := models.PatientStatus(c.Query("status"))

	s.mu.Lock()
	out := make([]*models.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		if status == "" || p.Status == status {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	body := make([]gin.H, 0, len(out))
	for _, p := range out {
		body = append(body, s.wire(p))
	}
	s.mu.Unlock()

	s.respond(c, http.StatusOK, body)
}

// mutate applies fn to the patient when it is in want, answering 404 or 409
// otherwise.
func (s *Server) mutate(c *gin.Context, want models.PatientStatus, fn func(p *models.Patient)) {
	s.mu.Lock()
	p, ok := s.patients[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"message": "Patient not found"})
		return
	}
	if want != "" && p.Status != want {
		s.mu.Unlock()
		c.JSON(http.StatusConflict, gin.H{"message": "Patient is " + string(p.Status)})
		return
	}
	fn(p)
	if want != "" && s.TransitionStatus != "" {
		p.Status = s.TransitionStatus
	}
	p.UpdatedAt = time.Now()
	body := s.wire(p)
	s.mu.Unlock()

	s.respond(c, http.StatusOK, body)
}

func (s *Server) nurseNotes(c *gin.Context) {
	var body struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Notes == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "notes required"})
		return
	}
	s.mutate(c, models.StatusRegistered, func(p *models.Patient) {
		p.NurseNotes = body.Notes
		p.Status = models.StatusAwaitingDoctor
	})
}

func (s *Server) doctorNote(c *gin.Context) {
	var note models.DoctorNote
	if err := c.ShouldBindJSON(&note); err != nil || note.Instructions == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "instructions required"})
		return
	}
	s.mutate(c, models.StatusAwaitingDoctor, func(p *models.Patient) {
		p.DoctorNote = &note
		p.Status = models.StatusAwaitingMedication
	})
}

func (s *Server) medication(c *gin.Context) {
	var med models.Medication
	if err := c.ShouldBindJSON(&med); err != nil || len(med.Drugs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "drugs required"})
		return
	}
	s.mutate(c, models.StatusAwaitingMedication, func(p *models.Patient) {
		p.Medication = &med
		if !s.MedicationLeavesStatus {
			p.Status = models.StatusCompleted
		}
	})
}

func (s *Server) status(c *gin.Context) {
	var body models.StatusUpdate
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "status required"})
		return
	}
	s.mutate(c, "", func(p *models.Patient) {
		p.Status = body.Status
	})
}
