// Package apiclient is the front-end's only path to the remote patient API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"medflow-web/internal/models"
	"medflow-web/internal/utils"
)

const maxResponseBytes = 10 << 20

// Session supplies the bearer token for a request and is torn down when the
// API reports the token is no longer accepted.
type Session interface {
	BearerToken() string
	Teardown(ctx context.Context, reason string) error
}

// Client is an HTTP façade over the remote patient API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a Client for baseURL.
func New(baseURL string, timeout time.Duration, logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "apiclient").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Login exchanges credentials for a token. It carries no session, so a 401
// here never tears anything down.
func (c *Client) Login(ctx context.Context, creds models.Credentials) (*models.LoginResponse, error) {
	var resp models.LoginResponse
	if err := c.do(ctx, nil, http.MethodPost, "/auth/login", creds, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RegisterPatient creates a patient in the registered status.
func (c *Client) RegisterPatient(ctx context.Context, sess Session, req models.RegisterPatientRequest) (*models.Patient, error) {
	var p models.Patient
	if err := c.do(ctx, sess, http.MethodPost, "/patients/register", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ListPatients fetches patients in status, or every patient when status is "".
// Results are sorted by creation time upstream.
func (c *Client) ListPatients(ctx context.Context, sess Session, status models.PatientStatus) ([]models.Patient, error) {
	q := url.Values{}
	q.Set("sort", "createdAt")
	if status != "" {
		q.Set("status", string(status))
		q.Set("include", "nurseNotes")
	}

	var patients []models.Patient
	if err := c.do(ctx, sess, http.MethodGet, "/patients?"+q.Encode(), nil, &patients); err != nil {
		return nil, err
	}
	if patients == nil {
		patients = []models.Patient{}
	}
	return patients, nil
}

// UpdateNurseNotes attaches the nurse's assessment.
func (c *Client) UpdateNurseNotes(ctx context.Context, sess Session, patientID, notes string) (*models.Patient, error) {
	return c.patch(ctx, sess, patientID, "nurse-notes", map[string]string{"notes": notes})
}

// UpdateDoctorNote attaches the doctor's diagnosis and instructions.
func (c *Client) UpdateDoctorNote(ctx context.Context, sess Session, patientID string, note models.DoctorNote) (*models.Patient, error) {
	return c.patch(ctx, sess, patientID, "doctor-note", note)
}

// UpdateMedication attaches what the pharmacist dispensed.
func (c *Client) UpdateMedication(ctx context.Context, sess Session, patientID string, med models.Medication) (*models.Patient, error) {
	return c.patch(ctx, sess, patientID, "medication", med)
}

// UpdateStatus sets the patient's status directly.
func (c *Client) UpdateStatus(ctx context.Context, sess Session, patientID string, status models.PatientStatus) (*models.Patient, error) {
	return c.patch(ctx, sess, patientID, "status", models.StatusUpdate{Status: status})
}

func (c *Client) patch(ctx context.Context, sess Session, patientID, action string, body interface{}) (*models.Patient, error) {
	if strings.TrimSpace(patientID) == "" {
		return nil, utils.NewValidationError("id", "Patient ID is required")
	}
	var p models.Patient
	path := "/patients/" + url.PathEscape(patientID) + "/" + action
	if err := c.do(ctx, sess, http.MethodPatch, path, body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) do(ctx context.Context, sess Session, method, path string, body, out interface{}) error {
	op := method + " " + strings.SplitN(path, "?", 2)[0]

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess != nil {
		if token := sess.BearerToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Str("op", op).Msg("upstream request failed")
		return &utils.NetworkError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &utils.NetworkError{Op: op, Err: err}
	}

	c.logger.Debug().
		Str("op", op).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("upstream request")

	if utils.IsAuthStatus(resp.StatusCode) {
		authErr := &utils.AuthError{StatusCode: resp.StatusCode, Message: errorMessage(raw)}
		if sess != nil {
			if terr := sess.Teardown(ctx, authErr.Error()); terr != nil {
				c.logger.Error().Err(terr).Str("op", op).Msg("failed to tear down rejected session")
			}
		}
		return authErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(raw)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &utils.ServerError{StatusCode: resp.StatusCode, Message: msg}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := decode(raw, out); err != nil {
		return &utils.ServerError{StatusCode: resp.StatusCode, Message: fmt.Sprintf("malformed response to %s: %v", op, err)}
	}
	return nil
}

// decode accepts both bare payloads and payloads wrapped in {"data": ...}.
// A null data field leaves out at its zero value.
func decode(raw []byte, out interface{}) error {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var envelope map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &envelope); err == nil {
			if data, ok := envelope["data"]; ok {
				if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
					return nil
				}
				return json.Unmarshal(data, out)
			}
		}
	}
	return json.Unmarshal(trimmed, out)
}

// errorMessage pulls a human-readable message out of an error body.
func errorMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		msg := strings.TrimSpace(string(raw))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return msg
	}
	if body.Error != "" {
		return body.Error
	}
	return body.Message
}

// IsUnavailable reports whether err came from the network or the upstream
// server rather than from the user or the session.
func IsUnavailable(err error) bool {
	var nerr *utils.NetworkError
	var serr *utils.ServerError
	return errors.As(err, &nerr) || errors.As(err, &serr)
}
