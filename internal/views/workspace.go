package views

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"medflow-web/internal/apiclient"
	"medflow-web/internal/models"
	"medflow-web/internal/utils"
)

// Option configures a Workspace.
type Option func(*Workspace)

// WithClock sets the time source used for filters and date-of-birth checks.
func WithClock(now func() time.Time) Option {
	return func(w *Workspace) {
		w.now = now
	}
}

// Workspace holds the views of one session. It is created lazily on the
// session's first screen request and closed when the session is torn down.
type Workspace struct {
	api    *apiclient.Client
	sess   apiclient.Session
	role   models.Role
	logger zerolog.Logger
	now    func() time.Time

	mu     sync.Mutex
	views  map[models.Role]*View
	closed bool
}

// NewWorkspace creates the workspace for a session signed in as role.
func NewWorkspace(api *apiclient.Client, sess apiclient.Session, role models.Role, logger zerolog.Logger, opts ...Option) *Workspace {
	w := &Workspace{
		api:    api,
		sess:   sess,
		role:   role,
		logger: logger,
		now:    time.Now,
		views:  make(map[models.Role]*View),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Role returns the role the session signed in with.
func (w *Workspace) Role() models.Role {
	return w.role
}

// View returns the view for role, creating it on first use. The admin view
// is open to every role; the others only to the session's own role.
func (w *Workspace) View(role models.Role) (*View, error) {
	if role != models.RoleAdmin && role != w.role {
		return nil, fmt.Errorf("%s session cannot open the %s view", w.role, role)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, utils.ErrSessionClosed
	}
	if v, ok := w.views[role]; ok {
		return v, nil
	}
	v := &View{
		role:      role,
		api:       w.api,
		sess:      w.sess,
		list:      newPatientList(),
		validator: utils.NewValidator(w.now),
		logger:    w.logger.With().Str("view", string(role)).Logger(),
		now:       w.now,
	}
	w.views[role] = v
	return v, nil
}

// Close discards every view's cached patients. Views stay usable as values
// but refuse further refreshes.
func (w *Workspace) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for _, v := range w.views {
		v.list.Close()
	}
}

// Closed reports whether the workspace has been closed.
func (w *Workspace) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
