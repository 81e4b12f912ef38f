// Package session owns the authenticated state held on behalf of each
// browser. A Context is created on login, resumed on later requests, and torn
// down through exactly one path whether the user logs out or the API rejects
// the token.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"medflow-web/internal/apiclient"
	"medflow-web/internal/models"
	"medflow-web/internal/utils"
)

// Closer is released when its session is torn down.
type Closer interface {
	Close()
}

// Context is one browser's session: the stored record plus the live
// per-session state (its workspace of views).
type Context struct {
	ID string

	manager *Manager
	record  models.Session

	mu        sync.Mutex
	closed    bool
	workspace Closer
}

// BearerToken implements apiclient.Session.
func (c *Context) BearerToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ""
	}
	return c.record.Token
}

// Teardown implements apiclient.Session. It is the single teardown entry
// point and is safe to call more than once.
func (c *Context) Teardown(ctx context.Context, reason string) error {
	return c.manager.teardown(ctx, c, reason)
}

// Role returns the session's role.
func (c *Context) Role() models.Role {
	return c.record.Role
}

// Username returns the session's username.
func (c *Context) Username() string {
	return c.record.Username
}

// Record returns a copy of the stored session record.
func (c *Context) Record() models.Session {
	return c.record
}

// Closed reports whether the session has been torn down.
func (c *Context) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Workspace returns the session's workspace, creating it with newFn on first
// use. It returns nil once the session is closed.
func (c *Context) Workspace(newFn func(*Context) Closer) Closer {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	if c.workspace == nil {
		c.workspace = newFn(c)
	}
	return c.workspace
}

// close marks the context closed and returns its workspace for release.
func (c *Context) close() (Closer, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, false
	}
	c.closed = true
	ws := c.workspace
	c.workspace = nil
	return ws, true
}

var _ apiclient.Session = (*Context)(nil)

// Manager creates, resumes and tears down sessions.
type Manager struct {
	store     Store
	api       *apiclient.Client
	validator *utils.Validator
	logger    zerolog.Logger

	mu   sync.Mutex
	live map[string]*Context
}

// NewManager creates a Manager.
func NewManager(store Store, api *apiclient.Client, logger zerolog.Logger) *Manager {
	return &Manager{
		store:     store,
		api:       api,
		validator: utils.NewValidator(nil),
		logger:    logger.With().Str("component", "session").Logger(),
		live:      make(map[string]*Context),
	}
}

// Login exchanges credentials for a token and persists the new session.
func (m *Manager) Login(ctx context.Context, creds models.Credentials) (*Context, error) {
	creds.Username = strings.TrimSpace(creds.Username)
	if err := m.validator.Struct(creds); err != nil {
		return nil, err
	}

	resp, err := m.api.Login(ctx, creds)
	if err != nil {
		m.logger.Info().Err(err).Str("username", creds.Username).Msg("login failed")
		return nil, err
	}
	if resp.Token == "" || resp.User == nil || resp.User.Role == "" {
		return nil, &utils.ServerError{Message: "Invalid response from server - missing required data"}
	}
	if !resp.User.Role.Valid() {
		return nil, &utils.AuthError{StatusCode: http.StatusForbidden, Message: fmt.Sprintf("unsupported role %q", resp.User.Role)}
	}

	username := resp.User.Username
	if username == "" {
		username = utils.TokenUsername(resp.Token)
	}
	if username == "" {
		username = creds.Username
	}

	record := models.Session{Token: resp.Token, Role: resp.User.Role, Username: username}
	id := uuid.NewString()
	if err := m.store.Put(ctx, id, record); err != nil {
		return nil, err
	}

	sc := &Context{ID: id, manager: m, record: record}
	m.mu.Lock()
	m.live[id] = sc
	m.mu.Unlock()

	m.logger.Info().Str("session_id", id).Str("username", username).Str("role", string(record.Role)).Msg("session opened")
	return sc, nil
}

// Resume returns the session stored under id. It returns ErrNotFound when
// there is none.
func (m *Manager) Resume(ctx context.Context, id string) (*Context, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	// The store is read under the lock so a load cannot race a teardown and
	// re-insert a session that is being deleted.
	m.mu.Lock()
	defer m.mu.Unlock()
	if sc, ok := m.live[id]; ok {
		if sc.Closed() {
			return nil, ErrNotFound
		}
		return sc, nil
	}

	record, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	sc := &Context{ID: id, manager: m, record: *record}
	m.live[id] = sc
	return sc, nil
}

// Logout tears down the session stored under id, if any.
func (m *Manager) Logout(ctx context.Context, id string) error {
	sc, err := m.Resume(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	return sc.Teardown(ctx, "logout")
}

func (m *Manager) teardown(ctx context.Context, sc *Context, reason string) error {
	ws, first := sc.close()
	if !first {
		return nil
	}

	if ws != nil {
		ws.Close()
	}

	// The request that triggered teardown may already be cancelled; the
	// stored record must still go. The closed context stays in live until
	// the record is gone so Resume keeps reporting the session as ended.
	err := m.store.Delete(context.WithoutCancel(ctx), sc.ID)

	m.mu.Lock()
	if m.live[sc.ID] == sc {
		delete(m.live, sc.ID)
	}
	m.mu.Unlock()

	m.logger.Info().Str("session_id", sc.ID).Str("username", sc.record.Username).Str("reason", reason).Msg("session closed")
	return err
}
