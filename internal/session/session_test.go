package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medflow-web/internal/apiclient"
	"medflow-web/internal/apiclient/apitest"
	"medflow-web/internal/logger"
	"medflow-web/internal/models"
	"medflow-web/internal/utils"
)

type closeCounter struct{ closed int }

func (c *closeCounter) Close() { c.closed++ }

func newTestManager(t *testing.T) (*Manager, *MemoryStore, *apitest.Server) {
	t.Helper()
	srv := apitest.NewServer(t)
	store := NewMemoryStore()
	api := apiclient.New(srv.URL, 5*time.Second, logger.Nop())
	return NewManager(store, api, logger.Nop()), store, srv
}

func TestLogin_PersistsSession(t *testing.T) {
	m, store, srv := newTestManager(t)
	srv.AddUser("nina", "pw", models.RoleNurse)

	sc, err := m.Login(context.Background(), models.Credentials{Username: " nina ", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleNurse, sc.Role())
	assert.Equal(t, "nina", sc.Username())
	assert.NotEmpty(t, sc.BearerToken())

	stored, err := store.Get(context.Background(), sc.ID)
	require.NoError(t, err)
	assert.Equal(t, sc.Record(), *stored)
}

func TestLogin_BlankCredentialsNeverReachNetwork(t *testing.T) {
	m, _, srv := newTestManager(t)

	_, err := m.Login(context.Background(), models.Credentials{Username: "  ", Password: ""})
	var verr *utils.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "username")
	assert.Contains(t, verr.Fields, "password")
	assert.Empty(t, srv.Calls())
}

func TestLogin_UsernameFallsBackToToken(t *testing.T) {
	m, _, srv := newTestManager(t)
	srv.OmitUsername = true
	srv.AddUser("dora", "pw", models.RoleDoctor)

	sc, err := m.Login(context.Background(), models.Credentials{Username: "dora", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "dora", sc.Username())
}

func TestLogin_RejectsUnknownRole(t *testing.T) {
	m, store, srv := newTestManager(t)
	srv.AddUser("jan", "pw", models.Role("janitor"))

	_, err := m.Login(context.Background(), models.Credentials{Username: "jan", Password: "pw"})
	var authErr *utils.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, http.StatusForbidden, authErr.StatusCode)
	assert.Empty(t, store.sessions)
}

func TestResume_SurvivesLostLiveState(t *testing.T) {
	m, store, srv := newTestManager(t)
	srv.AddUser("nina", "pw", models.RoleNurse)
	sc, err := m.Login(context.Background(), models.Credentials{Username: "nina", Password: "pw"})
	require.NoError(t, err)

	again, err := m.Resume(context.Background(), sc.ID)
	require.NoError(t, err)
	assert.Same(t, sc, again)

	// A fresh manager over the same store (process restart) still resumes.
	other := NewManager(store, m.api, logger.Nop())
	resumed, err := other.Resume(context.Background(), sc.ID)
	require.NoError(t, err)
	assert.Equal(t, sc.Record(), resumed.Record())

	_, err = m.Resume(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Resume(context.Background(), "")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTeardown_IsSingleAndIdempotent(t *testing.T) {
	m, store, srv := newTestManager(t)
	srv.AddUser("nina", "pw", models.RoleNurse)
	sc, err := m.Login(context.Background(), models.Credentials{Username: "nina", Password: "pw"})
	require.NoError(t, err)

	ws := &closeCounter{}
	got := sc.Workspace(func(*Context) Closer { return ws })
	assert.Same(t, ws, got)

	require.NoError(t, m.Logout(context.Background(), sc.ID))
	require.NoError(t, sc.Teardown(context.Background(), "again"))

	assert.True(t, sc.Closed())
	assert.Equal(t, 1, ws.closed)
	assert.Empty(t, sc.BearerToken())
	assert.Nil(t, sc.Workspace(func(*Context) Closer { return &closeCounter{} }))

	_, err = store.Get(context.Background(), sc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.Resume(context.Background(), sc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	assert.NoError(t, m.Logout(context.Background(), "never-existed"))
}

func TestRejectedTokenTearsDownThroughSamePath(t *testing.T) {
	m, store, srv := newTestManager(t)
	srv.AddUser("nina", "pw", models.RoleNurse)
	sc, err := m.Login(context.Background(), models.Credentials{Username: "nina", Password: "pw"})
	require.NoError(t, err)
	ws := &closeCounter{}
	sc.Workspace(func(*Context) Closer { return ws })

	srv.ForbidAll(true)
	_, err = m.api.ListPatients(context.Background(), sc, models.StatusRegistered)
	var authErr *utils.AuthError
	require.ErrorAs(t, err, &authErr)

	assert.True(t, sc.Closed())
	assert.Equal(t, 1, ws.closed)
	_, err = store.Get(context.Background(), sc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

type blockingStore struct {
	*MemoryStore
	deleting chan struct{}
	release  chan struct{}
}

func (s *blockingStore) Delete(ctx context.Context, id string) error {
	close(s.deleting)
	<-s.release
	return s.MemoryStore.Delete(ctx, id)
}

func TestLogout_ResumeDuringSlowDeleteStaysClosed(t *testing.T) {
	srv := apitest.NewServer(t)
	srv.AddUser("nina", "pw", models.RoleNurse)
	store := &blockingStore{MemoryStore: NewMemoryStore(), deleting: make(chan struct{}), release: make(chan struct{})}
	m := NewManager(store, apiclient.New(srv.URL, 5*time.Second, logger.Nop()), logger.Nop())

	sc, err := m.Login(context.Background(), models.Credentials{Username: "nina", Password: "pw"})
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- m.Logout(context.Background(), sc.ID) }()

	select {
	case <-store.deleting:
	case <-time.After(5 * time.Second):
		t.Fatal("logout never reached the store")
	}

	_, err = m.Resume(context.Background(), sc.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	close(store.release)
	require.NoError(t, <-done)

	_, err = m.Resume(context.Background(), sc.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, m.live)
}
