package session

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"medflow-web/internal/models"
)

func setupGormStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return NewGormStore(gdb), mock
}

func TestGormStore_Put(t *testing.T) {
	store, mock := setupGormStore(t)

	mock.ExpectExec("INSERT INTO `sessions`").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Put(context.Background(), "sid-1", models.Session{Token: "tok", Role: models.RoleNurse, Username: "nina"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Get(t *testing.T) {
	store, mock := setupGormStore(t)
	now := time.Now()

	rows := sqlmock.NewRows([]string{"id", "created_at", "updated_at", "token", "role", "username"}).
		AddRow("sid-1", now, now, "tok", "nurse", "nina")
	mock.ExpectQuery("SELECT \\* FROM `sessions` WHERE id = \\?").
		WillReturnRows(rows)

	s, err := store.Get(context.Background(), "sid-1")
	require.NoError(t, err)
	assert.Equal(t, models.Session{Token: "tok", Role: models.RoleNurse, Username: "nina"}, *s)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_GetMissing(t *testing.T) {
	store, mock := setupGormStore(t)

	mock.ExpectQuery("SELECT \\* FROM `sessions` WHERE id = \\?").
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "token", "role", "username"}))

	_, err := store.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_Delete(t *testing.T) {
	store, mock := setupGormStore(t)

	mock.ExpectExec("DELETE FROM `sessions` WHERE id = \\?").
		WithArgs("sid-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), "sid-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, store.Put(ctx, "a", models.Session{Token: "t", Role: models.RoleAdmin}))
	s, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, s.Role)

	require.NoError(t, store.Delete(ctx, "a"))
	_, err = store.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}
