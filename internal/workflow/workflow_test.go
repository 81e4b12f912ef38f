package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medflow-web/internal/models"
)

func TestPipelineOrder(t *testing.T) {
	assert.Equal(t, []models.PatientStatus{
		models.StatusRegistered,
		models.StatusAwaitingDoctor,
		models.StatusAwaitingMedication,
		models.StatusCompleted,
	}, Statuses())

	status := models.StatusRegistered
	steps := 0
	for !IsTerminal(status) {
		next, ok := Next(status)
		require.True(t, ok)
		assert.Greater(t, Rank(next), Rank(status))
		require.NoError(t, CheckAdvance(status, next))
		status = next
		steps++
	}
	assert.Equal(t, 3, steps)

	_, ok := Next(models.StatusCompleted)
	assert.False(t, ok)
	_, ok = Next("discharged")
	assert.False(t, ok)
}

func TestParseStatus(t *testing.T) {
	s, err := ParseStatus("awaiting_doctor")
	require.NoError(t, err)
	assert.Equal(t, models.StatusAwaitingDoctor, s)

	_, err = ParseStatus("discharged")
	assert.Error(t, err)
}

func TestCheckAdvance_RejectsSkipsAndRegressions(t *testing.T) {
	var invalid *InvalidStateTransition

	assert.ErrorAs(t, CheckAdvance(models.StatusRegistered, models.StatusAwaitingMedication), &invalid)
	assert.ErrorAs(t, CheckAdvance(models.StatusAwaitingDoctor, models.StatusRegistered), &invalid)
	assert.ErrorAs(t, CheckAdvance(models.StatusCompleted, models.StatusCompleted), &invalid)

	assert.True(t, Regressed(models.StatusAwaitingMedication, models.StatusRegistered))
	assert.False(t, Regressed(models.StatusRegistered, models.StatusAwaitingDoctor))
	assert.False(t, Regressed("bogus", models.StatusRegistered))
}

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		role models.Role
		from models.PatientStatus
		to   models.PatientStatus
	}{
		{models.RoleNurse, models.StatusRegistered, models.StatusAwaitingDoctor},
		{models.RoleDoctor, models.StatusAwaitingDoctor, models.StatusAwaitingMedication},
		{models.RolePharmacist, models.StatusAwaitingMedication, models.StatusCompleted},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			tr, ok := TransitionFor(tt.role)
			require.True(t, ok)
			assert.Equal(t, tt.from, tr.From)
			assert.Equal(t, tt.to, tr.To)
			assert.NoError(t, CheckAdvance(tr.From, tr.To))

			src, ok := SourceStatus(tt.role)
			require.True(t, ok)
			assert.Equal(t, tt.from, src)
		})
	}

	for _, role := range []models.Role{models.RoleRegistrar, models.RoleAdmin} {
		_, ok := TransitionFor(role)
		assert.False(t, ok)
		_, ok = SourceStatus(role)
		assert.False(t, ok)
	}
}

func TestGuard(t *testing.T) {
	p := &models.Patient{ID: "p1", Status: models.StatusRegistered}
	assert.NoError(t, Guard(models.RoleNurse, p))

	var invalid *InvalidStateTransition
	err := Guard(models.RoleDoctor, p)
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "p1", invalid.PatientID)
	assert.Equal(t, models.StatusRegistered, invalid.From)
	assert.Equal(t, models.StatusAwaitingMedication, invalid.To)
	assert.Contains(t, err.Error(), "doctor cannot move")

	assert.ErrorAs(t, Guard(models.RoleRegistrar, p), &invalid)
}
