package membership

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryflow/internal/events"
)

var now = time.Date(2024, time.April, 2, 14, 0, 0, 0, time.UTC)

func TestNewPatronNormalizesEmail(t *testing.T) {
	c := events.NewCollector()
	p, err := NewPatron(c, "  Grace Hopper <Grace@Navy.MIL> ", "Grace", "", now)
	require.NoError(t, err)
	assert.Equal(t, "grace@navy.mil", p.Email)
	assert.Equal(t, TierRegular, p.Tier)
	assert.True(t, p.CanBorrow())
	require.Equal(t, 1, c.Len())
	assert.Equal(t, events.KindPatronRegistered, c.Pending()[0].Kind())
}

func TestNewPatronValidation(t *testing.T) {
	_, err := NewPatron(events.Discard, "not-an-email", "X", TierRegular, now)
	assert.ErrorIs(t, err, ErrInvalidEmail)
	_, err = NewPatron(events.Discard, "x@example.org", " ", TierRegular, now)
	assert.ErrorIs(t, err, ErrInvalidName)
	_, err = NewPatron(events.Discard, "x@example.org", "X", "gold", now)
	assert.ErrorIs(t, err, ErrInvalidTier)
}

func TestPatronTransitions(t *testing.T) {
	p, err := NewPatron(events.Discard, "x@example.org", "X", TierRegular, now)
	require.NoError(t, err)

	assert.ErrorIs(t, p.ChangeTier(events.Discard, TierRegular, now), ErrTierUnchanged)
	require.NoError(t, p.ChangeTier(events.Discard, "PREMIUM", now))
	assert.True(t, p.IsPremiumMembership())

	assert.ErrorIs(t, p.Reinstate(events.Discard, now), ErrPatronActive)
	require.NoError(t, p.Suspend(events.Discard, now))
	assert.False(t, p.CanBorrow())
	assert.ErrorIs(t, p.Suspend(events.Discard, now), ErrPatronSuspended)
	require.NoError(t, p.Reinstate(events.Discard, now))
	assert.Equal(t, 4, p.Version)
}

func TestRoles(t *testing.T) {
	r, err := ParseRole("")
	require.NoError(t, err)
	assert.Equal(t, RoleLibrarian, r)
	_, err = ParseRole("janitor")
	assert.ErrorIs(t, err, ErrInvalidRole)

	assert.True(t, RoleAtLeast(RoleAdmin, RoleManager))
	assert.True(t, RoleAtLeast(RoleManager, RoleManager))
	assert.False(t, RoleAtLeast(RoleLibrarian, RoleManager))
	assert.False(t, RoleAtLeast(RoleAdmin, "janitor"))
}

func TestStaffAssignToBranch(t *testing.T) {
	st, err := NewStaff(events.Discard, "Mel", "mel@library.test", RoleLibrarian, nil, now)
	require.NoError(t, err)

	branch := uuid.New()
	c := events.NewCollector()
	require.NoError(t, st.AssignToBranch(c, branch, now))
	require.NoError(t, st.AssignToBranch(c, branch, now), "same branch is a no-op")
	assert.Equal(t, 1, c.Len())

	require.NoError(t, st.Deactivate(events.Discard, now))
	assert.ErrorIs(t, st.AssignToBranch(events.Discard, uuid.New(), now), ErrStaffInactive)
	assert.ErrorIs(t, st.Deactivate(events.Discard, now), ErrStaffInactive)
}

func TestBranchAssignManager(t *testing.T) {
	b, err := NewBranch(events.Discard, "North", "", now)
	require.NoError(t, err)
	manager, err := NewStaff(events.Discard, "Kim", "kim@library.test", RoleManager, nil, now)
	require.NoError(t, err)

	assert.ErrorIs(t, b.AssignManager(events.Discard, nil, now), ErrStaffNotFound)

	c := events.NewCollector()
	require.NoError(t, b.AssignManager(c, manager, now))
	require.Equal(t, 1, c.Len())
	got := c.Pending()[0].(events.ManagerAssignedToBranch)
	assert.Equal(t, manager.ID, got.StaffID)
	assert.Equal(t, b.ID, got.BranchID)
	assert.ErrorIs(t, b.AssignManager(events.Discard, manager, now), ErrManagerUnchanged)

	require.NoError(t, b.Close(events.Discard, now))
	other, err := NewStaff(events.Discard, "Lee", "lee@library.test", RoleManager, nil, now)
	require.NoError(t, err)
	assert.ErrorIs(t, b.AssignManager(events.Discard, other, now), ErrBranchClosed)
	assert.ErrorIs(t, b.Close(events.Discard, now), ErrBranchClosed)
}
