package membership_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"libraryflow/internal/events"
	"libraryflow/internal/membership"
	"libraryflow/internal/storage/memory"
)

func clock() time.Time { return time.Date(2024, time.April, 2, 14, 0, 0, 0, time.UTC) }

func newService(limiter *rate.Limiter) membership.Service {
	return membership.NewService(memory.NewStore().Membership(), events.NewBus(), limiter, clock)
}

func TestRegisterPatronRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)

	p, err := svc.RegisterPatron(ctx, "Reader@Example.org", "Reader", "premium")
	require.NoError(t, err)
	assert.Equal(t, "reader@example.org", p.Email)
	assert.Equal(t, membership.TierPremium, p.Tier)

	_, err = svc.RegisterPatron(ctx, "reader@example.org", "Someone Else", "")
	assert.ErrorIs(t, err, membership.ErrDuplicateEmail)
}

func TestRegisterPatronIsRateLimited(t *testing.T) {
	ctx := context.Background()
	svc := newService(rate.NewLimiter(rate.Every(time.Hour), 1))

	_, err := svc.RegisterPatron(ctx, "one@example.org", "One", "")
	require.NoError(t, err)
	_, err = svc.RegisterPatron(ctx, "two@example.org", "Two", "")
	assert.ErrorIs(t, err, membership.ErrRateLimited)
}

func TestChangePatronTier(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)
	p, err := svc.RegisterPatron(ctx, "tier@example.org", "Tier", "")
	require.NoError(t, err)

	_, err = svc.ChangePatronTier(ctx, p.ID, "platinum")
	assert.ErrorIs(t, err, membership.ErrInvalidTier)

	p, err = svc.ChangePatronTier(ctx, p.ID, "premium")
	require.NoError(t, err)
	assert.Equal(t, membership.TierPremium, p.Tier)

	_, err = svc.ChangePatronTier(ctx, uuid.New(), "premium")
	assert.ErrorIs(t, err, membership.ErrPatronNotFound)
}

func TestSuspendAndReinstatePatron(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)
	p, err := svc.RegisterPatron(ctx, "s@example.org", "S", "")
	require.NoError(t, err)

	p, err = svc.SuspendPatron(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, membership.PatronSuspended, p.Status)
	p, err = svc.ReinstatePatron(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, membership.PatronActive, p.Status)
}

func TestHireAndAuthenticateStaff(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)
	branch, err := svc.OpenBranch(ctx, "Central", "1 Library Way")
	require.NoError(t, err)

	staff, err := svc.HireStaff(ctx, membership.HireStaffInput{
		Name:     "Ada",
		Email:    "Ada@Library.test",
		Role:     "manager",
		BranchID: &branch.ID,
		Password: "a long passphrase",
	})
	require.NoError(t, err)
	assert.Equal(t, membership.RoleManager, staff.Role)
	assert.NotEmpty(t, staff.PasswordHash)

	got, err := svc.AuthenticateStaff(ctx, " ada@library.test ", "a long passphrase")
	require.NoError(t, err)
	assert.Equal(t, staff.ID, got.ID)

	_, err = svc.AuthenticateStaff(ctx, "ada@library.test", "wrong passphrase")
	assert.ErrorIs(t, err, membership.ErrInvalidCredentials)
	_, err = svc.AuthenticateStaff(ctx, "nobody@library.test", "a long passphrase")
	assert.ErrorIs(t, err, membership.ErrInvalidCredentials)

	_, err = svc.DeactivateStaff(ctx, staff.ID)
	require.NoError(t, err)
	_, err = svc.AuthenticateStaff(ctx, "ada@library.test", "a long passphrase")
	assert.ErrorIs(t, err, membership.ErrInvalidCredentials, "inactive staff cannot log in")
}

func TestHireStaffValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)

	_, err := svc.HireStaff(ctx, membership.HireStaffInput{Name: "A", Email: "a@library.test", Password: "short"})
	assert.ErrorIs(t, err, membership.ErrWeakPassword)

	missing := uuid.New()
	_, err = svc.HireStaff(ctx, membership.HireStaffInput{Name: "A", Email: "a@library.test", BranchID: &missing, Password: "long enough"})
	assert.ErrorIs(t, err, membership.ErrBranchNotFound)

	_, err = svc.HireStaff(ctx, membership.HireStaffInput{Name: "A", Email: "a@library.test", Password: "long enough"})
	require.NoError(t, err)
	_, err = svc.HireStaff(ctx, membership.HireStaffInput{Name: "B", Email: "A@library.test", Password: "long enough"})
	assert.ErrorIs(t, err, membership.ErrDuplicateEmail)
}

func TestDeleteStaffRequiresDeactivation(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)
	st, err := svc.HireStaff(ctx, membership.HireStaffInput{Name: "T", Email: "t@library.test", Password: "long enough"})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteStaff(ctx, st.ID), membership.ErrStaffStillActive)
	_, err = svc.DeactivateStaff(ctx, st.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteStaff(ctx, st.ID))

	_, err = svc.GetStaff(ctx, st.ID)
	assert.ErrorIs(t, err, membership.ErrStaffNotFound)
}

func TestBranchLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)
	branch, err := svc.OpenBranch(ctx, "East", "")
	require.NoError(t, err)

	_, err = svc.OpenBranch(ctx, "east", "")
	assert.ErrorIs(t, err, membership.ErrDuplicateBranchName)

	assert.ErrorIs(t, svc.DeleteBranch(ctx, branch.ID), membership.ErrBranchStillOpen)
	_, err = svc.CloseBranch(ctx, branch.ID)
	require.NoError(t, err)

	st, err := svc.HireStaff(ctx, membership.HireStaffInput{Name: "T", Email: "t@library.test", Password: "long enough"})
	require.NoError(t, err)
	_, err = svc.AssignStaffToBranch(ctx, st.ID, branch.ID)
	assert.ErrorIs(t, err, membership.ErrBranchClosed)

	require.NoError(t, svc.DeleteBranch(ctx, branch.ID))
	branches, err := svc.ListBranches(ctx)
	require.NoError(t, err)
	assert.Empty(t, branches)
}

func TestAssignBranchManagerWithoutHandlerLeavesStaff(t *testing.T) {
	ctx := context.Background()
	svc := newService(nil)
	branch, err := svc.OpenBranch(ctx, "West", "")
	require.NoError(t, err)
	st, err := svc.HireStaff(ctx, membership.HireStaffInput{Name: "M", Email: "m@library.test", Role: "manager", Password: "long enough"})
	require.NoError(t, err)

	branch, err = svc.AssignBranchManager(ctx, branch.ID, st.ID)
	require.NoError(t, err)
	require.NotNil(t, branch.ManagerID)
	assert.Equal(t, st.ID, *branch.ManagerID)

	got, err := svc.GetStaff(ctx, st.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BranchID, "moving the manager is the event handler's job")
}
