package server_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"libraryflow/internal/acquisitions"
	"libraryflow/internal/app"
	"libraryflow/internal/catalog"
	"libraryflow/internal/circulation"
	"libraryflow/internal/client"
	"libraryflow/internal/membership"
	"libraryflow/internal/server"
	"libraryflow/internal/storage/memory"
)

const (
	testJWTSecret = "test-secret"
	adminEmail    = "admin@library.test"
	adminPassword = "correct horse battery"
)

func setupTestServer(t *testing.T, limiter *rate.Limiter) *httptest.Server {
	t.Helper()
	logger := log.New(io.Discard)
	a := app.New(memory.NewStore(), app.Options{Limiter: limiter, Logger: logger})

	_, err := a.Services.Membership.HireStaff(context.Background(), membership.HireStaffInput{
		Name:     "Admin",
		Email:    adminEmail,
		Role:     string(membership.RoleAdmin),
		Password: adminPassword,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(server.NewRouter(a.Services, server.Options{
		JWTSecret: testJWTSecret,
		TokenTTL:  time.Hour,
		Logger:    logger,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func login(t *testing.T, srv *httptest.Server) (*client.Client, *membership.Staff) {
	t.Helper()
	c := client.New(srv.URL, srv.Client())
	staff, err := c.Login(context.Background(), adminEmail, adminPassword)
	require.NoError(t, err)
	return c, staff
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var se *client.StatusError
	require.True(t, errors.As(err, &se), "want a status error, got %v", err)
	return se.Code
}

func TestHealth(t *testing.T) {
	srv := setupTestServer(t, nil)
	resp, err := srv.Client().Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	srv := setupTestServer(t, nil)
	ctx := context.Background()
	c := client.New(srv.URL, srv.Client())

	_, err := c.Login(ctx, adminEmail, "wrong password")
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	staff, err := c.Login(ctx, adminEmail, adminPassword)
	require.NoError(t, err)
	assert.Equal(t, membership.RoleAdmin, staff.Role)
	assert.Empty(t, staff.PasswordHash, "hash never leaves the server")
}

func TestStaffRoutesNeedToken(t *testing.T) {
	srv := setupTestServer(t, nil)
	ctx := context.Background()
	anonymous := client.New(srv.URL, srv.Client())

	_, err := anonymous.Checkout(ctx, uuid.New(), uuid.New())
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
	_, err = anonymous.CatalogItem(ctx, catalog.ItemInput{Title: "Ulysses"})
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))

	// Browsing the catalog is public, so an unknown item is a 404, not a 401.
	_, err = anonymous.ListCopies(ctx, uuid.New())
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))
}

func TestErrorKindsMapToStatus(t *testing.T) {
	srv := setupTestServer(t, nil)
	ctx := context.Background()
	c, _ := login(t, srv)

	_, err := c.GetItem(ctx, uuid.New())
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = c.CatalogItem(ctx, catalog.ItemInput{Title: "Ulysses"})
	require.NoError(t, err)
	_, err = c.CatalogItem(ctx, catalog.ItemInput{Title: "ulysses"})
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	resp, err := srv.Client().Get(srv.URL + "/api/v1/catalog/items/not-a-uuid")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRegistrationIsRateLimited(t *testing.T) {
	srv := setupTestServer(t, rate.NewLimiter(rate.Every(time.Hour), 1))
	ctx := context.Background()
	anonymous := client.New(srv.URL, srv.Client())

	_, err := anonymous.RegisterPatron(ctx, "first@example.org", "First", "regular")
	require.NoError(t, err)
	_, err = anonymous.RegisterPatron(ctx, "second@example.org", "Second", "regular")
	assert.Equal(t, http.StatusTooManyRequests, statusOf(t, err))
}

// TestCheckoutFlow drives a whole day at the desk through the API: copies
// arrive with an order, go out on loan and are set aside for a hold on return.
func TestCheckoutFlow(t *testing.T) {
	srv := setupTestServer(t, nil)
	ctx := context.Background()
	c, admin := login(t, srv)

	branch, err := c.OpenBranch(ctx, "Central", "1 Library Way")
	require.NoError(t, err)
	_, err = c.AssignStaffToBranch(ctx, admin.ID, branch.ID)
	require.NoError(t, err)

	alice, err := c.RegisterPatron(ctx, "alice@example.org", "Alice", "regular")
	require.NoError(t, err)
	bob, err := c.RegisterPatron(ctx, "bob@example.org", "Bob", "premium")
	require.NoError(t, err)

	item, err := c.CatalogItem(ctx, catalog.ItemInput{
		Title:  "Pride and Prejudice",
		Author: "Jane Austen",
		ISBN:   "9780141439518",
	})
	require.NoError(t, err)

	order, err := c.CreateOrder(ctx, uuid.New())
	require.NoError(t, err)
	_, err = c.AddOrderLine(ctx, order.ID, item.ID, 1, 1299)
	require.NoError(t, err)
	order, err = c.ReceiveOrder(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, acquisitions.OrderReceived, order.Status)

	copies, err := c.ListCopies(ctx, item.ID)
	require.NoError(t, err)
	require.Len(t, copies, 1)
	cp := copies[0]
	assert.Equal(t, branch.ID, cp.BranchID)
	assert.Equal(t, catalog.CopyAvailable, cp.Status)

	loan, err := c.Checkout(ctx, cp.ID, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanActive, loan.Status)
	assert.Equal(t, admin.ID, loan.StaffOutID)

	_, err = c.Checkout(ctx, cp.ID, bob.ID)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	hold, err := c.PlaceHold(ctx, item.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.HoldPending, hold.Status)

	returned, err := c.Return(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.LoanReturned, returned.Status)

	hold, err = c.GetHold(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, circulation.HoldFulfilled, hold.Status)
	require.NotNil(t, hold.CopyID)
	assert.Equal(t, cp.ID, *hold.CopyID)

	reserved, err := c.GetCopy(ctx, cp.ID)
	require.NoError(t, err)
	assert.Equal(t, catalog.CopyReserved, reserved.Status)

	_, err = c.Checkout(ctx, cp.ID, alice.ID)
	assert.Equal(t, http.StatusConflict, statusOf(t, err))

	pickup, err := c.Checkout(ctx, cp.ID, bob.ID)
	require.NoError(t, err)
	hold, err = c.GetHold(ctx, hold.ID)
	require.NoError(t, err)
	require.NotNil(t, hold.LoanID)
	assert.Equal(t, pickup.ID, *hold.LoanID)
}
