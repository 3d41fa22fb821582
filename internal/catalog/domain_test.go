package catalog

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryflow/internal/apperr"
	"libraryflow/internal/events"
)

var now = time.Date(2024, time.January, 15, 9, 30, 0, 0, time.UTC)

func newSerial(t *testing.T) *Serial {
	t.Helper()
	item, err := NewItem(events.Discard, ItemInput{Title: "Nature"}, now)
	require.NoError(t, err)
	s, err := NewSerial(events.Discard, item, "", "0028-0836", FrequencyWeekly, now)
	require.NoError(t, err)
	return s
}

func TestSerialActivateGuard(t *testing.T) {
	s := newSerial(t)
	c := events.NewCollector()

	err := s.Activate(c, now)
	assert.ErrorIs(t, err, ErrSerialAlreadyActive)
	assert.ErrorIs(t, err, apperr.ErrInvariant)
	assert.Zero(t, c.Len(), "a rejected transition records nothing")
	assert.Equal(t, SerialActive, s.Status)
}

func TestSerialDeactivateGuard(t *testing.T) {
	s := newSerial(t)
	c := events.NewCollector()

	require.NoError(t, s.Deactivate(c, now))
	assert.Equal(t, SerialInactive, s.Status)

	err := s.Deactivate(c, now)
	assert.ErrorIs(t, err, ErrSerialAlreadyInactive)

	require.NoError(t, s.Activate(c, now))
	assert.Equal(t, SerialActive, s.Status)

	pending := c.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, events.KindSerialDeactivated, pending[0].Kind())
	assert.Equal(t, events.KindSerialActivated, pending[1].Kind())
	assert.Equal(t, s.ID, pending[0].AggregateID())
}

func TestNewSerialDefaultsTitleToItem(t *testing.T) {
	s := newSerial(t)
	assert.Equal(t, "Nature", s.Title)

	_, err := NewSerial(events.Discard, nil, "x", "", FrequencyDaily, now)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" monthly ")
	require.NoError(t, err)
	assert.Equal(t, FrequencyMonthly, f)

	_, err = ParseFrequency("fortnightly")
	assert.ErrorIs(t, err, ErrInvalidFrequency)
}

func TestSerialIssueRequiresActiveSerial(t *testing.T) {
	s := newSerial(t)
	require.NoError(t, s.Deactivate(events.Discard, now))

	_, err := NewSerialIssue(events.Discard, s, "42", nil, now)
	assert.ErrorIs(t, err, ErrSerialInactive)
}

func TestSerialIssueAttachCopyOnce(t *testing.T) {
	s := newSerial(t)
	c := events.NewCollector()

	issue, err := NewSerialIssue(c, s, "Vol. 7 No. 2", nil, now)
	require.NoError(t, err)
	assert.Equal(t, IssueReceived, issue.Status)
	assert.Nil(t, issue.CopyID)

	copyID := uuid.New()
	require.NoError(t, issue.AttachCopy(c, copyID, now))
	assert.Equal(t, IssueCataloged, issue.Status)
	assert.ErrorIs(t, issue.AttachCopy(c, uuid.New(), now), ErrIssueAlreadyCataloged)
	assert.Equal(t, copyID, *issue.CopyID)
	assert.Equal(t, 2, c.Len())
}

func TestNewItemRequiresTitle(t *testing.T) {
	_, err := NewItem(events.Discard, ItemInput{Title: "   "}, now)
	assert.ErrorIs(t, err, ErrInvalidTitle)
}

func TestCopyTransitions(t *testing.T) {
	item, err := NewItem(events.Discard, ItemInput{Title: "Middlemarch"}, now)
	require.NoError(t, err)
	cp, err := NewCopy(events.Discard, item, uuid.New(), "LF000000000001", now, now)
	require.NoError(t, err)
	assert.Equal(t, CopyAvailable, cp.Status)

	require.NoError(t, cp.Lend(now))
	assert.ErrorIs(t, cp.Lend(now), ErrCopyNotAvailable)
	assert.ErrorIs(t, cp.Withdraw(events.Discard, now), ErrCopyNotWithdrawable)

	require.NoError(t, cp.Release(now))
	assert.ErrorIs(t, cp.Unreserve(now), ErrCopyNotReserved)
	require.NoError(t, cp.Reserve(now))
	require.NoError(t, cp.Unreserve(now))
	assert.Equal(t, CopyAvailable, cp.Status)
	require.NoError(t, cp.Reserve(now))
	require.NoError(t, cp.Lend(now), "a reserved copy can be lent to its holder")
	require.NoError(t, cp.MarkLost(now))

	c := events.NewCollector()
	require.NoError(t, cp.Withdraw(c, now))
	assert.Equal(t, CopyWithdrawn, cp.Status)
	require.Equal(t, 1, c.Len())
	assert.Equal(t, events.KindCopyWithdrawn, c.Pending()[0].Kind())
}

func TestNewCopyValidation(t *testing.T) {
	_, err := NewCopy(events.Discard, nil, uuid.New(), "B1", now, now)
	assert.ErrorIs(t, err, ErrItemNotFound)

	item, err := NewItem(events.Discard, ItemInput{Title: "Emma"}, now)
	require.NoError(t, err)
	_, err = NewCopy(events.Discard, item, uuid.New(), " ", now, now)
	assert.ErrorIs(t, err, ErrInvalidBarcode)
}

func TestMarkOlderVersionOnce(t *testing.T) {
	item, err := NewItem(events.Discard, ItemInput{Title: "Ulysses"}, now)
	require.NoError(t, err)
	cp, err := NewCopy(events.Discard, item, uuid.New(), "B2", now, now)
	require.NoError(t, err)

	assert.False(t, cp.IsOlderVersion())
	require.NoError(t, cp.MarkOlderVersion(events.Discard, now))
	assert.True(t, cp.IsOlderVersion())
	assert.ErrorIs(t, cp.MarkOlderVersion(events.Discard, now), ErrCopyAlreadySuperseded)
}

func TestNewBarcodeShape(t *testing.T) {
	b := NewBarcode()
	assert.Len(t, b, 14)
	assert.Regexp(t, `^LF[0-9A-F]{12}$`, b)
	assert.NotEqual(t, b, NewBarcode())
}
