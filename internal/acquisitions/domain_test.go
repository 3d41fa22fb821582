package acquisitions

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"libraryflow/internal/events"
)

var orderDay = time.Date(2024, time.July, 8, 10, 0, 0, 0, time.UTC)

func TestOrderLines(t *testing.T) {
	o := NewOrder(events.Discard, uuid.New(), uuid.New(), orderDay)

	_, err := o.AddLine(events.Discard, uuid.New(), 0, 100, orderDay)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = o.AddLine(events.Discard, uuid.New(), 1, -1, orderDay)
	assert.ErrorIs(t, err, ErrInvalidUnitPrice)

	line, err := o.AddLine(events.Discard, uuid.New(), 3, 1250, orderDay)
	require.NoError(t, err)
	assert.Equal(t, o.ID, line.OrderID)
	assert.Equal(t, LinePending, line.Status)
	_, err = o.AddLine(events.Discard, uuid.New(), 2, 500, orderDay)
	require.NoError(t, err)

	assert.Equal(t, int64(3*1250+2*500), o.TotalCents())
}

func TestReceiveOrder(t *testing.T) {
	o := NewOrder(events.Discard, uuid.New(), uuid.New(), orderDay)
	assert.ErrorIs(t, o.Receive(events.Discard, uuid.New(), orderDay), ErrEmptyOrder)

	item := uuid.New()
	_, err := o.AddLine(events.Discard, item, 3, 999, orderDay)
	require.NoError(t, err)

	receiver := uuid.New()
	received := orderDay.AddDate(0, 0, 9)
	c := events.NewCollector()
	require.NoError(t, o.Receive(c, receiver, received))

	assert.Equal(t, OrderReceived, o.Status)
	require.NotNil(t, o.ReceivedDate)
	assert.Equal(t, received, *o.ReceivedDate)
	assert.Equal(t, 3, o.Lines[0].ReceivedQuantity)
	assert.Equal(t, LineReceived, o.Lines[0].Status)

	require.Equal(t, 1, c.Len())
	e := c.Pending()[0].(events.AcquisitionOrderReceived)
	assert.Equal(t, receiver, e.StaffID)
	assert.Equal(t, received, e.ReceivedDate)
	assert.Equal(t, []events.ReceivedLine{{LineID: o.Lines[0].ID, ItemID: item, Quantity: 3}}, e.Lines)

	assert.ErrorIs(t, o.Receive(events.Discard, receiver, received), ErrOrderNotPending)
	_, err = o.AddLine(events.Discard, item, 1, 1, received)
	assert.ErrorIs(t, err, ErrOrderNotPending)
	assert.ErrorIs(t, o.Cancel(events.Discard, received), ErrOrderNotPending)
}

func TestReceivedEventDoesNotAliasOrder(t *testing.T) {
	o := NewOrder(events.Discard, uuid.New(), uuid.New(), orderDay)
	_, err := o.AddLine(events.Discard, uuid.New(), 2, 100, orderDay)
	require.NoError(t, err)

	c := events.NewCollector()
	require.NoError(t, o.Receive(c, uuid.New(), orderDay))
	e := c.Pending()[0].(events.AcquisitionOrderReceived)

	o.Lines[0].ItemID = uuid.New()
	assert.NotEqual(t, o.Lines[0].ItemID, e.Lines[0].ItemID)
}

func TestOverReceiving(t *testing.T) {
	line := OrderLine{Quantity: 2, ReceivedQuantity: 1}
	assert.ErrorIs(t, line.receive(2), ErrOverReceived)
	require.NoError(t, line.receive(1))
	assert.Equal(t, LineReceived, line.Status)
}

func TestCancelOrder(t *testing.T) {
	o := NewOrder(events.Discard, uuid.New(), uuid.New(), orderDay)
	c := events.NewCollector()
	require.NoError(t, o.Cancel(c, orderDay))
	assert.Equal(t, OrderCancelled, o.Status)
	assert.Equal(t, events.KindAcquisitionOrderCancelled, c.Pending()[0].Kind())
}
