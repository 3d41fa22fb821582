package events

import (
	"slices"
	"time"

	"github.com/google/uuid"
)

// AcquisitionOrderCreated is recorded when staff open a purchase order.
type AcquisitionOrderCreated struct {
	OrderID   uuid.UUID `json:"order_id"`
	VendorID  uuid.UUID `json:"vendor_id"`
	StaffID   uuid.UUID `json:"staff_id"`
	OrderDate time.Time `json:"order_date"`
}

func (AcquisitionOrderCreated) Kind() Kind { return KindAcquisitionOrderCreated }
func (e AcquisitionOrderCreated) AggregateID() uuid.UUID { return e.OrderID }

// AcquisitionOrderLineAdded is recorded when an item is added to an order.
type AcquisitionOrderLineAdded struct {
	OrderID        uuid.UUID `json:"order_id"`
	LineID         uuid.UUID `json:"line_id"`
	ItemID         uuid.UUID `json:"item_id"`
	Quantity       int       `json:"quantity"`
	UnitPriceCents int64     `json:"unit_price_cents"`
}

func (AcquisitionOrderLineAdded) Kind() Kind { return KindAcquisitionOrderLineAdded }
func (e AcquisitionOrderLineAdded) AggregateID() uuid.UUID { return e.OrderID }

// ReceivedLine is one line of a received order.
type ReceivedLine struct {
	LineID   uuid.UUID `json:"line_id"`
	ItemID   uuid.UUID `json:"item_id"`
	Quantity int       `json:"quantity"`
}

// AcquisitionOrderReceived is recorded when an order is delivered.
type AcquisitionOrderReceived struct {
	OrderID      uuid.UUID      `json:"order_id"`
	StaffID      uuid.UUID      `json:"staff_id"`
	ReceivedDate time.Time      `json:"received_date"`
	Lines        []ReceivedLine `json:"lines"`
}

// NewAcquisitionOrderReceived copies lines so the event never aliases the order.
func NewAcquisitionOrderReceived(orderID, staffID uuid.UUID, received time.Time, lines []ReceivedLine) AcquisitionOrderReceived {
	return AcquisitionOrderReceived{
		OrderID:      orderID,
		StaffID:      staffID,
		ReceivedDate: received,
		Lines:        slices.Clone(lines),
	}
}

func (AcquisitionOrderReceived) Kind() Kind { return KindAcquisitionOrderReceived }
func (e AcquisitionOrderReceived) AggregateID() uuid.UUID { return e.OrderID }

// AcquisitionOrderCancelled is recorded when a pending order is abandoned.
type AcquisitionOrderCancelled struct {
	OrderID uuid.UUID `json:"order_id"`
}

func (AcquisitionOrderCancelled) Kind() Kind { return KindAcquisitionOrderCancelled }
func (e AcquisitionOrderCancelled) AggregateID() uuid.UUID { return e.OrderID }
