// Package acquisitions tracks purchase orders for new copies. Receiving an
// order is what adds the copies to the catalog, through the
// AcquisitionOrderReceived event.
package acquisitions

import (
	"time"

	"github.com/google/uuid"

	"libraryflow/internal/events"
)

// OrderStatus is the state of an acquisition order.
type OrderStatus string

const (
	OrderPending   OrderStatus = "PENDING"
	OrderReceived  OrderStatus = "RECEIVED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// LineStatus is the delivery state of one order line.
type LineStatus string

const (
	LinePending  LineStatus = "PENDING"
	LineReceived LineStatus = "RECEIVED"
)

// Order is a purchase of copies from a vendor.
type Order struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	VendorID     uuid.UUID   `json:"vendor_id" db:"vendor_id"`
	StaffID      uuid.UUID   `json:"staff_id" db:"staff_id"`
	OrderDate    time.Time   `json:"order_date" db:"order_date"`
	ReceivedDate *time.Time  `json:"received_date,omitempty" db:"received_date"`
	Status       OrderStatus `json:"status" db:"status"`
	Lines        []OrderLine `json:"lines" db:"-"`
	Version      int         `json:"version" db:"version"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

// OrderLine is a quantity of one item on an order.
type OrderLine struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	OrderID          uuid.UUID  `json:"order_id" db:"order_id"`
	ItemID           uuid.UUID  `json:"item_id" db:"item_id"`
	UnitPriceCents   int64      `json:"unit_price_cents" db:"unit_price_cents"`
	Quantity         int        `json:"quantity" db:"quantity"`
	ReceivedQuantity int        `json:"received_quantity" db:"received_quantity"`
	Status           LineStatus `json:"status" db:"status"`
}

// NewOrder opens a pending order placed by staffID.
func NewOrder(rec events.Recorder, vendorID, staffID uuid.UUID, now time.Time) *Order {
	o := &Order{
		ID:        uuid.New(),
		VendorID:  vendorID,
		StaffID:   staffID,
		OrderDate: now,
		Status:    OrderPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec.Record(events.AcquisitionOrderCreated{
		OrderID:   o.ID,
		VendorID:  o.VendorID,
		StaffID:   o.StaffID,
		OrderDate: o.OrderDate,
	})
	return o
}

// AddLine orders quantity copies of an item. Lines are only added while the
// order is pending.
func (o *Order) AddLine(rec events.Recorder, itemID uuid.UUID, quantity int, unitPriceCents int64, now time.Time) (*OrderLine, error) {
	if o.Status != OrderPending {
		return nil, ErrOrderNotPending
	}
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	if unitPriceCents < 0 {
		return nil, ErrInvalidUnitPrice
	}
	o.Lines = append(o.Lines, OrderLine{
		ID:             uuid.New(),
		OrderID:        o.ID,
		ItemID:         itemID,
		UnitPriceCents: unitPriceCents,
		Quantity:       quantity,
		Status:         LinePending,
	})
	o.touch(now)
	line := &o.Lines[len(o.Lines)-1]
	rec.Record(events.AcquisitionOrderLineAdded{
		OrderID:        o.ID,
		LineID:         line.ID,
		ItemID:         line.ItemID,
		Quantity:       line.Quantity,
		UnitPriceCents: line.UnitPriceCents,
	})
	return line, nil
}

// Receive marks the whole delivery as arrived and records
// AcquisitionOrderReceived with the quantity received on every line.
func (o *Order) Receive(rec events.Recorder, receivedBy uuid.UUID, now time.Time) error {
	if o.Status != OrderPending {
		return ErrOrderNotPending
	}
	if len(o.Lines) == 0 {
		return ErrEmptyOrder
	}

	received := make([]events.ReceivedLine, 0, len(o.Lines))
	for i := range o.Lines {
		line := &o.Lines[i]
		qty := line.Quantity - line.ReceivedQuantity
		if err := line.receive(qty); err != nil {
			return err
		}
		received = append(received, events.ReceivedLine{LineID: line.ID, ItemID: line.ItemID, Quantity: qty})
	}

	date := now
	o.ReceivedDate = &date
	o.Status = OrderReceived
	o.touch(now)
	rec.Record(events.NewAcquisitionOrderReceived(o.ID, receivedBy, date, received))
	return nil
}

func (o *Order) Cancel(rec events.Recorder, now time.Time) error {
	if o.Status != OrderPending {
		return ErrOrderNotPending
	}
	o.Status = OrderCancelled
	o.touch(now)
	rec.Record(events.AcquisitionOrderCancelled{OrderID: o.ID})
	return nil
}

// TotalCents is the price of every ordered copy.
func (o *Order) TotalCents() int64 {
	var total int64
	for _, l := range o.Lines {
		total += l.UnitPriceCents * int64(l.Quantity)
	}
	return total
}

func (o *Order) touch(now time.Time) {
	o.Version++
	o.UpdatedAt = now
}

func (l *OrderLine) receive(qty int) error {
	if qty < 0 || l.ReceivedQuantity+qty > l.Quantity {
		return ErrOverReceived
	}
	l.ReceivedQuantity += qty
	if l.ReceivedQuantity == l.Quantity {
		l.Status = LineReceived
	}
	return nil
}
