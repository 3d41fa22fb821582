package events

import (
	"time"

	"github.com/google/uuid"
)

// ItemCataloged is recorded when a bibliographic item is added to the catalog.
type ItemCataloged struct {
	ItemID uuid.UUID `json:"item_id"`
	Title  string    `json:"title"`
	ISBN   string    `json:"isbn"`
}

func (ItemCataloged) Kind() Kind { return KindItemCataloged }
func (e ItemCataloged) AggregateID() uuid.UUID { return e.ItemID }

// CopyAdded is recorded when a physical copy of an item enters a branch.
type CopyAdded struct {
	CopyID          uuid.UUID `json:"copy_id"`
	ItemID          uuid.UUID `json:"item_id"`
	BranchID        uuid.UUID `json:"branch_id"`
	Barcode         string    `json:"barcode"`
	AcquisitionDate time.Time `json:"acquisition_date"`
}

func (CopyAdded) Kind() Kind { return KindCopyAdded }
func (e CopyAdded) AggregateID() uuid.UUID { return e.CopyID }

// CopyWithdrawn is recorded when a copy leaves circulation for good.
type CopyWithdrawn struct {
	CopyID uuid.UUID `json:"copy_id"`
	ItemID uuid.UUID `json:"item_id"`
}

func (CopyWithdrawn) Kind() Kind { return KindCopyWithdrawn }
func (e CopyWithdrawn) AggregateID() uuid.UUID { return e.CopyID }

// CopySuperseded is recorded when a copy is flagged as an older version.
type CopySuperseded struct {
	CopyID uuid.UUID `json:"copy_id"`
	ItemID uuid.UUID `json:"item_id"`
}

func (CopySuperseded) Kind() Kind { return KindCopySuperseded }
func (e CopySuperseded) AggregateID() uuid.UUID { return e.CopyID }

// SerialSubscribed is recorded when the library subscribes to a serial.
type SerialSubscribed struct {
	SerialID  uuid.UUID `json:"serial_id"`
	ItemID    uuid.UUID `json:"item_id"`
	Title     string    `json:"title"`
	ISSN      string    `json:"issn"`
	Frequency string    `json:"frequency"`
}

func (SerialSubscribed) Kind() Kind { return KindSerialSubscribed }
func (e SerialSubscribed) AggregateID() uuid.UUID { return e.SerialID }

// SerialActivated is recorded when a lapsed subscription is renewed.
type SerialActivated struct {
	SerialID uuid.UUID `json:"serial_id"`
}

func (SerialActivated) Kind() Kind { return KindSerialActivated }
func (e SerialActivated) AggregateID() uuid.UUID { return e.SerialID }

// SerialDeactivated is recorded when a subscription is cancelled.
type SerialDeactivated struct {
	SerialID uuid.UUID `json:"serial_id"`
}

func (SerialDeactivated) Kind() Kind { return KindSerialDeactivated }
func (e SerialDeactivated) AggregateID() uuid.UUID { return e.SerialID }

// SerialIssueReceived is recorded when an issue of a serial arrives.
type SerialIssueReceived struct {
	IssueID     uuid.UUID  `json:"issue_id"`
	SerialID    uuid.UUID  `json:"serial_id"`
	IssueNumber string     `json:"issue_number"`
	CopyID      *uuid.UUID `json:"copy_id,omitempty"`
}

func (SerialIssueReceived) Kind() Kind { return KindSerialIssueReceived }
func (e SerialIssueReceived) AggregateID() uuid.UUID { return e.IssueID }

// SerialIssueCataloged is recorded when a physical copy is attached to an issue.
type SerialIssueCataloged struct {
	IssueID  uuid.UUID `json:"issue_id"`
	SerialID uuid.UUID `json:"serial_id"`
	CopyID   uuid.UUID `json:"copy_id"`
}

func (SerialIssueCataloged) Kind() Kind { return KindSerialIssueCataloged }
func (e SerialIssueCataloged) AggregateID() uuid.UUID { return e.IssueID }
