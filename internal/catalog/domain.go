// internal/catalog/domain.go
package catalog

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"libraryflow/internal/events"
)

// Item represents a book or other bibliographic record.
type Item struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Author        string    `json:"author" db:"author"`
	ISBN          string    `json:"isbn" db:"isbn"`
	Publisher     string    `json:"publisher,omitempty" db:"publisher"`
	PublishedYear int       `json:"published_year,omitempty" db:"published_year"`
	Version       int       `json:"version" db:"version"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// ItemInput holds the bibliographic fields of a new item.
type ItemInput struct {
	Title         string `json:"title"`
	Author        string `json:"author"`
	ISBN          string `json:"isbn"`
	Publisher     string `json:"publisher"`
	PublishedYear int    `json:"published_year"`
}

// NewItem creates an item and records ItemCataloged.
func NewItem(rec events.Recorder, in ItemInput, now time.Time) (*Item, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return nil, ErrInvalidTitle
	}
	item := &Item{
		ID:            uuid.New(),
		Title:         title,
		Author:        strings.TrimSpace(in.Author),
		ISBN:          strings.TrimSpace(in.ISBN),
		Publisher:     strings.TrimSpace(in.Publisher),
		PublishedYear: in.PublishedYear,
		Version:       1,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	rec.Record(events.ItemCataloged{ItemID: item.ID, Title: item.Title, ISBN: item.ISBN})
	return item, nil
}

// CopyStatus is the circulation state of a physical copy.
type CopyStatus string

const (
	CopyAvailable CopyStatus = "AVAILABLE"
	CopyOnLoan    CopyStatus = "ON_LOAN"
	CopyReserved  CopyStatus = "RESERVED"
	CopyLost      CopyStatus = "LOST"
	CopyWithdrawn CopyStatus = "WITHDRAWN"
)

// Copy is one physical exemplar of an item held by a branch.
type Copy struct {
	ID              uuid.UUID  `json:"id" db:"id"`
	ItemID          uuid.UUID  `json:"item_id" db:"item_id"`
	BranchID        uuid.UUID  `json:"branch_id" db:"branch_id"`
	Barcode         string     `json:"barcode" db:"barcode"`
	Status          CopyStatus `json:"status" db:"status"`
	AcquisitionDate time.Time  `json:"acquisition_date" db:"acquisition_date"`
	Superseded      bool       `json:"superseded" db:"superseded"`
	Version         int        `json:"version" db:"version"`
	CreatedAt       time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at" db:"updated_at"`
}

// NewCopy creates an available copy and records CopyAdded.
func NewCopy(rec events.Recorder, item *Item, branchID uuid.UUID, barcode string, acquired, now time.Time) (*Copy, error) {
	if item == nil {
		return nil, ErrItemNotFound
	}
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, ErrInvalidBarcode
	}
	c := &Copy{
		ID:              uuid.New(),
		ItemID:          item.ID,
		BranchID:        branchID,
		Barcode:         barcode,
		Status:          CopyAvailable,
		AcquisitionDate: acquired,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	rec.Record(events.CopyAdded{
		CopyID:          c.ID,
		ItemID:          c.ItemID,
		BranchID:        c.BranchID,
		Barcode:         c.Barcode,
		AcquisitionDate: c.AcquisitionDate,
	})
	return c, nil
}

// IsOlderVersion reports whether a newer edition has superseded this copy.
func (c *Copy) IsOlderVersion() bool {
	return c.Superseded
}

// The status moves below mirror loan and hold transitions, which carry the
// events; the copy itself records nothing for them.

// Lend puts an available or reserved copy on loan.
func (c *Copy) Lend(now time.Time) error {
	if c.Status != CopyAvailable && c.Status != CopyReserved {
		return ErrCopyNotAvailable
	}
	c.setStatus(CopyOnLoan, now)
	return nil
}

// Release makes a copy on loan available again.
func (c *Copy) Release(now time.Time) error {
	if c.Status != CopyOnLoan {
		return ErrCopyNotOnLoan
	}
	c.setStatus(CopyAvailable, now)
	return nil
}

// Reserve sets an available copy aside for a hold.
func (c *Copy) Reserve(now time.Time) error {
	if c.Status != CopyAvailable {
		return ErrCopyNotAvailable
	}
	c.setStatus(CopyReserved, now)
	return nil
}

// Unreserve puts a reserved copy back on the shelf.
func (c *Copy) Unreserve(now time.Time) error {
	if c.Status != CopyReserved {
		return ErrCopyNotReserved
	}
	c.setStatus(CopyAvailable, now)
	return nil
}

// MarkLost flags a copy on loan as lost.
func (c *Copy) MarkLost(now time.Time) error {
	if c.Status != CopyOnLoan {
		return ErrCopyNotOnLoan
	}
	c.setStatus(CopyLost, now)
	return nil
}

// Withdraw takes an available or lost copy out of the collection.
func (c *Copy) Withdraw(rec events.Recorder, now time.Time) error {
	if c.Status != CopyAvailable && c.Status != CopyLost {
		return ErrCopyNotWithdrawable
	}
	c.setStatus(CopyWithdrawn, now)
	rec.Record(events.CopyWithdrawn{CopyID: c.ID, ItemID: c.ItemID})
	return nil
}

// MarkOlderVersion flags the copy as superseded by a newer edition.
func (c *Copy) MarkOlderVersion(rec events.Recorder, now time.Time) error {
	if c.Superseded {
		return ErrCopyAlreadySuperseded
	}
	c.Superseded = true
	c.touch(now)
	rec.Record(events.CopySuperseded{CopyID: c.ID, ItemID: c.ItemID})
	return nil
}

func (c *Copy) setStatus(s CopyStatus, now time.Time) {
	c.Status = s
	c.touch(now)
}

func (c *Copy) touch(now time.Time) {
	c.Version++
	c.UpdatedAt = now
}

// SerialStatus is the subscription state of a serial.
type SerialStatus string

const (
	SerialActive   SerialStatus = "ACTIVE"
	SerialInactive SerialStatus = "INACTIVE"
)

// Frequency is how often a serial publishes.
type Frequency string

const (
	FrequencyDaily     Frequency = "DAILY"
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyAnnual    Frequency = "ANNUAL"
)

// ParseFrequency accepts a frequency name in any case.
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyAnnual:
		return f, nil
	}
	return "", ErrInvalidFrequency
}

// Serial is a subscription to a periodical cataloged as an item.
type Serial struct {
	ID        uuid.UUID    `json:"id" db:"id"`
	Title     string       `json:"title" db:"title"`
	ISSN      string       `json:"issn" db:"issn"`
	ItemID    uuid.UUID    `json:"item_id" db:"item_id"`
	Frequency Frequency    `json:"frequency" db:"frequency"`
	Status    SerialStatus `json:"status" db:"status"`
	Version   int          `json:"version" db:"version"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

// NewSerial subscribes to a serial for an existing item. An empty title
// falls back to the item's title.
func NewSerial(rec events.Recorder, item *Item, title, issn string, freq Frequency, now time.Time) (*Serial, error) {
	if item == nil {
		return nil, ErrItemNotFound
	}
	if _, err := ParseFrequency(string(freq)); err != nil {
		return nil, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		title = item.Title
	}
	s := &Serial{
		ID:        uuid.New(),
		Title:     title,
		ISSN:      strings.TrimSpace(issn),
		ItemID:    item.ID,
		Frequency: freq,
		Status:    SerialActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	rec.Record(events.SerialSubscribed{
		SerialID:  s.ID,
		ItemID:    s.ItemID,
		Title:     s.Title,
		ISSN:      s.ISSN,
		Frequency: string(s.Frequency),
	})
	return s, nil
}

// Activate renews a lapsed subscription.
func (s *Serial) Activate(rec events.Recorder, now time.Time) error {
	if s.Status == SerialActive {
		return ErrSerialAlreadyActive
	}
	s.Status = SerialActive
	s.Version++
	s.UpdatedAt = now
	rec.Record(events.SerialActivated{SerialID: s.ID})
	return nil
}

// Deactivate ends an active subscription.
func (s *Serial) Deactivate(rec events.Recorder, now time.Time) error {
	if s.Status == SerialInactive {
		return ErrSerialAlreadyInactive
	}
	s.Status = SerialInactive
	s.Version++
	s.UpdatedAt = now
	rec.Record(events.SerialDeactivated{SerialID: s.ID})
	return nil
}

// IssueStatus is the processing state of a serial issue.
type IssueStatus string

const (
	IssueReceived  IssueStatus = "RECEIVED"
	IssueCataloged IssueStatus = "CATALOGED"
)

// SerialIssue is one received issue of a serial. It may exist before a
// physical copy has been cataloged for it.
type SerialIssue struct {
	ID          uuid.UUID   `json:"id" db:"id"`
	SerialID    uuid.UUID   `json:"serial_id" db:"serial_id"`
	CopyID      *uuid.UUID  `json:"copy_id,omitempty" db:"copy_id"`
	IssueNumber string      `json:"issue_number" db:"issue_number"`
	Status      IssueStatus `json:"status" db:"status"`
	Version     int         `json:"version" db:"version"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at" db:"updated_at"`
}

// NewSerialIssue records the arrival of an issue of an active serial.
func NewSerialIssue(rec events.Recorder, serial *Serial, issueNumber string, copyID *uuid.UUID, now time.Time) (*SerialIssue, error) {
	if serial == nil {
		return nil, ErrSerialNotFound
	}
	if serial.Status != SerialActive {
		return nil, ErrSerialInactive
	}
	issueNumber = strings.TrimSpace(issueNumber)
	if issueNumber == "" {
		return nil, ErrInvalidIssueNumber
	}
	issue := &SerialIssue{
		ID:          uuid.New(),
		SerialID:    serial.ID,
		IssueNumber: issueNumber,
		Status:      IssueReceived,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if copyID != nil {
		id := *copyID
		issue.CopyID = &id
		issue.Status = IssueCataloged
	}
	rec.Record(events.SerialIssueReceived{
		IssueID:     issue.ID,
		SerialID:    issue.SerialID,
		IssueNumber: issue.IssueNumber,
		CopyID:      issue.CopyID,
	})
	return issue, nil
}

// AttachCopy links the physical copy cataloged for this issue. An issue
// gets at most one copy.
func (i *SerialIssue) AttachCopy(rec events.Recorder, copyID uuid.UUID, now time.Time) error {
	if i.CopyID != nil {
		return ErrIssueAlreadyCataloged
	}
	i.CopyID = &copyID
	i.Status = IssueCataloged
	i.Version++
	i.UpdatedAt = now
	rec.Record(events.SerialIssueCataloged{IssueID: i.ID, SerialID: i.SerialID, CopyID: copyID})
	return nil
}
