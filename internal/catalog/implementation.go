// internal/catalog/implementation.go
package catalog

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"libraryflow/internal/events"
)

// maxBarcodeAttempts bounds the retries when a generated barcode collides.
const maxBarcodeAttempts = 8

// BarcodeGenerator returns a candidate barcode for a new copy.
type BarcodeGenerator func() string

// Clock returns the current time.
type Clock func() time.Time

// NewBarcode derives a barcode from a random UUID.
func NewBarcode() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "LF" + strings.ToUpper(raw[:12])
}

// service implements the Service interface.
type service struct {
	repos    Repositories
	bus      *events.Bus
	barcodes BarcodeGenerator
	clock    Clock
}

// NewService creates a new catalog service instance.
func NewService(repos Repositories, bus *events.Bus, barcodes BarcodeGenerator, clock Clock) Service {
	if barcodes == nil {
		barcodes = NewBarcode
	}
	if clock == nil {
		clock = time.Now
	}
	return &service{
		repos:    repos,
		bus:      bus,
		barcodes: barcodes,
		clock:    clock,
	}
}

// CatalogItem adds a bibliographic record with a unique title.
func (s *service) CatalogItem(ctx context.Context, in ItemInput) (*Item, error) {
	exists, err := s.repos.Items.ExistsByTitle(ctx, strings.TrimSpace(in.Title))
	if err != nil {
		return nil, fmt.Errorf("check item title: %w", err)
	}
	if exists {
		return nil, ErrDuplicateTitle
	}

	c := events.NewCollector()
	item, err := NewItem(c, in, s.clock())
	if err != nil {
		return nil, err
	}
	if item, err = s.repos.Items.Save(ctx, item); err != nil {
		return nil, fmt.Errorf("save item: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return item, nil
}

// GetItem retrieves an item from the catalog by its ID.
func (s *service) GetItem(ctx context.Context, id uuid.UUID) (*Item, error) {
	item, err := s.repos.Items.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if item == nil {
		return nil, ErrItemNotFound
	}
	return item, nil
}

func (s *service) ListItems(ctx context.Context) ([]*Item, error) {
	items, err := s.repos.Items.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// AddCopyToItem registers one physical copy. An empty barcode is generated.
func (s *service) AddCopyToItem(ctx context.Context, itemID, branchID uuid.UUID, barcode string, acquired time.Time) (*Copy, error) {
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		if barcode, err = s.freshBarcode(ctx, nil); err != nil {
			return nil, err
		}
	} else {
		exists, err := s.repos.Copies.ExistsByBarcode(ctx, barcode)
		if err != nil {
			return nil, fmt.Errorf("check barcode: %w", err)
		}
		if exists {
			return nil, ErrDuplicateBarcode
		}
	}

	now := s.clock()
	if acquired.IsZero() {
		acquired = now
	}
	c := events.NewCollector()
	cp, err := NewCopy(c, item, branchID, barcode, acquired, now)
	if err != nil {
		return nil, err
	}
	if cp, err = s.repos.Copies.Save(ctx, cp); err != nil {
		return nil, fmt.Errorf("save copy: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return cp, nil
}

// AddCopiesFromAcquisition creates quantity copies of an item, each with its
// own generated barcode, all acquired on the given date.
func (s *service) AddCopiesFromAcquisition(ctx context.Context, itemID, branchID uuid.UUID, quantity int, acquired time.Time) ([]*Copy, error) {
	if quantity <= 0 {
		return nil, ErrInvalidQuantity
	}
	item, err := s.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	now := s.clock()
	c := events.NewCollector()
	issued := make(map[string]struct{}, quantity)
	copies := make([]*Copy, 0, quantity)
	for range quantity {
		barcode, err := s.freshBarcode(ctx, issued)
		if err != nil {
			return nil, err
		}
		issued[barcode] = struct{}{}

		cp, err := NewCopy(c, item, branchID, barcode, acquired, now)
		if err != nil {
			return nil, err
		}
		if cp, err = s.repos.Copies.Save(ctx, cp); err != nil {
			return nil, fmt.Errorf("save copy: %w", err)
		}
		copies = append(copies, cp)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return copies, nil
}

// freshBarcode draws barcodes until one is unused both in the repository and
// in the batch being created.
func (s *service) freshBarcode(ctx context.Context, batch map[string]struct{}) (string, error) {
	for range maxBarcodeAttempts {
		candidate := s.barcodes()
		if _, taken := batch[candidate]; taken {
			continue
		}
		exists, err := s.repos.Copies.ExistsByBarcode(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check barcode: %w", err)
		}
		if !exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w after %d attempts", ErrDuplicateBarcode, maxBarcodeAttempts)
}

func (s *service) GetCopy(ctx context.Context, id uuid.UUID) (*Copy, error) {
	cp, err := s.repos.Copies.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get copy: %w", err)
	}
	if cp == nil {
		return nil, ErrCopyNotFound
	}
	return cp, nil
}

func (s *service) ListCopies(ctx context.Context, itemID uuid.UUID) ([]*Copy, error) {
	if _, err := s.GetItem(ctx, itemID); err != nil {
		return nil, err
	}
	copies, err := s.repos.Copies.FindByItem(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("list copies: %w", err)
	}
	return copies, nil
}

func (s *service) WithdrawCopy(ctx context.Context, id uuid.UUID) (*Copy, error) {
	return s.updateCopy(ctx, id, func(c events.Recorder, cp *Copy, now time.Time) error {
		return cp.Withdraw(c, now)
	})
}

func (s *service) MarkCopyOlderVersion(ctx context.Context, id uuid.UUID) (*Copy, error) {
	return s.updateCopy(ctx, id, func(c events.Recorder, cp *Copy, now time.Time) error {
		return cp.MarkOlderVersion(c, now)
	})
}

func (s *service) updateCopy(ctx context.Context, id uuid.UUID, apply func(events.Recorder, *Copy, time.Time) error) (*Copy, error) {
	cp, err := s.GetCopy(ctx, id)
	if err != nil {
		return nil, err
	}
	c := events.NewCollector()
	if err := apply(c, cp, s.clock()); err != nil {
		return nil, err
	}
	if cp, err = s.repos.Copies.Save(ctx, cp); err != nil {
		return nil, fmt.Errorf("save copy: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return cp, nil
}

// SubscribeSerial starts an active subscription for an existing item.
func (s *service) SubscribeSerial(ctx context.Context, itemID uuid.UUID, title, issn, frequency string) (*Serial, error) {
	freq, err := ParseFrequency(frequency)
	if err != nil {
		return nil, err
	}
	item, err := s.repos.Items.GetByID(ctx, itemID)
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}

	c := events.NewCollector()
	serial, err := NewSerial(c, item, title, issn, freq, s.clock())
	if err != nil {
		return nil, err
	}
	if serial, err = s.repos.Serials.Save(ctx, serial); err != nil {
		return nil, fmt.Errorf("save serial: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return serial, nil
}

// RenewSerialSubscription reactivates an inactive serial.
func (s *service) RenewSerialSubscription(ctx context.Context, id uuid.UUID) (*Serial, error) {
	return s.updateSerial(ctx, id, (*Serial).Activate)
}

// UnsubscribeSerial deactivates an active serial.
func (s *service) UnsubscribeSerial(ctx context.Context, id uuid.UUID) (*Serial, error) {
	return s.updateSerial(ctx, id, (*Serial).Deactivate)
}

func (s *service) updateSerial(ctx context.Context, id uuid.UUID, apply func(*Serial, events.Recorder, time.Time) error) (*Serial, error) {
	serial, err := s.GetSerial(ctx, id)
	if err != nil {
		return nil, err
	}
	c := events.NewCollector()
	if err := apply(serial, c, s.clock()); err != nil {
		return nil, err
	}
	if serial, err = s.repos.Serials.Save(ctx, serial); err != nil {
		return nil, fmt.Errorf("save serial: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return serial, nil
}

func (s *service) GetSerial(ctx context.Context, id uuid.UUID) (*Serial, error) {
	serial, err := s.repos.Serials.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get serial: %w", err)
	}
	if serial == nil {
		return nil, ErrSerialNotFound
	}
	return serial, nil
}

func (s *service) ListSerials(ctx context.Context) ([]*Serial, error) {
	serials, err := s.repos.Serials.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list serials: %w", err)
	}
	return serials, nil
}

// ReceiveSerialIssue logs an arrived issue, optionally with its copy.
func (s *service) ReceiveSerialIssue(ctx context.Context, serialID uuid.UUID, issueNumber string, copyID *uuid.UUID) (*SerialIssue, error) {
	serial, err := s.GetSerial(ctx, serialID)
	if err != nil {
		return nil, err
	}
	if copyID != nil {
		if _, err := s.GetCopy(ctx, *copyID); err != nil {
			return nil, err
		}
	}

	c := events.NewCollector()
	issue, err := NewSerialIssue(c, serial, issueNumber, copyID, s.clock())
	if err != nil {
		return nil, err
	}
	if issue, err = s.repos.Issues.Save(ctx, issue); err != nil {
		return nil, fmt.Errorf("save serial issue: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return issue, nil
}

// AttachCopyToIssue links a cataloged copy to an issue received without one.
func (s *service) AttachCopyToIssue(ctx context.Context, issueID, copyID uuid.UUID) (*SerialIssue, error) {
	issue, err := s.repos.Issues.GetByID(ctx, issueID)
	if err != nil {
		return nil, fmt.Errorf("get serial issue: %w", err)
	}
	if issue == nil {
		return nil, ErrSerialIssueNotFound
	}
	if _, err := s.GetCopy(ctx, copyID); err != nil {
		return nil, err
	}

	c := events.NewCollector()
	if err := issue.AttachCopy(c, copyID, s.clock()); err != nil {
		return nil, err
	}
	if issue, err = s.repos.Issues.Save(ctx, issue); err != nil {
		return nil, fmt.Errorf("save serial issue: %w", err)
	}
	if err := s.bus.Flush(ctx, c); err != nil {
		return nil, err
	}
	return issue, nil
}

func (s *service) ListSerialIssues(ctx context.Context, serialID uuid.UUID) ([]*SerialIssue, error) {
	if _, err := s.GetSerial(ctx, serialID); err != nil {
		return nil, err
	}
	issues, err := s.repos.Issues.FindBySerial(ctx, serialID)
	if err != nil {
		return nil, fmt.Errorf("list serial issues: %w", err)
	}
	return issues, nil
}
