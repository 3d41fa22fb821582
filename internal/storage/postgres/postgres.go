// Package postgres stores every aggregate in PostgreSQL.
//
// Queries are built with goqu and executed through sqlx. Each table keeps a
// seq column so listings come back in insertion order, matching the memory
// adapter.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"libraryflow/internal/acquisitions"
	"libraryflow/internal/catalog"
	"libraryflow/internal/circulation"
	"libraryflow/internal/membership"
	"libraryflow/pkg/eventstore"
)

var dialect = goqu.Dialect("postgres")

// PoolConfig tunes the connection pool.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPool returns the pool settings used when none are configured.
func DefaultPool() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    50,
		MaxIdleConns:    10,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// Open connects to dsn and verifies the connection.
func Open(ctx context.Context, dsn string, pool PoolConfig) (*sqlx.DB, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// Migrate creates every table, including the event journal. It is safe to
// run repeatedly.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if err := eventstore.NewEventStore(db.DB).Migrate(ctx); err != nil {
		return err
	}
	return nil
}

const schema = `
CREATE TABLE IF NOT EXISTS items (
	seq            BIGSERIAL,
	id             UUID PRIMARY KEY,
	title          TEXT        NOT NULL,
	author         TEXT        NOT NULL DEFAULT '',
	isbn           TEXT        NOT NULL DEFAULT '',
	publisher      TEXT        NOT NULL DEFAULT '',
	published_year INT         NOT NULL DEFAULT 0,
	version        INT         NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS items_title_key ON items (lower(title));

CREATE TABLE IF NOT EXISTS copies (
	seq              BIGSERIAL,
	id               UUID PRIMARY KEY,
	item_id          UUID        NOT NULL,
	branch_id        UUID        NOT NULL,
	barcode          TEXT        NOT NULL UNIQUE,
	status           TEXT        NOT NULL,
	acquisition_date TIMESTAMPTZ NOT NULL,
	superseded       BOOLEAN     NOT NULL DEFAULT FALSE,
	version          INT         NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS copies_item_idx ON copies (item_id);

CREATE TABLE IF NOT EXISTS serials (
	seq        BIGSERIAL,
	id         UUID PRIMARY KEY,
	title      TEXT        NOT NULL,
	issn       TEXT        NOT NULL DEFAULT '',
	item_id    UUID        NOT NULL,
	frequency  TEXT        NOT NULL,
	status     TEXT        NOT NULL,
	version    INT         NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS serial_issues (
	seq          BIGSERIAL,
	id           UUID PRIMARY KEY,
	serial_id    UUID        NOT NULL,
	copy_id      UUID,
	issue_number TEXT        NOT NULL,
	status       TEXT        NOT NULL,
	version      INT         NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS serial_issues_serial_idx ON serial_issues (serial_id);

CREATE TABLE IF NOT EXISTS loans (
	seq          BIGSERIAL,
	id           UUID PRIMARY KEY,
	copy_id      UUID        NOT NULL,
	patron_id    UUID        NOT NULL,
	staff_out_id UUID        NOT NULL,
	staff_in_id  UUID,
	branch_id    UUID        NOT NULL,
	loan_date    TIMESTAMPTZ NOT NULL,
	due_date     TIMESTAMPTZ NOT NULL,
	return_date  TIMESTAMPTZ,
	status       TEXT        NOT NULL,
	damaged      BOOLEAN     NOT NULL DEFAULT FALSE,
	renewals     INT         NOT NULL DEFAULT 0,
	version      INT         NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS loans_copy_idx ON loans (copy_id);
CREATE INDEX IF NOT EXISTS loans_due_idx ON loans (status, due_date);

CREATE TABLE IF NOT EXISTS holds (
	seq          BIGSERIAL,
	id           UUID PRIMARY KEY,
	item_id      UUID        NOT NULL,
	patron_id    UUID        NOT NULL,
	copy_id      UUID,
	loan_id      UUID,
	request_date TIMESTAMPTZ NOT NULL,
	expiry_date  TIMESTAMPTZ NOT NULL,
	status       TEXT        NOT NULL,
	version      INT         NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS holds_item_idx ON holds (item_id, status);

CREATE TABLE IF NOT EXISTS fines (
	seq          BIGSERIAL,
	id           UUID PRIMARY KEY,
	patron_id    UUID        NOT NULL,
	loan_id      UUID        NOT NULL,
	days_late    INT         NOT NULL,
	amount_cents BIGINT      NOT NULL,
	status       TEXT        NOT NULL,
	settled_at   TIMESTAMPTZ,
	version      INT         NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS fines_patron_idx ON fines (patron_id);

CREATE TABLE IF NOT EXISTS acquisition_orders (
	seq           BIGSERIAL,
	id            UUID PRIMARY KEY,
	vendor_id     UUID        NOT NULL,
	staff_id      UUID        NOT NULL,
	order_date    TIMESTAMPTZ NOT NULL,
	received_date TIMESTAMPTZ,
	status        TEXT        NOT NULL,
	version       INT         NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS acquisition_order_lines (
	seq               BIGSERIAL,
	id                UUID PRIMARY KEY,
	order_id          UUID   NOT NULL REFERENCES acquisition_orders (id) ON DELETE CASCADE,
	item_id           UUID   NOT NULL,
	unit_price_cents  BIGINT NOT NULL,
	quantity          INT    NOT NULL,
	received_quantity INT    NOT NULL DEFAULT 0,
	status            TEXT   NOT NULL
);
CREATE INDEX IF NOT EXISTS acquisition_order_lines_order_idx ON acquisition_order_lines (order_id);

CREATE TABLE IF NOT EXISTS patrons (
	seq             BIGSERIAL,
	id              UUID PRIMARY KEY,
	email           TEXT        NOT NULL,
	name            TEXT        NOT NULL,
	membership_tier TEXT        NOT NULL,
	status          TEXT        NOT NULL,
	version         INT         NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL,
	updated_at      TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS patrons_email_key ON patrons (lower(email));

CREATE TABLE IF NOT EXISTS staff (
	seq           BIGSERIAL,
	id            UUID PRIMARY KEY,
	name          TEXT        NOT NULL,
	email         TEXT        NOT NULL,
	role          TEXT        NOT NULL,
	branch_id     UUID,
	status        TEXT        NOT NULL,
	password_hash TEXT        NOT NULL,
	version       INT         NOT NULL,
	created_at    TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS staff_email_key ON staff (lower(email));

CREATE TABLE IF NOT EXISTS branches (
	seq        BIGSERIAL,
	id         UUID PRIMARY KEY,
	name       TEXT        NOT NULL,
	address    TEXT        NOT NULL DEFAULT '',
	manager_id UUID,
	status     TEXT        NOT NULL,
	version    INT         NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS branches_name_key ON branches (lower(name));
`

// Store holds one repository per aggregate on a shared pool.
type Store struct {
	Items    *ItemRepository
	Copies   *CopyRepository
	Serials  *SerialRepository
	Issues   *SerialIssueRepository
	Loans    *LoanRepository
	Holds    *HoldRepository
	Fines    *FineRepository
	Orders   *OrderRepository
	Patrons  *PatronRepository
	Staff    *StaffRepository
	Branches *BranchRepository
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{
		Items:    &ItemRepository{newTable[catalog.Item](db, "items", itemID)},
		Copies:   &CopyRepository{newTable[catalog.Copy](db, "copies", copyID)},
		Serials:  &SerialRepository{newTable[catalog.Serial](db, "serials", serialID)},
		Issues:   &SerialIssueRepository{newTable[catalog.SerialIssue](db, "serial_issues", issueID)},
		Loans:    &LoanRepository{newTable[circulation.Loan](db, "loans", loanID)},
		Holds:    &HoldRepository{newTable[circulation.Hold](db, "holds", holdID)},
		Fines:    &FineRepository{newTable[circulation.Fine](db, "fines", fineID)},
		Orders:   newOrderRepository(db),
		Patrons:  &PatronRepository{newTable[membership.Patron](db, "patrons", patronID)},
		Staff:    &StaffRepository{newTable[membership.Staff](db, "staff", staffID)},
		Branches: &BranchRepository{newTable[membership.Branch](db, "branches", branchID)},
	}
}

func (s *Store) Catalog() catalog.Repositories {
	return catalog.Repositories{Items: s.Items, Copies: s.Copies, Serials: s.Serials, Issues: s.Issues}
}

func (s *Store) Circulation() circulation.Repositories {
	return circulation.Repositories{
		Loans:   s.Loans,
		Holds:   s.Holds,
		Fines:   s.Fines,
		Items:   s.Items,
		Copies:  s.Copies,
		Patrons: s.Patrons,
		Staff:   s.Staff,
	}
}

func (s *Store) Acquisitions() acquisitions.Repositories {
	return acquisitions.Repositories{Orders: s.Orders, Items: s.Items, Staff: s.Staff}
}

func (s *Store) Membership() membership.Repositories {
	return membership.Repositories{Patrons: s.Patrons, Staff: s.Staff, Branches: s.Branches}
}
