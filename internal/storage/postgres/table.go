package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	"github.com/doug-martin/goqu/v9/exp"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"libraryflow/internal/storage"
)

const uniqueViolation = "23505"

// execer is satisfied by both *sqlx.DB and *sqlx.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// table implements storage.Repository for one aggregate whose struct fields
// carry db tags matching the table's columns.
type table[T any] struct {
	db   *sqlx.DB
	name string
	id   func(*T) *uuid.UUID
}

func newTable[T any](db *sqlx.DB, name string, id func(*T) *uuid.UUID) *table[T] {
	return &table[T]{db: db, name: name, id: id}
}

func (t *table[T]) FindAll(ctx context.Context) ([]*T, error) {
	return t.selectWhere(ctx)
}

func (t *table[T]) GetByID(ctx context.Context, id uuid.UUID) (*T, error) {
	return t.first(ctx, goqu.C("id").Eq(id))
}

// Save upserts the entity. A row already holding a higher version is left
// alone and ErrStaleWrite is returned.
func (t *table[T]) Save(ctx context.Context, entity *T) (*T, error) {
	if err := t.upsert(ctx, t.db, entity); err != nil {
		return nil, err
	}
	return entity, nil
}

func (t *table[T]) DeleteByID(ctx context.Context, id uuid.UUID) error {
	query, args, err := dialect.Delete(t.name).Prepared(true).Where(goqu.C("id").Eq(id)).ToSQL()
	if err != nil {
		return fmt.Errorf("build delete on %s: %w", t.name, err)
	}
	if _, err := t.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete from %s: %w", t.name, err)
	}
	return nil
}

func (t *table[T]) upsert(ctx context.Context, ex execer, entity *T) error {
	if id := t.id(entity); *id == uuid.Nil {
		*id = uuid.New()
	}

	query, args, err := dialect.Insert(t.name).Prepared(true).
		Rows(entity).
		OnConflict(goqu.DoUpdate("id", entity).
			Where(goqu.L(t.name + ".version <= EXCLUDED.version"))).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build upsert on %s: %w", t.name, err)
	}

	res, err := ex.ExecContext(ctx, query, args...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return fmt.Errorf("%w: %s", storage.ErrDuplicate, pqErr.Constraint)
		}
		return fmt.Errorf("upsert into %s: %w", t.name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("upsert into %s: %w", t.name, err)
	}
	if n == 0 {
		return storage.ErrStaleWrite
	}
	return nil
}

// insert writes a row that has no version column and must not exist yet.
func (t *table[T]) insert(ctx context.Context, ex execer, entity *T) error {
	if id := t.id(entity); *id == uuid.Nil {
		*id = uuid.New()
	}
	query, args, err := dialect.Insert(t.name).Prepared(true).Rows(entity).ToSQL()
	if err != nil {
		return fmt.Errorf("build insert on %s: %w", t.name, err)
	}
	if _, err := ex.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("insert into %s: %w", t.name, err)
	}
	return nil
}

// selectWhere returns the matching rows in insertion order.
func (t *table[T]) selectWhere(ctx context.Context, where ...exp.Expression) ([]*T, error) {
	return t.selectOrdered(ctx, where, goqu.C("seq").Asc())
}

func (t *table[T]) selectOrdered(ctx context.Context, where []exp.Expression, order ...exp.OrderedExpression) ([]*T, error) {
	query, args, err := dialect.From(t.name).Prepared(true).
		Select(new(T)).
		Where(where...).
		Order(order...).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select on %s: %w", t.name, err)
	}

	var out []*T
	if err := t.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, fmt.Errorf("select from %s: %w", t.name, err)
	}
	return out, nil
}

// first returns the earliest matching row, or nil when there is none.
func (t *table[T]) first(ctx context.Context, where ...exp.Expression) (*T, error) {
	query, args, err := dialect.From(t.name).Prepared(true).
		Select(new(T)).
		Where(where...).
		Order(goqu.C("seq").Asc()).
		Limit(1).
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select on %s: %w", t.name, err)
	}

	entity := new(T)
	if err := t.db.GetContext(ctx, entity, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select from %s: %w", t.name, err)
	}
	return entity, nil
}

func (t *table[T]) exists(ctx context.Context, where ...exp.Expression) (bool, error) {
	query, args, err := dialect.From(t.name).Prepared(true).
		Select(goqu.COUNT("*")).
		Where(where...).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build count on %s: %w", t.name, err)
	}

	var n int
	if err := t.db.GetContext(ctx, &n, query, args...); err != nil {
		return false, fmt.Errorf("count %s: %w", t.name, err)
	}
	return n > 0, nil
}

func lower(col string) exp.SQLFunctionExpression {
	return goqu.Func("lower", goqu.C(col))
}
