// Package memory holds repositories that keep aggregates in process memory.
// They back the tests and `librarian serve --memory`.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Table is an insertion-ordered set of entities keyed by ID. It stores
// copies, so callers never share state with the table.
type Table[T any] struct {
	mu    sync.RWMutex
	rows  map[uuid.UUID]*T
	order []uuid.UUID

	id    func(*T) *uuid.UUID
	clone func(*T) *T
}

// NewTable creates a table. id returns a pointer to the entity's ID field;
// clone defaults to a shallow copy.
func NewTable[T any](id func(*T) *uuid.UUID, clone func(*T) *T) *Table[T] {
	if clone == nil {
		clone = func(e *T) *T {
			c := *e
			return &c
		}
	}
	return &Table[T]{
		rows:  make(map[uuid.UUID]*T),
		id:    id,
		clone: clone,
	}
}

// FindAll returns every entity in insertion order.
func (t *Table[T]) FindAll(ctx context.Context) ([]*T, error) {
	return t.Filter(ctx, func(*T) bool { return true })
}

// GetByID returns nil, nil when the entity does not exist.
func (t *Table[T]) GetByID(_ context.Context, id uuid.UUID) (*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	row, ok := t.rows[id]
	if !ok {
		return nil, nil
	}
	return t.clone(row), nil
}

// Save inserts or replaces the entity, assigning an ID when it has none.
func (t *Table[T]) Save(_ context.Context, entity *T) (*T, error) {
	id := t.id(entity)
	if *id == uuid.Nil {
		*id = uuid.New()
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[*id]; !ok {
		t.order = append(t.order, *id)
	}
	t.rows[*id] = t.clone(entity)
	return t.clone(entity), nil
}

func (t *Table[T]) DeleteByID(_ context.Context, id uuid.UUID) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.rows[id]; !ok {
		return nil
	}
	delete(t.rows, id)
	t.order = slices.DeleteFunc(t.order, func(o uuid.UUID) bool { return o == id })
	return nil
}

// Filter returns the entities matching keep in insertion order.
func (t *Table[T]) Filter(_ context.Context, keep func(*T) bool) ([]*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*T, 0, len(t.order))
	for _, id := range t.order {
		if row := t.rows[id]; keep(row) {
			out = append(out, t.clone(row))
		}
	}
	return out, nil
}

// First returns the first entity matching keep, or nil.
func (t *Table[T]) First(_ context.Context, keep func(*T) bool) (*T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, id := range t.order {
		if row := t.rows[id]; keep(row) {
			return t.clone(row), nil
		}
	}
	return nil, nil
}

// Exists reports whether any entity matches keep.
func (t *Table[T]) Exists(ctx context.Context, keep func(*T) bool) (bool, error) {
	row, err := t.First(ctx, keep)
	return row != nil, err
}
