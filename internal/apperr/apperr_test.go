package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindsMatchThroughWrapping(t *testing.T) {
	errAlreadyActive := Invariant("serial already active")
	wrapped := fmt.Errorf("renew serial: %w", errAlreadyActive)

	assert.ErrorIs(t, wrapped, errAlreadyActive)
	assert.ErrorIs(t, wrapped, ErrInvariant)
	assert.NotErrorIs(t, wrapped, ErrNotFound)
	assert.NotErrorIs(t, wrapped, ErrConflict)
	assert.Equal(t, "renew serial: invariant violation: serial already active", wrapped.Error())
}

func TestSpecificErrorsAreDistinct(t *testing.T) {
	a := NotFound("loan not found")
	b := NotFound("loan not found")

	assert.False(t, errors.Is(a, b))
	assert.ErrorIs(t, a, ErrNotFound)
	assert.ErrorIs(t, Conflict("duplicate email"), ErrConflict)
}
