package model

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf_DirectServiceError(t *testing.T) {
	err := NewError(ErrNotFound, "workspace missing", nil)
	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, ErrNotFound, kind)
}

func TestKindOf_WrappedServiceError(t *testing.T) {
	inner := NewError(ErrTraversal, "escapes workspace", nil)
	wrapped := fmt.Errorf("resolving path: %w", inner)
	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ErrTraversal, kind)
}

func TestKindOf_PlainError(t *testing.T) {
	_, ok := KindOf(errors.New("not a service error"))
	assert.False(t, ok)
}
