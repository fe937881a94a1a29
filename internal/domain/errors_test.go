package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(NotFoundf("listing with id %s not found", "abc"))
	assert.True(t, ok)
	assert.Equal(t, KindNotFound, kind)

	kind, ok = KindOf(InvalidOperationf("auction has ended"))
	assert.True(t, ok)
	assert.Equal(t, KindInvalidOperation, kind)

	// Wrapped errors still classify.
	wrapped := fmt.Errorf("placing bid: %w", InvalidArgumentf("bid amount must be at least %.2f", 1050.0))
	kind, ok = KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, KindInvalidArgument, kind)

	// Errors outside the taxonomy are internal.
	_, ok = KindOf(fmt.Errorf("connection refused"))
	assert.False(t, ok)
}

func TestIsKind(t *testing.T) {
	err := NotFoundf("user with id %s not found", "u1")
	assert.True(t, IsKind(err, KindNotFound))
	assert.False(t, IsKind(err, KindInvalidArgument))
	assert.False(t, IsKind(nil, KindNotFound))
}
