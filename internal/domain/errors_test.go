package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := NewValidationError("content", "required")
	assert.Equal(t, "invalid content: required", err.Error())
	assert.True(t, IsValidation(err))
	assert.True(t, IsValidation(fmt.Errorf("dispatch: %w", err)))
	assert.False(t, IsValidation(ErrNotFound))
}

func TestStoreError(t *testing.T) {
	cause := errors.New("connection refused")
	err := StoreError("save conversation", cause)
	assert.ErrorIs(t, err, ErrStore)
	assert.Contains(t, err.Error(), "save conversation")
	assert.False(t, IsValidation(err))
}
