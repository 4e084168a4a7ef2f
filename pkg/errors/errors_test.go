package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("outer: %w", Clone(ErrDoubleBooked, "teacher t-1 busy"))

	got := FromError(wrapped)
	assert.Equal(t, ErrDoubleBooked.Code, got.Code)
	assert.Equal(t, http.StatusConflict, got.Status)
	assert.Equal(t, "teacher t-1 busy", got.Message)
}

func TestFromErrorWrapsUnknown(t *testing.T) {
	got := FromError(errors.New("boom"))
	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.EqualError(t, got, "internal server error: boom")
	assert.Nil(t, FromError(nil))
}

func TestIsMatchesByCode(t *testing.T) {
	err := Extend(ErrIndexConflict, errors.New("t-1 at 0/0"), "index drift")
	assert.True(t, errors.Is(err, ErrIndexConflict))
	assert.False(t, errors.Is(err, ErrGenerationConflict))
	assert.True(t, HasCode(fmt.Errorf("ctx: %w", err), "INDEX_CONFLICT"))
	assert.False(t, HasCode(errors.New("plain"), "INDEX_CONFLICT"))
}
