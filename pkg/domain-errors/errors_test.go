package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeNoConsentFound, "no consent")
		assert.True(t, HasCode(err, CodeNoConsentFound))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("outer: %w", New(CodeStartInPast, "start in past"))
		assert.True(t, HasCode(err, CodeStartInPast))
	})

	t.Run("matches inner coded cause", func(t *testing.T) {
		inner := New(CodeTimeout, "deadline")
		err := Wrap(inner, CodeInternal, "tx failed")
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeTimeout))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestGetCode(t *testing.T) {
	assert.Equal(t, CodeIndexOutOfBounds, GetCode(New(CodeIndexOutOfBounds, "index")))
	assert.Equal(t, CodeInternal, GetCode(errors.New("boom")))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(cause, CodeInternal, "failed to load history")
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "failed to load history")
	assert.Contains(t, err.Error(), "connection reset")
}
