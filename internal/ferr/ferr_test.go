package ferr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesKind(t *testing.T) {
	err := Source("scheduler", "Poll", "no metrics collected")
	assert.True(t, Is(err, KindSource))
	assert.False(t, Is(err, KindIO))
}

func TestIsFalseForNonFerrError(t *testing.T) {
	assert.False(t, Is(errors.New("plain"), KindFormat))
}

func TestWrapReturnsNilForNilCause(t *testing.T) {
	assert.Nil(t, Wrap(KindIO, "backend", "Open", nil))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("disk full")
	err := IO("backend", "flush", cause)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "backend:flush")
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("boom")
	err := Crypto("buffer", "EnableEncryption", cause)
	assert.ErrorIs(t, err, cause)
}
