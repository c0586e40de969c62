package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeEmptyMessage, CodeOf(New(CodeEmptyMessage, "empty")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))

	wrapped := fmt.Errorf("handler: %w", New(CodeMessageNotFound, "gone"))
	assert.Equal(t, CodeMessageNotFound, CodeOf(wrapped), "code survives wrapping")
}

func TestMessageOf(t *testing.T) {
	assert.Equal(t, "too long", MessageOf(New(CodeMessageTooLong, "too long")))
	assert.Equal(t, "internal server error", MessageOf(errors.New("sql: bad connection")),
		"plain errors must not leak details to clients")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Wrap(CodeInternal, "store unavailable", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "store unavailable")
	assert.Contains(t, err.Error(), "refused")

	bare := New(CodeInvalidData, "bad payload")
	assert.Equal(t, "bad payload", bare.Error())
}

func TestConstructors(t *testing.T) {
	assert.Equal(t, CodeMessageNotFound, CodeOf(NotFound("no such message")))
	assert.Equal(t, CodeInternal, CodeOf(Internal("boom", errors.New("cause"))))
}

func TestTerminal(t *testing.T) {
	for _, c := range []Code{CodeNoToken, CodeInvalidToken, CodeTokenExpired, CodeInvalidClaims} {
		assert.True(t, c.Terminal(), c.String())
	}
	for _, c := range []Code{CodeEmptyMessage, CodeRateLimited, CodeMessageNotFound, CodeInternal} {
		assert.False(t, c.Terminal(), c.String())
	}
}
