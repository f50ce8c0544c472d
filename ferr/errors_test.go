package ferr_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yiny1/simplefs/ferr"
)

func TestKindWithMessage(t *testing.T) {
	err := ferr.NotFound.WithMessage("/a/b/c")
	assert.Equal(t, "no such file or directory: /a/b/c", err.Error())
	assert.ErrorIs(t, err, ferr.NotFound)
}

func TestKindWrap(t *testing.T) {
	cause := errors.New("short read")
	err := ferr.Io.Wrap(cause)
	assert.ErrorIs(t, err, ferr.Io)
	assert.ErrorIs(t, err, cause)
}

func TestOf(t *testing.T) {
	kind, ok := ferr.Of(ferr.AlreadyExists.WithMessage("/x"))
	assert.True(t, ok)
	assert.Equal(t, ferr.AlreadyExists, kind)

	_, ok = ferr.Of(errors.New("unrelated"))
	assert.False(t, ok)
}
