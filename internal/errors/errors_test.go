package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"godex/domain/core"

	"github.com/stretchr/testify/assert"
)

func TestWrapKeepsCode(t *testing.T) {
	inner := InvalidInput("bad matrix")
	err := Wrap(inner, "read input")
	assert.Equal(t, CodeInvalidInput, GetCode(err))
	assert.True(t, stderrors.Is(err, inner))
	assert.Equal(t, "read input: bad matrix", err.Error())
	assert.Nil(t, Wrap(nil, "nothing"))
}

func TestEngineErrorCodes(t *testing.T) {
	cases := []struct {
		err    error
		code   string
		status int
	}{
		{core.NewUnknownGroupError("group1", "x"), CodeNotFound, http.StatusNotFound},
		{fmt.Errorf("%w: partition", core.ErrUnknownPartition), CodeNotFound, http.StatusNotFound},
		{core.ErrMissingFitter, CodeConfigInvalid, http.StatusBadRequest},
		{core.NewShapeError("genes", 3, 2), CodeInvalidInput, http.StatusBadRequest},
		{core.ErrLazyUnsupported, CodeUnsupported, http.StatusUnprocessableEntity},
	}
	for _, c := range cases {
		wrapped := Wrap(c.err, "run test")
		assert.Equal(t, c.code, GetCode(wrapped), c.err.Error())
		assert.Equal(t, c.status, HTTPStatus(wrapped), c.err.Error())
		assert.True(t, stderrors.Is(wrapped, c.err))
	}
	assert.Equal(t, "UNKNOWN", GetCode(stderrors.New("plain")))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(stderrors.New("plain")))
}

func TestWithCode(t *testing.T) {
	err := WithCode(CodeNotFound, stderrors.New("gene list"))
	assert.Equal(t, CodeNotFound, GetCode(err))
	assert.True(t, IsAppError(err))
	assert.False(t, IsAppError(stderrors.New("x")))
}
