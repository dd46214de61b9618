package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusMapping(t *testing.T) {
	tests := []struct {
		err    *Error
		status int
	}{
		{ValidationError("bad input"), http.StatusBadRequest},
		{NotFoundError("missing"), http.StatusNotFound},
		{UnprocessableError("unscorable", nil), http.StatusUnprocessableEntity},
		{OverloadedError("saturated", time.Second), http.StatusTooManyRequests},
		{InternalError("boom", nil), http.StatusInternalServerError},
		{ExternalError("upstream", nil), http.StatusBadGateway},
		{UnavailableError("model down", nil, 5 * time.Second), http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.HTTPStatus(), "type %s", tt.err.Type)
	}
}

func TestErrorString(t *testing.T) {
	err := ValidationError("text is required")
	assert.Equal(t, "validation: text is required", err.Error())

	cause := errors.New("connection refused")
	wrapped := UnavailableError("model down", cause, 0)
	assert.Contains(t, wrapped.Error(), "connection refused")
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := InternalError("wrapper", cause)

	assert.True(t, errors.Is(err, cause))

	var structured *Error
	wrapped := fmt.Errorf("outer: %w", err)
	assert.True(t, errors.As(wrapped, &structured))
	assert.Equal(t, TypeInternal, structured.Type)
}

func TestWithField(t *testing.T) {
	err := ValidationError("bad").WithField("field", "text").WithField("length", 0)

	assert.Equal(t, "text", err.Context["field"])
	assert.Equal(t, 0, err.Context["length"])
}

func TestAsStructuredError(t *testing.T) {
	assert.Nil(t, AsStructuredError(nil))

	plain := errors.New("plain")
	structured := AsStructuredError(plain)
	assert.Equal(t, TypeInternal, structured.Type)
	assert.True(t, errors.Is(structured, plain))

	original := OverloadedError("busy", time.Second)
	assert.Same(t, original, AsStructuredError(original))
}

func TestToResponse(t *testing.T) {
	err := ValidationError("text is required").WithField("field", "text")
	resp := err.ToResponse()

	assert.Equal(t, "text is required", resp.Error)
	assert.Equal(t, TypeValidation, resp.Type)
	assert.Equal(t, "text", resp.Context["field"])
}
