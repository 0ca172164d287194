package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{BadRequest("bad", nil), http.StatusBadRequest},
		{Validation("invalid"), http.StatusUnprocessableEntity},
		{Unauthorized("nope"), http.StatusUnauthorized},
		{Forbidden("nope"), http.StatusForbidden},
		{NotFound("user"), http.StatusNotFound},
		{Conflict("taken"), http.StatusConflict},
		{NoAvailability(), http.StatusConflict},
		{StoreUnavailable(errors.New("down")), http.StatusServiceUnavailable},
		{Internal(errors.New("boom")), http.StatusInternalServerError},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.status, HTTPStatus(tc.err), tc.err.Error())
	}
}

func TestHTTPStatusUnwrapsWrappedErrors(t *testing.T) {
	wrapped := fmt.Errorf("while booking: %w", NoAvailability())
	assert.Equal(t, http.StatusConflict, HTTPStatus(wrapped))
}

func TestMessage(t *testing.T) {
	assert.Equal(t, "user not found", Message(NotFound("user")))

	// Internals never leak to the wire.
	assert.Equal(t, "internal server error", Message(errors.New("pq: connection refused")))
	assert.Equal(t, "directory store unavailable", Message(StoreUnavailable(errors.New("dial tcp: refused"))))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := StoreUnavailable(cause)
	assert.ErrorIs(t, err, cause)
}
