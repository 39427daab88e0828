package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantStatus  int
		wantMessage string
		wantDetails []string
	}{
		{
			name:        "validation",
			err:         NewValidationError(`"email" must be a valid email`, `"role" is required`),
			wantStatus:  http.StatusBadRequest,
			wantMessage: ValidationMessage,
			wantDetails: []string{`"email" must be a valid email`, `"role" is required`},
		},
		{
			name:        "not found",
			err:         fmt.Errorf("update: %w", &NotFoundError{Entity: "User", ID: 42}),
			wantStatus:  http.StatusNotFound,
			wantMessage: "User with id 42 not found",
		},
		{
			name:        "conflict",
			err:         &ConflictError{Entity: "User", Field: "email", Value: "a@b.c"},
			wantStatus:  http.StatusConflict,
			wantMessage: "User with email a@b.c already exists",
		},
		{
			name:        "explicit http error",
			err:         NewHTTPError(http.StatusTeapot, "short and stout"),
			wantStatus:  http.StatusTeapot,
			wantMessage: "short and stout",
		},
		{
			name:        "unexpected error is hidden",
			err:         errors.New("dial tcp 10.0.0.1:3306: connection refused"),
			wantStatus:  http.StatusInternalServerError,
			wantMessage: "internal server error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, httpErr.StatusCode)

			resp := httpErr.ToErrorResponse()
			assert.Equal(t, tt.wantMessage, resp.Message)
			assert.Equal(t, tt.wantDetails, resp.Details)
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	notFound := fmt.Errorf("wrapped: %w", &NotFoundError{Entity: "User", ID: 1})
	conflict := &ConflictError{Entity: "User", Field: "email", Value: "x"}

	assert.True(t, IsNotFound(notFound))
	assert.False(t, IsNotFound(conflict))
	assert.True(t, IsConflict(conflict))
	assert.False(t, IsConflict(notFound))
	assert.False(t, IsNotFound(nil))
}
