package apperrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelMatching(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"transport", &TransportError{Op: "list outlets", StatusCode: 500}, ErrTransport},
		{"deserialization", &DeserializationError{Op: "list outlets", Err: errors.New("eof")}, ErrDeserialization},
		{"not found", &NotFoundError{Resource: "campaign outlets", ID: "21"}, ErrNotFound},
		{"validation", &ValidationError{Field: "address.city", Message: "empty"}, ErrValidation},
		{"service", &ServiceError{Op: "create outlet"}, ErrService},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("campaign 21: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.NotErrorIs(t, wrapped, ErrAlreadyRunning)
		})
	}
}

func TestServiceError_Codes(t *testing.T) {
	err := fmt.Errorf("update: %w", &ServiceError{
		Op: "update outlet",
		Errors: []PartnerError{
			{Code: "BAD_REQUEST", Message: "regionId is invalid"},
			{Code: "DUPLICATE", Message: "shopOutletCode exists"},
		},
	})

	var se *ServiceError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, []string{"BAD_REQUEST", "DUPLICATE"}, se.Codes())
	assert.Contains(t, se.Error(), "regionId is invalid")
}

func TestTransportError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &TransportError{Op: "delete outlet", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, "delete outlet: connection reset", err.Error())
}
