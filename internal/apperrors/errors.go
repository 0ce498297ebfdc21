// Package apperrors holds the error taxonomy shared by the partner client,
// the translators and the sync engine. Every concrete type matches its
// sentinel with errors.Is and can be unpacked with errors.As.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrTransport marks a partner response that was not OK.
	ErrTransport = errors.New("transport error")

	// ErrDeserialization marks a partner payload that could not be decoded.
	ErrDeserialization = errors.New("deserialization error")

	// ErrNotFound marks a listing that came back without usable data.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks a local record that cannot be synced.
	ErrValidation = errors.New("validation error")

	// ErrService marks a partner response with status=ERROR.
	ErrService = errors.New("service error")

	// ErrAlreadyRunning is returned when a sync run is requested while another one holds the lock.
	ErrAlreadyRunning = errors.New("sync run already in progress")
)

// TransportError is a non-OK partner response or a failed round trip.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	case e.Body != "":
		return fmt.Sprintf("%s: status=%d body=%s", e.Op, e.StatusCode, e.Body)
	default:
		return fmt.Sprintf("%s: status=%d", e.Op, e.StatusCode)
	}
}

func (e *TransportError) Unwrap() error        { return e.Err }
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// DeserializationError wraps a decoding failure of a partner payload.
type DeserializationError struct {
	Op  string
	Err error
}

func (e *DeserializationError) Error() string {
	return fmt.Sprintf("%s: decode payload: %v", e.Op, e.Err)
}

func (e *DeserializationError) Unwrap() error        { return e.Err }
func (e *DeserializationError) Is(target error) bool { return target == ErrDeserialization }

// NotFoundError reports a resource the partner returned no usable data for.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ValidationError reports a local record that cannot be translated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// PartnerError is one entry of the partner's structured error list.
type PartnerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServiceError is a partner response carrying status=ERROR.
type ServiceError struct {
	Op     string
	Errors []PartnerError
}

func (e *ServiceError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("%s: partner returned status ERROR", e.Op)
	}
	parts := make([]string, 0, len(e.Errors))
	for _, pe := range e.Errors {
		parts = append(parts, pe.Code+": "+pe.Message)
	}
	return fmt.Sprintf("%s: partner returned status ERROR: %s", e.Op, strings.Join(parts, "; "))
}

func (e *ServiceError) Is(target error) bool { return target == ErrService }

// Codes lists the partner error codes, for logging.
func (e *ServiceError) Codes() []string {
	out := make([]string, 0, len(e.Errors))
	for _, pe := range e.Errors {
		out = append(out, pe.Code)
	}
	return out
}
