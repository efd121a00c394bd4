package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput signals a malformed request, embedding or tool argument.
	ErrInvalidInput = errors.New("invalid input")
	// ErrDimensionMismatch signals an embedding with the wrong number of dimensions.
	ErrDimensionMismatch = fmt.Errorf("%w: dimension mismatch", ErrInvalidInput)
	// ErrUnknownTool signals a tool name outside the catalogue.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrUpstream signals a non-success response from the paper store or the model.
	ErrUpstream = errors.New("upstream failure")
	// ErrNotFound signals a missing paper or page.
	ErrNotFound = errors.New("not found")
	// ErrConflict signals a duplicate unique key on insert.
	ErrConflict = errors.New("conflict")
	// ErrEmptyResponse signals a chat completion without choices.
	ErrEmptyResponse = errors.New("no response from model")
)

// ArgumentParseError is returned when a tool call carries arguments that
// cannot be decoded into the tool's argument struct.
type ArgumentParseError struct {
	Tool string
	Err  error
}

func (e *ArgumentParseError) Error() string {
	return fmt.Sprintf("invalid arguments for tool %s: %v", e.Tool, e.Err)
}

// Unwrap exposes both the invalid-input kind and the decoder error.
func (e *ArgumentParseError) Unwrap() []error { return []error{ErrInvalidInput, e.Err} }

// UpstreamError carries the status and body of a failed upstream call.
type UpstreamError struct {
	Service string
	Status  int
	Body    string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s call failed (%d): %s", e.Service, e.Status, e.Body)
}

func (e *UpstreamError) Unwrap() error { return ErrUpstream }

// DimensionError builds an ErrDimensionMismatch with the offending sizes.
func DimensionError(want, got int) error {
	return fmt.Errorf("%w: expected %d, got %d", ErrDimensionMismatch, want, got)
}
