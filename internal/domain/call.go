package domain

import (
	"errors"
	"fmt"
)

// Call-result validation errors.
var (
	// ErrInvalidCallStatus indicates an unrecognized call status value.
	ErrInvalidCallStatus = errors.New("invalid call status")

	// ErrInconsistentCallResult indicates payload/error population does not
	// match the status.
	ErrInconsistentCallResult = errors.New("inconsistent call result")
)

// CallStatus classifies the terminal outcome of one retrying call.
// A non-success status is reached only after the retry budget is exhausted.
type CallStatus string

const (
	// CallSuccess indicates a 2xx response whose body was read successfully.
	CallSuccess CallStatus = "success"

	// CallHTTPError indicates the final attempt returned a non-2xx status.
	CallHTTPError CallStatus = "http_error"

	// CallTimeout indicates the final attempt exceeded its deadline.
	CallTimeout CallStatus = "timeout"

	// CallTransportError indicates a connection-level failure on the final
	// attempt (refused connection, DNS failure, reset).
	CallTransportError CallStatus = "transport_error"

	// CallParseError indicates a 2xx response whose body could not be read.
	CallParseError CallStatus = "parse_error"
)

// IsValid reports whether the status is one of the defined values.
func (s CallStatus) IsValid() bool {
	switch s {
	case CallSuccess, CallHTTPError, CallTimeout, CallTransportError, CallParseError:
		return true
	default:
		return false
	}
}

// CallResult is the uniform envelope returned by the retrying caller.
// Exactly one of Payload and Err is meaningfully populated: Payload iff
// Status is CallSuccess, Err otherwise.
type CallResult struct {
	Status CallStatus

	// Payload is the raw response body of the successful attempt.
	Payload []byte

	// ContentType is the Content-Type header of the successful attempt.
	ContentType string

	// HTTPStatus is the status code of the last attempt, 0 when the failure
	// never produced an HTTP response.
	HTTPStatus int

	// Attempts is the number of attempts actually made (1..maxRetries+1).
	Attempts int

	// ElapsedMs is the wall-clock time of the final attempt only.
	ElapsedMs int64

	// TotalElapsedMs accumulates every attempt plus inter-attempt delays.
	TotalElapsedMs int64

	// Err describes the terminal failure. Empty on success.
	Err string
}

// Succeeded reports whether the call produced a usable payload.
func (r *CallResult) Succeeded() bool { return r.Status == CallSuccess }

// Validate checks the result envelope invariants.
func (r *CallResult) Validate() error {
	if !r.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCallStatus, r.Status)
	}
	if r.Attempts < 1 {
		return fmt.Errorf("%w: attempts %d", ErrInconsistentCallResult, r.Attempts)
	}
	if r.Status == CallSuccess && r.Err != "" {
		return fmt.Errorf("%w: success with error %q", ErrInconsistentCallResult, r.Err)
	}
	if r.Status != CallSuccess && r.Err == "" {
		return fmt.Errorf("%w: %s with no error message", ErrInconsistentCallResult, r.Status)
	}
	return nil
}
