package transcribe

import (
	"errors"
	"fmt"
)

var errMissingTranscription = errors.New(`response has no "transcription" string`)

// NetworkError means the transcription service could not be reached.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("transcribe: service unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError means the upload exceeded its bound and was cancelled.
type TimeoutError struct {
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("transcribe: request timed out: %v", e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// ServerError is a non-2xx response. Body holds the response text for
// diagnostics.
type ServerError struct {
	Status int
	Body   string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("Server error (%d): %s", e.Status, e.Body)
}

// MalformedResponseError is a 2xx response that does not carry a transcript.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("transcribe: malformed response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }
