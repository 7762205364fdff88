package session

import (
	"errors"
	"fmt"

	"github.com/memoapp/memo/internal/audio"
	"github.com/memoapp/memo/internal/transcribe"
)

var (
	// ErrBusy is returned when a capture is already recording or processing.
	ErrBusy = errors.New("a recording is already in progress")
	// ErrNotRecording is returned by Stop outside the recording state.
	ErrNotRecording = errors.New("not recording")
	// ErrNothingToSave is returned by Save when there is no transcript.
	ErrNothingToSave = errors.New("no transcript to save")
	// ErrEmptyName is returned by Save for a blank lecture name.
	ErrEmptyName = errors.New("lecture name is required")
)

const (
	deviceMessage  = "Failed to access microphone. Please ensure microphone permissions are granted."
	failurePrefix  = "Failed to process recording. "
	networkMessage = failurePrefix + "Could not connect to the server. Please check your internet connection and try again."
	timeoutMessage = failurePrefix + "Request timed out. Please try again."
)

// UserMessage converts a pipeline failure into the text shown to the user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var (
		deviceErr  *audio.DeviceAccessError
		networkErr *transcribe.NetworkError
		timeoutErr *transcribe.TimeoutError
		serverErr  *transcribe.ServerError
	)
	switch {
	case errors.As(err, &deviceErr):
		return deviceMessage
	case errors.As(err, &timeoutErr):
		return timeoutMessage
	case errors.As(err, &networkErr):
		return networkMessage
	case errors.As(err, &serverErr):
		return fmt.Sprintf("%sServer error (%d): %s", failurePrefix, serverErr.Status, serverErr.Body)
	default:
		return failurePrefix + err.Error()
	}
}
