package session

import (
	"errors"
	"fmt"
	"testing"

	"github.com/memoapp/memo/internal/audio"
	"github.com/memoapp/memo/internal/transcribe"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "device",
			err:  &audio.DeviceAccessError{Err: errors.New("denied")},
			want: "Failed to access microphone. Please ensure microphone permissions are granted.",
		},
		{
			name: "network",
			err:  &transcribe.NetworkError{Err: errors.New("connection refused")},
			want: "Failed to process recording. Could not connect to the server. Please check your internet connection and try again.",
		},
		{
			name: "timeout",
			err:  &transcribe.TimeoutError{Err: errors.New("deadline")},
			want: "Failed to process recording. Request timed out. Please try again.",
		},
		{
			name: "server",
			err:  &transcribe.ServerError{Status: 500, Body: "boom"},
			want: "Failed to process recording. Server error (500): boom",
		},
		{
			name: "wrapped server",
			err:  fmt.Errorf("upload: %w", &transcribe.ServerError{Status: 502, Body: "bad gateway"}),
			want: "Failed to process recording. Server error (502): bad gateway",
		},
		{
			name: "decode",
			err:  &audio.DecodeError{Err: errors.New("no audio captured")},
			want: "Failed to process recording. decode audio: no audio captured",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := UserMessage(tt.err); got != tt.want {
				t.Errorf("UserMessage = %q, want %q", got, tt.want)
			}
		})
	}

	if UserMessage(nil) != "" {
		t.Error("UserMessage(nil) should be empty")
	}
}

func TestIsRejection(t *testing.T) {
	if !IsRejection(ErrBusy) || !IsRejection(fmt.Errorf("x: %w", ErrEmptyName)) {
		t.Error("sentinels should be rejections")
	}
	if IsRejection(&transcribe.TimeoutError{}) {
		t.Error("pipeline failure is not a rejection")
	}
}
