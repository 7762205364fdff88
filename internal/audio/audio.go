// Package audio captures microphone audio as a stream of fragments and
// assembles a finished capture into a canonical mono WAV artifact.
package audio

import (
	"errors"
	"fmt"
)

// Canonical upload metadata for an assembled artifact.
const (
	ArtifactFilename    = "recording.wav"
	ArtifactContentType = "audio/wav"
)

// Fragment is an opaque chunk of encoded audio as delivered by a device.
type Fragment []byte

// Size returns the fragment length in bytes.
func (f Fragment) Size() int { return len(f) }

// Artifact is a fully assembled, re-encoded single-channel recording.
type Artifact struct {
	Data       []byte
	SampleRate int
	BitDepth   int
	Samples    int
}

// Filename returns the fixed upload filename.
func (a *Artifact) Filename() string { return ArtifactFilename }

// ContentType returns the fixed upload content type.
func (a *Artifact) ContentType() string { return ArtifactContentType }

// Bytes returns the encoded WAV file.
func (a *Artifact) Bytes() []byte { return a.Data }

var (
	errNoFragments   = errors.New("no audio captured")
	errNotWAV        = errors.New("not a WAV stream")
	errNoSamples     = errors.New("audio stream has no samples")
	errNoChannels    = errors.New("audio stream has no channels")
	errEmptyFragment = errors.New("empty audio fragment")
)

// DecodeError reports that captured audio could not be decoded. It is never
// retried: the capture itself is unusable.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode audio: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DeviceAccessError reports that the capture device could not be opened,
// typically because microphone access was denied.
type DeviceAccessError struct {
	Device string
	Err    error
}

func (e *DeviceAccessError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("access audio device: %v", e.Err)
	}
	return fmt.Sprintf("access audio device %q: %v", e.Device, e.Err)
}

func (e *DeviceAccessError) Unwrap() error { return e.Err }
