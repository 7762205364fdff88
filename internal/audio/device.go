package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	defaultChunkSize  = 16 * 1024
	defaultSampleRate = 48000
	stopGracePeriod   = 5 * time.Second
)

// Device opens capture streams. Open blocks until the device has granted
// access and produced its first audio, or has failed.
type Device interface {
	Open(ctx context.Context) (Stream, error)
}

// Stream is a live capture. Fragments are delivered in device order on the
// channel returned by Fragments, which is closed when the capture ends.
// Callers must drain the channel until it is closed.
type Stream interface {
	Fragments() <-chan Fragment
	Stop() error
}

// FFmpegDevice captures audio by running ffmpeg and reading a WAV stream
// from its stdout.
type FFmpegDevice struct {
	Binary      string // defaults to "ffmpeg"
	InputFormat string // e.g. "pulse", "alsa", "avfoundation"
	Input       string // e.g. "default", ":0"
	SampleRate  int
	Channels    int
	ChunkSize   int
}

// Args returns the ffmpeg command line (without the binary).
func (d *FFmpegDevice) Args() []string {
	rate := d.SampleRate
	if rate <= 0 {
		rate = defaultSampleRate
	}
	channels := d.Channels
	if channels <= 0 {
		channels = 1
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-nostdin"}
	if d.InputFormat != "" {
		args = append(args, "-f", d.InputFormat)
	}
	args = append(args,
		"-i", d.Input,
		"-ac", strconv.Itoa(channels),
		"-ar", strconv.Itoa(rate),
		"-f", "wav",
		"-",
	)
	return args
}

// Open starts ffmpeg. If ffmpeg exits before producing any audio, the error
// is reported as a DeviceAccessError carrying ffmpeg's diagnostics.
func (d *FFmpegDevice) Open(ctx context.Context) (Stream, error) {
	bin := d.Binary
	if bin == "" {
		bin = "ffmpeg"
	}
	chunk := d.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}

	// Not CommandContext: the capture outlives the request that opened it.
	cmd := exec.Command(bin, d.Args()...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, &DeviceAccessError{Device: d.Input, Err: err}
	}

	type readResult struct {
		n   int
		err error
	}
	first := make([]byte, chunk)
	firstRead := make(chan readResult, 1)
	go func() {
		n, err := stdout.Read(first)
		firstRead <- readResult{n: n, err: err}
	}()

	var r readResult
	select {
	case <-ctx.Done():
		_ = cmd.Process.Kill()
		<-firstRead
		_ = cmd.Wait()
		return nil, ctx.Err()
	case r = <-firstRead:
	}

	if r.n == 0 {
		waitErr := cmd.Wait()
		msg := strings.TrimSpace(stderr.String())
		if msg == "" && waitErr != nil {
			msg = waitErr.Error()
		}
		if msg == "" {
			msg = "device produced no audio"
		}
		return nil, &DeviceAccessError{Device: d.Input, Err: errors.New(msg)}
	}

	s := &ffmpegStream{
		cmd:       cmd,
		stdout:    stdout,
		fragments: make(chan Fragment, 64),
		readDone:  make(chan struct{}),
	}
	go s.pump(Fragment(first[:r.n]), r.err, chunk)
	return s, nil
}

type ffmpegStream struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	fragments chan Fragment
	readDone  chan struct{}

	stopOnce sync.Once
	stopErr  error
}

func (s *ffmpegStream) Fragments() <-chan Fragment { return s.fragments }

func (s *ffmpegStream) pump(first Fragment, firstErr error, chunk int) {
	defer close(s.readDone)
	defer close(s.fragments)

	s.fragments <- first
	if firstErr != nil {
		return
	}
	for {
		buf := make([]byte, chunk)
		n, err := s.stdout.Read(buf)
		if n > 0 {
			s.fragments <- Fragment(buf[:n])
		}
		if err != nil {
			return
		}
	}
}

// Stop interrupts ffmpeg so it flushes buffered audio, then waits for the
// stream to end. It kills the process if it does not exit in time.
func (s *ffmpegStream) Stop() error {
	s.stopOnce.Do(func() {
		if err := s.cmd.Process.Signal(os.Interrupt); err != nil {
			_ = s.cmd.Process.Kill()
		}

		select {
		case <-s.readDone:
		case <-time.After(stopGracePeriod):
			_ = s.cmd.Process.Kill()
			<-s.readDone
		}

		err := s.cmd.Wait()
		var exitErr *exec.ExitError
		if err != nil && !errors.As(err, &exitErr) {
			s.stopErr = fmt.Errorf("wait ffmpeg: %w", err)
		}
	})
	return s.stopErr
}
