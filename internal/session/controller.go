// Package session drives one capture at a time through
// record, assemble, upload and save.
package session

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/memoapp/memo/internal/audio"
	"github.com/memoapp/memo/internal/db"
	"github.com/memoapp/memo/internal/transcribe"
)

// Uploader sends an assembled recording for transcription.
type Uploader interface {
	Upload(ctx context.Context, art transcribe.Artifact) (*transcribe.Result, error)
}

// Store persists saved lectures.
type Store interface {
	Save(name, transcription string) (db.Lecture, bool, error)
	Delete(id string) error
}

// Snapshot is a point-in-time view of the controller.
type Snapshot struct {
	State      State
	SessionID  string
	Fragments  int
	Bytes      int
	Transcript string
	Source     Source
	Error      string
}

// Controller owns the capture state machine. At most one capture is in
// flight; a new one cannot start until the previous one has succeeded or
// failed.
type Controller struct {
	device   audio.Device
	uploader Uploader
	store    Store
	events   hub

	mu         sync.Mutex
	state      State
	starting   bool
	sessionID  string
	stream     audio.Stream
	assembler  *audio.Assembler
	collected  chan struct{}
	fragments  int
	bytes      int
	transcript string
	source     Source
	errMsg     string
}

// New creates an idle controller.
func New(device audio.Device, uploader Uploader, store Store) *Controller {
	return &Controller{
		device:   device,
		uploader: uploader,
		store:    store,
		state:    StateIdle,
	}
}

// Subscribe returns a channel of controller events and a function that
// ends the subscription. Events are dropped for subscribers that fall
// behind.
func (c *Controller) Subscribe() (<-chan Event, func()) {
	return c.events.subscribe()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		State:      c.state,
		SessionID:  c.sessionID,
		Fragments:  c.fragments,
		Bytes:      c.bytes,
		Transcript: c.transcript,
		Source:     c.source,
		Error:      c.errMsg,
	}
}

// Start opens the capture device and begins recording. It returns ErrBusy
// while a capture is recording or processing. If the device cannot be
// opened the error is published and returned, and the controller stays in
// StateIdle.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Busy() || c.starting {
		c.mu.Unlock()
		return ErrBusy
	}
	c.starting = true
	c.mu.Unlock()

	stream, err := c.device.Open(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.starting = false

	if err != nil {
		log.Printf("[ERROR] open capture device: %v", err)
		c.resetLocked()
		c.events.publish(Event{Type: EventError, State: StateIdle, Message: UserMessage(err)})
		c.publishStatusLocked()
		return err
	}

	c.resetLocked()
	c.state = StateRecording
	c.sessionID = uuid.NewString()
	c.stream = stream
	c.assembler = audio.NewAssembler()
	c.collected = make(chan struct{})
	go c.collect(stream, c.assembler, c.collected)

	log.Printf("[INFO] recording started session=%s", c.sessionID)
	c.publishStatusLocked()
	return nil
}

// collect drains the stream into the session's assembler until the device
// closes the channel. It is the only writer to asm.
func (c *Controller) collect(stream audio.Stream, asm *audio.Assembler, done chan<- struct{}) {
	defer close(done)

	for f := range stream.Fragments() {
		if err := asm.Append(f); err != nil {
			continue
		}

		c.mu.Lock()
		c.fragments++
		c.bytes += f.Size()
		ev := Event{
			Type:      EventFragment,
			State:     c.state,
			SessionID: c.sessionID,
			Fragments: c.fragments,
			Bytes:     c.bytes,
		}
		c.mu.Unlock()
		c.events.publish(ev)
	}
}

// Stop ends the recording, then assembles and uploads it. It blocks until
// the capture has succeeded or failed and returns the failure, if any.
// Outside StateRecording it returns ErrNotRecording and changes nothing.
func (c *Controller) Stop(ctx context.Context) error {
	finish, err := c.BeginStop()
	if err != nil {
		return err
	}
	return finish(ctx)
}

// BeginStop moves a recording to StateProcessing and returns the function
// that stops the device, assembles and uploads. Of concurrent callers only
// one gets a finish function; the rest get ErrNotRecording.
func (c *Controller) BeginStop() (func(context.Context) error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateRecording {
		return nil, ErrNotRecording
	}
	c.state = StateProcessing
	stream, asm, collected, id := c.stream, c.assembler, c.collected, c.sessionID
	c.stream = nil
	c.publishStatusLocked()

	return func(ctx context.Context) error {
		return c.process(ctx, id, stream, asm, collected)
	}, nil
}

func (c *Controller) process(ctx context.Context, id string, stream audio.Stream, asm *audio.Assembler, collected <-chan struct{}) error {
	if err := stream.Stop(); err != nil {
		log.Printf("[WARN] stop capture session=%s: %v", id, err)
	}
	<-collected

	art, err := asm.Finalize()
	if err != nil {
		log.Printf("[ERROR] assemble session=%s: %v", id, err)
		c.fail(err)
		return err
	}
	log.Printf("[INFO] uploading session=%s bytes=%d samples=%d", id, len(art.Data), art.Samples)

	res, err := c.uploader.Upload(ctx, art)
	if err != nil {
		log.Printf("[ERROR] transcribe session=%s: %v", id, err)
		c.fail(err)
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.assembler = nil
	c.succeedLocked(res.Text, SourceMicrophone)
	log.Printf("[INFO] transcript ready session=%s chars=%d", id, len(res.Text))
	return nil
}

// Toggle starts a capture when idle and stops it when recording.
func (c *Controller) Toggle(ctx context.Context) error {
	c.mu.Lock()
	state := c.state
	c.mu.Unlock()

	switch state {
	case StateRecording:
		return c.Stop(ctx)
	case StateProcessing:
		return ErrBusy
	default:
		return c.Start(ctx)
	}
}

// Adopt accepts text produced outside the audio pipeline, such as an
// imported document, as if it were a finished transcript.
func (c *Controller) Adopt(text string, source Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state.Busy() || c.starting {
		return ErrBusy
	}
	c.resetLocked()
	c.sessionID = uuid.NewString()
	c.succeedLocked(text, source)
	return nil
}

// Save stores the current transcript under name and returns to StateIdle.
// Saving an identical (name, transcript) pair twice stores one lecture.
func (c *Controller) Save(name string) (db.Lecture, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateSucceeded {
		return db.Lecture{}, false, ErrNothingToSave
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return db.Lecture{}, false, ErrEmptyName
	}

	lecture, created, err := c.store.Save(name, c.transcript)
	if err != nil {
		return db.Lecture{}, false, err
	}
	if created {
		log.Printf("[INFO] saved lecture id=%s name=%q", lecture.ID, lecture.Name)
	}

	c.resetLocked()
	c.publishStatusLocked()
	c.events.publish(Event{Type: EventLectures})
	return lecture, created, nil
}

// Dismiss discards a finished transcript or error and returns to StateIdle.
func (c *Controller) Dismiss() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateRecording, StateProcessing:
		return ErrBusy
	case StateIdle:
		return nil
	}
	c.resetLocked()
	c.publishStatusLocked()
	return nil
}

// DeleteLecture removes a saved lecture. Unknown ids are ignored.
func (c *Controller) DeleteLecture(id string) error {
	if err := c.store.Delete(id); err != nil {
		return err
	}
	c.events.publish(Event{Type: EventLectures})
	return nil
}

func (c *Controller) fail(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assembler = nil
	c.failLocked(err)
}

func (c *Controller) failLocked(err error) {
	c.state = StateFailed
	c.transcript = ""
	c.errMsg = UserMessage(err)
	c.events.publish(Event{
		Type:      EventError,
		State:     c.state,
		SessionID: c.sessionID,
		Message:   c.errMsg,
	})
	c.publishStatusLocked()
}

func (c *Controller) succeedLocked(text string, source Source) {
	c.state = StateSucceeded
	c.transcript = text
	c.source = source
	c.errMsg = ""
	c.events.publish(Event{
		Type:      EventTranscript,
		State:     c.state,
		SessionID: c.sessionID,
		Text:      text,
		Source:    source,
	})
	c.publishStatusLocked()
}

func (c *Controller) resetLocked() {
	c.state = StateIdle
	c.sessionID = ""
	c.fragments = 0
	c.bytes = 0
	c.transcript = ""
	c.source = ""
	c.errMsg = ""
}

func (c *Controller) publishStatusLocked() {
	snap := c.snapshotLocked()
	c.events.publish(Event{
		Type:      EventStatus,
		State:     snap.State,
		SessionID: snap.SessionID,
		Fragments: snap.Fragments,
		Bytes:     snap.Bytes,
		Message:   snap.Error,
	})
}

var _ Uploader = (*transcribe.Client)(nil)
var _ Store = (*db.Store)(nil)

// IsRejection reports whether err is a state-machine refusal rather than a
// pipeline failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrBusy) || errors.Is(err, ErrNotRecording) ||
		errors.Is(err, ErrNothingToSave) || errors.Is(err, ErrEmptyName)
}
