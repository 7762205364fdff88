package daemon

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/memoapp/memo/internal/db"
	"github.com/memoapp/memo/internal/session"
)

// LectureLister reads the saved lectures.
type LectureLister interface {
	ListAll() ([]db.Lecture, error)
}

// Extractor turns an imported document into plain text.
type Extractor func(path string) (string, error)

// Server answers commands for one controller and streams its events to
// subscribers.
type Server struct {
	ctrl     *session.Controller
	lectures LectureLister
	extract  Extractor

	wg sync.WaitGroup
}

// NewServer creates a server. extract may be nil, in which case import
// commands are refused.
func NewServer(ctrl *session.Controller, lectures LectureLister, extract Extractor) *Server {
	return &Server{ctrl: ctrl, lectures: lectures, extract: extract}
}

// Listen opens the Unix socket at path. A socket file left behind by a
// dead daemon is removed; a live one is an error.
func Listen(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket dir: %w", err)
	}

	if _, err := os.Stat(path); err == nil {
		conn, dialErr := net.DialTimeout("unix", path, time.Second)
		if dialErr == nil {
			conn.Close()
			return nil, fmt.Errorf("daemon already listening on %s", path)
		}
		if err := os.Remove(path); err != nil {
			return nil, fmt.Errorf("remove stale socket: %w", err)
		}
	}

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	return ln, nil
}

// Serve accepts connections until ctx is cancelled, then closes the
// listener and waits for open connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handle(ctx, conn)
		}()
	}
}

func (s *Server) handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	// Unblock reads on shutdown.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	enc := json.NewEncoder(conn)

	for scanner.Scan() {
		var cmd Command
		if err := json.Unmarshal(scanner.Bytes(), &cmd); err != nil {
			_ = enc.Encode(Response{Error: fmt.Sprintf("invalid command: %v", err)})
			continue
		}

		if cmd.Cmd == CmdSubscribe {
			s.stream(ctx, conn, scanner, enc)
			return
		}

		if err := enc.Encode(s.dispatch(ctx, cmd)); err != nil {
			return
		}
	}
}

// stream turns the connection into an event feed until the client hangs
// up or the server shuts down.
func (s *Server) stream(ctx context.Context, conn net.Conn, scanner *bufio.Scanner, enc *json.Encoder) {
	events, unsubscribe := s.ctrl.Subscribe()
	defer unsubscribe()

	snap := s.ctrl.Snapshot()
	if err := enc.Encode(Response{OK: true, SessionID: snap.SessionID, State: string(snap.State)}); err != nil {
		return
	}

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for scanner.Scan() {
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-gone:
			return
		case ev := <-events:
			if err := enc.Encode(toWire(ev)); err != nil {
				return
			}
		}
	}
}

func (s *Server) dispatch(ctx context.Context, cmd Command) Response {
	switch cmd.Cmd {
	case CmdStatus:
		return s.status()

	case CmdStart:
		if err := s.ctrl.Start(ctx); err != nil {
			return failure(err)
		}
		return s.status()

	case CmdStop:
		return s.stop(ctx)

	case CmdToggle:
		if s.ctrl.Snapshot().State == session.StateRecording {
			return s.stop(ctx)
		}
		if err := s.ctrl.Toggle(ctx); err != nil {
			return failure(err)
		}
		return s.status()

	case CmdSave:
		lecture, created, err := s.ctrl.Save(cmd.Name)
		if err != nil {
			return failure(err)
		}
		resp := s.status()
		resp.Lecture = &lecture
		resp.Created = BoolPtr(created)
		return resp

	case CmdDismiss:
		if err := s.ctrl.Dismiss(); err != nil {
			return failure(err)
		}
		return s.status()

	case CmdDelete:
		if cmd.ID == "" {
			return Response{Error: "id is required"}
		}
		if err := s.ctrl.DeleteLecture(cmd.ID); err != nil {
			return failure(err)
		}
		return Response{OK: true}

	case CmdLectures:
		lectures, err := s.lectures.ListAll()
		if err != nil {
			return failure(err)
		}
		if lectures == nil {
			lectures = []db.Lecture{}
		}
		return Response{OK: true, Lectures: lectures}

	case CmdImport:
		return s.importFile(cmd.Path)

	default:
		return Response{Error: fmt.Sprintf("unknown command %q", cmd.Cmd)}
	}
}

// stop answers immediately; assembly and upload continue in the background
// and report through transcript or error events.
func (s *Server) stop(ctx context.Context) Response {
	finish, err := s.ctrl.BeginStop()
	if err != nil {
		return failure(err)
	}
	snap := s.ctrl.Snapshot()

	go func() {
		if err := finish(context.WithoutCancel(ctx)); err != nil {
			log.Printf("[WARN] session %s failed: %v", snap.SessionID, err)
		}
	}()

	return Response{
		OK:        true,
		SessionID: snap.SessionID,
		State:     string(session.StateProcessing),
		Fragments: IntPtr(snap.Fragments),
		Bytes:     IntPtr(snap.Bytes),
	}
}

func (s *Server) importFile(path string) Response {
	if s.extract == nil {
		return Response{Error: "import is not available"}
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return Response{Error: "path is required"}
	}

	text, err := s.extract(path)
	if err != nil {
		log.Printf("[ERROR] import %s: %v", path, err)
		return Response{Error: fmt.Sprintf("import failed: %v", err)}
	}
	if err := s.ctrl.Adopt(text, session.SourcePDF); err != nil {
		return failure(err)
	}
	return s.status()
}

func (s *Server) status() Response {
	snap := s.ctrl.Snapshot()
	return Response{
		OK:         true,
		SessionID:  snap.SessionID,
		State:      string(snap.State),
		Fragments:  IntPtr(snap.Fragments),
		Bytes:      IntPtr(snap.Bytes),
		Transcript: snap.Transcript,
		Message:    snap.Error,
	}
}

func failure(err error) Response {
	if session.IsRejection(err) || errors.Is(err, db.ErrReadOnly) {
		return Response{Error: err.Error()}
	}
	return Response{Error: session.UserMessage(err)}
}

func toWire(ev session.Event) Event {
	out := Event{
		Event:     string(ev.Type),
		State:     string(ev.State),
		SessionID: ev.SessionID,
		Text:      ev.Text,
		Source:    string(ev.Source),
		Message:   ev.Message,
	}
	if ev.Type == session.EventFragment || ev.Type == session.EventStatus {
		out.Fragments = IntPtr(ev.Fragments)
		out.Bytes = IntPtr(ev.Bytes)
	}
	return out
}
