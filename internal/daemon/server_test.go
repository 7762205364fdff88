package daemon

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/memoapp/memo/internal/audio"
	"github.com/memoapp/memo/internal/db"
	"github.com/memoapp/memo/internal/session"
	"github.com/memoapp/memo/internal/transcribe"
)

type testStream struct {
	ch   chan audio.Fragment
	once sync.Once
}

func (s *testStream) Fragments() <-chan audio.Fragment { return s.ch }
func (s *testStream) Stop() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

type testDevice struct {
	capture []byte
}

func (d *testDevice) Open(ctx context.Context) (audio.Stream, error) {
	if d.capture == nil {
		return nil, &audio.DeviceAccessError{Device: "test", Err: errors.New("Permission denied")}
	}
	s := &testStream{ch: make(chan audio.Fragment, 2)}
	s.ch <- audio.Fragment(d.capture)
	return s, nil
}

type testUploader struct{ text string }

func (u testUploader) Upload(ctx context.Context, art transcribe.Artifact) (*transcribe.Result, error) {
	return &transcribe.Result{Text: u.text}, nil
}

func captureWAV(t *testing.T) []byte {
	t.Helper()

	f, err := os.CreateTemp(t.TempDir(), "capture-*.wav")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, 16000, 16, 1, 1)
	if err := enc.Write(&goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: 16000},
		Data:           []int{1, 2, 3, 4, 5, 6},
		SourceBitDepth: 16,
	}); err != nil {
		t.Fatalf("encode: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	data, err := os.ReadFile(f.Name())
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return data
}

type testDaemon struct {
	sock  string
	store *db.Store
}

// startTestDaemon runs a real server over a temp socket with fake audio
// and transcription.
func startTestDaemon(t *testing.T, device audio.Device, extract Extractor) *testDaemon {
	t.Helper()

	dir := t.TempDir()
	store, err := db.Open(filepath.Join(dir, "memo.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	// Unix socket paths are length limited; keep it short.
	sockDir, err := os.MkdirTemp("", "memod")
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	sock := filepath.Join(sockDir, "d.sock")

	ln, err := Listen(sock)
	if err != nil {
		t.Fatalf("listen: %v", err)
	}

	ctrl := session.New(device, testUploader{text: "hello world"}, store)
	srv := NewServer(ctrl, store, extract)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- srv.Serve(ctx, ln) }()

	t.Cleanup(func() {
		cancel()
		<-served
		store.Close()
		os.RemoveAll(sockDir)
	})
	return &testDaemon{sock: sock, store: store}
}

func connect(t *testing.T, sock string) *Client {
	t.Helper()
	c, err := Connect(sock)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func send(t *testing.T, c *Client, cmd Command) Response {
	t.Helper()
	resp, err := c.SendCommand(cmd)
	if err != nil {
		t.Fatalf("%s: %v", cmd.Cmd, err)
	}
	return resp
}

// nextEvent reads events until one of the wanted type arrives.
func nextEvent(t *testing.T, c *Client, want string) Event {
	t.Helper()

	type result struct {
		ev  Event
		err error
	}
	found := make(chan result, 1)
	go func() {
		for {
			ev, err := c.ReadEvent()
			if err != nil || ev.Event == want {
				found <- result{ev, err}
				return
			}
		}
	}()

	select {
	case r := <-found:
		if r.err != nil {
			t.Fatalf("read event: %v", r.err)
		}
		return r.ev
	case <-time.After(5 * time.Second):
		t.Fatalf("no %q event", want)
		return Event{}
	}
}

func TestServerRecordSaveFlow(t *testing.T) {
	d := startTestDaemon(t, &testDevice{capture: captureWAV(t)}, nil)

	cmds := connect(t, d.sock)
	events := connect(t, d.sock)
	if err := events.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	resp := send(t, cmds, Command{Cmd: CmdStart})
	if !resp.OK || resp.State != "recording" || resp.SessionID == "" {
		t.Fatalf("start = %+v", resp)
	}

	frag := nextEvent(t, events, "fragment")
	if frag.Fragments == nil || *frag.Fragments != 1 {
		t.Errorf("fragment event = %+v", frag)
	}

	resp = send(t, cmds, Command{Cmd: CmdStop})
	if !resp.OK || resp.State != "processing" {
		t.Fatalf("stop = %+v", resp)
	}

	ev := nextEvent(t, events, "transcript")
	if ev.Text != "hello world" || ev.Source != "microphone" {
		t.Errorf("transcript event = %+v", ev)
	}

	resp = send(t, cmds, Command{Cmd: CmdSave, Name: "Lecture1"})
	if !resp.OK || resp.Lecture == nil || resp.Created == nil || !*resp.Created {
		t.Fatalf("save = %+v", resp)
	}
	if resp.State != "idle" {
		t.Errorf("state after save = %q, want idle", resp.State)
	}
	nextEvent(t, events, "lectures")

	resp = send(t, cmds, Command{Cmd: CmdLectures})
	if len(resp.Lectures) != 1 || resp.Lectures[0].Name != "Lecture1" || resp.Lectures[0].Transcription != "hello world" {
		t.Errorf("lectures = %+v", resp.Lectures)
	}

	resp = send(t, cmds, Command{Cmd: CmdDelete, ID: resp.Lectures[0].ID})
	if !resp.OK {
		t.Fatalf("delete = %+v", resp)
	}
	resp = send(t, cmds, Command{Cmd: CmdLectures})
	if !resp.OK || len(resp.Lectures) != 0 {
		t.Errorf("lectures after delete = %+v", resp)
	}
}

func TestServerConcurrentStopsOneWins(t *testing.T) {
	d := startTestDaemon(t, &testDevice{capture: captureWAV(t)}, nil)
	clients := []*Client{connect(t, d.sock), connect(t, d.sock), connect(t, d.sock)}

	if resp := send(t, clients[0], Command{Cmd: CmdStart}); !resp.OK {
		t.Fatalf("start = %+v", resp)
	}

	responses := make([]Response, len(clients))
	errs := make([]error, len(clients))
	var wg sync.WaitGroup
	for i, c := range clients {
		wg.Add(1)
		go func() {
			defer wg.Done()
			responses[i], errs[i] = c.SendCommand(Command{Cmd: CmdStop})
		}()
	}
	wg.Wait()

	var ok int
	for i, resp := range responses {
		if errs[i] != nil {
			t.Fatalf("stop %d: %v", i, errs[i])
		}
		switch {
		case resp.OK && resp.State == "processing":
			ok++
		case resp.OK:
			t.Errorf("stop %d answered %+v", i, resp)
		case resp.Error != session.ErrNotRecording.Error():
			t.Errorf("stop %d error = %q", i, resp.Error)
		}
	}
	if ok != 1 {
		t.Errorf("%d stops accepted, want 1", ok)
	}
}

func TestServerRejections(t *testing.T) {
	d := startTestDaemon(t, &testDevice{capture: captureWAV(t)}, nil)
	c := connect(t, d.sock)

	if resp := send(t, c, Command{Cmd: CmdStop}); resp.OK || resp.Error != session.ErrNotRecording.Error() {
		t.Errorf("stop while idle = %+v", resp)
	}
	if resp := send(t, c, Command{Cmd: CmdSave, Name: "x"}); resp.OK {
		t.Errorf("save while idle = %+v", resp)
	}
	if resp := send(t, c, Command{Cmd: "bogus"}); resp.OK || !strings.Contains(resp.Error, "unknown command") {
		t.Errorf("bogus = %+v", resp)
	}
	if resp := send(t, c, Command{Cmd: CmdImport, Path: "/tmp/x.pdf"}); resp.OK {
		t.Errorf("import without extractor = %+v", resp)
	}

	send(t, c, Command{Cmd: CmdStart})
	if resp := send(t, c, Command{Cmd: CmdStart}); resp.OK || resp.Error != session.ErrBusy.Error() {
		t.Errorf("second start = %+v", resp)
	}
}

func TestServerDeviceDenied(t *testing.T) {
	d := startTestDaemon(t, &testDevice{}, nil)
	c := connect(t, d.sock)

	resp := send(t, c, Command{Cmd: CmdStart})
	if resp.OK {
		t.Fatal("start should fail without a device")
	}
	if !strings.HasPrefix(resp.Error, "Failed to access microphone") {
		t.Errorf("error = %q", resp.Error)
	}

	status := send(t, c, Command{Cmd: CmdStatus})
	if status.State != "idle" {
		t.Errorf("status = %+v, want idle", status)
	}
}

func TestServerImport(t *testing.T) {
	extract := func(path string) (string, error) {
		if path == "/docs/bad.pdf" {
			return "", errors.New("not a PDF")
		}
		return "chapter one", nil
	}
	d := startTestDaemon(t, &testDevice{}, extract)

	c := connect(t, d.sock)
	events := connect(t, d.sock)
	if err := events.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if resp := send(t, c, Command{Cmd: CmdImport, Path: "/docs/bad.pdf"}); resp.OK {
		t.Errorf("bad import = %+v", resp)
	}

	resp := send(t, c, Command{Cmd: CmdImport, Path: "/docs/notes.pdf"})
	if !resp.OK || resp.State != "succeeded" || resp.Transcript != "chapter one" {
		t.Fatalf("import = %+v", resp)
	}
	ev := nextEvent(t, events, "transcript")
	if ev.Source != "pdf" {
		t.Errorf("source = %q, want pdf", ev.Source)
	}

	if resp := send(t, c, Command{Cmd: CmdDismiss}); !resp.OK || resp.State != "idle" {
		t.Errorf("dismiss = %+v", resp)
	}
}

func TestListenRemovesStaleSocket(t *testing.T) {
	dir, err := os.MkdirTemp("", "memod")
	if err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	defer os.RemoveAll(dir)
	sock := filepath.Join(dir, "d.sock")

	if err := os.WriteFile(sock, nil, 0o600); err != nil {
		t.Fatalf("write stale: %v", err)
	}

	ln, err := Listen(sock)
	if err != nil {
		t.Fatalf("Listen over stale socket: %v", err)
	}
	defer ln.Close()

	if _, err := Listen(sock); err == nil {
		t.Error("expected error while a daemon is listening")
	}

	conn, err := net.Dial("unix", sock)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	conn.Close()
}
