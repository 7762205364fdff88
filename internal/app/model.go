package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/memoapp/memo/internal/daemon"
	"github.com/memoapp/memo/internal/db"
	"github.com/memoapp/memo/internal/quiz"

	tea "github.com/charmbracelet/bubbletea"
)

// PanelFocus tracks which panel has keyboard focus.
type PanelFocus int

const (
	FocusLectures PanelFocus = iota
	FocusDetail
)

// Mode selects how key presses are interpreted.
type Mode int

const (
	ModeNormal Mode = iota
	ModeNamePrompt
	ModeImportPrompt
	ModeQuiz
)

// Daemon session states as reported on the wire.
const (
	stateIdle       = "idle"
	stateRecording  = "recording"
	stateProcessing = "processing"
	stateSucceeded  = "succeeded"
	stateFailed     = "failed"
)

const quizTimeout = 3 * time.Minute

// LectureReader is the read side of the lecture store.
type LectureReader interface {
	ListAll() ([]db.Lecture, error)
}

// QuizService generates and fetches quizzes. *quiz.Client satisfies it.
type QuizService interface {
	Generate(ctx context.Context, text string) (int64, error)
	Get(ctx context.Context, id int64) (*quiz.Quiz, error)
}

// Options configures the model. Zero values use the default socket and
// database paths; a nil Quizzes disables quiz generation.
type Options struct {
	SocketPath string
	DBPath     string
	Quizzes    QuizService
}

// Model is the root bubbletea model for the memo TUI.
type Model struct {
	opts Options

	// Connection state
	client    *daemon.Client // command connection
	evClient  *daemon.Client // event subscription connection
	connected bool
	connError string

	// Session state mirrored from the daemon
	state      string
	sessionID  string
	fragments  int
	bytes      int
	source     string
	transcript string

	// Lectures
	lectures     []db.Lecture
	selected     int
	detailScroll int

	// Prompts
	mode  Mode
	input string

	// Quiz
	runner      *quiz.Runner
	quizLoading bool
	lastCorrect *bool

	// UI state
	focusedPanel PanelFocus
	width        int
	height       int

	// Errors
	errorMessage   string
	errorTransient bool

	// Status
	statusText string

	// DB
	store LectureReader

	// Reconnect
	reconnecting     bool
	reconnectAttempt int
}

// New creates a new Model with default state.
func New(opts Options) Model {
	if opts.SocketPath == "" {
		opts.SocketPath = daemon.SocketPath()
	}
	if opts.DBPath == "" {
		opts.DBPath = db.DefaultDBPath()
	}
	return Model{
		opts:         opts,
		state:        stateIdle,
		statusText:   "Connecting to memod...",
		focusedPanel: FocusLectures,
	}
}

// Init returns the initial command: connect to the daemon.
func (m Model) Init() tea.Cmd {
	return connectCmd(m.opts.SocketPath)
}

// connectCmd attempts to connect to the daemon with two connections:
// one for commands, one for event subscription.
func connectCmd(sockPath string) tea.Cmd {
	return func() tea.Msg {
		client, err := daemon.Connect(sockPath)
		if err != nil {
			return DaemonConnectErrorMsg{Err: err}
		}
		evClient, err := daemon.Connect(sockPath)
		if err != nil {
			client.Close()
			return DaemonConnectErrorMsg{Err: err}
		}
		return DaemonConnectedMsg{Client: client, EvClient: evClient}
	}
}

// subscribeCmd switches the event client to streaming and reads the first event.
func subscribeCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		if err := evClient.Subscribe(); err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return readEventCmd(evClient)()
	}
}

// readEventCmd reads the next event from the event client.
func readEventCmd(evClient *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		ev, err := evClient.ReadEvent()
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return DaemonEventMsg{Event: ev}
	}
}

// statusCmd fetches daemon status.
func statusCmd(client *daemon.Client) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(daemon.Command{Cmd: daemon.CmdStatus})
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return StatusResponseMsg{Response: resp}
	}
}

// sendCmd sends a command on the command connection.
func sendCmd(client *daemon.Client, cmd daemon.Command) tea.Cmd {
	return func() tea.Msg {
		resp, err := client.SendCommand(cmd)
		if err != nil {
			return DaemonEventErrorMsg{Err: err}
		}
		return CommandResponseMsg{Cmd: cmd.Cmd, Response: resp}
	}
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// reconnectCmd schedules a reconnection attempt with exponential backoff.
func reconnectCmd(attempt int) tea.Cmd {
	delay := time.Duration(1<<min(attempt, 4)) * time.Second // 1s, 2s, 4s, 8s, 16s cap
	return tea.Tick(delay, func(time.Time) tea.Msg {
		return ReconnectTickMsg{}
	})
}

// openStoreCmd opens the lecture store read-only. The daemon creates the
// database, so a missing file is retried on the next lectures event.
func openStoreCmd(path string) tea.Cmd {
	return func() tea.Msg {
		store, err := db.OpenReadOnly(path)
		if err != nil {
			return nil
		}
		return storeOpenedMsg{store: store}
	}
}

// loadLecturesCmd reads every saved lecture.
func loadLecturesCmd(store LectureReader) tea.Cmd {
	return func() tea.Msg {
		lectures, err := store.ListAll()
		return LecturesLoadedMsg{Lectures: lectures, Err: err}
	}
}

// generateQuizCmd builds a quiz from text and fetches it back.
func generateQuizCmd(svc QuizService, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), quizTimeout)
		defer cancel()

		id, err := svc.Generate(ctx, text)
		if err != nil {
			return QuizErrorMsg{Err: err}
		}
		q, err := svc.Get(ctx, id)
		if err != nil {
			return QuizErrorMsg{Err: err}
		}
		return QuizLoadedMsg{Quiz: q}
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case DaemonConnectedMsg:
		m.client = msg.Client
		m.evClient = msg.EvClient
		m.connected = true
		m.connError = ""
		m.reconnecting = false
		m.reconnectAttempt = 0
		m.statusText = "Connected"
		cmds := []tea.Cmd{subscribeCmd(m.evClient), statusCmd(m.client)}
		if m.store == nil {
			cmds = append(cmds, openStoreCmd(m.opts.DBPath))
		} else {
			cmds = append(cmds, loadLecturesCmd(m.store))
		}
		return m, tea.Batch(cmds...)

	case DaemonConnectErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.reconnecting = true
		m.statusText = "Daemon not running. Reconnecting..."
		return m, reconnectCmd(m.reconnectAttempt)

	case StatusResponseMsg:
		m.applyResponse(msg.Response)
		return m, nil

	case CommandResponseMsg:
		return m.handleResponse(msg)

	case DaemonEventMsg:
		cmd := m.handleEvent(msg.Event)
		// Continue reading events on event client
		return m, tea.Batch(cmd, readEventCmd(m.evClient))

	case DaemonEventErrorMsg:
		m.connected = false
		m.connError = msg.Err.Error()
		m.statusText = "Disconnected. Reconnecting..."
		m.reconnecting = true
		if m.client != nil {
			m.client.Close()
			m.client = nil
		}
		if m.evClient != nil {
			m.evClient.Close()
			m.evClient = nil
		}
		return m, reconnectCmd(m.reconnectAttempt)

	case ReconnectTickMsg:
		m.reconnectAttempt++
		return m, connectCmd(m.opts.SocketPath)

	case storeOpenedMsg:
		m.store = msg.store
		return m, loadLecturesCmd(m.store)

	case LecturesLoadedMsg:
		if msg.Err != nil {
			return m, m.setTransientError(fmt.Sprintf("load lectures: %v", msg.Err))
		}
		m.lectures = msg.Lectures
		if m.selected >= len(m.lectures) {
			m.selected = max(0, len(m.lectures)-1)
			m.detailScroll = 0
		}
		return m, nil

	case QuizLoadedMsg:
		m.quizLoading = false
		if msg.Quiz == nil || len(msg.Quiz.Questions) == 0 {
			return m, m.setTransientError("Quiz has no questions")
		}
		m.runner = quiz.NewRunner(msg.Quiz)
		m.lastCorrect = nil
		m.mode = ModeQuiz
		return m, nil

	case QuizErrorMsg:
		m.quizLoading = false
		return m, m.setTransientError(fmt.Sprintf("Quiz generation failed: %v", msg.Err))

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m, nil
}

// handleResponse applies the reply to a command sent with sendCmd.
func (m Model) handleResponse(msg CommandResponseMsg) (tea.Model, tea.Cmd) {
	r := msg.Response
	if !r.OK {
		return m, m.setTransientError(r.Error)
	}

	switch msg.Cmd {
	case daemon.CmdSave:
		m.mode = ModeNormal
		m.input = ""
		m.transcript = ""
		if r.Lecture != nil {
			if r.Created != nil && !*r.Created {
				m.statusText = fmt.Sprintf("Already saved as %q", r.Lecture.Name)
			} else {
				m.statusText = fmt.Sprintf("Saved %q", r.Lecture.Name)
			}
		}
	case daemon.CmdDismiss:
		if m.mode == ModeNamePrompt {
			m.mode = ModeNormal
			m.input = ""
		}
		m.transcript = ""
		if !m.errorTransient {
			m.errorMessage = ""
		}
	}

	if r.State != "" {
		m.applyResponse(r)
	}
	return m, nil
}

// applyResponse mirrors a status-bearing response into the model.
func (m *Model) applyResponse(r daemon.Response) {
	if !r.OK {
		return
	}
	m.sessionID = r.SessionID
	if r.Fragments != nil {
		m.fragments = *r.Fragments
	}
	if r.Bytes != nil {
		m.bytes = *r.Bytes
	}
	m.applyState(r.State)

	switch r.State {
	case stateSucceeded:
		if r.Transcript != "" {
			m.transcript = r.Transcript
			m.openNamePrompt()
		}
	case stateFailed:
		if r.Message != "" {
			m.errorMessage = r.Message
			m.errorTransient = false
		}
	}
}

func (m *Model) applyState(state string) {
	if state == "" {
		return
	}
	m.state = state
	switch state {
	case stateRecording:
		m.statusText = "Recording"
	case stateProcessing:
		m.statusText = "Transcribing..."
	case stateSucceeded:
		m.statusText = "Transcript ready"
	case stateFailed:
		m.statusText = "Failed"
	default:
		m.statusText = "Idle"
		m.transcript = ""
		m.fragments = 0
		m.bytes = 0
		if m.mode == ModeNamePrompt {
			m.mode = ModeNormal
			m.input = ""
		}
	}
}

// handleEvent processes a daemon event and returns any resulting command.
func (m *Model) handleEvent(ev daemon.Event) tea.Cmd {
	switch ev.Event {
	case "status":
		m.sessionID = ev.SessionID
		if ev.Fragments != nil {
			m.fragments = *ev.Fragments
		}
		if ev.Bytes != nil {
			m.bytes = *ev.Bytes
		}
		if ev.State == stateRecording && !m.errorTransient {
			m.errorMessage = ""
		}
		m.applyState(ev.State)

	case "fragment":
		if ev.Fragments != nil {
			m.fragments = *ev.Fragments
		}
		if ev.Bytes != nil {
			m.bytes = *ev.Bytes
		}

	case "transcript":
		m.transcript = ev.Text
		m.source = ev.Source
		m.applyState(stateSucceeded)
		m.openNamePrompt()

	case "error":
		m.errorMessage = ev.Message
		m.errorTransient = false

	case "lectures":
		if m.store == nil {
			return openStoreCmd(m.opts.DBPath)
		}
		return loadLecturesCmd(m.store)
	}

	return nil
}

func (m *Model) openNamePrompt() {
	if m.mode == ModeNamePrompt {
		return
	}
	m.mode = ModeNamePrompt
	m.input = ""
}

func (m *Model) setTransientError(text string) tea.Cmd {
	m.errorMessage = text
	m.errorTransient = true
	return clearTransientErrorCmd()
}

func (m Model) selectedLecture() *db.Lecture {
	if m.selected < 0 || m.selected >= len(m.lectures) {
		return nil
	}
	return &m.lectures[m.selected]
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == KeyCtrlC {
		return m.quit()
	}

	switch m.mode {
	case ModeNamePrompt, ModeImportPrompt:
		return m.handlePromptKey(msg)
	case ModeQuiz:
		return m.handleQuizKey(msg)
	}

	switch msg.String() {
	case KeyQuit, KeyQuitUpper:
		return m.quit()

	case KeySpace:
		if !m.connected {
			return m, nil
		}
		return m, sendCmd(m.client, daemon.Command{Cmd: daemon.CmdToggle})

	case KeyTab:
		if m.focusedPanel == FocusLectures {
			m.focusedPanel = FocusDetail
		} else {
			m.focusedPanel = FocusLectures
		}
		return m, nil

	case KeyJ, KeyDown:
		if m.focusedPanel == FocusLectures {
			if m.selected < len(m.lectures)-1 {
				m.selected++
				m.detailScroll = 0
			}
		} else if m.detailScroll < m.maxDetailScroll() {
			m.detailScroll++
		}
		return m, nil

	case KeyK, KeyUp:
		if m.focusedPanel == FocusLectures {
			if m.selected > 0 {
				m.selected--
				m.detailScroll = 0
			}
		} else if m.detailScroll > 0 {
			m.detailScroll--
		}
		return m, nil

	case KeyEnter:
		if m.state == stateSucceeded && m.transcript != "" {
			m.openNamePrompt()
		}
		return m, nil

	case KeyDelete:
		l := m.selectedLecture()
		if !m.connected || l == nil {
			return m, nil
		}
		return m, sendCmd(m.client, daemon.Command{Cmd: daemon.CmdDelete, ID: l.ID})

	case KeyDismiss:
		if !m.connected {
			return m, nil
		}
		return m, sendCmd(m.client, daemon.Command{Cmd: daemon.CmdDismiss})

	case KeyImport:
		if !m.connected {
			return m, nil
		}
		m.mode = ModeImportPrompt
		m.input = ""
		return m, nil

	case KeyGenerate:
		l := m.selectedLecture()
		if l == nil || m.quizLoading {
			return m, nil
		}
		if m.opts.Quizzes == nil {
			return m, m.setTransientError("Quiz server is not configured")
		}
		m.quizLoading = true
		m.statusText = fmt.Sprintf("Generating quiz for %q...", l.Name)
		return m, generateQuizCmd(m.opts.Quizzes, l.Transcription)
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	if m.client != nil {
		m.client.Close()
	}
	if m.evClient != nil {
		m.evClient.Close()
	}
	return m, tea.Quit
}

// handlePromptKey edits the name or import path prompt.
func (m Model) handlePromptKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		if m.mode == ModeNamePrompt {
			m.mode = ModeNormal
			m.input = ""
			if m.connected {
				return m, sendCmd(m.client, daemon.Command{Cmd: daemon.CmdDismiss})
			}
			return m, nil
		}
		m.mode = ModeNormal
		m.input = ""
		return m, nil

	case tea.KeyEnter:
		value := strings.TrimSpace(m.input)
		if m.mode == ModeNamePrompt {
			if value == "" {
				return m, m.setTransientError("Lecture name is required")
			}
			if !m.connected {
				return m, m.setTransientError("Not connected to memod")
			}
			return m, sendCmd(m.client, daemon.Command{Cmd: daemon.CmdSave, Name: value})
		}
		if value == "" {
			return m, m.setTransientError("File path is required")
		}
		m.mode = ModeNormal
		m.input = ""
		if !m.connected {
			return m, m.setTransientError("Not connected to memod")
		}
		m.statusText = "Importing..."
		return m, sendCmd(m.client, daemon.Command{Cmd: daemon.CmdImport, Path: value})

	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
		return m, nil

	case tea.KeySpace:
		m.input += " "
		return m, nil

	case tea.KeyRunes:
		m.input += string(msg.Runes)
		return m, nil
	}

	return m, nil
}

// handleQuizKey drives a quiz run: Enter starts and advances, 1-9 answer,
// Esc leaves.
func (m Model) handleQuizKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch key {
	case KeyEsc, KeyQuit, KeyQuitUpper:
		m.mode = ModeNormal
		m.runner = nil
		m.lastCorrect = nil
		m.applyState(m.state)
		return m, nil

	case KeyEnter:
		if m.runner.Submitted() {
			m.mode = ModeNormal
			m.runner = nil
			m.lastCorrect = nil
			m.applyState(m.state)
			return m, nil
		}
		err := m.runner.Next()
		if errors.Is(err, quiz.ErrNoAnswer) {
			return m, m.setTransientError("Choose an answer first")
		}
		m.lastCorrect = nil
		return m, nil
	}

	n, err := strconv.Atoi(key)
	if err != nil || n < 1 || n > 9 || !m.runner.Started() {
		return m, nil
	}
	correct, err := m.runner.Answer(n - 1)
	switch {
	case errors.Is(err, quiz.ErrAlreadyAnswered):
		return m, nil
	case err != nil:
		return m, m.setTransientError(err.Error())
	}
	m.lastCorrect = &correct
	return m, nil
}
