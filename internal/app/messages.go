package app

import (
	"github.com/memoapp/memo/internal/daemon"
	"github.com/memoapp/memo/internal/db"
	"github.com/memoapp/memo/internal/quiz"
)

// DaemonConnectedMsg is sent when both daemon connections are established.
type DaemonConnectedMsg struct {
	Client   *daemon.Client // for commands (toggle, save, dismiss, delete, import)
	EvClient *daemon.Client // for event subscription
}

// DaemonConnectErrorMsg is sent when the daemon connection fails.
type DaemonConnectErrorMsg struct {
	Err error
}

// DaemonEventMsg wraps a streamed event from the daemon.
type DaemonEventMsg struct {
	Event daemon.Event
}

// DaemonEventErrorMsg is sent when the event stream encounters an error.
type DaemonEventErrorMsg struct {
	Err error
}

// StatusResponseMsg carries the response to a status command.
type StatusResponseMsg struct {
	Response daemon.Response
}

// CommandResponseMsg carries the response to any other command.
type CommandResponseMsg struct {
	Cmd      string
	Response daemon.Response
}

// LecturesLoadedMsg carries lectures read from SQLite.
type LecturesLoadedMsg struct {
	Lectures []db.Lecture
	Err      error
}

// QuizLoadedMsg carries a generated quiz ready to take.
type QuizLoadedMsg struct {
	Quiz *quiz.Quiz
}

// QuizErrorMsg reports a failed quiz generation or fetch.
type QuizErrorMsg struct {
	Err error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}

// ReconnectTickMsg triggers a reconnection attempt.
type ReconnectTickMsg struct{}

type storeOpenedMsg struct{ store LectureReader }
