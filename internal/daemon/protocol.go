// Package daemon provides the client, server and protocol types for talking
// to memod over a Unix socket using NDJSON.
package daemon

import "github.com/memoapp/memo/internal/db"

// Command names understood by the daemon.
const (
	CmdStatus    = "status"
	CmdStart     = "start"
	CmdStop      = "stop"
	CmdToggle    = "toggle"
	CmdSave      = "save"
	CmdDismiss   = "dismiss"
	CmdDelete    = "delete"
	CmdLectures  = "lectures"
	CmdImport    = "import"
	CmdSubscribe = "subscribe"
)

// Command is sent from a client to the daemon.
type Command struct {
	Cmd  string `json:"cmd"`
	Name string `json:"name,omitempty"`
	ID   string `json:"id,omitempty"`
	Path string `json:"path,omitempty"`
}

// Response is returned by the daemon after processing a command.
type Response struct {
	OK         bool         `json:"ok"`
	SessionID  string       `json:"sessionId,omitempty"`
	State      string       `json:"state,omitempty"`
	Fragments  *int         `json:"fragments,omitempty"`
	Bytes      *int         `json:"bytes,omitempty"`
	Transcript string       `json:"transcript,omitempty"`
	Created    *bool        `json:"created,omitempty"`
	Lecture    *db.Lecture  `json:"lecture,omitempty"`
	Lectures   []db.Lecture `json:"lectures,omitempty"`
	Message    string       `json:"message,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Event is streamed from the daemon to subscribed clients.
type Event struct {
	Event     string `json:"event"`
	State     string `json:"state,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Text      string `json:"text,omitempty"`
	Source    string `json:"source,omitempty"`
	Message   string `json:"message,omitempty"`
	Fragments *int   `json:"fragments,omitempty"`
	Bytes     *int   `json:"bytes,omitempty"`
}

// IntPtr returns a pointer to an int value.
func IntPtr(n int) *int { return &n }

// BoolPtr returns a pointer to a bool value.
func BoolPtr(b bool) *bool { return &b }
