package daemon

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"sync"
)

// SocketPath returns the default daemon socket path.
func SocketPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "Memo", "memo.sock")
}

const maxLine = 8 * 1024 * 1024

// Client communicates with memod over a Unix socket.
type Client struct {
	conn    net.Conn
	scanner *bufio.Scanner
	mu      sync.Mutex
}

// Connect dials the daemon Unix socket.
func Connect(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}

	// Lecture lists and transcripts can be long.
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 64*1024), maxLine)
	return &Client{conn: conn, scanner: scanner}, nil
}

// Close shuts down the connection.
func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SendCommand writes one command line and decodes the single response line
// that answers it. Safe for concurrent use on a command connection.
func (c *Client) SendCommand(cmd Command) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	line, err := json.Marshal(cmd)
	if err != nil {
		return Response{}, fmt.Errorf("marshal %s: %w", cmd.Cmd, err)
	}
	if _, err := c.conn.Write(append(line, '\n')); err != nil {
		return Response{}, fmt.Errorf("write %s: %w", cmd.Cmd, err)
	}

	var resp Response
	if err := c.readLine(&resp); err != nil {
		return Response{}, fmt.Errorf("%s response: %w", cmd.Cmd, err)
	}
	return resp, nil
}

// Subscribe turns the connection into an event stream. No further commands
// may be sent on it; call ReadEvent in a loop.
func (c *Client) Subscribe() error {
	resp, err := c.SendCommand(Command{Cmd: CmdSubscribe})
	if err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("subscribe: %s", resp.Error)
	}
	return nil
}

// ReadEvent blocks for the next event on a subscribed connection.
func (c *Client) ReadEvent() (Event, error) {
	var ev Event
	if err := c.readLine(&ev); err != nil {
		return Event{}, fmt.Errorf("event: %w", err)
	}
	return ev, nil
}

// errClosed reports that the daemon hung up.
var errClosed = errors.New("connection closed")

func (c *Client) readLine(v any) error {
	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return err
		}
		return errClosed
	}
	return json.Unmarshal(c.scanner.Bytes(), v)
}
