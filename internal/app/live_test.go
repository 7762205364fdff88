package app

import (
	"fmt"
	"os"
	"testing"

	"github.com/memoapp/memo/internal/daemon"
	"github.com/memoapp/memo/internal/db"

	tea "github.com/charmbracelet/bubbletea"
)

// TestLiveTUIFlow exercises the TUI model against a running memod: connect,
// subscribe, read status and lectures, and render.
// Skipped if the daemon isn't running.
func TestLiveTUIFlow(t *testing.T) {
	sockPath := daemon.SocketPath()
	if _, err := os.Stat(sockPath); os.IsNotExist(err) {
		t.Skip("daemon not running")
	}

	m := New(Options{SocketPath: sockPath})
	m, _ = applyUpdate(m, tea.WindowSizeMsg{Width: 120, Height: 40})

	msg := connectCmd(sockPath)()
	connected, ok := msg.(DaemonConnectedMsg)
	if !ok {
		t.Fatalf("connect: %v", msg)
	}
	defer connected.Client.Close()
	defer connected.EvClient.Close()

	m, _ = applyUpdate(m, connected)
	if !m.connected {
		t.Fatal("expected connected")
	}

	resp, err := connected.Client.SendCommand(daemon.Command{Cmd: daemon.CmdStatus})
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	m, _ = applyUpdate(m, StatusResponseMsg{Response: resp})
	fmt.Printf("Status: state=%q session=%q\n", m.state, m.sessionID)

	if err := connected.EvClient.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if _, err := os.Stat(db.DefaultDBPath()); err == nil {
		if store, ok := openStoreCmd(db.DefaultDBPath())().(storeOpenedMsg); ok {
			m, _ = applyUpdate(m, store)
			m, _ = applyUpdate(m, loadLecturesCmd(m.store)())
		}
	}
	fmt.Printf("Lectures: %d\n", len(m.lectures))

	fmt.Println("=== Connected View ===")
	fmt.Println(m.View())
}

func applyUpdate(m Model, msg tea.Msg) (Model, tea.Cmd) {
	newModel, cmd := m.Update(msg)
	return newModel.(Model), cmd
}
