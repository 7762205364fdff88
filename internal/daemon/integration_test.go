package daemon

import (
	"fmt"
	"os"
	"testing"
	"time"
)

// TestLiveDaemonStartStop records briefly against a running daemon and
// waits for the outcome on a separate event connection, the way the TUI
// does. Skipped if the daemon socket doesn't exist.
func TestLiveDaemonStartStop(t *testing.T) {
	sockPath := SocketPath()
	if _, err := os.Stat(sockPath); os.IsNotExist(err) {
		t.Skip("daemon not running")
	}

	cmdClient, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect cmd: %v", err)
	}
	defer cmdClient.Close()

	evClient, err := Connect(sockPath)
	if err != nil {
		t.Fatalf("connect ev: %v", err)
	}
	defer evClient.Close()

	if err := evClient.Subscribe(); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	resp, err := cmdClient.SendCommand(Command{Cmd: CmdStart})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !resp.OK {
		t.Skipf("start failed (no microphone?): %s", resp.Error)
	}
	fmt.Printf("Recording started: sessionId=%s\n", resp.SessionID)

	time.Sleep(2 * time.Second)

	resp, err = cmdClient.SendCommand(Command{Cmd: CmdStop})
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if !resp.OK {
		t.Fatalf("stop failed: %s", resp.Error)
	}
	if resp.State != "processing" {
		t.Errorf("state after stop = %q, want processing", resp.State)
	}
	fmt.Printf("Stopped: fragments=%d bytes=%d\n", *resp.Fragments, *resp.Bytes)

	counts := map[string]int{}
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			ev, err := evClient.ReadEvent()
			if err != nil {
				fmt.Printf("Event read error: %v\n", err)
				return
			}
			counts[ev.Event]++
			switch ev.Event {
			case "transcript":
				fmt.Printf("  transcript: %q\n", ev.Text)
				return
			case "error":
				fmt.Printf("  error: %s\n", ev.Message)
				return
			}
		}
	}()

	select {
	case <-done:
	case <-time.After(45 * time.Second):
		t.Fatal("no outcome within 45s")
	}

	fmt.Printf("Event counts: %v\n", counts)
	if counts["fragment"] == 0 {
		t.Error("expected fragment events during recording")
	}

	// Leave the daemon idle.
	_, _ = cmdClient.SendCommand(Command{Cmd: CmdDismiss})
}
