// Command memo is the terminal UI for recording lectures, browsing saved
// transcripts and taking quizzes.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/memoapp/memo/internal/app"
	"github.com/memoapp/memo/internal/config"
	"github.com/memoapp/memo/internal/quiz"
)

func main() {
	envFile := flag.String("env", ".env", "path to a .env file")
	flag.Parse()

	if err := run(*envFile); err != nil {
		fmt.Fprintln(os.Stderr, "memo:", err)
		os.Exit(1)
	}
}

func run(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	// The terminal belongs to the UI.
	if cfg.DebugLog != "" {
		f, err := tea.LogToFile(cfg.DebugLog, "memo")
		if err != nil {
			return fmt.Errorf("open debug log: %w", err)
		}
		defer f.Close()
	} else {
		log.SetOutput(io.Discard)
	}

	opts := app.Options{
		SocketPath: cfg.SocketPath,
		DBPath:     cfg.DBPath,
	}
	if cfg.ServerURL != "" {
		opts.Quizzes = quiz.NewClient(cfg.ServerURL)
	}

	p := tea.NewProgram(app.New(opts), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}
