// Command memod is the memo recording daemon. It owns the microphone, the
// transcription pipeline and the lecture store, and serves clients over a
// Unix socket.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/memoapp/memo/internal/audio"
	"github.com/memoapp/memo/internal/config"
	"github.com/memoapp/memo/internal/daemon"
	"github.com/memoapp/memo/internal/db"
	"github.com/memoapp/memo/internal/pdf"
	"github.com/memoapp/memo/internal/session"
	"github.com/memoapp/memo/internal/transcribe"
)

func main() {
	envFile := flag.String("env", ".env", "path to a .env file")
	flag.Parse()

	if err := run(*envFile); err != nil {
		log.Fatalf("[ERROR] %v", err)
	}
}

func run(envFile string) error {
	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}

	store, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	device := &audio.FFmpegDevice{
		InputFormat: cfg.AudioFormat,
		Input:       cfg.AudioInput,
		SampleRate:  cfg.SampleRate,
		Channels:    cfg.Channels,
	}
	uploader := transcribe.New(cfg.TranscribeURL, transcribe.WithTimeout(cfg.TranscribeTimeout))
	ctrl := session.New(device, uploader, store)

	ln, err := daemon.Listen(cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("socket %s: %w", cfg.SocketPath, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Printf("[INFO] memod listening on %s", cfg.SocketPath)
	log.Printf("[INFO] lectures in %s, transcribing via %s", cfg.DBPath, cfg.TranscribeURL)

	srv := daemon.NewServer(ctrl, store, pdf.ExtractFile)
	if err := srv.Serve(ctx, ln); err != nil {
		return err
	}

	log.Println("[INFO] memod stopped")
	return nil
}
