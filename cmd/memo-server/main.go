// Command memo-server serves the transcription proxy and the quiz API.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/memoapp/memo/internal/config"
	"github.com/memoapp/memo/internal/quiz"
	"github.com/memoapp/memo/internal/server"
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var store quiz.Store
	switch {
	case cfg.DatabaseURL != "":
		pg, err := quiz.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		store = pg
		log.Println("[INFO] storing quizzes in Postgres")
	case cfg.SupabaseURL != "" && cfg.SupabaseKey != "":
		sb, err := quiz.NewSupabaseStore(cfg.SupabaseURL, cfg.SupabaseKey)
		if err != nil {
			return err
		}
		store = sb
		log.Println("[INFO] storing quizzes in Supabase")
	default:
		log.Println("[WARN] no DATABASE_URL or SUPABASE_URL set, quiz endpoints are disabled")
	}

	var gen server.Generator
	if cfg.OpenAIKey != "" {
		gen = quiz.NewGenerator(cfg.OpenAIKey, cfg.OpenAIModel)
	} else {
		log.Println("[WARN] OPENAI_API_KEY not set, quiz generation will fail")
	}

	inference := transcribe.New(cfg.InferenceURL, transcribe.WithTimeout(cfg.TranscribeTimeout))

	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           server.New(inference, gen, store).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[INFO] memo-server running on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Println("[INFO] shutting down")
	return srv.Shutdown(shutdownCtx)
}
