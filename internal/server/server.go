// Package server implements the memo HTTP service: a transcription proxy
// and the quiz endpoints.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/memoapp/memo/internal/quiz"
	"github.com/memoapp/memo/internal/transcribe"
)

const maxUploadSize = 64 << 20

// Transcriber forwards audio to the inference service.
type Transcriber interface {
	Upload(ctx context.Context, art transcribe.Artifact) (*transcribe.Result, error)
}

// Generator builds a quiz from text.
type Generator interface {
	Generate(ctx context.Context, text string) (*quiz.Quiz, error)
}

// Server holds the service dependencies. A nil generator means no API key
// is configured; a nil store disables quiz persistence.
type Server struct {
	transcriber Transcriber
	generator   Generator
	quizzes     quiz.Store
}

// New creates a server.
func New(t Transcriber, g Generator, store quiz.Store) *Server {
	return &Server{transcriber: t, generator: g, quizzes: store}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /api/quiz/generate-quiz", s.handleGenerateQuiz)
	mux.HandleFunc("GET /api/quiz/{id}", s.handleGetQuiz)
	return logRequests(mux)
}

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)

	file, header, err := r.FormFile("audio")
	if err != nil {
		log.Printf("[WARN] upload without audio part: %v", err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "File must be an audio file."})
		return
	}
	defer file.Close()

	contentType := header.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "audio/") {
		log.Printf("[WARN] invalid file type %q", contentType)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "File must be an audio file."})
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		log.Printf("[ERROR] read upload: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error processing audio file or transcription failed."})
		return
	}

	res, err := s.transcriber.Upload(r.Context(), transcribe.Payload{
		Name: "recording.wav",
		Type: "audio/wav",
		Data: data,
	})
	if err != nil {
		log.Printf("[ERROR] transcription failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Error processing audio file or transcription failed."})
		return
	}

	log.Printf("[INFO] transcribed %s (%d bytes, %d chars)", header.Filename, len(data), len(res.Text))
	writeJSON(w, http.StatusOK, map[string]string{"transcription": res.Text})
}

// quizText accepts a string or an array of strings joined by newlines.
func quizText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var parts []string
	if err := json.Unmarshal(raw, &parts); err == nil {
		return strings.Join(parts, "\n")
	}
	return ""
}

func (s *Server) handleGenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Text json.RawMessage `json:"text"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, maxUploadSize)).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Text input is required"})
		return
	}

	text := quizText(body.Text)
	if strings.TrimSpace(text) == "" {
		log.Println("[WARN] quiz request without text input")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "Text input is required"})
		return
	}

	if s.generator == nil {
		log.Println("[ERROR] OpenAI API key not provided")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "OpenAI API key not provided"})
		return
	}
	if s.quizzes == nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error", Details: "quiz store is not configured"})
		return
	}

	q, err := s.generator.Generate(r.Context(), text)
	switch {
	case errors.Is(err, quiz.ErrMissingAPIKey):
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "OpenAI API key not provided"})
		return
	case errors.Is(err, quiz.ErrNoQuiz):
		log.Printf("[ERROR] quiz data missing in model response")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Failed to generate quiz data"})
		return
	case err != nil:
		log.Printf("[ERROR] generate quiz: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error", Details: err.Error()})
		return
	}

	id, err := s.quizzes.SaveQuiz(r.Context(), q)
	if err != nil {
		log.Printf("[ERROR] save quiz: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error", Details: err.Error()})
		return
	}

	log.Printf("[INFO] quiz %d saved (%d questions)", id, len(q.Questions))
	writeJSON(w, http.StatusOK, map[string]int64{"quizzId": id})
}

func (s *Server) handleGetQuiz(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || s.quizzes == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Quizz not found"})
		return
	}

	q, err := s.quizzes.Quiz(r.Context(), id)
	if errors.Is(err, quiz.ErrNotFound) || (err == nil && len(q.Questions) == 0) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Quizz not found"})
		return
	}
	if err != nil {
		log.Printf("[ERROR] load quiz %d: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal Server Error", Details: err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, q)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] write response: %v", err)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("[INFO] %s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
