package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/memoapp/memo/internal/quiz"
	"github.com/memoapp/memo/internal/transcribe"
)

type stubTranscriber struct {
	text string
	err  error
	got  transcribe.Artifact
}

func (s *stubTranscriber) Upload(ctx context.Context, art transcribe.Artifact) (*transcribe.Result, error) {
	s.got = art
	if s.err != nil {
		return nil, s.err
	}
	return &transcribe.Result{Text: s.text}, nil
}

type stubGenerator struct {
	quiz *quiz.Quiz
	err  error
	text string
}

func (g *stubGenerator) Generate(ctx context.Context, text string) (*quiz.Quiz, error) {
	g.text = text
	return g.quiz, g.err
}

type memQuizzes struct {
	saved map[int64]*quiz.Quiz
}

func (m *memQuizzes) SaveQuiz(ctx context.Context, q *quiz.Quiz) (int64, error) {
	if m.saved == nil {
		m.saved = map[int64]*quiz.Quiz{}
	}
	id := int64(len(m.saved) + 1)
	cp := *q
	cp.ID = id
	m.saved[id] = &cp
	return id, nil
}

func (m *memQuizzes) Quiz(ctx context.Context, id int64) (*quiz.Quiz, error) {
	q, ok := m.saved[id]
	if !ok {
		return nil, quiz.ErrNotFound
	}
	return q, nil
}

func audioForm(t *testing.T, contentType string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="audio"; filename="recording.wav"`)
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		t.Fatalf("create part: %v", err)
	}
	_, _ = part.Write([]byte("RIFF-data"))
	_ = w.Close()
	return &buf, w.FormDataContentType()
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return out
}

func TestUploadForwardsAudio(t *testing.T) {
	tr := &stubTranscriber{text: "hello world"}
	h := New(tr, nil, nil).Handler()

	body, ct := audioForm(t, "audio/webm")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody(t, rec)["transcription"]; got != "hello world" {
		t.Errorf("transcription = %v", got)
	}
	if tr.got.Filename() != "recording.wav" || tr.got.ContentType() != "audio/wav" {
		t.Errorf("forwarded %q %q", tr.got.Filename(), tr.got.ContentType())
	}
	if string(tr.got.Bytes()) != "RIFF-data" {
		t.Errorf("forwarded data = %q", tr.got.Bytes())
	}
}

func TestUploadRejectsNonAudio(t *testing.T) {
	h := New(&stubTranscriber{}, nil, nil).Handler()

	body, ct := audioForm(t, "text/plain")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "File must be an audio file." {
		t.Errorf("error = %v", got)
	}

	// No file at all.
	req = httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader(""))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status without file = %d", rec.Code)
	}
}

func TestUploadTranscriptionFailure(t *testing.T) {
	tr := &stubTranscriber{err: &transcribe.ServerError{Status: 503, Body: "busy"}}
	h := New(tr, nil, nil).Handler()

	body, ct := audioForm(t, "audio/wav")
	req := httptest.NewRequest(http.MethodPost, "/upload", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := decodeBody(t, rec)["error"]; got != "Error processing audio file or transcription failed." {
		t.Errorf("error = %v", got)
	}
}

func sampleQuiz() *quiz.Quiz {
	return &quiz.Quiz{
		Name: "Cells",
		Questions: []quiz.Question{{
			QuestionText: "Powerhouse?",
			Answers:      []quiz.Answer{{AnswerText: "Mitochondria", IsCorrect: true}},
		}},
	}
}

func postJSON(h http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestGenerateQuizAndFetch(t *testing.T) {
	gen := &stubGenerator{quiz: sampleQuiz()}
	store := &memQuizzes{}
	h := New(nil, gen, store).Handler()

	rec := postJSON(h, "/api/quiz/generate-quiz", `{"text":["part one","part two"]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if gen.text != "part one\npart two" {
		t.Errorf("generator text = %q", gen.text)
	}
	if got := decodeBody(t, rec)["quizzId"]; got != float64(1) {
		t.Errorf("quizzId = %v", got)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/quiz/1", nil)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	var q quiz.Quiz
	if err := json.Unmarshal(rec.Body.Bytes(), &q); err != nil {
		t.Fatalf("decode quiz: %v", err)
	}
	if q.Name != "Cells" || len(q.Questions) != 1 {
		t.Errorf("quiz = %+v", q)
	}
}

func TestGenerateQuizErrors(t *testing.T) {
	tests := []struct {
		name   string
		gen    Generator
		body   string
		status int
		errMsg string
	}{
		{"missing text", &stubGenerator{quiz: sampleQuiz()}, `{}`, 400, "Text input is required"},
		{"empty body", &stubGenerator{quiz: sampleQuiz()}, ``, 400, "Text input is required"},
		{"no api key", nil, `{"text":"x"}`, 500, "OpenAI API key not provided"},
		{"no quiz", &stubGenerator{err: quiz.ErrNoQuiz}, `{"text":"x"}`, 500, "Failed to generate quiz data"},
		{"model failure", &stubGenerator{err: errors.New("rate limited")}, `{"text":"x"}`, 500, "Internal Server Error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := New(nil, tt.gen, &memQuizzes{}).Handler()
			rec := postJSON(h, "/api/quiz/generate-quiz", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := decodeBody(t, rec)["error"]; got != tt.errMsg {
				t.Errorf("error = %v, want %q", got, tt.errMsg)
			}
		})
	}
}

func TestGetQuizNotFound(t *testing.T) {
	store := &memQuizzes{}
	_, _ = store.SaveQuiz(context.Background(), &quiz.Quiz{Name: "empty"})
	h := New(nil, nil, store).Handler()

	for _, path := range []string{"/api/quiz/99", "/api/quiz/abc", "/api/quiz/1"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s: status = %d, want 404", path, rec.Code)
			continue
		}
		if got := decodeBody(t, rec)["error"]; got != "Quizz not found" {
			t.Errorf("%s: error = %v", path, got)
		}
	}
}
