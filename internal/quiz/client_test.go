package quiz

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientGenerateAndGet(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/quiz/generate-quiz":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["text"] != "lecture text" {
				t.Errorf("text = %q", body["text"])
			}
			_, _ = w.Write([]byte(`{"quizzId":42}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/quiz/42":
			_ = json.NewEncoder(w).Encode(twoQuestionQuiz())
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"Quizz not found"}`))
		}
	}))
	defer server.Close()

	c := NewClient(server.URL + "/")
	ctx := context.Background()

	id, err := c.Generate(ctx, "lecture text")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if id != 42 {
		t.Errorf("id = %d, want 42", id)
	}

	q, err := c.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(q.Questions) != 2 {
		t.Errorf("questions = %d", len(q.Questions))
	}

	if _, err := c.Get(ctx, 7); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(7) = %v, want ErrNotFound", err)
	}
}

func TestClientServiceError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"OpenAI API key not provided"}`))
	}))
	defer server.Close()

	_, err := NewClient(server.URL).Generate(context.Background(), "x")
	if err == nil || !strings.Contains(err.Error(), "OpenAI API key not provided") {
		t.Fatalf("err = %v", err)
	}
}
