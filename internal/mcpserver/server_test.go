package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/memoapp/memo/internal/db"
)

type fakeSource struct {
	lectures []db.Lecture
	err      error
}

func (f *fakeSource) ListAll() ([]db.Lecture, error) { return f.lectures, f.err }

func (f *fakeSource) Get(id string) (*db.Lecture, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.lectures {
		if f.lectures[i].ID == id {
			return &f.lectures[i], nil
		}
	}
	return nil, nil
}

func call(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	if res == nil || len(res.Content) == 0 {
		t.Fatal("empty tool result")
	}
	text, ok := res.Content[0].(mcp.TextContent)
	if !ok {
		t.Fatalf("content = %T, want TextContent", res.Content[0])
	}
	return text.Text
}

func TestListLectures(t *testing.T) {
	src := &fakeSource{lectures: []db.Lecture{
		{ID: "1", Name: "Biology", Transcription: "cells divide"},
		{ID: "2", Name: "Café", Transcription: "déjà vu"},
	}}

	res, err := NewTools(src).ListLectures(context.Background(), call(nil))
	if err != nil {
		t.Fatalf("ListLectures: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(t, res))
	}

	var got []lectureSummary
	if err := json.Unmarshal([]byte(resultText(t, res)), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d lectures, want 2", len(got))
	}
	if got[0].ID != "1" || got[0].Name != "Biology" || got[0].Length != 12 {
		t.Errorf("got[0] = %+v", got[0])
	}
	if got[1].Length != 7 {
		t.Errorf("Length = %d, want 7 characters", got[1].Length)
	}
}

func TestListLecturesEmpty(t *testing.T) {
	res, err := NewTools(&fakeSource{}).ListLectures(context.Background(), call(nil))
	if err != nil {
		t.Fatalf("ListLectures: %v", err)
	}
	if got := resultText(t, res); got != "[]" {
		t.Errorf("text = %q, want []", got)
	}
}

func TestListLecturesStoreError(t *testing.T) {
	res, err := NewTools(&fakeSource{err: errors.New("disk gone")}).ListLectures(context.Background(), call(nil))
	if err != nil {
		t.Fatalf("ListLectures: %v", err)
	}
	if !res.IsError {
		t.Error("expected tool error result")
	}
}

func TestGetLecture(t *testing.T) {
	src := &fakeSource{lectures: []db.Lecture{{ID: "42", Name: "Lecture1", Transcription: "hello world"}}}
	tools := NewTools(src)

	res, err := tools.GetLecture(context.Background(), call(map[string]any{"id": "42"}))
	if err != nil {
		t.Fatalf("GetLecture: %v", err)
	}
	text := resultText(t, res)
	if !strings.Contains(text, "Lecture1") || !strings.Contains(text, "hello world") {
		t.Errorf("text = %q", text)
	}

	res, _ = tools.GetLecture(context.Background(), call(map[string]any{"id": "nope"}))
	if !res.IsError {
		t.Error("expected error for unknown id")
	}

	res, _ = tools.GetLecture(context.Background(), call(map[string]any{}))
	if !res.IsError {
		t.Error("expected error for missing id")
	}
}

func TestGetLectureFromStore(t *testing.T) {
	store, err := db.Open(t.TempDir() + "/memo.sqlite")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	saved, _, err := store.Save("Physics", "energy is conserved")
	if err != nil {
		t.Fatalf("Save: %v", err)
	}

	res, err := NewTools(store).GetLecture(context.Background(), call(map[string]any{"id": saved.ID}))
	if err != nil {
		t.Fatalf("GetLecture: %v", err)
	}
	if !strings.Contains(resultText(t, res), "energy is conserved") {
		t.Errorf("text = %q", resultText(t, res))
	}
}

func TestNewRegistersTools(t *testing.T) {
	if New(&fakeSource{}) == nil {
		t.Fatal("New returned nil")
	}
}
