// Package mcpserver exposes saved lectures to MCP clients over stdio.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"unicode/utf8"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/memoapp/memo/internal/db"
)

// Version is reported to MCP clients during initialization.
const Version = "0.1.0"

// LectureSource is the read side of the lecture store.
type LectureSource interface {
	ListAll() ([]db.Lecture, error)
	Get(id string) (*db.Lecture, error)
}

// lectureSummary is one entry of list_lectures.
type lectureSummary struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Length int    `json:"length"`
}

// Tools binds the tool handlers to a lecture source.
type Tools struct {
	lectures LectureSource
}

// NewTools creates the tool handlers.
func NewTools(lectures LectureSource) *Tools {
	return &Tools{lectures: lectures}
}

// New builds an MCP server with the lecture tools registered.
func New(lectures LectureSource) *server.MCPServer {
	s := server.NewMCPServer("memo", Version, server.WithToolCapabilities(false))
	t := NewTools(lectures)

	s.AddTool(mcp.NewTool("list_lectures",
		mcp.WithDescription("List saved lectures with their id, name and transcription length in characters."),
	), t.ListLectures)

	s.AddTool(mcp.NewTool("get_lecture",
		mcp.WithDescription("Get the full transcription of a saved lecture."),
		mcp.WithString("id",
			mcp.Required(),
			mcp.Description("Lecture id as returned by list_lectures"),
		),
	), t.GetLecture)

	return s
}

// Serve runs the server on stdin/stdout until the client disconnects.
func Serve(lectures LectureSource) error {
	return server.ServeStdio(New(lectures))
}

// ListLectures handles list_lectures.
func (t *Tools) ListLectures(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	lectures, err := t.lectures.ListAll()
	if err != nil {
		log.Printf("[ERROR] list lectures: %v", err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to list lectures: %v", err)), nil
	}

	out := make([]lectureSummary, 0, len(lectures))
	for _, l := range lectures {
		out = append(out, lectureSummary{
			ID:     l.ID,
			Name:   l.Name,
			Length: utf8.RuneCountInString(l.Transcription),
		})
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal lectures: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// GetLecture handles get_lecture.
func (t *Tools) GetLecture(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id = strings.TrimSpace(id)

	lecture, err := t.lectures.Get(id)
	if err != nil {
		log.Printf("[ERROR] get lecture %s: %v", id, err)
		return mcp.NewToolResultError(fmt.Sprintf("failed to load lecture: %v", err)), nil
	}
	if lecture == nil {
		return mcp.NewToolResultError(fmt.Sprintf("lecture %q not found", id)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("# %s\n\n%s", lecture.Name, lecture.Transcription)), nil
}
