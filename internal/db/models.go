// Package db persists lectures in a local SQLite key-value table.
package db

// LecturesKey is the fixed slot holding the lecture collection.
const LecturesKey = "lectures"

// Lecture is a named, saved transcript.
type Lecture struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	Transcription string `json:"transcription"`
}
