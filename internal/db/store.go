package db

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `CREATE TABLE IF NOT EXISTS kv (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
)`

// ErrReadOnly is returned by writes on a store opened with OpenReadOnly.
var ErrReadOnly = errors.New("lecture store is read-only")

// Store is the lecture collection, kept as one JSON array under LecturesKey.
type Store struct {
	db       *sql.DB
	readOnly bool

	mu     sync.Mutex
	lastID int64
	now    func() time.Time
}

// DefaultDBPath returns the default database path.
func DefaultDBPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		home, _ := os.UserHomeDir()
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, "Memo", "memo.sqlite")
}

// Open opens (creating if needed) the database for reading and writing.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return newStore(db, false), nil
}

// OpenReadOnly opens an existing database in read-only mode with WAL.
func OpenReadOnly(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return newStore(db, true), nil
}

func newStore(db *sql.DB, readOnly bool) *Store {
	return &Store{db: db, readOnly: readOnly, now: time.Now}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ListAll returns every lecture in insertion order.
func (s *Store) ListAll() ([]Lecture, error) {
	return load(s.db)
}

// Get returns the lecture with the given id, or nil if there is none.
func (s *Store) Get(id string) (*Lecture, error) {
	lectures, err := load(s.db)
	if err != nil {
		return nil, err
	}
	for i := range lectures {
		if lectures[i].ID == id {
			return &lectures[i], nil
		}
	}
	return nil, nil
}

// Save appends a lecture. If an identical (name, transcription) pair is
// already stored, nothing is written and the existing lecture is returned
// with created=false.
func (s *Store) Save(name, transcription string) (Lecture, bool, error) {
	if s.readOnly {
		return Lecture{}, false, ErrReadOnly
	}
	if strings.TrimSpace(name) == "" {
		return Lecture{}, false, errors.New("lecture name is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		saved   Lecture
		created bool
	)
	err := s.update(func(lectures []Lecture) ([]Lecture, bool) {
		for _, l := range lectures {
			if l.Name == name && l.Transcription == transcription {
				saved = l
				return lectures, false
			}
		}
		saved = Lecture{ID: s.nextID(lectures), Name: name, Transcription: transcription}
		created = true
		return append(lectures, saved), true
	})
	if err != nil {
		return Lecture{}, false, err
	}
	return saved, created, nil
}

// Delete removes the lecture with the given id. Unknown ids are ignored.
func (s *Store) Delete(id string) error {
	if s.readOnly {
		return ErrReadOnly
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.update(func(lectures []Lecture) ([]Lecture, bool) {
		for i, l := range lectures {
			if l.ID == id {
				return append(lectures[:i], lectures[i+1:]...), true
			}
		}
		return lectures, false
	})
}

// update runs fn over the stored collection inside one transaction and
// writes the result back when fn reports a change.
func (s *Store) update(fn func([]Lecture) ([]Lecture, bool)) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	lectures, err := load(tx)
	if err != nil {
		return err
	}

	next, changed := fn(lectures)
	if !changed {
		return nil
	}

	if next == nil {
		next = []Lecture{}
	}
	raw, err := json.Marshal(next)
	if err != nil {
		return fmt.Errorf("encode lectures: %w", err)
	}
	if _, err := tx.Exec(`
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, LecturesKey, string(raw)); err != nil {
		return fmt.Errorf("write lectures: %w", err)
	}

	return tx.Commit()
}

// nextID returns a millisecond timestamp id, bumped past every id already
// issued so ids stay unique and increasing.
func (s *Store) nextID(existing []Lecture) string {
	id := s.now().UnixMilli()
	if id <= s.lastID {
		id = s.lastID + 1
	}
	for _, l := range existing {
		if n, err := strconv.ParseInt(l.ID, 10, 64); err == nil && id <= n {
			id = n + 1
		}
	}
	s.lastID = id
	return strconv.FormatInt(id, 10)
}

type queryer interface {
	QueryRow(query string, args ...any) *sql.Row
}

func load(q queryer) ([]Lecture, error) {
	var raw string
	err := q.QueryRow(`SELECT value FROM kv WHERE key = ?`, LecturesKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || strings.Contains(err.Error(), "no such table") {
			return nil, nil
		}
		return nil, fmt.Errorf("read lectures: %w", err)
	}

	var lectures []Lecture
	if err := json.Unmarshal([]byte(raw), &lectures); err != nil {
		return nil, fmt.Errorf("decode lectures: %w", err)
	}
	return lectures, nil
}
