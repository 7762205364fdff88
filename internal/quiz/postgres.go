package quiz

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS quizzez (
	id SERIAL PRIMARY KEY,
	name TEXT,
	description TEXT,
	user_id TEXT
);
CREATE TABLE IF NOT EXISTS questions (
	id SERIAL PRIMARY KEY,
	question_text TEXT,
	quizz_id INTEGER
);
CREATE TABLE IF NOT EXISTS answers (
	id SERIAL PRIMARY KEY,
	question_id INTEGER,
	answer_text TEXT,
	"isCorrect" BOOLEAN
);`

// PostgresStore keeps quizzes in Postgres through the pgx driver.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and verifies the connection.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is required")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

// Close closes the underlying sql.DB handle.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// EnsureSchema creates the quiz tables if they are missing.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, postgresSchema); err != nil {
		return fmt.Errorf("create quiz schema: %w", err)
	}
	return nil
}

// SaveQuiz inserts the quiz, its questions and their answers in one
// transaction and returns the new quiz id.
func (s *PostgresStore) SaveQuiz(ctx context.Context, q *Quiz) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var quizID int64
	if err := tx.QueryRowContext(ctx,
		`INSERT INTO quizzez (name, description) VALUES ($1, $2) RETURNING id`,
		q.Name, q.Description,
	).Scan(&quizID); err != nil {
		return 0, fmt.Errorf("insert quiz: %w", err)
	}

	for _, question := range q.Questions {
		var questionID int64
		if err := tx.QueryRowContext(ctx,
			`INSERT INTO questions (question_text, quizz_id) VALUES ($1, $2) RETURNING id`,
			question.QuestionText, quizID,
		).Scan(&questionID); err != nil {
			return 0, fmt.Errorf("insert question: %w", err)
		}

		for _, a := range question.Answers {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO answers (question_id, answer_text, "isCorrect") VALUES ($1, $2, $3)`,
				questionID, a.AnswerText, a.IsCorrect,
			); err != nil {
				return 0, fmt.Errorf("insert answer: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit quiz: %w", err)
	}
	return quizID, nil
}

// Quiz loads a quiz with its questions and answers in id order.
func (s *PostgresStore) Quiz(ctx context.Context, id int64) (*Quiz, error) {
	var (
		q           Quiz
		name, descr sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, description FROM quizzez WHERE id = $1`, id,
	).Scan(&q.ID, &name, &descr)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query quiz: %w", err)
	}
	q.Name, q.Description = name.String, descr.String

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, question_text FROM questions WHERE quizz_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	index := make(map[int64]int)
	for rows.Next() {
		var (
			question Question
			text     sql.NullString
		)
		if err := rows.Scan(&question.ID, &text); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		question.QuestionText = text.String
		question.Answers = []Answer{}
		index[question.ID] = len(q.Questions)
		q.Questions = append(q.Questions, question)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}

	answerRows, err := s.db.QueryContext(ctx, `
		SELECT a.id, a.question_id, a.answer_text, a."isCorrect"
		FROM answers a
		JOIN questions q ON q.id = a.question_id
		WHERE q.quizz_id = $1
		ORDER BY a.id`, id)
	if err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	defer answerRows.Close()

	for answerRows.Next() {
		var (
			a          Answer
			questionID int64
			text       sql.NullString
			correct    sql.NullBool
		)
		if err := answerRows.Scan(&a.ID, &questionID, &text, &correct); err != nil {
			return nil, fmt.Errorf("scan answer: %w", err)
		}
		a.AnswerText, a.IsCorrect = text.String, correct.Bool
		if i, ok := index[questionID]; ok {
			q.Questions[i].Answers = append(q.Questions[i].Answers, a)
		}
	}
	if err := answerRows.Err(); err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}

	return &q, nil
}
