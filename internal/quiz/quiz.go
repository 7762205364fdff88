// Package quiz generates multiple-choice quizzes from lecture text, stores
// them, and scores a run through one.
package quiz

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned for an unknown quiz id.
	ErrNotFound = errors.New("quiz not found")
	// ErrNoQuiz is returned when the model answered without a quiz.
	ErrNoQuiz = errors.New("model returned no quiz")
	// ErrMissingAPIKey is returned when generation is attempted without a key.
	ErrMissingAPIKey = errors.New("OpenAI API key not provided")
)

// Quiz is a named set of questions.
type Quiz struct {
	ID          int64      `json:"id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Questions   []Question `json:"questions"`
}

// Question has one or more answers, normally exactly one correct.
type Question struct {
	ID           int64    `json:"id,omitempty"`
	QuestionText string   `json:"questionText"`
	Answers      []Answer `json:"answers"`
}

// Answer is one choice for a question.
type Answer struct {
	ID         int64  `json:"id,omitempty"`
	AnswerText string `json:"answerText"`
	IsCorrect  bool   `json:"isCorrect"`
}

// CorrectAnswer returns the text of the first correct answer, or "".
func (q Question) CorrectAnswer() string {
	for _, a := range q.Answers {
		if a.IsCorrect {
			return a.AnswerText
		}
	}
	return ""
}

// Store persists quizzes.
type Store interface {
	SaveQuiz(ctx context.Context, q *Quiz) (int64, error)
	Quiz(ctx context.Context, id int64) (*Quiz, error)
}
