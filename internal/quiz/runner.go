package quiz

import (
	"errors"
	"math"
)

var (
	ErrNotStarted      = errors.New("quiz has not started")
	ErrFinished        = errors.New("quiz is already submitted")
	ErrAlreadyAnswered = errors.New("question already answered")
	ErrNoAnswer        = errors.New("choose an answer first")
	ErrUnknownAnswer   = errors.New("answer does not belong to this question")
)

// Runner walks through a quiz one question at a time. Each question
// accepts a single answer.
type Runner struct {
	quiz      *Quiz
	started   bool
	current   int
	score     int
	selected  int
	submitted bool
}

// NewRunner creates a runner positioned before the first question.
func NewRunner(q *Quiz) *Runner {
	return &Runner{quiz: q, selected: -1}
}

func (r *Runner) Quiz() *Quiz     { return r.quiz }
func (r *Runner) Started() bool   { return r.started }
func (r *Runner) Submitted() bool { return r.submitted }
func (r *Runner) Score() int      { return r.score }
func (r *Runner) Total() int      { return len(r.quiz.Questions) }

// Index returns the zero-based position of the current question.
func (r *Runner) Index() int { return r.current }

// Current returns the question being asked, or nil before start and
// after submission.
func (r *Runner) Current() *Question {
	if !r.started || r.submitted || r.current >= len(r.quiz.Questions) {
		return nil
	}
	return &r.quiz.Questions[r.current]
}

// Selected returns the index of the chosen answer and whether one was
// chosen for the current question.
func (r *Runner) Selected() (int, bool) {
	return r.selected, r.selected >= 0
}

// Start moves to the first question.
func (r *Runner) Start() {
	r.started = true
}

// Answer chooses answer i of the current question and reports whether it
// was correct.
func (r *Runner) Answer(i int) (bool, error) {
	q := r.Current()
	switch {
	case r.submitted:
		return false, ErrFinished
	case q == nil:
		return false, ErrNotStarted
	case r.selected >= 0:
		return false, ErrAlreadyAnswered
	case i < 0 || i >= len(q.Answers):
		return false, ErrUnknownAnswer
	}

	r.selected = i
	correct := q.Answers[i].IsCorrect
	if correct {
		r.score++
	}
	return correct, nil
}

// Next starts the quiz, advances to the next question, or submits after
// the last one. Once started it requires an answer to the current
// question.
func (r *Runner) Next() error {
	switch {
	case r.submitted:
		return ErrFinished
	case !r.started:
		r.Start()
		return nil
	case r.selected < 0:
		return ErrNoAnswer
	}

	if r.current < len(r.quiz.Questions)-1 {
		r.current++
		r.selected = -1
		return nil
	}
	r.submitted = true
	return nil
}

// Progress returns the share of questions already passed, in percent.
func (r *Runner) Progress() float64 {
	if len(r.quiz.Questions) == 0 {
		return 0
	}
	return float64(r.current) / float64(len(r.quiz.Questions)) * 100
}

// Percentage returns the score as a rounded percentage.
func (r *Runner) Percentage() int {
	if len(r.quiz.Questions) == 0 {
		return 0
	}
	return int(math.Round(float64(r.score) / float64(len(r.quiz.Questions)) * 100))
}

// Message returns the closing remark for a percentage.
func Message(percentage int) string {
	switch {
	case percentage == 100:
		return "Perfect Score!"
	case percentage >= 80:
		return "Excellent Work!"
	case percentage >= 60:
		return "Good Job!"
	default:
		return "Keep Practicing!"
	}
}
