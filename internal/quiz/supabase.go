package quiz

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/supabase-community/supabase-go"
)

// SupabaseStore keeps quizzes in Supabase through its REST API. Writes are
// not transactional: a failure part way leaves a partial quiz behind.
type SupabaseStore struct {
	client *supabase.Client
}

// NewSupabaseStore connects with a project URL and API key.
func NewSupabaseStore(url, key string) (*SupabaseStore, error) {
	client, err := supabase.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("initialize supabase SDK: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

type quizRow struct {
	ID          int64  `json:"id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type questionRow struct {
	ID           int64  `json:"id,omitempty"`
	QuestionText string `json:"question_text"`
	QuizzID      int64  `json:"quizz_id"`
}

type answerRow struct {
	ID         int64  `json:"id,omitempty"`
	QuestionID int64  `json:"question_id"`
	AnswerText string `json:"answer_text"`
	IsCorrect  bool   `json:"isCorrect"`
}

// SaveQuiz inserts the quiz, then each question with its answers.
func (s *SupabaseStore) SaveQuiz(ctx context.Context, q *Quiz) (int64, error) {
	var quizzes []quizRow
	if _, err := s.client.From("quizzez").
		Insert(quizRow{Name: q.Name, Description: q.Description}, false, "", "representation", "").
		ExecuteTo(&quizzes); err != nil {
		return 0, fmt.Errorf("insert quiz: %w", err)
	}
	if len(quizzes) == 0 {
		return 0, fmt.Errorf("insert quiz: no row returned")
	}
	quizID := quizzes[0].ID

	for _, question := range q.Questions {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		var inserted []questionRow
		if _, err := s.client.From("questions").
			Insert(questionRow{QuestionText: question.QuestionText, QuizzID: quizID}, false, "", "representation", "").
			ExecuteTo(&inserted); err != nil {
			return 0, fmt.Errorf("insert question: %w", err)
		}
		if len(inserted) == 0 {
			return 0, fmt.Errorf("insert question: no row returned")
		}

		if len(question.Answers) == 0 {
			continue
		}
		rows := make([]answerRow, 0, len(question.Answers))
		for _, a := range question.Answers {
			rows = append(rows, answerRow{QuestionID: inserted[0].ID, AnswerText: a.AnswerText, IsCorrect: a.IsCorrect})
		}
		if _, _, err := s.client.From("answers").
			Insert(rows, false, "", "minimal", "").
			Execute(); err != nil {
			return 0, fmt.Errorf("insert answers: %w", err)
		}
	}

	return quizID, nil
}

// Quiz loads a quiz with its questions and answers in id order.
func (s *SupabaseStore) Quiz(ctx context.Context, id int64) (*Quiz, error) {
	key := strconv.FormatInt(id, 10)

	var quizzes []quizRow
	if _, err := s.client.From("quizzez").Select("*", "", false).Eq("id", key).ExecuteTo(&quizzes); err != nil {
		return nil, fmt.Errorf("query quiz: %w", err)
	}
	if len(quizzes) == 0 {
		return nil, ErrNotFound
	}

	var questions []questionRow
	if _, err := s.client.From("questions").Select("*", "", false).Eq("quizz_id", key).ExecuteTo(&questions); err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	sort.Slice(questions, func(i, j int) bool { return questions[i].ID < questions[j].ID })

	q := &Quiz{ID: quizzes[0].ID, Name: quizzes[0].Name, Description: quizzes[0].Description}
	if len(questions) == 0 {
		return q, nil
	}

	ids := make([]string, 0, len(questions))
	index := make(map[int64]int, len(questions))
	for i, row := range questions {
		ids = append(ids, strconv.FormatInt(row.ID, 10))
		index[row.ID] = i
		q.Questions = append(q.Questions, Question{ID: row.ID, QuestionText: row.QuestionText, Answers: []Answer{}})
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var answers []answerRow
	if _, err := s.client.From("answers").Select("*", "", false).In("question_id", ids).ExecuteTo(&answers); err != nil {
		return nil, fmt.Errorf("query answers: %w", err)
	}
	sort.Slice(answers, func(i, j int) bool { return answers[i].ID < answers[j].ID })
	for _, a := range answers {
		if i, ok := index[a.QuestionID]; ok {
			q.Questions[i].Answers = append(q.Questions[i].Answers, Answer{ID: a.ID, AnswerText: a.AnswerText, IsCorrect: a.IsCorrect})
		}
	}

	return q, nil
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SupabaseStore)(nil)
)
