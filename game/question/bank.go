package question

import (
	_ "embed"
	"encoding/json"
	"fmt"
)

// Difficulty buckets, ordered easiest to hardest.
const (
	DifficultyEasy     = "easy"
	DifficultyMedium   = "medium"
	DifficultyHard     = "hard"
	DifficultyVeryHard = "very_hard"
	DifficultyExpert   = "expert"
)

// Question is a multiple-choice question. The JSON tags double as the
// wire shape of the questions API.
type Question struct {
	ID            int    `json:"id"`
	QuestionText  string `json:"question_text"`
	OptionA       string `json:"option_a"`
	OptionB       string `json:"option_b"`
	OptionC       string `json:"option_c"`
	OptionD       string `json:"option_d"`
	CorrectAnswer string `json:"correct_answer"` // "A".."D"
	Difficulty    string `json:"difficulty"`
	Topic         string `json:"topic"`
	Explanation   string `json:"explanation"`
}

// Option returns the option text for a label "A".."D".
func (q *Question) Option(label string) string {
	switch label {
	case "A":
		return q.OptionA
	case "B":
		return q.OptionB
	case "C":
		return q.OptionC
	case "D":
		return q.OptionD
	}
	return ""
}

// IsCorrect reports whether the given option label answers the question.
func (q *Question) IsCorrect(label string) bool {
	return label == q.CorrectAnswer
}

//go:embed questions.json
var catalogJSON []byte

// Bank is the immutable embedded question catalog.
type Bank struct {
	all          []Question
	byID         map[int]*Question
	byDifficulty map[string][]*Question
}

// NewBank parses the embedded catalog. The catalog ships with the binary
// so a parse failure is a build defect, not a runtime condition.
func NewBank() (*Bank, error) {
	var all []Question
	if err := json.Unmarshal(catalogJSON, &all); err != nil {
		return nil, fmt.Errorf("question: parse embedded catalog: %w", err)
	}
	b := &Bank{
		all:          all,
		byID:         make(map[int]*Question, len(all)),
		byDifficulty: make(map[string][]*Question),
	}
	for i := range b.all {
		q := &b.all[i]
		b.byID[q.ID] = q
		b.byDifficulty[q.Difficulty] = append(b.byDifficulty[q.Difficulty], q)
	}
	return b, nil
}

// MustBank is NewBank for wiring paths where the embedded catalog is
// known good.
func MustBank() *Bank {
	b, err := NewBank()
	if err != nil {
		panic(err)
	}
	return b
}

// All returns every question in catalog order.
func (b *Bank) All() []Question { return b.all }

// Len returns the catalog size.
func (b *Bank) Len() int { return len(b.all) }

// ByID returns the question with the given id, or nil.
func (b *Bank) ByID(id int) *Question { return b.byID[id] }

// ByDifficulty returns all questions in the given bucket.
func (b *Bank) ByDifficulty(d string) []*Question { return b.byDifficulty[d] }
