package model

// PackageType is the audience tier a package is sold for.
type PackageType string

const (
	PackageTypeSarjana      PackageType = "SARJANA"
	PackageTypePascasarjana PackageType = "PASCASARJANA"
)

// ExamType is the subtest family, used together with PackageType to pick a scoring policy.
type ExamType string

const (
	ExamTypeTKA ExamType = "TKA"
	ExamTypeTKD ExamType = "TKD"
	ExamTypeTBI ExamType = "TBI"
)

// Package is a purchasable bundle of subtests. Read-only for the exam engine.
type Package struct {
	ID    int64       `json:"id"`
	Title string      `json:"title"`
	Type  PackageType `json:"type"`
}

// Exam is a timed subtest. DurationMinutes <= 0 disables timing.
type Exam struct {
	ID              int64    `json:"id"`
	Title           string   `json:"title"`
	Type            ExamType `json:"type"`
	DurationMinutes int      `json:"duration_minutes"`
}

// Question is a single question with its choices in catalog order.
type Question struct {
	ID           int64    `json:"id"`
	ExamID       int64    `json:"exam_id"`
	QuestionText string   `json:"question_text"`
	ImageURL     *string  `json:"image_url,omitempty"`
	AudioURL     *string  `json:"audio_url,omitempty"`
	Discussion   *string  `json:"discussion,omitempty"`
	Choices      []Choice `json:"choices"`
}

// Choice is one selectable option. IsCorrect must never reach a client
// before the session is completed.
type Choice struct {
	ID         int64   `json:"id"`
	QuestionID int64   `json:"question_id"`
	ChoiceText string  `json:"choice_text"`
	ImageURL   *string `json:"image_url,omitempty"`
	IsCorrect  bool    `json:"-"`
}

// ChoiceIDs returns the choice ids in catalog order.
func (q *Question) ChoiceIDs() []int64 {
	ids := make([]int64, len(q.Choices))
	for i, c := range q.Choices {
		ids[i] = c.ID
	}
	return ids
}

// ChoiceByID finds a choice of this question.
func (q *Question) ChoiceByID(id int64) (Choice, bool) {
	for _, c := range q.Choices {
		if c.ID == id {
			return c, true
		}
	}
	return Choice{}, false
}
