// Package memory provides in-process implementations of the repository ports.
// They back the service and handler tests and behave like the PostgreSQL
// repositories, including the uniqueness rules.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-tryout/internal/model"
	"github.com/stemsi/exstem-tryout/internal/repository"
)

type entitlement struct {
	userID    uuid.UUID
	packageID int64
}

// Catalog is an in-memory CatalogReader and EntitlementReader.
type Catalog struct {
	mu           sync.RWMutex
	packages     map[int64]model.Package
	packageExams map[int64][]int64
	exams        map[int64]model.Exam
	questions    map[int64]model.Question
	examQs       map[int64][]int64
	choices      map[int64]model.Choice
	entitlements map[entitlement]bool
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		packages:     make(map[int64]model.Package),
		packageExams: make(map[int64][]int64),
		exams:        make(map[int64]model.Exam),
		questions:    make(map[int64]model.Question),
		examQs:       make(map[int64][]int64),
		choices:      make(map[int64]model.Choice),
		entitlements: make(map[entitlement]bool),
	}
}

// AddPackage registers a package containing the given exams.
func (c *Catalog) AddPackage(p model.Package, examIDs ...int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.packages[p.ID] = p
	c.packageExams[p.ID] = append(c.packageExams[p.ID], examIDs...)
}

// AddExam registers an exam and its questions. Question.ExamID and
// Choice.QuestionID are filled in.
func (c *Catalog) AddExam(e model.Exam, questions ...model.Question) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.exams[e.ID] = e
	for _, q := range questions {
		q.ExamID = e.ID
		for i := range q.Choices {
			q.Choices[i].QuestionID = q.ID
			c.choices[q.Choices[i].ID] = q.Choices[i]
		}
		c.questions[q.ID] = q
		c.examQs[e.ID] = append(c.examQs[e.ID], q.ID)
	}
}

// Grant entitles a user to a package.
func (c *Catalog) Grant(userID uuid.UUID, packageID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entitlements[entitlement{userID, packageID}] = true
}

func (c *Catalog) GetPackage(_ context.Context, id int64) (*model.Package, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.packages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}

func (c *Catalog) ListPackageExams(_ context.Context, packageID int64) ([]model.Exam, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var exams []model.Exam
	for _, id := range c.packageExams[packageID] {
		if e, ok := c.exams[id]; ok {
			exams = append(exams, e)
		}
	}
	sort.Slice(exams, func(i, j int) bool { return exams[i].ID < exams[j].ID })
	return exams, nil
}

func (c *Catalog) GetExam(_ context.Context, id int64) (*model.Exam, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.exams[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &e, nil
}

func (c *Catalog) GetQuestion(_ context.Context, id int64) (*model.Question, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	q, ok := c.questions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneQuestion(q), nil
}

func (c *Catalog) ListExamQuestions(_ context.Context, examID int64) ([]model.Question, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := append([]int64(nil), c.examQs[examID]...)
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	out := make([]model.Question, 0, len(ids))
	for _, id := range ids {
		out = append(out, *cloneQuestion(c.questions[id]))
	}
	return out, nil
}

func (c *Catalog) HasPackage(_ context.Context, userID uuid.UUID, packageID int64) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entitlements[entitlement{userID, packageID}], nil
}

func (c *Catalog) isCorrect(choiceID int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.choices[choiceID].IsCorrect
}

func cloneQuestion(q model.Question) *model.Question {
	q.Choices = append([]model.Choice(nil), q.Choices...)
	return &q
}
