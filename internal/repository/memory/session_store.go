package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/stemsi/exstem-tryout/internal/model"
	"github.com/stemsi/exstem-tryout/internal/repository"
)

type state struct {
	nextSessionID int64
	nextAnswerID  int64
	sessions      map[int64]*model.ExamSession
	answers       map[int64]model.UserAnswer
}

func (s *state) clone() *state {
	c := &state{
		nextSessionID: s.nextSessionID,
		nextAnswerID:  s.nextAnswerID,
		sessions:      make(map[int64]*model.ExamSession, len(s.sessions)),
		answers:       make(map[int64]model.UserAnswer, len(s.answers)),
	}
	for id, sess := range s.sessions {
		c.sessions[id] = sess.Clone()
	}
	for id, a := range s.answers {
		c.answers[id] = a
	}
	return c
}

// SessionStore is an in-memory repository.SessionStore. Transactions are
// fully serialized and applied on commit only.
//
// Methods on SessionStore itself must not be called from inside an InTx
// callback; use the SessionTx instead.
type SessionStore struct {
	catalog *Catalog
	mu      sync.Mutex
	st      *state
}

// NewSessionStore creates an empty store. The catalog resolves choice
// correctness when tallying answers.
func NewSessionStore(catalog *Catalog) *SessionStore {
	return &SessionStore{
		catalog: catalog,
		st: &state{
			sessions: make(map[int64]*model.ExamSession),
			answers:  make(map[int64]model.UserAnswer),
		},
	}
}

func (m *SessionStore) GetByID(_ context.Context, id int64) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.st.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.Clone(), nil
}

func (m *SessionStore) GetByUserAndExam(_ context.Context, userID uuid.UUID, examID int64) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.st.sessions {
		if s.UserID == userID && s.ExamID == examID {
			return s.Clone(), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *SessionStore) Create(_ context.Context, s *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.st.sessions {
		if existing.UserID == s.UserID && existing.ExamID == s.ExamID {
			return repository.ErrConflict
		}
	}
	m.st.nextSessionID++
	s.ID = m.st.nextSessionID
	s.CreatedAt = time.Now()
	m.st.sessions[s.ID] = s.Clone()
	return nil
}

func (m *SessionStore) ListByUserAndExams(_ context.Context, userID uuid.UUID, examIDs []int64) ([]model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[int64]bool, len(examIDs))
	for _, id := range examIDs {
		wanted[id] = true
	}
	var out []model.ExamSession
	for _, s := range m.st.sessions {
		if s.UserID == userID && wanted[s.ExamID] {
			out = append(out, *s.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExamID < out[j].ExamID })
	return out, nil
}

func (m *SessionStore) FindAnswer(_ context.Context, sessionID, questionID int64) (*model.UserAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st.findAnswer(sessionID, questionID)
}

func (m *SessionStore) ListAnswers(_ context.Context, sessionID int64) ([]model.UserAnswer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.UserAnswer
	for _, a := range m.st.answers {
		if a.SessionID == sessionID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// AnswerCount returns the number of answer rows stored for a session.
func (m *SessionStore) AnswerCount(sessionID int64) int {
	answers, _ := m.ListAnswers(context.Background(), sessionID)
	return len(answers)
}

// Update replaces a stored session; tests use it to rewind clocks.
func (m *SessionStore) Update(s *model.ExamSession) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.st.sessions[s.ID] = s.Clone()
}

func (m *SessionStore) InTx(ctx context.Context, fn func(tx repository.SessionTx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	work := m.st.clone()
	if err := fn(&sessionTx{st: work, catalog: m.catalog}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.st = work
	return nil
}

func (s *state) findAnswer(sessionID, questionID int64) (*model.UserAnswer, error) {
	for _, a := range s.answers {
		if a.SessionID == sessionID && a.QuestionID == questionID {
			v := a
			return &v, nil
		}
	}
	return nil, repository.ErrNotFound
}

type sessionTx struct {
	st      *state
	catalog *Catalog
}

func (t *sessionTx) session(id int64) (*model.ExamSession, error) {
	s, ok := t.st.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s, nil
}

func (t *sessionTx) LockSession(_ context.Context, id int64) (*model.ExamSession, error) {
	s, err := t.session(id)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

func (t *sessionTx) UpdateTiming(_ context.Context, id int64, startedAt, tickedAt *time.Time) error {
	s, err := t.session(id)
	if err != nil {
		return err
	}
	s.StartedAt = copyTime(startedAt)
	s.TickedAt = copyTime(tickedAt)
	return nil
}

func (t *sessionTx) FindAnswer(_ context.Context, sessionID, questionID int64) (*model.UserAnswer, error) {
	return t.st.findAnswer(sessionID, questionID)
}

func (t *sessionTx) InsertAnswer(_ context.Context, a *model.UserAnswer) error {
	if _, err := t.st.findAnswer(a.SessionID, a.QuestionID); err == nil {
		return repository.ErrConflict
	}
	t.st.nextAnswerID++
	a.ID = t.st.nextAnswerID
	a.UpdatedAt = time.Now()
	t.st.answers[a.ID] = *a
	return nil
}

func (t *sessionTx) UpdateAnswerChoice(_ context.Context, answerID, choiceID int64) error {
	a, ok := t.st.answers[answerID]
	if !ok {
		return repository.ErrNotFound
	}
	a.ChoiceID = choiceID
	a.UpdatedAt = time.Now()
	t.st.answers[answerID] = a
	return nil
}

func (t *sessionTx) AnsweredQuestionIDs(_ context.Context, sessionID int64) ([]int64, error) {
	var ids []int64
	for _, a := range t.st.answers {
		if a.SessionID == sessionID {
			ids = append(ids, a.QuestionID)
		}
	}
	return ids, nil
}

func (t *sessionTx) UpdatePosition(_ context.Context, id int64, position int) error {
	s, err := t.session(id)
	if err != nil {
		return err
	}
	s.CurrentPosition = position
	return nil
}

func (t *sessionTx) TallyAnswers(_ context.Context, sessionID int64) (int, int, error) {
	var answered, correct int
	for _, a := range t.st.answers {
		if a.SessionID != sessionID {
			continue
		}
		answered++
		if t.catalog.isCorrect(a.ChoiceID) {
			correct++
		}
	}
	return answered, correct, nil
}

func (t *sessionTx) SaveResult(_ context.Context, id int64, res model.SessionResult, completedAt time.Time) error {
	s, err := t.session(id)
	if err != nil {
		return err
	}
	if s.CompletedAt != nil {
		return repository.ErrConflict
	}
	correct, wrong, empty, score := res.Correct, res.Wrong, res.Empty, res.RawScore
	s.CorrectAnswers, s.WrongAnswers, s.EmptyAnswers, s.Score = &correct, &wrong, &empty, &score
	s.CompletedAt = copyTime(&completedAt)
	return nil
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
