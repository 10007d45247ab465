package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-tryout/internal/model"
)

// CatalogRepository reads packages, subtests, questions and choices.
type CatalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository creates a new CatalogRepository.
func NewCatalogRepository(pool *pgxpool.Pool) *CatalogRepository {
	return &CatalogRepository{pool: pool}
}

// GetPackage retrieves a package by id.
func (r *CatalogRepository) GetPackage(ctx context.Context, id int64) (*model.Package, error) {
	p := &model.Package{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, type FROM packages WHERE id = $1`, id,
	).Scan(&p.ID, &p.Title, &p.Type)
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

// ListPackageExams retrieves the subtests of a package ordered by id.
func (r *CatalogRepository) ListPackageExams(ctx context.Context, packageID int64) ([]model.Exam, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.title, e.type, COALESCE(e.duration, 0)
		 FROM package_exams pe
		 JOIN exams e ON e.id = pe.exam_id
		 WHERE pe.package_id = $1
		 ORDER BY e.id ASC`, packageID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var exams []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.ID, &e.Title, &e.Type, &e.DurationMinutes); err != nil {
			return nil, err
		}
		exams = append(exams, e)
	}
	return exams, rows.Err()
}

// GetExam retrieves a subtest by id. A NULL duration is reported as 0 (timing disabled).
func (r *CatalogRepository) GetExam(ctx context.Context, id int64) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, type, COALESCE(duration, 0) FROM exams WHERE id = $1`, id,
	).Scan(&e.ID, &e.Title, &e.Type, &e.DurationMinutes)
	if err != nil {
		return nil, notFound(err)
	}
	return e, nil
}

// GetQuestion retrieves one question with its choices.
func (r *CatalogRepository) GetQuestion(ctx context.Context, id int64) (*model.Question, error) {
	q := &model.Question{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, exam_id, question_text, question_image_url, question_audio_url, discussion
		 FROM questions WHERE id = $1`, id,
	).Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.ImageURL, &q.AudioURL, &q.Discussion)
	if err != nil {
		return nil, notFound(err)
	}

	choices, err := r.listChoices(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	q.Choices = choices[id]
	return q, nil
}

// ListExamQuestions retrieves every question of a subtest with choices, ordered by id.
func (r *CatalogRepository) ListExamQuestions(ctx context.Context, examID int64) ([]model.Question, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, exam_id, question_text, question_image_url, question_audio_url, discussion
		 FROM questions WHERE exam_id = $1 ORDER BY id ASC`, examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var questions []model.Question
	var ids []int64
	for rows.Next() {
		var q model.Question
		if err := rows.Scan(&q.ID, &q.ExamID, &q.QuestionText, &q.ImageURL, &q.AudioURL, &q.Discussion); err != nil {
			return nil, err
		}
		questions = append(questions, q)
		ids = append(ids, q.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return questions, nil
	}

	choices, err := r.listChoices(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range questions {
		questions[i].Choices = choices[questions[i].ID]
	}
	return questions, nil
}

func (r *CatalogRepository) listChoices(ctx context.Context, questionIDs []int64) (map[int64][]model.Choice, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, question_id, choice_text, choice_image_url, is_correct
		 FROM question_choices
		 WHERE question_id = ANY($1)
		 ORDER BY id ASC`, questionIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("list choices: %w", err)
	}
	defer rows.Close()

	out := make(map[int64][]model.Choice, len(questionIDs))
	for rows.Next() {
		var c model.Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.ChoiceText, &c.ImageURL, &c.IsCorrect); err != nil {
			return nil, err
		}
		out[c.QuestionID] = append(out[c.QuestionID], c)
	}
	return out, rows.Err()
}

// notFound translates pgx's no-rows error into ErrNotFound.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
