package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	apperrors "github.com/yearbook/picker-server-go/internal/errors"
	"github.com/yearbook/picker-server-go/internal/model"
	"github.com/yearbook/picker-server-go/internal/selection"
)

// StudentRepository handles student and photo data operations
type StudentRepository interface {
	selection.RecordStore

	FindByID(ctx context.Context, id string) (*model.Student, error)
	List(ctx context.Context, filter model.StudentFilter) ([]model.Student, error)
	Count(ctx context.Context, filter model.StudentFilter) (int, error)
	Stats(ctx context.Context) (*model.SelectionStats, error)
}

type studentRepo struct {
	db *sqlx.DB
}

var _ selection.RecordStore = (*studentRepo)(nil)

// NewStudentRepository creates a new student repository
func NewStudentRepository(db *sqlx.DB) StudentRepository {
	return &studentRepo{db: db}
}

// FindByAccessCode returns every student with the exact access code. No
// ordering is imposed so callers see store order.
func (r *studentRepo) FindByAccessCode(ctx context.Context, code string) ([]model.Student, error) {
	students := []model.Student{}
	err := r.db.SelectContext(ctx, &students, `
		SELECT * FROM students WHERE access_code = $1
	`, code)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return students, nil
}

func (r *studentRepo) FindByID(ctx context.Context, id string) (*model.Student, error) {
	var s model.Student
	err := r.db.GetContext(ctx, &s, `SELECT * FROM students WHERE id = $1`, id)
	student, err := HandleNotFound(&s, err)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return student, nil
}

// ListPhotos returns a student's photos. Sorting is left to the caller.
func (r *studentRepo) ListPhotos(ctx context.Context, studentID string) ([]model.Photo, error) {
	photos := []model.Photo{}
	err := r.db.SelectContext(ctx, &photos, `
		SELECT * FROM photos WHERE student_id = $1
	`, studentID)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	return photos, nil
}

// UpdateChoice writes the chosen photo onto the student. The timestamp comes
// from the database clock.
func (r *studentRepo) UpdateChoice(ctx context.Context, studentID string, choice model.ChoiceUpdate) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE students
		SET chosen_photo_url = $2,
		    chosen_photo_name = $3,
		    has_chosen = TRUE,
		    choice_timestamp = NOW()
		WHERE id = $1
	`, studentID, choice.PhotoURL, choice.PhotoName)
	if err != nil {
		return apperrors.Database(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return apperrors.Database(err)
	}
	if n == 0 {
		return apperrors.NotFound(fmt.Sprintf("student %s not found", studentID))
	}
	return nil
}

func (r *studentRepo) List(ctx context.Context, filter model.StudentFilter) ([]model.Student, error) {
	where, args := studentWhere(filter)
	args = append(args, filter.Limit, filter.Offset)

	query := fmt.Sprintf(`
		SELECT * FROM students
		%s
		ORDER BY last_name, first_name, id
		LIMIT $%d OFFSET $%d
	`, where, len(args)-1, len(args))

	students := []model.Student{}
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, apperrors.Database(err)
	}
	return students, nil
}

func (r *studentRepo) Count(ctx context.Context, filter model.StudentFilter) (int, error) {
	where, args := studentWhere(filter)

	var count int
	if err := r.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM students "+where, args...); err != nil {
		return 0, apperrors.Database(err)
	}
	return count, nil
}

// Stats counts all students and those who have confirmed a photo.
func (r *studentRepo) Stats(ctx context.Context) (*model.SelectionStats, error) {
	var stats model.SelectionStats
	err := r.db.GetContext(ctx, &stats, `
		SELECT COUNT(*) AS total,
		       COUNT(*) FILTER (WHERE has_chosen) AS chosen
		FROM students
	`)
	if err != nil {
		return nil, apperrors.Database(err)
	}
	stats.Pending = stats.Total - stats.Chosen
	return &stats, nil
}

func studentWhere(filter model.StudentFilter) (string, []any) {
	var conds []string
	var args []any
	if filter.HasChosen != nil {
		args = append(args, *filter.HasChosen)
		conds = append(conds, fmt.Sprintf("has_chosen = $%d", len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}
