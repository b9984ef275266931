package service

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/yearbook/picker-server-go/internal/errors"
	"github.com/yearbook/picker-server-go/internal/model"
	"github.com/yearbook/picker-server-go/internal/repository"
	"github.com/yearbook/picker-server-go/internal/util"
)

// StudentReader is the read side of the student store used by the admin view.
type StudentReader interface {
	FindByID(ctx context.Context, id string) (*model.Student, error)
	ListPhotos(ctx context.Context, studentID string) ([]model.Photo, error)
	List(ctx context.Context, filter model.StudentFilter) ([]model.Student, error)
	Count(ctx context.Context, filter model.StudentFilter) (int, error)
	Stats(ctx context.Context) (*model.SelectionStats, error)
}

type AdminService struct {
	sessionRepo   repository.AdminSessionRepository
	students      StudentReader
	passwordHash  string
	sessionSecret string
	sessionTTL    time.Duration
}

func NewAdminService(
	sessionRepo repository.AdminSessionRepository,
	students StudentReader,
	passwordHash, sessionSecret string,
	sessionTTL time.Duration,
) *AdminService {
	return &AdminService{
		sessionRepo:   sessionRepo,
		students:      students,
		passwordHash:  passwordHash,
		sessionSecret: sessionSecret,
		sessionTTL:    sessionTTL,
	}
}

// Enabled reports whether an admin password is configured.
func (s *AdminService) Enabled() bool {
	return s.passwordHash != ""
}

// Login checks password and returns a new session token.
func (s *AdminService) Login(ctx context.Context, password string) (string, *model.AdminSession, error) {
	if !s.Enabled() {
		return "", nil, apperrors.Forbidden("Admin access is not configured")
	}
	if !util.CheckPasswordHash(password, s.passwordHash) {
		return "", nil, apperrors.Unauthorized("Invalid password")
	}

	token, err := util.GenerateToken()
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}

	session, err := s.sessionRepo.Create(ctx, model.CreateAdminSessionParams{
		TokenHash: s.hash(token),
		ExpiresAt: time.Now().Add(s.sessionTTL),
	})
	if err != nil {
		return "", nil, fmt.Errorf("create admin session: %w", err)
	}

	return token, session, nil
}

func (s *AdminService) Logout(ctx context.Context, token string) error {
	return s.sessionRepo.DeleteByTokenHash(ctx, s.hash(token))
}

// ValidateSession returns the session for token, or nil if it is unknown or
// expired.
func (s *AdminService) ValidateSession(ctx context.Context, token string) (*model.AdminSession, error) {
	if token == "" {
		return nil, nil
	}
	return s.sessionRepo.FindByTokenHash(ctx, s.hash(token))
}

func (s *AdminService) ListStudents(ctx context.Context, filter model.StudentFilter) ([]model.Student, int, error) {
	students, err := s.students.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}
	total, err := s.students.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// GetStudent returns one student with its photos.
func (s *AdminService) GetStudent(ctx context.Context, id string) (*model.Student, []model.Photo, error) {
	student, err := s.students.FindByID(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("find student: %w", err)
	}
	if student == nil {
		return nil, nil, apperrors.NotFound("Student not found")
	}

	photos, err := s.students.ListPhotos(ctx, id)
	if err != nil {
		return nil, nil, fmt.Errorf("list photos: %w", err)
	}
	model.SortPhotosByCapture(photos)
	return student, photos, nil
}

func (s *AdminService) GetStats(ctx context.Context) (*model.SelectionStats, error) {
	stats, err := s.students.Stats(ctx)
	if err != nil {
		return nil, fmt.Errorf("selection stats: %w", err)
	}
	return stats, nil
}

func (s *AdminService) hash(token string) string {
	return util.HmacSHA256(s.sessionSecret, token)
}
