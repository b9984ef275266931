package service

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/yearbook/picker-server-go/internal/model"
)

type mockRecordStore struct {
	mock.Mock
}

func (m *mockRecordStore) FindByAccessCode(ctx context.Context, code string) ([]model.Student, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Student), args.Error(1)
}

func (m *mockRecordStore) ListPhotos(ctx context.Context, studentID string) ([]model.Photo, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Photo), args.Error(1)
}

func (m *mockRecordStore) UpdateChoice(ctx context.Context, studentID string, choice model.ChoiceUpdate) error {
	args := m.Called(ctx, studentID, choice)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, topic, eventType string, payload any) error {
	args := m.Called(ctx, topic, eventType, payload)
	return args.Error(0)
}

type mockAdminSessionRepo struct {
	mock.Mock
}

func (m *mockAdminSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.AdminSession, error) {
	args := m.Called(ctx, tokenHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdminSession), args.Error(1)
}

func (m *mockAdminSessionRepo) Create(ctx context.Context, params model.CreateAdminSessionParams) (*model.AdminSession, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AdminSession), args.Error(1)
}

func (m *mockAdminSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	args := m.Called(ctx, tokenHash)
	return args.Error(0)
}

type mockStudentReader struct {
	mock.Mock
}

func (m *mockStudentReader) FindByID(ctx context.Context, id string) (*model.Student, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Student), args.Error(1)
}

func (m *mockStudentReader) ListPhotos(ctx context.Context, studentID string) ([]model.Photo, error) {
	args := m.Called(ctx, studentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Photo), args.Error(1)
}

func (m *mockStudentReader) List(ctx context.Context, filter model.StudentFilter) ([]model.Student, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Student), args.Error(1)
}

func (m *mockStudentReader) Count(ctx context.Context, filter model.StudentFilter) (int, error) {
	args := m.Called(ctx, filter)
	return args.Int(0), args.Error(1)
}

func (m *mockStudentReader) Stats(ctx context.Context) (*model.SelectionStats, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.SelectionStats), args.Error(1)
}
