package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/yearbook/picker-server-go/internal/model"
	redisclient "github.com/yearbook/picker-server-go/internal/redis"
)

// AdminSessionRepository stores admin sessions in redis. Expiry is left to
// the key TTL.
type AdminSessionRepository interface {
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.AdminSession, error)
	Create(ctx context.Context, params model.CreateAdminSessionParams) (*model.AdminSession, error)
	DeleteByTokenHash(ctx context.Context, tokenHash string) error
}

type adminSessionRepo struct {
	client redis.Cmdable
}

func NewAdminSessionRepository(client redis.Cmdable) AdminSessionRepository {
	return &adminSessionRepo{client: client}
}

func (r *adminSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*model.AdminSession, error) {
	data, err := r.client.Get(ctx, redisclient.AdminSessionKey(tokenHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session model.AdminSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode admin session: %w", err)
	}
	if time.Now().After(session.ExpiresAt) {
		return nil, nil
	}
	return &session, nil
}

func (r *adminSessionRepo) Create(ctx context.Context, params model.CreateAdminSessionParams) (*model.AdminSession, error) {
	ttl := time.Until(params.ExpiresAt)
	if ttl <= 0 {
		return nil, fmt.Errorf("admin session already expired")
	}

	session := &model.AdminSession{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		ExpiresAt: params.ExpiresAt,
	}
	data, err := json.Marshal(session)
	if err != nil {
		return nil, err
	}

	if err := r.client.Set(ctx, redisclient.AdminSessionKey(params.TokenHash), data, ttl).Err(); err != nil {
		return nil, err
	}
	return session, nil
}

func (r *adminSessionRepo) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	return r.client.Del(ctx, redisclient.AdminSessionKey(tokenHash)).Err()
}
