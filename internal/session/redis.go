package session

import (
	"context"
	"fmt"
	"time"

	"github.com/eldersguild/auth-service/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// redisStore — хранилище сессий в Redis для многоэкземплярного развёртывания.
//
// Храним сессию как Redis Hash с полями: uid, uname, role.
// Скользящее истечение реализовано через TTL ключа: Create и каждый успешный
// Validate выставляют TTL = idle-таймаут. Истёкшая сессия исчезает из Redis,
// поэтому после таймаута Validate возвращает ErrNotFound (отличить её от
// никогда не существовавшей уже нельзя).
type redisStore struct {
	rdb         *redis.Client
	prefix      string
	idleTimeout time.Duration
}

// NewRedis создаёт клиент Redis из URL (например, redis://:pass@host:6379/0).
// Если prefix пустой — используется "auth:sess:". Fail-fast на старте: пинг
// недоступного Redis возвращает ошибку сразу.
func NewRedis(ctx context.Context, redisURL, prefix string, idleTimeout time.Duration) (Store, error) {
	const op = "session.NewRedis"

	if prefix == "" {
		prefix = "auth:sess:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	rdb := redis.NewClient(opt)

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &redisStore{
		rdb:         rdb,
		prefix:      prefix,
		idleTimeout: idleTimeout,
	}, nil
}

func (r *redisStore) key(id string) string { return r.prefix + id }

func (r *redisStore) Create(ctx context.Context, user models.Snapshot) (string, error) {
	const op = "session.redisStore.Create"

	id, err := newSessionID()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	kv := map[string]string{
		"uid":   user.UserID.String(),
		"uname": user.Username,
		"role":  user.Role,
	}

	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, r.key(id), kv)
	pipe.Expire(ctx, r.key(id), r.idleTimeout)

	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (r *redisStore) Validate(ctx context.Context, id string) (models.Snapshot, error) {
	const op = "session.redisStore.Validate"

	m, err := r.rdb.HGetAll(ctx, r.key(id)).Result()
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	if len(m) == 0 {
		return models.Snapshot{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	uid, err := uuid.Parse(m["uid"])
	if err != nil {
		return models.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	// Сдвигаем окно: TTL заново равен idle-таймауту.
	if err := r.rdb.Expire(ctx, r.key(id), r.idleTimeout).Err(); err != nil {
		return models.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	return models.Snapshot{
		UserID:   uid,
		Username: m["uname"],
		Role:     m["role"],
	}, nil
}

func (r *redisStore) Invalidate(ctx context.Context, id string) error {
	const op = "session.redisStore.Invalidate"

	if err := r.rdb.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *redisStore) Close() error { return r.rdb.Close() }
