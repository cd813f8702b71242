// session реализует серверное хранилище сессий со скользящим idle-таймаутом.
//
// Контракт Store одинаков для обеих реализаций:
//   - in-memory (Memory) — для одноэкземплярного развёртывания;
//   - Redis (NewRedis) — точка расширения для многоэкземплярного,
//     подставляется без изменений в сервисном слое.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/eldersguild/auth-service/internal/models"
)

var (
	// ErrNotFound — сессия с таким идентификатором неизвестна.
	ErrNotFound = errors.New("session not found")

	// ErrExpired — сессия превысила idle-таймаут и была удалена.
	ErrExpired = errors.New("session expired")
)

// Store — контракт хранилища сессий.
type Store interface {
	// Create генерирует новый неугадываемый идентификатор и сохраняет
	// срез пользователя с таймстемпами created/last_active = now.
	Create(ctx context.Context, user models.Snapshot) (string, error)

	// Validate возвращает срез пользователя по идентификатору.
	// Неизвестный id -> ErrNotFound; превышение idle-таймаута -> ErrExpired
	// (запись удаляется лениво). Успешная валидация сдвигает last_active.
	Validate(ctx context.Context, id string) (models.Snapshot, error)

	// Invalidate удаляет сессию. Идемпотентна: отсутствие записи — не ошибка.
	Invalidate(ctx context.Context, id string) error

	// Close освобождает ресурсы хранилища.
	Close() error
}

// sessionIDBytes — 256 бит энтропии на идентификатор (требование — не меньше 128).
const sessionIDBytes = 32

// newSessionID генерирует криптографически случайный идентификатор сессии.
// Ошибка источника случайности фатальна и не ретраится.
func newSessionID() (string, error) {
	const op = "session.newSessionID"

	b := make([]byte, sessionIDBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
