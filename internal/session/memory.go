package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/eldersguild/auth-service/internal/models"
)

// Memory — потокобезопасное in-memory хранилище сессий.
//
// Проверка idle-таймаута и сдвиг last_active выполняются под одним мьютексом:
// операции над одним session_id линеаризуемы.
type Memory struct {
	mu          sync.Mutex
	idleTimeout time.Duration
	sessions    map[string]*models.Session

	now func() time.Time // переопределяется в тестах
}

// NewMemory создаёт in-memory хранилище с заданным idle-таймаутом.
func NewMemory(idleTimeout time.Duration) *Memory {
	return &Memory{
		idleTimeout: idleTimeout,
		sessions:    make(map[string]*models.Session),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Create сохраняет новую сессию и возвращает её идентификатор.
func (m *Memory) Create(_ context.Context, user models.Snapshot) (string, error) {
	const op = "session.Memory.Create"

	id, err := newSessionID()
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[id] = &models.Session{
		ID:           id,
		User:         user,
		CreatedAt:    now,
		LastActiveAt: now,
	}

	return id, nil
}

// Validate проверяет сессию и сдвигает last_active (скользящее истечение).
func (m *Memory) Validate(_ context.Context, id string) (models.Snapshot, error) {
	const op = "session.Memory.Validate"

	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return models.Snapshot{}, fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	if now.Sub(s.LastActiveAt) > m.idleTimeout {
		// Ленивое удаление: последующие Validate тоже вернут ошибку.
		delete(m.sessions, id)
		return models.Snapshot{}, fmt.Errorf("%s: %w", op, ErrExpired)
	}

	s.LastActiveAt = now

	return s.User, nil
}

// Invalidate удаляет сессию, если она есть. Повторный вызов — не ошибка.
func (m *Memory) Invalidate(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessions, id)

	return nil
}

// Sweep удаляет сессии, превысившие idle-таймаут. Вызывается периодически
// из фоновой задачи, чтобы брошенные сессии не копились в памяти.
func (m *Memory) Sweep() {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		if now.Sub(s.LastActiveAt) > m.idleTimeout {
			delete(m.sessions, id)
		}
	}
}

// Close освобождает ресурсы. Для in-memory реализации — no-op.
func (m *Memory) Close() error { return nil }

var _ Store = (*Memory)(nil)
