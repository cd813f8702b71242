package models

import (
	"time"

	"github.com/google/uuid"
)

// Роли пользователей — закрытый набор тегов.
const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// User — учётная запись из внешнего identity-хранилища.
//
// Движок аутентификации читает её при логине и никогда не изменяет;
// PasswordHash — непрозрачная строка bcrypt, plaintext-пароль нигде не хранится.
type User struct {
	ID           uuid.UUID
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Snapshot — срез данных пользователя на момент создания сессии.
// Не обновляется из identity-хранилища после создания (фиксируется при логине).
type Snapshot struct {
	UserID   uuid.UUID
	Username string
	Role     string
}

// Snapshot возвращает срез пользователя для хранения в сессии.
func (u *User) Snapshot() Snapshot {
	return Snapshot{
		UserID:   u.ID,
		Username: u.Username,
		Role:     u.Role,
	}
}
