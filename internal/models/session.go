package models

import "time"

// Session — серверная запись сессии: непрозрачный идентификатор,
// срез пользователя и таймстемпы для скользящего idle-таймаута.
//
// Инвариант: сессия валидна, пока now - LastActiveAt <= idle-таймаут;
// каждая успешная валидация обновляет LastActiveAt.
type Session struct {
	// ID — криптографически случайный идентификатор (>=128 бит энтропии).
	ID string
	// User — срез {user_id, username, role} на момент создания.
	User Snapshot
	// CreatedAt — время создания сессии (UTC).
	CreatedAt time.Time
	// LastActiveAt — время последней успешной валидации (UTC).
	LastActiveAt time.Time
}
