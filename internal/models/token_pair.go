package models

import "time"

// TokenPair — результат успешной аутентификации.
//
// Описание:
//   - AccessToken — короткоживущий JWT с ролью для авторизации запросов;
//   - RefreshToken — долгоживущий JWT только с subject, для выпуска новых access-токенов;
//   - SessionID — идентификатор серверной сессии (отзываемые сценарии);
//   - AccessExpiresAt — момент истечения access-токена (UTC).
type TokenPair struct {
	AccessToken     string
	RefreshToken    string
	SessionID       string
	AccessExpiresAt time.Time
}
