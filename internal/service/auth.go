package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/eldersguild/auth-service/internal/models"
	"github.com/eldersguild/auth-service/internal/pkg/log"
	"github.com/eldersguild/auth-service/internal/pkg/redact"
	"github.com/eldersguild/auth-service/internal/session"
	"github.com/eldersguild/auth-service/internal/storage"
	"github.com/eldersguild/auth-service/internal/token"
)

// Login выполняет вход по username+пароль.
//
// Порядок проверок:
//  1. блокировка по трекеру неудач — ErrAccountLocked, попытка не записывается;
//  2. поиск пользователя — отсутствие фиксируется как неудача и возвращает
//     ErrInvalidCredentials; в этой ветке выполняется холостая bcrypt-проверка,
//     чтобы латентность не отличалась от ветки неверного пароля;
//  3. проверка пароля — неудача фиксируется и возвращает ту же ошибку;
//  4. успех: выпуск access+refresh токенов, создание сессии и только затем
//     сброс трекера — отклонённый вход никогда не оставляет частичного состояния.
func (s *Service) Login(ctx context.Context, username, pass string) (*models.TokenPair, models.Snapshot, error) {
	const op = "service.auth.Login"

	lg := log.From(ctx)

	if username == "" || pass == "" {
		return nil, models.Snapshot{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	if s.attempts.Locked(username) {
		lg.Warn("login_locked_out",
			slog.String("op", op),
			slog.String("username", redact.Username(username)),
		)
		return nil, models.Snapshot{}, fmt.Errorf("%s: %w", op, ErrAccountLocked)
	}

	user, err := s.storage.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Выравнивание латентности с веткой неверного пароля.
			s.hasher.Verify(pass, s.dummyHash)
			s.attempts.Fail(username)
			return nil, models.Snapshot{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, models.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	if !s.hasher.Verify(pass, user.PasswordHash) {
		s.attempts.Fail(username)
		return nil, models.Snapshot{}, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	snapshot := user.Snapshot()
	now := time.Now().UTC()

	accessToken, err := s.codec.IssueAccess(snapshot, now, s.cfg.AccessTokenTTL)
	if err != nil {
		return nil, models.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	refreshToken, err := s.codec.IssueRefresh(user.ID, now, s.cfg.RefreshTokenTTL)
	if err != nil {
		return nil, models.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	sessionID, err := s.sessions.Create(ctx, snapshot)
	if err != nil {
		lg.Error("session_create_failed",
			slog.String("op", op),
			slog.String("err", err.Error()),
		)
		return nil, models.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	// Сброс трекера строго после того, как всё остальное удалось.
	s.attempts.Reset(username)

	lg.Info("login_ok",
		slog.String("op", op),
		slog.String("user_id", user.ID.String()),
	)

	return &models.TokenPair{
		AccessToken:     accessToken,
		RefreshToken:    refreshToken,
		SessionID:       sessionID,
		AccessExpiresAt: now.Add(s.cfg.AccessTokenTTL),
	}, snapshot, nil
}

// VerifyAccess проверяет access-токен и возвращает его claims.
//
// Проверка stateless: хранилище сессий не затрагивается — отзываемые сценарии
// дополнительно вызывают ValidateSession. Refresh-токен здесь не принимается
// никогда (ErrWrongTokenType).
func (s *Service) VerifyAccess(ctx context.Context, accessToken string) (token.Claims, error) {
	const op = "service.auth.VerifyAccess"

	claims, err := s.decode(ctx, op, accessToken)
	if err != nil {
		return token.Claims{}, err
	}

	if claims.TokenType != token.TypeAccess {
		return token.Claims{}, fmt.Errorf("%s: %w", op, ErrWrongTokenType)
	}

	return claims, nil
}

// Refresh выпускает новый access-токен по валидному refresh-токену.
//
// Роль в новый токен НЕ копируется из refresh-токена (его там нет по дизайну),
// а заново читается из identity-хранилища: токен всегда несёт актуальную роль,
// включая изменения, сделанные после логина.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (string, time.Time, error) {
	const op = "service.auth.Refresh"

	claims, err := s.decode(ctx, op, refreshToken)
	if err != nil {
		return "", time.Time{}, err
	}

	if claims.TokenType != token.TypeRefresh {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrWrongTokenType)
	}

	user, err := s.storage.UserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Валидный токен на несуществующего пользователя — удалённая учётка.
			return "", time.Time{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
		}

		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	now := time.Now().UTC()

	accessToken, err := s.codec.IssueAccess(user.Snapshot(), now, s.cfg.AccessTokenTTL)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return accessToken, now.Add(s.cfg.AccessTokenTTL), nil
}

// ValidateSession проверяет серверную сессию и сдвигает её last_active
// (скользящее истечение). Отдельный шаг для сценариев, которым нужна
// отзываемость, — VerifyAccess сессию не трогает.
func (s *Service) ValidateSession(ctx context.Context, sessionID string) (models.Snapshot, error) {
	const op = "service.auth.ValidateSession"

	snapshot, err := s.sessions.Validate(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return models.Snapshot{}, fmt.Errorf("%s: %w", op, ErrSessionNotFound)
		}
		if errors.Is(err, session.ErrExpired) {
			return models.Snapshot{}, fmt.Errorf("%s: %w", op, ErrSessionExpired)
		}

		return models.Snapshot{}, fmt.Errorf("%s: %w", op, err)
	}

	return snapshot, nil
}

// Logout отзывает сессию. Идемпотентен: повторный вызов с тем же
// идентификатором — не ошибка.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	const op = "service.auth.Logout"

	if err := s.sessions.Invalidate(ctx, sessionID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// CheckRole проверяет, достаточно ли роли из claims для требуемой.
// Роль admin проходит любую проверку. Явная функция вместо
// декораторов/middleware: вызывающая сторона применяет её сама после VerifyAccess.
func CheckRole(claims token.Claims, required string) bool {
	if required == "" {
		return true
	}

	return claims.Role == required || claims.Role == models.RoleAdmin
}

// decode переводит ошибки кодека в ошибки уровня сервиса.
// Некорректный токен — сигнал атаки: логируется уровнем Warn,
// истечение срока — ожидаемое событие, уровень Debug.
func (s *Service) decode(ctx context.Context, op, tokenStr string) (token.Claims, error) {
	lg := log.From(ctx)

	claims, err := s.codec.Decode(tokenStr)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			lg.Debug("token_expired", slog.String("op", op))
			return token.Claims{}, fmt.Errorf("%s: %w", op, ErrTokenExpired)
		}

		lg.Warn("token_invalid", slog.String("op", op))
		return token.Claims{}, fmt.Errorf("%s: %w", op, ErrInvalidToken)
	}

	return claims, nil
}
