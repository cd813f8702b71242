// service содержит бизнес-логику движка аутентификации:
// вход по паролю, проверку и обновление токенов, жизненный цикл сессий
// и блокировку по неудачным попыткам входа.
//
// Основные аспекты:
//   - Service не хранит состояние запроса; экземпляр безопасен для
//     конкурентного использования из разных горутин при условии, что
//     переданные хранилища (storage.UserStorage, session.Store) потокобезопасны;
//   - Трекер блокировок и хранилище сессий принадлежат экземпляру Service
//     и не разделяются между экземплярами;
//   - Низкоуровневые ошибки кодека/хэшера переводятся в ошибки уровня сервиса
//     и далее маппятся транспортом на gRPC-коды (см. комментарии ниже);
//     детали внутренних ошибок наружу не утекают.
package service

import (
	"errors"
	"fmt"

	"github.com/eldersguild/auth-service/internal/config"
	"github.com/eldersguild/auth-service/internal/lockout"
	"github.com/eldersguild/auth-service/internal/password"
	"github.com/eldersguild/auth-service/internal/session"
	"github.com/eldersguild/auth-service/internal/storage"
	"github.com/eldersguild/auth-service/internal/token"
)

var (
	// ErrAccountLocked — вход заблокирован трекером неудачных попыток.
	// Не ретраится до истечения окна блокировки.
	// Транспорт: codes.ResourceExhausted (HTTP 429).
	ErrAccountLocked = errors.New("account temporarily locked")

	// ErrInvalidCredentials — пара логин/пароль неверна или пользователь не найден.
	// Сообщение едино для обоих случаев — защита от перечисления username.
	// Транспорт: codes.Unauthenticated (HTTP 401).
	ErrInvalidCredentials = errors.New("invalid username or password")

	// ErrInvalidToken — токен некорректен по формату/подписи/алгоритму.
	// Сигнал атаки: логируется строже, чем истечение срока.
	// Транспорт: codes.Unauthenticated (HTTP 401).
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired — срок действия токена истёк.
	// Транспорт: codes.Unauthenticated (HTTP 401).
	ErrTokenExpired = errors.New("token expired")

	// ErrWrongTokenType — операции предъявлен токен не того типа
	// (например, refresh-токен вместо access). Транспорт: codes.Unauthenticated.
	ErrWrongTokenType = errors.New("wrong token type")

	// ErrSessionNotFound — сессия неизвестна (или истекла в Redis-хранилище).
	// Транспорт: codes.Unauthenticated (HTTP 401).
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionExpired — сессия превысила idle-таймаут.
	// Транспорт: codes.Unauthenticated (HTTP 401).
	ErrSessionExpired = errors.New("session expired")

	// ErrInvalidConfig — некорректная конфигурация (пустой секрет, неположительные TTL).
	// Фатальна: обнаруживается на старте, в рантайме не восстанавливается.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Service описывает бизнес-логику движка аутентификации.
type Service struct {
	storage  storage.UserStorage
	sessions session.Store
	attempts *lockout.Tracker
	codec    token.Codec
	hasher   password.Hasher
	cfg      config.AuthConfig

	// dummyHash — bcrypt-хэш для холостой проверки в ветке "пользователь
	// не найден": выравнивает латентность с веткой "неверный пароль".
	dummyHash string
}

// New создаёт новый экземпляр Service.
// Конфигурация проверяется немедленно: отсутствие секрета или
// неположительные TTL возвращают ErrInvalidConfig (fail-fast).
func New(st storage.UserStorage, sessions session.Store, cfg config.AuthConfig, lockoutCfg config.LockoutConfig) (*Service, error) {
	const op = "service.New"

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("%s: empty jwt_secret: %w", op, ErrInvalidConfig)
	}
	if cfg.AccessTokenTTL <= 0 || cfg.RefreshTokenTTL <= 0 {
		return nil, fmt.Errorf("%s: non-positive token ttl: %w", op, ErrInvalidConfig)
	}

	hasher := password.New(0)

	dummy, err := hasher.Hash("auth-service-dummy-credential")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Service{
		storage:  st,
		sessions: sessions,
		attempts: lockout.New(lockout.Config{
			MaxFailedAttempts: lockoutCfg.MaxFailedAttempts,
			Window:            lockoutCfg.Window,
		}),
		codec:     token.NewCodec(cfg.JWTSecret, cfg.Issuer, cfg.Audience),
		hasher:    hasher,
		cfg:       cfg,
		dummyHash: dummy,
	}, nil
}

// Attempts возвращает трекер блокировок (для фоновой очистки в main).
func (s *Service) Attempts() *lockout.Tracker {
	return s.attempts
}
