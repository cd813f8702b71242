// token реализует кодек подписанных токенов (JWT, HS256).
//
// Кодек жёстко фиксирует один алгоритм подписи: токены, объявляющие любой
// другой алгоритм, отклоняются (защита от algorithm-confusion атак).
// Access-токен несёт роль пользователя; refresh-токен — только subject и тип,
// чтобы минимизировать ценность при утечке.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/eldersguild/auth-service/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Типы токенов (claim "typ").
const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

// leeway — допуск на рассинхронизацию часов. Применяется только к временным
// claims (exp/iat), никогда — к проверке подписи.
const leeway = 30 * time.Second

var (
	// ErrExpired — срок действия токена истёк (now строго позже exp + leeway).
	ErrExpired = errors.New("token expired")

	// ErrInvalid — некорректная подпись, структура, алгоритм или отсутствие exp.
	ErrInvalid = errors.New("token invalid")

	// ErrBadTTL — неположительный TTL при выпуске токена (ошибка конфигурации).
	ErrBadTTL = errors.New("non-positive token ttl")
)

// Claims — проверенные данные токена после Decode.
type Claims struct {
	UserID    uuid.UUID
	Username  string
	Role      string
	TokenType string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type signedClaims struct {
	Username  string `json:"uname,omitempty"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Codec выпускает и проверяет токены. Не хранит состояния запросов:
// экземпляр безопасен для конкурентного использования.
type Codec struct {
	secret   []byte
	issuer   string
	audience []string
}

// NewCodec создаёт кодек с общим секретом и метаданными издателя.
func NewCodec(secret, issuer string, audience []string) Codec {
	return Codec{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
	}
}

// IssueAccess выпускает access-токен с ролью пользователя.
// Все таймстемпы — целые секунды UTC (jwt.NumericDate).
func (c Codec) IssueAccess(user models.Snapshot, now time.Time, ttl time.Duration) (string, error) {
	const op = "token.IssueAccess"

	if ttl <= 0 {
		return "", fmt.Errorf("%s: %w", op, ErrBadTTL)
	}

	claims := signedClaims{
		Username:  user.Username,
		Role:      user.Role,
		TokenType: TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.issuer,
			Subject:   user.UserID.String(),
			Audience:  jwt.ClaimStrings(c.audience),
		},
	}

	return c.sign(op, claims)
}

// IssueRefresh выпускает refresh-токен: только subject и тип, без роли.
func (c Codec) IssueRefresh(userID uuid.UUID, now time.Time, ttl time.Duration) (string, error) {
	const op = "token.IssueRefresh"

	if ttl <= 0 {
		return "", fmt.Errorf("%s: %w", op, ErrBadTTL)
	}

	claims := signedClaims{
		TokenType: TypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.issuer,
			Subject:   userID.String(),
			Audience:  jwt.ClaimStrings(c.audience),
		},
	}

	return c.sign(op, claims)
}

func (c Codec) sign(op string, claims signedClaims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return signed, nil
}

// Decode проверяет подпись и временные claims токена.
//
// Ошибки:
//   - ErrExpired — exp в прошлом (с учётом leeway);
//   - ErrInvalid — всё остальное: подпись, алгоритм, issuer/audience,
//     отсутствующий exp, нераспознаваемый subject.
func (c Codec) Decode(tokenStr string) (Claims, error) {
	const op = "token.Decode"

	parsed, err := jwt.ParseWithClaims(tokenStr, &signedClaims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, fmt.Errorf("%s: %w", op, ErrInvalid)
			}

			return c.secret, nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(leeway),
		jwt.WithIssuer(c.issuer),
		jwt.WithAudience(c.audience...),
		jwt.WithExpirationRequired(),
	)

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, fmt.Errorf("%s: %w", op, ErrExpired)
		}

		return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	claims, ok := parsed.Claims.(*signedClaims)
	if !ok || !parsed.Valid {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	uid, err := uuid.Parse(claims.Subject)
	if err != nil {
		return Claims{}, fmt.Errorf("%s: %w", op, ErrInvalid)
	}

	out := Claims{
		UserID:    uid,
		Username:  claims.Username,
		Role:      claims.Role,
		TokenType: claims.TokenType,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time.UTC()
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time.UTC()
	}

	return out, nil
}
