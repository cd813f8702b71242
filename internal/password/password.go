// password инкапсулирует хэширование и проверку паролей (bcrypt).
//
// Пакет без состояния: Hasher можно безопасно разделять между горутинами
// и инжектировать в сервисный слой.
package password

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// ErrEmptyInput — пустой plaintext-пароль на входе Hash.
var ErrEmptyInput = errors.New("empty password")

// Hasher хэширует и проверяет пароли. Нулевое значение использует bcrypt.DefaultCost.
type Hasher struct {
	cost int
}

// New создаёт Hasher с заданной стоимостью. cost <= 0 означает bcrypt.DefaultCost.
func New(cost int) Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}

	return Hasher{cost: cost}
}

// Hash возвращает bcrypt-хэш пароля (соль и cost встроены в строку).
// Для пустого входа возвращает ErrEmptyInput.
func (h Hasher) Hash(plaintext string) (string, error) {
	const op = "password.Hash"

	if plaintext == "" {
		return "", fmt.Errorf("%s: %w", op, ErrEmptyInput)
	}

	cost := h.cost
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}

	bytes, err := bcrypt.GenerateFromPassword([]byte(plaintext), cost)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return string(bytes), nil
}

// Verify сравнивает пароль с хэшем. Для некорректного формата хэша
// возвращает false без ошибки, чтобы не раскрывать детали формата.
func (h Hasher) Verify(plaintext, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext)) == nil
}
