package password

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHash_And_Verify_OK(t *testing.T) {
	t.Parallel()

	h := New(0)

	hash, err := h.Hash("Correct1!pw")
	require.NoError(t, err)
	require.NotEmpty(t, hash)

	require.True(t, h.Verify("Correct1!pw", hash))
	require.False(t, h.Verify("Wrong1!pw", hash))
}

func TestHash_EmptyInput(t *testing.T) {
	t.Parallel()

	_, err := New(0).Hash("")
	require.Error(t, err)
	require.ErrorIs(t, err, ErrEmptyInput)
}

func TestHash_SaltIsRandom(t *testing.T) {
	t.Parallel()

	h := New(0)

	h1, err := h.Hash("same-password")
	require.NoError(t, err)
	h2, err := h.Hash("same-password")
	require.NoError(t, err)

	// Соль встроена в хэш: два хэша одного пароля различаются,
	// но оба проходят проверку.
	require.NotEqual(t, h1, h2)
	require.True(t, h.Verify("same-password", h1))
	require.True(t, h.Verify("same-password", h2))
}

func TestVerify_MalformedHash_FalseWithoutPanic(t *testing.T) {
	t.Parallel()

	h := New(0)

	require.False(t, h.Verify("whatever", ""))
	require.False(t, h.Verify("whatever", "not-a-bcrypt-hash"))
	require.False(t, h.Verify("whatever", "$2a$xx$broken"))
}
