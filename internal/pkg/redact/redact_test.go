package redact

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestUsername_Table — табличные тесты на маскирование username.
func TestUsername_Table(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "long_username", in: "foobar", want: "fo***"},
		{name: "len_3", in: "abc", want: "ab***"},
		{name: "len_2", in: "ab", want: "***"},
		{name: "len_1", in: "a", want: "***"},
		{name: "empty_string", in: "", want: "***"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.want, Username(tt.in))
		})
	}
}

// TestLiterals_TokenAndPassword — литералы для токенов/паролей неизменны.
func TestLiterals_TokenAndPassword(t *testing.T) {
	t.Parallel()

	require.Equal(t, "[REDACTED_TOKEN]", Token())
	require.Equal(t, "[REDACTED_PASSWORD]", Password())
}
