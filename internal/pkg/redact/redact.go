// redact маскирует чувствительные значения перед записью в логи.
package redact

// Username оставляет не более двух первых символов имени.
func Username(s string) string {
	if len(s) <= 2 {
		return "***"
	}

	return s[:2] + "***"
}

func Token() string    { return "[REDACTED_TOKEN]" }
func Password() string { return "[REDACTED_PASSWORD]" }
