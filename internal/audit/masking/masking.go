// Package masking redacts payment references before they are written to
// the audit trail.
package masking

import (
	"strings"
	"unicode"
)

const (
	maskToken  = "****"
	keepSuffix = 4
)

// MaskReference hides a cheque number, UTR or phone number, keeping only
// the last four alphanumeric characters so a treasurer can still match it
// against a bank statement.
func MaskReference(value string) string {
	var digits []rune
	for _, r := range strings.TrimSpace(value) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	switch {
	case len(digits) == 0:
		return ""
	case len(digits) <= keepSuffix:
		return maskToken
	default:
		return maskToken + string(digits[len(digits)-keepSuffix:])
	}
}

// MaskFields copies input, masking the string values under sensitive keys.
// Nested maps such as a payment "changes" diff are walked too.
func MaskFields(input map[string]any, sensitive map[string]struct{}) map[string]any {
	if len(input) == 0 {
		return nil
	}

	out := make(map[string]any, len(input))
	for key, value := range input {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		switch {
		case isSensitive(key, sensitive):
			out[key] = maskValue(value)
		case isMap(value):
			out[key] = MaskFields(value.(map[string]any), sensitive)
		default:
			out[key] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func isSensitive(key string, sensitive map[string]struct{}) bool {
	_, ok := sensitive[strings.ToLower(key)]
	return ok
}

func isMap(value any) bool {
	_, ok := value.(map[string]any)
	return ok
}

func maskValue(value any) any {
	switch v := value.(type) {
	case string:
		return MaskReference(v)
	case *string:
		if v == nil {
			return nil
		}
		return MaskReference(*v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = maskValue(item)
		}
		return out
	case nil:
		return nil
	default:
		return maskToken
	}
}
