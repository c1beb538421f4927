package redact_test

import (
	"testing"

	"github.com/iskralabs/iskra/common/redact"
)

func TestString(t *testing.T) {
	got := redact.String("Authorization: Bearer sk-abc123", "sk-abc123")
	want := "Authorization: Bearer [REDACTED]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestString_MultipleValues(t *testing.T) {
	got := redact.String("token=bot-token key=api-key", "bot-token", "api-key")
	want := "token=[REDACTED] key=[REDACTED]"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestString_ShortValuesSkipped(t *testing.T) {
	// Values under 4 characters would redact common substrings.
	got := redact.String("a short ab string", "ab")
	if got != "a short ab string" {
		t.Errorf("got %q, want unchanged input", got)
	}
}

func TestPreview(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want string
	}{
		{"shorter than limit", "привет", 10, "привет"},
		{"exactly at limit", "привет", 6, "привет"},
		{"truncated", "очень длинное сообщение", 5, "очень…"},
		{"empty", "", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := redact.Preview(tt.text, tt.n); got != tt.want {
				t.Errorf("Preview(%q, %d): got %q, want %q", tt.text, tt.n, got, tt.want)
			}
		})
	}
}
