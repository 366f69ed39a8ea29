package llm

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sahilchouksey/go-init-setup/model"
)

func TestIsRetryable(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("boom"), false},
		{errors.New("inference API error (status 429): too_many_requests"), true},
		{fmt.Errorf("wrapped: %w", &RetryableError{Err: errors.New("rate limit hit")}), true},
		{errors.New("read tcp: connection reset by peer"), true},
	}
	for _, tc := range cases {
		if got := IsRetryable(tc.err); got != tc.want {
			t.Errorf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestBuildSystemPromptReflectsSettings(t *testing.T) {
	settings := model.ProcessingSettings{
		SentenceLengthLimit: 8,
		MinSentenceLength:   4,
		IgnoreDialogue:      true,
		FixHyphenation:      true,
	}
	prompt := buildSystemPrompt(settings)
	if !contains(prompt, "4") || !contains(prompt, "8") {
		t.Errorf("prompt does not mention the configured word bounds: %q", prompt)
	}
	if !contains(prompt, "dialogues") {
		t.Errorf("prompt does not mention dialogue handling: %q", prompt)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}
