// Package llm wraps the DigitalOcean AI Inference client to turn extracted
// PDF text into short, audio-ready French sentences.
package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sahilchouksey/go-init-setup/model"
	"github.com/sahilchouksey/go-init-setup/services/digitalocean"
)

// RetryableError wraps an underlying error that the inference API marked
// as retryable (HTTP 429, explicit retry marker in the response body).
type RetryableError struct {
	Err error
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error  { return e.Err }

// IsRetryable reports whether err should be treated as a transient
// failure by the caller (rate limit, 429, explicit retryable marker).
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var re *RetryableError
	if asRetryable(err, &re) {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "429") ||
		strings.Contains(s, "too_many_requests") ||
		strings.Contains(s, "rate limit") ||
		strings.Contains(s, "timeout") ||
		strings.Contains(s, "connection reset") ||
		strings.Contains(s, "EOF")
}

func asRetryable(err error, target **RetryableError) bool {
	for err != nil {
		if re, ok := err.(*RetryableError); ok {
			*target = re
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

type normalizeResponse struct {
	Sentences []string `json:"sentences"`
}

var normalizeSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"sentences": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
	},
	"required": []string{"sentences"},
}

// Client normalizes French prose into short, audio-ready sentences via an
// OpenAI-compatible chat completion backend.
type Client struct {
	inference *digitalocean.InferenceClient
}

// New wraps an already-configured inference client.
func New(inference *digitalocean.InferenceClient) *Client {
	return &Client{inference: inference}
}

// Normalize sends extracted PDF text to the model and returns candidate
// sentences plus the total token usage reported by the API. The caller is
// responsible for running the quality gate over the returned sentences.
func (c *Client) Normalize(ctx context.Context, text string, settings model.ProcessingSettings) ([]string, int64, error) {
	systemPrompt := buildSystemPrompt(settings)

	resp, err := c.inference.ChatCompletion(ctx, []digitalocean.InferenceMessage{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: text},
	}, digitalocean.WithResponseFormatJSONSchema(
		"sentence_normalization",
		"Short audio-ready French sentences extracted from prose",
		normalizeSchema, true,
	))
	if err != nil {
		if looksRetryable(err) {
			return nil, 0, &RetryableError{Err: err}
		}
		return nil, 0, fmt.Errorf("inference call failed: %w", err)
	}

	raw := resp.ExtractContent()
	var parsed normalizeResponse
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, 0, fmt.Errorf("failed to parse normalization response: %w", err)
	}

	_, _, total := resp.GetUsage()
	return parsed.Sentences, int64(total), nil
}

func looksRetryable(err error) bool {
	s := err.Error()
	return strings.Contains(s, "429") ||
		strings.Contains(s, "too_many_requests") ||
		strings.Contains(s, "rate limit")
}

func buildSystemPrompt(settings model.ProcessingSettings) string {
	var sb strings.Builder
	sb.WriteString("Tu es un assistant qui transforme de la prose francaise en phrases courtes, completes et pretes pour la synthese vocale.\n")
	fmt.Fprintf(&sb, "Chaque phrase doit contenir entre %d et %d mots, commencer par une majuscule et se terminer par une ponctuation finale.\n", settings.MinSentenceLength, settings.SentenceLengthLimit)
	if settings.IgnoreDialogue {
		sb.WriteString("Ignore les dialogues entre guillemets.\n")
	}
	if settings.FixHyphenation {
		sb.WriteString("Corrige les mots coupes par une cesure en fin de ligne.\n")
	}
	if settings.PreserveFormatting {
		sb.WriteString("Preserve l'ordre narratif d'origine.\n")
	}
	sb.WriteString("Reponds uniquement avec un objet JSON {\"sentences\": [...]}.")
	return sb.String()
}
