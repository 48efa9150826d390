package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	domainauth "github.com/skala/skip-session/internal/domain/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decoded(t *testing.T, raw string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(raw), &v))
	return v
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestPrimaryNormalizer(t *testing.T) {
	norm := NewPrimaryNormalizer()

	tests := []struct {
		name string
		src  ErrorSource
		want string
	}{
		{
			name: "error message is localized",
			src:  ErrorSource{Status: 401, Body: decoded(t, `{"error":{"message":"Invalid credentials"}}`)},
			want: "이메일 또는 비밀번호가 올바르지 않습니다",
		},
		{
			name: "error detail wins over error message",
			src: ErrorSource{Status: 400, Body: decoded(t,
				`{"error":{"detail":"email must not be blank","message":"Validation failed"}}`)},
			want: "email must not be blank",
		},
		{
			name: "top-level message",
			src:  ErrorSource{Status: 403, Body: decoded(t, `{"message":"Access denied"}`)},
			want: "접근 권한이 없습니다",
		},
		{
			name: "non-string field is skipped",
			src:  ErrorSource{Status: 500, Body: decoded(t, `{"error":{"message":42},"message":"boom"}`)},
			want: "boom",
		},
		{
			name: "blank field is skipped",
			src:  ErrorSource{Status: 502, Body: decoded(t, `{"message":"   "}`)},
			want: "Request failed with status code 502",
		},
		{
			name: "unrecognized body falls back to status line",
			src:  ErrorSource{Status: 500, Body: decoded(t, `{"unexpected":true}`)},
			want: "Request failed with status code 500",
		},
		{
			name: "timeout",
			src:  ErrorSource{Err: fmt.Errorf("get: %w", timeoutErr{})},
			want: domainauth.MsgRequestTimeout,
		},
		{
			name: "deadline exceeded",
			src:  ErrorSource{Err: context.DeadlineExceeded},
			want: domainauth.MsgRequestTimeout,
		},
		{
			name: "unreachable host",
			src:  ErrorSource{Err: errors.New("dial tcp: connection refused")},
			want: domainauth.MsgNetworkError,
		},
		{
			name: "canceled request uses fallback",
			src:  ErrorSource{Err: context.Canceled},
			want: domainauth.MsgRequestFailed,
		},
		{
			name: "nothing at all",
			src:  ErrorSource{},
			want: domainauth.MsgRequestFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := norm.Normalize(tt.src)
			assert.Equal(t, tt.want, got)
			assert.NotEmpty(t, got)
		})
	}
}

func TestPrimaryNormalizer_ReplacesFirstOccurrenceOnly(t *testing.T) {
	norm := NewPrimaryNormalizer()

	got := norm.Normalize(ErrorSource{Body: decoded(t, `{"message":"Invalid credentials: Invalid credentials"}`)})

	assert.Equal(t, "이메일 또는 비밀번호가 올바르지 않습니다: Invalid credentials", got)
}

func TestPrimaryNormalizer_FirstMatchingPhraseWins(t *testing.T) {
	norm := NewPrimaryNormalizer()

	got := norm.Normalize(ErrorSource{Body: decoded(t, `{"message":"Access denied: Invalid credentials"}`)})

	assert.Equal(t, "Access denied: 이메일 또는 비밀번호가 올바르지 않습니다", got)
}

func TestAINormalizer(t *testing.T) {
	norm := NewAINormalizer()

	t.Run("detail", func(t *testing.T) {
		got := norm.Normalize(ErrorSource{Status: 422, Body: decoded(t, `{"detail":"model unavailable","message":"x"}`)})
		assert.Equal(t, "model unavailable", got)
	})

	t.Run("no phrase table", func(t *testing.T) {
		got := norm.Normalize(ErrorSource{Status: 401, Body: decoded(t, `{"message":"Invalid credentials"}`)})
		assert.Equal(t, "Invalid credentials", got)
	})

	t.Run("nested error shape is not recognized", func(t *testing.T) {
		got := norm.Normalize(ErrorSource{Body: decoded(t, `{"error":{"message":"nested"}}`)})
		assert.Equal(t, domainauth.MsgAIRequestFailed, got)
	})
}

func TestNewFieldExtractor_RejectsInvalidExpression(t *testing.T) {
	_, err := NewFieldExtractor("error.[")
	require.Error(t, err)
}

func TestNewNormalizer_EmptyFallback(t *testing.T) {
	norm := NewNormalizer("", nil)
	assert.Equal(t, domainauth.MsgRequestFailed, norm.Normalize(ErrorSource{}))
}
