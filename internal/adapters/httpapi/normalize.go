package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	jmespath "github.com/jmespath-community/go-jmespath"
	domainauth "github.com/skala/skip-session/internal/domain/auth"
)

// ErrorSource is the raw shape of a failed call: the decoded JSON body (nil
// when absent or not JSON), the HTTP status (0 when no response arrived) and
// the transport error, if any.
type ErrorSource struct {
	Status int
	Body   any
	Err    error
}

// MessageExtractor yields a display message from an error shape when it can.
type MessageExtractor interface {
	Extract(src ErrorSource) (string, bool)
}

// FieldExtractor reads a string field out of the decoded body using a
// JMESPath expression.
type FieldExtractor struct {
	Expr string
}

// NewFieldExtractor validates expr and returns an extractor for it.
func NewFieldExtractor(expr string) (FieldExtractor, error) {
	if _, err := jmespath.Compile(expr); err != nil {
		return FieldExtractor{}, fmt.Errorf("compile %q: %w", expr, err)
	}
	return FieldExtractor{Expr: expr}, nil
}

func (f FieldExtractor) Extract(src ErrorSource) (string, bool) {
	if src.Body == nil {
		return "", false
	}
	v, err := jmespath.Search(f.Expr, src.Body)
	if err != nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}

// TransportExtractor describes the failure at the transport level: timeouts
// and unreachable hosts map to localized messages, bare HTTP failures to a
// status line.
type TransportExtractor struct{}

func (TransportExtractor) Extract(src ErrorSource) (string, bool) {
	if src.Err != nil {
		switch {
		case isTimeout(src.Err):
			return domainauth.MsgRequestTimeout, true
		case errors.Is(src.Err, context.Canceled):
			return "", false
		default:
			return domainauth.MsgNetworkError, true
		}
	}
	if src.Status != 0 {
		return fmt.Sprintf("Request failed with status code %d", src.Status), true
	}
	return "", false
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Normalizer turns any failure into one non-empty display message by trying
// extractors in order, then localizing known backend phrases.
type Normalizer struct {
	extractors []MessageExtractor
	phrases    []domainauth.Phrase
	fallback   string
}

// NewNormalizer builds a normalizer. fallback must be non-empty.
func NewNormalizer(fallback string, phrases []domainauth.Phrase, extractors ...MessageExtractor) *Normalizer {
	if fallback == "" {
		fallback = domainauth.MsgRequestFailed
	}
	return &Normalizer{
		extractors: extractors,
		phrases:    phrases,
		fallback:   fallback,
	}
}

// NewPrimaryNormalizer returns the chain used for the main backend:
// error.detail, error.message, message, transport, fallback; phrases localized.
func NewPrimaryNormalizer() *Normalizer {
	return NewNormalizer(domainauth.MsgRequestFailed, domainauth.BackendPhrases,
		mustField("error.detail"),
		mustField("error.message"),
		mustField("message"),
		TransportExtractor{},
	)
}

// NewAINormalizer returns the chain used for the analysis backend:
// detail, message, transport, fallback; no phrase table.
func NewAINormalizer() *Normalizer {
	return NewNormalizer(domainauth.MsgAIRequestFailed, nil,
		mustField("detail"),
		mustField("message"),
		TransportExtractor{},
	)
}

func mustField(expr string) FieldExtractor {
	f, err := NewFieldExtractor(expr)
	if err != nil {
		panic(err)
	}
	return f
}

// Normalize returns the display message for src. Never empty.
func (n *Normalizer) Normalize(src ErrorSource) string {
	msg := n.fallback
	for _, ex := range n.extractors {
		if m, ok := ex.Extract(src); ok {
			msg = m
			break
		}
	}
	return n.translate(msg)
}

func (n *Normalizer) translate(msg string) string {
	for _, p := range n.phrases {
		if strings.Contains(msg, p.Match) {
			return strings.Replace(msg, p.Match, p.Replacement, 1)
		}
	}
	return msg
}
