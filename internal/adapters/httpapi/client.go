// Package httpapi implements the request pipeline towards the primary and
// analysis backends: credential injection, session-expiry handling and error
// message normalization.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	apperrors "github.com/skala/skip-session/internal/errors"
	"github.com/skala/skip-session/internal/observability/metrics"
)

const maxErrorBody = 1 << 20

// ClientOptions groups dependencies for Client.
type ClientOptions struct {
	// Name tags logs and metrics ("api", "ai").
	Name       string
	BaseURL    string
	Timeout    time.Duration
	Transport  http.RoundTripper
	Jar        http.CookieJar
	Normalizer *Normalizer
	Logger     *slog.Logger
	Metrics    metrics.Recorder
}

// Client issues JSON requests through the pipeline transport. Every failure
// is returned as *errors.AppError whose text is the normalized message.
type Client struct {
	name    string
	base    *url.URL
	http    *http.Client
	norm    *Normalizer
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewClient constructs a Client.
func NewClient(opts ClientOptions) (*Client, error) {
	if strings.TrimSpace(opts.BaseURL) == "" {
		return nil, errors.New("base URL is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL scheme: %s", base.Scheme)
	}

	norm := opts.Normalizer
	if norm == nil {
		norm = NewPrimaryNormalizer()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := opts.Name
	if name == "" {
		name = "api"
	}

	return &Client{
		name: name,
		base: base,
		http: &http.Client{
			Transport: opts.Transport,
			Jar:       opts.Jar,
			Timeout:   opts.Timeout,
		},
		norm:    norm,
		logger:  logger.With("backend", name),
		metrics: metrics.OrNoop(opts.Metrics),
	}, nil
}

// Do sends in (JSON-encoded when non-nil) to path and decodes the response
// into out (when non-nil).
func (c *Client) Do(ctx context.Context, method, path string, in, out any) error {
	req, err := c.newRequest(ctx, method, path, in)
	if err != nil {
		return c.fail(ctx, &apperrors.AppError{
			Code:    apperrors.ErrCodeInternal,
			Message: c.norm.Normalize(ErrorSource{}),
			Cause:   err,
		})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(ctx, &apperrors.AppError{
			Code:    transportCode(err),
			Message: c.norm.Normalize(ErrorSource{Err: err}),
			Cause:   err,
		})
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusBadRequest {
		return c.fail(ctx, c.Reject(resp.StatusCode, decodeBody(resp.Body)))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return c.fail(ctx, &apperrors.AppError{
			Code:    apperrors.ErrCodeInternal,
			Message: c.norm.Normalize(ErrorSource{}),
			Status:  resp.StatusCode,
			Cause:   fmt.Errorf("decode response: %w", err),
		})
	}
	return nil
}

// Reject builds the normalized error for a failed response body.
func (c *Client) Reject(status int, body any) *apperrors.AppError {
	return &apperrors.AppError{
		Code:    apperrors.CodeForStatus(status),
		Message: c.norm.Normalize(ErrorSource{Status: status, Body: body}),
		Status:  status,
		Cause:   fmt.Errorf("%s backend responded with status %d", c.name, status),
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, in any) (*http.Request, error) {
	u := c.base.JoinPath(path)

	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) fail(ctx context.Context, err *apperrors.AppError) error {
	c.metrics.RequestError(c.name, err)
	c.logger.WarnContext(ctx, "backend request failed",
		"code", err.Code,
		"status", err.Status,
		"message", err.Message,
		"cause", err.Cause,
	)
	return err
}

func decodeBody(r io.Reader) any {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var body any
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil
	}
	return body
}

func transportCode(err error) apperrors.ErrorCode {
	switch {
	case isTimeout(err):
		return apperrors.ErrCodeTimeout
	case errors.Is(err, context.Canceled):
		return apperrors.ErrCodeCanceled
	default:
		return apperrors.ErrCodeNetwork
	}
}
