package httpapi

import (
	"context"
	"net/http"
)

// AIHealth is the analysis backend's health payload.
type AIHealth struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

// AIClient talks to the analysis backend. Its transport carries the bearer
// credential but has no session-expiry handling.
type AIClient struct {
	api *Client
}

// NewAIClient wraps an analysis-backend Client.
func NewAIClient(api *Client) *AIClient {
	return &AIClient{api: api}
}

// Health probes the analysis backend.
func (a *AIClient) Health(ctx context.Context) (AIHealth, error) {
	var out AIHealth
	if err := a.api.Do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return AIHealth{}, err
	}
	return out, nil
}

// Do exposes the raw JSON call for feature collaborators of the analysis
// backend.
func (a *AIClient) Do(ctx context.Context, method, path string, in, out any) error {
	return a.api.Do(ctx, method, path, in, out)
}
