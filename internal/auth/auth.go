// Package auth provides optional token validation for bot connections. The
// server stays usable without any auth service; see NoopValidator.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

var (
	// ErrInvalidToken means the token was definitively rejected.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable means the auth service could not give an answer.
	// Callers decide whether to fail open or closed.
	ErrUnavailable = errors.New("auth: unavailable")
)

// validateTimeout bounds one callback to the auth service.
const validateTimeout = 500 * time.Millisecond

// maxResponseBytes caps how much of the auth response is read.
const maxResponseBytes = 1 << 20

// Identity is what the auth service knows about a bot.
type Identity struct {
	BotID string `json:"bot_id"`
	Owner string `json:"owner"`
}

// Validator checks connection tokens.
//
// Validate returns (identity, nil) for a valid token, ErrInvalidToken for a
// rejected one, and ErrUnavailable when no answer could be obtained. The
// NoopValidator returns (nil, nil) for every token.
type Validator interface {
	Validate(ctx context.Context, token string) (*Identity, error)
}

// HTTPValidator checks tokens against an external HTTP endpoint.
type HTTPValidator struct {
	url    string
	client *http.Client
}

// NewHTTPValidator creates a validator that posts tokens to url.
func NewHTTPValidator(url string) *HTTPValidator {
	return &HTTPValidator{
		url:    url,
		client: &http.Client{Timeout: validateTimeout},
	}
}

type validateRequest struct {
	Token string `json:"token"`
}

type validateResponse struct {
	Valid bool   `json:"valid"`
	BotID string `json:"bot_id,omitempty"`
	Owner string `json:"owner,omitempty"`
	Error string `json:"error,omitempty"`
}

func (v *HTTPValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	ctx, cancel := context.WithTimeout(ctx, validateTimeout)
	defer cancel()

	body, err := json.Marshal(validateRequest{Token: token})
	if err != nil {
		return nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, ErrInvalidToken
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var answer validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&answer); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, err)
	}
	if !answer.Valid {
		return nil, ErrInvalidToken
	}

	return &Identity{BotID: answer.BotID, Owner: answer.Owner}, nil
}

// NoopValidator accepts every connection. Used when no auth URL is
// configured.
type NoopValidator struct{}

func NewNoopValidator() *NoopValidator {
	return &NoopValidator{}
}

func (NoopValidator) Validate(ctx context.Context, token string) (*Identity, error) {
	return nil, nil
}
