package carrier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tech-arch1tect/phoneauth/services/logging"
	"go.uber.org/zap"
)

var (
	ErrMissingAccessToken = errors.New("carrier access token is required")
	ErrNoPhoneNumber      = errors.New("carrier returned no phone number")
	ErrNotConfigured      = errors.New("carrier endpoint not configured")
)

// Resolver exchanges a one-click access token for the device's phone number.
type Resolver interface {
	ResolvePhone(ctx context.Context, accessToken, openID string) (string, error)
}

// ProviderError is a rejection reported by the carrier itself.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("carrier verification failed (code %d)", e.Code)
	}
	return e.Message
}

type resolveRequest struct {
	AppID       string `json:"appid,omitempty"`
	Secret      string `json:"secret,omitempty"`
	AccessToken string `json:"access_token"`
	OpenID      string `json:"openid,omitempty"`
}

type resolveResponse struct {
	Code        int    `json:"code"`
	Message     string `json:"message"`
	PhoneNumber string `json:"phoneNumber"`
}

type HTTPResolver struct {
	endpoint string
	appID    string
	secret   string
	client   *http.Client
	logger   *logging.Service
}

func NewHTTPResolver(endpoint, appID, secret string, client *http.Client, logger *logging.Service) *HTTPResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPResolver{
		endpoint: endpoint,
		appID:    appID,
		secret:   secret,
		client:   client,
		logger:   logger,
	}
}

func (r *HTTPResolver) ResolvePhone(ctx context.Context, accessToken, openID string) (string, error) {
	if accessToken == "" {
		return "", ErrMissingAccessToken
	}
	if r.endpoint == "" {
		return "", ErrNotConfigured
	}

	body, err := json.Marshal(resolveRequest{
		AppID:       r.appID,
		Secret:      r.secret,
		AccessToken: accessToken,
		OpenID:      openID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode carrier request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build carrier request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("failed to reach carrier", zap.Error(err))
		return "", fmt.Errorf("failed to reach carrier: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read carrier response: %w", err)
	}

	var result resolveResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("malformed carrier response (status %d): %w", resp.StatusCode, err)
	}

	if result.Code != 0 {
		r.logger.Warn("carrier rejected access token",
			zap.Int("code", result.Code),
			zap.String("message", result.Message))
		return "", &ProviderError{Code: result.Code, Message: result.Message}
	}

	if result.PhoneNumber == "" {
		return "", ErrNoPhoneNumber
	}

	return result.PhoneNumber, nil
}
