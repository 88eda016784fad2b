package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ketchalegend/vibeflow/internal/models"
	"github.com/ketchalegend/vibeflow/internal/shared"
)

// TokenPair is the credential pair produced by a refresh. The provider may
// omit a new refresh token, in which case the old one stays valid.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    int64 // epoch milliseconds
}

// RefreshCallback is invoked after a successful token refresh so the session
// store can persist the new pair. The token manager itself only keeps the
// refreshed access token in request-scoped state.
type RefreshCallback func(pair TokenPair)

// TokenManager holds one session's bearer token for the duration of a request
// and exposes the authenticated-call primitive every provider method goes
// through.
//
// On a 401 response it performs exactly one refresh attempt against the
// provider's token endpoint and retries the original request once with the
// new token. If the refresh fails, the original 401 response is returned to
// the caller untouched. No other status triggers a retry.
type TokenManager struct {
	httpClient   *http.Client
	clientID     string
	clientSecret string
	tokenURL     string
	accessToken  string
	refreshToken string
	refreshed    bool
	onRefresh    RefreshCallback
	logger       *log.Logger
}

// NewTokenManager binds a token manager to one session's credential pair.
func NewTokenManager(cfg shared.SpotifyConfig, tokenURL string, client *http.Client, sess *models.Session, logger *log.Logger) *TokenManager {
	if client == nil {
		client = http.DefaultClient
	}
	return &TokenManager{
		httpClient:   client,
		clientID:     cfg.ClientID,
		clientSecret: cfg.ClientSecret,
		tokenURL:     tokenURL,
		accessToken:  sess.AccessToken,
		refreshToken: sess.RefreshToken,
		logger:       logger,
	}
}

// SetRefreshCallback registers a callback invoked with the new pair after a
// successful refresh.
func (m *TokenManager) SetRefreshCallback(cb RefreshCallback) {
	m.onRefresh = cb
}

// Do performs an authenticated request, refreshing the access token once on a
// 401 response. The request body, when non-nil, is sent as application/json.
func (m *TokenManager) Do(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	resp, err := m.send(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode != http.StatusUnauthorized || m.refreshed {
		return resp, nil
	}

	m.refreshed = true
	pair, refreshErr := m.refresh(ctx)
	if refreshErr != nil {
		m.logger.Warn("token refresh failed, surfacing original 401", "url", rawURL, "error", refreshErr)
		return resp, nil
	}

	resp.Body.Close()
	m.accessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		m.refreshToken = pair.RefreshToken
	}
	if m.onRefresh != nil {
		m.onRefresh(pair)
	}

	m.logger.Debug("access token refreshed, retrying request", "url", rawURL)
	return m.send(ctx, method, rawURL, body)
}

// send performs one HTTP request with the current bearer token attached.
func (m *TokenManager) send(ctx context.Context, method, rawURL string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+m.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrUpstream, err)
	}

	return resp, nil
}

// tokenEndpointResponse is the provider's OAuth token endpoint payload.
type tokenEndpointResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// refresh exchanges the session's refresh token for a new access token.
func (m *TokenManager) refresh(ctx context.Context) (TokenPair, error) {
	if m.refreshToken == "" {
		return TokenPair{}, shared.ErrNoRefreshToken
	}

	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", m.refreshToken)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to create refresh request: %w", err)
	}

	req.SetBasicAuth(m.clientID, m.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return TokenPair{}, fmt.Errorf("%w: status %d: %s", shared.ErrRefreshFailed, resp.StatusCode, string(respBody))
	}

	var tr tokenEndpointResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return TokenPair{}, fmt.Errorf("%w: %v", shared.ErrRefreshFailed, err)
	}

	return TokenPair{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
		ExpiresAt:    time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second).UnixMilli(),
	}, nil
}
