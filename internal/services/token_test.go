package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ketchalegend/vibeflow/internal/models"
	"github.com/ketchalegend/vibeflow/internal/shared"
)

func testSession() *models.Session {
	return &models.Session{
		AccessToken:  "old-token",
		RefreshToken: "refresh-token",
		User:         models.SessionUser{Name: "Test User", Email: "test@example.com"},
	}
}

func testCredentials() shared.SpotifyConfig {
	return shared.SpotifyConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURI:  "http://localhost:8080/callback",
	}
}

func TestTokenManager_Do(t *testing.T) {
	t.Run("refreshes once on 401 and retries", func(t *testing.T) {
		apiCalls := 0
		var seenTokens []string
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiCalls++
			seenTokens = append(seenTokens, r.Header.Get("Authorization"))
			if apiCalls == 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			w.WriteHeader(http.StatusOK)
			fmt.Fprint(w, `{"ok":true}`)
		}))
		defer api.Close()

		tokenCalls := 0
		tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenCalls++
			if err := r.ParseForm(); err != nil {
				t.Fatalf("Failed to parse form: %v", err)
			}
			if got := r.Form.Get("grant_type"); got != "refresh_token" {
				t.Errorf("grant_type = %q, want refresh_token", got)
			}
			if got := r.Form.Get("refresh_token"); got != "refresh-token" {
				t.Errorf("refresh_token = %q, want refresh-token", got)
			}
			user, pass, ok := r.BasicAuth()
			if !ok || user != "client-id" || pass != "client-secret" {
				t.Errorf("basic auth = %q/%q, want client credentials", user, pass)
			}
			json.NewEncoder(w).Encode(map[string]any{
				"access_token": "new-token",
				"expires_in":   3600,
			})
		}))
		defer tokenServer.Close()

		tm := NewTokenManager(testCredentials(), tokenServer.URL, api.Client(), testSession(), shared.NewLogger(io.Discard))

		var callbackPair TokenPair
		tm.SetRefreshCallback(func(pair TokenPair) { callbackPair = pair })

		resp, err := tm.Do(context.Background(), http.MethodGet, api.URL+"/me", nil)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			t.Errorf("status = %d, want 200", resp.StatusCode)
		}
		if apiCalls != 2 {
			t.Errorf("API calls = %d, want 2", apiCalls)
		}
		if tokenCalls != 1 {
			t.Errorf("token endpoint calls = %d, want 1", tokenCalls)
		}
		if seenTokens[0] != "Bearer old-token" || seenTokens[1] != "Bearer new-token" {
			t.Errorf("tokens = %v, want old then new", seenTokens)
		}
		if callbackPair.AccessToken != "new-token" {
			t.Errorf("callback access token = %q, want new-token", callbackPair.AccessToken)
		}
		if callbackPair.ExpiresAt == 0 {
			t.Error("callback expiry not set")
		}
	})

	t.Run("returns original 401 when refresh fails", func(t *testing.T) {
		apiCalls := 0
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiCalls++
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer api.Close()

		tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"error":"invalid_grant"}`)
		}))
		defer tokenServer.Close()

		tm := NewTokenManager(testCredentials(), tokenServer.URL, api.Client(), testSession(), shared.NewLogger(io.Discard))

		callbackFired := false
		tm.SetRefreshCallback(func(TokenPair) { callbackFired = true })

		resp, err := tm.Do(context.Background(), http.MethodGet, api.URL+"/me", nil)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
		if apiCalls != 1 {
			t.Errorf("API calls = %d, want 1 (no retry without new token)", apiCalls)
		}
		if callbackFired {
			t.Error("callback fired despite failed refresh")
		}
	})

	t.Run("refreshes at most once per manager", func(t *testing.T) {
		apiCalls := 0
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiCalls++
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer api.Close()

		tokenCalls := 0
		tokenServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenCalls++
			json.NewEncoder(w).Encode(map[string]any{"access_token": "new-token", "expires_in": 3600})
		}))
		defer tokenServer.Close()

		tm := NewTokenManager(testCredentials(), tokenServer.URL, api.Client(), testSession(), shared.NewLogger(io.Discard))

		for i := 0; i < 2; i++ {
			resp, err := tm.Do(context.Background(), http.MethodGet, api.URL+"/me", nil)
			if err != nil {
				t.Fatalf("Do failed: %v", err)
			}
			resp.Body.Close()
		}

		if tokenCalls != 1 {
			t.Errorf("token endpoint calls = %d, want 1", tokenCalls)
		}
	})

	t.Run("missing refresh token surfaces original 401", func(t *testing.T) {
		api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		defer api.Close()

		sess := testSession()
		sess.RefreshToken = ""
		tm := NewTokenManager(testCredentials(), "http://invalid.test/token", api.Client(), sess, shared.NewLogger(io.Discard))

		resp, err := tm.Do(context.Background(), http.MethodGet, api.URL+"/me", nil)
		if err != nil {
			t.Fatalf("Do failed: %v", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", resp.StatusCode)
		}
	})
}
