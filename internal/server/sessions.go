package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ketchalegend/vibeflow/internal/models"
	"github.com/ketchalegend/vibeflow/internal/services"
	"github.com/ketchalegend/vibeflow/internal/shared"
)

// SessionCookie is the name of the opaque session cookie.
const SessionCookie = "vibeflow_session"

// stateTTL bounds how long an issued OAuth state stays redeemable.
const stateTTL = 10 * time.Minute

type sessionKey struct{}

// SessionFrom returns the session attached to the request context by
// [RequireSession], or nil.
func SessionFrom(ctx context.Context) *models.Session {
	sess, _ := ctx.Value(sessionKey{}).(*models.Session)
	return sess
}

// withSession attaches a session to the context.
func withSession(ctx context.Context, sess *models.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionStore holds authenticated sessions in memory, keyed by the opaque
// cookie value. Safe for concurrent use.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*models.Session
}

// NewSessionStore creates an empty session store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*models.Session)}
}

// Create stores a session under a fresh id and returns the id.
func (s *SessionStore) Create(sess *models.Session) string {
	id := shared.GenerateID()
	sess.ID = id

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = sess
	return id
}

// Get returns the session for the id, or nil.
func (s *SessionStore) Get(id string) *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// UpdateTokens persists a refreshed credential pair onto the stored session.
// An empty refresh token in the pair keeps the existing one, matching the
// provider's token endpoint behavior.
func (s *SessionStore) UpdateTokens(id string, pair services.TokenPair) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return
	}
	sess.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		sess.RefreshToken = pair.RefreshToken
	}
	sess.AccessTokenExpires = pair.ExpiresAt
}

// Delete removes the session for the id.
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
}

// AuthHandler implements the OAuth2 authorization-code flow for the web
// service: /login redirects to the provider's consent page, /callback
// exchanges the code, fetches the user's profile, and establishes a session.
type AuthHandler struct {
	spotify  *services.SpotifyService
	sessions *SessionStore
	logger   *log.Logger

	mu     sync.Mutex
	states map[string]time.Time
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(spotify *services.SpotifyService, sessions *SessionStore, logger *log.Logger) *AuthHandler {
	return &AuthHandler{
		spotify:  spotify,
		sessions: sessions,
		logger:   logger,
		states:   make(map[string]time.Time),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *AuthHandler) Routes() []string {
	return []string{"/login", "/callback"}
}

// ServeHTTP dispatches between the login redirect and the callback exchange.
func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/login":
		h.login(w, r)
	case "/callback":
		h.callback(w, r)
	default:
		http.NotFound(w, r)
	}
}

// login issues a CSRF state token and redirects to the provider's consent page.
func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()

	h.mu.Lock()
	h.states[state] = time.Now().Add(stateTTL)
	h.mu.Unlock()

	http.Redirect(w, r, h.spotify.OAuthConfig().AuthCodeURL(state), http.StatusFound)
}

// redeemState consumes a state token, reporting whether it was valid. Expired
// entries are swept opportunistically.
func (h *AuthHandler) redeemState(state string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := time.Now()
	for s, expiry := range h.states {
		if now.After(expiry) {
			delete(h.states, s)
		}
	}

	expiry, ok := h.states[state]
	if !ok || now.After(expiry) {
		return false
	}
	delete(h.states, state)
	return true
}

// callback validates the state parameter, exchanges the authorization code
// for tokens, and establishes the session.
func (h *AuthHandler) callback(w http.ResponseWriter, r *http.Request) {
	if !h.redeemState(r.URL.Query().Get("state")) {
		WriteError(w, LoggerFrom(r.Context(), h.logger), fmt.Errorf("%w: invalid state parameter", shared.ErrInvalidInput))
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		errParam := r.URL.Query().Get("error")
		WriteError(w, LoggerFrom(r.Context(), h.logger), fmt.Errorf("%w: authorization failed: %s", shared.ErrInvalidInput, errParam))
		return
	}

	token, err := h.spotify.OAuthConfig().Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("token exchange failed", "error", err)
		WriteError(w, LoggerFrom(r.Context(), h.logger), fmt.Errorf("%w: token exchange failed", shared.ErrUpstream))
		return
	}

	sess := &models.Session{
		AccessToken:        token.AccessToken,
		RefreshToken:       token.RefreshToken,
		AccessTokenExpires: token.Expiry.UnixMilli(),
	}

	profile, err := h.spotify.Session(sess).Profile(r.Context())
	if err != nil {
		WriteError(w, LoggerFrom(r.Context(), h.logger), err)
		return
	}
	sess.User = models.SessionUser{Name: profile.DisplayName, Email: profile.Email}

	id := h.sessions.Create(sess)
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.logger.Info("session established", "email", sess.User.Email)
	WriteJSON(w, http.StatusOK, map[string]any{"user": sess.User})
}
