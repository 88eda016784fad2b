package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ketchalegend/vibeflow/internal/models"
	"github.com/ketchalegend/vibeflow/internal/services"
	"github.com/ketchalegend/vibeflow/internal/shared"
	"github.com/ketchalegend/vibeflow/internal/tasks"
	"golang.org/x/time/rate"
)

// API holds the service endpoints' collaborators.
type API struct {
	spotify  *services.SpotifyService
	sessions *SessionStore
	stats    *tasks.StatsEngine
	suggest  *tasks.SuggestEngine
	playlist *tasks.PlaylistEngine
	cache    *tasks.StatsCache
	logger   *log.Logger
}

// NewAPI creates the API handler set.
func NewAPI(
	spotify *services.SpotifyService,
	sessions *SessionStore,
	stats *tasks.StatsEngine,
	suggest *tasks.SuggestEngine,
	playlist *tasks.PlaylistEngine,
	cache *tasks.StatsCache,
	logger *log.Logger,
) *API {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &API{
		spotify:  spotify,
		sessions: sessions,
		stats:    stats,
		suggest:  suggest,
		playlist: playlist,
		cache:    cache,
		logger:   logger,
	}
}

// BuildRouter assembles the service router: logging, rate limiting, and
// timeouts wrap everything; the API endpoints additionally require a session.
func BuildRouter(api *API, cfg shared.ServerConfig) *BasicRouter {
	router := NewBasicRouter()
	router.Use(
		RequestLogger(api.logger),
		RateLimit(rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst), api.logger),
		Timeout(time.Duration(cfg.RequestTimeoutSec)*time.Second),
	)

	router.Handle("GET", "/health", http.HandlerFunc(api.Health))
	router.Handler(NewAuthHandler(api.spotify, api.sessions, api.logger))

	authed := RequireSession(api.sessions, api.logger)
	router.Handle("GET", "/stats", authed(http.HandlerFunc(api.Stats)))
	router.Handle("POST", "/suggest", authed(http.HandlerFunc(api.Suggest)))
	router.Handle("GET", "/playlists", authed(http.HandlerFunc(api.Playlists)))
	router.Handle("POST", "/playlist/tracks", authed(http.HandlerFunc(api.PlaylistTracks)))

	return router
}

// provider binds a provider client to the request's session, wiring the
// refresh callback so a mid-request token refresh lands back in the store.
func (a *API) provider(sess *models.Session) services.Provider {
	client := a.spotify.Session(sess)
	client.TokenManager().SetRefreshCallback(func(pair services.TokenPair) {
		a.sessions.UpdateTokens(sess.ID, pair)
	})
	return client
}

// Health reports service liveness.
func (a *API) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Stats serves the aggregated listening profile for the session user.
// Snapshots are cached per (user, time range); concurrent misses share one
// build.
func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())
	timeRange := models.NormalizeTimeRange(r.URL.Query().Get("timeRange"))

	bundle, err := a.cache.Get(sess.User.Email, timeRange, func() (*models.StatsBundle, error) {
		return a.stats.Build(r.Context(), a.provider(sess), timeRange)
	})
	if err != nil {
		WriteError(w, LoggerFrom(r.Context(), a.logger), err)
		return
	}

	WriteJSON(w, http.StatusOK, bundle)
}

// Suggest produces up to three track suggestions from situational input.
func (a *API) Suggest(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())

	var input models.SuggestionInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		WriteError(w, LoggerFrom(r.Context(), a.logger), fmt.Errorf("%w: invalid request body", shared.ErrInvalidInput))
		return
	}

	suggestions, err := a.suggest.Suggest(r.Context(), a.provider(sess), sess.User.Email, input)
	if err != nil {
		WriteError(w, LoggerFrom(r.Context(), a.logger), err)
		return
	}

	WriteJSON(w, http.StatusOK, map[string][]models.Suggestion{"suggestions": suggestions})
}

// Playlists lists every playlist of the session user.
func (a *API) Playlists(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())

	playlists, err := a.provider(sess).Playlists(r.Context())
	if err != nil {
		WriteError(w, LoggerFrom(r.Context(), a.logger), err)
		return
	}
	if playlists == nil {
		playlists = []models.Playlist{}
	}

	WriteJSON(w, http.StatusOK, map[string][]models.Playlist{"playlists": playlists})
}

// playlistTracksRequest is the playlist-write request body.
type playlistTracksRequest struct {
	PlaylistID string   `json:"playlistId"`
	TrackIDs   []string `json:"trackIds"`
}

// PlaylistTracks adds tracks to a playlist, creating the service's default
// playlist when none is named.
func (a *API) PlaylistTracks(w http.ResponseWriter, r *http.Request) {
	sess := SessionFrom(r.Context())

	var req playlistTracksRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, LoggerFrom(r.Context(), a.logger), fmt.Errorf("%w: invalid request body", shared.ErrInvalidInput))
		return
	}

	result, err := a.playlist.AddTracks(r.Context(), a.provider(sess), req.PlaylistID, req.TrackIDs)
	if err != nil {
		WriteError(w, LoggerFrom(r.Context(), a.logger), err)
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
