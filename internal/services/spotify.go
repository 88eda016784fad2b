// Spotify API client for the recommendation service.
//
// Response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ketchalegend/vibeflow/internal/models"
	"github.com/ketchalegend/vibeflow/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// spotifyScopes covers profile, listening history, and playlist write access.
var spotifyScopes = []string{
	"user-read-email",
	"user-top-read",
	"user-read-recently-played",
	"user-read-private",
	"user-read-currently-playing",
	"user-library-read",
	"playlist-read-private",
	"playlist-read-collaborative",
	"playlist-modify-private",
	"playlist-modify-public",
	"user-follow-read",
}

type followers struct {
	Total int `json:"total"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Followers   followers      `json:"followers"`
	Images      []SpotifyImage `json:"images"`
}

// FollowerCount returns the profile's follower total.
func (u *SpotifyUser) FollowerCount() int {
	return u.Followers.Total
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type externalURLs struct {
	Spotify string `json:"spotify"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Genres     []string       `json:"genres"`
	Popularity int            `json:"popularity"`
	Images     []SpotifyImage `json:"images"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	ReleaseDate string          `json:"release_date"`
	Images      []SpotifyImage  `json:"images"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID           string          `json:"id"`
	Name         string          `json:"name"`
	Artists      []SpotifyArtist `json:"artists"`
	Album        SpotifyAlbum    `json:"album"`
	DurationMS   int64           `json:"duration_ms"`
	Popularity   int             `json:"popularity"`
	PreviewURL   string          `json:"preview_url"`
	ExternalURLs externalURLs    `json:"external_urls"`
}

// SpotifyShow represents a show (podcast) resource.
type SpotifyShow struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Publisher   string         `json:"publisher"`
	Description string         `json:"description"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyEpisode represents an episode resource in playback context.
type SpotifyEpisode struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Images     []SpotifyImage `json:"images"`
	PreviewURL string         `json:"audio_preview_url"`
	Show       SpotifyShow    `json:"show"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Public      bool           `json:"public"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyPlayedItem represents one entry of the play-history window.
type SpotifyPlayedItem struct {
	PlayedAt string        `json:"played_at"`
	Track    *SpotifyTrack `json:"track"`
}

// SpotifyNowPlaying is the currently-playing item decoded into an explicit
// track-or-episode variant at the client boundary. Exactly one of Track and
// Episode is set.
type SpotifyNowPlaying struct {
	Type    string
	Track   *SpotifyTrack
	Episode *SpotifyEpisode
}

// SpotifyService holds provider endpoints and app credentials. It is shared
// across requests; per-session clients are created with [SpotifyService.Session].
type SpotifyService struct {
	baseURL    string
	tokenURL   string
	config     shared.SpotifyConfig
	httpClient *http.Client
	logger     *log.Logger
}

// NewSpotifyService creates the Spotify service from app credentials.
func NewSpotifyService(cfg shared.SpotifyConfig, client *http.Client, logger *log.Logger) (*SpotifyService, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, fmt.Errorf("%w: spotify client_id and client_secret are required", shared.ErrMissingCredentials)
	}
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &SpotifyService{
		baseURL:    spotifyBaseURL,
		tokenURL:   spotifyTokenURL,
		config:     cfg,
		httpClient: client,
		logger:     logger,
	}, nil
}

// SetBaseURLs overrides the provider endpoints. Used by tests to point the
// client at a stub server.
func (s *SpotifyService) SetBaseURLs(base, token string) {
	s.baseURL = base
	s.tokenURL = token
}

// OAuthConfig returns the [oauth2.Config] for the authorization-code flow.
func (s *SpotifyService) OAuthConfig() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     s.config.ClientID,
		ClientSecret: s.config.ClientSecret,
		RedirectURL:  s.config.RedirectURI,
		Scopes:       spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: s.tokenURL,
		},
	}
}

// Session binds a provider client to one user session via a fresh token
// manager. The returned client is request-scoped.
func (s *SpotifyService) Session(sess *models.Session) *SpotifySession {
	tm := NewTokenManager(s.config, s.tokenURL, s.httpClient, sess, s.logger)
	return &SpotifySession{svc: s, tm: tm, logger: s.logger}
}

// SpotifySession implements [Provider] for one authenticated user.
type SpotifySession struct {
	svc    *SpotifyService
	tm     *TokenManager
	logger *log.Logger
}

// compile-time interface assertion
var _ Provider = (*SpotifySession)(nil)

// TokenManager exposes the session's token manager so the caller can register
// a refresh callback.
func (c *SpotifySession) TokenManager() *TokenManager {
	return c.tm
}

// get performs an authenticated GET against the provider and decodes the
// response into result.
func (c *SpotifySession) get(ctx context.Context, endpoint string, result any) error {
	return c.do(ctx, http.MethodGet, c.svc.baseURL+endpoint, nil, result)
}

// do performs an authenticated request against an absolute URL, mapping
// non-2xx statuses to the shared error taxonomy.
func (c *SpotifySession) do(ctx context.Context, method, rawURL string, body []byte, result any) error {
	resp, err := c.tm.Do(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		apiErr := &shared.UpstreamError{Endpoint: rawURL, Status: resp.StatusCode, Body: string(respBody)}
		c.logger.Error("spotify request failed", "url", rawURL, "status", resp.StatusCode)
		return apiErr
	}

	// 204: nothing to decode (e.g. no playback in progress)
	if resp.StatusCode == http.StatusNoContent || result == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// Profile retrieves the current authenticated user's profile.
func (c *SpotifySession) Profile(ctx context.Context) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := c.get(ctx, "/me", &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// TopArtists retrieves the user's top artists for the given time range.
func (c *SpotifySession) TopArtists(ctx context.Context, timeRange string, limit int) ([]SpotifyArtist, error) {
	endpoint := fmt.Sprintf("/me/top/artists?time_range=%s&limit=%d", url.QueryEscape(timeRange), limit)

	var response struct {
		Items []SpotifyArtist `json:"items"`
	}
	if err := c.get(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

// TopTracks retrieves the user's top tracks for the given time range.
func (c *SpotifySession) TopTracks(ctx context.Context, timeRange string, limit int) ([]SpotifyTrack, error) {
	endpoint := fmt.Sprintf("/me/top/tracks?time_range=%s&limit=%d", url.QueryEscape(timeRange), limit)

	var response struct {
		Items []SpotifyTrack `json:"items"`
	}
	if err := c.get(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

// RecentlyPlayed retrieves the user's most recent plays.
func (c *SpotifySession) RecentlyPlayed(ctx context.Context, limit int) ([]SpotifyPlayedItem, error) {
	endpoint := fmt.Sprintf("/me/player/recently-played?limit=%d", limit)

	var response struct {
		Items []SpotifyPlayedItem `json:"items"`
	}
	if err := c.get(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Items, nil
}

// nowPlayingEnvelope defers item decoding until the playing type is known.
type nowPlayingEnvelope struct {
	IsPlaying            bool            `json:"is_playing"`
	CurrentlyPlayingType string          `json:"currently_playing_type"`
	Item                 json.RawMessage `json:"item"`
}

// CurrentlyPlaying retrieves the item playing right now. The heterogeneous
// payload is decoded into an explicit track-or-episode variant here so
// downstream code never probes field presence. Returns nil when nothing is
// playing.
func (c *SpotifySession) CurrentlyPlaying(ctx context.Context) (*SpotifyNowPlaying, error) {
	var envelope nowPlayingEnvelope
	if err := c.get(ctx, "/me/player/currently-playing", &envelope); err != nil {
		return nil, err
	}

	if len(envelope.Item) == 0 || string(envelope.Item) == "null" {
		return nil, nil
	}

	switch envelope.CurrentlyPlayingType {
	case "episode":
		var episode SpotifyEpisode
		if err := json.Unmarshal(envelope.Item, &episode); err != nil {
			return nil, fmt.Errorf("failed to decode episode: %w", err)
		}
		return &SpotifyNowPlaying{Type: "episode", Episode: &episode}, nil
	default:
		var track SpotifyTrack
		if err := json.Unmarshal(envelope.Item, &track); err != nil {
			return nil, fmt.Errorf("failed to decode track: %w", err)
		}
		return &SpotifyNowPlaying{Type: "track", Track: &track}, nil
	}
}

// AudioFeatures retrieves per-track audio feature objects (up to 100 ids).
// Feature objects are returned as generic maps so the aggregation layer can
// average whichever numeric keys are present.
func (c *SpotifySession) AudioFeatures(ctx context.Context, trackIDs []string) ([]map[string]any, error) {
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("%w: no track IDs provided", shared.ErrMissingArgument)
	}

	endpoint := "/audio-features?ids=" + url.QueryEscape(strings.Join(trackIDs, ","))

	var response struct {
		AudioFeatures []map[string]any `json:"audio_features"`
	}
	if err := c.get(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	// Unknown ids come back as null entries
	features := make([]map[string]any, 0, len(response.AudioFeatures))
	for _, f := range response.AudioFeatures {
		if f != nil {
			features = append(features, f)
		}
	}
	return features, nil
}

// Recommendations retrieves provider recommendations seeded by artist and
// track ids.
func (c *SpotifySession) Recommendations(ctx context.Context, seedArtists, seedTracks []string, limit int) ([]SpotifyTrack, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	if len(seedArtists) > 0 {
		params.Set("seed_artists", strings.Join(seedArtists, ","))
	}
	if len(seedTracks) > 0 {
		params.Set("seed_tracks", strings.Join(seedTracks, ","))
	}

	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	if err := c.get(ctx, "/recommendations?"+params.Encode(), &response); err != nil {
		return nil, err
	}
	return response.Tracks, nil
}

// FollowedArtistsTotal retrieves how many artists the user follows.
func (c *SpotifySession) FollowedArtistsTotal(ctx context.Context) (int, error) {
	var response struct {
		Artists struct {
			Total int `json:"total"`
		} `json:"artists"`
	}
	if err := c.get(ctx, "/me/following?type=artist&limit=1", &response); err != nil {
		return 0, err
	}
	return response.Artists.Total, nil
}

// FeaturedPlaylists retrieves the provider's featured playlists.
func (c *SpotifySession) FeaturedPlaylists(ctx context.Context, limit int) ([]SpotifyPlaylist, error) {
	endpoint := fmt.Sprintf("/browse/featured-playlists?limit=%d", limit)

	var response struct {
		Playlists struct {
			Items []SpotifyPlaylist `json:"items"`
		} `json:"playlists"`
	}
	if err := c.get(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Playlists.Items, nil
}

// SavedShows retrieves the user's saved shows.
func (c *SpotifySession) SavedShows(ctx context.Context, limit int) ([]SpotifyShow, error) {
	endpoint := fmt.Sprintf("/me/shows?limit=%d", limit)

	var response struct {
		Items []struct {
			Show SpotifyShow `json:"show"`
		} `json:"items"`
	}
	if err := c.get(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	shows := make([]SpotifyShow, 0, len(response.Items))
	for _, item := range response.Items {
		shows = append(shows, item.Show)
	}
	return shows, nil
}

// NewReleases retrieves newly released albums.
func (c *SpotifySession) NewReleases(ctx context.Context, limit int) ([]SpotifyAlbum, error) {
	endpoint := fmt.Sprintf("/browse/new-releases?limit=%d", limit)

	var response struct {
		Albums struct {
			Items []SpotifyAlbum `json:"items"`
		} `json:"albums"`
	}
	if err := c.get(ctx, endpoint, &response); err != nil {
		return nil, err
	}
	return response.Albums.Items, nil
}

// ArtistTopTracks retrieves an artist's own top tracks.
func (c *SpotifySession) ArtistTopTracks(ctx context.Context, artistID string) ([]SpotifyTrack, error) {
	if artistID == "" {
		return nil, fmt.Errorf("%w: artist ID is required", shared.ErrMissingArgument)
	}

	var response struct {
		Tracks []SpotifyTrack `json:"tracks"`
	}
	if err := c.get(ctx, "/artists/"+url.PathEscape(artistID)+"/top-tracks", &response); err != nil {
		return nil, err
	}
	return response.Tracks, nil
}

// SearchTracks performs a track search.
func (c *SpotifySession) SearchTracks(ctx context.Context, query string, limit int) ([]SpotifyTrack, error) {
	if query == "" {
		return nil, fmt.Errorf("%w: search query is required", shared.ErrMissingArgument)
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", strconv.Itoa(limit))

	var response struct {
		Tracks struct {
			Items []SpotifyTrack `json:"items"`
		} `json:"tracks"`
	}
	if err := c.get(ctx, "/search?"+params.Encode(), &response); err != nil {
		return nil, err
	}
	return response.Tracks.Items, nil
}

// createPlaylistRequest is the playlist-creation payload.
type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
}

// CreatePlaylist creates a playlist owned by the given user.
func (c *SpotifySession) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*SpotifyPlaylist, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user ID is required", shared.ErrMissingArgument)
	}

	body, err := json.Marshal(createPlaylistRequest{Name: name, Description: description, Public: public})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	var playlist SpotifyPlaylist
	endpoint := c.svc.baseURL + "/users/" + url.PathEscape(userID) + "/playlists"
	if err := c.do(ctx, http.MethodPost, endpoint, body, &playlist); err != nil {
		return nil, err
	}
	return &playlist, nil
}

// AddTracksToPlaylist appends track URIs to a playlist.
func (c *SpotifySession) AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string) error {
	if playlistID == "" {
		return fmt.Errorf("%w: playlist ID is required", shared.ErrMissingArgument)
	}
	if len(uris) == 0 {
		return fmt.Errorf("%w: no track URIs provided", shared.ErrMissingArgument)
	}

	body, err := json.Marshal(map[string][]string{"uris": uris})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.svc.baseURL + "/playlists/" + url.PathEscape(playlistID) + "/tracks"
	return c.do(ctx, http.MethodPost, endpoint, body, nil)
}

// playlistPage is one page of the user's playlists.
type playlistPage struct {
	Items []struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"items"`
	Next *string `json:"next"`
}

// Playlists retrieves every playlist of the user, following the provider's
// next links until exhausted. The page count is unbounded; results are never
// silently truncated.
func (c *SpotifySession) Playlists(ctx context.Context) ([]models.Playlist, error) {
	var all []models.Playlist
	nextURL := c.svc.baseURL + "/me/playlists?limit=50"

	for nextURL != "" {
		var page playlistPage
		if err := c.do(ctx, http.MethodGet, nextURL, nil, &page); err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			all = append(all, models.Playlist{ID: item.ID, Name: item.Name})
		}

		if page.Next == nil {
			break
		}
		nextURL = *page.Next
	}

	return all, nil
}
