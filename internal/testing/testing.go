// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/ketchalegend/vibeflow/internal/models"
	"github.com/ketchalegend/vibeflow/internal/services"
	"github.com/ketchalegend/vibeflow/internal/shared"
)

// MockProvider is a configurable test double for [services.Provider]. Only
// the fields a test sets matter; unset call counters stay at zero.
type MockProvider struct {
	mu    sync.Mutex
	Calls map[string]int

	ProfileFn          func(ctx context.Context) (*services.SpotifyUser, error)
	TopArtistsFn       func(ctx context.Context, timeRange string, limit int) ([]services.SpotifyArtist, error)
	TopTracksFn        func(ctx context.Context, timeRange string, limit int) ([]services.SpotifyTrack, error)
	RecentlyPlayedFn   func(ctx context.Context, limit int) ([]services.SpotifyPlayedItem, error)
	CurrentlyPlayingFn func(ctx context.Context) (*services.SpotifyNowPlaying, error)
	AudioFeaturesFn    func(ctx context.Context, trackIDs []string) ([]map[string]any, error)
	RecommendationsFn  func(ctx context.Context, seedArtists, seedTracks []string, limit int) ([]services.SpotifyTrack, error)
	FollowedTotalFn    func(ctx context.Context) (int, error)
	FeaturedFn         func(ctx context.Context, limit int) ([]services.SpotifyPlaylist, error)
	SavedShowsFn       func(ctx context.Context, limit int) ([]services.SpotifyShow, error)
	NewReleasesFn      func(ctx context.Context, limit int) ([]services.SpotifyAlbum, error)
	ArtistTopTracksFn  func(ctx context.Context, artistID string) ([]services.SpotifyTrack, error)
	SearchTracksFn     func(ctx context.Context, query string, limit int) ([]services.SpotifyTrack, error)
	CreatePlaylistFn   func(ctx context.Context, userID, name, description string, public bool) (*services.SpotifyPlaylist, error)
	AddTracksFn        func(ctx context.Context, playlistID string, uris []string) error
	PlaylistsFn        func(ctx context.Context) ([]models.Playlist, error)
}

func (m *MockProvider) record(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Calls == nil {
		m.Calls = make(map[string]int)
	}
	m.Calls[name]++
}

// CallCount returns how many times the named method was invoked.
func (m *MockProvider) CallCount(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[name]
}

func (m *MockProvider) Profile(ctx context.Context) (*services.SpotifyUser, error) {
	m.record("Profile")
	if m.ProfileFn != nil {
		return m.ProfileFn(ctx)
	}
	return &services.SpotifyUser{ID: "mock-user", Email: "mock@example.com"}, nil
}

func (m *MockProvider) TopArtists(ctx context.Context, timeRange string, limit int) ([]services.SpotifyArtist, error) {
	m.record("TopArtists")
	if m.TopArtistsFn != nil {
		return m.TopArtistsFn(ctx, timeRange, limit)
	}
	return []services.SpotifyArtist{}, nil
}

func (m *MockProvider) TopTracks(ctx context.Context, timeRange string, limit int) ([]services.SpotifyTrack, error) {
	m.record("TopTracks")
	if m.TopTracksFn != nil {
		return m.TopTracksFn(ctx, timeRange, limit)
	}
	return []services.SpotifyTrack{}, nil
}

func (m *MockProvider) RecentlyPlayed(ctx context.Context, limit int) ([]services.SpotifyPlayedItem, error) {
	m.record("RecentlyPlayed")
	if m.RecentlyPlayedFn != nil {
		return m.RecentlyPlayedFn(ctx, limit)
	}
	return []services.SpotifyPlayedItem{}, nil
}

func (m *MockProvider) CurrentlyPlaying(ctx context.Context) (*services.SpotifyNowPlaying, error) {
	m.record("CurrentlyPlaying")
	if m.CurrentlyPlayingFn != nil {
		return m.CurrentlyPlayingFn(ctx)
	}
	return nil, nil
}

func (m *MockProvider) AudioFeatures(ctx context.Context, trackIDs []string) ([]map[string]any, error) {
	m.record("AudioFeatures")
	if m.AudioFeaturesFn != nil {
		return m.AudioFeaturesFn(ctx, trackIDs)
	}
	return []map[string]any{}, nil
}

func (m *MockProvider) Recommendations(ctx context.Context, seedArtists, seedTracks []string, limit int) ([]services.SpotifyTrack, error) {
	m.record("Recommendations")
	if m.RecommendationsFn != nil {
		return m.RecommendationsFn(ctx, seedArtists, seedTracks, limit)
	}
	return []services.SpotifyTrack{}, nil
}

func (m *MockProvider) FollowedArtistsTotal(ctx context.Context) (int, error) {
	m.record("FollowedArtistsTotal")
	if m.FollowedTotalFn != nil {
		return m.FollowedTotalFn(ctx)
	}
	return 0, nil
}

func (m *MockProvider) FeaturedPlaylists(ctx context.Context, limit int) ([]services.SpotifyPlaylist, error) {
	m.record("FeaturedPlaylists")
	if m.FeaturedFn != nil {
		return m.FeaturedFn(ctx, limit)
	}
	return []services.SpotifyPlaylist{}, nil
}

func (m *MockProvider) SavedShows(ctx context.Context, limit int) ([]services.SpotifyShow, error) {
	m.record("SavedShows")
	if m.SavedShowsFn != nil {
		return m.SavedShowsFn(ctx, limit)
	}
	return []services.SpotifyShow{}, nil
}

func (m *MockProvider) NewReleases(ctx context.Context, limit int) ([]services.SpotifyAlbum, error) {
	m.record("NewReleases")
	if m.NewReleasesFn != nil {
		return m.NewReleasesFn(ctx, limit)
	}
	return []services.SpotifyAlbum{}, nil
}

func (m *MockProvider) ArtistTopTracks(ctx context.Context, artistID string) ([]services.SpotifyTrack, error) {
	m.record("ArtistTopTracks")
	if m.ArtistTopTracksFn != nil {
		return m.ArtistTopTracksFn(ctx, artistID)
	}
	return []services.SpotifyTrack{}, nil
}

func (m *MockProvider) SearchTracks(ctx context.Context, query string, limit int) ([]services.SpotifyTrack, error) {
	m.record("SearchTracks")
	if m.SearchTracksFn != nil {
		return m.SearchTracksFn(ctx, query, limit)
	}
	return []services.SpotifyTrack{}, nil
}

func (m *MockProvider) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*services.SpotifyPlaylist, error) {
	m.record("CreatePlaylist")
	if m.CreatePlaylistFn != nil {
		return m.CreatePlaylistFn(ctx, userID, name, description, public)
	}
	return &services.SpotifyPlaylist{ID: "mock-playlist"}, nil
}

func (m *MockProvider) AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string) error {
	m.record("AddTracksToPlaylist")
	if m.AddTracksFn != nil {
		return m.AddTracksFn(ctx, playlistID, uris)
	}
	return nil
}

func (m *MockProvider) Playlists(ctx context.Context) ([]models.Playlist, error) {
	m.record("Playlists")
	if m.PlaylistsFn != nil {
		return m.PlaylistsFn(ctx)
	}
	return []models.Playlist{}, nil
}

// MockCompleter is a test double for [services.Completer].
type MockCompleter struct {
	Decision services.SearchDecision
	Err      error
	Prompts  []string
}

func (m *MockCompleter) DecideSearch(ctx context.Context, systemPrompt, userPrompt string) (services.SearchDecision, error) {
	m.Prompts = append(m.Prompts, userPrompt)
	return m.Decision, m.Err
}

// MemorySeenStore is an in-memory suggestion-history double.
type MemorySeenStore struct {
	mu        sync.Mutex
	seen      map[string]map[string]bool
	Recorded  []models.Suggestion
	SeenErr   error
	RecordErr error
}

func NewMemorySeenStore() *MemorySeenStore {
	return &MemorySeenStore{seen: make(map[string]map[string]bool)}
}

// MarkSeen preloads suggestion history for a user.
func (s *MemorySeenStore) MarkSeen(email string, trackIDs ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[email] == nil {
		s.seen[email] = make(map[string]bool)
	}
	for _, id := range trackIDs {
		s.seen[email][id] = true
	}
}

func (s *MemorySeenStore) Seen(email string, trackIDs []string) (map[string]bool, error) {
	if s.SeenErr != nil {
		return nil, s.SeenErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make(map[string]bool)
	for _, id := range trackIDs {
		if s.seen[email][id] {
			result[id] = true
		}
	}
	return result, nil
}

func (s *MemorySeenStore) Record(email string, suggestions []models.Suggestion) error {
	if s.RecordErr != nil {
		return s.RecordErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seen[email] == nil {
		s.seen[email] = make(map[string]bool)
	}
	for _, sg := range suggestions {
		s.seen[email][sg.TrackID] = true
		s.Recorded = append(s.Recorded, sg)
	}
	return nil
}

// RoundTripFunc adapts a function into an [http.RoundTripper] so tests can
// script per-request HTTP responses.
type RoundTripFunc func(req *http.Request) (*http.Response, error)

func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// ErrRoundTrip is returned by FailingRoundTripper.
var ErrRoundTrip = errors.New("round trip failed")

// FailingRoundTripper always fails, simulating a network error.
type FailingRoundTripper struct{}

func (FailingRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, ErrRoundTrip
}

// NewTestSession returns a session populated with the fields handlers and
// token managers require.
func NewTestSession() *models.Session {
	return &models.Session{
		ID:           shared.GenerateID(),
		AccessToken:  "access-token",
		RefreshToken: "refresh-token",
		User:         models.SessionUser{Name: "Test User", Email: "test@example.com"},
	}
}

// MustMigratedDB opens an in-memory database with migrations applied. The
// connection is closed when the test finishes.
func MustMigratedDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}
