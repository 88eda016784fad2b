package services

import (
	"context"

	"github.com/ketchalegend/vibeflow/internal/models"
)

// Provider defines the typed calls the orchestration layer makes against the
// music streaming provider. Implementations are bound to one user session;
// every method inherits the token manager's refresh-once-on-401 behavior.
type Provider interface {
	// Profile retrieves the authenticated user's profile.
	Profile(ctx context.Context) (*SpotifyUser, error)

	// TopArtists retrieves the user's top artists for a time range.
	TopArtists(ctx context.Context, timeRange string, limit int) ([]SpotifyArtist, error)

	// TopTracks retrieves the user's top tracks for a time range.
	TopTracks(ctx context.Context, timeRange string, limit int) ([]SpotifyTrack, error)

	// RecentlyPlayed retrieves the user's play history window.
	RecentlyPlayed(ctx context.Context, limit int) ([]SpotifyPlayedItem, error)

	// CurrentlyPlaying retrieves the item playing right now, or nil when
	// nothing is playing.
	CurrentlyPlaying(ctx context.Context) (*SpotifyNowPlaying, error)

	// AudioFeatures retrieves per-track audio feature objects for the given ids.
	AudioFeatures(ctx context.Context, trackIDs []string) ([]map[string]any, error)

	// Recommendations retrieves provider recommendations seeded by artists and tracks.
	Recommendations(ctx context.Context, seedArtists, seedTracks []string, limit int) ([]SpotifyTrack, error)

	// FollowedArtistsTotal retrieves the number of artists the user follows.
	FollowedArtistsTotal(ctx context.Context) (int, error)

	// FeaturedPlaylists retrieves the provider's featured playlists.
	FeaturedPlaylists(ctx context.Context, limit int) ([]SpotifyPlaylist, error)

	// SavedShows retrieves the user's saved shows.
	SavedShows(ctx context.Context, limit int) ([]SpotifyShow, error)

	// NewReleases retrieves newly released albums.
	NewReleases(ctx context.Context, limit int) ([]SpotifyAlbum, error)

	// ArtistTopTracks retrieves an artist's own top tracks.
	ArtistTopTracks(ctx context.Context, artistID string) ([]SpotifyTrack, error)

	// SearchTracks performs a track search.
	SearchTracks(ctx context.Context, query string, limit int) ([]SpotifyTrack, error)

	// CreatePlaylist creates a playlist owned by the given user.
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (*SpotifyPlaylist, error)

	// AddTracksToPlaylist appends track URIs to a playlist.
	AddTracksToPlaylist(ctx context.Context, playlistID string, uris []string) error

	// Playlists retrieves every playlist of the user, following the
	// provider's next links until exhausted. Never truncates.
	Playlists(ctx context.Context) ([]models.Playlist, error)
}

// SearchDecision is the structured outcome of one completion call: either the
// model elected to search the provider with Query, or it declined.
type SearchDecision struct {
	Call  bool
	Query string
}

// Completer defines the single interaction with the completion service.
type Completer interface {
	// DecideSearch asks the model for a search decision constrained to the
	// declared search_spotify_tracks function. One request/response cycle,
	// no retries.
	DecideSearch(ctx context.Context, systemPrompt, userPrompt string) (SearchDecision, error)
}
