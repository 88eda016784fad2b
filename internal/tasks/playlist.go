package tasks

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/ketchalegend/vibeflow/internal/services"
	"github.com/ketchalegend/vibeflow/internal/shared"
)

// Playlist defaults used when no target playlist is named.
const (
	defaultPlaylistName        = "VibeFlow Playlist"
	defaultPlaylistDescription = "Created by VibeFlow (@ketchalegend)"
)

// AddTracksResult reports where the tracks landed.
type AddTracksResult struct {
	PlaylistID string `json:"playlistId"`
	Added      int    `json:"added"`
	Created    bool   `json:"created"`
}

// PlaylistEngine writes suggested tracks into the user's playlist.
type PlaylistEngine struct {
	logger *log.Logger
}

// NewPlaylistEngine creates a playlist engine.
func NewPlaylistEngine(logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlaylistEngine{logger: logger}
}

// AddTracks appends the given track ids to the playlist. When playlistID is
// empty a private playlist with the service defaults is created first and its
// id returned, so the caller can reuse it on subsequent requests.
func (e *PlaylistEngine) AddTracks(ctx context.Context, provider services.Provider, playlistID string, trackIDs []string) (*AddTracksResult, error) {
	if len(trackIDs) == 0 {
		return nil, fmt.Errorf("%w: no track IDs provided", shared.ErrInvalidInput)
	}

	created := false
	if playlistID == "" {
		profile, err := provider.Profile(ctx)
		if err != nil {
			return nil, err
		}

		playlist, err := provider.CreatePlaylist(ctx, profile.ID, defaultPlaylistName, defaultPlaylistDescription, false)
		if err != nil {
			return nil, err
		}

		playlistID = playlist.ID
		created = true
		e.logger.Info("playlist created", "playlistId", playlistID, "user", profile.ID)
	}

	uris := make([]string, 0, len(trackIDs))
	for _, id := range trackIDs {
		uris = append(uris, "spotify:track:"+id)
	}

	if err := provider.AddTracksToPlaylist(ctx, playlistID, uris); err != nil {
		return nil, err
	}

	e.logger.Debug("tracks added", "playlistId", playlistID, "count", len(uris))
	return &AddTracksResult{PlaylistID: playlistID, Added: len(uris), Created: created}, nil
}
