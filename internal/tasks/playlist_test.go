package tasks

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/ketchalegend/vibeflow/internal/services"
	"github.com/ketchalegend/vibeflow/internal/shared"
	tu "github.com/ketchalegend/vibeflow/internal/testing"
)

func TestPlaylistEngine_AddTracks(t *testing.T) {
	engine := NewPlaylistEngine(shared.NewLogger(io.Discard))

	t.Run("rejects empty track list", func(t *testing.T) {
		provider := &tu.MockProvider{}

		_, err := engine.AddTracks(context.Background(), provider, "pl1", nil)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("error = %v, want ErrInvalidInput", err)
		}
		if provider.CallCount("AddTracksToPlaylist") != 0 {
			t.Error("provider called despite empty input")
		}
	})

	t.Run("adds to existing playlist without creating", func(t *testing.T) {
		var gotURIs []string
		provider := &tu.MockProvider{
			AddTracksFn: func(ctx context.Context, playlistID string, uris []string) error {
				if playlistID != "pl1" {
					t.Errorf("playlistID = %q", playlistID)
				}
				gotURIs = uris
				return nil
			},
		}

		result, err := engine.AddTracks(context.Background(), provider, "pl1", []string{"t1", "t2"})
		if err != nil {
			t.Fatalf("AddTracks failed: %v", err)
		}

		if result.PlaylistID != "pl1" || result.Added != 2 || result.Created {
			t.Errorf("result = %+v", result)
		}
		if len(gotURIs) != 2 || gotURIs[0] != "spotify:track:t1" || gotURIs[1] != "spotify:track:t2" {
			t.Errorf("uris = %v", gotURIs)
		}
		if provider.CallCount("CreatePlaylist") != 0 {
			t.Error("playlist created despite explicit target")
		}
	})

	t.Run("creates default playlist when none named", func(t *testing.T) {
		provider := &tu.MockProvider{
			CreatePlaylistFn: func(ctx context.Context, userID, name, description string, public bool) (*services.SpotifyPlaylist, error) {
				if userID != "mock-user" {
					t.Errorf("userID = %q", userID)
				}
				if name != "VibeFlow Playlist" || description != "Created by VibeFlow (@ketchalegend)" {
					t.Errorf("name = %q, description = %q", name, description)
				}
				if public {
					t.Error("playlist should be private")
				}
				return &services.SpotifyPlaylist{ID: "created-id", Name: name}, nil
			},
		}

		result, err := engine.AddTracks(context.Background(), provider, "", []string{"t1"})
		if err != nil {
			t.Fatalf("AddTracks failed: %v", err)
		}

		if result.PlaylistID != "created-id" || !result.Created || result.Added != 1 {
			t.Errorf("result = %+v", result)
		}
		if provider.CallCount("CreatePlaylist") != 1 || provider.CallCount("AddTracksToPlaylist") != 1 {
			t.Errorf("calls = %+v", provider.Calls)
		}
	})

	t.Run("create failure aborts before any write", func(t *testing.T) {
		wantErr := errors.New("create failed")
		provider := &tu.MockProvider{
			CreatePlaylistFn: func(ctx context.Context, userID, name, description string, public bool) (*services.SpotifyPlaylist, error) {
				return nil, wantErr
			},
		}

		if _, err := engine.AddTracks(context.Background(), provider, "", []string{"t1"}); !errors.Is(err, wantErr) {
			t.Errorf("error = %v, want %v", err, wantErr)
		}
		if provider.CallCount("AddTracksToPlaylist") != 0 {
			t.Error("tracks added despite failed create")
		}
	})

	t.Run("upstream add failure propagates", func(t *testing.T) {
		upstream := &shared.UpstreamError{Endpoint: "/playlists/pl1/tracks", Status: 502, Body: `{"error":"bad gateway"}`}
		provider := &tu.MockProvider{
			AddTracksFn: func(ctx context.Context, playlistID string, uris []string) error {
				return upstream
			},
		}

		_, err := engine.AddTracks(context.Background(), provider, "pl1", []string{"t1"})
		if !errors.Is(err, shared.ErrUpstream) {
			t.Errorf("error = %v, want ErrUpstream", err)
		}
	})
}
