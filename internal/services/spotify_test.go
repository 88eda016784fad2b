package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ketchalegend/vibeflow/internal/shared"
)

// newTestClient binds a session-scoped client to a stub provider server.
func newTestClient(t *testing.T, handler http.Handler) (*SpotifySession, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	svc, err := NewSpotifyService(testCredentials(), server.Client(), shared.NewLogger(io.Discard))
	if err != nil {
		t.Fatalf("NewSpotifyService failed: %v", err)
	}
	svc.SetBaseURLs(server.URL, server.URL+"/token")

	return svc.Session(testSession()), server
}

func TestNewSpotifyService(t *testing.T) {
	t.Run("requires credentials", func(t *testing.T) {
		_, err := NewSpotifyService(shared.SpotifyConfig{}, nil, nil)
		if !errors.Is(err, shared.ErrMissingCredentials) {
			t.Errorf("error = %v, want ErrMissingCredentials", err)
		}
	})

	t.Run("oauth config carries redirect and scopes", func(t *testing.T) {
		svc, err := NewSpotifyService(testCredentials(), nil, nil)
		if err != nil {
			t.Fatalf("NewSpotifyService failed: %v", err)
		}

		cfg := svc.OAuthConfig()
		if cfg.RedirectURL != "http://localhost:8080/callback" {
			t.Errorf("redirect = %q", cfg.RedirectURL)
		}
		if len(cfg.Scopes) == 0 {
			t.Error("no scopes configured")
		}
		for _, want := range []string{"user-top-read", "playlist-modify-private"} {
			found := false
			for _, s := range cfg.Scopes {
				if s == want {
					found = true
				}
			}
			if !found {
				t.Errorf("scope %q missing", want)
			}
		}
	})
}

func TestSpotifySession_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantTarget error
	}{
		{"forbidden maps to ErrForbidden", http.StatusForbidden, `{"error":"forbidden"}`, shared.ErrForbidden},
		{"rate limit maps to ErrRateLimited", http.StatusTooManyRequests, `{"error":"too many"}`, shared.ErrRateLimited},
		{"server error maps to ErrUpstream", http.StatusInternalServerError, `{"error":"boom"}`, shared.ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				fmt.Fprint(w, tt.body)
			}))

			_, err := client.Profile(context.Background())
			if !errors.Is(err, tt.wantTarget) {
				t.Errorf("error = %v, want %v", err, tt.wantTarget)
			}

			var upstream *shared.UpstreamError
			if !errors.As(err, &upstream) {
				t.Fatalf("error %v is not an UpstreamError", err)
			}
			if upstream.Status != tt.status {
				t.Errorf("status = %d, want %d", upstream.Status, tt.status)
			}
			if upstream.Body != tt.body {
				t.Errorf("body = %q, want %q", upstream.Body, tt.body)
			}
		})
	}
}

func TestSpotifySession_TopTracks(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/me/top/tracks" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("time_range"); got != "short_term" {
			t.Errorf("time_range = %q", got)
		}
		if got := r.URL.Query().Get("limit"); got != "5" {
			t.Errorf("limit = %q", got)
		}
		fmt.Fprint(w, `{"items":[{"id":"t1","name":"Song","artists":[{"name":"Band"}],"album":{"name":"Album"}}]}`)
	}))

	tracks, err := client.TopTracks(context.Background(), "short_term", 5)
	if err != nil {
		t.Fatalf("TopTracks failed: %v", err)
	}
	if len(tracks) != 1 || tracks[0].ID != "t1" || tracks[0].Artists[0].Name != "Band" {
		t.Errorf("tracks = %+v", tracks)
	}
}

func TestSpotifySession_CurrentlyPlaying(t *testing.T) {
	t.Run("track item", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"is_playing":true,"currently_playing_type":"track","item":{"id":"t1","name":"Song","artists":[{"name":"Band"}]}}`)
		}))

		np, err := client.CurrentlyPlaying(context.Background())
		if err != nil {
			t.Fatalf("CurrentlyPlaying failed: %v", err)
		}
		if np == nil || np.Type != "track" {
			t.Fatalf("now playing = %+v", np)
		}
		if np.Track == nil || np.Episode != nil {
			t.Error("want track variant only")
		}
		if np.Track.Name != "Song" {
			t.Errorf("name = %q", np.Track.Name)
		}
	})

	t.Run("episode item", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"is_playing":true,"currently_playing_type":"episode","item":{"id":"e1","name":"Ep 1","show":{"name":"My Show","publisher":"Acme"}}}`)
		}))

		np, err := client.CurrentlyPlaying(context.Background())
		if err != nil {
			t.Fatalf("CurrentlyPlaying failed: %v", err)
		}
		if np == nil || np.Type != "episode" {
			t.Fatalf("now playing = %+v", np)
		}
		if np.Episode == nil || np.Track != nil {
			t.Error("want episode variant only")
		}
		if np.Episode.Show.Publisher != "Acme" {
			t.Errorf("publisher = %q", np.Episode.Show.Publisher)
		}
	})

	t.Run("nothing playing", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))

		np, err := client.CurrentlyPlaying(context.Background())
		if err != nil {
			t.Fatalf("CurrentlyPlaying failed: %v", err)
		}
		if np != nil {
			t.Errorf("now playing = %+v, want nil", np)
		}
	})

	t.Run("null item", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"is_playing":false,"currently_playing_type":"track","item":null}`)
		}))

		np, err := client.CurrentlyPlaying(context.Background())
		if err != nil {
			t.Fatalf("CurrentlyPlaying failed: %v", err)
		}
		if np != nil {
			t.Errorf("now playing = %+v, want nil", np)
		}
	})
}

func TestSpotifySession_AudioFeatures(t *testing.T) {
	t.Run("drops null entries", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"audio_features":[{"danceability":0.5},null,{"danceability":0.7}]}`)
		}))

		features, err := client.AudioFeatures(context.Background(), []string{"a", "b", "c"})
		if err != nil {
			t.Fatalf("AudioFeatures failed: %v", err)
		}
		if len(features) != 2 {
			t.Errorf("features = %d, want 2", len(features))
		}
	})

	t.Run("requires ids", func(t *testing.T) {
		client, _ := newTestClient(t, http.NotFoundHandler())

		_, err := client.AudioFeatures(context.Background(), nil)
		if !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("error = %v, want ErrMissingArgument", err)
		}
	})
}

func TestSpotifySession_Playlists(t *testing.T) {
	t.Run("follows next links until exhausted", func(t *testing.T) {
		var server *httptest.Server
		pages := 0

		handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pages++
			pageSizes := []int{50, 50, 7}
			size := pageSizes[pages-1]

			items := make([]map[string]string, 0, size)
			for i := 0; i < size; i++ {
				id := fmt.Sprintf("p%d-%d", pages, i)
				items = append(items, map[string]string{"id": id, "name": "Playlist " + id})
			}

			payload := map[string]any{"items": items}
			if pages < len(pageSizes) {
				payload["next"] = fmt.Sprintf("%s/me/playlists?offset=%d&limit=50", server.URL, pages*50)
			} else {
				payload["next"] = nil
			}
			json.NewEncoder(w).Encode(payload)
		})

		client, srv := newTestClient(t, handler)
		server = srv

		playlists, err := client.Playlists(context.Background())
		if err != nil {
			t.Fatalf("Playlists failed: %v", err)
		}
		if len(playlists) != 107 {
			t.Errorf("playlists = %d, want 107", len(playlists))
		}
		if pages != 3 {
			t.Errorf("pages fetched = %d, want 3", pages)
		}
		if playlists[0].ID != "p1-0" || playlists[106].ID != "p3-6" {
			t.Errorf("ordering broken: first %q last %q", playlists[0].ID, playlists[106].ID)
		}
	})

	t.Run("single page", func(t *testing.T) {
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"items":[{"id":"p1","name":"Only"}],"next":null}`)
		}))

		playlists, err := client.Playlists(context.Background())
		if err != nil {
			t.Fatalf("Playlists failed: %v", err)
		}
		if len(playlists) != 1 || playlists[0].Name != "Only" {
			t.Errorf("playlists = %+v", playlists)
		}
	})
}

func TestSpotifySession_CreatePlaylist(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		if r.URL.Path != "/users/user1/playlists" {
			t.Errorf("path = %q", r.URL.Path)
		}

		var req createPlaylistRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("Failed to decode body: %v", err)
		}
		if req.Name != "VibeFlow Playlist" || req.Public {
			t.Errorf("request = %+v", req)
		}

		fmt.Fprint(w, `{"id":"new-playlist","name":"VibeFlow Playlist"}`)
	}))

	playlist, err := client.CreatePlaylist(context.Background(), "user1", "VibeFlow Playlist", "Created by VibeFlow (@ketchalegend)", false)
	if err != nil {
		t.Fatalf("CreatePlaylist failed: %v", err)
	}
	if playlist.ID != "new-playlist" {
		t.Errorf("id = %q", playlist.ID)
	}
}

func TestSpotifySession_AddTracksToPlaylist(t *testing.T) {
	t.Run("posts uris", func(t *testing.T) {
		var gotURIs []string
		client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasSuffix(r.URL.Path, "/playlists/pl1/tracks") {
				t.Errorf("path = %q", r.URL.Path)
			}
			var body map[string][]string
			json.NewDecoder(r.Body).Decode(&body)
			gotURIs = body["uris"]
			fmt.Fprint(w, `{"snapshot_id":"snap"}`)
		}))

		err := client.AddTracksToPlaylist(context.Background(), "pl1", []string{"spotify:track:t1", "spotify:track:t2"})
		if err != nil {
			t.Fatalf("AddTracksToPlaylist failed: %v", err)
		}
		if len(gotURIs) != 2 || gotURIs[0] != "spotify:track:t1" {
			t.Errorf("uris = %v", gotURIs)
		}
	})

	t.Run("rejects empty input", func(t *testing.T) {
		client, _ := newTestClient(t, http.NotFoundHandler())

		if err := client.AddTracksToPlaylist(context.Background(), "pl1", nil); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("error = %v, want ErrMissingArgument", err)
		}
		if err := client.AddTracksToPlaylist(context.Background(), "", []string{"u"}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("error = %v, want ErrMissingArgument", err)
		}
	})
}

func TestSpotifySession_SavedShows(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"show":{"id":"s1","name":"Show","publisher":"Acme"}}]}`)
	}))

	shows, err := client.SavedShows(context.Background(), 5)
	if err != nil {
		t.Fatalf("SavedShows failed: %v", err)
	}
	if len(shows) != 1 || shows[0].Publisher != "Acme" {
		t.Errorf("shows = %+v", shows)
	}
}

func TestSpotifySession_FollowedArtistsTotal(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"artists":{"total":42}}`)
	}))

	total, err := client.FollowedArtistsTotal(context.Background())
	if err != nil {
		t.Fatalf("FollowedArtistsTotal failed: %v", err)
	}
	if total != 42 {
		t.Errorf("total = %d, want 42", total)
	}
}
