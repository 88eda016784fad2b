package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/ketchalegend/vibeflow/internal/models"
	"github.com/ketchalegend/vibeflow/internal/services"
	"github.com/ketchalegend/vibeflow/internal/shared"
)

const (
	suggestProfileLimit = 10
	searchLimit         = 10
	maxSuggestions      = 3
)

const suggestSystemPrompt = "You are a music recommendation expert. Based on the user's input and their music preferences, suggest 3 songs that fit their current situation and taste. You will use the provided function to search for songs on Spotify."

// SeenStore is the suggestion-history persistence the engine filters against.
type SeenStore interface {
	Seen(email string, trackIDs []string) (map[string]bool, error)
	Record(email string, suggestions []models.Suggestion) error
}

// SuggestEngine produces track suggestions from situational input and the
// user's taste profile.
type SuggestEngine struct {
	completer services.Completer
	store     SeenStore
	logger    *log.Logger
}

// NewSuggestEngine creates a suggest engine.
func NewSuggestEngine(completer services.Completer, store SeenStore, logger *log.Logger) *SuggestEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &SuggestEngine{completer: completer, store: store, logger: logger}
}

// Suggest runs the suggestion flow: build a taste profile from the user's top
// tracks, let the model pick a search query, search the provider, drop tracks
// the user was already offered, and return up to three new ones. The returned
// tracks are recorded so the same suggestion is never repeated for the user.
func (e *SuggestEngine) Suggest(ctx context.Context, provider services.Provider, email string, input models.SuggestionInput) ([]models.Suggestion, error) {
	topTracks, err := provider.TopTracks(ctx, models.TimeRangeMedium, suggestProfileLimit)
	if err != nil {
		return nil, err
	}

	decision, err := e.completer.DecideSearch(ctx, suggestSystemPrompt, buildUserPrompt(input, topTracks))
	if err != nil {
		return nil, err
	}
	if !decision.Call {
		e.logger.Warn("model declined to search", "email", email)
		return nil, shared.ErrNoSuggestion
	}

	tracks, err := provider.SearchTracks(ctx, decision.Query, searchLimit)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: no matching tracks found", shared.ErrNoResults)
	}

	fresh, err := e.filterSeen(email, tracks)
	if err != nil {
		return nil, err
	}
	if len(fresh) == 0 {
		return nil, fmt.Errorf("%w: no new matching tracks found", shared.ErrNoResults)
	}

	if len(fresh) > maxSuggestions {
		fresh = fresh[:maxSuggestions]
	}

	suggestions := make([]models.Suggestion, 0, len(fresh))
	for _, t := range fresh {
		suggestions = append(suggestions, mapSuggestion(t))
	}

	if err := e.store.Record(email, suggestions); err != nil {
		return nil, err
	}

	e.logger.Info("suggestions produced", "email", email, "query", decision.Query, "count", len(suggestions))
	return suggestions, nil
}

// filterSeen drops tracks already suggested to the user, preserving order.
func (e *SuggestEngine) filterSeen(email string, tracks []services.SpotifyTrack) ([]services.SpotifyTrack, error) {
	ids := make([]string, 0, len(tracks))
	for _, t := range tracks {
		ids = append(ids, t.ID)
	}

	seen, err := e.store.Seen(email, ids)
	if err != nil {
		return nil, err
	}

	fresh := make([]services.SpotifyTrack, 0, len(tracks))
	for _, t := range tracks {
		if !seen[t.ID] {
			fresh = append(fresh, t)
		}
	}
	return fresh, nil
}

// buildUserPrompt embeds the situational input and the taste profile into the
// user message.
func buildUserPrompt(input models.SuggestionInput, topTracks []services.SpotifyTrack) string {
	names := make([]string, 0, len(topTracks))
	for _, t := range topTracks {
		names = append(names, fmt.Sprintf("%s by %s", t.Name, primaryArtist(t.Artists)))
	}

	return fmt.Sprintf(`Suggest 3 songs based on the following:
Weather: %s
Mood: %s
Location: %s
Preferred Genre: %s
User's top tracks: %s`,
		input.Weather, input.Mood, input.Location, input.Genre, strings.Join(names, ", "))
}

func mapSuggestion(t services.SpotifyTrack) models.Suggestion {
	return models.Suggestion{
		TrackID:       t.ID,
		Name:          t.Name,
		Artist:        primaryArtist(t.Artists),
		Album:         t.Album.Name,
		AlbumImageURL: firstImage(t.Album.Images),
		PreviewURL:    t.PreviewURL,
		SpotifyURL:    t.ExternalURLs.Spotify,
	}
}
