package models

import (
	"fmt"
	"time"
)

// Time ranges the provider accepts for "top" artist/track queries.
const (
	TimeRangeShort  = "short_term"
	TimeRangeMedium = "medium_term"
	TimeRangeLong   = "long_term"
)

// Defaults substituted for missing optional provider fields.
const (
	UnknownArtist    = "Unknown Artist"
	UnknownTrack     = "Unknown Track"
	UnknownAlbum     = "Unknown Album"
	UnknownEpisode   = "Unknown Episode"
	UnknownPublisher = "Unknown Publisher"
	UnknownShow      = "Unknown Show"
)

// DescriptionLimit is the maximum length of playlist and show descriptions
// before truncation.
const DescriptionLimit = 50

// NormalizeTimeRange maps arbitrary input to a valid provider time range,
// defaulting to medium_term.
func NormalizeTimeRange(s string) string {
	switch s {
	case TimeRangeShort, TimeRangeMedium, TimeRangeLong:
		return s
	default:
		return TimeRangeMedium
	}
}

// TimeRangeText returns the human-readable window for a provider time range.
func TimeRangeText(timeRange string) string {
	switch timeRange {
	case TimeRangeShort:
		return "the last 4 weeks"
	case TimeRangeLong:
		return "all time"
	default:
		return "the last 6 months"
	}
}

// Truncate shortens s to at most n characters, appending an ellipsis marker
// when anything was cut. Strings of exactly n characters pass through. The
// cut lands on a rune boundary so multibyte text stays valid UTF-8.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// SessionUser identifies the authenticated user.
type SessionUser struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Session holds the credential pair and identity for one authenticated user.
// It is owned by the session store; the token manager only reads it and holds
// refreshed access tokens in request-scoped state.
type Session struct {
	ID                 string      `json:"-"`
	AccessToken        string      `json:"-"`
	RefreshToken       string      `json:"-"`
	AccessTokenExpires int64       `json:"accessTokenExpires"` // epoch milliseconds
	User               SessionUser `json:"user"`
}

// Expired reports whether the session's access token is past its expiry.
func (s *Session) Expired(now time.Time) bool {
	return s.AccessTokenExpires > 0 && now.UnixMilli() >= s.AccessTokenExpires
}

// Validate checks the session carries the fields the orchestration layer needs.
func (s *Session) Validate() error {
	if s.AccessToken == "" {
		return fmt.Errorf("session is missing an access token")
	}
	if s.User.Email == "" {
		return fmt.Errorf("session is missing a user email")
	}
	return nil
}

// ArtistStat is a normalized top-artist entry.
type ArtistStat struct {
	ID        string   `json:"-"`
	Name      string   `json:"name"`
	PlayCount int      `json:"playCount"`
	Genres    []string `json:"genres"`
	Image     string   `json:"image"`
}

// TrackStat is a normalized top-track entry.
type TrackStat struct {
	ID        string `json:"-"`
	Name      string `json:"name"`
	Artist    string `json:"artist"`
	PlayCount int    `json:"playCount"`
	Album     string `json:"album"`
	Image     string `json:"image"`
}

// GenreCount is one entry of the favorite-genre histogram. Percent is
// relative to the largest count in the same list, not an absolute scale.
type GenreCount struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// NowPlaying is the common record both track-shaped and episode-shaped
// currently-playing items map into.
type NowPlaying struct {
	Name       string `json:"name"`
	Artist     string `json:"artist"`
	Album      string `json:"album"`
	Image      string `json:"image"`
	PreviewURL string `json:"previewUrl,omitempty"`
}

// Release is a normalized new-release album entry.
type Release struct {
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	Image       string `json:"image"`
	ReleaseDate string `json:"releaseDate"`
}

// PlaylistSummary is a normalized featured-playlist entry.
type PlaylistSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// ShowSummary is a normalized saved-show entry.
type ShowSummary struct {
	Name        string `json:"name"`
	Publisher   string `json:"publisher"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// StatsBundle is the aggregated, normalized snapshot of a user's listening
// profile. It is immutable once built; the cache hands out the same bundle
// until its freshness window lapses.
type StatsBundle struct {
	TopArtists         []ArtistStat       `json:"topArtists"`
	TopTracks          []TrackStat        `json:"topTracks"`
	TotalListeningTime int64              `json:"totalListeningTime"`
	FavoriteGenres     []GenreCount       `json:"favoriteGenres"`
	NowPlaying         *NowPlaying        `json:"nowPlaying"`
	TimeRange          string             `json:"timeRange"`
	TimeRangeText      string             `json:"timeRangeText"`
	RecentTracksCount  int                `json:"recentTracksCount"`
	AudioFeatures      map[string]float64 `json:"audioFeatures"`
	UniqueArtistsCount int                `json:"uniqueArtistsCount"`
	Recommendations    []TrackStat        `json:"recommendations"`
	FollowerCount      int                `json:"followerCount"`
	FollowingCount     int                `json:"followingCount"`
	NewReleases        []Release          `json:"newReleases"`
	ArtistTopTracks    []TrackStat        `json:"artistTopTracks"`
	FeaturedPlaylists  []PlaylistSummary  `json:"featuredPlaylists"`
	UserShows          []ShowSummary      `json:"userShows"`
}

// Playlist is the id/name pair surfaced by the playlists endpoint.
type Playlist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Suggestion is one recommended track, constructed per request and never
// persisted beyond the response (only its id lands in the seen-track store).
type Suggestion struct {
	TrackID       string `json:"trackId"`
	Name          string `json:"name"`
	Artist        string `json:"artist"`
	Album         string `json:"album"`
	AlbumImageURL string `json:"albumImageUrl"`
	PreviewURL    string `json:"previewUrl"`
	SpotifyURL    string `json:"spotifyUrl"`
}

// SuggestionInput carries the situational inputs for a suggestion request.
type SuggestionInput struct {
	Weather  string `json:"weather"`
	Mood     string `json:"mood"`
	Location string `json:"location"`
	Genre    string `json:"genre"`
}
