package tasks

import (
	"sort"

	"github.com/ketchalegend/vibeflow/internal/models"
	"github.com/ketchalegend/vibeflow/internal/services"
)

// firstImage returns the first image URL or the empty string.
func firstImage(images []services.SpotifyImage) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}

// primaryArtist returns the first artist's name or the unknown default.
func primaryArtist(artists []services.SpotifyArtist) string {
	if len(artists) == 0 || artists[0].Name == "" {
		return models.UnknownArtist
	}
	return artists[0].Name
}

func normalizeArtist(a services.SpotifyArtist) models.ArtistStat {
	name := a.Name
	if name == "" {
		name = models.UnknownArtist
	}
	genres := a.Genres
	if genres == nil {
		genres = []string{}
	}
	return models.ArtistStat{
		ID:        a.ID,
		Name:      name,
		PlayCount: a.Popularity,
		Genres:    genres,
		Image:     firstImage(a.Images),
	}
}

func normalizeTrack(t services.SpotifyTrack) models.TrackStat {
	name := t.Name
	if name == "" {
		name = models.UnknownTrack
	}
	album := t.Album.Name
	if album == "" {
		album = models.UnknownAlbum
	}
	return models.TrackStat{
		ID:        t.ID,
		Name:      name,
		Artist:    primaryArtist(t.Artists),
		PlayCount: t.Popularity,
		Album:     album,
		Image:     firstImage(t.Album.Images),
	}
}

func normalizeArtists(artists []services.SpotifyArtist) []models.ArtistStat {
	out := make([]models.ArtistStat, 0, len(artists))
	for _, a := range artists {
		out = append(out, normalizeArtist(a))
	}
	return out
}

func normalizeTracks(tracks []services.SpotifyTrack) []models.TrackStat {
	out := make([]models.TrackStat, 0, len(tracks))
	for _, t := range tracks {
		out = append(out, normalizeTrack(t))
	}
	return out
}

// genreHistogram builds the favorite-genre histogram from top artists:
// counts per genre, descending, top n, with bar percentages relative to the
// largest count in the list. Artists without genres contribute nothing.
func genreHistogram(artists []services.SpotifyArtist, n int) []models.GenreCount {
	counts := make(map[string]int)
	for _, a := range artists {
		for _, g := range a.Genres {
			counts[g]++
		}
	}

	genres := make([]models.GenreCount, 0, len(counts))
	for name, count := range counts {
		genres = append(genres, models.GenreCount{Name: name, Count: count})
	}

	sort.Slice(genres, func(i, j int) bool {
		if genres[i].Count != genres[j].Count {
			return genres[i].Count > genres[j].Count
		}
		return genres[i].Name < genres[j].Name
	})

	if len(genres) > n {
		genres = genres[:n]
	}
	if len(genres) == 0 {
		return []models.GenreCount{}
	}

	max := genres[0].Count
	for i := range genres {
		genres[i].Percent = genres[i].Count * 100 / max
	}
	return genres
}

// listeningTotals sums play durations and counts distinct artists over the
// play-history window. Entries without a track are skipped.
func listeningTotals(items []services.SpotifyPlayedItem) (totalMS int64, uniqueArtists int) {
	seen := make(map[string]bool)
	for _, item := range items {
		if item.Track == nil {
			continue
		}
		totalMS += item.Track.DurationMS
		for _, a := range item.Track.Artists {
			if a.ID != "" {
				seen[a.ID] = true
			}
		}
	}
	return totalMS, len(seen)
}

// averageFeatures computes the arithmetic mean per numeric key across the
// feature maps. Non-numeric values (ids, URLs, the type tag) are dropped.
// A key missing from some maps is averaged over the maps that carry it.
func averageFeatures(features []map[string]any) map[string]float64 {
	sums := make(map[string]float64)
	counts := make(map[string]int)

	for _, f := range features {
		for key, value := range f {
			num, ok := asFloat(value)
			if !ok {
				continue
			}
			sums[key] += num
			counts[key]++
		}
	}

	averages := make(map[string]float64, len(sums))
	for key, sum := range sums {
		averages[key] = sum / float64(counts[key])
	}
	return averages
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// normalizeNowPlaying maps the decoded track-or-episode variant into the
// common record. Episodes surface the show's publisher as the artist and the
// show's name as the album.
func normalizeNowPlaying(np *services.SpotifyNowPlaying) *models.NowPlaying {
	if np == nil {
		return nil
	}

	if np.Type == "episode" && np.Episode != nil {
		e := np.Episode
		name := e.Name
		if name == "" {
			name = models.UnknownEpisode
		}
		publisher := e.Show.Publisher
		if publisher == "" {
			publisher = models.UnknownPublisher
		}
		show := e.Show.Name
		if show == "" {
			show = models.UnknownShow
		}
		image := firstImage(e.Images)
		if image == "" {
			image = firstImage(e.Show.Images)
		}
		return &models.NowPlaying{
			Name:       name,
			Artist:     publisher,
			Album:      show,
			Image:      image,
			PreviewURL: e.PreviewURL,
		}
	}

	if np.Track == nil {
		return nil
	}

	t := np.Track
	name := t.Name
	if name == "" {
		name = models.UnknownTrack
	}
	album := t.Album.Name
	if album == "" {
		album = models.UnknownAlbum
	}
	return &models.NowPlaying{
		Name:       name,
		Artist:     primaryArtist(t.Artists),
		Album:      album,
		Image:      firstImage(t.Album.Images),
		PreviewURL: t.PreviewURL,
	}
}

func normalizeReleases(albums []services.SpotifyAlbum) []models.Release {
	out := make([]models.Release, 0, len(albums))
	for _, a := range albums {
		name := a.Name
		if name == "" {
			name = models.UnknownAlbum
		}
		out = append(out, models.Release{
			Name:        name,
			Artist:      primaryArtist(a.Artists),
			Image:       firstImage(a.Images),
			ReleaseDate: a.ReleaseDate,
		})
	}
	return out
}

func normalizePlaylists(playlists []services.SpotifyPlaylist) []models.PlaylistSummary {
	out := make([]models.PlaylistSummary, 0, len(playlists))
	for _, p := range playlists {
		out = append(out, models.PlaylistSummary{
			ID:          p.ID,
			Name:        p.Name,
			Description: models.Truncate(p.Description, models.DescriptionLimit),
			Image:       firstImage(p.Images),
		})
	}
	return out
}

func normalizeShows(shows []services.SpotifyShow) []models.ShowSummary {
	out := make([]models.ShowSummary, 0, len(shows))
	for _, s := range shows {
		name := s.Name
		if name == "" {
			name = models.UnknownShow
		}
		publisher := s.Publisher
		if publisher == "" {
			publisher = models.UnknownPublisher
		}
		out = append(out, models.ShowSummary{
			Name:        name,
			Publisher:   publisher,
			Description: models.Truncate(s.Description, models.DescriptionLimit),
			Image:       firstImage(s.Images),
		})
	}
	return out
}
