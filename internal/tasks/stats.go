package tasks

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/ketchalegend/vibeflow/internal/models"
	"github.com/ketchalegend/vibeflow/internal/services"
	"github.com/ketchalegend/vibeflow/internal/shared"
)

// Fetch limits for the listening-profile snapshot.
const (
	topStatsLimit    = 5
	recentPlaysLimit = 50
	browseLimit      = 5
	genreLimit       = 5
	recommendLimit   = 5
	seedArtistsLimit = 2
	seedTracksLimit  = 3
)

// StatsEngine builds listening-profile snapshots.
type StatsEngine struct {
	logger *log.Logger
}

// NewStatsEngine creates a stats engine.
func NewStatsEngine(logger *log.Logger) *StatsEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &StatsEngine{logger: logger}
}

// statsFetches holds the raw provider results before normalization.
type statsFetches struct {
	profile         *services.SpotifyUser
	topArtists      []services.SpotifyArtist
	topTracks       []services.SpotifyTrack
	recent          []services.SpotifyPlayedItem
	nowPlaying      *services.SpotifyNowPlaying
	followingTotal  int
	featured        []services.SpotifyPlaylist
	shows           []services.SpotifyShow
	releases        []services.SpotifyAlbum
	features        []map[string]any
	recommendations []services.SpotifyTrack
	artistTop       []services.SpotifyTrack
}

// Build fetches and aggregates the user's listening profile for one time
// range. Independent fetches run concurrently; fetches that need ids from the
// first round run after it. Any failing fetch aborts the whole build.
func (e *StatsEngine) Build(ctx context.Context, provider services.Provider, timeRange string) (*models.StatsBundle, error) {
	timeRange = models.NormalizeTimeRange(timeRange)

	var f statsFetches
	if err := e.fetchIndependent(ctx, provider, timeRange, &f); err != nil {
		return nil, err
	}
	if err := e.fetchDependent(ctx, provider, &f); err != nil {
		return nil, err
	}

	totalMS, uniqueArtists := listeningTotals(f.recent)

	bundle := &models.StatsBundle{
		TopArtists:         normalizeArtists(f.topArtists),
		TopTracks:          normalizeTracks(f.topTracks),
		TotalListeningTime: totalMS,
		FavoriteGenres:     genreHistogram(f.topArtists, genreLimit),
		NowPlaying:         normalizeNowPlaying(f.nowPlaying),
		TimeRange:          timeRange,
		TimeRangeText:      models.TimeRangeText(timeRange),
		RecentTracksCount:  len(f.recent),
		AudioFeatures:      averageFeatures(f.features),
		UniqueArtistsCount: uniqueArtists,
		Recommendations:    normalizeTracks(f.recommendations),
		FollowerCount:      f.profile.FollowerCount(),
		FollowingCount:     f.followingTotal,
		NewReleases:        normalizeReleases(f.releases),
		ArtistTopTracks:    normalizeTracks(f.artistTop),
		FeaturedPlaylists:  normalizePlaylists(f.featured),
		UserShows:          normalizeShows(f.shows),
	}

	e.logger.Debug("stats bundle built",
		"timeRange", timeRange,
		"topArtists", len(bundle.TopArtists),
		"recentTracks", bundle.RecentTracksCount)

	return bundle, nil
}

// fetchIndependent runs the fetches that need nothing but the session.
func (e *StatsEngine) fetchIndependent(ctx context.Context, provider services.Provider, timeRange string, f *statsFetches) error {
	var wg sync.WaitGroup
	errs := make([]error, 9)

	run := func(i int, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn()
		}()
	}

	run(0, func() (err error) {
		f.profile, err = provider.Profile(ctx)
		return
	})
	run(1, func() (err error) {
		f.topArtists, err = provider.TopArtists(ctx, timeRange, topStatsLimit)
		return
	})
	run(2, func() (err error) {
		f.topTracks, err = provider.TopTracks(ctx, timeRange, topStatsLimit)
		return
	})
	run(3, func() (err error) {
		f.recent, err = provider.RecentlyPlayed(ctx, recentPlaysLimit)
		return
	})
	run(4, func() (err error) {
		f.nowPlaying, err = provider.CurrentlyPlaying(ctx)
		return
	})
	run(5, func() (err error) {
		f.followingTotal, err = provider.FollowedArtistsTotal(ctx)
		return
	})
	run(6, func() (err error) {
		f.featured, err = provider.FeaturedPlaylists(ctx, browseLimit)
		return
	})
	run(7, func() (err error) {
		f.shows, err = provider.SavedShows(ctx, browseLimit)
		return
	})
	run(8, func() (err error) {
		f.releases, err = provider.NewReleases(ctx, browseLimit)
		return
	})

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

// fetchDependent runs the fetches seeded by ids from the first round.
func (e *StatsEngine) fetchDependent(ctx context.Context, provider services.Provider, f *statsFetches) error {
	var wg sync.WaitGroup
	errs := make([]error, 3)

	run := func(i int, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = fn()
		}()
	}

	if len(f.topTracks) > 0 {
		trackIDs := make([]string, 0, len(f.topTracks))
		for _, t := range f.topTracks {
			trackIDs = append(trackIDs, t.ID)
		}
		run(0, func() (err error) {
			f.features, err = provider.AudioFeatures(ctx, trackIDs)
			return
		})

		seedTracks := trackIDs
		if len(seedTracks) > seedTracksLimit {
			seedTracks = seedTracks[:seedTracksLimit]
		}
		var seedArtists []string
		for i, a := range f.topArtists {
			if i == seedArtistsLimit {
				break
			}
			seedArtists = append(seedArtists, a.ID)
		}
		run(1, func() (err error) {
			f.recommendations, err = provider.Recommendations(ctx, seedArtists, seedTracks, recommendLimit)
			return
		})
	}

	if len(f.topArtists) > 0 {
		artistID := f.topArtists[0].ID
		run(2, func() (err error) {
			f.artistTop, err = provider.ArtistTopTracks(ctx, artistID)
			return
		})
	}

	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
