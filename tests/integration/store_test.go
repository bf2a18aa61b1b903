package integration_test

import (
	"testing"
	"time"

	"github.com/hbomb79/Marquee/internal"
	"github.com/hbomb79/Marquee/internal/ingest"
	"github.com/hbomb79/Marquee/internal/release"
	"github.com/hbomb79/Marquee/internal/user"
	"github.com/hbomb79/Marquee/internal/watchlist"
	"github.com/hbomb79/Marquee/tests/helpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func resolvedRelease(tmdbID int64, title string, releaseType release.Type, releaseDate time.Time, genreIDs []int) ingest.ResolvedRelease {
	return ingest.ResolvedRelease{
		Release: release.Release{
			TmdbID:      tmdbID,
			Title:       title,
			Type:        releaseType,
			ReleaseDate: releaseDate,
			Overview:    "overview for " + title,
		},
		GenreIDs: genreIDs,
	}
}

// seedGenres persists the provided genre names (keyed on synthetic TMDB IDs
// starting at 100) and returns the internal IDs assigned to them, in order.
func seedGenres(t *testing.T, orchestrator *internal.DataOrchestrator, names ...string) []int {
	genres := make([]*release.Genre, 0, len(names))
	tmdbIDs := make([]int, 0, len(names))
	for i, name := range names {
		genres = append(genres, &release.Genre{TmdbID: 100 + i, Name: name})
		tmdbIDs = append(tmdbIDs, 100+i)
	}
	require.NoError(t, orchestrator.SaveGenres(genres))

	saved, err := orchestrator.GetGenresWithTmdbIDs(tmdbIDs)
	require.NoError(t, err)
	require.Len(t, saved, len(names))

	byTmdbID := make(map[int]int, len(saved))
	for _, genre := range saved {
		byTmdbID[genre.TmdbID] = genre.ID
	}

	ids := make([]int, 0, len(names))
	for _, tmdbID := range tmdbIDs {
		ids = append(ids, byTmdbID[tmdbID])
	}
	return ids
}

func TestReleaseStore_Lifecycle(t *testing.T) {
	db := helpers.ProvisionDatabase(t)
	orchestrator := internal.NewDataOrchestrator(db)

	genreIDs := seedGenres(t, orchestrator, "Action", "Drama")

	require.NoError(t, orchestrator.SaveReleaseBatch([]ingest.ResolvedRelease{
		resolvedRelease(10, "First Strike", release.MOVIE, date(2026, time.January, 10), genreIDs),
		resolvedRelease(20, "Quiet Rooms", release.TV, date(2026, time.January, 12), genreIDs[1:]),
		resolvedRelease(30, "Last Light", release.MOVIE, date(2026, time.February, 1), nil),
	}))

	t.Run("ListAll", func(t *testing.T) {
		releases, err := orchestrator.ListReleases(release.Filter{})
		require.NoError(t, err)
		require.Len(t, releases, 3)

		// Date ascending ordering
		assert.Equal(t, int64(10), releases[0].TmdbID)
		assert.Equal(t, int64(20), releases[1].TmdbID)
		assert.Equal(t, int64(30), releases[2].TmdbID)
	})

	t.Run("FilterByType", func(t *testing.T) {
		movieType := release.MOVIE
		releases, err := orchestrator.ListReleases(release.Filter{Type: &movieType})
		require.NoError(t, err)
		require.Len(t, releases, 2)
		for _, rel := range releases {
			assert.Equal(t, release.MOVIE, rel.Type)
		}
	})

	t.Run("FilterByWindowIsHalfOpen", func(t *testing.T) {
		from, to := date(2026, time.January, 10), date(2026, time.February, 1)
		releases, err := orchestrator.ListReleases(release.Filter{From: &from, To: &to})
		require.NoError(t, err)
		require.Len(t, releases, 2, "release dated exactly on the window end must be excluded")
	})

	t.Run("FilterByGenre", func(t *testing.T) {
		releases, err := orchestrator.ListReleases(release.Filter{GenreID: &genreIDs[0]})
		require.NoError(t, err)
		require.Len(t, releases, 1)
		assert.Equal(t, "First Strike", releases[0].Title)
	})

	t.Run("GenreAssociations", func(t *testing.T) {
		releases, err := orchestrator.ListReleases(release.Filter{})
		require.NoError(t, err)

		genres, err := orchestrator.GetGenresForRelease(releases[0].ID)
		require.NoError(t, err)
		require.Len(t, genres, 2)

		genres, err = orchestrator.GetGenresForRelease(releases[2].ID)
		require.NoError(t, err)
		assert.Empty(t, genres)
	})

	t.Run("UpsertKeyedOnTmdbID", func(t *testing.T) {
		require.NoError(t, orchestrator.SaveReleaseBatch([]ingest.ResolvedRelease{
			resolvedRelease(10, "First Strike: Remastered", release.MOVIE, date(2026, time.January, 10), genreIDs[:1]),
		}))

		releases, err := orchestrator.ListReleases(release.Filter{})
		require.NoError(t, err)
		require.Len(t, releases, 3, "re-ingesting a known TMDB ID must not create a new row")
		assert.Equal(t, "First Strike: Remastered", releases[0].Title)

		genres, err := orchestrator.GetGenresForRelease(releases[0].ID)
		require.NoError(t, err)
		require.Len(t, genres, 1, "re-ingestion replaces the genre associations")
	})

	t.Run("SearchReleases", func(t *testing.T) {
		stubs, err := orchestrator.SearchReleases("first strike", 0)
		require.NoError(t, err)
		require.NotEmpty(t, stubs)
		assert.Equal(t, "First Strike: Remastered", stubs[0].Title)

		stubs, err = orchestrator.SearchReleases("zzzzzz", 0)
		require.NoError(t, err)
		assert.Empty(t, stubs)
	})

	t.Run("GetReleaseNotFound", func(t *testing.T) {
		_, err := orchestrator.GetRelease(99999)
		assert.ErrorIs(t, err, release.ErrReleaseNotFound)
	})
}

func TestReleaseStore_OrphanEviction(t *testing.T) {
	db := helpers.ProvisionDatabase(t)
	orchestrator := internal.NewDataOrchestrator(db)

	require.NoError(t, orchestrator.SaveReleaseBatch([]ingest.ResolvedRelease{
		resolvedRelease(11, "Kept By Watchlist", release.MOVIE, date(2026, time.March, 1), nil),
		resolvedRelease(22, "Evicted", release.MOVIE, date(2026, time.March, 2), nil),
	}))

	releases, err := orchestrator.ListReleases(release.Filter{})
	require.NoError(t, err)
	require.Len(t, releases, 2)

	usr, err := orchestrator.CreateUser("orphan@example.com", []byte("hunter22hunter22"))
	require.NoError(t, err)
	require.NoError(t, orchestrator.SaveWatchlistEntry(&watchlist.Entry{
		UserID:    usr.ID,
		ReleaseID: releases[0].ID,
	}))

	evicted, err := orchestrator.DeleteOrphanReleases()
	require.NoError(t, err)
	assert.Equal(t, int64(1), evicted)

	remaining, err := orchestrator.ListReleases(release.Filter{})
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	assert.Equal(t, "Kept By Watchlist", remaining[0].Title)
}

func TestWatchlistStore_EntryLifecycle(t *testing.T) {
	db := helpers.ProvisionDatabase(t)
	orchestrator := internal.NewDataOrchestrator(db)

	require.NoError(t, orchestrator.SaveReleaseBatch([]ingest.ResolvedRelease{
		resolvedRelease(10, "Tracked", release.MOVIE, date(2026, time.April, 10), nil),
		resolvedRelease(20, "Also Tracked", release.TV, date(2026, time.April, 20), nil),
	}))
	releases, err := orchestrator.ListReleases(release.Filter{})
	require.NoError(t, err)

	usr, err := orchestrator.CreateUser("watcher@example.com", []byte("hunter22hunter22"))
	require.NoError(t, err)

	like := watchlist.LIKE
	dislike := watchlist.DISLIKE
	watched := true

	t.Run("SaveAndGet", func(t *testing.T) {
		require.NoError(t, orchestrator.SaveWatchlistEntry(&watchlist.Entry{
			UserID:    usr.ID,
			ReleaseID: releases[0].ID,
			Rating:    &like,
		}))

		entry, err := orchestrator.GetWatchlistEntry(usr.ID, releases[0].ID)
		require.NoError(t, err)
		assert.False(t, entry.Watched)
		require.NotNil(t, entry.Rating)
		assert.Equal(t, watchlist.LIKE, *entry.Rating)
	})

	t.Run("SaveIsUpsert", func(t *testing.T) {
		require.NoError(t, orchestrator.SaveWatchlistEntry(&watchlist.Entry{
			UserID:    usr.ID,
			ReleaseID: releases[0].ID,
			Watched:   true,
			Rating:    &dislike,
		}))

		entries, err := orchestrator.ListWatchlistEntriesForUser(usr.ID)
		require.NoError(t, err)
		require.Len(t, entries, 1, "re-adding a release must replace, not duplicate, the entry")
		assert.True(t, entries[0].Watched)
		assert.Equal(t, watchlist.DISLIKE, *entries[0].Rating)
	})

	t.Run("PartialUpdate", func(t *testing.T) {
		// Only the rating changes; watched remains as-is
		entry, err := orchestrator.UpdateWatchlistEntry(usr.ID, releases[0].ID, nil, &like, false)
		require.NoError(t, err)
		assert.True(t, entry.Watched)
		assert.Equal(t, watchlist.LIKE, *entry.Rating)
	})

	t.Run("ClearRating", func(t *testing.T) {
		entry, err := orchestrator.UpdateWatchlistEntry(usr.ID, releases[0].ID, &watched, nil, true)
		require.NoError(t, err)
		assert.Nil(t, entry.Rating)

		// Clearing again is a no-op, not an error
		entry, err = orchestrator.UpdateWatchlistEntry(usr.ID, releases[0].ID, nil, nil, true)
		require.NoError(t, err)
		assert.Nil(t, entry.Rating)
	})

	t.Run("UpdateMissingEntry", func(t *testing.T) {
		_, err := orchestrator.UpdateWatchlistEntry(usr.ID, releases[1].ID, &watched, nil, false)
		assert.ErrorIs(t, err, watchlist.ErrEntryNotFound)
	})

	t.Run("RatedEntriesWindow", func(t *testing.T) {
		_, err := orchestrator.UpdateWatchlistEntry(usr.ID, releases[0].ID, nil, &like, false)
		require.NoError(t, err)
		require.NoError(t, orchestrator.SaveWatchlistEntry(&watchlist.Entry{
			UserID:    usr.ID,
			ReleaseID: releases[1].ID,
			Rating:    &dislike,
		}))

		entries, err := orchestrator.ListRatedEntriesInWindow(date(2026, time.April, 1), date(2026, time.April, 20))
		require.NoError(t, err)
		require.Len(t, entries, 1, "window end is exclusive")
		assert.Equal(t, releases[0].ID, entries[0].ReleaseID)
	})

	t.Run("LatestLikedRelease", func(t *testing.T) {
		releaseID, err := orchestrator.GetLatestLikedReleaseID(usr.ID)
		require.NoError(t, err)
		assert.Equal(t, releases[0].ID, releaseID)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, orchestrator.DeleteWatchlistEntry(usr.ID, releases[0].ID))
		_, err := orchestrator.GetWatchlistEntry(usr.ID, releases[0].ID)
		assert.ErrorIs(t, err, watchlist.ErrEntryNotFound)
	})
}

func TestUserStore_AccountsAndPreferences(t *testing.T) {
	db := helpers.ProvisionDatabase(t)
	orchestrator := internal.NewDataOrchestrator(db)

	password := []byte("correct-horse-battery")
	usr, err := orchestrator.CreateUser("alex@example.com", password)
	require.NoError(t, err)
	assert.False(t, usr.PreferencesCompleted)

	t.Run("DuplicateEmail", func(t *testing.T) {
		_, err := orchestrator.CreateUser("alex@example.com", []byte("another-password"))
		assert.ErrorIs(t, err, user.ErrEmailTaken)
	})

	t.Run("Login", func(t *testing.T) {
		found, err := orchestrator.GetUserWithEmailAndPassword("alex@example.com", password)
		require.NoError(t, err)
		assert.Equal(t, usr.ID, found.ID)

		_, err = orchestrator.GetUserWithEmailAndPassword("alex@example.com", []byte("wrong-password"))
		assert.Error(t, err)
	})

	t.Run("Preferences", func(t *testing.T) {
		genreIDs := seedGenres(t, orchestrator, "Horror", "Comedy", "Romance")

		prefs, err := orchestrator.GetUserPreferences(usr.ID)
		require.NoError(t, err)
		assert.False(t, prefs.Completed)
		assert.Empty(t, prefs.GenreIDs)

		require.NoError(t, orchestrator.ReplaceUserPreferences(usr.ID, genreIDs[:2]))
		prefs, err = orchestrator.GetUserPreferences(usr.ID)
		require.NoError(t, err)
		assert.True(t, prefs.Completed)
		assert.ElementsMatch(t, genreIDs[:2], prefs.GenreIDs)

		// Replacement is total: previously selected genres not re-submitted are dropped
		require.NoError(t, orchestrator.ReplaceUserPreferences(usr.ID, genreIDs[2:]))
		prefs, err = orchestrator.GetUserPreferences(usr.ID)
		require.NoError(t, err)
		assert.ElementsMatch(t, genreIDs[2:], prefs.GenreIDs)
	})
}
