package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/hbomb79/Marquee/internal/http/tmdb"
	"github.com/hbomb79/Marquee/internal/release"
	"github.com/hbomb79/Marquee/pkg/logger"
)

var log = logger.Get("IngestServ")

type (
	catalogClient interface {
		FetchListing(queryType tmdb.QueryType, filter tmdb.FilterSpec) ([]release.CatalogItem, error)
		FetchGenres() ([]tmdb.GenreListEntry, error)
	}

	// ResolvedRelease is one catalog item ready for persistence: the
	// release row to upsert and the internal IDs of the genres it should
	// be associated with.
	ResolvedRelease struct {
		Release  release.Release
		GenreIDs []int
	}

	dataStore interface {
		SaveGenres(genres []*release.Genre) error
		GetGenresWithTmdbIDs(tmdbIDs []int) ([]*release.Genre, error)
		SaveReleaseBatch(items []ResolvedRelease) error
		DeleteOrphanReleases() (int64, error)
	}

	// ingestService refreshes Marquee's release catalog from TMDB. Each
	// refresh cycle:
	//   - Syncs the genre definitions (movie + TV) into the database
	//   - Evicts catalog rows no longer referenced by any watchlist
	//   - For each configured listing: fetches every page, keeps the top
	//     releases of each calendar day, resolves their genres and persists
	//     the batch in one transaction
	// A listing whose fetch fails is skipped for that cycle; batches
	// persisted by earlier listings remain.
	ingestService struct {
		*sync.Mutex
		Client catalogClient

		store   dataStore
		queries []resolvedQuery
		config  Config

		forceRefreshChan chan struct{}
		lastRefresh      *time.Time
	}
)

// New creates an ingestService using the provided config for subsequent
// calls to 'Run'. The configured queries and refresh time are validated
// eagerly so a bad config fails at startup.
func New(config Config, client catalogClient, store dataStore) (*ingestService, error) {
	queries, err := config.resolveQueries()
	if err != nil {
		return nil, err
	}

	if _, _, err := config.refreshClock(); err != nil {
		return nil, err
	}

	return &ingestService{
		Mutex:            &sync.Mutex{},
		Client:           client,
		store:            store,
		queries:          queries,
		config:           config,
		forceRefreshChan: make(chan struct{}, 1),
	}, nil
}

// Run is the main entry point of this service. It performs one refresh
// immediately if the catalog has never been refreshed, then sleeps until
// the configured nightly refresh time (or a manual trigger via
// RefreshNow). To kill the service, the calling code should cancel the
// provided context.
func (service *ingestService) Run(ctx context.Context) error {
	for {
		timer := time.NewTimer(time.Until(service.NextRefreshTime(time.Now())))
		select {
		case <-timer.C:
			service.Refresh()
		case <-service.forceRefreshChan:
			timer.Stop()
			service.Refresh()
		case <-ctx.Done():
			timer.Stop()
			return nil
		}
	}
}

// RefreshNow schedules an immediate refresh cycle. It never blocks; a
// trigger raised while a refresh is already pending is a no-op.
func (service *ingestService) RefreshNow() {
	select {
	case service.forceRefreshChan <- struct{}{}:
	default:
	}
}

// LastRefreshTime reports when the last refresh cycle completed, or nil
// if no cycle has completed since startup.
func (service *ingestService) LastRefreshTime() *time.Time {
	service.Lock()
	defer service.Unlock()

	return service.lastRefresh
}

// NextRefreshTime reports the next nightly trigger strictly after 'now'.
func (service *ingestService) NextRefreshTime(now time.Time) time.Time {
	hour, minute, _ := service.config.refreshClock()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}

	return next
}

// Refresh synchronously performs one full refresh cycle.
func (service *ingestService) Refresh() {
	log.Emit(logger.INFO, "Beginning catalog refresh\n")

	genreLookup, err := service.syncGenres()
	if err != nil {
		log.Errorf("Aborting catalog refresh, genre sync failed: %v\n", err)
		return
	}

	if evicted, err := service.store.DeleteOrphanReleases(); err != nil {
		log.Errorf("Aborting catalog refresh, could not evict stale releases: %v\n", err)
		return
	} else if evicted > 0 {
		log.Infof("Evicted %d stale releases from the catalog\n", evicted)
	}

	for _, query := range service.queries {
		if err := service.refreshListing(query, genreLookup); err != nil {
			log.Errorf("Refresh of listing %s failed (already-persisted listings are unaffected): %v\n", query.queryType, err)
		}
	}

	now := time.Now()
	service.Lock()
	service.lastRefresh = &now
	service.Unlock()

	log.Emit(logger.SUCCESS, "Catalog refresh complete\n")
}

// syncGenres upserts TMDB's genre definitions and returns a lookup from
// TMDB genre ID to the internal genre row ID. Genres are never deleted;
// user preferences may still reference ones TMDB has retired.
func (service *ingestService) syncGenres() (map[int]int, error) {
	entries, err := service.Client.FetchGenres()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch genre definitions: %w", err)
	}

	genres := make([]*release.Genre, len(entries))
	tmdbIDs := make([]int, len(entries))
	for k, v := range entries {
		genres[k] = &release.Genre{TmdbID: v.ID, Name: v.Name}
		tmdbIDs[k] = v.ID
	}

	if err := service.store.SaveGenres(genres); err != nil {
		return nil, fmt.Errorf("failed to persist genre definitions: %w", err)
	}

	stored, err := service.store.GetGenresWithTmdbIDs(tmdbIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to read back persisted genres: %w", err)
	}

	lookup := make(map[int]int, len(stored))
	for _, genre := range stored {
		lookup[genre.TmdbID] = genre.ID
	}

	return lookup, nil
}

func (service *ingestService) refreshListing(query resolvedQuery, genreLookup map[int]int) error {
	items, err := service.Client.FetchListing(query.queryType, query.filter)
	if err != nil {
		return err
	}

	selected := release.SelectDailyTop(items, service.config.DailyLimit)
	batch := make([]ResolvedRelease, len(selected))
	for k, item := range selected {
		batch[k] = ResolvedRelease{
			Release: release.Release{
				TmdbID:      item.SourceID,
				Title:       item.Title,
				Type:        item.Type,
				ReleaseDate: item.DateOnly(),
				Overview:    item.Overview,
				PosterPath:  item.PosterPath,
			},
			GenreIDs: resolveGenreIDs(item.GenreSourceIDs, genreLookup),
		}
	}

	if err := service.store.SaveReleaseBatch(batch); err != nil {
		return err
	}

	log.Infof("Persisted %d releases (of %d fetched) for listing %s\n", len(batch), len(items), query.queryType)
	return nil
}

// resolveGenreIDs maps TMDB genre IDs to internal row IDs. IDs with no
// matching genre definition are silently omitted.
func resolveGenreIDs(sourceIDs []int, genreLookup map[int]int) []int {
	resolved := make([]int, 0, len(sourceIDs))
	for _, sourceID := range sourceIDs {
		if internalID, ok := genreLookup[sourceID]; ok {
			resolved = append(resolved, internalID)
		}
	}

	return resolved
}
