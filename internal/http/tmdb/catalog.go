package tmdb

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hbomb79/Marquee/internal/release"
	"github.com/hbomb79/Marquee/pkg/logger"
)

const (
	tmdbBaseUrl = "https://api.themoviedb.org/3"

	tmdbGenreListTemplate = "%s/genre/%s/list?api_key=%s"

	// TMDB caps paginated listings at 500 pages; requesting beyond that
	// is an API error.
	tmdbMaxPages = 500
)

var log = logger.Get("TMDB")

// QueryType is one of the TMDB listing endpoints the ingestion service
// polls for new content.
type QueryType string

const (
	DiscoverMovies QueryType = "discover/movie"
	DiscoverTv     QueryType = "discover/tv"
	UpcomingMovies QueryType = "movie/upcoming"
	AiringToday    QueryType = "tv/airing_today"
)

// ReleaseType maps the query endpoint to the type of release it yields.
func (queryType QueryType) ReleaseType() release.Type {
	switch queryType {
	case DiscoverTv, AiringToday:
		return release.TV
	default:
		return release.MOVIE
	}
}

type (
	Date   struct{ time.Time }
	Config struct {
		ApiKey string
		// BaseUrl overrides the TMDB API host; empty means the real API.
		BaseUrl string
	}

	// FilterSpec narrows a discover-style listing. Zero-valued fields are
	// omitted from the request. Date bounds only apply to the discover
	// endpoints; the upcoming/airing listings define their own window.
	FilterSpec struct {
		Language       string  `mapstructure:"language"`
		SortBy         string  `mapstructure:"sort_by"`
		DateFrom       string  `mapstructure:"date_from"`
		DateTo         string  `mapstructure:"date_to"`
		MinVoteCount   int     `mapstructure:"min_vote_count"`
		MinVoteAverage float64 `mapstructure:"min_vote_average"`
	}

	GenreListEntry struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	genreListResponse struct {
		Genres []GenreListEntry `json:"genres"`
	}

	listingPage struct {
		Page         int            `json:"page"`
		Results      []listingEntry `json:"results"`
		TotalPages   int            `json:"total_pages"`
		TotalResults int            `json:"total_results"`
	}

	// listingEntry is the union of the movie and TV result shapes; movies
	// populate title/release_date, TV shows name/first_air_date.
	listingEntry struct {
		Id           json.Number `json:"id"`
		Title        string      `json:"title"`
		Name         string      `json:"name"`
		Overview     string      `json:"overview"`
		PosterPath   *string     `json:"poster_path"`
		Popularity   float64     `json:"popularity"`
		GenreIds     []int       `json:"genre_ids"`
		ReleaseDate  *Date       `json:"release_date"`
		FirstAirDate *Date       `json:"first_air_date"`
	}

	// catalogClient fetches release listings and genre definitions from
	// the TMDB API for the ingestion service.
	// See https://developer.themoviedb.org/reference/intro/getting-started for
	// information on the TMDB API.
	catalogClient struct {
		config Config
	}
)

func NewClient(config Config) *catalogClient {
	return &catalogClient{config}
}

func (client *catalogClient) baseUrl() string {
	if client.config.BaseUrl != "" {
		return client.config.BaseUrl
	}

	return tmdbBaseUrl
}

// FetchListing retrieves every page of the given listing endpoint, filtered
// per the provided spec, and normalizes the results into catalog items.
// Entries with a missing or unparseable date are dropped (with a log entry)
// as they cannot participate in day-based selection.
func (client *catalogClient) FetchListing(queryType QueryType, filter FilterSpec) ([]release.CatalogItem, error) {
	items := make([]release.CatalogItem, 0)
	for pageNumber := 1; pageNumber <= tmdbMaxPages; pageNumber++ {
		path := client.listingPath(queryType, filter, pageNumber)
		var page listingPage
		if err := httpGetJsonResponse(path, &page); err != nil {
			return nil, err
		}

		items = append(items, normalizeEntries(queryType, page.Results)...)
		if pageNumber >= page.TotalPages {
			break
		}
	}

	return items, nil
}

// FetchGenres retrieves the genre definitions for both the movie and TV
// catalogs, merged and de-duplicated on the TMDB genre ID.
func (client *catalogClient) FetchGenres() ([]GenreListEntry, error) {
	merged := make([]GenreListEntry, 0)
	seen := make(map[int]struct{})
	for _, catalog := range []string{"movie", "tv"} {
		path := fmt.Sprintf(tmdbGenreListTemplate, client.baseUrl(), catalog, client.config.ApiKey)
		var response genreListResponse
		if err := httpGetJsonResponse(path, &response); err != nil {
			return nil, err
		}

		for _, entry := range response.Genres {
			if _, ok := seen[entry.ID]; ok {
				continue
			}

			seen[entry.ID] = struct{}{}
			merged = append(merged, entry)
		}
	}

	return merged, nil
}

func (client *catalogClient) listingPath(queryType QueryType, filter FilterSpec, pageNumber int) string {
	params := url.Values{}
	params.Set("api_key", client.config.ApiKey)
	params.Set("page", fmt.Sprint(pageNumber))

	if filter.Language != "" {
		params.Set("language", filter.Language)
	}
	if filter.SortBy != "" {
		params.Set("sort_by", filter.SortBy)
	}
	if filter.MinVoteCount > 0 {
		params.Set("vote_count.gte", fmt.Sprint(filter.MinVoteCount))
	}
	if filter.MinVoteAverage > 0 {
		params.Set("vote_average.gte", fmt.Sprint(filter.MinVoteAverage))
	}

	// The discover endpoints name their date filters after the type of
	// content they list.
	if queryType == DiscoverMovies || queryType == DiscoverTv {
		dateField := "primary_release_date"
		if queryType == DiscoverTv {
			dateField = "first_air_date"
		}

		if filter.DateFrom != "" {
			params.Set(dateField+".gte", filter.DateFrom)
		}
		if filter.DateTo != "" {
			params.Set(dateField+".lte", filter.DateTo)
		}
	}

	return fmt.Sprintf("%s/%s?%s", client.baseUrl(), queryType, params.Encode())
}

func normalizeEntries(queryType QueryType, entries []listingEntry) []release.CatalogItem {
	releaseType := queryType.ReleaseType()
	items := make([]release.CatalogItem, 0, len(entries))
	for _, entry := range entries {
		sourceID, err := entry.Id.Int64()
		if err != nil {
			log.Warnf("Dropping %s listing entry with malformed ID %q: %v\n", queryType, entry.Id, err)
			continue
		}

		date := entry.effectiveDate(releaseType)
		if date == nil || date.IsZero() {
			log.Debugf("Dropping %s listing entry %d (%q) with missing/unparseable date\n", queryType, sourceID, entry.effectiveTitle())
			continue
		}

		items = append(items, release.CatalogItem{
			SourceID:       sourceID,
			Title:          entry.effectiveTitle(),
			Type:           releaseType,
			Date:           date.Time,
			Overview:       entry.Overview,
			PosterPath:     entry.PosterPath,
			Popularity:     entry.Popularity,
			GenreSourceIDs: entry.GenreIds,
		})
	}

	return items
}

func (entry *listingEntry) effectiveTitle() string {
	if entry.Title != "" {
		return entry.Title
	}

	return entry.Name
}

// effectiveDate selects the date field the listing's release type carries:
// first_air_date for TV listings, release_date for movie listings.
func (entry *listingEntry) effectiveDate(releaseType release.Type) *Date {
	if releaseType == release.TV {
		return entry.FirstAirDate
	}

	return entry.ReleaseDate
}

// UnmarshalJSON is deliberately lenient: TMDB represents an unknown date as
// an empty string, and occasionally returns garbage. Those decode to the
// zero Date (and the entry is later dropped) rather than failing the page.
func (date *Date) UnmarshalJSON(dateBytes []byte) error {
	trimmedDateString := strings.Trim(string(dateBytes), `"`)
	if trimmedDateString == "" || trimmedDateString == "null" {
		*date = Date{}
		return nil
	}

	parsed, err := time.Parse(time.DateOnly, trimmedDateString)
	if err != nil {
		*date = Date{}
		return nil
	}

	*date = Date{parsed}
	return nil
}

func httpGetJsonResponse(urlPath string, targetInterface interface{}) error {
	resp, err := http.Get(urlPath)
	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to perform GET(%s) to TMDB: %s", urlPath, err.Error())}
	}

	defer resp.Body.Close()
	respBody, err := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var tmdbError tmdbError
		if err := json.Unmarshal(respBody, &tmdbError); err != nil {
			return &FailedRequestError{httpCode: resp.StatusCode, message: "non-OK response could not be unmarshalled", tmdbCode: -1}
		}

		return &FailedRequestError{httpCode: resp.StatusCode, message: tmdbError.StatusMessage, tmdbCode: tmdbError.StatusCode}
	}

	if err != nil {
		return &UnknownRequestError{fmt.Sprintf("failed to read response body: %s", err.Error())}
	}

	if err := json.Unmarshal(respBody, targetInterface); err != nil {
		return &UnknownRequestError{fmt.Sprintf("response JSON could not be unmarshalled: %s", err.Error())}
	}

	return nil
}

type (
	tmdbError struct {
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
	}
	FailedRequestError struct {
		httpCode int
		tmdbCode int
		message  string
	}
	UnknownRequestError struct{ reason string }
)

func (err *UnknownRequestError) Error() string {
	return fmt.Sprintf("unknown error occurred while communicating with TMDB: %s", err.reason)
}
func (err *FailedRequestError) Error() string {
	return fmt.Sprintf("Request failure (HTTP %d): %s", err.httpCode, err.message)
}
