package ingest

import (
	"fmt"
	"time"

	"github.com/hbomb79/Marquee/internal/http/tmdb"
	"github.com/mitchellh/mapstructure"
)

// Config controls the catalog refresh cycle: when it runs, which TMDB
// listings it polls, and how many releases per calendar day survive
// selection.
type Config struct {
	// ApiKey is the TMDB API key used for all catalog requests.
	ApiKey string `yaml:"api_key" env:"TMDB_API_KEY"`

	// RefreshTime is the local wall-clock time ("HH:MM") at which the
	// nightly refresh fires.
	RefreshTime string `yaml:"refresh_time" env:"INGEST_REFRESH_TIME" env-default:"00:30"`

	// DailyLimit is the number of releases retained per calendar day per
	// query. Non-positive values fall back to the selector default.
	DailyLimit int `yaml:"daily_limit" env:"INGEST_DAILY_LIMIT" env-default:"3"`

	// Queries lists the TMDB listings to poll. When empty, all supported
	// listings are polled unfiltered.
	Queries []QueryConfig `yaml:"queries"`
}

// QueryConfig is one listing to poll. The filter is declared as a loose
// map in YAML and decoded into the client's typed spec when the service
// is constructed, so malformed filters fail at startup rather than at
// half past midnight.
type QueryConfig struct {
	Query  string         `yaml:"query"`
	Filter map[string]any `yaml:"filter"`
}

var supportedQueries = map[string]tmdb.QueryType{
	string(tmdb.DiscoverMovies): tmdb.DiscoverMovies,
	string(tmdb.DiscoverTv):     tmdb.DiscoverTv,
	string(tmdb.UpcomingMovies): tmdb.UpcomingMovies,
	string(tmdb.AiringToday):    tmdb.AiringToday,
}

type resolvedQuery struct {
	queryType tmdb.QueryType
	filter    tmdb.FilterSpec
}

func (config *Config) resolveQueries() ([]resolvedQuery, error) {
	if len(config.Queries) == 0 {
		return []resolvedQuery{
			{queryType: tmdb.DiscoverMovies},
			{queryType: tmdb.DiscoverTv},
			{queryType: tmdb.UpcomingMovies},
			{queryType: tmdb.AiringToday},
		}, nil
	}

	resolved := make([]resolvedQuery, len(config.Queries))
	for k, v := range config.Queries {
		queryType, ok := supportedQueries[v.Query]
		if !ok {
			return nil, fmt.Errorf("ingest query '%s' is not a supported listing", v.Query)
		}

		var filter tmdb.FilterSpec
		if err := mapstructure.Decode(v.Filter, &filter); err != nil {
			return nil, fmt.Errorf("ingest query '%s' has a malformed filter: %w", v.Query, err)
		}

		resolved[k] = resolvedQuery{queryType: queryType, filter: filter}
	}

	return resolved, nil
}

// refreshClock parses the configured refresh time into an hour/minute pair.
func (config *Config) refreshClock() (int, int, error) {
	parsed, err := time.Parse("15:04", config.RefreshTime)
	if err != nil {
		return 0, 0, fmt.Errorf("refresh time '%s' is not a valid HH:MM clock time: %w", config.RefreshTime, err)
	}

	return parsed.Hour(), parsed.Minute(), nil
}
