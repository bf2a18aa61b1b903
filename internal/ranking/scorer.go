package ranking

import (
	"sort"
	"time"

	"github.com/hbomb79/Marquee/internal/release"
	"github.com/hbomb79/Marquee/internal/watchlist"
)

// Popular computes the community engagement ranking for releases whose date
// falls inside the half-open window [from, to). Each LIKE rating contributes
// +1 to its release's score and each DISLIKE -1; unrated watchlist entries
// contribute nothing. Releases with no watchlist entries in the window never
// appear. The top 'limit' releases are returned as display records in rank
// order (score descending, release ID ascending on ties).
//
// An empty window is a valid empty result, not an error.
func (service *Service) Popular(from time.Time, to time.Time, limit int) ([]*release.Stub, error) {
	entries, err := service.store.ListRatedEntriesInWindow(from, to)
	if err != nil {
		return nil, err
	}

	scores := accumulateScores(entries)
	ranked := rankByScore(scores, clampLimit(limit))

	return stubsInRankOrder(service.store, ranked)
}

func accumulateScores(entries []*watchlist.RatedEntry) map[int64]int {
	scores := make(map[int64]int, len(entries))
	for _, entry := range entries {
		delta := 0
		if entry.Rating != nil {
			switch *entry.Rating {
			case watchlist.LIKE:
				delta = 1
			case watchlist.DISLIKE:
				delta = -1
			}
		}

		scores[entry.ReleaseID] += delta
	}

	return scores
}

func rankByScore(scores map[int64]int, limit int) []int64 {
	ranked := make([]int64, 0, len(scores))
	for id := range scores {
		ranked = append(ranked, id)
	}

	sort.Slice(ranked, func(i, j int) bool {
		if scores[ranked[i]] != scores[ranked[j]] {
			return scores[ranked[i]] > scores[ranked[j]]
		}
		return ranked[i] < ranked[j]
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}

	return ranked
}
