package release

import (
	"sort"
	"time"
)

// DefaultDailyLimit is the number of releases retained per calendar
// day by SelectDailyTop when no override is configured.
const DefaultDailyLimit = 3

// SelectDailyTop bounds the volume of catalog items persisted per calendar
// day. Items are partitioned by their date (day granularity), ranked within
// each day by popularity descending (ties broken by source ID ascending so
// the selection is deterministic), and each day's group is truncated to at
// most 'limit' items. Surviving items are returned as a single flat sequence
// ordered by day ascending, then rank.
//
// A non-positive limit falls back to DefaultDailyLimit.
func SelectDailyTop(items []CatalogItem, limit int) []CatalogItem {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	if len(items) == 0 {
		return []CatalogItem{}
	}

	groups := make(map[time.Time][]CatalogItem)
	for _, item := range items {
		day := item.DateOnly()
		groups[day] = append(groups[day], item)
	}

	days := make([]time.Time, 0, len(groups))
	for day := range groups {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	selected := make([]CatalogItem, 0, len(items))
	for _, day := range days {
		group := groups[day]
		sort.Slice(group, func(i, j int) bool {
			if group[i].Popularity != group[j].Popularity {
				return group[i].Popularity > group[j].Popularity
			}
			return group[i].SourceID < group[j].SourceID
		})

		if len(group) > limit {
			group = group[:limit]
		}
		selected = append(selected, group...)
	}

	return selected
}
