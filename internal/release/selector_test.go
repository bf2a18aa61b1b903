package release_test

import (
	"testing"
	"time"

	"github.com/hbomb79/Marquee/internal/release"
	"github.com/stretchr/testify/assert"
)

func day(value string) time.Time {
	parsed, err := time.Parse(time.DateOnly, value)
	if err != nil {
		panic(err)
	}

	return parsed
}

func item(sourceID int64, date string, popularity float64) release.CatalogItem {
	return release.CatalogItem{
		SourceID:   sourceID,
		Title:      "item",
		Type:       release.MOVIE,
		Date:       day(date),
		Popularity: popularity,
	}
}

func sourceIDs(items []release.CatalogItem) []int64 {
	ids := make([]int64, len(items))
	for k, v := range items {
		ids[k] = v.SourceID
	}

	return ids
}

func Test_SelectDailyTop_RanksWithinDay(t *testing.T) {
	items := []release.CatalogItem{
		item(1, "2024-01-01", 10),
		item(2, "2024-01-01", 50),
		item(3, "2024-01-01", 5),
		item(4, "2024-01-02", 1),
	}

	selected := release.SelectDailyTop(items, 3)
	assert.Equal(t, []int64{2, 1, 3, 4}, sourceIDs(selected))
}

func Test_SelectDailyTop_TruncatesEachDay(t *testing.T) {
	items := []release.CatalogItem{
		item(1, "2024-03-10", 1),
		item(2, "2024-03-10", 2),
		item(3, "2024-03-10", 3),
		item(4, "2024-03-10", 4),
		item(5, "2024-03-10", 5),
		item(6, "2024-03-11", 9),
		item(7, "2024-03-11", 8),
	}

	selected := release.SelectDailyTop(items, 3)
	assert.Equal(t, []int64{5, 4, 3, 6, 7}, sourceIDs(selected))

	// No calendar day may retain more than the limit
	perDay := make(map[time.Time]int)
	for _, v := range selected {
		perDay[v.DateOnly()]++
		assert.LessOrEqual(t, perDay[v.DateOnly()], 3)
	}
}

func Test_SelectDailyTop_PopularityTiesBreakOnSourceID(t *testing.T) {
	items := []release.CatalogItem{
		item(30, "2024-06-01", 7),
		item(10, "2024-06-01", 7),
		item(20, "2024-06-01", 7),
	}

	selected := release.SelectDailyTop(items, 2)
	assert.Equal(t, []int64{10, 20}, sourceIDs(selected))
}

func Test_SelectDailyTop_SmallGroupsSurviveUnchanged(t *testing.T) {
	items := []release.CatalogItem{
		item(1, "2024-01-05", 2),
		item(2, "2024-01-06", 1),
	}

	selected := release.SelectDailyTop(items, 3)
	assert.Equal(t, []int64{1, 2}, sourceIDs(selected))
}

func Test_SelectDailyTop_EmptyInput(t *testing.T) {
	assert.Empty(t, release.SelectDailyTop([]release.CatalogItem{}, 3))
	assert.Empty(t, release.SelectDailyTop(nil, 3))
}

func Test_SelectDailyTop_NonPositiveLimitUsesDefault(t *testing.T) {
	items := []release.CatalogItem{
		item(1, "2024-01-01", 1),
		item(2, "2024-01-01", 2),
		item(3, "2024-01-01", 3),
		item(4, "2024-01-01", 4),
	}

	selected := release.SelectDailyTop(items, 0)
	assert.Len(t, selected, release.DefaultDailyLimit)
	assert.Equal(t, []int64{4, 3, 2}, sourceIDs(selected))
}

func Test_SelectDailyTop_TimeOfDayCollapsesToOneGroup(t *testing.T) {
	morning := release.CatalogItem{SourceID: 1, Date: time.Date(2024, 2, 2, 8, 0, 0, 0, time.UTC), Popularity: 1}
	evening := release.CatalogItem{SourceID: 2, Date: time.Date(2024, 2, 2, 20, 30, 0, 0, time.UTC), Popularity: 2}
	midnight := release.CatalogItem{SourceID: 3, Date: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC), Popularity: 3}

	selected := release.SelectDailyTop([]release.CatalogItem{morning, evening, midnight}, 2)
	assert.Equal(t, []int64{3, 2}, sourceIDs(selected))
}
