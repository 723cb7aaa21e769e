package database_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/indexwatch/internal/database/dbtest"
	"github.com/jdholdren/indexwatch/internal/indexwatch"
)

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestUpsertResult_Overwrites(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = dbtest.New(t)
	)

	require.NoError(t, repo.UpsertResult(ctx, indexwatch.IndexationResult{
		URL:    "https://example.com",
		Google: true,
		Date:   baseTime,
	}))

	indexed := baseTime.AddDate(0, 0, -3)
	require.NoError(t, repo.UpsertResult(ctx, indexwatch.IndexationResult{
		URL:             "https://example.com",
		Yandex:          true,
		Date:            baseTime.Add(time.Hour),
		YandexIndexDate: &indexed,
	}))

	results, total, err := repo.ListResults(ctx, indexwatch.ListResultsArgs{Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, results, 1)

	got := results[0]
	assert.Equal(t, "https://example.com", got.URL)
	assert.False(t, got.Google)
	assert.True(t, got.Yandex)
	assert.True(t, baseTime.Add(time.Hour).Equal(got.Date))
	require.NotNil(t, got.YandexIndexDate)
	assert.True(t, indexed.Equal(*got.YandexIndexDate))
}

func TestListResults_EmptyFilter(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = dbtest.New(t)
	)
	require.NoError(t, repo.UpsertResult(ctx, indexwatch.IndexationResult{URL: "https://a.com", Date: baseTime}))

	results, total, err := repo.ListResults(ctx, indexwatch.ListResultsArgs{URLs: []string{}, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.NotNil(t, results)
	assert.Zero(t, total)
}

func TestListResults_Filters(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = dbtest.New(t)
	)
	for i, u := range []string{"https://a.com/blog", "https://b.com/Blog/post", "https://c.com"} {
		require.NoError(t, repo.UpsertResult(ctx, indexwatch.IndexationResult{
			URL:    u,
			Google: i%2 == 0,
			Date:   baseTime.Add(time.Duration(i) * time.Minute),
		}))
	}

	t.Run("by urls", func(t *testing.T) {
		results, total, err := repo.ListResults(ctx, indexwatch.ListResultsArgs{
			URLs:     []string{"https://a.com/blog", "https://c.com", "https://unknown.com"},
			Page:     1,
			PageSize: 10,
		})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.Equal(t, []string{"https://c.com", "https://a.com/blog"}, urlsOf(results))
	})

	t.Run("search is case insensitive", func(t *testing.T) {
		results, total, err := repo.ListResults(ctx, indexwatch.ListResultsArgs{Search: "BLOG", Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		assert.ElementsMatch(t, []string{"https://a.com/blog", "https://b.com/Blog/post"}, urlsOf(results))
	})

	t.Run("sorted by url ascending", func(t *testing.T) {
		results, _, err := repo.ListResults(ctx, indexwatch.ListResultsArgs{Sort: indexwatch.SortURL, Asc: true, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Equal(t, []string{"https://a.com/blog", "https://b.com/Blog/post", "https://c.com"}, urlsOf(results))
	})

	t.Run("bad page size", func(t *testing.T) {
		_, _, err := repo.ListResults(ctx, indexwatch.ListResultsArgs{Page: 1})
		assert.Error(t, err)
	})
}

func TestListResults_SearchIsLiteral(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = dbtest.New(t)
	)
	for _, u := range []string{"https://a.com/my_page", "https://a.com/myXpage", "https://a.com/100pct"} {
		require.NoError(t, repo.UpsertResult(ctx, indexwatch.IndexationResult{URL: u, Date: baseTime}))
	}

	tests := []struct {
		search string
		want   []string
	}{
		{search: "my_page", want: []string{"https://a.com/my_page"}},
		{search: "%", want: []string{}},
		{search: `\`, want: []string{}},
		{search: "100pct", want: []string{"https://a.com/100pct"}},
	}
	for _, tt := range tests {
		t.Run(tt.search, func(t *testing.T) {
			results, total, err := repo.ListResults(ctx, indexwatch.ListResultsArgs{Search: tt.search, Page: 1, PageSize: 10})
			require.NoError(t, err)
			assert.Equal(t, len(tt.want), total)
			assert.Equal(t, tt.want, urlsOf(results))
		})
	}
}

func TestListResults_ByGroup(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = dbtest.New(t)
	)
	for i, u := range []string{"https://a.com", "https://b.com", "https://c.com"} {
		require.NoError(t, repo.UpsertResult(ctx, indexwatch.IndexationResult{
			URL:  u,
			Date: baseTime.Add(time.Duration(i) * time.Minute),
		}))
	}
	blog, err := repo.CreateGroup(ctx, "Blog")
	require.NoError(t, err)
	require.NoError(t, repo.AddURLsToGroup(ctx, blog.ID, []string{"https://a.com", "https://c.com", "https://unchecked.com"}))
	empty, err := repo.CreateGroup(ctx, "Empty")
	require.NoError(t, err)

	results, total, err := repo.ListResults(ctx, indexwatch.ListResultsArgs{GroupID: blog.ID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, []string{"https://c.com", "https://a.com"}, urlsOf(results))

	results, total, err = repo.ListResults(ctx, indexwatch.ListResultsArgs{GroupID: blog.ID, Search: "a.com", Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, []string{"https://a.com"}, urlsOf(results))

	results, total, err = repo.ListResults(ctx, indexwatch.ListResultsArgs{GroupID: empty.ID, Page: 1, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, results)
}

func TestListResults_Pagination(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = dbtest.New(t)
	)
	for i := range 25 {
		require.NoError(t, repo.UpsertResult(ctx, indexwatch.IndexationResult{
			URL:  fmt.Sprintf("https://site-%02d.com", i),
			Date: baseTime.Add(time.Duration(i) * time.Minute),
		}))
	}

	tests := []struct {
		page int
		want int
	}{
		{page: 1, want: 10},
		{page: 3, want: 5},
		{page: 4, want: 0},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("page %d", tt.page), func(t *testing.T) {
			results, total, err := repo.ListResults(ctx, indexwatch.ListResultsArgs{Page: tt.page, PageSize: 10})
			require.NoError(t, err)
			assert.Equal(t, 25, total)
			assert.Len(t, results, tt.want)
		})
	}

	// Newest first by default
	results, _, err := repo.ListResults(ctx, indexwatch.ListResultsArgs{Page: 1, PageSize: 1})
	require.NoError(t, err)
	assert.Equal(t, "https://site-24.com", results[0].URL)
}

func TestDeleteResult(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = dbtest.New(t)
	)
	require.NoError(t, repo.UpsertResult(ctx, indexwatch.IndexationResult{URL: "https://a.com", Date: baseTime}))

	require.NoError(t, repo.DeleteResult(ctx, "https://a.com"))
	require.NoError(t, repo.DeleteResult(ctx, "https://a.com"), "deleting twice is fine")

	urls, err := repo.AllResultURLs(ctx)
	require.NoError(t, err)
	assert.Empty(t, urls)

	hist, err := repo.URLHistory(ctx, "https://a.com")
	require.NoError(t, err)
	assert.Empty(t, hist)
}

func TestHistory_Capped(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = dbtest.New(t)
	)
	for i := range indexwatch.HistoryLimit + 5 {
		require.NoError(t, repo.UpsertResult(ctx, indexwatch.IndexationResult{
			URL:    "https://a.com",
			Google: i%2 == 0,
			Date:   baseTime.Add(time.Duration(i) * time.Hour),
		}))
	}
	require.NoError(t, repo.UpsertResult(ctx, indexwatch.IndexationResult{URL: "https://b.com", Date: baseTime}))

	entries, err := repo.URLHistory(ctx, "https://a.com")
	require.NoError(t, err)
	require.Len(t, entries, indexwatch.HistoryLimit)
	assert.True(t, baseTime.Add(time.Duration(indexwatch.HistoryLimit+4)*time.Hour).Equal(entries[0].Date), "newest first")
	assert.True(t, baseTime.Add(5*time.Hour).Equal(entries[len(entries)-1].Date), "oldest evicted")

	all, err := repo.History(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "https://a.com", all[0].URL)
	assert.Len(t, all[0].Results, indexwatch.HistoryLimit)
	assert.Equal(t, "https://b.com", all[1].URL)
	assert.Len(t, all[1].Results, 1)
}

func TestResultStats(t *testing.T) {
	var (
		ctx  = context.Background()
		repo = dbtest.New(t)
	)

	stats, err := repo.ResultStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, indexwatch.Stats{}, stats)

	for _, r := range []indexwatch.IndexationResult{
		{URL: "https://both.com", Google: true, Yandex: true},
		{URL: "https://google.com", Google: true},
		{URL: "https://yandex.com", Yandex: true},
		{URL: "https://none.com"},
	} {
		r.Date = baseTime
		require.NoError(t, repo.UpsertResult(ctx, r))
	}

	stats, err = repo.ResultStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, indexwatch.Stats{
		Total:         4,
		IndexedGoogle: 2,
		IndexedYandex: 2,
		NotIndexed:    3,
	}, stats)
}

func urlsOf(results []indexwatch.IndexationResult) []string {
	urls := make([]string, len(results))
	for i, r := range results {
		urls[i] = r.URL
	}

	return urls
}
