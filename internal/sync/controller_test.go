package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdholdren/indexwatch/internal/checker"
	"github.com/jdholdren/indexwatch/internal/credential"
	"github.com/jdholdren/indexwatch/internal/database"
	"github.com/jdholdren/indexwatch/internal/database/dbtest"
	iwerrs "github.com/jdholdren/indexwatch/internal/errors"
	"github.com/jdholdren/indexwatch/internal/indexwatch"
	"github.com/jdholdren/indexwatch/internal/metrics"
)

var checkedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

// Reports every url as indexed in google, except those listed as failing.
type fakeChecker struct {
	failing map[string]bool
	calls   int
	err     error
}

func (f *fakeChecker) Check(_ context.Context, _ string, urls []string) ([]checker.Result, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}

	results := make([]checker.Result, len(urls))
	for i, u := range urls {
		if f.failing[u] {
			results[i] = checker.Result{URL: u, CheckedAt: checkedAt, Err: errors.New("unexpected status code 500")}
			continue
		}
		results[i] = checker.Result{URL: u, Google: true, CheckedAt: checkedAt}
	}

	return results, nil
}

func newTestController(t *testing.T, key string) (*Controller, database.Repo, *fakeChecker) {
	t.Helper()

	var (
		repo = dbtest.New(t)
		fc   = &fakeChecker{failing: map[string]bool{}}
	)

	return NewController(repo, fc, credential.Static(key), metrics.New(prometheus.NewRegistry())), repo, fc
}

func allResults(t *testing.T, repo database.Repo) []indexwatch.IndexationResult {
	t.Helper()

	results, _, err := repo.ListResults(context.Background(), indexwatch.ListResultsArgs{Page: 1, PageSize: 100})
	require.NoError(t, err)

	return results
}

func TestAddUrls_OverwritesByURL(t *testing.T) {
	var (
		ctx           = context.Background()
		ctrl, repo, _ = newTestController(t, "key")
	)

	out, err := ctrl.AddUrls(ctx, []string{" https://a.com "}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, out.Saved)
	assert.False(t, out.Partial())
	assert.Equal(t, "Added 1 URLs for monitoring", out.Message)

	_, err = ctrl.AddUrls(ctx, []string{"https://a.com"}, "")
	require.NoError(t, err)

	results := allResults(t, repo)
	require.Len(t, results, 1)
	assert.Equal(t, "https://a.com", results[0].URL)
	assert.True(t, results[0].Google)
}

func TestAddUrls_Group(t *testing.T) {
	var (
		ctx           = context.Background()
		ctrl, repo, _ = newTestController(t, "key")
	)

	first, err := ctrl.AddUrls(ctx, []string{"https://a.com", "https://b.com"}, "Blog")
	require.NoError(t, err)
	require.NotEmpty(t, first.GroupID)

	second, err := ctrl.AddUrls(ctx, []string{"https://b.com", "https://c.com"}, "Blog")
	require.NoError(t, err)
	assert.Equal(t, first.GroupID, second.GroupID)

	// By id resolves the same group
	third, err := ctrl.AddUrls(ctx, []string{"https://d.com"}, first.GroupID)
	require.NoError(t, err)
	assert.Equal(t, first.GroupID, third.GroupID)

	groups, err := repo.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Blog", groups[0].Name)
	assert.Equal(t, []string{"https://a.com", "https://b.com", "https://c.com", "https://d.com"}, groups[0].URLs)
}

func TestAddUrls_Invalid(t *testing.T) {
	ctrl, _, fc := newTestController(t, "key")

	_, err := ctrl.AddUrls(context.Background(), []string{" ", ""}, "")
	assert.Equal(t, iwerrs.KindInvalid, iwerrs.KindOf(err))

	_, err = ctrl.AddUrls(context.Background(), []string{"https://a.com"}, "<b></b>")
	assert.Equal(t, iwerrs.KindInvalid, iwerrs.KindOf(err))

	assert.Zero(t, fc.calls)
}

func TestMissingCredential(t *testing.T) {
	var (
		ctx            = context.Background()
		ctrl, repo, fc = newTestController(t, "")
	)

	_, err := ctrl.AddUrls(ctx, []string{"https://a.com"}, "Blog")
	assert.Equal(t, iwerrs.KindMissingCredential, iwerrs.KindOf(err))

	_, err = ctrl.CheckUrl(ctx, "https://a.com")
	assert.Equal(t, iwerrs.KindMissingCredential, iwerrs.KindOf(err))

	_, err = ctrl.RefreshAll(ctx, []string{"https://a.com"})
	assert.Equal(t, iwerrs.KindMissingCredential, iwerrs.KindOf(err))

	var e *iwerrs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, 412, e.Status)

	assert.Zero(t, fc.calls)
	assert.Empty(t, allResults(t, repo))
	groups, err := repo.ListGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestCredentialFromContext(t *testing.T) {
	var (
		repo  = dbtest.New(t)
		fc    = &fakeChecker{}
		creds = credential.Chain{credential.Context{}, credential.Settings{Repo: repo}}
		ctrl  = NewController(repo, fc, creds, metrics.New(prometheus.NewRegistry()))
	)

	_, err := ctrl.CheckUrl(context.Background(), "https://a.com")
	assert.Equal(t, iwerrs.KindMissingCredential, iwerrs.KindOf(err))

	_, err = ctrl.CheckUrl(credential.WithKey(context.Background(), "from-cookie"), "https://a.com")
	require.NoError(t, err)
}

func TestRefreshAll_PerURLFailure(t *testing.T) {
	var (
		ctx            = context.Background()
		ctrl, repo, fc = newTestController(t, "key")
	)
	fc.failing["https://b.com"] = true

	out, err := ctrl.RefreshAll(ctx, []string{"https://a.com", "https://b.com", "https://c.com"})
	require.NoError(t, err)
	assert.Equal(t, 3, out.Total)
	assert.Equal(t, 3, out.Saved)
	assert.Equal(t, []string{"https://b.com"}, out.Unchecked)

	results := allResults(t, repo)
	require.Len(t, results, 3)
	for _, r := range results {
		if r.URL != "https://b.com" {
			assert.True(t, r.Google, r.URL)
			continue
		}
		assert.False(t, r.Google)
		assert.False(t, r.Yandex)
		assert.True(t, checkedAt.Equal(r.Date))
	}

	groups, err := repo.ListGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestRefreshAll_Empty(t *testing.T) {
	ctrl, _, fc := newTestController(t, "key")

	out, err := ctrl.RefreshAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "No URLs to check", out.Message)
	assert.Zero(t, out.Total)
	assert.Zero(t, fc.calls)
}

func TestRefreshKnown(t *testing.T) {
	var (
		ctx         = context.Background()
		ctrl, _, fc = newTestController(t, "key")
	)
	_, err := ctrl.AddUrls(ctx, []string{"https://a.com", "https://b.com"}, "")
	require.NoError(t, err)

	out, err := ctrl.RefreshKnown(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Saved)
	assert.Equal(t, 2, fc.calls)
}

func TestCheckService_Error(t *testing.T) {
	ctrl, repo, fc := newTestController(t, "key")
	fc.err = context.Canceled

	_, err := ctrl.AddUrls(context.Background(), []string{"https://a.com"}, "")
	assert.Equal(t, iwerrs.KindCheckService, iwerrs.KindOf(err))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, allResults(t, repo))
}

func TestDeleteUrl(t *testing.T) {
	var (
		ctx           = context.Background()
		ctrl, repo, _ = newTestController(t, "key")
	)
	_, err := ctrl.AddUrls(ctx, []string{"https://a.com", "https://b.com"}, "Blog")
	require.NoError(t, err)
	_, err = ctrl.AddUrls(ctx, []string{"https://a.com"}, "Shop")
	require.NoError(t, err)

	require.NoError(t, ctrl.DeleteUrl(ctx, "https://a.com"))

	for _, r := range allResults(t, repo) {
		assert.NotEqual(t, "https://a.com", r.URL)
	}
	groups, err := repo.ListGroups(ctx)
	require.NoError(t, err)
	for _, g := range groups {
		assert.NotContains(t, g.URLs, "https://a.com", g.Name)
	}

	hist, err := ctrl.History(ctx, "https://a.com")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Empty(t, hist[0].Results)
}

// Fails every delete, to check both are attempted.
type failingDeletes struct {
	database.Repo
	calls []string
}

func (f *failingDeletes) DeleteResult(context.Context, string) error {
	f.calls = append(f.calls, "result")
	return errors.New("connection reset")
}

func (f *failingDeletes) DeleteURLLinks(context.Context, string) error {
	f.calls = append(f.calls, "links")
	return errors.New("connection reset")
}

func TestDeleteUrl_BothAttempted(t *testing.T) {
	var (
		repo = &failingDeletes{Repo: dbtest.New(t)}
		ctrl = NewController(repo, &fakeChecker{}, credential.Static("key"), metrics.New(prometheus.NewRegistry()))
	)

	err := ctrl.DeleteUrl(context.Background(), "https://a.com")
	assert.Equal(t, iwerrs.KindRemoteStore, iwerrs.KindOf(err))
	assert.Equal(t, []string{"result", "links"}, repo.calls)
}

// Fails the upsert of a single url.
type failingUpserts struct {
	database.Repo
	url string
}

func (f *failingUpserts) UpsertResult(ctx context.Context, r indexwatch.IndexationResult) error {
	if r.URL == f.url {
		return errors.New("disk full")
	}
	return f.Repo.UpsertResult(ctx, r)
}

func TestRefreshAll_PartialSave(t *testing.T) {
	var (
		repo = &failingUpserts{Repo: dbtest.New(t), url: "https://b.com"}
		ctrl = NewController(repo, &fakeChecker{failing: map[string]bool{}}, credential.Static("key"), metrics.New(prometheus.NewRegistry()))
	)

	out, err := ctrl.RefreshAll(context.Background(), []string{"https://a.com", "https://b.com"})
	require.NoError(t, err)
	assert.True(t, out.Partial())
	assert.Equal(t, 2, out.Total)
	assert.Equal(t, 1, out.Saved)
	require.Len(t, out.Failures, 1)
	assert.Equal(t, "https://b.com", out.Failures[0].URL)
	assert.Len(t, allResults(t, repo.Repo), 1)
}

func TestReload(t *testing.T) {
	var (
		ctx         = context.Background()
		ctrl, _, fc = newTestController(t, "key")
	)
	fc.failing["https://c.com"] = true
	_, err := ctrl.AddUrls(ctx, []string{"https://a.com", "https://b.com"}, "Blog")
	require.NoError(t, err)
	_, err = ctrl.AddUrls(ctx, []string{"https://c.com"}, "")
	require.NoError(t, err)
	empty, err := ctrl.CreateGroup(ctx, "Empty")
	require.NoError(t, err)

	t.Run("everything", func(t *testing.T) {
		dash, err := ctrl.Reload(ctx, ReloadArgs{Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Len(t, dash.Groups, 2)
		assert.Nil(t, dash.Group)
		assert.Equal(t, 3, dash.Total)
		assert.Equal(t, indexwatch.Stats{Total: 3, IndexedGoogle: 2, NotIndexed: 3}, dash.Stats)
	})

	t.Run("by group name", func(t *testing.T) {
		dash, err := ctrl.Reload(ctx, ReloadArgs{Group: "Blog", Page: 1, PageSize: 10})
		require.NoError(t, err)
		require.NotNil(t, dash.Group)
		assert.Equal(t, "Blog", dash.Group.Name)
		assert.Equal(t, 2, dash.Total)
	})

	t.Run("empty group", func(t *testing.T) {
		dash, err := ctrl.Reload(ctx, ReloadArgs{Group: empty.ID, Page: 1, PageSize: 10})
		require.NoError(t, err)
		assert.Zero(t, dash.Total)
		assert.Empty(t, dash.Results)
	})

	t.Run("unknown group", func(t *testing.T) {
		_, err := ctrl.Reload(ctx, ReloadArgs{Group: "nope", Page: 1, PageSize: 10})
		assert.Equal(t, iwerrs.KindNotFound, iwerrs.KindOf(err))
	})

	t.Run("results page", func(t *testing.T) {
		page, err := ctrl.Results(ctx, ReloadArgs{Group: "Blog", Page: 1, PageSize: 1})
		require.NoError(t, err)
		assert.Equal(t, 2, page.Total)
		assert.Len(t, page.Results, 1)
	})
}

func TestGroups(t *testing.T) {
	var (
		ctx        = context.Background()
		ctrl, _, _ = newTestController(t, "key")
	)

	g, err := ctrl.CreateGroup(ctx, "  <i>News</i> ")
	require.NoError(t, err)
	assert.Equal(t, "News", g.Name)

	_, err = ctrl.CreateGroup(ctx, "News")
	assert.Equal(t, iwerrs.KindConflict, iwerrs.KindOf(err))

	_, err = ctrl.CreateGroup(ctx, "f u c k")
	assert.Equal(t, iwerrs.KindInvalid, iwerrs.KindOf(err))

	assert.Equal(t, iwerrs.KindNotFound, iwerrs.KindOf(ctrl.RenameGroup(ctx, "missing", "Other")))
	require.NoError(t, ctrl.RenameGroup(ctx, g.ID, "Press"))

	_, err = ctrl.AddUrls(ctx, []string{"https://a.com", "https://b.com"}, g.ID)
	require.NoError(t, err)
	require.NoError(t, ctrl.RemoveURLFromGroup(ctx, g.ID, "https://a.com"))

	groups, err := ctrl.Groups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "Press", groups[0].Name)
	assert.Equal(t, []string{"https://b.com"}, groups[0].URLs)

	require.NoError(t, ctrl.DeleteGroup(ctx, g.ID))
	assert.Equal(t, iwerrs.KindNotFound, iwerrs.KindOf(ctrl.DeleteGroup(ctx, g.ID)))
}

func TestGroups_NameWithEntities(t *testing.T) {
	const name = "Tom's blog & shop"
	var (
		ctx        = context.Background()
		ctrl, _, _ = newTestController(t, "key")
	)

	g, err := ctrl.CreateGroup(ctx, name)
	require.NoError(t, err)
	assert.Equal(t, name, g.Name)

	out, err := ctrl.AddUrls(ctx, []string{"https://a.com"}, name)
	require.NoError(t, err)
	assert.Equal(t, g.ID, out.GroupID)

	dash, err := ctrl.Reload(ctx, ReloadArgs{Group: name, Page: 1, PageSize: 10})
	require.NoError(t, err)
	require.NotNil(t, dash.Group)
	assert.Equal(t, name, dash.Group.Name)
	assert.Equal(t, 1, dash.Total)
	require.Len(t, dash.Groups, 1)
	assert.Equal(t, name, dash.Groups[0].Name)

	require.NoError(t, ctrl.RenameGroup(ctx, g.ID, "<b>R&D</b>"))
	groups, err := ctrl.Groups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "R&D", groups[0].Name)
}

func TestHistory(t *testing.T) {
	var (
		ctx        = context.Background()
		ctrl, _, _ = newTestController(t, "key")
	)
	for range 3 {
		_, err := ctrl.CheckUrl(ctx, "https://a.com")
		require.NoError(t, err)
	}
	_, err := ctrl.CheckUrl(ctx, "https://b.com")
	require.NoError(t, err)

	hist, err := ctrl.History(ctx, "https://a.com")
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Len(t, hist[0].Results, 3)

	all, err := ctrl.History(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
