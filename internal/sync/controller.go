// Package sync coordinates indexation checks with the stored results and
// groups: the mutations behind the dashboard and the reads that refresh it.
package sync

import (
	"context"
	goerrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jdholdren/indexwatch/internal/checker"
	"github.com/jdholdren/indexwatch/internal/credential"
	iwerrs "github.com/jdholdren/indexwatch/internal/errors"
	"github.com/jdholdren/indexwatch/internal/indexwatch"
	"github.com/jdholdren/indexwatch/internal/logger"
	"github.com/jdholdren/indexwatch/internal/metrics"
)

// Checker checks the indexation of a batch of urls, one result per url in
// input order.
type Checker interface {
	Check(ctx context.Context, key string, urls []string) ([]checker.Result, error)
}

// Controller runs the dashboard operations. It holds no state of its own.
type Controller struct {
	repo    indexwatch.Repository
	checker Checker
	creds   credential.Source
	metrics *metrics.Metrics
}

func NewController(repo indexwatch.Repository, c Checker, creds credential.Source, m *metrics.Metrics) *Controller {
	return &Controller{
		repo:    repo,
		checker: c,
		creds:   creds,
		metrics: m,
	}
}

type (
	// Outcome summarizes a batch of checks and the writes that followed.
	Outcome struct {
		Message  string    `json:"message"`
		Total    int       `json:"total"`
		Saved    int       `json:"saved"`
		Failures []Failure `json:"failures"`
		// Urls the check service couldn't answer for, saved as not indexed
		Unchecked []string                      `json:"unchecked"`
		GroupID   string                        `json:"group_id,omitempty"`
		Results   []indexwatch.IndexationResult `json:"results"`
	}

	// Failure is a url whose result couldn't be saved.
	Failure struct {
		URL   string `json:"url"`
		Error string `json:"error"`
	}
)

// Partial reports if some results of the batch weren't saved.
func (o Outcome) Partial() bool {
	return o.Saved < o.Total
}

// AddUrls checks the urls, saves the results and adds the urls to the group
// named by groupIDOrName, creating it when no group has that id or name.
func (c *Controller) AddUrls(ctx context.Context, urls []string, groupIDOrName string) (Outcome, error) {
	urls = normalizeURLs(urls)
	if len(urls) == 0 {
		return Outcome{}, iwerrs.E(iwerrs.KindInvalid, "no urls given")
	}

	groupIDOrName = strings.TrimSpace(groupIDOrName)
	if groupIDOrName != "" {
		if err := validGroupName(groupIDOrName); err != nil {
			return Outcome{}, err
		}
	}

	ctx = logger.Ctx(ctx, slog.String("op", "add_urls"), slog.Int("url_count", len(urls)))

	key, err := c.key(ctx)
	if err != nil {
		return Outcome{}, err
	}

	var group indexwatch.UrlGroup
	if groupIDOrName != "" {
		group, err = c.resolveGroup(ctx, groupIDOrName)
		if err != nil {
			return Outcome{}, err
		}
		ctx = logger.Ctx(ctx, slog.String("group_id", group.ID))
	}

	out, err := c.checkAndSave(ctx, key, urls)
	if err != nil {
		return out, err
	}
	out.GroupID = group.ID
	out.Message = fmt.Sprintf("Added %d URLs for monitoring", out.Saved)

	if group.ID == "" {
		return out, nil
	}

	// Linking doesn't depend on which upserts succeeded
	if err := c.repo.AddURLsToGroup(ctx, group.ID, urls); err != nil {
		slog.ErrorContext(ctx, "error adding urls to group", "error", err)
		return out, iwerrs.E(iwerrs.KindRemoteStore, fmt.Errorf("error adding urls to group: %w", err))
	}

	return out, nil
}

// CheckUrl checks a single url and saves its result.
func (c *Controller) CheckUrl(ctx context.Context, url string) (indexwatch.IndexationResult, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return indexwatch.IndexationResult{}, iwerrs.E(iwerrs.KindInvalid, "no url given")
	}

	ctx = logger.Ctx(ctx, slog.String("op", "check_url"), slog.String("url", url))

	key, err := c.key(ctx)
	if err != nil {
		return indexwatch.IndexationResult{}, err
	}

	out, err := c.checkAndSave(ctx, key, []string{url})
	if err != nil {
		return indexwatch.IndexationResult{}, err
	}
	if len(out.Failures) > 0 {
		return indexwatch.IndexationResult{}, iwerrs.E(
			iwerrs.KindRemoteStore,
			fmt.Errorf("error saving result: %s", out.Failures[0].Error),
		)
	}

	return out.Results[0], nil
}

// RefreshAll re-checks every given url. No group is touched.
func (c *Controller) RefreshAll(ctx context.Context, urls []string) (Outcome, error) {
	ctx = logger.Ctx(ctx, slog.String("op", "refresh_all"))

	key, err := c.key(ctx)
	if err != nil {
		return Outcome{}, err
	}

	urls = normalizeURLs(urls)
	if len(urls) == 0 {
		return Outcome{Message: "No URLs to check", Failures: []Failure{}, Unchecked: []string{}, Results: []indexwatch.IndexationResult{}}, nil
	}

	out, err := c.checkAndSave(ctx, key, urls)
	if err != nil {
		return out, err
	}
	out.Message = fmt.Sprintf("Checked %d URLs", out.Saved)

	return out, nil
}

// RefreshKnown re-checks every url that has a stored result.
func (c *Controller) RefreshKnown(ctx context.Context) (Outcome, error) {
	urls, err := c.repo.AllResultURLs(ctx)
	if err != nil {
		return Outcome{}, iwerrs.E(iwerrs.KindRemoteStore, fmt.Errorf("error listing urls: %w", err))
	}

	return c.RefreshAll(ctx, urls)
}

// DeleteUrl removes the url's result and its membership in every group. Both
// deletes are attempted even when one of them fails.
func (c *Controller) DeleteUrl(ctx context.Context, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return iwerrs.E(iwerrs.KindInvalid, "no url given")
	}

	ctx = logger.Ctx(ctx, slog.String("op", "delete_url"), slog.String("url", url))

	var errs []error
	if err := c.repo.DeleteResult(ctx, url); err != nil {
		errs = append(errs, fmt.Errorf("error deleting result: %w", err))
	}
	if err := c.repo.DeleteURLLinks(ctx, url); err != nil {
		errs = append(errs, fmt.Errorf("error deleting group links: %w", err))
	}
	if err := goerrors.Join(errs...); err != nil {
		slog.ErrorContext(ctx, "error deleting url", "error", err)
		return iwerrs.E(iwerrs.KindRemoteStore, err)
	}

	return nil
}

// Reads the key, failing when none is configured.
func (c *Controller) key(ctx context.Context) (string, error) {
	key, err := c.creds.Key(ctx)
	if err != nil {
		return "", iwerrs.E(iwerrs.KindRemoteStore, fmt.Errorf("error reading api key: %w", err))
	}
	if key == "" {
		return "", iwerrs.E(iwerrs.KindMissingCredential, "api key is not configured")
	}

	return key, nil
}

// Finds the group by id or name, creating a group with that name otherwise.
func (c *Controller) resolveGroup(ctx context.Context, idOrName string) (indexwatch.UrlGroup, error) {
	group, err := c.repo.FindGroup(ctx, idOrName)
	if err == nil {
		return group, nil
	}
	if !goerrors.Is(err, indexwatch.ErrNotFound) {
		return indexwatch.UrlGroup{}, iwerrs.E(iwerrs.KindRemoteStore, fmt.Errorf("error finding group: %w", err))
	}

	group, err = c.repo.EnsureGroup(ctx, sanitizeGroupName(idOrName))
	if err != nil {
		return indexwatch.UrlGroup{}, iwerrs.E(iwerrs.KindRemoteStore, fmt.Errorf("error creating group: %w", err))
	}
	slog.InfoContext(ctx, "resolved group by name", "group_id", group.ID)

	return group, nil
}

// Checks the urls and upserts every result, collecting the failed writes.
func (c *Controller) checkAndSave(ctx context.Context, key string, urls []string) (Outcome, error) {
	checked, err := c.checker.Check(ctx, key, urls)
	if err != nil {
		return Outcome{}, iwerrs.E(iwerrs.KindCheckService, fmt.Errorf("error checking urls: %w", err))
	}

	out := Outcome{
		Total:     len(checked),
		Failures:  []Failure{},
		Unchecked: []string{},
		Results:   make([]indexwatch.IndexationResult, 0, len(checked)),
	}
	for _, res := range checked {
		if res.Err != nil {
			out.Unchecked = append(out.Unchecked, res.URL)
		}

		result := res.IndexationResult()
		err := c.repo.UpsertResult(ctx, result)
		c.metrics.UpsertsTotal.WithLabelValues(metrics.Outcome(err)).Inc()
		if err != nil {
			slog.ErrorContext(ctx, "error saving result", "url", res.URL, "error", err)
			out.Failures = append(out.Failures, Failure{URL: res.URL, Error: err.Error()})
			continue
		}

		out.Saved++
		out.Results = append(out.Results, result)
	}

	slog.InfoContext(ctx, "checked urls",
		"total", out.Total,
		"saved", out.Saved,
		"unchecked", len(out.Unchecked),
	)

	return out, nil
}

// Trims the urls, dropping blanks and repeats while keeping the order.
func normalizeURLs(urls []string) []string {
	var (
		ret  = make([]string, 0, len(urls))
		seen = make(map[string]struct{}, len(urls))
	)
	for _, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		ret = append(ret, u)
	}

	return ret
}
