package sync

import (
	"context"
	"strings"

	iwerrs "github.com/jdholdren/indexwatch/internal/errors"
	"github.com/jdholdren/indexwatch/internal/indexwatch"
)

type (
	// ReloadArgs are the filters the dashboard is viewed with.
	ReloadArgs struct {
		Group    string // Id or name, empty for every url
		Search   string
		Sort     indexwatch.SortColumn
		Asc      bool
		Page     int
		PageSize int
	}

	// Dashboard is a fresh read of everything the dashboard shows.
	Dashboard struct {
		Groups   []indexwatch.UrlGroup         `json:"groups"`
		Group    *indexwatch.UrlGroup          `json:"group,omitempty"`
		Results  []indexwatch.IndexationResult `json:"results"`
		Total    int                           `json:"total"`
		Stats    indexwatch.Stats              `json:"stats"`
		Page     int                           `json:"page"`
		PageSize int                           `json:"page_size"`
	}

	// Page is a page of results.
	Page struct {
		Results  []indexwatch.IndexationResult `json:"results"`
		Total    int                           `json:"total"`
		Page     int                           `json:"page"`
		PageSize int                           `json:"page_size"`
	}
)

// Reload re-reads the groups, the current page of results and the stats.
func (c *Controller) Reload(ctx context.Context, args ReloadArgs) (Dashboard, error) {
	groups, err := c.repo.ListGroups(ctx)
	if err != nil {
		return Dashboard{}, storeErr(err, "error listing groups")
	}

	var group *indexwatch.UrlGroup
	if name := strings.TrimSpace(args.Group); name != "" {
		group = findGroup(groups, name)
		if group == nil {
			return Dashboard{}, iwerrs.E(iwerrs.KindNotFound, "group not found")
		}
	}

	results, total, err := c.listResults(ctx, args, group)
	if err != nil {
		return Dashboard{}, err
	}

	stats, err := c.repo.ResultStats(ctx)
	if err != nil {
		return Dashboard{}, storeErr(err, "error reading stats")
	}

	return Dashboard{
		Groups:   groups,
		Group:    group,
		Results:  results,
		Total:    total,
		Stats:    stats,
		Page:     args.Page,
		PageSize: args.PageSize,
	}, nil
}

// Results reads a page of results, restricted to a group when one is named.
func (c *Controller) Results(ctx context.Context, args ReloadArgs) (Page, error) {
	var group *indexwatch.UrlGroup
	if name := strings.TrimSpace(args.Group); name != "" {
		g, err := c.repo.FindGroup(ctx, name)
		if err != nil {
			return Page{}, storeErr(err, "error finding group")
		}
		group = &g
	}

	results, total, err := c.listResults(ctx, args, group)
	if err != nil {
		return Page{}, err
	}

	return Page{
		Results:  results,
		Total:    total,
		Page:     args.Page,
		PageSize: args.PageSize,
	}, nil
}

// History is the capped check history of one url, or of every url when none
// is given.
func (c *Controller) History(ctx context.Context, url string) ([]indexwatch.URLHistory, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		hist, err := c.repo.History(ctx)
		if err != nil {
			return nil, storeErr(err, "error reading history")
		}
		return hist, nil
	}

	entries, err := c.repo.URLHistory(ctx, url)
	if err != nil {
		return nil, storeErr(err, "error reading history")
	}

	return []indexwatch.URLHistory{{URL: url, Results: entries}}, nil
}

func (c *Controller) listResults(ctx context.Context, args ReloadArgs, group *indexwatch.UrlGroup) ([]indexwatch.IndexationResult, int, error) {
	listArgs := indexwatch.ListResultsArgs{
		Search:   args.Search,
		Sort:     args.Sort,
		Asc:      args.Asc,
		Page:     args.Page,
		PageSize: args.PageSize,
	}
	if group != nil {
		listArgs.GroupID = group.ID
	}

	results, total, err := c.repo.ListResults(ctx, listArgs)
	if err != nil {
		return nil, 0, storeErr(err, "error listing results")
	}

	return results, total, nil
}

func findGroup(groups []indexwatch.UrlGroup, idOrName string) *indexwatch.UrlGroup {
	for i := range groups {
		if groups[i].ID == idOrName {
			return &groups[i]
		}
	}
	for i := range groups {
		if groups[i].Name == idOrName {
			return &groups[i]
		}
	}

	return nil
}
