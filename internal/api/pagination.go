package api

import (
	"net/http"
	"strconv"
	"strings"

	iwerrs "github.com/jdholdren/indexwatch/internal/errors"
	"github.com/jdholdren/indexwatch/internal/indexwatch"
	"github.com/jdholdren/indexwatch/internal/sync"
)

// parsePaginationParams parses page based pagination from an HTTP request
// (?page=2&page_size=10). Pages are 1-indexed.
func parsePaginationParams(r *http.Request, defaultSize, maxSize int) (page, size int) {
	query := r.URL.Query()

	size, _ = strconv.Atoi(query.Get("page_size"))
	if size <= 0 || size > maxSize {
		size = defaultSize
	}

	page, _ = strconv.Atoi(query.Get("page"))
	if page < 1 {
		page = 1
	}

	return page, size
}

// Parses the filters shared by the dashboard and the results page.
func (s Server) parseListParams(r *http.Request) (sync.ReloadArgs, error) {
	query := r.URL.Query()

	args := sync.ReloadArgs{
		Group:  strings.TrimSpace(query.Get("group")),
		Search: strings.TrimSpace(query.Get("search")),
		Sort:   indexwatch.SortColumn(query.Get("sort")),
	}
	if args.Sort == "" {
		args.Sort = indexwatch.SortDate
	}
	if !args.Sort.Valid() {
		return sync.ReloadArgs{}, iwerrs.E(iwerrs.KindInvalid, iwerrs.Detail{Field: "sort", Error: "unknown column"}, "invalid sort")
	}

	switch strings.ToLower(query.Get("dir")) {
	case "asc":
		args.Asc = true
	case "desc", "":
	default:
		return sync.ReloadArgs{}, iwerrs.E(iwerrs.KindInvalid, iwerrs.Detail{Field: "dir", Error: "must be asc or desc"}, "invalid sort direction")
	}

	args.Page, args.PageSize = parsePaginationParams(r, s.defaultPageSize, s.maxPageSize)

	return args, nil
}
