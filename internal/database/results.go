package database

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"

	"github.com/jdholdren/indexwatch/internal/indexwatch"
)

var resultColumns = []string{"url", "google", "yandex", "date", "yandex_index_date"}

// Search terms match literally, so LIKE wildcards in them are escaped.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListResults returns a page of the current results along with the total
// count matching the filters.
func (r Repo) ListResults(ctx context.Context, args indexwatch.ListResultsArgs) ([]indexwatch.IndexationResult, int, error) {
	// A filter with no urls matches nothing.
	if args.URLs != nil && len(args.URLs) == 0 {
		return []indexwatch.IndexationResult{}, 0, nil
	}
	if args.PageSize <= 0 {
		return nil, 0, fmt.Errorf("page size must be positive, got %d", args.PageSize)
	}

	where := sq.And{}
	if args.GroupID != "" {
		where = append(where, sq.Expr("url IN (SELECT url FROM group_urls WHERE group_id = ?)", args.GroupID))
	}
	if args.URLs != nil {
		where = append(where, sq.Eq{"url": args.URLs})
	}
	if term := strings.TrimSpace(args.Search); term != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
		where = append(where, sq.Expr(`LOWER(url) LIKE ? ESCAPE '\'`, pattern))
	}

	countQ := r.sb.Select("COUNT(*)").From("indexation_results")
	if len(where) > 0 {
		countQ = countQ.Where(where)
	}
	query, qArgs, err := countQ.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("error constructing sql: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, query, qArgs...); err != nil {
		return nil, 0, fmt.Errorf("error counting results: %w", err)
	}

	col := args.Sort
	if !col.Valid() {
		col = indexwatch.SortDate
	}
	dir := "DESC"
	if args.Asc {
		dir = "ASC"
	}
	q := r.sb.Select(resultColumns...).
		From("indexation_results").
		OrderBy(fmt.Sprintf("%s %s", col, dir), "url ASC").
		Limit(uint64(args.PageSize)).
		Offset(uint64(args.Offset()))
	if len(where) > 0 {
		q = q.Where(where)
	}
	query, qArgs, err = q.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("error constructing sql: %w", err)
	}

	results := []indexwatch.IndexationResult{}
	if err := r.db.SelectContext(ctx, &results, query, qArgs...); err != nil {
		return nil, 0, fmt.Errorf("error selecting results: %w", err)
	}

	return results, total, nil
}

// UpsertResult replaces the current result for the url and appends it to the
// url's history, trimming the history to the newest entries.
func (r Repo) UpsertResult(ctx context.Context, result indexwatch.IndexationResult) error {
	result.Date = result.Date.UTC()
	if result.YandexIndexDate != nil {
		d := result.YandexIndexDate.UTC()
		result.YandexIndexDate = &d
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	query, args, err := r.sb.Insert("indexation_results").
		Columns(resultColumns...).
		Values(result.URL, result.Google, result.Yandex, result.Date, result.YandexIndexDate).
		Suffix(`ON CONFLICT (url) DO UPDATE SET
			google = excluded.google,
			yandex = excluded.yandex,
			date = excluded.date,
			yandex_index_date = excluded.yandex_index_date`).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error upserting result: %w", err)
	}

	query, args, err = r.sb.Insert("indexation_history").
		Columns(resultColumns...).
		Values(result.URL, result.Google, result.Yandex, result.Date, result.YandexIndexDate).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error appending history: %w", err)
	}

	trimQ := r.db.Rebind(`DELETE FROM indexation_history
	WHERE url = ? AND id NOT IN (
		SELECT id FROM indexation_history WHERE url = ? ORDER BY date DESC, id DESC LIMIT ?
	);`)
	if _, err := tx.ExecContext(ctx, trimQ, result.URL, result.URL, indexwatch.HistoryLimit); err != nil {
		return fmt.Errorf("error trimming history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// DeleteResult removes the url's result and history. Deleting an unknown url
// is not an error.
func (r Repo) DeleteResult(ctx context.Context, url string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM indexation_results WHERE url = ?;`), url); err != nil {
		return fmt.Errorf("error deleting result: %w", err)
	}
	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM indexation_history WHERE url = ?;`), url); err != nil {
		return fmt.Errorf("error deleting history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// AllResultURLs returns every url with a current result.
func (r Repo) AllResultURLs(ctx context.Context) ([]string, error) {
	const q = `SELECT url FROM indexation_results ORDER BY date DESC, url ASC;`

	urls := []string{}
	if err := r.db.SelectContext(ctx, &urls, q); err != nil {
		return nil, fmt.Errorf("error selecting result urls: %w", err)
	}

	return urls, nil
}

// ResultStats summarizes the current results.
func (r Repo) ResultStats(ctx context.Context) (indexwatch.Stats, error) {
	const q = `
	SELECT
		COUNT(*) AS total,
		COALESCE(SUM(CASE WHEN google THEN 1 ELSE 0 END), 0) AS indexed_google,
		COALESCE(SUM(CASE WHEN yandex THEN 1 ELSE 0 END), 0) AS indexed_yandex,
		COALESCE(SUM(CASE WHEN google AND yandex THEN 0 ELSE 1 END), 0) AS not_indexed
	FROM
		indexation_results;
	`

	var stats indexwatch.Stats
	if err := r.db.GetContext(ctx, &stats, q); err != nil {
		return indexwatch.Stats{}, fmt.Errorf("error computing stats: %w", err)
	}

	return stats, nil
}

// URLHistory returns the history of a single url, newest first.
func (r Repo) URLHistory(ctx context.Context, url string) ([]indexwatch.HistoryEntry, error) {
	q := r.db.Rebind(`SELECT * FROM indexation_history WHERE url = ? ORDER BY date DESC, id DESC;`)

	entries := []indexwatch.HistoryEntry{}
	if err := r.db.SelectContext(ctx, &entries, q, url); err != nil {
		return nil, fmt.Errorf("error selecting history: %w", err)
	}

	return entries, nil
}

// History returns the history of every url, grouped by url.
func (r Repo) History(ctx context.Context) ([]indexwatch.URLHistory, error) {
	const q = `SELECT * FROM indexation_history ORDER BY url ASC, date DESC, id DESC;`

	var entries []indexwatch.HistoryEntry
	if err := r.db.SelectContext(ctx, &entries, q); err != nil {
		return nil, fmt.Errorf("error selecting history: %w", err)
	}

	history := []indexwatch.URLHistory{}
	for _, e := range entries {
		if n := len(history); n == 0 || history[n-1].URL != e.URL {
			history = append(history, indexwatch.URLHistory{URL: e.URL})
		}
		last := &history[len(history)-1]
		last.Results = append(last.Results, e)
	}

	return history, nil
}
