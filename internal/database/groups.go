package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jdholdren/indexwatch/internal/indexwatch"
)

// ListGroups returns every group with its resolved urls.
func (r Repo) ListGroups(ctx context.Context) ([]indexwatch.UrlGroup, error) {
	const q = `SELECT id, name, created_at FROM url_groups ORDER BY created_at ASC, name ASC;`

	groups := []indexwatch.UrlGroup{}
	if err := r.db.SelectContext(ctx, &groups, q); err != nil {
		return nil, fmt.Errorf("error selecting groups: %w", err)
	}

	var links []indexwatch.GroupURLLink
	if err := r.db.SelectContext(ctx, &links, `SELECT group_id, url FROM group_urls ORDER BY url ASC;`); err != nil {
		return nil, fmt.Errorf("error selecting group links: %w", err)
	}
	urlsByGroup := make(map[string][]string)
	for _, l := range links {
		urlsByGroup[l.GroupID] = append(urlsByGroup[l.GroupID], l.URL)
	}

	for i := range groups {
		groups[i].URLs = urlsByGroup[groups[i].ID]
		if groups[i].URLs == nil {
			groups[i].URLs = []string{}
		}
	}

	return groups, nil
}

// CreateGroup inserts an empty group. Names are unique.
func (r Repo) CreateGroup(ctx context.Context, name string) (indexwatch.UrlGroup, error) {
	g := indexwatch.UrlGroup{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
		URLs:      []string{},
	}

	query, args, err := r.sb.Insert("url_groups").
		Columns("id", "name", "created_at").
		Values(g.ID, g.Name, g.CreatedAt).
		ToSql()
	if err != nil {
		return indexwatch.UrlGroup{}, fmt.Errorf("error constructing sql: %w", err)
	}
	_, err = r.db.ExecContext(ctx, query, args...)
	if isUniqueViolation(err) {
		return indexwatch.UrlGroup{}, fmt.Errorf("group %q already exists: %w", name, indexwatch.ErrConflict)
	}
	if err != nil {
		return indexwatch.UrlGroup{}, fmt.Errorf("error inserting group: %w", err)
	}

	return g, nil
}

// EnsureGroup returns the group with the name, creating it if it doesn't exist.
//
// The insert is conditional so two callers racing on the same name end up with
// the same group.
func (r Repo) EnsureGroup(ctx context.Context, name string) (indexwatch.UrlGroup, error) {
	query, args, err := r.sb.Insert("url_groups").
		Columns("id", "name", "created_at").
		Values(uuid.NewString(), name, time.Now().UTC()).
		Suffix("ON CONFLICT (name) DO NOTHING").
		ToSql()
	if err != nil {
		return indexwatch.UrlGroup{}, fmt.Errorf("error constructing sql: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return indexwatch.UrlGroup{}, fmt.Errorf("error ensuring group: %w", err)
	}

	g, err := r.groupBy(ctx, r.db, "name", name)
	if err != nil {
		return indexwatch.UrlGroup{}, err
	}

	return r.withURLs(ctx, g)
}

// FindGroup resolves a group by its id, falling back to its name.
func (r Repo) FindGroup(ctx context.Context, idOrName string) (indexwatch.UrlGroup, error) {
	g, err := r.groupBy(ctx, r.db, "id", idOrName)
	if errors.Is(err, indexwatch.ErrNotFound) {
		g, err = r.groupBy(ctx, r.db, "name", idOrName)
	}
	if err != nil {
		return indexwatch.UrlGroup{}, err
	}

	return r.withURLs(ctx, g)
}

func (r Repo) groupBy(ctx context.Context, q sqlx.QueryerContext, column, value string) (indexwatch.UrlGroup, error) {
	query, args, err := r.sb.Select("id", "name", "created_at").
		From("url_groups").
		Where(sq.Eq{column: value}).
		ToSql()
	if err != nil {
		return indexwatch.UrlGroup{}, fmt.Errorf("error constructing sql: %w", err)
	}

	var g indexwatch.UrlGroup
	err = sqlx.GetContext(ctx, q, &g, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return indexwatch.UrlGroup{}, indexwatch.ErrNotFound
	}
	if err != nil {
		return indexwatch.UrlGroup{}, fmt.Errorf("error fetching group: %w", err)
	}

	return g, nil
}

func (r Repo) withURLs(ctx context.Context, g indexwatch.UrlGroup) (indexwatch.UrlGroup, error) {
	q := r.db.Rebind(`SELECT url FROM group_urls WHERE group_id = ? ORDER BY url ASC;`)

	g.URLs = []string{}
	if err := r.db.SelectContext(ctx, &g.URLs, q, g.ID); err != nil {
		return indexwatch.UrlGroup{}, fmt.Errorf("error selecting group urls: %w", err)
	}

	return g, nil
}

// RenameGroup changes the name of a group.
func (r Repo) RenameGroup(ctx context.Context, id, name string) error {
	q := r.db.Rebind(`UPDATE url_groups SET name = ? WHERE id = ?;`)

	res, err := r.db.ExecContext(ctx, q, name, id)
	if isUniqueViolation(err) {
		return fmt.Errorf("group %q already exists: %w", name, indexwatch.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("error renaming group: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return indexwatch.ErrNotFound
	}

	return nil
}

// DeleteGroup removes the group and all of its links. The urls themselves
// keep their results.
func (r Repo) DeleteGroup(ctx context.Context, id string) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM group_urls WHERE group_id = ?;`), id); err != nil {
		return fmt.Errorf("error deleting group links: %w", err)
	}
	res, err := tx.ExecContext(ctx, r.db.Rebind(`DELETE FROM url_groups WHERE id = ?;`), id)
	if err != nil {
		return fmt.Errorf("error deleting group: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return indexwatch.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// AddURLsToGroup links the urls to the group. Existing links are left alone.
func (r Repo) AddURLsToGroup(ctx context.Context, id string, urls []string) error {
	urls = distinct(urls)
	if len(urls) == 0 {
		return nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}
	defer tx.Rollback()

	// Links can't point at a group that doesn't exist
	if _, err := r.groupBy(ctx, tx, "id", id); err != nil {
		return err
	}

	ins := r.sb.Insert("group_urls").Columns("group_id", "url")
	for _, u := range urls {
		ins = ins.Values(id, u)
	}
	query, args, err := ins.Suffix("ON CONFLICT (group_id, url) DO NOTHING").ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error linking urls to group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing transaction: %w", err)
	}

	return nil
}

// RemoveURLFromGroup unlinks a single url from a group.
func (r Repo) RemoveURLFromGroup(ctx context.Context, id, url string) error {
	q := r.db.Rebind(`DELETE FROM group_urls WHERE group_id = ? AND url = ?;`)

	if _, err := r.db.ExecContext(ctx, q, id, url); err != nil {
		return fmt.Errorf("error unlinking url from group: %w", err)
	}

	return nil
}

// DeleteURLLinks removes the url from every group.
func (r Repo) DeleteURLLinks(ctx context.Context, url string) error {
	q := r.db.Rebind(`DELETE FROM group_urls WHERE url = ?;`)

	if _, err := r.db.ExecContext(ctx, q, url); err != nil {
		return fmt.Errorf("error deleting url links: %w", err)
	}

	return nil
}

// Returns the unique values, keeping the first occurrence order.
func distinct(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	return out
}
