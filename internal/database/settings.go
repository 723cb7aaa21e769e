package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jdholdren/indexwatch/internal/indexwatch"
)

// Settings returns the saved api settings, or the defaults when nothing has
// been saved yet.
func (r Repo) Settings(ctx context.Context) (indexwatch.Settings, error) {
	const q = `SELECT api_key, check_interval_hours, notifications_enabled FROM api_settings WHERE id = 1;`

	var s indexwatch.Settings
	err := r.db.GetContext(ctx, &s, q)
	if errors.Is(err, sql.ErrNoRows) {
		return indexwatch.DefaultSettings(), nil
	}
	if err != nil {
		return indexwatch.Settings{}, fmt.Errorf("error fetching settings: %w", err)
	}

	return s, nil
}

func (r Repo) SaveSettings(ctx context.Context, s indexwatch.Settings) error {
	query, args, err := r.sb.Insert("api_settings").
		Columns("id", "api_key", "check_interval_hours", "notifications_enabled").
		Values(1, s.APIKey, s.CheckIntervalHours, s.NotificationsEnabled).
		Suffix(`ON CONFLICT (id) DO UPDATE SET
			api_key = excluded.api_key,
			check_interval_hours = excluded.check_interval_hours,
			notifications_enabled = excluded.notifications_enabled`).
		ToSql()
	if err != nil {
		return fmt.Errorf("error constructing sql: %w", err)
	}
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("error saving settings: %w", err)
	}

	return nil
}
