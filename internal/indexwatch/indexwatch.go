// Package indexwatch holds the domain types shared between the store, the
// indexation checker and the sync controller.
package indexwatch

import (
	"context"
	"errors"
)

var (
	ErrConflict = errors.New("resource already exists")
	ErrNotFound = errors.New("resource not found")
)

type (
	// ResultRepo is the surface over the current indexation results and their
	// capped history projection.
	ResultRepo interface {
		ListResults(ctx context.Context, args ListResultsArgs) ([]IndexationResult, int, error)
		UpsertResult(ctx context.Context, result IndexationResult) error
		DeleteResult(ctx context.Context, url string) error
		AllResultURLs(ctx context.Context) ([]string, error)
		ResultStats(ctx context.Context) (Stats, error)
		URLHistory(ctx context.Context, url string) ([]HistoryEntry, error)
		History(ctx context.Context) ([]URLHistory, error)
	}

	// GroupRepo owns the groups and their membership links.
	GroupRepo interface {
		ListGroups(ctx context.Context) ([]UrlGroup, error)
		CreateGroup(ctx context.Context, name string) (UrlGroup, error)
		EnsureGroup(ctx context.Context, name string) (UrlGroup, error)
		FindGroup(ctx context.Context, idOrName string) (UrlGroup, error)
		RenameGroup(ctx context.Context, id, name string) error
		DeleteGroup(ctx context.Context, id string) error
		AddURLsToGroup(ctx context.Context, id string, urls []string) error
		RemoveURLFromGroup(ctx context.Context, id, url string) error
		DeleteURLLinks(ctx context.Context, url string) error
	}

	// SettingsRepo stores the single row of api settings.
	SettingsRepo interface {
		Settings(ctx context.Context) (Settings, error)
		SaveSettings(ctx context.Context, s Settings) error
	}

	// Repository is everything the store provides.
	Repository interface {
		ResultRepo
		GroupRepo
		SettingsRepo
	}
)
