// Package credential provides the api key used for indexation checks.
//
// The key is read on every check operation so a user can set or change it
// without restarting anything.
package credential

import (
	"context"
	"fmt"
	"strings"

	"github.com/jdholdren/indexwatch/internal/indexwatch"
)

// Source looks up the api key. An empty key with a nil error means none is
// configured.
type Source interface {
	Key(ctx context.Context) (string, error)
}

// Static is a key fixed at startup, usually from the environment.
type Static string

func (s Static) Key(context.Context) (string, error) {
	return strings.TrimSpace(string(s)), nil
}

type contextKey struct{}

// WithKey attaches a key to the context, e.g. one read from the client's cookie.
func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, contextKey{}, key)
}

// Context reads the key attached with [WithKey].
type Context struct{}

func (Context) Key(ctx context.Context) (string, error) {
	key, _ := ctx.Value(contextKey{}).(string)
	return strings.TrimSpace(key), nil
}

// Settings reads the key saved with the api settings.
type Settings struct {
	Repo indexwatch.SettingsRepo
}

func (s Settings) Key(ctx context.Context) (string, error) {
	settings, err := s.Repo.Settings(ctx)
	if err != nil {
		return "", fmt.Errorf("error reading api settings: %w", err)
	}

	return strings.TrimSpace(settings.APIKey), nil
}

// Chain returns the first non-empty key of its sources, in order.
type Chain []Source

func (c Chain) Key(ctx context.Context) (string, error) {
	for _, src := range c {
		key, err := src.Key(ctx)
		if err != nil {
			return "", err
		}
		if key != "" {
			return key, nil
		}
	}

	return "", nil
}
