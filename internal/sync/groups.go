package sync

import (
	"context"
	goerrors "errors"
	"fmt"
	"html"
	"log/slog"
	"strings"
	"unicode/utf8"

	goaway "github.com/TwiN/go-away"
	"github.com/microcosm-cc/bluemonday"

	iwerrs "github.com/jdholdren/indexwatch/internal/errors"
	"github.com/jdholdren/indexwatch/internal/indexwatch"
	"github.com/jdholdren/indexwatch/internal/logger"
)

const maxGroupNameLength = 128

var stripPolicy = bluemonday.StrictPolicy()

// Removes any markup from a group name. The policy escapes what it keeps, so
// the text is unescaped again to store the name as it was typed.
func sanitizeGroupName(s string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(strings.TrimSpace(s))))
}

// Group names show up on a shared dashboard, so keep them short and clean.
func validGroupName(name string) error {
	name = sanitizeGroupName(name)
	if name == "" {
		return iwerrs.E(iwerrs.KindInvalid, iwerrs.Detail{Field: "name", Error: "required"}, "group name is required")
	}
	if utf8.RuneCountInString(name) > maxGroupNameLength {
		return iwerrs.E(iwerrs.KindInvalid, iwerrs.Detail{Field: "name", Error: "too long"}, "group name too long")
	}
	if goaway.IsProfane(name) {
		return iwerrs.E(iwerrs.KindInvalid, iwerrs.Detail{Field: "name", Error: "profane"}, "profanity detected in group name")
	}

	return nil
}

// Converts a store error into one with the kind the user sees.
func storeErr(err error, msg string) error {
	switch {
	case goerrors.Is(err, indexwatch.ErrNotFound):
		return iwerrs.E(iwerrs.KindNotFound, fmt.Errorf("%s: %w", msg, err))
	case goerrors.Is(err, indexwatch.ErrConflict):
		return iwerrs.E(iwerrs.KindConflict, fmt.Errorf("%s: %w", msg, err))
	}

	return iwerrs.E(iwerrs.KindRemoteStore, fmt.Errorf("%s: %w", msg, err))
}

func (c *Controller) Groups(ctx context.Context) ([]indexwatch.UrlGroup, error) {
	groups, err := c.repo.ListGroups(ctx)
	if err != nil {
		return nil, storeErr(err, "error listing groups")
	}

	return groups, nil
}

func (c *Controller) CreateGroup(ctx context.Context, name string) (indexwatch.UrlGroup, error) {
	if err := validGroupName(name); err != nil {
		return indexwatch.UrlGroup{}, err
	}

	group, err := c.repo.CreateGroup(ctx, sanitizeGroupName(name))
	if err != nil {
		return indexwatch.UrlGroup{}, storeErr(err, "error creating group")
	}
	slog.InfoContext(logger.Ctx(ctx, slog.String("group_id", group.ID)), "created group")

	return group, nil
}

func (c *Controller) RenameGroup(ctx context.Context, id, name string) error {
	if err := validGroupName(name); err != nil {
		return err
	}

	if err := c.repo.RenameGroup(ctx, id, sanitizeGroupName(name)); err != nil {
		return storeErr(err, "error renaming group")
	}

	return nil
}

// DeleteGroup removes the group. Its urls stay monitored.
func (c *Controller) DeleteGroup(ctx context.Context, id string) error {
	if err := c.repo.DeleteGroup(ctx, id); err != nil {
		return storeErr(err, "error deleting group")
	}
	slog.InfoContext(logger.Ctx(ctx, slog.String("group_id", id)), "deleted group")

	return nil
}

func (c *Controller) RemoveURLFromGroup(ctx context.Context, id, url string) error {
	url = strings.TrimSpace(url)
	if url == "" {
		return iwerrs.E(iwerrs.KindInvalid, "no url given")
	}

	if err := c.repo.RemoveURLFromGroup(ctx, id, url); err != nil {
		return storeErr(err, "error removing url from group")
	}

	return nil
}
