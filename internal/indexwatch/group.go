package indexwatch

import "time"

type (
	// UrlGroup is a named set of urls. URLs is never nil once resolved.
	UrlGroup struct {
		ID        string    `db:"id" json:"id"`
		Name      string    `db:"name" json:"name"`
		CreatedAt time.Time `db:"created_at" json:"created_at"`
		URLs      []string  `db:"-" json:"urls"`
	}

	// GroupURLLink is the membership of a url in a group.
	GroupURLLink struct {
		GroupID string `db:"group_id"`
		URL     string `db:"url"`
	}
)
