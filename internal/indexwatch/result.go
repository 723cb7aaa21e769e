package indexwatch

import "time"

// HistoryLimit is how many history entries are kept per url.
const HistoryLimit = 30

type (
	// IndexationResult is the latest check of a url. The url is the natural key.
	IndexationResult struct {
		URL             string     `db:"url" json:"url"`
		Google          bool       `db:"google" json:"google"`
		Yandex          bool       `db:"yandex" json:"yandex"`
		Date            time.Time  `db:"date" json:"date"`
		YandexIndexDate *time.Time `db:"yandex_index_date" json:"yandex_index_date"`
	}

	// HistoryEntry is one past check of a url.
	HistoryEntry struct {
		ID              int64      `db:"id" json:"-"`
		URL             string     `db:"url" json:"url"`
		Google          bool       `db:"google" json:"google"`
		Yandex          bool       `db:"yandex" json:"yandex"`
		Date            time.Time  `db:"date" json:"date"`
		YandexIndexDate *time.Time `db:"yandex_index_date" json:"yandex_index_date"`
	}

	// URLHistory groups the history of a single url, newest first.
	URLHistory struct {
		URL     string         `json:"url"`
		Results []HistoryEntry `json:"results"`
	}

	// ListResultsArgs holds the filters for a page of results.
	ListResultsArgs struct {
		// URLs restricts the page to the given urls. A nil slice means no
		// restriction, an empty non-nil slice always yields an empty page.
		URLs []string
		// GroupID restricts the page to the urls linked to the group.
		GroupID string

		Search   string     // Case insensitive substring of the url
		Sort     SortColumn // Defaults to date
		Asc      bool
		Page     int // 1-indexed
		PageSize int
	}

	// Stats is the dashboard summary over every current result.
	Stats struct {
		Total         int `db:"total" json:"total"`
		IndexedGoogle int `db:"indexed_google" json:"indexed_google"`
		IndexedYandex int `db:"indexed_yandex" json:"indexed_yandex"`
		NotIndexed    int `db:"not_indexed" json:"not_indexed"`
	}
)

// SortColumn is a column results can be ordered by.
type SortColumn string

const (
	SortDate            SortColumn = "date"
	SortURL             SortColumn = "url"
	SortGoogle          SortColumn = "google"
	SortYandex          SortColumn = "yandex"
	SortYandexIndexDate SortColumn = "yandex_index_date"
)

// Valid reports if the column is one results can be sorted by.
func (c SortColumn) Valid() bool {
	switch c {
	case SortDate, SortURL, SortGoogle, SortYandex, SortYandexIndexDate:
		return true
	}

	return false
}

// Offset is the number of rows skipped for the requested page.
func (a ListResultsArgs) Offset() int {
	if a.Page < 1 {
		return 0
	}

	return (a.Page - 1) * a.PageSize
}

// History converts the result into the entry appended to its history.
func (r IndexationResult) History() HistoryEntry {
	return HistoryEntry{
		URL:             r.URL,
		Google:          r.Google,
		Yandex:          r.Yandex,
		Date:            r.Date,
		YandexIndexDate: r.YandexIndexDate,
	}
}
