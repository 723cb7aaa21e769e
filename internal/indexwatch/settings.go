package indexwatch

// Settings are the api settings edited from the settings page.
type Settings struct {
	APIKey               string `db:"api_key" json:"api_key"`
	CheckIntervalHours   int    `db:"check_interval_hours" json:"check_interval_hours"`
	NotificationsEnabled bool   `db:"notifications_enabled" json:"notifications_enabled"`
}

// DefaultSettings are returned while nothing has been saved yet.
func DefaultSettings() Settings {
	return Settings{
		CheckIntervalHours:   24,
		NotificationsEnabled: true,
	}
}
