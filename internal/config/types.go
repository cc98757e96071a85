package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Moysklad MoyskladConfig `json:"moysklad"`
	Monitor  MonitorConfig  `json:"monitor"`
	Cache    CacheConfig    `json:"cache"`
	Notifier NotifierConfig `json:"notifier"`
	Logging  LoggingConfig  `json:"logging"`
}

type TelegramConfig struct {
	Token string `json:"token" env:"SKLADBOT_BOT_TOKEN"`
	// ChatID is the alert destination chat.
	ChatID int64 `json:"chat_id" env:"SKLADBOT_CHAT_ID"`
	// AllowedUserIDs restricts interactive commands; empty allows everyone.
	AllowedUserIDs []int64 `json:"allowed_user_ids"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout"`
}

type MoyskladConfig struct {
	Token   string `json:"token" env:"SKLADBOT_MS_TOKEN"`
	BaseURL string `json:"base_url,omitempty"`
	// RequestLimit is the API page size (MoySklad caps at 1000).
	RequestLimit int `json:"request_limit"`
	// RequestDelay paces page requests; a Go duration string.
	RequestDelay string `json:"request_delay"`
	// Timeout bounds one API request; a Go duration string.
	Timeout  string `json:"timeout"`
	RetryMax int    `json:"retry_max"`
	// RetryDelay is the base delay between retries; grows per attempt.
	RetryDelay string `json:"retry_delay"`
}

// MonitorConfig controls the checking loop.
//
// All durations are Go duration strings. Schedule also accepts cron
// expressions ("0 9 * * *", "@every 12h").
type MonitorConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
	// CycleTimeout bounds one fetch+check pass.
	CycleTimeout string `json:"cycle_timeout"`
	// AlertDays: alert when days-until-expiration <= this threshold.
	AlertDays int `json:"alert_days"`
	// SuppressWindow is the minimum time between repeat alerts for an
	// unchanged condition.
	SuppressWindow string `json:"suppress_window"`
	// PurgeEvery runs cache purge every N cycles.
	PurgeEvery int `json:"purge_every,omitempty"`
}

type CacheConfig struct {
	// Driver: "file" (default) or "sqlite".
	Driver string `json:"driver,omitempty"`
	Dir    string `json:"dir"`
	// ResetDays is the cache retention window in days.
	ResetDays int `json:"reset_days"`
	// BusyTimeout is a Go duration string (sqlite only).
	BusyTimeout string `json:"busy_timeout,omitempty"`
}

type NotifierConfig struct {
	// MessageLimit is the maximum message length in runes.
	MessageLimit int `json:"message_limit"`
	RatePerSec   int `json:"rate_per_sec"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ChatID     int64  `json:"chat_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}
