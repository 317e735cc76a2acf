package config

import (
	"time"
)

// Config is the root application configuration.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	Telegram TelegramConfig `yaml:"telegram"`
	Source   SourceConfig   `yaml:"source"`
	Jobs     JobsConfig     `yaml:"jobs"`
	Notify   NotifyConfig   `yaml:"notify"`
	Log      LogConfig      `yaml:"log"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"                env:"DATABASE_DSN"                env-required:"true"`
	MaxConns        int32         `yaml:"max_conns"          env:"DATABASE_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"DATABASE_MIN_CONNS"          env-default:"2"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"DATABASE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"DATABASE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// TelegramConfig holds bot credentials and polling settings.
type TelegramConfig struct {
	BotToken       string `yaml:"bot_token"        env:"TELEGRAM_BOT_TOKEN" env-required:"true"`
	AdminChatID    int64  `yaml:"admin_chat_id"    env:"TELEGRAM_ADMIN_CHAT_ID"`
	PollTimeoutSec int    `yaml:"poll_timeout_sec" env:"TELEGRAM_POLL_TIMEOUT_SEC" env-default:"30"`
	LeaderLockKey  int64  `yaml:"leader_lock_key"  env:"TELEGRAM_LEADER_LOCK_KEY"  env-default:"424242"`
}

// SourceConfig holds e-qanun.az API settings.
type SourceConfig struct {
	BaseURL        string        `yaml:"base_url"         env:"SOURCE_BASE_URL"         env-default:"https://api.e-qanun.az"`
	PageSize       int           `yaml:"page_size"        env:"SOURCE_PAGE_SIZE"        env-default:"100"`
	Timeout        time.Duration `yaml:"timeout"          env:"SOURCE_TIMEOUT"          env-default:"15s"`
	MaxPageOffset  int           `yaml:"max_page_offset"  env:"SOURCE_MAX_PAGE_OFFSET"  env-default:"5000"`
}

// JobsConfig holds the cron specs (6-field, with seconds) and timezone of the
// three periodic jobs.
type JobsConfig struct {
	Timezone   string `yaml:"timezone"    env:"JOBS_TIMEZONE"    env-default:"Asia/Baku"`
	IngestSpec string `yaml:"ingest_spec" env:"JOBS_INGEST_SPEC" env-default:"0 */30 8-23 * * *"`
	PlanSpec   string `yaml:"plan_spec"   env:"JOBS_PLAN_SPEC"   env-default:"0 */5 * * * *"`
	SendSpec   string `yaml:"send_spec"   env:"JOBS_SEND_SPEC"   env-default:"0 * * * * *"`
}

// NotifyConfig holds outbox batch sizes.
type NotifyConfig struct {
	PlanBatchSize int `yaml:"plan_batch_size" env:"NOTIFY_PLAN_BATCH_SIZE" env-default:"200"`
	SendBatchSize int `yaml:"send_batch_size" env:"NOTIFY_SEND_BATCH_SIZE" env-default:"100"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}
