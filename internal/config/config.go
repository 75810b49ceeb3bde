// Package config loads the bot's two configuration layers: the
// spec-mandated identity file (token/name, §6) and an optional operational
// tuning file governing timers, caps, and the backup job.
package config

import "time"

// duration wraps time.Duration so TOML can decode strings like "30s".
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler for TOML decoding.
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// GatewayConfig tunes the session state machine (C5/C6/C7).
type GatewayConfig struct {
	HeartbeatInterval  duration `toml:"heartbeat_interval"`
	BackoffBase        int      `toml:"backoff_base"`
	GatewayRetryDelay  duration `toml:"gateway_retry_delay"`
	RecordSyncInterval duration `toml:"record_sync_interval"`
	RecordPath         string   `toml:"record_path"`
}

// StoreConfig points at the subscription store's backing file.
type StoreConfig struct {
	Path string `toml:"path"`
}

// FetchConfig tunes the feed fetcher (C2).
type FetchConfig struct {
	SizeCapBytes  int64    `toml:"size_cap_bytes"`
	Timeout       duration `toml:"timeout"`
	RedirectLimit int      `toml:"redirect_limit"`
	UserAgent     string   `toml:"user_agent"`
}

// SchedulerConfig tunes the fetch scheduler (C8).
type SchedulerConfig struct {
	TickInterval    duration `toml:"tick_interval"`
	MinIntervalProd duration `toml:"min_interval_prod"`
	MinIntervalDev  duration `toml:"min_interval_dev"`
	ThrottlePieces  int      `toml:"throttle_pieces"`
	ThrottleUnit    duration `toml:"throttle_unit"`
	StaleFeedAfter  duration `toml:"stale_feed_after"`
}

// CommandConfig tunes the command interpreter (C10).
type CommandConfig struct {
	StaleMessageCutoff duration `toml:"stale_message_cutoff"`
}

// PlatformConfig tunes the HTTP client (C1).
type PlatformConfig struct {
	BaseURL        string   `toml:"base_url"`
	RequestSpacing duration `toml:"request_spacing"`
	RequestTimeout duration `toml:"request_timeout"`
}

// MetricsConfig controls the Prometheus HTTP surface.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Addr    string `toml:"addr"`
}

// BackupConfig controls periodic disaster-recovery backup of the store
// file to S3-compatible object storage.
type BackupConfig struct {
	Enabled        bool   `toml:"enabled"`
	Cron           string `toml:"cron"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// Config is the operational tuning configuration, layered on top of the
// identity Config (Name/Token) loaded separately via the INI file.
type Config struct {
	Dev       bool            `toml:"dev"`
	LogLevel  string          `toml:"log_level"`
	LogFile   string          `toml:"log_file"`
	Gateway   GatewayConfig   `toml:"gateway"`
	Store     StoreConfig     `toml:"store"`
	Fetch     FetchConfig     `toml:"fetch"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Command   CommandConfig   `toml:"command"`
	Platform  PlatformConfig  `toml:"platform"`
	Metrics   MetricsConfig   `toml:"metrics"`
	Backup    BackupConfig    `toml:"backup"`
}

// Defaults returns a Config populated with the values named throughout the
// spec: 30s heartbeat, backoff base 2, 3 minute production / 12s debug
// scheduler floor, 200ms request spacing, 4 MiB fetch cap, and so on.
func Defaults() Config {
	return Config{
		LogLevel: "info",
		LogFile:  "bot.log",
		Gateway: GatewayConfig{
			HeartbeatInterval:  duration{30 * time.Second},
			BackoffBase:        2,
			GatewayRetryDelay:  duration{4 * time.Second},
			RecordSyncInterval: duration{10 * time.Second},
			RecordPath:         "__bot.json",
		},
		Store: StoreConfig{
			Path: "__bot.db",
		},
		Fetch: FetchConfig{
			SizeCapBytes:  4 * 1024 * 1024,
			Timeout:       duration{16 * time.Second},
			RedirectLimit: 5,
			UserAgent:     "Mozilla/5.0 (compatible; ksbot/1.0; +https://github.com/alanyoungcy/ksbot)",
		},
		Scheduler: SchedulerConfig{
			TickInterval:    duration{10 * time.Second},
			MinIntervalProd: duration{3 * time.Minute},
			MinIntervalDev:  duration{12 * time.Second},
			ThrottlePieces:  8,
			ThrottleUnit:    duration{1 * time.Second},
			StaleFeedAfter:  duration{7 * 24 * time.Hour},
		},
		Command: CommandConfig{
			StaleMessageCutoff: duration{5 * time.Second},
		},
		Platform: PlatformConfig{
			BaseURL:        "https://www.kookapp.cn/api/v3",
			RequestSpacing: duration{200 * time.Millisecond},
			RequestTimeout: duration{10 * time.Second},
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
		Backup: BackupConfig{
			Enabled: false,
			Cron:    "0 3 * * *",
		},
	}
}

// MinInterval returns the scheduler floor appropriate to the build mode.
func (c *Config) MinInterval() time.Duration {
	if c.Dev {
		return c.Scheduler.MinIntervalDev.Duration
	}
	return c.Scheduler.MinIntervalProd.Duration
}

// Validate checks invariants that cannot be expressed in the struct tags
// alone.
func (c *Config) Validate() error {
	if c.Scheduler.ThrottlePieces <= 0 {
		return errInvalidConfig("scheduler.throttle_pieces must be positive")
	}
	if c.Fetch.SizeCapBytes <= 0 {
		return errInvalidConfig("fetch.size_cap_bytes must be positive")
	}
	if c.Gateway.BackoffBase < 2 {
		return errInvalidConfig("gateway.backoff_base must be at least 2")
	}
	return nil
}

type configError string

func (e configError) Error() string { return string(e) }

func errInvalidConfig(msg string) error { return configError("config: " + msg) }
