package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads an optional TOML configuration file at path, merges it on top
// of the built-in defaults, applies KSBOT_* environment variable overrides,
// and returns the final Config. If path is empty or the file does not
// exist, defaults plus env overrides are used. The returned Config has NOT
// been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, &cfg); err != nil {
				return nil, err
			}
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known KSBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets and tuning overrides at
// deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	setBool(&cfg.Dev, "KSBOT_DEV")
	setStr(&cfg.LogLevel, "KSBOT_LOG_LEVEL")
	setStr(&cfg.LogFile, "KSBOT_LOG_FILE")

	setDuration(&cfg.Gateway.HeartbeatInterval, "KSBOT_GATEWAY_HEARTBEAT_INTERVAL")
	setInt(&cfg.Gateway.BackoffBase, "KSBOT_GATEWAY_BACKOFF_BASE")
	setDuration(&cfg.Gateway.GatewayRetryDelay, "KSBOT_GATEWAY_RETRY_DELAY")
	setDuration(&cfg.Gateway.RecordSyncInterval, "KSBOT_GATEWAY_RECORD_SYNC_INTERVAL")
	setStr(&cfg.Gateway.RecordPath, "KSBOT_GATEWAY_RECORD_PATH")

	setStr(&cfg.Store.Path, "KSBOT_STORE_PATH")

	setInt64(&cfg.Fetch.SizeCapBytes, "KSBOT_FETCH_SIZE_CAP_BYTES")
	setDuration(&cfg.Fetch.Timeout, "KSBOT_FETCH_TIMEOUT")
	setInt(&cfg.Fetch.RedirectLimit, "KSBOT_FETCH_REDIRECT_LIMIT")
	setStr(&cfg.Fetch.UserAgent, "KSBOT_FETCH_USER_AGENT")

	setDuration(&cfg.Scheduler.TickInterval, "KSBOT_SCHEDULER_TICK_INTERVAL")
	setDuration(&cfg.Scheduler.MinIntervalProd, "KSBOT_SCHEDULER_MIN_INTERVAL_PROD")
	setDuration(&cfg.Scheduler.MinIntervalDev, "KSBOT_SCHEDULER_MIN_INTERVAL_DEV")
	setInt(&cfg.Scheduler.ThrottlePieces, "KSBOT_SCHEDULER_THROTTLE_PIECES")
	setDuration(&cfg.Scheduler.ThrottleUnit, "KSBOT_SCHEDULER_THROTTLE_UNIT")
	setDuration(&cfg.Scheduler.StaleFeedAfter, "KSBOT_SCHEDULER_STALE_FEED_AFTER")

	setDuration(&cfg.Command.StaleMessageCutoff, "KSBOT_COMMAND_STALE_MESSAGE_CUTOFF")

	setStr(&cfg.Platform.BaseURL, "KSBOT_PLATFORM_BASE_URL")
	setDuration(&cfg.Platform.RequestSpacing, "KSBOT_PLATFORM_REQUEST_SPACING")
	setDuration(&cfg.Platform.RequestTimeout, "KSBOT_PLATFORM_REQUEST_TIMEOUT")

	setBool(&cfg.Metrics.Enabled, "KSBOT_METRICS_ENABLED")
	setStr(&cfg.Metrics.Addr, "KSBOT_METRICS_ADDR")

	setBool(&cfg.Backup.Enabled, "KSBOT_BACKUP_ENABLED")
	setStr(&cfg.Backup.Cron, "KSBOT_BACKUP_CRON")
	setStr(&cfg.Backup.Endpoint, "KSBOT_BACKUP_ENDPOINT")
	setStr(&cfg.Backup.Region, "KSBOT_BACKUP_REGION")
	setStr(&cfg.Backup.Bucket, "KSBOT_BACKUP_BUCKET")
	setStr(&cfg.Backup.AccessKey, "KSBOT_BACKUP_ACCESS_KEY")
	setStr(&cfg.Backup.SecretKey, "KSBOT_BACKUP_SECRET_KEY")
	setBool(&cfg.Backup.UseSSL, "KSBOT_BACKUP_USE_SSL")
	setBool(&cfg.Backup.ForcePathStyle, "KSBOT_BACKUP_FORCE_PATH_STYLE")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
