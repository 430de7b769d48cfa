package config

import (
	"os"
	"strings"
)

const (
	defaultConfigPath        = "~/.config/sessionq/config.toml"
	defaultStateDir          = "~/.local/share/sessionq"
	defaultLogDir            = "~/.local/share/sessionq/logs"
	defaultAPIBind           = "127.0.0.1:7488"
	defaultConsumers         = 4
	defaultConsumerPrefix    = "worker"
	defaultPollIntervalMS    = 50
	defaultMaxPollIntervalMS = 2000
	defaultMaxAttempts       = 3
	defaultJournalFile       = "journal.db"
	defaultJournalRetention  = 30
	defaultJournalBufferSize = 1024
	defaultLogFormat         = "console"
	defaultLogLevel          = "info"
	defaultLogRetentionDays  = 14
	envStateDir              = "SESSIONQ_STATE_DIR"
	envAPIBind               = "SESSIONQ_API_BIND"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
			APIBind:  defaultAPIBind,
		},
		Workers: Workers{
			Consumers:         defaultConsumers,
			ConsumerPrefix:    defaultConsumerPrefix,
			PollIntervalMS:    defaultPollIntervalMS,
			MaxPollIntervalMS: defaultMaxPollIntervalMS,
			MaxAttempts:       defaultMaxAttempts,
		},
		Journal: Journal{
			Enabled:       true,
			RetentionDays: defaultJournalRetention,
			BufferSize:    defaultJournalBufferSize,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}

// applyEnv layers environment fallbacks over the defaults. Values from the
// config file are decoded afterwards and take precedence.
func (c *Config) applyEnv() {
	if value, ok := os.LookupEnv(envStateDir); ok && strings.TrimSpace(value) != "" {
		c.Paths.StateDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv(envAPIBind); ok {
		c.Paths.APIBind = strings.TrimSpace(value)
	}
}
