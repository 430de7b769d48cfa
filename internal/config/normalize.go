package config

import (
	"fmt"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeWorkers()
	if err := c.normalizeJournal(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	return nil
}

func (c *Config) normalizeWorkers() {
	c.Workers.ConsumerPrefix = strings.TrimSpace(c.Workers.ConsumerPrefix)
	if c.Workers.ConsumerPrefix == "" {
		c.Workers.ConsumerPrefix = defaultConsumerPrefix
	}
	if c.Workers.MaxPollIntervalMS > 0 && c.Workers.MaxPollIntervalMS < c.Workers.PollIntervalMS {
		c.Workers.MaxPollIntervalMS = c.Workers.PollIntervalMS
	}
}

func (c *Config) normalizeJournal() error {
	path := strings.TrimSpace(c.Journal.Path)
	if path == "" {
		path = filepath.Join(c.Paths.StateDir, defaultJournalFile)
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("journal.path: %w", err)
	}
	c.Journal.Path = expanded
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if len(c.Logging.ComponentOverrides) == 0 {
		c.Logging.ComponentOverrides = nil
		return
	}
	normalized := make(map[string]string, len(c.Logging.ComponentOverrides))
	for component, level := range c.Logging.ComponentOverrides {
		key := strings.ToLower(strings.TrimSpace(component))
		if key == "" {
			continue
		}
		normalized[key] = strings.ToLower(strings.TrimSpace(level))
	}
	c.Logging.ComponentOverrides = normalized
}
