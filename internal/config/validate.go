package config

import (
	"errors"
	"fmt"
	"net"
	"sort"
)

var validLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateWorkers(); err != nil {
		return err
	}
	if err := c.validateJournal(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.StateDir == "" {
		return errors.New("paths.state_dir must be set")
	}
	if c.Paths.APIBind != "" {
		if _, _, err := net.SplitHostPort(c.Paths.APIBind); err != nil {
			return fmt.Errorf("paths.api_bind must be host:port: %w", err)
		}
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Workers.Consumers < 1 {
		return errors.New("workers.consumers must be >= 1")
	}
	if c.Workers.PollIntervalMS <= 0 {
		return errors.New("workers.poll_interval_ms must be positive")
	}
	if c.Workers.MaxPollIntervalMS <= 0 {
		return errors.New("workers.max_poll_interval_ms must be positive")
	}
	if c.Workers.MaxAttempts < 1 {
		return errors.New("workers.max_attempts must be >= 1")
	}
	return nil
}

func (c *Config) validateJournal() error {
	if !c.Journal.Enabled {
		return nil
	}
	if c.Journal.Path == "" {
		return errors.New("journal.path must be set when journal.enabled is true")
	}
	if c.Journal.BufferSize < 1 {
		return errors.New("journal.buffer_size must be >= 1")
	}
	if c.Journal.RetentionDays < 0 {
		return errors.New("journal.retention_days must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	if _, ok := validLogLevels[c.Logging.Level]; !ok {
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	components := make([]string, 0, len(c.Logging.ComponentOverrides))
	for component := range c.Logging.ComponentOverrides {
		components = append(components, component)
	}
	sort.Strings(components)
	for _, component := range components {
		if _, ok := validLogLevels[c.Logging.ComponentOverrides[component]]; !ok {
			return fmt.Errorf("logging.component_overrides.%s: invalid level %q", component, c.Logging.ComponentOverrides[component])
		}
	}
	return nil
}
