// Package config loads, normalizes, and validates sessionq configuration.
//
// Configuration is read from TOML (explicit --config path, then
// ~/.config/sessionq/config.toml, then ./sessionq.toml) on top of repository
// defaults and SESSIONQ_* environment fallbacks. Paths are tilde-expanded and
// made absolute before validation so callers never see relative locations.
package config
