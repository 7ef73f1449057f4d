// Package config loads and validates habla's TOML configuration.
//
// Configuration resolution order: an explicit --config path, then
// ~/.config/habla/config.toml, then habla.toml in the working directory.
// Missing files fall back to defaults so the tool works zero-config.
package config
