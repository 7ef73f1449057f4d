package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.OutputDir == "" {
		return errors.New("paths.output_dir must be set")
	}
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	return nil
}

func (c *Config) validateDownload() error {
	switch c.Download.SubtitleMode {
	case SubtitleModeSoft, SubtitleModeBurned:
	default:
		return fmt.Errorf("download.subtitle_mode must be %q or %q, got %q",
			SubtitleModeSoft, SubtitleModeBurned, c.Download.SubtitleMode)
	}
	if c.Download.RetryBudget < 1 {
		return errors.New("download.retry_budget must be >= 1")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	if c.Notifications.RequestTimeout <= 0 {
		return errors.New("notifications.request_timeout must be positive")
	}
	return nil
}
