package config

const (
	defaultOutputDir         = "~/Desktop"
	defaultStagingDir        = "~/.local/share/habla/staging"
	defaultLogDir            = "~/.local/share/habla/logs"
	defaultHistoryPath       = "~/.local/share/habla/history.db"
	defaultPreferredLanguage = "es"
	defaultSubtitleMode      = SubtitleModeSoft
	defaultRetryBudget       = 3
	defaultYtDlpBinary       = "yt-dlp"
	defaultFFmpegBinary      = "ffmpeg"
	defaultNotifyTimeout     = 10
	defaultLogLevel          = "info"
	defaultLogFormat         = "console"
)

func defaultCookieBrowsers() []string {
	return []string{"chrome", "firefox", "brave", "edge", "opera", "vivaldi", "safari"}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir:  defaultOutputDir,
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
		},
		Download: Download{
			PreferredLanguage: defaultPreferredLanguage,
			SubtitleMode:      defaultSubtitleMode,
			RetryBudget:       defaultRetryBudget,
		},
		Tools: Tools{
			YtDlp:          defaultYtDlpBinary,
			FFmpeg:         defaultFFmpegBinary,
			CookieBrowsers: defaultCookieBrowsers(),
		},
		History: History{
			Enabled: true,
			Path:    defaultHistoryPath,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
		},
		Logging: Logging{
			Level:  defaultLogLevel,
			Format: defaultLogFormat,
		},
	}
}
