package deps

import "habla/internal/config"

// Requirements lists the external binaries a download run needs, using
// the paths the configuration points at.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{
			Name:        "yt-dlp",
			Command:     cfg.Tools.YtDlp,
			Description: "probes video URLs and enumerates available streams",
		},
		{
			Name:        "ffmpeg",
			Command:     cfg.Tools.FFmpeg,
			Description: "muxes streams and converts subtitles",
		},
	}
}
