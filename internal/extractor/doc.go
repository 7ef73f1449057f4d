// Package extractor probes a video URL with yt-dlp and adapts the
// resulting metadata dump into a validated stream catalog.
//
// Platforms occasionally answer anonymous probes with a bot check, so
// the probe retries through a chain of browser cookie stores before
// giving up.
package extractor
