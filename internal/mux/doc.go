// Package mux drives ffmpeg to combine fetched streams into the final
// container: stream-copy muxing, subtitle normalization, soft subtitle
// tracks, and opt-in burn-in rendering.
package mux
