package ffmpeg

import (
	"strconv"

	"media-shrink/internal/config"
)

// Build constructs the complete argument slice for one encode attempt,
// binary first:
//
//	ffmpeg -hide_banner -nostdin -y -loglevel error -i IN
//	       -vcodec libx264 -crf N -preset veryfast
//	       -acodec aac -b:a 96k OUT
func Build(cfg *config.VideoConfig, input, output string, crf int) []string {
	args := make([]string, 0, 24)

	// --- Preamble ---
	args = append(args, binary(cfg), "-hide_banner", "-nostdin", "-y", "-loglevel", "error")

	// --- Input ---
	args = append(args, "-i", input)

	// --- Video codec ---
	args = append(args, "-vcodec", orDefault(cfg.VideoCodec, "libx264"), "-crf", strconv.Itoa(crf))
	if cfg.Preset != "" {
		args = append(args, "-preset", cfg.Preset)
	}

	// --- Audio codec ---
	args = append(args, "-acodec", orDefault(cfg.AudioCodec, "aac"))
	if cfg.AudioBitrate != "" {
		args = append(args, "-b:a", cfg.AudioBitrate)
	}

	// --- Output ---
	args = append(args, output)
	return args
}

func binary(cfg *config.VideoConfig) string {
	return orDefault(cfg.Binary, "ffmpeg")
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
