// Package ffmpeg builds and runs the external encoder used for video
// recompression. One invocation encodes one input at one CRF value into a
// caller-chosen output path; the caller owns the output file's lifecycle.
package ffmpeg
