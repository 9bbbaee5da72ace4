package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"

	"media-shrink/internal/config"
)

// ExecResult holds the outcome of a single encoder invocation.
type ExecResult struct {
	Stderr string
	Err    error
}

// LookPath resolves the configured encoder binary.
func LookPath(cfg *config.VideoConfig) (string, error) {
	path, err := exec.LookPath(binary(cfg))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrEncoderNotFound, binary(cfg))
	}
	return path, nil
}

// Execute runs one prepared argument slice. Stderr is captured so a failure
// can be reported with the encoder's own message.
func Execute(ctx context.Context, args []string) ExecResult {
	cmd := exec.CommandContext(ctx, args[0], args[1:]...)

	var stderrBuf bytes.Buffer
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	return ExecResult{
		Stderr: stderrBuf.String(),
		Err:    err,
	}
}

// Encode runs one encode attempt of input at crf into output and returns the
// output size. Any failure removes the partial output.
func Encode(ctx context.Context, cfg *config.VideoConfig, input, output string, crf int) (int64, error) {
	res := Execute(ctx, Build(cfg, input, output, crf))
	if res.Err != nil {
		_ = os.Remove(output)
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if isNotFound(res.Err) {
			return 0, fmt.Errorf("%w: %s", ErrEncoderNotFound, binary(cfg))
		}
		return 0, &ExecError{CRF: crf, Stderr: res.Stderr, Err: res.Err}
	}

	info, err := os.Stat(output)
	if err != nil {
		return 0, &ExecError{CRF: crf, Stderr: res.Stderr, Err: fmt.Errorf("no output written: %w", err)}
	}
	return info.Size(), nil
}

func isNotFound(err error) bool {
	var execErr *exec.Error
	return errors.As(err, &execErr)
}
