package ffmpeg

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEncoderFailed marks a non-zero exit or abnormal termination of the encoder.
	ErrEncoderFailed = errors.New("encoder failed")
	// ErrEncoderNotFound is returned when the encoder binary is not on PATH.
	ErrEncoderNotFound = errors.New("encoder binary not found")
)

// ExecError carries the exit details of a failed encoder run.
type ExecError struct {
	CRF    int
	Stderr string
	Err    error
}

func (e *ExecError) Error() string {
	msg := fmt.Sprintf("encoder failed at crf %d: %v", e.CRF, e.Err)
	if tail := lastLine(e.Stderr); tail != "" {
		msg += ": " + tail
	}
	return msg
}

func (e *ExecError) Unwrap() error { return e.Err }

// Is makes every ExecError match ErrEncoderFailed.
func (e *ExecError) Is(target error) bool { return target == ErrEncoderFailed }

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return strings.TrimSpace(s[i+1:])
	}
	return s
}
