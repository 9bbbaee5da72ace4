package search

import (
	"context"
	"fmt"
)

// StepParams describes a one-dimensional stepped scan from Start towards
// Limit. A positive Step walks upwards (video CRF), a negative one downwards
// (GIF quality).
type StepParams struct {
	Start int `mapstructure:"start"`
	Step  int `mapstructure:"step"`
	Limit int `mapstructure:"limit"`
}

// Validate checks that Step moves Start towards Limit.
func (s StepParams) Validate() error {
	switch {
	case s.Step == 0:
		return fmt.Errorf("step must not be zero")
	case s.Step > 0 && s.Start > s.Limit:
		return fmt.Errorf("start %d is above limit %d for an ascending scan", s.Start, s.Limit)
	case s.Step < 0 && s.Start < s.Limit:
		return fmt.Errorf("start %d is below limit %d for a descending scan", s.Start, s.Limit)
	}
	return nil
}

func (s StepParams) reached(param int) bool {
	if s.Step > 0 {
		return param >= s.Limit
	}
	return param <= s.Limit
}

// MaxAttempts returns the number of attempts a scan that never fits performs.
func (s StepParams) MaxAttempts() int {
	span := s.Limit - s.Start
	step := s.Step
	if step < 0 {
		span, step = -span, -step
	}
	return (span+step-1)/step + 1
}

// AttemptFunc produces a candidate for param and reports its size in bytes.
type AttemptFunc func(ctx context.Context, param int) (int64, error)

// StepResult is the outcome of a Linear scan.
type StepResult struct {
	Param     int
	Size      int64
	Attempts  int
	MetTarget bool
}

// Linear calls attempt with Start, Start+Step, ... until a candidate is at
// most target bytes or the parameter has reached Limit. The last candidate is
// accepted in both cases; MetTarget tells them apart. The parameter is
// clamped to Limit so the scan never overshoots it. An attempt error stops
// the scan and is returned as is, it is never treated as a size miss.
func Linear(ctx context.Context, s StepParams, target int64, attempt AttemptFunc) (StepResult, error) {
	if err := s.Validate(); err != nil {
		return StepResult{}, err
	}

	var res StepResult
	param := s.Start
	for {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		size, err := attempt(ctx, param)
		res.Attempts++
		if err != nil {
			return res, fmt.Errorf("attempt at %d: %w", param, err)
		}
		res.Param = param
		res.Size = size

		if size <= target {
			res.MetTarget = true
			return res, nil
		}
		if s.reached(param) {
			return res, nil
		}

		param += s.Step
		if s.reached(param) {
			param = s.Limit
		}
	}
}
