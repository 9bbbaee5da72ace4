package search

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recorder(sizes map[int]int64, fallback int64) (AttemptFunc, *[]int) {
	var params []int
	return func(_ context.Context, param int) (int64, error) {
		params = append(params, param)
		if size, ok := sizes[param]; ok {
			return size, nil
		}
		return fallback, nil
	}, &params
}

func TestLinear_VideoCRFAcceptsFirstFit(t *testing.T) {
	const mb = 1 << 20
	attempt, params := recorder(map[int]int64{28: 9 * mb, 30: 6 * mb, 32: 4 * mb, 34: 3 * mb}, mb)

	res, err := Linear(context.Background(), StepParams{Start: 28, Step: 2, Limit: 40}, 3*mb, attempt)
	require.NoError(t, err)

	assert.True(t, res.MetTarget)
	assert.Equal(t, 34, res.Param)
	assert.Equal(t, int64(3*mb), res.Size)
	assert.Equal(t, []int{28, 30, 32, 34}, *params)
}

func TestLinear_VideoCRFStopsAtCeiling(t *testing.T) {
	attempt, params := recorder(nil, 100)
	steps := StepParams{Start: 28, Step: 2, Limit: 40}

	res, err := Linear(context.Background(), steps, 10, attempt)
	require.NoError(t, err)

	assert.False(t, res.MetTarget)
	assert.Equal(t, 40, res.Param)
	assert.Equal(t, []int{28, 30, 32, 34, 36, 38, 40}, *params)
	assert.Equal(t, steps.MaxAttempts(), res.Attempts)
}

func TestLinear_GIFQualityDescendsToFloor(t *testing.T) {
	attempt, params := recorder(nil, 100)
	steps := StepParams{Start: 80, Step: -10, Limit: 10}

	res, err := Linear(context.Background(), steps, 10, attempt)
	require.NoError(t, err)

	assert.False(t, res.MetTarget)
	assert.Equal(t, 10, res.Param)
	assert.Equal(t, []int{80, 70, 60, 50, 40, 30, 20, 10}, *params)
	assert.Equal(t, 8, steps.MaxAttempts())
}

func TestLinear_ClampsToLimit(t *testing.T) {
	attempt, params := recorder(nil, 100)

	res, err := Linear(context.Background(), StepParams{Start: 28, Step: 5, Limit: 40}, 10, attempt)
	require.NoError(t, err)

	assert.Equal(t, []int{28, 33, 38, 40}, *params)
	assert.Equal(t, 40, res.Param)
}

func TestLinear_AttemptErrorIsNotASizeMiss(t *testing.T) {
	boom := errors.New("ffmpeg missing")
	calls := 0
	attempt := func(context.Context, int) (int64, error) {
		calls++
		if calls == 2 {
			return 0, boom
		}
		return 100, nil
	}

	res, err := Linear(context.Background(), StepParams{Start: 28, Step: 2, Limit: 40}, 10, attempt)
	require.ErrorIs(t, err, boom)
	assert.False(t, res.MetTarget)
	assert.Equal(t, 2, res.Attempts)
}

func TestLinear_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	attempt, params := recorder(nil, 100)

	_, err := Linear(ctx, StepParams{Start: 28, Step: 2, Limit: 40}, 10, attempt)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, *params)
}

func TestStepParams_Validate(t *testing.T) {
	assert.NoError(t, StepParams{Start: 28, Step: 2, Limit: 40}.Validate())
	assert.NoError(t, StepParams{Start: 80, Step: -10, Limit: 10}.Validate())
	assert.NoError(t, StepParams{Start: 40, Step: 2, Limit: 40}.Validate())
	assert.Error(t, StepParams{Start: 28, Step: 0, Limit: 40}.Validate())
	assert.Error(t, StepParams{Start: 50, Step: 2, Limit: 40}.Validate())
	assert.Error(t, StepParams{Start: 5, Step: -10, Limit: 10}.Validate())
}
