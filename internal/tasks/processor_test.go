package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweeper struct {
	calls int
	err   error
}

func (f *fakeSweeper) SweepExpired(context.Context) (int64, error) {
	f.calls++
	return 3, f.err
}

type fakeVerifier struct {
	ids []string
}

func (f *fakeVerifier) Verify(_ context.Context, id string) error {
	f.ids = append(f.ids, id)
	return nil
}

func TestProcessorDispatchesByType(t *testing.T) {
	sweeper := &fakeSweeper{}
	verifier := &fakeVerifier{}
	p := NewProcessor(sweeper, verifier, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, p.Handle(ctx, redis.XMessage{ID: "1-0", Values: map[string]any{"type": TypeSessionCleanup}}))
	assert.Equal(t, 1, sweeper.calls)

	require.NoError(t, p.Handle(ctx, redis.XMessage{ID: "2-0", Values: map[string]any{"type": TypeUploadCheck, "uploadId": "up1"}}))
	assert.Equal(t, []string{"up1"}, verifier.ids)

	require.NoError(t, p.Handle(ctx, redis.XMessage{ID: "3-0", Values: map[string]any{"type": TypeUploadCheck}}))
	assert.Len(t, verifier.ids, 1)

	require.NoError(t, p.Handle(ctx, redis.XMessage{ID: "4-0", Values: map[string]any{"type": "thumbnail"}}))
}

func TestProcessorReturnsSweepError(t *testing.T) {
	sweeper := &fakeSweeper{err: errors.New("db down")}
	p := NewProcessor(sweeper, &fakeVerifier{}, zerolog.Nop())

	err := p.Handle(context.Background(), redis.XMessage{ID: "1-0", Values: map[string]any{"type": TypeSessionCleanup}})
	assert.ErrorContains(t, err, "db down")
}
