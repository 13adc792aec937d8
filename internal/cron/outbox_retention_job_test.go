package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/elocalpass/elocalpass-backend/pkg/logger"
)

type purgeCall struct {
	kind     string
	cutoff   time.Time
	attempts int
}

type fakePurger struct {
	calls []purgeCall
	err   error
}

func (f *fakePurger) DeletePublishedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time) (int64, error) {
	f.calls = append(f.calls, purgeCall{kind: "delivered", cutoff: cutoff})
	return 4, f.err
}

func (f *fakePurger) DeleteExhaustedBefore(_ context.Context, _ *gorm.DB, cutoff time.Time, attempts int) (int64, error) {
	f.calls = append(f.calls, purgeCall{kind: "exhausted", cutoff: cutoff, attempts: attempts})
	return 1, f.err
}

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

func newRetentionJob(t *testing.T, repo *fakePurger, params OutboxRetentionJobParams, now time.Time) *outboxRetentionJob {
	t.Helper()
	params.Logger = logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	params.DB = passthroughTx{}
	params.Repository = repo
	job, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	retention := job.(*outboxRetentionJob)
	retention.now = func() time.Time { return now }
	return retention
}

func TestOutboxRetentionJobCutoffs(t *testing.T) {
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		params OutboxRetentionJobParams
		want   []purgeCall
	}{
		{
			name:   "explicit windows",
			params: OutboxRetentionJobParams{Retention: 48 * time.Hour, FailedRetention: 240 * time.Hour, MinAttempts: 5},
			want: []purgeCall{
				{kind: "delivered", cutoff: now.Add(-48 * time.Hour)},
				{kind: "exhausted", cutoff: now.Add(-240 * time.Hour), attempts: 5},
			},
		},
		{
			name: "defaults",
			want: []purgeCall{
				{kind: "delivered", cutoff: now.Add(-defaultOutboxRetention)},
				{kind: "exhausted", cutoff: now.Add(-defaultOutboxRetention), attempts: outboxMinAttempts},
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			repo := &fakePurger{}
			job := newRetentionJob(t, repo, tc.params, now)

			require.NoError(t, job.Run(context.Background()))
			assert.Equal(t, tc.want, repo.calls)
		})
	}
}

func TestOutboxRetentionJobStopsOnError(t *testing.T) {
	repo := &fakePurger{err: errors.New("boom")}
	job := newRetentionJob(t, repo, OutboxRetentionJobParams{}, time.Now())

	err := job.Run(context.Background())
	require.ErrorContains(t, err, "delivered rows: boom")
	assert.Len(t, repo.calls, 1)
}

func TestNewOutboxRetentionJobRequiresDependencies(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logger.New(logger.Options{ServiceName: "test"})})
	require.ErrorContains(t, err, "db runner required")
}
