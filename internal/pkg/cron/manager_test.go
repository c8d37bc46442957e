package cron

import (
	"Parley/internal/job"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRegisterJobsRejectsBadSpec(t *testing.T) {
	mgr := NewCronManager(job.NewMediaCleanupJob(nil, nil, nil, 30, 24), "every night")
	require.Error(t, mgr.RegisterJobs())
}

func TestRegisterJobsAcceptsSecondsSpec(t *testing.T) {
	mgr := NewCronManager(job.NewMediaCleanupJob(nil, nil, nil, 30, 24), "0 0 3 * * *")
	require.NoError(t, mgr.RegisterJobs())
	require.Len(t, mgr.engine.Entries(), 1)
}

func TestRunStopsWithContext(t *testing.T) {
	mgr := NewCronManager(job.NewMediaCleanupJob(nil, nil, nil, 30, 24), "0 0 3 * * *")
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunFailsOnBadSpec(t *testing.T) {
	mgr := NewCronManager(job.NewMediaCleanupJob(nil, nil, nil, 30, 24), "* * *")
	require.Error(t, mgr.Run(context.Background()))
}
