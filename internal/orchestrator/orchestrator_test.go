package orchestrator

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/falconwiki/falcon/internal/pipeline"
	"github.com/falconwiki/falcon/internal/store"
)

// TestStartStop_NoQueuedJobsIsANoop exercises the poll-loop lifecycle
// (orphan reset, slot acquisition, graceful shutdown) against a real
// store with nothing queued, so the pipeline is never invoked and a
// zero-value Pipeline is a safe stand-in.
func TestStartStop_NoQueuedJobsIsANoop(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer st.Close()

	o := New(st, &pipeline.Pipeline{}, 2, 10*time.Millisecond, nil)
	require.NoError(t, o.Start(ctx))

	time.Sleep(30 * time.Millisecond)

	stopped := make(chan struct{})
	go func() {
		o.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}
}

func TestStartStop_ResetsOrphanedRunningJobsOnStart(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(ctx, filepath.Join(t.TempDir(), "test.db"), nil)
	require.NoError(t, err)
	defer st.Close()

	result, err := st.CreateWiki(ctx, "owner", "repo", "https://github.com/owner/repo", "main", "wiki-1", "job-1")
	require.NoError(t, err)
	_, err = st.ClaimNextJob(ctx, "stale-worker")
	require.NoError(t, err)

	o := New(st, &pipeline.Pipeline{}, 1, time.Hour, nil)
	require.NoError(t, o.Start(ctx))
	defer o.Stop()

	job, err := st.ClaimNextJob(ctx, "fresh-worker")
	require.NoError(t, err)
	require.NotNil(t, job, "the orphaned job must be reclaimable after Start resets it")
	require.Equal(t, result.JobID, job.ID)
}
