package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"spectra/internal/jobs"
	"spectra/internal/testsupport"
)

func newJob(t *testing.T, store *jobs.Store, name string) *jobs.Job {
	t.Helper()
	job, err := store.Create(context.Background(), name, "/uploads/"+name, "strict")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return job
}

func completedJob(t *testing.T, store *jobs.Store, name string) *jobs.Job {
	t.Helper()
	ctx := context.Background()
	job := newJob(t, store, name)
	if _, err := store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	job, err := store.Complete(ctx, job.ID, "/results/"+name+"/Master_Report.json")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	return job
}

func TestCreateDefaultsAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job, err := store.Create(ctx, "sample.mp4", "/uploads/sample.mp4", "")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if job.ID == 0 {
		t.Fatal("expected job ID to be assigned")
	}
	if job.Status != jobs.StatusPending {
		t.Fatalf("expected PENDING, got %s", job.Status)
	}
	if job.Profile != "strict" {
		t.Fatalf("expected default profile strict, got %q", job.Profile)
	}
	if job.Progress != 0 {
		t.Fatalf("expected zero progress, got %d", job.Progress)
	}

	missing, err := store.GetByID(ctx, job.ID+100)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for missing job, got %#v", missing)
	}
}

func TestCreateRequiresFilename(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.Create(context.Background(), "", "/uploads/x", "strict"); err == nil {
		t.Fatal("expected error when filename missing")
	}
}

func TestListNewestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := newJob(t, store, "a.mp4")
	second := newJob(t, store, "b.mp4")

	items, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(items))
	}
	if items[0].ID != second.ID || items[1].ID != first.ID {
		t.Fatalf("expected newest first, got %d then %d", items[0].ID, items[1].ID)
	}

	if _, err := store.Fail(ctx, first.ID, "boom"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}
	failed, err := store.List(ctx, jobs.StatusFailed)
	if err != nil {
		t.Fatalf("List filtered failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != first.ID {
		t.Fatalf("unexpected filtered result: %#v", failed)
	}
}

func TestClaimExactlyOneWinner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob(t, store, "contested.mp4")
	if _, err := store.MarkQueued(ctx, job.ID); err != nil {
		t.Fatalf("MarkQueued failed: %v", err)
	}

	const claimers = 8
	var wg sync.WaitGroup
	results := make([]error, claimers)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, results[slot] = store.Claim(ctx, job.ID)
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, jobs.ErrClaimConflict):
		default:
			t.Fatalf("unexpected claim error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning claim, got %d", wins)
	}

	claimed, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if claimed.Status != jobs.StatusProcessing {
		t.Fatalf("expected PROCESSING after claim, got %s", claimed.Status)
	}
}

func TestClaimRemediationTrack(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := completedJob(t, store, "fixme.mp4")
	if _, err := store.RequestFix(ctx, job.ID, "loudness_norm", jobs.FixQueued); err != nil {
		t.Fatalf("RequestFix failed: %v", err)
	}

	claimed, err := store.Claim(ctx, job.ID)
	if err != nil {
		t.Fatalf("Claim failed: %v", err)
	}
	if claimed.Status != jobs.StatusCompleted {
		t.Fatalf("claim must not touch primary status, got %s", claimed.Status)
	}
	if claimed.FixStatus != jobs.FixProcessing {
		t.Fatalf("expected fix PROCESSING, got %s", claimed.FixStatus)
	}

	if _, err := store.Claim(ctx, job.ID); !errors.Is(err, jobs.ErrClaimConflict) {
		t.Fatalf("expected ErrClaimConflict on second claim, got %v", err)
	}
}

func TestClaimMissingJob(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	if _, err := store.Claim(context.Background(), 42); !errors.Is(err, jobs.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestProgressMonotonicWhileProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob(t, store, "progress.mp4")

	// Progress writes are ignored before the job is claimed.
	if err := store.UpdateProgress(ctx, job.ID, 25, "early"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.Progress != 0 || fetched.CurrentStep != "" {
		t.Fatalf("expected progress untouched before claim, got %#v", fetched)
	}

	if _, err := store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}
	if err := store.UpdateProgress(ctx, job.ID, 55, "Analyzing frames"); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}
	if err := store.UpdateProgress(ctx, job.ID, 30, ""); err != nil {
		t.Fatalf("UpdateProgress failed: %v", err)
	}

	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Progress != 55 {
		t.Fatalf("expected progress to hold at 55, got %d", fetched.Progress)
	}
	if fetched.CurrentStep != "Analyzing frames" {
		t.Fatalf("expected step retained, got %q", fetched.CurrentStep)
	}
}

func TestTerminalStatesAbsorb(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := newJob(t, store, "terminal.mp4")
	if _, err := store.Fail(ctx, job.ID, "engine crashed"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	if _, err := store.MarkProcessing(ctx, job.ID); !errors.Is(err, jobs.ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if _, err := store.Complete(ctx, job.ID, "/results/x"); !errors.Is(err, jobs.ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}

	fetched, _ := store.GetByID(ctx, job.ID)
	if fetched.Status != jobs.StatusFailed || fetched.ErrorMessage != "engine crashed" {
		t.Fatalf("terminal row mutated: %#v", fetched)
	}
}

func TestCompleteRecordsOutcome(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)

	job := completedJob(t, store, "done.mp4")
	if job.Progress != 100 {
		t.Fatalf("expected 100%% progress, got %d", job.Progress)
	}
	if job.ResultJSONPath == "" {
		t.Fatal("expected result path recorded")
	}
	if job.CompletedAt == nil {
		t.Fatal("expected completion timestamp")
	}
}

func TestRequestFixGating(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	pending := newJob(t, store, "notdone.mp4")
	if _, err := store.RequestFix(ctx, pending.ID, "loudness_norm", jobs.FixQueued); !errors.Is(err, jobs.ErrFixUnavailable) {
		t.Fatalf("expected ErrFixUnavailable before completion, got %v", err)
	}

	job := completedJob(t, store, "fixable.mp4")
	if _, err := store.RequestFix(ctx, job.ID, "loudness_norm", jobs.FixQueued); err != nil {
		t.Fatalf("RequestFix failed: %v", err)
	}
	if _, err := store.RequestFix(ctx, job.ID, "transcode_lossless", jobs.FixQueued); !errors.Is(err, jobs.ErrFixUnavailable) {
		t.Fatalf("expected ErrFixUnavailable while fix in flight, got %v", err)
	}

	// A failed fix can be retried.
	if _, err := store.FailFix(ctx, job.ID, "loudnorm crashed"); err != nil {
		t.Fatalf("FailFix failed: %v", err)
	}
	retried, err := store.RequestFix(ctx, job.ID, "transcode_lossless", jobs.FixProcessing)
	if err != nil {
		t.Fatalf("RequestFix retry failed: %v", err)
	}
	if retried.FixStatus != jobs.FixProcessing || retried.FixType != "transcode_lossless" {
		t.Fatalf("unexpected retried fix state: %#v", retried)
	}
}

func TestFailFixLeavesPrimaryCompleted(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := completedJob(t, store, "fixfail.mp4")
	if _, err := store.RequestFix(ctx, job.ID, "loudness_norm", jobs.FixProcessing); err != nil {
		t.Fatalf("RequestFix failed: %v", err)
	}
	failed, err := store.FailFix(ctx, job.ID, "fix exploded")
	if err != nil {
		t.Fatalf("FailFix failed: %v", err)
	}
	if failed.Status != jobs.StatusCompleted {
		t.Fatalf("primary status must survive fix failure, got %s", failed.Status)
	}
	if failed.FixStatus != jobs.FixFailed {
		t.Fatalf("expected fix FAILED, got %s", failed.FixStatus)
	}
	if failed.ResultJSONPath == "" {
		t.Fatal("result path must survive fix failure")
	}
}

func TestCompleteFixRecordsArtifact(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	job := completedJob(t, store, "fixok.mp4")
	if _, err := store.RequestFix(ctx, job.ID, "loudness_norm", jobs.FixQueued); err != nil {
		t.Fatalf("RequestFix failed: %v", err)
	}
	if _, err := store.MarkFixProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkFixProcessing failed: %v", err)
	}
	fixed, err := store.CompleteFix(ctx, job.ID, "/uploads/fixok_fixed_loudness_norm.mp4")
	if err != nil {
		t.Fatalf("CompleteFix failed: %v", err)
	}
	if fixed.FixStatus != jobs.FixCompleted || fixed.FixedFilePath == "" {
		t.Fatalf("unexpected fixed state: %#v", fixed)
	}
}

func TestListPendingUnionOldestFirst(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	analysis := newJob(t, store, "queued.mp4")
	if _, err := store.MarkQueued(ctx, analysis.ID); err != nil {
		t.Fatalf("MarkQueued failed: %v", err)
	}
	remediation := completedJob(t, store, "refix.mp4")
	if _, err := store.RequestFix(ctx, remediation.ID, "loudness_norm", jobs.FixQueued); err != nil {
		t.Fatalf("RequestFix failed: %v", err)
	}
	// Terminal noise should not appear.
	if _, err := store.Fail(ctx, newJob(t, store, "noise.mp4").ID, "nope"); err != nil {
		t.Fatalf("Fail failed: %v", err)
	}

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatalf("ListPending failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("expected 2 pending jobs, got %d", len(pending))
	}
	if pending[0].ID != analysis.ID || pending[1].ID != remediation.ID {
		t.Fatalf("expected oldest first, got %d then %d", pending[0].ID, pending[1].ID)
	}
}

func TestReclaimStaleProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	stale := newJob(t, store, "stale.mp4")
	if _, err := store.MarkQueued(ctx, stale.ID); err != nil {
		t.Fatalf("MarkQueued failed: %v", err)
	}
	if _, err := store.Claim(ctx, stale.ID); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	// Cutoff in the past: the fresh claim survives.
	count, err := store.ReclaimStaleProcessing(ctx, time.Now().UTC().Add(-time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected no reclaims, got %d", count)
	}

	// Cutoff in the future: the claim heartbeat has expired.
	count, err = store.ReclaimStaleProcessing(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("ReclaimStaleProcessing failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected one reclaim, got %d", count)
	}

	requeued, err := store.GetByID(ctx, stale.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if requeued.Status != jobs.StatusQueued {
		t.Fatalf("expected QUEUED after reclaim, got %s", requeued.Status)
	}
}

func TestFailStuckProcessing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var stuck []int64
	for i := 0; i < 3; i++ {
		job := newJob(t, store, fmt.Sprintf("stuck-%d.mp4", i))
		if _, err := store.MarkProcessing(ctx, job.ID); err != nil {
			t.Fatalf("MarkProcessing failed: %v", err)
		}
		stuck = append(stuck, job.ID)
	}
	untouched := completedJob(t, store, "survivor.mp4")

	count, err := store.FailStuckProcessing(ctx, "daemon restarted during processing")
	if err != nil {
		t.Fatalf("FailStuckProcessing failed: %v", err)
	}
	if int(count) != len(stuck) {
		t.Fatalf("expected %d failed, got %d", len(stuck), count)
	}

	for _, id := range stuck {
		job, _ := store.GetByID(ctx, id)
		if job.Status != jobs.StatusFailed {
			t.Fatalf("job %d: expected FAILED, got %s", id, job.Status)
		}
	}
	if job, _ := store.GetByID(ctx, untouched.ID); job.Status != jobs.StatusCompleted {
		t.Fatalf("completed job swept up: %s", job.Status)
	}
}

func TestRemoveAndStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	completedJob(t, store, "keep.mp4")
	drop := newJob(t, store, "drop.mp4")

	removed, err := store.Remove(ctx, drop.ID)
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if !removed {
		t.Fatal("expected row removed")
	}
	if removed, _ := store.Remove(ctx, drop.ID); removed {
		t.Fatal("expected second remove to be a no-op")
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Total != 1 || stats.Completed != 1 {
		t.Fatalf("unexpected stats: %#v", stats)
	}
}
