package daemon_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"spectra/internal/daemon"
	"spectra/internal/jobs"
	"spectra/internal/logging"
	"spectra/internal/testsupport"
)

func TestStartServesAndEnforcesSingleInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if !d.Running() {
		t.Fatal("expected daemon running")
	}

	addr := d.APIAddr()
	if addr == "" {
		t.Fatal("expected bound API address")
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(fmt.Sprintf("http://%s/api/v1/status", addr))
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200 from status, got %d", resp.StatusCode)
	}
	var status struct {
		Running bool   `json:"running"`
		Mode    string `json:"mode"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if !status.Running || status.Mode != "local" {
		t.Fatalf("unexpected status payload: %+v", status)
	}

	second, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer second.Close()
	if err := second.Start(ctx); err == nil {
		second.Stop()
		t.Fatal("expected second instance to fail to start")
	}

	d.Stop()
	if d.Running() {
		t.Fatal("expected daemon stopped")
	}

	// The lock is free again after Stop.
	if err := second.Start(ctx); err != nil {
		t.Fatalf("restart after release failed: %v", err)
	}
	second.Stop()
}

func TestStartFailsOrphanedLocalJobs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	store := d.Store()
	job, err := store.Create(ctx, "orphan.mp4", "/uploads/orphan.mp4", "strict")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.MarkProcessing(ctx, job.ID); err != nil {
		t.Fatalf("MarkProcessing failed: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	swept, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if swept.Status != jobs.StatusFailed {
		t.Fatalf("expected orphan FAILED at startup, got %s", swept.Status)
	}
}

func TestStartRequeuesStaleRemoteClaims(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithRemoteMode())
	d, err := daemon.New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer d.Close()

	ctx := context.Background()
	store := d.Store()
	job, err := store.Create(ctx, "fresh.mp4", "/uploads/fresh.mp4", "strict")
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if _, err := store.MarkQueued(ctx, job.ID); err != nil {
		t.Fatalf("MarkQueued failed: %v", err)
	}
	if _, err := store.Claim(ctx, job.ID); err != nil {
		t.Fatalf("Claim failed: %v", err)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer d.Stop()

	// The claim heartbeat is fresh, so the startup sweep must not touch it.
	fetched, err := store.GetByID(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	if fetched.Status != jobs.StatusProcessing {
		t.Fatalf("fresh remote claim requeued: %s", fetched.Status)
	}
}
