package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prospectiq/donorsync-worker/internal/models"
	"github.com/prospectiq/donorsync-worker/internal/provider"
)

// Errors returned synchronously by StartSync. Run-loop failures never reach
// the caller; they are visible only through GetSyncStatus.
var (
	ErrAlreadyRunning  = errors.New("sync already running for this account and provider")
	ErrTooSoon         = errors.New("sync requested too soon after the last one")
	ErrNoCredential    = errors.New("no credential stored for this account and provider")
	ErrUnknownProvider = errors.New("unknown provider")
)

// TooSoonError carries the remaining wait until the throttle clears.
type TooSoonError struct {
	RetryAfter time.Duration
}

func (e *TooSoonError) Error() string {
	return fmt.Sprintf("sync requested too soon after the last one, retry in %s", e.RetryAfter.Round(time.Second))
}

func (e *TooSoonError) Unwrap() error {
	return ErrTooSoon
}

const staleJobErrorMessage = "sync timed out"

// statusHistoryLimit caps how many job rows GetSyncStatus returns.
const statusHistoryLimit = 10

// SyncJobStore persists sync job rows.
type SyncJobStore interface {
	Create(ctx context.Context, job *models.SyncJob) error
	GetActive(ctx context.Context, accountID, provider string) (*models.SyncJob, error)
	GetLatestCompleted(ctx context.Context, accountID, provider string) (*models.SyncJob, error)
	ListRecent(ctx context.Context, accountID, provider string, limit int) ([]models.SyncJob, error)
	UpdateStatus(ctx context.Context, jobID string, status models.SyncJobStatus) error
	UpdateCounts(ctx context.Context, jobID string, synced, failed int) error
	MarkCompleted(ctx context.Context, jobID string) error
	MarkFailed(ctx context.Context, jobID string, errorMessage string) error
}

// RecordStore merges normalized records by their merge key.
type RecordStore interface {
	UpsertConstituents(ctx context.Context, records []models.Constituent) (int, error)
	UpsertDonations(ctx context.Context, records []models.Donation) (int, error)
}

// CredentialResolver looks up the opaque provider secret for an account.
type CredentialResolver interface {
	Resolve(ctx context.Context, accountID, provider string) (string, error)
}

// RateLimiter spaces out consecutive adapter batch calls.
type RateLimiter interface {
	Wait(ctx context.Context, provider string) error
}

// Options tune the coordinator's pre-flight checks and run loop.
type Options struct {
	StaleThreshold       time.Duration // in_progress older than this is presumed crashed
	MinSyncInterval      time.Duration // minimum spacing between completed syncs per key
	BatchSize            int           // records requested per adapter fetch
	MaxRecordsPerAccount int           // per-kind stop once synced reaches this; 0 = unlimited
}

// SyncCoordinator orchestrates synchronization runs: pre-flight checks,
// detached batch loops, per-batch progress persistence and finalization.
// At most one run per (account, provider) is live at a time.
type SyncCoordinator struct {
	jobs        SyncJobStore
	records     RecordStore
	credentials CredentialResolver
	registry    *provider.Registry
	limiter     RateLimiter
	opts        Options

	// rootCtx outlives the triggering request; run loops are tied to the
	// worker's lifetime, not the caller's.
	rootCtx context.Context

	now func() time.Time

	mu       sync.Mutex
	inFlight map[string]struct{}
	wg       sync.WaitGroup
}

func NewSyncCoordinator(
	rootCtx context.Context,
	jobs SyncJobStore,
	records RecordStore,
	credentials CredentialResolver,
	registry *provider.Registry,
	limiter RateLimiter,
	opts Options,
) *SyncCoordinator {
	if opts.StaleThreshold <= 0 {
		opts.StaleThreshold = 30 * time.Minute
	}
	if opts.MinSyncInterval <= 0 {
		opts.MinSyncInterval = 15 * time.Minute
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 50
	}

	return &SyncCoordinator{
		jobs:        jobs,
		records:     records,
		credentials: credentials,
		registry:    registry,
		limiter:     limiter,
		opts:        opts,
		rootCtx:     rootCtx,
		now:         time.Now,
		inFlight:    make(map[string]struct{}),
	}
}

// StartSync runs the pre-flight checks for the key and, if they pass,
// creates a job and launches its run loop detached. It returns the new job
// ID before the run loop does any fetching.
func (c *SyncCoordinator) StartSync(ctx context.Context, accountID, providerName string) (string, error) {
	adapter, ok := c.registry.Get(providerName)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, providerName)
	}

	key := accountID + "|" + providerName
	if !c.claim(key) {
		return "", ErrAlreadyRunning
	}
	launched := false
	defer func() {
		if !launched {
			c.release(key)
		}
	}()

	// Concurrency guard with lazy staleness recovery: a live job blocks the
	// start; an orphaned one is closed as failed and the start proceeds.
	active, err := c.jobs.GetActive(ctx, accountID, providerName)
	if err != nil {
		return "", err
	}
	if active != nil {
		age := c.now().Sub(active.StartedAt)
		if age <= c.opts.StaleThreshold {
			return "", ErrAlreadyRunning
		}
		log.Printf("Job %s stale after %s, marking failed (account: %s, provider: %s)",
			active.ID, age.Round(time.Second), accountID, providerName)
		if err := c.jobs.MarkFailed(ctx, active.ID, staleJobErrorMessage); err != nil {
			return "", fmt.Errorf("failed to recover stale job: %w", err)
		}
	}

	latest, err := c.jobs.GetLatestCompleted(ctx, accountID, providerName)
	if err != nil {
		return "", err
	}
	if latest != nil && latest.CompletedAt != nil {
		elapsed := c.now().Sub(*latest.CompletedAt)
		if elapsed < c.opts.MinSyncInterval {
			return "", &TooSoonError{RetryAfter: c.opts.MinSyncInterval - elapsed}
		}
	}

	secret, err := c.credentials.Resolve(ctx, accountID, providerName)
	if err != nil {
		return "", ErrNoCredential
	}

	now := c.now()
	job := &models.SyncJob{
		ID:        uuid.New().String(),
		AccountID: accountID,
		Provider:  providerName,
		Kind:      models.SyncKindFull,
		Status:    models.JobStatusPending,
		StartedAt: now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("failed to create sync job: %w", err)
	}
	if err := c.jobs.UpdateStatus(ctx, job.ID, models.JobStatusInProgress); err != nil {
		_ = c.jobs.MarkFailed(ctx, job.ID, "failed to start: "+err.Error())
		return "", fmt.Errorf("failed to start sync job: %w", err)
	}
	job.Status = models.JobStatusInProgress

	launched = true
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.release(key)
		c.runSync(c.rootCtx, job, adapter, secret)
	}()

	return job.ID, nil
}

// GetSyncStatus returns the most recent job rows for the key, newest first.
// It reads the job store directly and is independent of any running loop.
func (c *SyncCoordinator) GetSyncStatus(ctx context.Context, accountID, providerName string) ([]models.SyncJob, error) {
	return c.jobs.ListRecent(ctx, accountID, providerName, statusHistoryLimit)
}

// Wait blocks until every detached run loop has exited. Used at shutdown.
func (c *SyncCoordinator) Wait() {
	c.wg.Wait()
}

func (c *SyncCoordinator) claim(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.inFlight[key]; busy {
		return false
	}
	c.inFlight[key] = struct{}{}
	return true
}

func (c *SyncCoordinator) release(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, key)
}

// runSync executes one job to its terminal state. Nothing here propagates to
// the caller of StartSync; failures end up on the job row.
func (c *SyncCoordinator) runSync(ctx context.Context, job *models.SyncJob, adapter provider.Adapter, secret string) {
	log.Printf("Starting sync job %s (account: %s, provider: %s)", job.ID, job.AccountID, job.Provider)

	// Finalization writes must survive a cancelled run context.
	finCtx := context.WithoutCancel(ctx)

	synced, failed := 0, 0
	var runErr error
	for _, kind := range adapter.Kinds() {
		synced, failed, runErr = c.syncKind(ctx, job, adapter, secret, kind, synced, failed)
		if runErr != nil {
			break
		}
	}

	if runErr != nil {
		log.Printf("Sync job %s failed: %v (synced: %d, failed: %d)", job.ID, runErr, synced, failed)
		if err := c.jobs.MarkFailed(finCtx, job.ID, runErr.Error()); err != nil {
			log.Printf("Warning: failed to mark job %s failed: %v", job.ID, err)
		}
		return
	}

	if err := c.jobs.MarkCompleted(finCtx, job.ID); err != nil {
		log.Printf("Warning: failed to mark job %s completed: %v", job.ID, err)
		return
	}
	log.Printf("Sync job %s completed (synced: %d, failed: %d)", job.ID, synced, failed)
}

// syncKind walks one record kind batch by batch. Batch-level store failures
// are counted and swallowed; fetch errors and cancelled waits are run-fatal.
func (c *SyncCoordinator) syncKind(ctx context.Context, job *models.SyncJob, adapter provider.Adapter, secret string, kind provider.RecordKind, synced, failed int) (int, int, error) {
	it, err := adapter.Fetch(ctx, secret, kind, c.opts.BatchSize)
	if err != nil {
		return synced, failed, fmt.Errorf("fetch %s: %w", kind, err)
	}

	for {
		batch, err := it.Next(ctx)
		if err != nil {
			return synced, failed, fmt.Errorf("fetch %s batch: %w", kind, err)
		}
		if len(batch) == 0 {
			return synced, failed, nil
		}

		okCount, failCount := c.mergeBatch(ctx, job, adapter, kind, batch)
		synced += okCount
		failed += failCount

		// Progress is observable mid-run; a lost counter write is not worth
		// failing the job over.
		if err := c.jobs.UpdateCounts(ctx, job.ID, synced, failed); err != nil {
			log.Printf("Warning: failed to update counts for job %s: %v", job.ID, err)
		}

		if c.opts.MaxRecordsPerAccount > 0 && synced >= c.opts.MaxRecordsPerAccount {
			log.Printf("Job %s reached record ceiling (%d) during %s, moving on", job.ID, c.opts.MaxRecordsPerAccount, kind)
			return synced, failed, nil
		}

		if err := c.limiter.Wait(ctx, job.Provider); err != nil {
			return synced, failed, fmt.Errorf("rate limit wait: %w", err)
		}
	}
}

// mergeBatch maps and upserts one batch, returning (synced, failed) deltas.
// A record the adapter cannot map fails individually; a store error fails
// the entire batch.
func (c *SyncCoordinator) mergeBatch(ctx context.Context, job *models.SyncJob, adapter provider.Adapter, kind provider.RecordKind, batch []provider.RawRecord) (int, int) {
	now := c.now()

	switch kind {
	case provider.KindConstituents:
		records := make([]models.Constituent, 0, len(batch))
		mapFailed := 0
		for _, raw := range batch {
			rec, err := adapter.MapConstituent(raw)
			if err != nil {
				log.Printf("Warning: job %s skipping constituent: %v", job.ID, err)
				mapFailed++
				continue
			}
			rec.ID = uuid.New().String()
			rec.AccountID = job.AccountID
			rec.Provider = job.Provider
			rec.SyncedAt = now
			records = append(records, rec)
		}
		n, err := c.records.UpsertConstituents(ctx, records)
		if err != nil {
			log.Printf("Warning: job %s constituent batch failed: %v", job.ID, err)
			return 0, len(batch)
		}
		return n, mapFailed

	case provider.KindDonations:
		records := make([]models.Donation, 0, len(batch))
		mapFailed := 0
		for _, raw := range batch {
			rec, err := adapter.MapDonation(raw)
			if err != nil {
				log.Printf("Warning: job %s skipping donation: %v", job.ID, err)
				mapFailed++
				continue
			}
			rec.ID = uuid.New().String()
			rec.AccountID = job.AccountID
			rec.Provider = job.Provider
			rec.SyncedAt = now
			records = append(records, rec)
		}
		n, err := c.records.UpsertDonations(ctx, records)
		if err != nil {
			log.Printf("Warning: job %s donation batch failed: %v", job.ID, err)
			return 0, len(batch)
		}
		return n, mapFailed

	default:
		log.Printf("Warning: job %s got unknown record kind %q, counting batch failed", job.ID, kind)
		return 0, len(batch)
	}
}
