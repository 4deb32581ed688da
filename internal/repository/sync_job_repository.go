package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prospectiq/donorsync-worker/internal/models"
	"gorm.io/gorm"
)

type SyncJobRepository struct {
	db *gorm.DB
}

func NewSyncJobRepository(db *gorm.DB) *SyncJobRepository {
	return &SyncJobRepository{db: db}
}

// Create inserts a new sync job row. A duplicate-key error surfaces as
// gorm.ErrDuplicatedKey when another in_progress job exists for the key.
func (r *SyncJobRepository) Create(ctx context.Context, job *models.SyncJob) error {
	if err := r.db.WithContext(ctx).Create(job).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return err
		}
		return fmt.Errorf("failed to create sync job: %w", err)
	}
	return nil
}

// GetActive returns the in_progress job for the key, or nil if none exists.
func (r *SyncJobRepository) GetActive(ctx context.Context, accountID, provider string) (*models.SyncJob, error) {
	var job models.SyncJob
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND provider = ? AND status = ?", accountID, provider, models.JobStatusInProgress).
		First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query active job: %w", result.Error)
	}
	return &job, nil
}

// GetLatestCompleted returns the most recently completed job for the key,
// or nil if the key has never completed a sync.
func (r *SyncJobRepository) GetLatestCompleted(ctx context.Context, accountID, provider string) (*models.SyncJob, error) {
	var job models.SyncJob
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND provider = ? AND status = ?", accountID, provider, models.JobStatusCompleted).
		Order("completed_at DESC").
		First(&job)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query latest completed job: %w", result.Error)
	}
	return &job, nil
}

// ListRecent returns the most recent jobs for the key, newest first.
func (r *SyncJobRepository) ListRecent(ctx context.Context, accountID, provider string, limit int) ([]models.SyncJob, error) {
	var jobs []models.SyncJob
	result := r.db.WithContext(ctx).
		Where("account_id = ? AND provider = ?", accountID, provider).
		Order("started_at DESC").
		Limit(limit).
		Find(&jobs)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to list recent jobs: %w", result.Error)
	}
	return jobs, nil
}

// UpdateStatus moves a job to a non-terminal status.
func (r *SyncJobRepository) UpdateStatus(ctx context.Context, jobID string, status models.SyncJobStatus) error {
	result := r.db.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update job status: %w", result.Error)
	}
	return nil
}

// UpdateCounts persists the run loop's progress counters after each batch.
func (r *SyncJobRepository) UpdateCounts(ctx context.Context, jobID string, synced, failed int) error {
	result := r.db.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ?", jobID).
		Updates(map[string]interface{}{
			"records_synced": synced,
			"records_failed": failed,
			"updated_at":     time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update job counts: %w", result.Error)
	}
	return nil
}

// MarkCompleted closes the job as completed. Terminal rows are never updated again.
func (r *SyncJobRepository) MarkCompleted(ctx context.Context, jobID string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ? AND status = ?", jobID, models.JobStatusInProgress).
		Updates(map[string]interface{}{
			"status":       models.JobStatusCompleted,
			"completed_at": &now,
			"updated_at":   now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark job completed: %w", result.Error)
	}
	return nil
}

// MarkFailed closes the job as failed with the triggering error message.
func (r *SyncJobRepository) MarkFailed(ctx context.Context, jobID string, errorMessage string) error {
	now := time.Now()
	result := r.db.WithContext(ctx).Model(&models.SyncJob{}).
		Where("id = ? AND status IN ?", jobID, []models.SyncJobStatus{models.JobStatusPending, models.JobStatusInProgress}).
		Updates(map[string]interface{}{
			"status":        models.JobStatusFailed,
			"error_message": &errorMessage,
			"completed_at":  &now,
			"updated_at":    now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark job failed: %w", result.Error)
	}
	return nil
}
