package models

import "time"

type SyncJobStatus string

const (
	JobStatusPending    SyncJobStatus = "pending"     // Created, run loop not yet started
	JobStatusInProgress SyncJobStatus = "in_progress" // Run loop is fetching batches
	JobStatusCompleted  SyncJobStatus = "completed"   // All batches attempted
	JobStatusFailed     SyncJobStatus = "failed"      // Run-fatal error or timed out
)

type SyncKind string

const (
	// SyncKindFull is the only kind today; incremental modes reuse the column.
	SyncKindFull SyncKind = "full"
)

// SyncJob tracks one synchronization run for an (account, provider) pair.
// Terminal rows are immutable; a timed-out run is closed as failed and a
// fresh job is created for the next attempt.
type SyncJob struct {
	ID            string        `gorm:"column:id;primaryKey"`
	AccountID     string        `gorm:"column:account_id;index:idx_sync_job_key"`
	Provider      string        `gorm:"column:provider;index:idx_sync_job_key"`
	Kind          SyncKind      `gorm:"column:kind"`
	Status        SyncJobStatus `gorm:"column:status;index"`
	RecordsSynced int           `gorm:"column:records_synced"`
	RecordsFailed int           `gorm:"column:records_failed"`
	StartedAt     time.Time     `gorm:"column:started_at"`
	CompletedAt   *time.Time    `gorm:"column:completed_at"`
	ErrorMessage  *string       `gorm:"column:error_message"`
	CreatedAt     time.Time     `gorm:"column:created_at"`
	UpdatedAt     time.Time     `gorm:"column:updated_at"`
}

// TableName specifies the table name for GORM
func (SyncJob) TableName() string {
	return "donor_sync_job"
}

// Terminal reports whether the job reached a final state.
func (j SyncJob) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
