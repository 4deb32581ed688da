package scheduler

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/prospectiq/donorsync-worker/internal/models"
	"github.com/prospectiq/donorsync-worker/internal/service"
)

// CredentialLister enumerates connections that opted into scheduled syncs.
type CredentialLister interface {
	ListAutoSync(ctx context.Context) ([]models.ProviderCredential, error)
}

// SyncStarter triggers a sync run for one (account, provider) key.
type SyncStarter interface {
	StartSync(ctx context.Context, accountID, provider string) (string, error)
}

// Scheduler periodically retriggers syncs for auto-sync accounts. The
// coordinator's own throttle and single-flight checks decide whether each
// trigger actually runs, so the tick interval can be short.
type Scheduler struct {
	credentials  CredentialLister
	coordinator  SyncStarter
	pollInterval time.Duration
}

func New(credentials CredentialLister, coordinator SyncStarter, pollInterval time.Duration) *Scheduler {
	return &Scheduler{
		credentials:  credentials,
		coordinator:  coordinator,
		pollInterval: pollInterval,
	}
}

// Start begins the trigger loop and blocks until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	log.Println("Starting sync scheduler...")

	// Trigger once at startup so restarts do not wait a full tick.
	s.triggerDueSyncs(ctx)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Scheduler shutting down...")
			return ctx.Err()
		case <-ticker.C:
			s.triggerDueSyncs(ctx)
		}
	}
}

// triggerDueSyncs attempts a sync per auto-sync connection. Rejections from
// the coordinator's pre-flight checks are the normal steady state here.
func (s *Scheduler) triggerDueSyncs(ctx context.Context) {
	creds, err := s.credentials.ListAutoSync(ctx)
	if err != nil {
		log.Printf("Error listing auto-sync connections: %v", err)
		return
	}

	for _, cred := range creds {
		jobID, err := s.coordinator.StartSync(ctx, cred.AccountID, cred.Provider)
		if err != nil {
			if errors.Is(err, service.ErrAlreadyRunning) || errors.Is(err, service.ErrTooSoon) {
				continue
			}
			log.Printf("Error triggering sync (account: %s, provider: %s): %v", cred.AccountID, cred.Provider, err)
			continue
		}
		log.Printf("Scheduled sync job %s (account: %s, provider: %s)", jobID, cred.AccountID, cred.Provider)
	}
}
