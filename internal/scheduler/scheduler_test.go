package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prospectiq/donorsync-worker/internal/models"
	"github.com/prospectiq/donorsync-worker/internal/service"
)

type stubLister struct {
	creds []models.ProviderCredential
	err   error
}

func (s *stubLister) ListAutoSync(ctx context.Context) ([]models.ProviderCredential, error) {
	return s.creds, s.err
}

type recordingStarter struct {
	mu    sync.Mutex
	calls []string
	errs  map[string]error
}

func (s *recordingStarter) StartSync(ctx context.Context, accountID, provider string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := accountID + "|" + provider
	s.calls = append(s.calls, key)
	if err, ok := s.errs[key]; ok {
		return "", err
	}
	return "job-" + key, nil
}

func (s *recordingStarter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestTriggerDueSyncs_StartsEveryConnection(t *testing.T) {
	lister := &stubLister{creds: []models.ProviderCredential{
		{AccountID: "acc-1", Provider: "neon"},
		{AccountID: "acc-1", Provider: "sheets"},
		{AccountID: "acc-2", Provider: "neon"},
	}}
	starter := &recordingStarter{}

	s := New(lister, starter, time.Minute)
	s.triggerDueSyncs(context.Background())

	if got := starter.callCount(); got != 3 {
		t.Errorf("expected 3 trigger attempts, got %d", got)
	}
}

func TestTriggerDueSyncs_IgnoresPreflightRejections(t *testing.T) {
	lister := &stubLister{creds: []models.ProviderCredential{
		{AccountID: "acc-1", Provider: "neon"},
		{AccountID: "acc-2", Provider: "neon"},
		{AccountID: "acc-3", Provider: "neon"},
	}}
	starter := &recordingStarter{errs: map[string]error{
		"acc-1|neon": service.ErrAlreadyRunning,
		"acc-2|neon": &service.TooSoonError{RetryAfter: time.Minute},
	}}

	s := New(lister, starter, time.Minute)
	// Rejections must not stop the walk over the remaining connections.
	s.triggerDueSyncs(context.Background())

	if got := starter.callCount(); got != 3 {
		t.Errorf("expected all 3 connections attempted, got %d", got)
	}
}

func TestStart_StopsOnContextCancel(t *testing.T) {
	lister := &stubLister{}
	starter := &recordingStarter{}
	s := New(lister, starter, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Start(ctx)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
}
