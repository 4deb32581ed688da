package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prospectiq/donorsync-worker/internal/models"
	"github.com/prospectiq/donorsync-worker/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubCoordinator struct {
	startFunc  func(ctx context.Context, accountID, provider string) (string, error)
	statusFunc func(ctx context.Context, accountID, provider string) ([]models.SyncJob, error)
}

func (s *stubCoordinator) StartSync(ctx context.Context, accountID, provider string) (string, error) {
	return s.startFunc(ctx, accountID, provider)
}

func (s *stubCoordinator) GetSyncStatus(ctx context.Context, accountID, provider string) ([]models.SyncJob, error) {
	if s.statusFunc != nil {
		return s.statusFunc(ctx, accountID, provider)
	}
	return nil, nil
}

func doRequest(t *testing.T, coordinator Coordinator, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	srv := New(coordinator)
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestStartSync_Accepted(t *testing.T) {
	stub := &stubCoordinator{
		startFunc: func(ctx context.Context, accountID, provider string) (string, error) {
			if accountID != "acc-1" || provider != "neon" {
				t.Errorf("unexpected key %s/%s", accountID, provider)
			}
			return "job-42", nil
		},
	}

	w := doRequest(t, stub, "POST", "/api/v1/accounts/acc-1/providers/neon/sync")
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", w.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if body["job_id"] != "job-42" {
		t.Errorf("expected job_id job-42, got %q", body["job_id"])
	}
}

func TestStartSync_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"already running", service.ErrAlreadyRunning, http.StatusConflict},
		{"too soon", &service.TooSoonError{RetryAfter: 10 * time.Minute}, http.StatusTooManyRequests},
		{"no credential", service.ErrNoCredential, http.StatusBadRequest},
		{"unknown provider", service.ErrUnknownProvider, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubCoordinator{
				startFunc: func(ctx context.Context, accountID, provider string) (string, error) {
					return "", tt.err
				},
			}

			w := doRequest(t, stub, "POST", "/api/v1/accounts/acc-1/providers/neon/sync")
			if w.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, w.Code)
			}
		})
	}
}

func TestStartSync_TooSoonCarriesRetryAfter(t *testing.T) {
	stub := &stubCoordinator{
		startFunc: func(ctx context.Context, accountID, provider string) (string, error) {
			return "", &service.TooSoonError{RetryAfter: 10 * time.Minute}
		},
	}

	w := doRequest(t, stub, "POST", "/api/v1/accounts/acc-1/providers/neon/sync")

	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if secs, ok := body["retry_after_seconds"].(float64); !ok || secs != 600 {
		t.Errorf("expected retry_after_seconds 600, got %v", body["retry_after_seconds"])
	}
}

func TestGetSyncStatus(t *testing.T) {
	now := time.Now()
	errMsg := "sync timed out"
	stub := &stubCoordinator{
		startFunc: func(ctx context.Context, accountID, provider string) (string, error) {
			return "", nil
		},
		statusFunc: func(ctx context.Context, accountID, provider string) ([]models.SyncJob, error) {
			return []models.SyncJob{
				{ID: "job-2", Status: models.JobStatusInProgress, RecordsSynced: 40, StartedAt: now},
				{ID: "job-1", Status: models.JobStatusFailed, ErrorMessage: &errMsg, StartedAt: now.Add(-time.Hour)},
			}, nil
		},
	}

	w := doRequest(t, stub, "GET", "/api/v1/accounts/acc-1/providers/neon/sync")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var body struct {
		Jobs []jobSummary `json:"jobs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to parse body: %v", err)
	}
	if len(body.Jobs) != 2 {
		t.Fatalf("expected 2 jobs, got %d", len(body.Jobs))
	}
	if body.Jobs[0].ID != "job-2" || body.Jobs[0].RecordsSynced != 40 {
		t.Errorf("unexpected first job: %+v", body.Jobs[0])
	}
	if body.Jobs[1].ErrorMessage == nil || *body.Jobs[1].ErrorMessage != "sync timed out" {
		t.Errorf("expected error message on failed job, got %v", body.Jobs[1].ErrorMessage)
	}
}

func TestHealthz(t *testing.T) {
	stub := &stubCoordinator{
		startFunc: func(ctx context.Context, accountID, provider string) (string, error) {
			return "", nil
		},
	}

	w := doRequest(t, stub, "GET", "/healthz")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}
