package worker

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/sahilchouksey/go-init-setup/model"
	"github.com/sahilchouksey/go-init-setup/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestResultTypesCarryChunkID(t *testing.T) {
	s := success(3, []string{"a"}, 10)
	if s.ChunkID() != 3 {
		t.Fatalf("ChunkID() = %d, want 3", s.ChunkID())
	}
	if _, ok := s.(SuccessResult); !ok {
		t.Fatalf("expected SuccessResult, got %T", s)
	}

	tr := transient(4, "TRANSIENT_ERROR", 0, errTest)
	if _, ok := tr.(TransientFailureResult); !ok {
		t.Fatalf("expected TransientFailureResult, got %T", tr)
	}

	pm := permanent(5, "PROCESSING_ERROR", errTest)
	if _, ok := pm.(PermanentFailureResult); !ok {
		t.Fatalf("expected PermanentFailureResult, got %T", pm)
	}
}

var errTest = testErr("boom")

type testErr string

func (e testErr) Error() string { return string(e) }

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION_TESTS") != "true" {
		t.Skip("Skipping integration test. Set RUN_INTEGRATION_TESTS=true to run.")
	}
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		os.Getenv("DB_HOST"), os.Getenv("DB_USER_NAME"), os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"), os.Getenv("DB_PORT"),
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to connect to test database: %v", err)
	}
	if err := db.AutoMigrate(&model.User{}, &model.Job{}, &model.JobChunk{}); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM job_chunks")
		db.Exec("DELETE FROM jobs")
		db.Exec("DELETE FROM users WHERE email LIKE 'worker-test-%'")
	})
	return db
}

// TestProcessCancelledJobMarksChunkCancelled exercises step 3 of the
// pipeline end to end without needing a live LLM: a job flagged
// is_cancelled must short-circuit straight to a permanent CANCELLED result.
func TestProcessCancelledJobMarksChunkCancelled(t *testing.T) {
	db := openTestDB(t)

	user := model.User{Email: "worker-test-a@example.com", Name: "A", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	job := model.Job{UserID: user.ID, OriginalFilename: "roman.pdf", IsCancelled: true}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	chunk := model.JobChunk{JobID: job.ID, ChunkID: 0, PageStart: 1, PageEnd: 1, MaxRetries: 3, Status: model.JobChunkStatusPending}
	if err := db.Create(&chunk).Error; err != nil {
		t.Fatalf("failed to create chunk: %v", err)
	}

	w := New(db, services.NewPDFExtractor(), nil)
	result, err := w.Process(context.Background(), job.ID, 0)
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	pm, ok := result.(PermanentFailureResult)
	if !ok {
		t.Fatalf("expected PermanentFailureResult, got %T", result)
	}
	if pm.Code != string(model.ChunkErrorCancelled) {
		t.Fatalf("Code = %q, want %q", pm.Code, model.ChunkErrorCancelled)
	}

	var reloaded model.JobChunk
	db.Where("job_id = ? AND chunk_id = ?", job.ID, 0).First(&reloaded)
	if reloaded.Status != model.JobChunkStatusFailed || reloaded.Attempts != 1 {
		t.Fatalf("unexpected chunk state after cancellation: %+v", reloaded)
	}
}
