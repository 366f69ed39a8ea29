package orchestrator

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/sahilchouksey/go-init-setup/ledger"
	"github.com/sahilchouksey/go-init-setup/model"
	"github.com/sahilchouksey/go-init-setup/progress"
	"github.com/sahilchouksey/go-init-setup/queue"
	"github.com/sahilchouksey/go-init-setup/splitter"
	"github.com/sahilchouksey/go-init-setup/worker"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// openTestDB follows the teacher's own integration-test convention: skip
// unless RUN_INTEGRATION_TESTS=true and the DB_* variables are set.
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
	if err := db.AutoMigrate(
		&model.User{}, &model.Job{}, &model.JobChunk{},
		&model.CreditLedgerEntry{}, &model.History{},
	); err != nil {
		t.Fatalf("failed to migrate test schema: %v", err)
	}
	t.Cleanup(func() {
		db.Exec("DELETE FROM histories")
		db.Exec("DELETE FROM ledger")
		db.Exec("DELETE FROM job_chunks")
		db.Exec("DELETE FROM jobs")
		db.Exec("DELETE FROM users WHERE email LIKE 'orchestrator-test-%'")
	})
	return db
}

func newOrchestrator(db *gorm.DB) *Orchestrator {
	sp := splitter.New(db, nil, nil)
	wk := worker.New(db, nil, nil)
	lg := ledger.New(db)
	pub := progress.New(db, nil)
	return New(db, sp, wk, lg, pub, queue.New(nil), DefaultConfig())
}

func newTestJob(t *testing.T, db *gorm.DB, email string) model.Job {
	t.Helper()
	user := model.User{Email: email, Name: "Test", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	job := model.Job{
		UserID:           user.ID,
		OriginalFilename: "roman.pdf",
		ModelTier:        model.ModelTierBalanced,
		Settings:         datatypes.NewJSONType(model.DefaultProcessingSettings()),
		PricingVersion:   "v1",
		PricingRate:      0.001,
		Status:           model.JobStatusProcessing,
		TotalChunks:      1,
		EstimatedCredits: 10,
	}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("failed to create job: %v", err)
	}
	return job
}

func successChunk(jobID uint, chunkID int, sentences []string, tokens int64) model.JobChunk {
	return model.JobChunk{
		JobID:      jobID,
		ChunkID:    chunkID,
		PageStart:  1,
		PageEnd:    12,
		Status:     model.JobChunkStatusSuccess,
		Attempts:   1,
		MaxRetries: 3,
		ResultJSON: datatypes.NewJSONType(model.JobChunkResult{Sentences: sentences, Tokens: tokens}),
	}
}

// TestFinalizeSmallPDFHappyPath mirrors the spec's scenario 1: a single
// successful chunk merges straight to a completed job with no retry round.
func TestFinalizeSmallPDFHappyPath(t *testing.T) {
	db := openTestDB(t)
	job := newTestJob(t, db, "orchestrator-test-happy@example.com")

	chunk := successChunk(job.ID, 0, []string{"Le chat dort paisiblement.", "Il fait beau aujourd'hui."}, 120)
	if err := db.Create(&chunk).Error; err != nil {
		t.Fatalf("failed to create chunk: %v", err)
	}

	o := newOrchestrator(db)
	if err := o.Finalize(context.Background(), job.ID, 0); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	var reloaded model.Job
	db.First(&reloaded, job.ID)
	if reloaded.Status != model.JobStatusCompleted {
		t.Fatalf("status = %q, want completed", reloaded.Status)
	}
	if reloaded.ProgressPercent != 100 {
		t.Fatalf("progress_percent = %d, want 100", reloaded.ProgressPercent)
	}
	if reloaded.HistoryID == nil {
		t.Fatal("expected history_id to be set")
	}
	if reloaded.ActualCredits == nil || *reloaded.ActualCredits != 1 {
		t.Fatalf("actual_credits = %v, want 1 (ceil(120*0.001))", reloaded.ActualCredits)
	}

	var history model.History
	db.First(&history, *reloaded.HistoryID)
	sentences, _ := history.GetSentences()
	if len(sentences) != 2 {
		t.Fatalf("history sentences = %v, want 2", sentences)
	}
}

// TestFinalizePartialSuccessReportsFailures mirrors scenario 4: some
// chunks exhaust retries while others succeed. The job still completes,
// carrying every surviving sentence plus an explanatory error message.
func TestFinalizePartialSuccessReportsFailures(t *testing.T) {
	db := openTestDB(t)
	job := newTestJob(t, db, "orchestrator-test-partial@example.com")
	job.TotalChunks = 2
	db.Save(&job)

	ok := successChunk(job.ID, 0, []string{"Une phrase correcte ici."}, 80)
	failed := model.JobChunk{
		JobID: job.ID, ChunkID: 1, PageStart: 13, PageEnd: 24,
		Status: model.JobChunkStatusFailed, Attempts: 3, MaxRetries: 3,
		LastErrorCode: model.ChunkErrorProcessing, LastError: "boom",
	}
	if err := db.Create(&ok).Error; err != nil {
		t.Fatalf("failed to create success chunk: %v", err)
	}
	if err := db.Create(&failed).Error; err != nil {
		t.Fatalf("failed to create failed chunk: %v", err)
	}

	o := newOrchestrator(db)
	if err := o.Finalize(context.Background(), job.ID, 0); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	var reloaded model.Job
	db.First(&reloaded, job.ID)
	if reloaded.Status != model.JobStatusCompleted {
		t.Fatalf("status = %q, want completed", reloaded.Status)
	}
	if reloaded.ErrorMessage == "" {
		t.Fatal("expected a non-empty error_message reporting the permanent failure")
	}
}

// TestFinalizeAllChunksFailedMarksJobFailed covers the zero-success edge
// case: a job whose every chunk exhausts its retry budget never reaches
// completed, and its reserve is refunded rather than finalized.
func TestFinalizeAllChunksFailedMarksJobFailed(t *testing.T) {
	db := openTestDB(t)
	job := newTestJob(t, db, "orchestrator-test-allfail@example.com")

	failed := model.JobChunk{
		JobID: job.ID, ChunkID: 0, PageStart: 1, PageEnd: 12,
		Status: model.JobChunkStatusFailed, Attempts: 3, MaxRetries: 3,
		LastErrorCode: model.ChunkErrorNoText, LastError: "no extractable text",
	}
	if err := db.Create(&failed).Error; err != nil {
		t.Fatalf("failed to create chunk: %v", err)
	}

	if err := db.Create(&model.CreditLedgerEntry{
		UserID: job.UserID, Month: "2026-07", Delta: -job.EstimatedCredits,
		Reason: model.LedgerReasonJobReserve, JobID: &job.ID, PricingVersion: job.PricingVersion,
	}).Error; err != nil {
		t.Fatalf("failed to seed reserve entry: %v", err)
	}

	o := newOrchestrator(db)
	if err := o.Finalize(context.Background(), job.ID, 0); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	var reloaded model.Job
	db.First(&reloaded, job.ID)
	if reloaded.Status != model.JobStatusFailed {
		t.Fatalf("status = %q, want failed", reloaded.Status)
	}

	var refundCount int64
	db.Model(&model.CreditLedgerEntry{}).
		Where("job_id = ? AND reason = ?", job.ID, model.LedgerReasonJobRefund).
		Count(&refundCount)
	if refundCount != 1 {
		t.Fatalf("expected exactly one refund entry, found %d", refundCount)
	}
}

// TestFinalizeCancelledJobRefundsAndPreservesSuccesses mirrors scenario 5:
// a cancellation mid-flight refunds the full reserve regardless of any
// chunks that had already completed.
func TestFinalizeCancelledJobRefundsAndPreservesSuccesses(t *testing.T) {
	db := openTestDB(t)
	job := newTestJob(t, db, "orchestrator-test-cancel@example.com")
	job.IsCancelled = true
	db.Save(&job)

	chunk := successChunk(job.ID, 0, []string{"Une phrase terminee avant l'annulation."}, 50)
	if err := db.Create(&chunk).Error; err != nil {
		t.Fatalf("failed to create chunk: %v", err)
	}

	o := newOrchestrator(db)
	if err := o.Finalize(context.Background(), job.ID, 0); err != nil {
		t.Fatalf("Finalize failed: %v", err)
	}

	var reloaded model.Job
	db.First(&reloaded, job.ID)
	if reloaded.Status != model.JobStatusCancelled {
		t.Fatalf("status = %q, want cancelled", reloaded.Status)
	}
	if reloaded.CompletedAt == nil {
		t.Fatal("expected completed_at to be set on cancellation")
	}

	var refundCount int64
	db.Model(&model.CreditLedgerEntry{}).
		Where("job_id = ? AND reason = ?", job.ID, model.LedgerReasonJobRefund).
		Count(&refundCount)
	if refundCount != 1 {
		t.Fatalf("expected exactly one refund entry, found %d", refundCount)
	}
}

// TestFinalizeIsIdempotentOnTerminalJob covers the at-most-once guard: a
// second Finalize call against an already-terminal job must be a no-op,
// never double-writing History or the ledger.
func TestFinalizeIsIdempotentOnTerminalJob(t *testing.T) {
	db := openTestDB(t)
	job := newTestJob(t, db, "orchestrator-test-idempotent@example.com")
	chunk := successChunk(job.ID, 0, []string{"Une seule phrase suffit ici."}, 40)
	if err := db.Create(&chunk).Error; err != nil {
		t.Fatalf("failed to create chunk: %v", err)
	}

	o := newOrchestrator(db)
	if err := o.Finalize(context.Background(), job.ID, 0); err != nil {
		t.Fatalf("first Finalize failed: %v", err)
	}
	if err := o.Finalize(context.Background(), job.ID, 0); err != nil {
		t.Fatalf("second Finalize failed: %v", err)
	}

	var historyCount int64
	db.Model(&model.History{}).Where("job_id = ?", job.ID).Count(&historyCount)
	if historyCount != 1 {
		t.Fatalf("expected exactly one history row, found %d", historyCount)
	}
}
