package splitter

import (
	"fmt"
	"os"
	"testing"

	"github.com/sahilchouksey/go-init-setup/model"
	"github.com/sahilchouksey/go-init-setup/planner"
	"github.com/sahilchouksey/go-init-setup/services"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestPageRangesSingleChunk(t *testing.T) {
	plan := planner.ChunkPlan{NumChunks: 1, ChunkSizePages: 12}
	ranges := pageRanges(12, plan)
	if len(ranges) != 1 || ranges[0].Start != 1 || ranges[0].End != 12 {
		t.Fatalf("unexpected ranges: %+v", ranges)
	}
}

func TestPageRangesWithOverlap(t *testing.T) {
	// 250 pages, large strategy: 30 pages/chunk, 2 page overlap, 9 chunks
	plan := planner.Plan(250, model.ModelTierBalanced)
	ranges := pageRanges(250, plan)
	if len(ranges) != plan.NumChunks {
		t.Fatalf("got %d ranges, want %d", len(ranges), plan.NumChunks)
	}
	if ranges[0].Start != 1 {
		t.Fatalf("first chunk must start at page 1, got %d", ranges[0].Start)
	}
	for i := 1; i < len(ranges); i++ {
		strictStart := i*plan.ChunkSizePages + 1
		wantStart := strictStart - plan.OverlapPages
		if ranges[i].Start != wantStart {
			t.Errorf("chunk %d start = %d, want %d (overlap %d)", i, ranges[i].Start, wantStart, plan.OverlapPages)
		}
	}
	last := ranges[len(ranges)-1]
	if last.End != 250 {
		t.Fatalf("last chunk must end at page 250, got %d", last.End)
	}
}

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
		db.Exec("DELETE FROM users WHERE email LIKE 'splitter-test-%'")
	})
	return db
}

func TestSplitInsertsOnePendingChunkPerRange(t *testing.T) {
	db := openTestDB(t)
	user := model.User{Email: "splitter-test-a@example.com", Name: "A", PasswordHash: "x"}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	job := model.Job{UserID: user.ID, OriginalFilename: "roman.pdf"}
	if err := db.Create(&job).Error; err != nil {
		t.Fatalf("failed to create job: %v", err)
	}

	s := New(db, services.NewPDFExtractor(), nil)
	plan := planner.ChunkPlan{NumChunks: 1, ChunkSizePages: 1}
	if err := s.Split(&job, minimalPDF(), plan, 3); err != nil {
		t.Fatalf("Split failed: %v", err)
	}

	var chunks []model.JobChunk
	db.Where("job_id = ?", job.ID).Order("chunk_id").Find(&chunks)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Status != model.JobChunkStatusPending || chunks[0].Attempts != 0 {
		t.Fatalf("unexpected chunk state: %+v", chunks[0])
	}

	var reloaded model.Job
	db.First(&reloaded, job.ID)
	if reloaded.TotalChunks != 1 {
		t.Fatalf("job.total_chunks = %d, want 1", reloaded.TotalChunks)
	}
}

// minimalPDF returns a tiny single-page valid PDF byte stream for use with
// GetPageCount / ExtractPageRange in integration tests.
func minimalPDF() []byte {
	return []byte("%PDF-1.1\n1 0 obj<</Type/Catalog/Pages 2 0 R>>endobj\n" +
		"2 0 obj<</Type/Pages/Kids[3 0 R]/Count 1>>endobj\n" +
		"3 0 obj<</Type/Page/Parent 2 0 R/MediaBox[0 0 100 100]>>endobj\n" +
		"trailer<</Root 1 0 R>>\n%%EOF")
}
