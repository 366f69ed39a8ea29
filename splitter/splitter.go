// Package splitter implements the Chunk Splitter: given a PDF byte source
// and a plan from the Chunk Planner, it materializes one JobChunk row per
// page range.
package splitter

import (
	"context"
	"encoding/base64"
	"fmt"

	"github.com/sahilchouksey/go-init-setup/model"
	"github.com/sahilchouksey/go-init-setup/planner"
	"github.com/sahilchouksey/go-init-setup/services"
	"github.com/sahilchouksey/go-init-setup/services/digitalocean"
	"gorm.io/gorm"
)

// InlinePayloadLimitBytes is the default threshold above which a chunk's
// payload is stored out-of-band instead of inline as base64.
const InlinePayloadLimitBytes = 1 << 20 // 1 MiB, CHUNK_PAYLOAD_INLINE_LIMIT_BYTES

// Splitter cuts a PDF into page ranges and persists a JobChunk per range.
//
// The reference PDF library (github.com/ledongthuc/pdf) only decodes
// pages, it cannot re-encode a byte subrange as a standalone PDF file.
// Every chunk therefore carries the same underlying PDF bytes (inline or
// via object storage) plus its own [PageStart, PageEnd] — satisfying the
// "decode a byte range of a PDF" shape of the external extractor capability
// without requiring a PDF-writing dependency nowhere present in the stack.
type Splitter struct {
	db           *gorm.DB
	pdfExtractor *services.PDFExtractor
	spaces       *digitalocean.SpacesClient // optional: nil disables object-storage fallback
}

// New creates a Splitter. spaces may be nil; large payloads then stay
// inline regardless of size (acceptable for tests and small deployments).
func New(db *gorm.DB, pdfExtractor *services.PDFExtractor, spaces *digitalocean.SpacesClient) *Splitter {
	return &Splitter{db: db, pdfExtractor: pdfExtractor, spaces: spaces}
}

// Split computes the plan's page ranges and inserts one pending JobChunk
// row per range inside a single transaction. On any failure, all rows for
// the job are rolled back (Job.total_chunks stays unset).
func (s *Splitter) Split(job *model.Job, pdfContent []byte, plan planner.ChunkPlan, maxRetries int) error {
	pageCount, err := s.pdfExtractor.GetPageCount(pdfContent)
	if err != nil {
		return fmt.Errorf("failed to get page count: %w", err)
	}

	ranges := pageRanges(pageCount, plan)
	if len(ranges) == 0 {
		return fmt.Errorf("no page ranges computed for %d pages", pageCount)
	}

	payloadBase64, payloadURL, err := s.resolvePayload(job, pdfContent)
	if err != nil {
		return fmt.Errorf("failed to resolve chunk payload: %w", err)
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		for i, r := range ranges {
			chunk := model.JobChunk{
				JobID:         job.ID,
				ChunkID:       i,
				PageStart:     r.Start,
				PageEnd:       r.End,
				PageCount:     r.End - r.Start + 1,
				HasOverlap:    i > 0 && plan.OverlapPages > 0,
				PayloadBase64: payloadBase64,
				PayloadURL:    payloadURL,
				Status:        model.JobChunkStatusPending,
				Attempts:      0,
				MaxRetries:    maxRetries,
			}
			if err := tx.Create(&chunk).Error; err != nil {
				return fmt.Errorf("failed to insert chunk %d: %w", i, err)
			}
		}

		job.TotalChunks = len(ranges)
		if err := tx.Model(job).Update("total_chunks", job.TotalChunks).Error; err != nil {
			return fmt.Errorf("failed to update job total_chunks: %w", err)
		}
		return nil
	})
}

func (s *Splitter) resolvePayload(job *model.Job, pdfContent []byte) (base64Payload, url string, err error) {
	if len(pdfContent) <= InlinePayloadLimitBytes || s.spaces == nil {
		return base64.StdEncoding.EncodeToString(pdfContent), "", nil
	}

	key := digitalocean.GenerateKey(fmt.Sprintf("job-chunks/%d", job.ID), job.OriginalFilename)
	if _, err := s.spaces.UploadBytes(context.Background(), key, pdfContent, "application/pdf"); err != nil {
		return "", "", err
	}
	// The opaque storage locator on the row is the object key, not the
	// public URL: workers fetch it back via SpacesClient.DownloadFile,
	// which addresses objects by key.
	return "", key, nil
}

// pageRange is a 1-indexed inclusive page range.
type pageRange = services.PageRange

// pageRanges computes contiguous ranges per the plan, with every chunk
// after the first starting overlap_pages earlier than its strict boundary.
func pageRanges(pageCount int, plan planner.ChunkPlan) []pageRange {
	if pageCount < 1 {
		pageCount = 1
	}
	if plan.NumChunks <= 1 {
		return []pageRange{{Start: 1, End: pageCount}}
	}

	var ranges []pageRange
	for i := 0; i < plan.NumChunks; i++ {
		start := i*plan.ChunkSizePages + 1
		if i > 0 {
			start -= plan.OverlapPages
			if start < 1 {
				start = 1
			}
		}
		end := (i + 1) * plan.ChunkSizePages
		if end > pageCount {
			end = pageCount
		}
		if start > pageCount {
			break
		}
		ranges = append(ranges, pageRange{Start: start, End: end})
	}
	return ranges
}
