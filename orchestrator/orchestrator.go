// Package orchestrator implements the central state machine that drives
// a Job from pending to a terminal state: the primary pass plans and
// splits the PDF and dispatches chunk work, and the finalizer merges
// results, re-drives retryable failures for a bounded number of rounds,
// and reconciles the credit ledger.
package orchestrator

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sahilchouksey/go-init-setup/ledger"
	"github.com/sahilchouksey/go-init-setup/model"
	"github.com/sahilchouksey/go-init-setup/planner"
	"github.com/sahilchouksey/go-init-setup/progress"
	"github.com/sahilchouksey/go-init-setup/qualitygate"
	"github.com/sahilchouksey/go-init-setup/queue"
	"github.com/sahilchouksey/go-init-setup/splitter"
	"github.com/sahilchouksey/go-init-setup/worker"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Config carries the tunables from §6's environment block.
type Config struct {
	MaxRetryRounds        int
	ChunkTaskMaxRetries   int
	RetryCountdownBase    time.Duration
	RetryCountdownCap     time.Duration
	FinalizeMaxRetries    int
}

// DefaultConfig mirrors the documented environment defaults.
func DefaultConfig() Config {
	return Config{
		MaxRetryRounds:      2,
		ChunkTaskMaxRetries: 3,
		RetryCountdownBase:  10 * time.Second,
		RetryCountdownCap:   300 * time.Second,
		FinalizeMaxRetries:  10,
	}
}

// Orchestrator drives jobs end to end. It holds no per-job mutable
// state; every decision is re-derived from storage on each call, so a
// crash mid-round only loses in-flight goroutines, never correctness.
type Orchestrator struct {
	db       *gorm.DB
	splitter *splitter.Splitter
	worker   *worker.Worker
	ledger   *ledger.Ledger
	progress *progress.Publisher
	broker   *queue.Broker
	cfg      Config
}

// New wires an Orchestrator from its collaborators, all constructed and
// injected by the caller rather than looked up from a singleton.
func New(db *gorm.DB, sp *splitter.Splitter, wk *worker.Worker, lg *ledger.Ledger, pub *progress.Publisher, broker *queue.Broker, cfg Config) *Orchestrator {
	return &Orchestrator{db: db, splitter: sp, worker: wk, ledger: lg, progress: pub, broker: broker, cfg: cfg}
}

// Run executes the primary pass (round 0) for a pending job: plan, split,
// dispatch, then finalize. It is safe to call from an HTTP handler's
// goroutine or a background task consumer alike.
func (o *Orchestrator) Run(ctx context.Context, jobID uint, pdfContent []byte) error {
	var job model.Job
	if err := o.db.First(&job, jobID).Error; err != nil {
		return fmt.Errorf("failed to load job %d: %w", jobID, err)
	}

	now := time.Now().UTC()
	if err := o.db.Model(&job).Updates(map[string]interface{}{
		"status":       model.JobStatusProcessing,
		"progress_percent": 5,
		"current_step": "Analyzing PDF",
		"started_at":   &now,
	}).Error; err != nil {
		return fmt.Errorf("failed to transition job %d to processing: %w", jobID, err)
	}
	o.progress.Emit(jobID)

	pageCount, err := o.worker.PDFExtractor().GetPageCount(pdfContent)
	if err != nil {
		return o.failJob(jobID, fmt.Sprintf("failed to read PDF: %v", err))
	}

	plan := planner.Plan(pageCount, job.ModelTier)
	if err := o.splitter.Split(&job, pdfContent, plan, o.cfg.ChunkTaskMaxRetries); err != nil {
		return o.failJob(jobID, fmt.Sprintf("failed to split PDF: %v", err))
	}
	o.db.Model(&model.Job{}).Where("id = ?", jobID).Update("progress_percent", 15)
	o.progress.Emit(jobID)

	if err := o.dispatchRound(ctx, jobID, plan); err != nil {
		return fmt.Errorf("round 0 dispatch failed for job %d: %w", jobID, err)
	}

	return o.Finalize(ctx, jobID, 0)
}

// dispatchRound runs every chunk id in [0, plan.NumChunks) through the
// worker, bounded by the plan's parallel_workers cap. A single-chunk job
// executes inline to avoid the barrier's overhead, per §4.5.
func (o *Orchestrator) dispatchRound(ctx context.Context, jobID uint, plan planner.ChunkPlan) error {
	if plan.NumChunks <= 1 {
		_, err := o.worker.Process(ctx, jobID, 0)
		o.onChunkComplete(jobID)
		return err
	}
	return o.dispatchChunks(ctx, jobID, allChunkIDs(plan.NumChunks), plan.ParallelWorkers)
}

// dispatchChunks runs the given chunk ids concurrently, bounded by
// parallelCap. Retry rounds dispatch a strict subset of a job's chunks,
// so they pass a cap derived from the retry set's size rather than the
// original plan, which is not retained once the primary pass completes.
func (o *Orchestrator) dispatchChunks(ctx context.Context, jobID uint, chunkIDs []int, parallelCap int) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxInt(parallelCap, 1))
	for _, id := range chunkIDs {
		id := id
		g.Go(func() error {
			_, err := o.worker.Process(gctx, jobID, id)
			o.onChunkComplete(jobID)
			return err
		})
	}
	return g.Wait()
}

// onChunkComplete advances the job's monotonic processed_chunks counter
// and recomputes progress, per the formula in §4.5. Errors are swallowed
// here deliberately: a progress-accounting failure must never prevent
// the finalizer from running.
func (o *Orchestrator) onChunkComplete(jobID uint) {
	var job model.Job
	if err := o.db.First(&job, jobID).Error; err != nil {
		return
	}
	job.ProcessedChunks++
	job.ProgressPercent = job.ComputeProgress()
	o.db.Model(&model.Job{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"processed_chunks": job.ProcessedChunks,
		"progress_percent": job.ProgressPercent,
		"current_step":     fmt.Sprintf("Processing chunks (%d/%d)", job.ProcessedChunks, job.TotalChunks),
	})
	o.progress.Emit(jobID)
}

func allChunkIDs(n int) []int {
	ids := make([]int, n)
	for i := range ids {
		ids[i] = i
	}
	return ids
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// retryParallelCap bounds a retry round's concurrency at the large-plan
// worker cap (8), since the retry set is always a subset of a job's
// original chunks and the original plan is not retained between rounds.
func retryParallelCap(retrySetSize int) int {
	const largePlanCap = 8
	if retrySetSize < largePlanCap {
		return retrySetSize
	}
	return largePlanCap
}

func (o *Orchestrator) failJob(jobID uint, message string) error {
	o.db.Model(&model.Job{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"status":        model.JobStatusFailed,
		"error_message": message,
		"progress_percent": 100,
	})
	o.progress.Emit(jobID)
	return fmt.Errorf("%s", message)
}

// Finalize implements §4.5's finalize(round r): re-read chunk states,
// either re-drive retryable failures for another round or merge results
// into a terminal job state.
func (o *Orchestrator) Finalize(ctx context.Context, jobID uint, round int) error {
	var job model.Job
	if err := o.db.First(&job, jobID).Error; err != nil {
		return fmt.Errorf("failed to load job %d: %w", jobID, err)
	}
	if job.IsTerminal() {
		return nil // at-most-one finalize: a terminal job is never re-finalized
	}

	var chunks []model.JobChunk
	if err := o.db.Where("job_id = ?", jobID).Order("chunk_id").Find(&chunks).Error; err != nil {
		return fmt.Errorf("failed to load chunks for job %d: %w", jobID, err)
	}

	var successes []model.JobChunk
	var retryable []model.JobChunk
	var permanentFailed []model.JobChunk
	for _, c := range chunks {
		switch {
		case c.Status == model.JobChunkStatusSuccess:
			successes = append(successes, c)
		case (c.Status == model.JobChunkStatusFailed || c.Status == model.JobChunkStatusRetryScheduled) && c.CanRetry():
			retryable = append(retryable, c)
		case c.Status == model.JobChunkStatusFailed:
			permanentFailed = append(permanentFailed, c)
		}
	}

	if job.IsCancelled {
		return o.finishCancelled(jobID, &job, successes)
	}

	if len(retryable) > 0 && round < o.cfg.MaxRetryRounds {
		return o.retryRound(ctx, jobID, round, retryable)
	}

	return o.mergeWithRetry(ctx, jobID, &job, successes, permanentFailed, len(chunks), round)
}

// mergeWithRetry retries a failing merge (e.g. a transient error writing
// the History snapshot or reconciling the ledger) up to
// FinalizeMaxRetries times with the same backoff schedule as a chunk
// retry round, before giving up and failing the job with a
// "Finalization error" message rather than leaving it stuck non-terminal.
func (o *Orchestrator) mergeWithRetry(ctx context.Context, jobID uint, job *model.Job, successes, permanentFailed []model.JobChunk, totalChunks, round int) error {
	var lastErr error
	for attempt := 0; attempt <= o.cfg.FinalizeMaxRetries; attempt++ {
		if attempt > 0 {
			delay := queue.Countdown(o.cfg.RetryCountdownBase, attempt-1, o.cfg.RetryCountdownCap)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if lastErr = o.merge(jobID, job, successes, permanentFailed, totalChunks, round); lastErr == nil {
			return nil
		}
	}
	return o.failJob(jobID, fmt.Sprintf("Finalization error: %v", lastErr))
}

func (o *Orchestrator) retryRound(ctx context.Context, jobID uint, round int, retryable []model.JobChunk) error {
	ids := make([]int, len(retryable))
	for i, c := range retryable {
		ids[i] = c.ChunkID
	}
	o.db.Model(&model.JobChunk{}).
		Where("job_id = ? AND chunk_id IN ?", jobID, ids).
		Update("status", model.JobChunkStatusRetryScheduled)

	o.db.Model(&model.Job{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"current_step": fmt.Sprintf("Retrying %d chunks (round %d)", len(ids), round+1),
		"retry_round":  round + 1,
	})
	o.progress.Emit(jobID)

	delay := queue.Countdown(o.cfg.RetryCountdownBase, round, o.cfg.RetryCountdownCap)
	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return ctx.Err()
	}

	if err := o.dispatchChunks(ctx, jobID, ids, retryParallelCap(len(ids))); err != nil {
		return fmt.Errorf("retry round %d dispatch failed: %w", round+1, err)
	}
	return o.Finalize(ctx, jobID, round+1)
}

func (o *Orchestrator) finishCancelled(jobID uint, job *model.Job, successes []model.JobChunk) error {
	now := time.Now().UTC()
	o.db.Model(&model.Job{}).Where("id = ?", jobID).Updates(map[string]interface{}{
		"status":       model.JobStatusCancelled,
		"completed_at": &now,
	})
	if err := o.ledger.Refund(job.UserID, job.ID, job.EstimatedCredits, job.PricingVersion); err != nil {
		return fmt.Errorf("failed to refund cancelled job %d: %w", jobID, err)
	}
	_ = successes // partial successes are preserved on the rows but not merged into History on cancellation
	o.progress.Emit(jobID)
	return nil
}

// merge implements steps 4-8 of finalize: concatenate and dedupe
// successful chunks' sentences, determine terminal status, reconcile the
// ledger, and write the History snapshot. round is the retry round
// finalize was called with, i.e. the number of retry rounds that have
// actually elapsed for this job.
func (o *Orchestrator) merge(jobID uint, job *model.Job, successes, permanentFailed []model.JobChunk, totalChunks int, round int) error {
	merged := dedupeSentences(successes)

	var status model.JobStatus
	var errorMessage string
	switch {
	case len(successes) == 0:
		status = model.JobStatusFailed
		errorMessage = fmt.Sprintf("All %d chunks failed", totalChunks)
	case len(permanentFailed) > 0:
		status = model.JobStatusCompleted
		errorMessage = fmt.Sprintf("%d chunks failed permanently after %d round(s)", len(permanentFailed), round)
	default:
		status = model.JobStatusCompleted
	}

	var actualTokens int64
	for _, c := range successes {
		actualTokens += c.ResultJSON.Data().Tokens
	}
	actualCredits := int(math.Ceil(float64(actualTokens) * job.PricingRate))

	if status == model.JobStatusCompleted {
		if err := o.ledger.Finalize(job.UserID, job.ID, job.EstimatedCredits, actualCredits, job.PricingVersion); err != nil {
			return fmt.Errorf("failed to finalize ledger for job %d: %w", jobID, err)
		}
	} else if err := o.ledger.Refund(job.UserID, job.ID, job.EstimatedCredits, job.PricingVersion); err != nil {
		return fmt.Errorf("failed to refund failed job %d: %w", jobID, err)
	}

	history := model.History{
		UserID:    job.UserID,
		Filename:  job.OriginalFilename,
		Settings:  job.Settings,
		JobID:     job.ID,
	}
	if err := history.SetSentences(merged); err != nil {
		return fmt.Errorf("failed to encode history snapshot for job %d: %w", jobID, err)
	}
	if err := o.db.Create(&history).Error; err != nil {
		return fmt.Errorf("failed to create history for job %d: %w", jobID, err)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":            status,
		"progress_percent":  100,
		"completed_at":      &now,
		"actual_tokens":     actualTokens,
		"actual_credits":    &actualCredits,
		"history_id":        &history.ID,
	}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}
	if err := o.db.Model(&model.Job{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		return fmt.Errorf("failed to persist terminal state for job %d: %w", jobID, err)
	}
	o.progress.Emit(jobID)
	return nil
}

// dedupeSentences concatenates success chunks in ascending chunk_id
// order and drops any sentence whose normalized-lowercase,
// whitespace-collapsed form has already been seen — the overlap pages
// between consecutive chunks otherwise produce duplicate sentences.
func dedupeSentences(successes []model.JobChunk) []string {
	seen := make(map[string]bool)
	var merged []string
	for _, c := range successes {
		for _, s := range c.ResultJSON.Data().Sentences {
			key := normalize(s)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, s)
		}
	}
	return merged
}

func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// QualityGateConfig is exported so callers constructing a Worker and an
// Orchestrator from the same settings share one source of truth.
func QualityGateConfig(settings model.ProcessingSettings) qualitygate.Config {
	cfg := qualitygate.DefaultConfig()
	if settings.SentenceLengthLimit > 0 {
		cfg.MaxWords = settings.SentenceLengthLimit
	}
	if settings.MinSentenceLength > 0 {
		cfg.MinWords = settings.MinSentenceLength
	}
	return cfg
}
