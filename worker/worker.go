// Package worker implements the Chunk Worker: it owns a single chunk's
// lifecycle from pending through a terminal state, driven by a task
// descriptor carrying only (job_id, chunk_id) so that workers always read
// authoritative state from storage rather than trusting message payloads.
package worker

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sahilchouksey/go-init-setup/llm"
	"github.com/sahilchouksey/go-init-setup/model"
	"github.com/sahilchouksey/go-init-setup/qualitygate"
	"github.com/sahilchouksey/go-init-setup/queue"
	"github.com/sahilchouksey/go-init-setup/services"
	"github.com/sahilchouksey/go-init-setup/services/digitalocean"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Progress is notified after every terminal chunk transition so the
// Progress Publisher can emit a fresh job-state event. A nil Progress is
// a valid, no-op default (tests run without a transport).
type Progress interface {
	Emit(jobID uint)
}

type noopProgress struct{}

func (noopProgress) Emit(uint) {}

// Worker executes one chunk at a time. All collaborators are injected at
// construction; there are no package-level mutable singletons.
type Worker struct {
	db               *gorm.DB
	pdfExtractor     *services.PDFExtractor
	spaces           *digitalocean.SpacesClient // optional, nil disables URL payload fetch
	llmClient        *llm.Client
	gateConfig       qualitygate.Config
	llmTimeout       time.Duration
	watchdogTimeout  time.Duration
	retryBackoffBase time.Duration
	broker           *queue.Broker // optional; nil disables in-worker retry, falling through to the orchestrator's round-level retry
	progress         Progress
}

// Option configures optional Worker fields.
type Option func(*Worker)

// WithSpaces enables fetching out-of-band chunk payloads from object storage.
func WithSpaces(spaces *digitalocean.SpacesClient) Option {
	return func(w *Worker) { w.spaces = spaces }
}

// WithGateConfig overrides the default quality-gate configuration.
func WithGateConfig(cfg qualitygate.Config) Option {
	return func(w *Worker) { w.gateConfig = cfg }
}

// WithLLMTimeout overrides the default per-call LLM timeout.
func WithLLMTimeout(d time.Duration) Option {
	return func(w *Worker) { w.llmTimeout = d }
}

// WithWatchdog overrides the default cooperative per-chunk deadline that
// bounds an entire Process call, including every in-worker retry.
// Exceeding it is always a permanent TIMEOUT, distinct from the
// narrower, retryable LLM-call timeout.
func WithWatchdog(d time.Duration) Option {
	return func(w *Worker) { w.watchdogTimeout = d }
}

// WithRetryBackoffBase overrides the base delay for in-worker retries,
// combined with the attempt count as min(base*2^attempt, 60s).
func WithRetryBackoffBase(d time.Duration) Option {
	return func(w *Worker) { w.retryBackoffBase = d }
}

// WithBroker wires the task broker used to schedule in-worker retries.
// Without one, a transient failure falls straight through to the
// orchestrator's round-level retry.
func WithBroker(b *queue.Broker) Option {
	return func(w *Worker) { w.broker = b }
}

// WithProgress wires a Progress Publisher to be notified on terminal
// chunk transitions.
func WithProgress(p Progress) Option {
	return func(w *Worker) { w.progress = p }
}

// New constructs a Worker. Defaults: 300s LLM timeout, 600s watchdog
// deadline, 2s retry backoff base, default quality gate thresholds, no
// object-storage client, no broker, no progress publisher.
func New(db *gorm.DB, pdfExtractor *services.PDFExtractor, llmClient *llm.Client, opts ...Option) *Worker {
	w := &Worker{
		db:               db,
		pdfExtractor:     pdfExtractor,
		llmClient:        llmClient,
		gateConfig:       qualitygate.DefaultConfig(),
		llmTimeout:       300 * time.Second,
		watchdogTimeout:  600 * time.Second,
		retryBackoffBase: 2 * time.Second,
		progress:         noopProgress{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// PDFExtractor exposes the underlying extractor so callers such as the
// orchestrator can derive a page count ahead of splitting, without
// constructing a second extractor instance.
func (w *Worker) PDFExtractor() *services.PDFExtractor {
	return w.pdfExtractor
}

// Process runs the full chunk pipeline for (jobID, chunkID) and always
// returns a terminal-state Result, never a bare error — persistence
// failures that prevent even recording a terminal state are the only
// case where Process returns a non-nil error alongside a nil Result.
//
// A transient failure with retry budget remaining is retried in-worker,
// with exponential backoff scheduled through the broker, before this
// call ever returns — distinct from the orchestrator's round-level
// retry, which only sees a chunk that is still transient after this
// loop gives up (no broker wired) or that came back permanent. The
// whole loop, including every in-worker retry, is bounded by a single
// cooperative watchdog deadline so a wedged chunk can never hold a
// dispatch goroutine open indefinitely.
func (w *Worker) Process(ctx context.Context, jobID uint, chunkID int) (Result, error) {
	var chunk model.JobChunk
	if err := w.db.Where("job_id = ? AND chunk_id = ?", jobID, chunkID).First(&chunk).Error; err != nil {
		return nil, fmt.Errorf("failed to load chunk %d/%d: %w", jobID, chunkID, err)
	}

	// Step 1: idempotence — a chunk already successful returns its stored result.
	if chunk.Status == model.JobChunkStatusSuccess {
		stored := chunk.ResultJSON.Data()
		return success(chunkID, stored.Sentences, stored.Tokens), nil
	}

	watchdogCtx, cancel := context.WithTimeout(ctx, w.watchdogTimeout)
	defer cancel()

	for {
		result, err := w.runAttempt(watchdogCtx, jobID, chunkID)
		if err != nil {
			return result, err
		}
		tr, ok := result.(TransientFailureResult)
		if !ok || w.broker == nil {
			return result, nil
		}
		if waitErr := w.broker.AwaitChunkRetry(watchdogCtx, w.retryBackoffBase, tr.Attempt); waitErr != nil {
			return w.finishPermanent(jobID, chunkID, model.ChunkErrorTimeout, fmt.Errorf("chunk exceeded watchdog deadline awaiting in-worker retry: %w", tr.Err))
		}
	}
}

// runAttempt executes one full pass of the pipeline: begin attempt,
// cooperative cancellation, payload decode/extract, LLM call, quality
// gate. It never blocks on a retry backoff itself — that is Process's
// job — so it always returns promptly with a terminal-or-transient
// Result.
func (w *Worker) runAttempt(ctx context.Context, jobID uint, chunkID int) (Result, error) {
	taskID := uuid.New().String()
	if err := w.beginAttempt(jobID, chunkID, taskID); err != nil {
		return nil, fmt.Errorf("failed to begin attempt for chunk %d: %w", chunkID, err)
	}
	var chunk model.JobChunk
	if err := w.db.Where("job_id = ? AND chunk_id = ?", jobID, chunkID).First(&chunk).Error; err != nil {
		return nil, fmt.Errorf("failed to reload chunk %d/%d: %w", jobID, chunkID, err)
	}

	var job model.Job
	if err := w.db.First(&job, jobID).Error; err != nil {
		return nil, fmt.Errorf("failed to load job %d: %w", jobID, err)
	}

	// Step 3: cooperative cancellation.
	if job.IsCancelled {
		return w.finishPermanent(jobID, chunkID, model.ChunkErrorCancelled, errors.New("job was cancelled"))
	}

	// Step 4: decode/fetch payload, extract text.
	payload, err := w.loadPayload(ctx, &chunk)
	if err != nil {
		return w.finishPermanent(jobID, chunkID, model.ChunkErrorProcessing, fmt.Errorf("failed to load payload: %w", err))
	}
	text, err := w.pdfExtractor.ExtractPageRange(payload, chunk.PageStart, chunk.PageEnd)
	if err != nil {
		return w.finishPermanent(jobID, chunkID, model.ChunkErrorProcessing, fmt.Errorf("failed to extract text: %w", err))
	}

	// Step 5: empty text is terminal, no retry.
	if strings.TrimSpace(text) == "" {
		return w.finishPermanent(jobID, chunkID, model.ChunkErrorNoText, errors.New("extracted text was empty"))
	}

	// Step 6: call the LLM, then the quality gate.
	settings := job.Settings.Data()
	llmCtx, cancel := context.WithTimeout(ctx, w.llmTimeout)
	defer cancel()

	sentences, tokens, err := w.llmClient.Normalize(llmCtx, text, settings)
	if err != nil {
		return w.classifyAndFinish(jobID, &chunk, err, llmCtx.Err(), ctx.Err())
	}

	kept, _ := qualitygate.ValidateBatch(sentences, w.gateConfigFor(settings))

	return w.finishSuccess(jobID, chunkID, kept, int64(tokens))
}

func (w *Worker) gateConfigFor(settings model.ProcessingSettings) qualitygate.Config {
	cfg := w.gateConfig
	if settings.SentenceLengthLimit > 0 {
		cfg.MaxWords = settings.SentenceLengthLimit
	}
	if settings.MinSentenceLength > 0 {
		cfg.MinWords = settings.MinSentenceLength
	}
	return cfg
}

// beginAttempt performs step 2: a single transaction that increments
// attempts and transitions to processing, so two workers racing on the
// same chunk produce exactly one increment and one transition.
func (w *Worker) beginAttempt(jobID uint, chunkID int, taskID string) error {
	return w.db.Transaction(func(tx *gorm.DB) error {
		return tx.Model(&model.JobChunk{}).
			Where("job_id = ? AND chunk_id = ?", jobID, chunkID).
			Updates(map[string]interface{}{
				"status":          model.JobChunkStatusProcessing,
				"attempts":        gorm.Expr("attempts + 1"),
				"current_task_id": taskID,
			}).Error
	})
}

// loadPayload decodes the inline payload or, when the chunk carries an
// object-storage key instead, downloads it via the Spaces client.
func (w *Worker) loadPayload(ctx context.Context, chunk *model.JobChunk) ([]byte, error) {
	if chunk.HasInlinePayload() {
		return base64.StdEncoding.DecodeString(chunk.PayloadBase64)
	}
	if chunk.PayloadURL == "" {
		return nil, errors.New("chunk has neither inline payload nor storage key")
	}
	if w.spaces == nil {
		return nil, errors.New("chunk payload is out-of-band but no object-storage client is configured")
	}
	return w.spaces.DownloadFile(ctx, chunk.PayloadURL)
}

// classifyAndFinish implements step 8's three-way classification. The
// watchdog deadline (watchdogCtxErr, the cooperative budget for the
// whole chunk) is always permanent; the LLM call's own narrower timeout
// (llmCtxErr) is just another retryable transport failure, per "the
// chunk LLM call has its own timeout; exceeding it is a transient
// failure" — it must not be confused with the broader watchdog.
func (w *Worker) classifyAndFinish(jobID uint, chunk *model.JobChunk, callErr, llmCtxErr, watchdogCtxErr error) (Result, error) {
	if errors.Is(watchdogCtxErr, context.DeadlineExceeded) {
		return w.finishPermanent(jobID, chunk.ChunkID, model.ChunkErrorTimeout, fmt.Errorf("chunk exceeded watchdog deadline: %w", callErr))
	}

	retryable := errors.Is(llmCtxErr, context.DeadlineExceeded) || llm.IsRetryable(callErr)
	if retryable {
		if chunk.Attempts < chunk.MaxRetries {
			return w.finishRetry(jobID, chunk.ChunkID, chunk.Attempts, callErr)
		}
		return w.finishPermanent(jobID, chunk.ChunkID, model.ChunkErrorTransient, callErr)
	}

	return w.finishPermanent(jobID, chunk.ChunkID, model.ChunkErrorProcessing, callErr)
}

func (w *Worker) finishSuccess(jobID uint, chunkID int, sentences []string, tokens int64) (Result, error) {
	now := time.Now().UTC()
	result := datatypes.NewJSONType(model.JobChunkResult{Sentences: sentences, Tokens: tokens})
	err := w.db.Model(&model.JobChunk{}).
		Where("job_id = ? AND chunk_id = ?", jobID, chunkID).
		Updates(map[string]interface{}{
			"status":       model.JobChunkStatusSuccess,
			"result_json":  result,
			"processed_at": &now,
		}).Error
	w.progress.Emit(jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to persist success for chunk %d: %w", chunkID, err)
	}
	return success(chunkID, sentences, tokens), nil
}

func (w *Worker) finishRetry(jobID uint, chunkID int, attempts int, cause error) (Result, error) {
	err := w.db.Model(&model.JobChunk{}).
		Where("job_id = ? AND chunk_id = ?", jobID, chunkID).
		Updates(map[string]interface{}{
			"status":          model.JobChunkStatusRetryScheduled,
			"last_error":      cause.Error(),
			"last_error_code": model.ChunkErrorTransient,
		}).Error
	w.progress.Emit(jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to persist retry state for chunk %d: %w", chunkID, err)
	}
	return transient(chunkID, string(model.ChunkErrorTransient), attempts, cause), nil
}

func (w *Worker) finishPermanent(jobID uint, chunkID int, code model.ChunkErrorCode, cause error) (Result, error) {
	err := w.db.Model(&model.JobChunk{}).
		Where("job_id = ? AND chunk_id = ?", jobID, chunkID).
		Updates(map[string]interface{}{
			"status":          model.JobChunkStatusFailed,
			"last_error":      cause.Error(),
			"last_error_code": code,
		}).Error
	w.progress.Emit(jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to persist permanent failure for chunk %d: %w", chunkID, err)
	}
	return permanent(chunkID, string(code), cause), nil
}
