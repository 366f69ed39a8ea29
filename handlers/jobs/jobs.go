// Package jobs implements the Public API Surface (C8): the HTTP
// boundary that creates, starts, polls and cancels Jobs, grounded on
// the teacher's /api/v2 SSE route group and response envelope.
package jobs

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sahilchouksey/go-init-setup/ledger"
	"github.com/sahilchouksey/go-init-setup/model"
	"github.com/sahilchouksey/go-init-setup/orchestrator"
	"github.com/sahilchouksey/go-init-setup/progress"
	"github.com/sahilchouksey/go-init-setup/queue"
	"github.com/sahilchouksey/go-init-setup/utils/middleware"
	"github.com/sahilchouksey/go-init-setup/utils/response"
	"github.com/sahilchouksey/go-init-setup/utils/sse"
	"github.com/sahilchouksey/go-init-setup/utils/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PricingVersion is the currently active pricing table version. Bumping
// it leaves historical ledger entries' pricing_version untouched.
const PricingVersion = "v1"

// PricingRate is credits charged per estimated/actual token under PricingVersion.
const PricingRate = 0.001

// MaxUploadBytes bounds a single PDF upload; larger documents should be
// split client-side before submission.
const MaxUploadBytes = 200 * 1024 * 1024 // 200MB

// maxEstimatedTokensByTier caps the /estimate heuristic per model tier so a
// single pathological upload can't misquote an unbounded credit charge.
var maxEstimatedTokensByTier = map[model.ModelTier]int64{
	model.ModelTierSpeed:    500_000,
	model.ModelTierBalanced: 1_000_000,
	model.ModelTierQuality:  2_000_000,
}

// Handler wires the HTTP boundary to the ledger and orchestrator. Object
// storage for oversized chunk payloads is the Splitter's concern, not
// this package's; the Orchestrator it holds already carries one.
type Handler struct {
	db           *gorm.DB
	ledger       *ledger.Ledger
	orchestrator *orchestrator.Orchestrator
	progress     *progress.Publisher
	broker       *queue.Broker
	validator    *validation.Validator
}

// New constructs a Handler from its collaborators.
func New(db *gorm.DB, lg *ledger.Ledger, orc *orchestrator.Orchestrator, pub *progress.Publisher, broker *queue.Broker) *Handler {
	return &Handler{db: db, ledger: lg, orchestrator: orc, progress: pub, broker: broker, validator: validation.NewValidator()}
}

func currentMonth() string {
	return time.Now().UTC().Format("2006-01")
}

// estimateRequest is read from a multipart form: pdf_file plus model.
type estimateResponse struct {
	EstimatedTokens  int64   `json:"estimated_tokens"`
	EstimatedCredits int     `json:"estimated_credits"`
	PricingRate      float64 `json:"pricing_rate"`
	PricingVersion   string  `json:"pricing_version"`
	CurrentBalance   int     `json:"current_balance"`
	Allowed          bool    `json:"allowed"`
}

// Estimate handles POST /estimate: accepts a PDF and model preference,
// returning a token/credit estimate and whether the user's current
// balance can afford it. No Job row is created here.
func (h *Handler) Estimate(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	file, err := c.FormFile("pdf_file")
	if err != nil {
		return response.BadRequest(c, "pdf_file is required")
	}
	if file.Size > MaxUploadBytes {
		return response.BadRequest(c, fmt.Sprintf("file exceeds maximum size of %d bytes", MaxUploadBytes))
	}

	tier := model.ModelTier(c.FormValue("model", string(model.ModelTierBalanced)))
	if _, known := maxEstimatedTokensByTier[tier]; !known {
		return response.BadRequest(c, "model must be one of balanced, quality, speed")
	}

	estimatedTokens := int64(math.Ceil(float64(file.Size) * 0.25))
	if ceiling := maxEstimatedTokensByTier[tier]; estimatedTokens > ceiling {
		estimatedTokens = ceiling
	}
	estimatedCredits := int(math.Ceil(float64(estimatedTokens) * PricingRate))

	balance, err := h.ledger.Balance(user.ID, currentMonth())
	if err != nil {
		return response.InternalServerError(c, "Failed to read credit balance")
	}

	return response.Success(c, estimateResponse{
		EstimatedTokens:  estimatedTokens,
		EstimatedCredits: estimatedCredits,
		PricingRate:      PricingRate,
		PricingVersion:   PricingVersion,
		CurrentBalance:   balance,
		Allowed:          balance >= estimatedCredits,
	})
}

type confirmRequest struct {
	OriginalFilename string `json:"original_filename" validate:"required"`
	EstimatedTokens  int64  `json:"estimated_tokens" validate:"required,min=1"`
	ModelTier        string `json:"model" validate:"required,oneof=balanced quality speed"`
}

// Confirm handles POST /jobs/confirm: reserves the estimated credits and
// creates the pending Job row the client will later upload a PDF against
// via ProcessPDFAsync. Reserve failing with INSUFFICIENT_CREDITS leaves
// no Job row and no ledger entry behind, per scenario 6.
func (h *Handler) Confirm(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	var req confirmRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}
	tier := model.ModelTier(req.ModelTier)
	if _, known := maxEstimatedTokensByTier[tier]; !known {
		return response.BadRequest(c, "model must be one of balanced, quality, speed")
	}

	estimatedCredits := int(math.Ceil(float64(req.EstimatedTokens) * PricingRate))

	job := model.Job{
		UserID:           user.ID,
		OriginalFilename: req.OriginalFilename,
		ModelTier:        tier,
		Settings:         datatypes.NewJSONType(model.DefaultProcessingSettings()),
		PricingVersion:   PricingVersion,
		PricingRate:      PricingRate,
		Status:           model.JobStatusPending,
		EstimatedTokens:  req.EstimatedTokens,
		EstimatedCredits: estimatedCredits,
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&job).Error; err != nil {
			return err
		}
		return ledger.New(tx).Reserve(user.ID, job.ID, estimatedCredits, PricingVersion)
	})
	if err == ledger.ErrInsufficientCredits {
		return response.Error(c, fiber.StatusPaymentRequired, "Insufficient credits for this job", "INSUFFICIENT_CREDITS")
	}
	if err != nil {
		return response.InternalServerError(c, "Failed to confirm job")
	}

	return response.Created(c, fiber.Map{"job_id": job.ID, "estimated_credits": estimatedCredits})
}

// ProcessPDFAsync handles POST /process-pdf-async: attaches an uploaded
// PDF and the user's processing settings to a previously confirmed,
// pending job, then dispatches the orchestrator's primary pass in the
// background and returns immediately, mirroring the teacher's
// TriggerExtractionAsync fire-and-forget pattern.
func (h *Handler) ProcessPDFAsync(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}

	jobIDStr := c.FormValue("job_id")
	jobID, err := strconv.ParseUint(jobIDStr, 10, 32)
	if err != nil {
		return response.BadRequest(c, "job_id is required and must be numeric")
	}

	var job model.Job
	if err := h.db.First(&job, uint(jobID)).Error; err != nil {
		return response.NotFound(c, "Job not found")
	}
	if job.UserID != user.ID {
		return response.Forbidden(c, "You don't have permission to start this job")
	}
	if job.Status != model.JobStatusPending {
		return response.BadRequest(c, fmt.Sprintf("job is %s, expected pending", job.Status))
	}

	file, err := c.FormFile("pdf_file")
	if err != nil {
		return response.BadRequest(c, "pdf_file is required")
	}
	if file.Size > MaxUploadBytes {
		return response.BadRequest(c, fmt.Sprintf("file exceeds maximum size of %d bytes", MaxUploadBytes))
	}
	opened, err := file.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to read uploaded file")
	}
	defer opened.Close()
	pdfContent, err := io.ReadAll(opened)
	if err != nil {
		return response.InternalServerError(c, "Failed to read uploaded file")
	}

	settings := parseProcessingSettings(c)
	if err := h.db.Model(&job).Updates(map[string]interface{}{
		"settings": datatypes.NewJSONType(settings),
	}).Error; err != nil {
		return response.InternalServerError(c, "Failed to persist processing settings")
	}

	taskID := uuid.New().String()
	jobID32 := uint(jobID)
	go func() {
		ctx := context.Background()
		if err := h.orchestrator.Run(ctx, jobID32, pdfContent); err != nil {
			log.Printf("orchestrator run failed for job %d: %v", jobID32, err)
		}
	}()

	return c.Status(fiber.StatusAccepted).JSON(response.Response{
		Success: true,
		Data: fiber.Map{
			"job_id":  jobID32,
			"task_id": taskID,
			"status":  "pending",
		},
	})
}

func parseProcessingSettings(c *fiber.Ctx) model.ProcessingSettings {
	settings := model.DefaultProcessingSettings()
	if v := c.FormValue("sentence_length_limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.SentenceLengthLimit = n
		}
	}
	if v := c.FormValue("min_sentence_length"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			settings.MinSentenceLength = n
		}
	}
	if v := c.FormValue("gemini_model"); v != "" {
		settings.GeminiModel = v
	}
	settings.IgnoreDialogue = c.FormValue("ignore_dialogue") == "true"
	settings.PreserveFormatting = c.FormValue("preserve_formatting") == "true"
	settings.FixHyphenation = c.FormValue("fix_hyphenation") == "true"
	return settings
}

// GetJob handles GET /jobs/{id}: the polling fallback for clients
// without a real-time channel.
func (h *Handler) GetJob(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid job id")
	}
	var job model.Job
	if err := h.db.First(&job, uint(id)).Error; err != nil {
		return response.NotFound(c, "Job not found")
	}
	if job.UserID != user.ID && user.Role != "admin" {
		return response.Forbidden(c, "You don't have permission to view this job")
	}
	return response.Success(c, job)
}

// StreamJob handles GET /jobs/{id}/stream: a real-time channel over SSE,
// backed by the Progress Publisher's Redis subscription, replaying the
// synthetic current-state event first so a late joiner never misses a
// terminal state.
func (h *Handler) StreamJob(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid job id")
	}

	current, sub, err := h.progress.Join(c.Context(), uint(id), user.ID)
	if err == progress.ErrNotOwner {
		return response.Forbidden(c, "You don't have permission to stream this job")
	}
	if err != nil {
		return response.NotFound(c, "Job not found")
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		sse.Send(w, sse.Event{Event: "job_progress", Data: current})
		if sub == nil {
			return
		}
		defer sub.Close()
		for {
			event, ok := sub.Next()
			if !ok {
				return
			}
			if err := sse.Send(w, sse.Event{Event: "job_progress", Data: event}); err != nil {
				return
			}
			if event.Status == string(model.JobStatusCompleted) ||
				event.Status == string(model.JobStatusFailed) ||
				event.Status == string(model.JobStatusCancelled) {
				return
			}
		}
	})
	return nil
}

type retryChunksRequest struct {
	ChunkIDs []int `json:"chunk_ids" validate:"required,min=1"`
	Force    bool  `json:"force"`
}

// RetryChunks handles POST /jobs/{id}/chunks/retry: a manual re-drive of
// specific failed chunks, requiring job ownership. Force resets the
// retry budget by zeroing attempts; otherwise only chunks still within
// budget are re-queued.
func (h *Handler) RetryChunks(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid job id")
	}

	var job model.Job
	if err := h.db.First(&job, uint(id)).Error; err != nil {
		return response.NotFound(c, "Job not found")
	}
	if job.UserID != user.ID {
		return response.Forbidden(c, "You don't have permission to retry this job's chunks")
	}

	var req retryChunksRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var chunks []model.JobChunk
	if err := h.db.Where("job_id = ? AND chunk_id IN ? AND status = ?", job.ID, req.ChunkIDs, model.JobChunkStatusFailed).
		Find(&chunks).Error; err != nil {
		return response.InternalServerError(c, "Failed to load chunks")
	}

	var requeued []int
	for _, chunk := range chunks {
		if !req.Force && !chunk.CanRetry() {
			continue
		}
		updates := map[string]interface{}{"status": model.JobChunkStatusRetryScheduled}
		if req.Force {
			updates["attempts"] = 0
		}
		if err := h.db.Model(&model.JobChunk{}).
			Where("job_id = ? AND chunk_id = ?", job.ID, chunk.ChunkID).
			Updates(updates).Error; err != nil {
			continue
		}
		requeued = append(requeued, chunk.ChunkID)
	}

	if len(requeued) > 0 {
		go func() {
			if err := h.orchestrator.Finalize(context.Background(), job.ID, job.RetryRound); err != nil {
				log.Printf("manual retry finalize failed for job %d: %v", job.ID, err)
			}
		}()
	}

	return response.Success(c, fiber.Map{"requeued_chunk_ids": requeued})
}

// CancelJob handles POST /jobs/{id}/cancel: flags the job, best-effort
// revokes in-flight chunk tasks via the broker, and refunds immediately
// if the job never left pending.
func (h *Handler) CancelJob(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid job id")
	}

	var job model.Job
	if err := h.db.First(&job, uint(id)).Error; err != nil {
		return response.NotFound(c, "Job not found")
	}
	if job.UserID != user.ID {
		return response.Forbidden(c, "You don't have permission to cancel this job")
	}
	if job.IsTerminal() {
		return response.BadRequest(c, fmt.Sprintf("job is already %s", job.Status))
	}

	wasPending := job.Status == model.JobStatusPending
	now := time.Now().UTC()

	updates := map[string]interface{}{
		"is_cancelled": true,
		"cancelled_at": &now,
	}
	if wasPending {
		updates["status"] = model.JobStatusCancelled
		updates["completed_at"] = &now
	}
	if err := h.db.Model(&job).Updates(updates).Error; err != nil {
		return response.InternalServerError(c, "Failed to cancel job")
	}

	if wasPending {
		if err := h.ledger.Refund(job.UserID, job.ID, job.EstimatedCredits, job.PricingVersion); err != nil {
			log.Printf("refund on pending cancel failed for job %d: %v", job.ID, err)
		}
	} else if h.broker != nil {
		if err := h.broker.Revoke(c.Context(), job.ID); err != nil {
			log.Printf("revoke notice failed for job %d: %v", job.ID, err)
		}
	}

	h.progress.Emit(job.ID)
	return response.Success(c, fiber.Map{"job_id": job.ID, "is_cancelled": true})
}

// ListChunks handles GET /jobs/{id}/chunks: the per-chunk status table
// and summary counts used by the client's retry UI.
func (h *Handler) ListChunks(c *fiber.Ctx) error {
	user, ok := middleware.GetUser(c)
	if !ok || user == nil {
		return response.Unauthorized(c, "User not authenticated")
	}
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil {
		return response.BadRequest(c, "Invalid job id")
	}

	var job model.Job
	if err := h.db.First(&job, uint(id)).Error; err != nil {
		return response.NotFound(c, "Job not found")
	}
	if job.UserID != user.ID && user.Role != "admin" {
		return response.Forbidden(c, "You don't have permission to view this job's chunks")
	}

	var chunks []model.JobChunk
	if err := h.db.Where("job_id = ?", job.ID).Order("chunk_id").Find(&chunks).Error; err != nil {
		return response.InternalServerError(c, "Failed to load chunks")
	}

	summary := map[model.JobChunkStatus]int{}
	for _, chunk := range chunks {
		summary[chunk.Status]++
	}

	return response.Success(c, fiber.Map{"chunks": chunks, "summary": summary})
}
