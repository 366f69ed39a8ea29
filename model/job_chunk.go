package model

import (
	"time"

	"gorm.io/datatypes"
)

// JobChunkStatus is the lifecycle state of one chunk of a Job.
type JobChunkStatus string

const (
	JobChunkStatusPending        JobChunkStatus = "pending"
	JobChunkStatusProcessing     JobChunkStatus = "processing"
	JobChunkStatusSuccess        JobChunkStatus = "success"
	JobChunkStatusFailed         JobChunkStatus = "failed"
	JobChunkStatusRetryScheduled JobChunkStatus = "retry_scheduled"
)

// ChunkErrorCode classifies why a chunk last failed.
type ChunkErrorCode string

const (
	ChunkErrorNone            ChunkErrorCode = ""
	ChunkErrorNoText          ChunkErrorCode = "NO_TEXT"
	ChunkErrorTransient       ChunkErrorCode = "TRANSIENT_ERROR"
	ChunkErrorTimeout         ChunkErrorCode = "TIMEOUT"
	ChunkErrorProcessing      ChunkErrorCode = "PROCESSING_ERROR"
	ChunkErrorCancelled       ChunkErrorCode = "CANCELLED"
)

// JobChunkResult is the JSON payload stored on a successfully processed chunk.
type JobChunkResult struct {
	Sentences []string `json:"sentences"`
	Tokens    int64    `json:"tokens"`
}

// JobChunk is one contiguous page range of a Job's source PDF.
type JobChunk struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	JobID   uint `gorm:"uniqueIndex:idx_job_chunk;index:idx_chunks_job_status,priority:1;not null" json:"job_id"`
	ChunkID int  `gorm:"uniqueIndex:idx_job_chunk" json:"chunk_id"`

	PageStart   int  `json:"page_start"`
	PageEnd     int  `json:"page_end"`
	PageCount   int  `json:"page_count"`
	HasOverlap  bool `json:"has_overlap"`

	// Exactly one of PayloadBase64 / PayloadURL is populated, per the
	// inline-vs-out-of-band threshold in CHUNK_PAYLOAD_INLINE_LIMIT_BYTES.
	PayloadBase64 string `gorm:"type:text" json:"-"`
	PayloadURL    string `gorm:"type:text" json:"-"`

	Status     JobChunkStatus `gorm:"type:varchar(20);default:'pending';index:idx_chunks_job_status,priority:2;index" json:"status"`
	CurrentTaskID string      `gorm:"type:varchar(64)" json:"current_task_id,omitempty"`

	Attempts   int `gorm:"default:0" json:"attempts"`
	MaxRetries int `gorm:"default:3" json:"max_retries"`

	LastErrorCode ChunkErrorCode `gorm:"type:varchar(30)" json:"last_error_code,omitempty"`
	LastError     string         `gorm:"type:text" json:"last_error,omitempty"`

	ResultJSON datatypes.JSONType[JobChunkResult] `gorm:"type:jsonb" json:"result,omitempty"`

	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// CanRetry reports whether the chunk is still within its retry budget.
func (c *JobChunk) CanRetry() bool {
	return c.Attempts < c.MaxRetries
}

// IsTerminal reports success or exhausted-retry failure.
func (c *JobChunk) IsTerminal() bool {
	return c.Status == JobChunkStatusSuccess ||
		(c.Status == JobChunkStatusFailed && !c.CanRetry())
}

// HasInlinePayload reports whether the chunk bytes live on the row itself.
func (c *JobChunk) HasInlinePayload() bool {
	return c.PayloadBase64 != ""
}
