package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// ModelTier selects which LLM quality/speed tradeoff a job runs against.
type ModelTier string

const (
	ModelTierBalanced ModelTier = "balanced"
	ModelTierQuality  ModelTier = "quality"
	ModelTierSpeed    ModelTier = "speed"
)

// JobStatus is the lifecycle state of a Job.
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// ProcessingSettings is the fixed configuration value a job runs with,
// replacing dynamic keyword-argument dicts from the source system.
type ProcessingSettings struct {
	SentenceLengthLimit int    `json:"sentence_length_limit"`
	GeminiModel         string `json:"gemini_model,omitempty"`
	IgnoreDialogue      bool   `json:"ignore_dialogue"`
	PreserveFormatting  bool   `json:"preserve_formatting"`
	FixHyphenation      bool   `json:"fix_hyphenation"`
	MinSentenceLength   int    `json:"min_sentence_length"`
}

// DefaultProcessingSettings returns the documented defaults.
func DefaultProcessingSettings() ProcessingSettings {
	return ProcessingSettings{
		SentenceLengthLimit: 8,
		MinSentenceLength:   4,
		IgnoreDialogue:      false,
		PreserveFormatting:  false,
		FixHyphenation:      true,
	}
}

// Job is one user-initiated PDF-to-sentences processing request.
type Job struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID           uint      `gorm:"index:idx_jobs_user_created,priority:1;not null" json:"user_id"`
	OriginalFilename string    `gorm:"type:varchar(255)" json:"original_filename"`
	ModelTier        ModelTier `gorm:"type:varchar(20);default:'balanced'" json:"model"`

	Settings datatypes.JSONType[ProcessingSettings] `gorm:"type:jsonb" json:"settings"`

	PricingVersion string  `gorm:"type:varchar(20)" json:"pricing_version"`
	PricingRate    float64 `gorm:"not null" json:"pricing_rate"`

	Status          JobStatus `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	ProgressPercent int       `gorm:"default:0" json:"progress_percent"`
	CurrentStep     string    `gorm:"type:varchar(120)" json:"current_step"`

	TotalChunks     int `gorm:"default:0" json:"total_chunks"`
	ProcessedChunks int `gorm:"default:0" json:"processed_chunks"`

	EstimatedTokens  int64 `gorm:"default:0" json:"estimated_tokens"`
	ActualTokens     int64 `json:"actual_tokens"`
	EstimatedCredits int   `gorm:"default:0" json:"estimated_credits"`
	ActualCredits    *int  `json:"actual_credits,omitempty"`

	RetryRound int `gorm:"default:0" json:"retry_round"`

	IsCancelled bool       `gorm:"default:false" json:"is_cancelled"`
	CancelledAt *time.Time `json:"cancelled_at,omitempty"`

	ErrorMessage string `gorm:"type:text" json:"error_message,omitempty"`

	HistoryID *uint `gorm:"index" json:"history_id,omitempty"`

	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	User   User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Chunks []JobChunk `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"chunks,omitempty"`
}

// IsTerminal reports whether the job has reached a state with no further
// automatic transitions.
func (j *Job) IsTerminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed || j.Status == JobStatusCancelled
}

// ComputeProgress mirrors the orchestrator's primary-pass formula:
// progress = 15 + floor(processed/total * 60), used by callers that only
// have the raw counters (e.g. a watchdog) and want a best-effort figure.
func (j *Job) ComputeProgress() int {
	if j.TotalChunks == 0 {
		return j.ProgressPercent
	}
	return 15 + (j.ProcessedChunks*60)/j.TotalChunks
}
