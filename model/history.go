package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// History is the user-visible record of a completed or failed Job.
type History struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID   uint   `gorm:"index;not null" json:"user_id"`
	Filename string `gorm:"type:varchar(255)" json:"filename"`

	Sentences datatypes.JSON `gorm:"type:jsonb" json:"sentences"` // []string, see SetSentences/GetSentences

	TotalSentences int `json:"total_sentences"`

	// Non-goal per spec: spreadsheet export is an external collaborator.
	// Left nullable and unset by every code path in this repo.
	ExportedSheetURL string `gorm:"type:text" json:"exported_sheet_url,omitempty"`

	Settings datatypes.JSONType[ProcessingSettings] `gorm:"type:jsonb" json:"settings"`

	JobID uint `gorm:"index;not null" json:"job_id"`
}

// SetSentences stores the merged sentence snapshot and its count together.
func (h *History) SetSentences(sentences []string) error {
	data, err := json.Marshal(sentences)
	if err != nil {
		return err
	}
	h.Sentences = datatypes.JSON(data)
	h.TotalSentences = len(sentences)
	return nil
}

// GetSentences decodes the stored sentence snapshot.
func (h *History) GetSentences() ([]string, error) {
	if len(h.Sentences) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(h.Sentences, &out); err != nil {
		return nil, err
	}
	return out, nil
}
