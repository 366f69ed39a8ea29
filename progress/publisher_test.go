package progress

import (
	"testing"

	"github.com/sahilchouksey/go-init-setup/model"
)

func TestToEventOmitsNilTimestamps(t *testing.T) {
	job := &model.Job{
		ID:     7,
		UserID: 3,
		Status: model.JobStatusProcessing,
	}
	event := toEvent(job)
	if event.StartedAt != nil || event.CompletedAt != nil {
		t.Fatalf("expected nil timestamps, got started=%v completed=%v", event.StartedAt, event.CompletedAt)
	}
	if event.ErrorMessage != nil {
		t.Fatalf("expected nil error message, got %v", *event.ErrorMessage)
	}
	if event.Status != "processing" {
		t.Fatalf("Status = %q, want processing", event.Status)
	}
}

func TestToEventCarriesErrorMessage(t *testing.T) {
	job := &model.Job{ID: 1, Status: model.JobStatusFailed, ErrorMessage: "all chunks failed"}
	event := toEvent(job)
	if event.ErrorMessage == nil || *event.ErrorMessage != "all chunks failed" {
		t.Fatalf("unexpected error message: %v", event.ErrorMessage)
	}
}
