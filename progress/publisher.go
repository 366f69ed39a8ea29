// Package progress implements the Progress Publisher: it loads the
// authoritative Job row and fans a single event out to the job's room,
// coalescing bursts of near-simultaneous emits and replaying the current
// state to subscribers who join late.
package progress

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/sahilchouksey/go-init-setup/model"
	"github.com/sahilchouksey/go-init-setup/utils/cache"
	"gorm.io/gorm"
)

// CoalesceWindow is the latency optimization window from §4.7: two emits
// for the same job within this window collapse into one publish of the
// latest state. It is never a correctness requirement.
const CoalesceWindow = 100 * time.Millisecond

// Event is the wire shape published to job:<id> and sent first by Join.
// GET /jobs/{id} does not use it: that handler returns the Job row, whose
// JSON also carries columns Event leaves out (settings, pricing, tokens,
// retry round) and omits error_message when it is empty.
type Event struct {
	ID              uint    `json:"id"`
	UserID          uint    `json:"user_id"`
	Status          string  `json:"status"`
	ProgressPercent int     `json:"progress_percent"`
	CurrentStep     string  `json:"current_step"`
	ErrorMessage    *string `json:"error_message"`
	TotalChunks     int     `json:"total_chunks"`
	ProcessedChunks int     `json:"processed_chunks"`
	EstimatedCredit int     `json:"estimated_credits"`
	ActualCredits   *int    `json:"actual_credits"`
	ModelTier       string  `json:"model"`
	CreatedAt       string  `json:"created_at"`
	StartedAt       *string `json:"started_at"`
	CompletedAt     *string `json:"completed_at"`
}

func room(jobID uint) string { return fmt.Sprintf("job:%d", jobID) }

// Publisher is a durable, coalesced fan-out of Job state to subscribers.
// A nil redis cache degrades Emit to a no-op publish step while the
// database write path (none — Emit only reads) is unaffected, letting
// tests run without a transport per the source's no-op-default pattern.
type Publisher struct {
	db    *gorm.DB
	redis *cache.RedisCache

	mu      sync.Mutex
	timers  map[uint]*time.Timer
	pending map[uint]bool
}

// New constructs a Publisher. redis may be nil to disable the transport
// entirely (Emit becomes a state-read-only no-op).
func New(db *gorm.DB, redis *cache.RedisCache) *Publisher {
	return &Publisher{
		db:      db,
		redis:   redis,
		timers:  make(map[uint]*time.Timer),
		pending: make(map[uint]bool),
	}
}

// Emit loads the current Job state and publishes one event to job:<id>,
// fire-and-forget. Bursts within CoalesceWindow collapse to the last
// call's read of authoritative state, satisfying the ordering rule that
// the final event reflects whatever was actually committed.
func (p *Publisher) Emit(jobID uint) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if timer, scheduled := p.timers[jobID]; scheduled {
		p.pending[jobID] = true
		_ = timer // already running, the trailing publish below will fire once it elapses
		return
	}

	p.pending[jobID] = true
	p.timers[jobID] = time.AfterFunc(CoalesceWindow, func() {
		p.mu.Lock()
		delete(p.timers, jobID)
		shouldPublish := p.pending[jobID]
		delete(p.pending, jobID)
		p.mu.Unlock()
		if shouldPublish {
			p.publishNow(jobID)
		}
	})
}

func (p *Publisher) publishNow(jobID uint) {
	event, err := p.loadEvent(jobID)
	if err != nil {
		return
	}
	if p.redis == nil {
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	_ = p.redis.Publish(context.Background(), room(jobID), string(payload))
}

func (p *Publisher) loadEvent(jobID uint) (*Event, error) {
	var job model.Job
	if err := p.db.First(&job, jobID).Error; err != nil {
		return nil, fmt.Errorf("failed to load job %d: %w", jobID, err)
	}
	return toEvent(&job), nil
}

func toEvent(job *model.Job) *Event {
	e := &Event{
		ID:              job.ID,
		UserID:          job.UserID,
		Status:          string(job.Status),
		ProgressPercent: job.ProgressPercent,
		CurrentStep:     job.CurrentStep,
		TotalChunks:     job.TotalChunks,
		ProcessedChunks: job.ProcessedChunks,
		EstimatedCredit: job.EstimatedCredits,
		ActualCredits:   job.ActualCredits,
		ModelTier:       string(job.ModelTier),
		CreatedAt:       job.CreatedAt.UTC().Format(time.RFC3339),
	}
	if job.ErrorMessage != "" {
		msg := job.ErrorMessage
		e.ErrorMessage = &msg
	}
	if job.StartedAt != nil {
		s := job.StartedAt.UTC().Format(time.RFC3339)
		e.StartedAt = &s
	}
	if job.CompletedAt != nil {
		c := job.CompletedAt.UTC().Format(time.RFC3339)
		e.CompletedAt = &c
	}
	return e
}

// Join verifies job ownership and returns the current state as a
// synthetic first event plus a live Redis subscription for everything
// after, so a late subscriber never misses a terminal state.
func (p *Publisher) Join(ctx context.Context, jobID, userID uint) (*Event, *JoinSubscription, error) {
	var job model.Job
	if err := p.db.First(&job, jobID).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to load job %d: %w", jobID, err)
	}
	if job.UserID != userID {
		return nil, nil, ErrNotOwner
	}

	current := toEvent(&job)
	if p.redis == nil {
		return current, nil, nil
	}
	sub := p.redis.Subscribe(ctx, room(jobID))
	return current, &JoinSubscription{sub: sub}, nil
}

// ErrNotOwner is returned by Join when the authenticated user does not
// own the job they are trying to subscribe to.
var ErrNotOwner = fmt.Errorf("user does not own this job")
