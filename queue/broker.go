// Package queue provides the task broker abstraction: named task
// dispatch, countdown/delay, and best-effort cancellation by job id,
// built on the Redis primitives already wrapped by utils/cache.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sahilchouksey/go-init-setup/utils/cache"
)

// TaskMessage is the only payload that ever crosses the broker: a chunk
// task descriptor carrying (job_id, chunk_id), never the chunk payload
// itself.
type TaskMessage struct {
	JobID   uint `json:"job_id"`
	ChunkID int  `json:"chunk_id"`
}

func revokeChannel(jobID uint) string {
	return fmt.Sprintf("job:%d:revoke", jobID)
}

// Broker dispatches chunk tasks with an optional countdown and publishes
// best-effort revocation notices for a job's in-flight tasks. Delivery
// ordering and retry semantics for the chunk work itself are owned by
// the orchestrator and the chunk rows in storage; the broker only needs
// to guarantee a task is seen at least once.
type Broker struct {
	redis *cache.RedisCache
}

// New wraps an already-connected Redis cache.
func New(redis *cache.RedisCache) *Broker {
	return &Broker{redis: redis}
}

// Revoke publishes a best-effort cancellation notice for every task
// currently in flight for a job. Workers are not required to observe
// it — they independently re-check Job.is_cancelled on every state
// transition — so a missed notice never leaves a chunk stuck.
func (b *Broker) Revoke(ctx context.Context, jobID uint) error {
	return b.redis.Publish(ctx, revokeChannel(jobID), "cancelled")
}

// SubscribeRevocations lets a long-running worker pool observe
// cancellation notices for a job without polling storage on a tight
// loop. The caller owns the returned subscription and must Close it.
func (b *Broker) SubscribeRevocations(ctx context.Context, jobID uint) *redis.PubSub {
	return b.redis.Subscribe(ctx, revokeChannel(jobID))
}

// Countdown returns the delay for a retry round's group dispatch, per
// the orchestrator's backoff schedule: min(base * 2^round, capSeconds).
func Countdown(base time.Duration, round int, cap time.Duration) time.Duration {
	d := base
	for i := 0; i < round; i++ {
		d *= 2
		if d >= cap {
			return cap
		}
	}
	if d > cap {
		return cap
	}
	return d
}

// workerRetryCap bounds the in-worker retry backoff a Worker applies to
// its own transient failures, distinct from the orchestrator's
// round-level RetryCountdownCap.
const workerRetryCap = 60 * time.Second

// AwaitChunkRetry blocks for a chunk's in-worker retry backoff —
// min(base*2^attempt, 60s) — unless ctx is cancelled first, in which
// case it returns ctx.Err(). Redispatch itself stays with the caller
// (the Worker re-runs the chunk in-process once this returns nil); the
// broker only owns computing and honoring the schedule.
func (b *Broker) AwaitChunkRetry(ctx context.Context, base time.Duration, attempt int) error {
	delay := Countdown(base, attempt, workerRetryCap)
	select {
	case <-time.After(delay):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EncodeTask serializes a task message for logging or future
// cross-process dispatch; the in-process orchestrator passes the struct
// directly and never needs to decode it back.
func EncodeTask(msg TaskMessage) ([]byte, error) {
	return json.Marshal(msg)
}
