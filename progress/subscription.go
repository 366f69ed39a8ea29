package progress

import (
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// JoinSubscription wraps a live Redis subscription for one job's room so
// callers don't need to import go-redis directly to consume events.
type JoinSubscription struct {
	sub *redis.PubSub
}

// Close releases the underlying subscription.
func (j *JoinSubscription) Close() error {
	if j == nil || j.sub == nil {
		return nil
	}
	return j.sub.Close()
}

// Next blocks for the next published event and decodes it. Returns false
// once the subscription's channel is closed.
func (j *JoinSubscription) Next() (*Event, bool) {
	if j == nil || j.sub == nil {
		return nil, false
	}
	msg, ok := <-j.sub.Channel()
	if !ok {
		return nil, false
	}
	var event Event
	if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
		return nil, false
	}
	return &event, true
}
