package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"lotting_ledger/internal/models"
)

var ErrNoImportRecord = errors.New("progress event without import record id")

const (
	topicPrefix = "lotting:import:progress:"
	lastPrefix  = "lotting:import:last:"

	// LastEventTTL is how long a finished import stays replayable.
	LastEventTTL = time.Hour
)

func Topic(importRecordID string) string {
	return topicPrefix + importRecordID
}

// LastKey holds the most recent event of an import so late subscribers can
// catch up.
func LastKey(importRecordID string) string {
	return lastPrefix + importRecordID
}

type Publisher interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// RedisSink publishes each progress event as JSON on the topic of the import
// it belongs to and keeps a copy under LastKey.
type RedisSink struct {
	Client Publisher
	TTL    time.Duration
}

func NewRedisSink(client Publisher) *RedisSink {
	return &RedisSink{Client: client, TTL: LastEventTTL}
}

func (s *RedisSink) Publish(ctx context.Context, ev models.ProgressEvent) error {
	if ev.ImportRecordID == "" {
		return ErrNoImportRecord
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := s.Client.Set(ctx, LastKey(ev.ImportRecordID), b, s.TTL).Err(); err != nil {
		return fmt.Errorf("store last event: %w", err)
	}
	return s.Client.Publish(ctx, Topic(ev.ImportRecordID), b).Err()
}

// Subscribe streams decoded events of an import until ctx ends or a terminal
// (complete/error) event arrives. The last stored event is sent first, so a
// subscriber that arrives after the import finished still sees how it ended.
func Subscribe(ctx context.Context, client *redis.Client, importRecordID string) (<-chan models.ProgressEvent, error) {
	sub := client.Subscribe(ctx, Topic(importRecordID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, err
	}

	var last *models.ProgressEvent
	raw, err := client.Get(ctx, LastKey(importRecordID)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
	case err != nil:
		_ = sub.Close()
		return nil, fmt.Errorf("read last event: %w", err)
	default:
		var ev models.ProgressEvent
		if json.Unmarshal(raw, &ev) == nil {
			last = &ev
		}
	}

	out := make(chan models.ProgressEvent)
	go func() {
		defer close(out)
		defer sub.Close()
		forward(ctx, last, sub.Channel(), out)
	}()
	return out, nil
}

// forward sends last (if any) and then the decoded messages to out, stopping
// after a terminal event. A message equal to last is not sent twice.
func forward(ctx context.Context, last *models.ProgressEvent, msgs <-chan *redis.Message, out chan<- models.ProgressEvent) {
	send := func(ev models.ProgressEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}
	if last != nil {
		if !send(*last) || last.Terminal() {
			return
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case m, ok := <-msgs:
			if !ok {
				return
			}
			var ev models.ProgressEvent
			if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
				continue
			}
			if last != nil && ev == *last {
				continue
			}
			if !send(ev) || ev.Terminal() {
				return
			}
		}
	}
}
