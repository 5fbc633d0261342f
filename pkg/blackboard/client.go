package blackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for seed events.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new blackboard client for the specified instance.
// Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// NewClientFromURL parses a redis:// URL and creates a client.
func NewClientFromURL(url, instanceName string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewClient(opts, instanceName)
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// RecordSeedEvent appends an event to the history set, trims the set to
// HistoryLimit entries, and publishes the event.
func (c *Client) RecordSeedEvent(ctx context.Context, e *SeedEvent) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("invalid seed event: %w", err)
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to marshal seed event: %w", err)
	}

	historyKey := SeedHistoryKey(c.instanceName)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, historyKey, redis.Z{Score: HistoryScore(e.TimestampMs), Member: string(data)})
		pipe.ZRemRangeByRank(ctx, historyKey, 0, -HistoryLimit-1)
		pipe.Publish(ctx, SeedEventsChannel(c.instanceName), string(data))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to record seed event: %w", err)
	}
	return nil
}

// ListSeedEvents returns recorded events with sinceMs <= timestamp <= untilMs,
// oldest first. A zero bound is open.
func (c *Client) ListSeedEvents(ctx context.Context, sinceMs, untilMs int64) ([]*SeedEvent, error) {
	min, max := "-inf", "+inf"
	if sinceMs > 0 {
		min = strconv.FormatInt(sinceMs, 10)
	}
	if untilMs > 0 {
		max = strconv.FormatInt(untilMs, 10)
	}

	members, err := c.rdb.ZRangeByScore(ctx, SeedHistoryKey(c.instanceName), &redis.ZRangeBy{Min: min, Max: max}).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list seed events: %w", err)
	}

	events := make([]*SeedEvent, 0, len(members))
	for _, m := range members {
		var e SeedEvent
		if err := json.Unmarshal([]byte(m), &e); err != nil {
			return nil, fmt.Errorf("failed to unmarshal seed event: %w", err)
		}
		events = append(events, &e)
	}
	return events, nil
}

// StoreCurrentPose overwrites the latest seed zero pose.
func (c *Client) StoreCurrentPose(ctx context.Context, p *CurrentPose) error {
	if err := c.rdb.HSet(ctx, CurrentPoseKey(c.instanceName), CurrentPoseToHash(p)).Err(); err != nil {
		return fmt.Errorf("failed to store current pose: %w", err)
	}
	return nil
}

// GetCurrentPose returns the latest seed zero pose.
// Returns redis.Nil (check with IsNotFound) if no pose was stored yet.
func (c *Client) GetCurrentPose(ctx context.Context) (*CurrentPose, error) {
	hash, err := c.rdb.HGetAll(ctx, CurrentPoseKey(c.instanceName)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get current pose: %w", err)
	}
	if len(hash) == 0 {
		return nil, redis.Nil
	}
	return HashToCurrentPose(hash)
}

// Subscription represents an active Pub/Sub subscription to seed events.
// Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *SeedEvent
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of seed events.
// The channel will be closed when the subscription is closed or the context is cancelled.
func (s *Subscription) Events() <-chan *SeedEvent {
	return s.events
}

// Errors returns the channel of subscription errors.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeSeedEvents subscribes to seed events for this instance.
// Events are delivered on a buffered channel (size 10); Redis Pub/Sub delivery
// is at-most-once.
func (c *Client) SubscribeSeedEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, SeedEventsChannel(c.instanceName))

	// Wait for the subscription to be confirmed so no event published right
	// after this call is missed.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to seed events: %w", err)
	}

	eventsChan := make(chan *SeedEvent, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var e SeedEvent
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal seed event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &e:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound returns true if the error is a Redis "key not found" error (redis.Nil).
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
