package blackboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the artefact journal.
// All keys and channels are namespaced with the instance name.
// The client is safe for concurrent use.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a journal client for the specified instance.
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
func NewClientFromURL(redisURL, instanceName string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	return NewClient(opts, instanceName)
}

// InstanceName returns the namespace this client writes to.
func (c *Client) InstanceName() string {
	return c.instanceName
}

// Close closes the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateArtefact validates and writes an artefact, indexes it under its run
// and publishes it on the artefact events channel.
func (c *Client) CreateArtefact(ctx context.Context, a *Artefact) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid artefact: %w", err)
	}

	hash, err := ArtefactToHash(a)
	if err != nil {
		return fmt.Errorf("failed to serialize artefact: %w", err)
	}

	artefactJSON, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("failed to marshal artefact for event: %w", err)
	}

	score := float64(a.CreatedAtMs)
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, ArtefactKey(c.instanceName, a.ID), hash)
		pipe.ZAdd(ctx, RunKey(c.instanceName, a.RunID), redis.Z{Score: score, Member: a.ID})
		pipe.ZAddNX(ctx, RunsKey(c.instanceName), redis.Z{Score: score, Member: a.RunID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write artefact to Redis: %w", err)
	}

	if err := c.rdb.Publish(ctx, ArtefactEventsChannel(c.instanceName), artefactJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish artefact event: %w", err)
	}

	return nil
}

// GetArtefact retrieves an artefact by ID.
// Returns (nil, redis.Nil) if the artefact doesn't exist; use IsNotFound.
func (c *Client) GetArtefact(ctx context.Context, artefactID string) (*Artefact, error) {
	hashData, err := c.rdb.HGetAll(ctx, ArtefactKey(c.instanceName, artefactID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read artefact from Redis: %w", err)
	}

	// HGetAll returns an empty map for missing keys
	if len(hashData) == 0 {
		return nil, redis.Nil
	}

	artefact, err := HashToArtefact(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize artefact: %w", err)
	}

	return artefact, nil
}

// ArtefactExists checks if an artefact exists without fetching it.
func (c *Client) ArtefactExists(ctx context.Context, artefactID string) (bool, error) {
	exists, err := c.rdb.Exists(ctx, ArtefactKey(c.instanceName, artefactID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check artefact existence: %w", err)
	}
	return exists > 0, nil
}

// AddVersionToThread adds an artefact to a version thread.
func (c *Client) AddVersionToThread(ctx context.Context, logicalID string, artefactID string, version int) error {
	z := redis.Z{
		Score:  ThreadScore(version),
		Member: artefactID,
	}

	if err := c.rdb.ZAdd(ctx, ThreadKey(c.instanceName, logicalID), z).Err(); err != nil {
		return fmt.Errorf("failed to add version to thread: %w", err)
	}

	return nil
}

// GetLatestVersion retrieves the artefact ID of the highest version in a thread.
// Returns ("", 0, redis.Nil) if the thread doesn't exist or is empty.
func (c *Client) GetLatestVersion(ctx context.Context, logicalID string) (string, int, error) {
	results, err := c.rdb.ZRevRangeWithScores(ctx, ThreadKey(c.instanceName, logicalID), 0, 0).Result()
	if err != nil {
		return "", 0, fmt.Errorf("failed to get latest version from thread: %w", err)
	}

	if len(results) == 0 {
		return "", 0, redis.Nil
	}

	return results[0].Member.(string), VersionFromScore(results[0].Score), nil
}

// GetThread returns every version of a logical artefact, oldest first.
func (c *Client) GetThread(ctx context.Context, logicalID string) ([]ThreadVersion, error) {
	results, err := c.rdb.ZRangeWithScores(ctx, ThreadKey(c.instanceName, logicalID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read thread: %w", err)
	}

	versions := make([]ThreadVersion, 0, len(results))
	for _, z := range results {
		versions = append(versions, ThreadVersion{
			ArtefactID: z.Member.(string),
			Version:    VersionFromScore(z.Score),
		})
	}
	return versions, nil
}

// ListRuns returns all run IDs, oldest first.
func (c *Client) ListRuns(ctx context.Context) ([]string, error) {
	runs, err := c.rdb.ZRange(ctx, RunsKey(c.instanceName), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// ListRunArtefacts returns the artefacts of one run in creation order.
// Index entries whose artefact has disappeared are skipped.
func (c *Client) ListRunArtefacts(ctx context.Context, runID string) ([]*Artefact, error) {
	ids, err := c.rdb.ZRange(ctx, RunKey(c.instanceName, runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read run index: %w", err)
	}

	artefacts := make([]*Artefact, 0, len(ids))
	for _, id := range ids {
		a, err := c.GetArtefact(ctx, id)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		artefacts = append(artefacts, a)
	}
	return artefacts, nil
}

// ScanArtefacts calls fn for every artefact key of the instance using SCAN,
// so large journals do not block the server. fn receives the artefact ID.
func (c *Client) ScanArtefacts(ctx context.Context, fn func(artefactID string) error) error {
	prefix := ArtefactKey(c.instanceName, "")
	iter := c.rdb.Scan(ctx, 0, ArtefactKeyPattern(c.instanceName), 0).Iterator()

	for iter.Next(ctx) {
		if err := fn(strings.TrimPrefix(iter.Val(), prefix)); err != nil {
			return err
		}
	}

	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan artefacts: %w", err)
	}
	return nil
}

// Subscription represents an active Pub/Sub subscription to artefact events.
// Caller must call Close() when done.
type Subscription struct {
	events <-chan *Artefact
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of artefact events. It is closed when the
// subscription is closed or its context is cancelled.
func (s *Subscription) Events() <-chan *Artefact {
	return s.events
}

// Errors returns non-fatal subscription errors, such as undecodable
// messages. The subscription continues after them.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeArtefactEvents subscribes to artefact creation events for this
// instance. Delivery is at-most-once: events published while the subscriber
// is slow may be dropped by Redis.
func (c *Client) SubscribeArtefactEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, ArtefactEventsChannel(c.instanceName))

	// Wait for the subscription to be confirmed so no event is missed
	// between return and the first receive.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to artefact events: %w", err)
	}

	eventsChan := make(chan *Artefact, 10)
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

				var artefact Artefact
				if err := json.Unmarshal([]byte(msg.Payload), &artefact); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal artefact event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &artefact:
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

// IsNotFound returns true if the error is a Redis "key not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
