// Package consumer runs comparisons requested through a Redis stream.
package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maltedev/store-price-compare/internal/models"
)

const (
	EventTypeCompareRequested = "COMPARE_REQUESTED"
	DefaultStream             = "stream:compare_requests"
	DefaultGroup              = "price-compare-consumers"
	DefaultConsumer           = "consumer-1"
)

// StreamClient is the subset of *redis.Client used by the consumer.
type StreamClient interface {
	XGroupCreateMkStream(ctx context.Context, stream, group, start string) *redis.StatusCmd
	XReadGroup(ctx context.Context, a *redis.XReadGroupArgs) *redis.XStreamSliceCmd
	XAck(ctx context.Context, stream, group string, ids ...string) *redis.IntCmd
}

type Comparer interface {
	Compare(ctx context.Context, productQuery string, storeIDs []string) (models.ComparisonResult, error)
}

type Config struct {
	Stream   string
	Group    string
	Consumer string
	Block    time.Duration
	// DefaultStores is used when a request names no stores.
	DefaultStores []string
}

// CompareRequest is the payload of a COMPARE_REQUESTED event.
type CompareRequest struct {
	ProductName string   `json:"product_name"`
	Stores      []string `json:"stores"`
}

type Consumer struct {
	redis    StreamClient
	comparer Comparer
	cfg      Config
	logger   *slog.Logger
}

func New(client StreamClient, comparer Comparer, cfg Config, logger *slog.Logger) *Consumer {
	if cfg.Stream == "" {
		cfg.Stream = DefaultStream
	}
	if cfg.Group == "" {
		cfg.Group = DefaultGroup
	}
	if cfg.Consumer == "" {
		cfg.Consumer = DefaultConsumer
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		redis:    client,
		comparer: comparer,
		cfg:      cfg,
		logger:   logger.With("component", "consumer"),
	}
}

// Run reads the stream until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.redis.XGroupCreateMkStream(ctx, c.cfg.Stream, c.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.logger.Info("starting consumer", "stream", c.cfg.Stream, "group", c.cfg.Group)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := c.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("failed to read from stream", "error", err)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
}

func (c *Consumer) poll(ctx context.Context) error {
	streams, err := c.redis.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  []string{c.cfg.Stream, ">"},
		Count:    1,
		Block:    c.cfg.Block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, stream := range streams {
		for _, msg := range stream.Messages {
			if err := c.HandleMessage(ctx, msg); err != nil {
				c.logger.Error("failed to process message", "id", msg.ID, "error", err)
			}
			// Failed requests are acknowledged too; they would fail again.
			if err := c.redis.XAck(ctx, c.cfg.Stream, c.cfg.Group, msg.ID).Err(); err != nil {
				c.logger.Error("failed to acknowledge message", "id", msg.ID, "error", err)
			}
		}
	}
	return nil
}

// HandleMessage runs one comparison. Messages of other event types are
// ignored.
func (c *Consumer) HandleMessage(ctx context.Context, msg redis.XMessage) error {
	eventType, _ := msg.Values["event_type"].(string)
	if eventType != EventTypeCompareRequested {
		return nil
	}

	raw, ok := msg.Values["payload"].(string)
	if !ok {
		return fmt.Errorf("missing payload in event")
	}

	var req CompareRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		return fmt.Errorf("failed to parse payload: %w", err)
	}

	stores := req.Stores
	if len(stores) == 0 {
		stores = c.cfg.DefaultStores
	}

	result, err := c.comparer.Compare(ctx, req.ProductName, stores)
	if err != nil {
		return fmt.Errorf("failed to compare %q: %w", req.ProductName, err)
	}

	c.logger.Info("processed compare request",
		"message_id", msg.ID,
		"product", req.ProductName,
		"offers", result.ValidOfferCount)
	return nil
}
