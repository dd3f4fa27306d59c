// Package kafkaconsumer applies coverage update events from Kafka to the
// value cache and the catalog snapshot cache.
package kafkaconsumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IBM/sarama"

	obs "github.com/FAIRiCUBE/querycube-web/internal/core/observability"
	"github.com/FAIRiCUBE/querycube-web/internal/invalidation"
	mylog "github.com/FAIRiCUBE/querycube-web/internal/logger"
)

// LayerInvalidator orphans every cached value of a layer.
type LayerInvalidator interface {
	Invalidate(layer string) (int64, error)
}

// CatalogForgetter drops the cached catalog snapshot of a user.
type CatalogForgetter interface {
	Forget(username string) error
}

type Consumer struct {
	cfg      Config
	logger   *slog.Logger
	values   LayerInvalidator
	catalog  CatalogForgetter
	username string
	dedupe   *generationDedupe

	assigned atomic.Bool
	assignMu sync.RWMutex
	assign   map[int32]struct{}
	wg       sync.WaitGroup
	cancel   context.CancelFunc
}

// New returns a consumer. values and catalog may be nil when the
// respective cache is disabled; username selects the catalog snapshot.
func New(cfg Config, logger *slog.Logger, values LayerInvalidator, catalog CatalogForgetter, username string) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		cfg:      cfg,
		logger:   logger,
		values:   values,
		catalog:  catalog,
		username: username,
		dedupe:   newGenerationDedupe(cfg.DedupeSize),
		assign:   map[int32]struct{}{},
	}
}

// Start joins the consumer group and consumes in the background until ctx
// is done or Stop is called.
func (c *Consumer) Start(ctx context.Context) error {
	if c.values == nil && c.catalog == nil {
		return errors.New("kafkaconsumer: nothing to invalidate (value and catalog caches are disabled)")
	}
	if len(c.cfg.Brokers) == 0 || c.cfg.Topic == "" {
		return errors.New("kafkaconsumer: brokers and topic are required")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true
	cfg.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(mylog.WithComponent(ctx, "kafka_consumer"))
	c.cancel = cancel

	h := c.handler()
	backoff := c.cfg.RetryBackoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer func() {
			if err := group.Close(); err != nil {
				c.logger.Error("kafka consumer group close", "err", err)
			}
		}()
		for {
			if err := group.Consume(ctx, []string{c.cfg.Topic}, h); err != nil {
				obs.IncKafkaConsumerError("consume")
				c.logger.ErrorContext(ctx, "kafka consume error", "err", err, "topic", c.cfg.Topic)
				select {
				case <-time.After(backoff):
				case <-ctx.Done():
					return
				}
			}
			if ctx.Err() != nil {
				return
			}
		}
	}()

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		for err := range group.Errors() {
			obs.IncKafkaConsumerError("group")
			c.logger.ErrorContext(ctx, "kafka group error", "err", err)
		}
	}()

	c.logger.InfoContext(ctx, "kafka invalidation consumer started",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)
	return nil
}

func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("kafka invalidation consumer stopped")
}

// Readiness reports whether partitions of the update topic are assigned.
func (c *Consumer) Readiness() (ready bool, partitions []int32) {
	if !c.assigned.Load() {
		return false, nil
	}
	c.assignMu.RLock()
	defer c.assignMu.RUnlock()
	for p := range c.assign {
		partitions = append(partitions, p)
	}
	return true, partitions
}

func (c *Consumer) handler() *groupHandler {
	return &groupHandler{
		setup: func(sess sarama.ConsumerGroupSession) {
			c.assignMu.Lock()
			defer c.assignMu.Unlock()
			c.assign = map[int32]struct{}{}
			for _, parts := range sess.Claims() {
				for _, p := range parts {
					c.assign[p] = struct{}{}
				}
			}
			c.assigned.Store(true)
		},
		cleanup: func(sarama.ConsumerGroupSession) {
			c.assignMu.Lock()
			defer c.assignMu.Unlock()
			c.assigned.Store(false)
			c.assign = map[int32]struct{}{}
		},
		process: c.ProcessOne,
	}
}

// ProcessOne applies a single message. Undecodable or invalid events are
// logged and skipped; a failed cache write is returned so the message is
// redelivered.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	ev, err := invalidation.Decode(msg.Value)
	if err != nil {
		obs.IncKafkaConsumerError("decode")
		c.logger.WarnContext(ctx, "skipping invalid invalidation event",
			"err", err, "topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)
		return nil
	}
	ctx = mylog.WithLayer(ctx, ev.Layer)

	if c.dedupe.seen(ev.Layer, ev.Generation) {
		obs.ObserveInvalidation("skip_generation", nil)
		c.logger.DebugContext(ctx, "stale invalidation event", "generation", ev.Generation)
		return nil
	}

	err = c.apply(ev)
	obs.ObserveInvalidation(ev.Op, err)
	if err != nil {
		obs.IncKafkaConsumerError("apply")
		return fmt.Errorf("invalidate %s: %w", ev.Layer, err)
	}
	c.dedupe.record(ev.Layer, ev.Generation)
	c.logger.InfoContext(ctx, "layer invalidated", "op", ev.Op, "generation", ev.Generation)
	return nil
}

func (c *Consumer) apply(ev invalidation.Event) error {
	var errs []error
	if c.values != nil && ev.TouchesValues() {
		if _, err := c.values.Invalidate(ev.Layer); err != nil {
			errs = append(errs, fmt.Errorf("value cache: %w", err))
		}
	}
	if c.catalog != nil {
		if err := c.catalog.Forget(c.username); err != nil {
			errs = append(errs, fmt.Errorf("catalog snapshot: %w", err))
		}
	}
	return errors.Join(errs...)
}
