// Package kafkaconsumer runs the consumer group that applies terrain
// invalidation events to the tile cache.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/tilemesh/terrabuild/internal/cache"
	"github.com/tilemesh/terrabuild/internal/cache/keys"
	obs "github.com/tilemesh/terrabuild/internal/core/observability"
	"github.com/tilemesh/terrabuild/internal/invalidation"
	"github.com/tilemesh/terrabuild/internal/layer"
	mylog "github.com/tilemesh/terrabuild/internal/logger"
	"github.com/tilemesh/terrabuild/internal/source"
	"github.com/tilemesh/terrabuild/internal/tile"
)

// PrefixDeleter is the optional bulk-delete capability used for layer
// purges; the redis store implements it, the in-memory store does not.
type PrefixDeleter interface {
	DelByPrefix(ctx context.Context, prefix string) (int, error)
}

// maxKeysPerEvent bounds the per-event fan-out; events addressing more tiles
// degrade to a whole-layer purge, which is cheaper than enumerating.
const maxKeysPerEvent = 8192

const delBatchSize = 512

const dedupeWindow = 2048

type Consumer struct {
	cfg     Config
	logger  *slog.Logger
	cache   cache.Interface
	profile tile.ProfileKind
	layers  []*layer.Layer
	seen    *lru.Cache[uint64, struct{}]
	zlog    *zerolog.Logger
}

// New builds a consumer that invalidates tiles under the given reconciled
// profile. layers is consulted to clear per-layer blacklists on events.
func New(cfg Config, logger *slog.Logger, c cache.Interface, profile tile.ProfileKind, layers []*layer.Layer) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	seen, _ := lru.New[uint64, struct{}](dedupeWindow)
	return &Consumer{
		cfg:     cfg,
		logger:  logger,
		cache:   c,
		profile: profile,
		layers:  layers,
		seen:    seen,
	}
}

// Start joins the consumer group and processes events until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.cache == nil {
		return errors.New("kafkaconsumer: missing cache dependency")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	base := mylog.WithComponent(context.Background(), "kafka_consumer")
	zl := mylog.Build(mylog.Config{
		Level:     "info",
		Component: "kafka_consumer",
	}, nil)
	c.zlog = mylog.FromContext(base, &zl)

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err)
				c.zlog.Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne applies a single invalidation message. Poison messages (bad
// JSON, failed validation) are counted and skipped so they never wedge the
// partition; cache failures return an error and are redelivered.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	sum := xxhash.Sum64(msg.Value)
	if _, dup := c.seen.Get(sum); dup {
		obs.ObserveInvalidation("duplicate", 0)
		return nil
	}

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.IncKafkaConsumerError()
		obs.ObserveInvalidation("skipped", 0)
		c.log(ctx).Error().
			Err(err).
			Str("topic", msg.Topic).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("undecodable invalidation event skipped")
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.IncKafkaConsumerError()
		obs.ObserveInvalidation("skipped", 0)
		c.log(ctx).Error().
			Err(err).
			Str("layer", ev.Layer).
			Str("op", ev.Op).
			Msg("invalid invalidation event skipped")
		return nil
	}

	deleted, outcome, err := c.apply(ctx, ev)
	if err != nil {
		obs.IncKafkaConsumerError()
		obs.ObserveInvalidation("error", deleted)
		c.log(ctx).Error().
			Err(err).
			Str("layer", ev.Layer).
			Str("op", ev.Op).
			Msg("invalidation failed, message will be redelivered")
		return err
	}

	c.seen.Add(sum, struct{}{})
	c.clearBlacklists(ev.Layer)
	obs.ObserveInvalidation(outcome, deleted)
	c.log(ctx).Info().
		Str("event", "invalidation").
		Str("op", ev.Op).
		Str("layer", ev.Layer).
		Str("outcome", outcome).
		Int("keys", deleted).
		Msg("invalidated tiles")
	return nil
}

func (c *Consumer) apply(ctx context.Context, ev invalidation.Event) (int, string, error) {
	if ev.Op == invalidation.OpPurge {
		n, err := c.purge(ctx, ev.Layer)
		return n, "purged", err
	}

	delKeys, enumerable := c.fanout(ev)
	if !enumerable {
		// Over the fan-out cap, or a profile with no key enumeration.
		n, err := c.purge(ctx, ev.Layer)
		return n, "purged", err
	}
	if len(delKeys) == 0 {
		return 0, "applied", nil
	}

	deleted := 0
	for len(delKeys) > 0 {
		n := min(delBatchSize, len(delKeys))
		if err := c.cache.Del(ctx, delKeys[:n]...); err != nil {
			return deleted, "", fmt.Errorf("cache del: %w", err)
		}
		deleted += n
		delKeys = delKeys[n:]
	}
	return deleted, "applied", nil
}

// fanout enumerates the cache keys covered by the event. enumerable is
// false when the event is better served by a purge: a projected profile
// with no geographic key grid, or a fan-out over the cap.
func (c *Consumer) fanout(ev invalidation.Event) (delKeys []string, enumerable bool) {
	if _, ok := tile.World(c.profile); !ok {
		return nil, false
	}
	ext := ev.BBox.Extent()

	var total uint64
	for lvl := ev.MinLevel; lvl <= ev.MaxLevel; lvl++ {
		total += 2 * tile.CountForExtent(ext, c.profile, uint32(lvl))
		if total > maxKeysPerEvent {
			return nil, false
		}
	}

	out := make([]string, 0, total)
	for lvl := ev.MinLevel; lvl <= ev.MaxLevel; lvl++ {
		for _, k := range tile.KeysForExtent(ext, c.profile, uint32(lvl)) {
			for _, kind := range []source.Kind{source.KindImage, source.KindElevation} {
				out = append(out, keys.Key(ev.Layer, kind, k))
			}
		}
	}
	return out, true
}

func (c *Consumer) purge(ctx context.Context, layerName string) (int, error) {
	pd, ok := c.cache.(PrefixDeleter)
	if !ok {
		return 0, fmt.Errorf("cache backend does not support prefix deletes")
	}
	total := 0
	for _, kind := range []source.Kind{source.KindImage, source.KindElevation} {
		n, err := pd.DelByPrefix(ctx, keys.Prefix(layerName, kind))
		total += n
		if err != nil {
			return total, fmt.Errorf("purge %s: %w", kind, err)
		}
	}
	return total, nil
}

func (c *Consumer) clearBlacklists(layerName string) {
	for _, l := range c.layers {
		if l.Name == layerName && l.Blacklist != nil {
			l.Blacklist.Clear()
		}
	}
}

func (c *Consumer) log(ctx context.Context) *zerolog.Logger {
	return mylog.FromContext(ctx, c.zlog)
}
