package kafka

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/fundlane/notification/internal/application"
	"github.com/fundlane/notification/internal/domain"
	"github.com/fundlane/notification/internal/kafka/registry"

	// Blank imports trigger init() in each handler file,
	// registering all event handlers into the registry.
	_ "github.com/fundlane/notification/internal/kafka/handlers"
)

// ChangeTopic carries row-change envelopes published by backend services
// whose writes happen outside this process. They are republished into the
// realtime hub so connected clients still see them.
const ChangeTopic = "change-events"

// ChangePublisher pushes change events to connected realtime subscribers.
type ChangePublisher interface {
	Publish(event domain.ChangeEvent)
}

// Consumer wraps the franz-go Kafka client.
type Consumer struct {
	client   *kgo.Client
	enqueuer *application.Enqueuer
	bus      ChangePublisher
}

// New creates a Consumer with the given brokers, group ID, and topics.
func New(brokers []string, groupID string, topics []string, enqueuer *application.Enqueuer, bus ChangePublisher) (*Consumer, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ConsumerGroup(groupID),
		kgo.ConsumeTopics(topics...),
		kgo.DisableAutoCommit(),
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{client: client, enqueuer: enqueuer, bus: bus}, nil
}

// Start begins polling Kafka and processing records. Blocks until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) {
	log.Info().Msg("kafka consumer started")

	for {
		fetches := c.client.PollFetches(ctx)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			break
		}

		fetches.EachError(func(topic string, partition int32, err error) {
			log.Error().Err(err).Str("topic", topic).Int32("partition", partition).Msg("kafka fetch error")
		})

		fetches.EachRecord(func(r *kgo.Record) {
			c.process(ctx, r)
		})

		if err := c.client.CommitUncommittedOffsets(ctx); err != nil {
			log.Error().Err(err).Msg("kafka commit error")
		}
	}

	c.client.Close()
	log.Info().Msg("kafka consumer stopped")
}

// process routes one Kafka record: change envelopes go straight to the
// realtime hub, everything else is mapped to an enqueue call via the
// handler registry.
func (c *Consumer) process(ctx context.Context, r *kgo.Record) {
	log.Debug().
		Str("topic", r.Topic).
		Str("key", string(r.Key)).
		Msg("processing kafka record")

	if r.Topic == ChangeTopic {
		c.publishChange(r.Value)
		return
	}

	// notification-commands doesn't use eventType routing
	in := registry.DispatchDirect(r.Topic, r.Value)
	if in == nil {
		in = registry.Dispatch(r.Topic, r.Value)
	}
	if in == nil {
		log.Debug().Str("topic", r.Topic).Msg("no handler matched, skipping")
		return
	}

	result, err := c.enqueuer.Enqueue(ctx, *in)
	if err != nil {
		// Enqueue failures never block the domain action that raised the
		// event; they are logged for the audit trail and the offset is
		// committed regardless.
		log.Error().Err(err).
			Str("topic", r.Topic).
			Str("user", in.UserID).
			Msg("failed to enqueue notification from kafka event")
		return
	}
	for ch, msg := range result.ChannelErrors {
		log.Warn().
			Str("topic", r.Topic).
			Str("channel", string(ch)).
			Str("reason", msg).
			Msg("channel skipped while enqueuing kafka event")
	}
}

func (c *Consumer) publishChange(data []byte) {
	var event domain.ChangeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		log.Warn().Err(err).Msg("undecodable change envelope, skipping")
		return
	}
	if event.Table == "" {
		log.Warn().Msg("change envelope without table, skipping")
		return
	}
	c.bus.Publish(event)
}
