// Package kafka is an optional ingest transport, an IBM/sarama
// consumer-group reader handing raw record bytes to the pipeline's
// normalizer stage, grounded on the teacher's ingesters/kafka_consumer
// (Setup/Cleanup/ConsumeClaim on a long-lived ConsumerGroup, retried by
// an outer routine loop).
package kafka

import (
	"context"
	"fmt"

	"github.com/IBM/sarama"

	"github.com/flowprofiler/flowprofiler/internal/logx"
)

// Source reads raw records from a Kafka topic via a consumer group and
// forwards them, one per message, on Records. Records is unbuffered by
// design: backpressure from the normalizer stage should propagate all
// the way back to the consumer group's claim loop rather than being
// absorbed by an internal queue.
type Source struct {
	Records chan []byte

	group sarama.ConsumerGroup
	topic string
	log   *logx.Logger
}

// Config names the handful of consumer-group options the profiler
// exposes; anything else uses sarama's own defaults.
type Config struct {
	Brokers []string
	Topic   string
	Group   string
}

// Open connects a consumer group to Brokers and returns a Source ready
// for Run. Version is pinned the way the teacher pins currKafkaVersion:
// a known-good baseline rather than sarama's newest default, since
// brokers in the field commonly lag the client library.
func Open(cfg Config, log *logx.Logger) (*Source, error) {
	scfg := sarama.NewConfig()
	scfg.Version = sarama.V2_1_0_0
	scfg.Consumer.Return.Errors = true
	scfg.Consumer.Offsets.Initial = sarama.OffsetNewest

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.Group, scfg)
	if err != nil {
		return nil, fmt.Errorf("kafka: new consumer group: %w", err)
	}
	return &Source{
		Records: make(chan []byte),
		group:   group,
		topic:   cfg.Topic,
		log:     log,
	}, nil
}

// Run drives the consumer group until ctx is canceled, retrying Consume
// whenever the group session ends without a canceled context (broker
// rebalance, leader change) exactly as the teacher's routine() does.
func (s *Source) Run(ctx context.Context) error {
	defer close(s.Records)
	attempt := 0
	for {
		attempt++
		if err := s.group.Consume(ctx, []string{s.topic}, s); err != nil {
			s.log.Errorf("kafka consumer attempt %d failed: %v", attempt, err)
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

// Close releases the underlying consumer group.
func (s *Source) Close() error {
	return s.group.Close()
}

func (s *Source) Setup(sarama.ConsumerGroupSession) error { return nil }

func (s *Source) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (s *Source) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		select {
		case s.Records <- msg.Value:
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
	return nil
}
