// Package events delivers patient tier transitions to downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/moca-trajectory-engine/internal/domain"
)

// producer is the subset of *kgo.Client used for publishing.
type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// KafkaPublisher writes tier transitions to a Kafka topic keyed by patient ID,
// so all transitions of one patient land on the same partition.
type KafkaPublisher struct {
	client producer
	topic  string
	logger *logrus.Logger
}

// NewKafkaPublisher creates a publisher for the configured brokers. The client
// connects lazily on first produce.
func NewKafkaPublisher(cfg domain.EventsConfig, logger *logrus.Logger) (*KafkaPublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}

	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.AllowAutoTopicCreation(),
	}
	if cfg.ClientID != "" {
		opts = append(opts, kgo.ClientID(cfg.ClientID))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating kafka client: %w", err)
	}
	return &KafkaPublisher{client: client, topic: cfg.Topic, logger: logger}, nil
}

// PublishTierTransition produces the event and waits for the broker ack.
func (p *KafkaPublisher) PublishTierTransition(ctx context.Context, event domain.TierTransition) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding tier transition: %w", err)
	}

	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.PatientID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte("tier_transition")},
		},
	}
	if err := p.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("producing tier transition for %s: %w", event.PatientID, err)
	}

	p.logger.WithFields(logrus.Fields{
		"patient_id": event.PatientID,
		"from":       event.From,
		"to":         event.To,
		"topic":      p.topic,
	}).Debug("Published tier transition")
	return nil
}

// Close flushes and closes the underlying client.
func (p *KafkaPublisher) Close() error {
	p.client.Close()
	return nil
}

// LogPublisher records transitions in the structured log only.
type LogPublisher struct {
	logger *logrus.Logger
}

// NewLogPublisher creates a publisher that logs transitions.
func NewLogPublisher(logger *logrus.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) PublishTierTransition(_ context.Context, event domain.TierTransition) error {
	p.logger.WithFields(logrus.Fields{
		"patient_id":     event.PatientID,
		"doctor_id":      event.DoctorID,
		"from":           event.From,
		"to":             event.To,
		"current_rating": event.CurrentRating,
		"future_rating":  event.FutureRating,
	}).Info("Patient status tier changed")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// NewPublisher returns a Kafka publisher when brokers are configured and a
// log publisher otherwise.
func NewPublisher(cfg domain.EventsConfig, logger *logrus.Logger) (domain.EventPublisher, error) {
	if len(cfg.Brokers) == 0 {
		logger.Info("No event brokers configured, tier transitions will be logged only")
		return NewLogPublisher(logger), nil
	}
	publisher, err := NewKafkaPublisher(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{
		"brokers": cfg.Brokers,
		"topic":   cfg.Topic,
	}).Info("Publishing tier transitions to Kafka")
	return publisher, nil
}
