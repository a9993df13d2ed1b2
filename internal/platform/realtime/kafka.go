package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/liveintake/intake/internal/platform/broadcast"
)

// originHeader marks which server instance wrote a record so the instance
// can skip its own records when they come back from the topic.
const originHeader = "intake-origin"

type kafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type kafkaReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// KafkaConfig configures a KafkaBridge.
type KafkaConfig struct {
	Brokers    []string
	Topic      string
	GroupID    string // must be unique per instance so every instance sees every record
	InstanceID string
}

// KafkaBridge joins the hubs of several server instances into one logical
// channel. Envelopes published locally are written to a Kafka topic; records
// read from the topic that other instances wrote are delivered locally.
type KafkaBridge struct {
	writer     kafkaWriter
	reader     kafkaReader
	hub        *Hub
	instanceID string
	logger     zerolog.Logger
}

// NewKafkaBridge creates a bridge for hub and registers it as a relay.
func NewKafkaBridge(cfg KafkaConfig, hub *Hub, logger zerolog.Logger) *KafkaBridge {
	logger = logger.With().Str("component", "kafka-bridge").Str("topic", cfg.Topic).Logger()

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Debug().Err(err).Int("count", len(messages)).Msg("kafka write failed")
			}
		},
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6, // 10MB
		MaxWait:     250 * time.Millisecond,
		StartOffset: kafka.LastOffset,
	})

	b := newKafkaBridge(writer, reader, hub, cfg.InstanceID, logger)
	hub.AddRelay(b)
	return b
}

func newKafkaBridge(w kafkaWriter, r kafkaReader, hub *Hub, instanceID string, logger zerolog.Logger) *KafkaBridge {
	return &KafkaBridge{
		writer:     w,
		reader:     r,
		hub:        hub,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Forward implements Relay. Failures are logged and dropped.
func (b *KafkaBridge) Forward(ctx context.Context, env broadcast.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		b.logger.Debug().Err(err).Msg("marshal envelope for kafka")
		return
	}

	msg := kafka.Message{
		Key:     []byte(env.Topic),
		Value:   data,
		Headers: []kafka.Header{{Key: originHeader, Value: []byte(b.instanceID)}},
	}
	if err := b.writer.WriteMessages(context.WithoutCancel(ctx), msg); err != nil {
		b.logger.Debug().Err(err).Msg("kafka write failed")
	}
}

// Run consumes the topic until ctx is cancelled.
func (b *KafkaBridge) Run(ctx context.Context) error {
	b.logger.Info().Msg("kafka bridge started")
	for {
		msg, err := b.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		b.handle(msg)
	}
}

func (b *KafkaBridge) handle(msg kafka.Message) {
	for _, h := range msg.Headers {
		if h.Key == originHeader && string(h.Value) == b.instanceID {
			return
		}
	}

	var env broadcast.Envelope
	if err := json.Unmarshal(msg.Value, &env); err != nil {
		b.logger.Debug().Err(err).Int64("offset", msg.Offset).Msg("skipping undecodable kafka record")
		return
	}
	if err := b.hub.Deliver(env); err != nil {
		b.logger.Debug().Err(err).Int64("offset", msg.Offset).Msg("skipping kafka record")
	}
}

// Close shuts down the writer and reader.
func (b *KafkaBridge) Close() error {
	return errors.Join(b.writer.Close(), b.reader.Close())
}
