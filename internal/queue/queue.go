// Package queue takes transcode jobs off kafka and puts them on it.
package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/1F47E/go-stickerconv/internal/job"
	cfg "github.com/1F47E/go-stickerconv/pkg/config"
	"github.com/1F47E/go-stickerconv/pkg/logger"
)

// Reader is the part of *kafka.Reader the consumer uses.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Writer is the part of *kafka.Writer the producer uses.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler transcodes one job.
type Handler func(ctx context.Context, j job.Job) error

// Consumer handles messages one at a time and commits each once handled,
// failed or not. There are no retries.
type Consumer struct {
	reader Reader
	handle Handler
}

func NewReader(k cfg.Kafka) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:        k.Brokers,
		Topic:          k.Topic,
		GroupID:        k.GroupID,
		MinBytes:       1,
		MaxBytes:       10e6, // 10MB
		CommitInterval: 0,    // commit synchronously after every job
		StartOffset:    kafka.FirstOffset,
	})
}

func NewConsumer(r Reader, h Handler) *Consumer {
	return &Consumer{reader: r, handle: h}
}

// Run consumes until ctx is done. A cancelled ctx is a clean stop.
func (c *Consumer) Run(ctx context.Context) error {
	log := logger.Log.WithField("scope", "queue consumer")
	log.Info("consumer started")
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				log.Info("consumer stopped")
				return nil
			}
			return fmt.Errorf("fetching message: %w", err)
		}
		log.Debugf("message from %s [partition %d, offset %d]", msg.Topic, msg.Partition, msg.Offset)

		if err := c.Handle(ctx, msg); err != nil {
			log.WithField("offset", msg.Offset).Warn(err)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("committing offset %d: %w", msg.Offset, err)
		}
	}
}

// Handle parses one message and runs the handler on it.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) error {
	j, err := job.Parse(msg.Value)
	if err != nil {
		return err
	}
	return c.handle(ctx, j)
}

type Producer struct {
	writer Writer
}

func NewWriter(k cfg.Kafka) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(k.Brokers...),
		Topic:        k.Topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
}

func NewProducer(w Writer) *Producer {
	return &Producer{writer: w}
}

// Publish puts jobs on the topic, keyed by asset path.
func (p *Producer) Publish(ctx context.Context, jobs ...job.Job) error {
	msgs := make([]kafka.Message, 0, len(jobs))
	for _, j := range jobs {
		if err := j.Validate(); err != nil {
			return err
		}
		value, err := j.Marshal()
		if err != nil {
			return err
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(j.Path),
			Value: value,
			Time:  time.Now(),
		})
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("writing %d jobs: %w", len(msgs), err)
	}
	logger.Log.WithField("scope", "queue producer").Debugf("published %d jobs", len(msgs))
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
