package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/timeclock/internal/models"
)

// EventHandler processes one decoded attendance event. Returning an error
// naks the message for redelivery.
type EventHandler func(ctx context.Context, ev *models.AttendanceEvent) error

type Consumer struct {
	nc *nats.Conn
	js jetstream.JetStream
}

func NewConsumer(natsURL string) (*Consumer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Consumer{nc: nc, js: js}, nil
}

// DecodeEvent unmarshals a message payload into an attendance event.
func DecodeEvent(data []byte) (*models.AttendanceEvent, error) {
	var ev models.AttendanceEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("decode event: %w", err)
	}
	return &ev, nil
}

// ConsumeDurable processes every attendance event with workerCount
// goroutines. Used by the worker for the audit log, so it starts from the
// oldest undelivered message.
func (c *Consumer) ConsumeDurable(ctx context.Context, consumerName string, handler EventHandler, workerCount int) error {
	cons, err := c.consumer(ctx, durableConfig(consumerName))
	if err != nil {
		return err
	}

	msgCh := make(chan jetstream.Msg, workerCount*2)

	go func() {
		defer close(msgCh)
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(workerCount, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				slog.Warn("fetch attendance events error", "error", err)
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				select {
				case msgCh <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	for i := 0; i < workerCount; i++ {
		go func(workerID int) {
			for msg := range msgCh {
				handle(ctx, msg, handler, "worker", workerID)
			}
		}(i)
	}

	slog.Info("attendance consumer started", "consumer", consumerName, "workers", workerCount)
	return nil
}

// ConsumeEvents delivers only new events to handler through an ephemeral
// consumer owned by this process, so every API replica sees every event.
// Used by the API to fan events out over WebSocket.
func (c *Consumer) ConsumeEvents(ctx context.Context, namePrefix string, handler EventHandler) error {
	cfg := fanOutConfig(namePrefix)
	consumerName := cfg.Name
	cons, err := c.consumer(ctx, cfg)
	if err != nil {
		return err
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			batch, err := cons.Fetch(10, jetstream.FetchMaxWait(5*time.Second))
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				time.Sleep(time.Second)
				continue
			}

			for msg := range batch.Messages() {
				handle(ctx, msg, handler, "consumer", consumerName)
			}
		}
	}()

	slog.Info("event consumer started", "consumer", consumerName)
	return nil
}

// durableConfig is shared by all workers: each event is handled once.
func durableConfig(name string) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Name:          name,
		Durable:       name,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    5,
		FilterSubject: AttendanceSubjectBase + ".>",
		DeliverPolicy: jetstream.DeliverAllPolicy,
	}
}

// fanOutConfig is unique per call and removed by the server once the process
// stops fetching.
func fanOutConfig(prefix string) jetstream.ConsumerConfig {
	return jetstream.ConsumerConfig{
		Name:              prefix + "-" + uuid.NewString(),
		AckPolicy:         jetstream.AckExplicitPolicy,
		AckWait:           10 * time.Second,
		MaxDeliver:        3,
		FilterSubject:     AttendanceSubjectBase + ".>",
		DeliverPolicy:     jetstream.DeliverNewPolicy,
		InactiveThreshold: time.Minute,
	}
}

func (c *Consumer) consumer(ctx context.Context, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error) {
	stream, err := c.js.Stream(ctx, AttendanceStreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", AttendanceStreamName, err)
	}
	cons, err := stream.CreateOrUpdateConsumer(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create consumer %s: %w", cfg.Name, err)
	}
	return cons, nil
}

func handle(ctx context.Context, msg jetstream.Msg, handler EventHandler, key string, value any) {
	ev, err := DecodeEvent(msg.Data())
	if err != nil {
		// Malformed payloads never succeed on redelivery.
		slog.Error("drop attendance event", key, value, "error", err, "subject", msg.Subject())
		_ = msg.Term()
		return
	}
	if err := handler(ctx, ev); err != nil {
		slog.Error("process attendance event error", key, value, "error", err, "subject", msg.Subject())
		_ = msg.Nak()
		return
	}
	_ = msg.Ack()
}

func (c *Consumer) Close() {
	c.nc.Close()
}
