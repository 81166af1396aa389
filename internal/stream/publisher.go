package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/yegors/skylanes/internal/simulation"
	"github.com/yegors/skylanes/pkg/logger"
)

// ContentType is set on every published message
const ContentType = "application/msgpack"

// Config for the Kafka event stream
type Config struct {
	Brokers      []string
	Topic        string
	QueueSize    int
	BatchSize    int
	WriteTimeout time.Duration
}

// MessageWriter is the part of kafka.Writer the publisher uses
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher sends flight lifecycle events to Kafka, keyed by flight id so
// each flight's events stay ordered within a partition
type Publisher struct {
	cfg    Config
	writer MessageWriter
	queue  chan simulation.Event
	logger *logger.Logger

	mutex  sync.RWMutex
	closed bool
	done   chan struct{}
}

// NewPublisher creates a publisher writing to the configured brokers
func NewPublisher(cfg Config, log *logger.Logger) *Publisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	return NewPublisherWithWriter(cfg, w, log)
}

// NewPublisherWithWriter creates a publisher on an existing writer
func NewPublisherWithWriter(cfg Config, w MessageWriter, log *logger.Logger) *Publisher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 64
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	p := &Publisher{
		cfg:    cfg,
		writer: w,
		queue:  make(chan simulation.Event, cfg.QueueSize),
		logger: log.Named("stream"),
		done:   make(chan struct{}),
	}
	go p.worker()
	return p
}

// HandleFlightEvent queues an event for publishing. It never blocks.
func (p *Publisher) HandleFlightEvent(ev simulation.Event) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	if p.closed {
		return
	}

	select {
	case p.queue <- ev:
	default:
		p.logger.Warn("Event queue full, dropping event",
			logger.String("type", string(ev.Type)),
			logger.String("id", ev.Flight.ID))
	}
}

// Close publishes anything still queued and closes the writer
func (p *Publisher) Close() error {
	p.mutex.Lock()
	if p.closed {
		p.mutex.Unlock()
		return nil
	}
	p.closed = true
	close(p.queue)
	p.mutex.Unlock()

	<-p.done
	return p.writer.Close()
}

func (p *Publisher) worker() {
	defer close(p.done)

	batch := make([]kafka.Message, 0, p.cfg.BatchSize)
	for ev := range p.queue {
		batch = p.append(batch, ev)

	drain:
		for len(batch) < p.cfg.BatchSize {
			select {
			case next, ok := <-p.queue:
				if !ok {
					break drain
				}
				batch = p.append(batch, next)
			default:
				break drain
			}
		}

		p.flush(batch)
		batch = batch[:0]
	}
}

func (p *Publisher) append(batch []kafka.Message, ev simulation.Event) []kafka.Message {
	msg, err := Encode(ev)
	if err != nil {
		p.logger.Error("Failed to encode event", logger.Error(err))
		return batch
	}
	return append(batch, msg)
}

func (p *Publisher) flush(batch []kafka.Message) {
	if len(batch) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), p.cfg.WriteTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, batch...); err != nil {
		p.logger.Error("Failed to publish events",
			logger.Int("count", len(batch)),
			logger.Error(err))
	}
}

// Encode turns an event into a Kafka message
func Encode(ev simulation.Event) (kafka.Message, error) {
	value, err := msgpack.Marshal(&ev)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode %s event: %w", ev.Type, err)
	}
	return kafka.Message{
		Key:   []byte(ev.Flight.ID),
		Value: value,
		Time:  ev.Time,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte(ContentType)},
			{Key: "event-type", Value: []byte(ev.Type)},
		},
	}, nil
}

// Decode reads an event published by Encode
func Decode(msg kafka.Message) (simulation.Event, error) {
	var ev simulation.Event
	if err := msgpack.Unmarshal(msg.Value, &ev); err != nil {
		return simulation.Event{}, fmt.Errorf("failed to decode event: %w", err)
	}
	return ev, nil
}
