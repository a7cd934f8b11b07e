// Package events forwards message events to a RabbitMQ topic exchange.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand/v2"
	"net/url"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/memohai/wadesk/internal/message/event"
	"github.com/memohai/wadesk/internal/version"
)

// Producer is stamped into every envelope.
const Producer = "wadesk"

const defaultQueueSize = 256

// Meta describes an envelope.
type Meta struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	Time          time.Time `json:"time"`
	Producer      string    `json:"producer,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// Envelope is the JSON body of every published message.
type Envelope struct {
	Meta Meta `json:"meta"`
	Data any  `json:"data"`
}

// Channel is the subset of *amqp.Channel the publisher needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Redialer opens a new channel after the broker connection was lost. lost
// reports the loss of the new connection; conn is closed with the publisher.
type Redialer func(ctx context.Context) (ch Channel, lost <-chan *amqp.Error, conn io.Closer, err error)

// Publisher implements event.Publisher. Publish never blocks the caller;
// a background loop drains the queue into the exchange and reconnects when
// the broker connection drops.
type Publisher struct {
	ch        Channel
	conn      io.Closer
	lost      <-chan *amqp.Error
	redial    Redialer
	retryBase time.Duration
	exchange  string
	logger    *slog.Logger
	queue     chan event.Event

	mu        sync.Mutex
	started   bool
	closed    bool
	closeOnce sync.Once
	done      chan struct{}
	stopped   chan struct{}
}

var _ event.Publisher = (*Publisher)(nil)

// NewPublisher wraps an open channel. Call Run to start delivery.
func NewPublisher(log *slog.Logger, ch Channel, exchange string, queueSize int) *Publisher {
	if log == nil {
		log = slog.Default()
	}
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	return &Publisher{
		ch:        ch,
		retryBase: time.Second,
		exchange:  exchange,
		logger:    log.With(slog.String("component", "amqp_publisher"), slog.String("exchange", exchange)),
		queue:     make(chan event.Event, queueSize),
		done:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
}

// Reconnect makes Run watch lost and replace the channel through redial once
// it fires. It must be called before Run.
func (p *Publisher) Reconnect(lost <-chan *amqp.Error, redial Redialer) {
	p.lost = lost
	p.redial = redial
}

// Dial connects to url with retries, declares the topic exchange and returns a publisher.
func Dial(ctx context.Context, log *slog.Logger, rawURL, exchange string) (*Publisher, error) {
	if rawURL == "" {
		return nil, errors.New("rabbitmq url is required")
	}
	if log == nil {
		log = slog.Default()
	}
	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}
	open := func(ctx context.Context, attempts int) (Channel, <-chan *amqp.Error, io.Closer, error) {
		conn, err := dialWithRetry(ctx, log, rawURL, attempts)
		if err != nil {
			return nil, nil, nil, err
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, nil, nil, fmt.Errorf("open channel: %w", err)
		}
		if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, nil, nil, fmt.Errorf("declare exchange %q: %w", exchange, err)
		}
		return ch, conn.NotifyClose(make(chan *amqp.Error, 1)), conn, nil
	}

	ch, lost, conn, err := open(ctx, 5)
	if err != nil {
		return nil, err
	}
	log.Info("connected to rabbitmq", slog.String("host", host), slog.String("exchange", exchange))
	p := NewPublisher(log, ch, exchange, defaultQueueSize)
	p.conn = conn
	p.Reconnect(lost, func(ctx context.Context) (Channel, <-chan *amqp.Error, io.Closer, error) {
		return open(ctx, 1)
	})
	return p, nil
}

func dialWithRetry(ctx context.Context, log *slog.Logger, rawURL string, attempts int) (*amqp.Connection, error) {
	var lastErr error
	for i := range attempts {
		conn, err := amqp.Dial(rawURL)
		if err == nil {
			return conn, nil
		}
		lastErr = err
		wait := backoff(i, 500*time.Millisecond, 10*time.Second)
		log.Warn("rabbitmq dial failed", slog.Int("attempt", i+1), slog.Duration("retry_in", wait), slog.Any("error", err))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect to rabbitmq: %w", lastErr)
}

// backoff doubles base per attempt, adds up to 25% jitter and caps the result.
func backoff(attempt int, base, limit time.Duration) time.Duration {
	wait := base << attempt
	if wait <= 0 || wait > limit {
		wait = limit
	}
	jitter := time.Duration(rand.Float64() * 0.25 * float64(wait))
	if wait+jitter > limit {
		return limit
	}
	return wait + jitter
}

// Publish queues ev for delivery. Events are dropped when the queue is full.
func (p *Publisher) Publish(ev event.Event) {
	select {
	case <-p.done:
		return
	default:
	}
	select {
	case p.queue <- ev:
	default:
		p.logger.Warn("event queue full, dropping event", slog.String("event_id", ev.ID), slog.String("type", string(ev.Type)))
	}
}

// Run delivers queued events until ctx is cancelled or Close is called.
// Only the first call runs; later calls and calls after Close return at once.
func (p *Publisher) Run(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()
	defer close(p.stopped)

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			p.drain()
			return
		case err, ok := <-p.lost:
			if !ok {
				err = &amqp.Error{Reason: "connection closed"}
			}
			p.logger.Error("rabbitmq connection lost, reconnecting", slog.Any("error", err))
			if !p.reconnect(ctx) {
				return
			}
		case ev := <-p.queue:
			err := p.publish(ctx, ev)
			if errors.Is(err, amqp.ErrClosed) && p.redial != nil {
				p.logger.Warn("rabbitmq channel closed, reconnecting", slog.String("event_id", ev.ID))
				if !p.reconnect(ctx) {
					return
				}
				err = p.publish(ctx, ev)
			}
			if err != nil {
				p.logError(ev, err)
			}
		}
	}
}

// reconnect replaces the channel with jittered backoff until it succeeds.
// It reports false when ctx is done or the publisher is closing.
func (p *Publisher) reconnect(ctx context.Context) bool {
	if p.redial == nil {
		p.lost = nil
		return true
	}
	for attempt := 0; ; attempt++ {
		ch, lost, conn, err := p.redial(ctx)
		if err == nil {
			_ = p.ch.Close()
			_ = p.closeConn()
			p.ch, p.lost, p.conn = ch, lost, conn
			p.logger.Info("rabbitmq reconnected", slog.Int("attempts", attempt+1))
			return true
		}
		wait := backoff(attempt, p.retryBase, 30*time.Second)
		p.logger.Error("rabbitmq reconnect failed", slog.Int("attempt", attempt+1), slog.Duration("retry_in", wait), slog.Any("error", err))
		select {
		case <-ctx.Done():
			return false
		case <-p.done:
			return false
		case <-time.After(wait):
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case ev := <-p.queue:
			p.send(ctx, ev)
		default:
			return
		}
	}
}

func (p *Publisher) send(ctx context.Context, ev event.Event) {
	if err := p.publish(ctx, ev); err != nil {
		p.logError(ev, err)
	}
}

func (p *Publisher) logError(ev event.Event, err error) {
	p.logger.Error("publish event failed", slog.String("event_id", ev.ID), slog.String("type", string(ev.Type)), slog.Any("error", err))
}

func (p *Publisher) publish(ctx context.Context, ev event.Event) error {
	env := Envelope{
		Meta: Meta{
			ID:            ev.ID,
			Type:          string(ev.Type),
			Time:          ev.Time,
			Producer:      Producer + "/" + version.Version,
			CorrelationID: ev.ConversationID,
		},
		Data: ev,
	}
	if env.Meta.Time.IsZero() {
		env.Meta.Time = time.Now().UTC()
	}
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	pubCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return p.ch.PublishWithContext(pubCtx, p.exchange, string(ev.Type), false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     env.Meta.ID,
		CorrelationId: env.Meta.CorrelationID,
		Type:          env.Meta.Type,
		Timestamp:     env.Meta.Time,
		AppId:         Producer,
		Body:          body,
	})
}

// Close stops accepting events, flushes what is queued and closes the channel and connection.
func (p *Publisher) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		started := p.started
		p.mu.Unlock()

		close(p.done)
		if started {
			<-p.stopped
		}
		p.drain()
		err = errors.Join(p.ch.Close(), p.closeConn())
	})
	return err
}

func (p *Publisher) closeConn() error {
	if p.conn == nil {
		return nil
	}
	return p.conn.Close()
}
