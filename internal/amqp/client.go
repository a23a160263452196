package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	maxFailures    = 5
	openTimeout    = 30 * time.Second
	maxBackoff     = 30 * time.Second
	publishTimeout = 5 * time.Second
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

// Config names the broker and the topology the client declares.
type Config struct {
	URL          string
	Exchange     string
	ExpenseQueue string
	InviteQueue  string
}

// Client publishes and consumes household finance events on a direct
// exchange. Each queue is bound with its own name as routing key.
type Client struct {
	url          string
	exchangeName string
	expenseQueue string
	inviteQueue  string

	mu      sync.Mutex
	conn    *amqp091.Connection
	channel *amqp091.Channel

	state        int32
	failureCount int64
	lastFailure  time.Time
}

func NewClient(cfg Config) (*Client, error) {
	c := &Client{
		url:          cfg.URL,
		exchangeName: cfg.Exchange,
		expenseQueue: cfg.ExpenseQueue,
		inviteQueue:  cfg.InviteQueue,
	}
	if err := c.connect(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectLocked()
}

func (c *Client) connectLocked() error {
	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := c.setup(channel); err != nil {
		channel.Close()
		conn.Close()
		return fmt.Errorf("setup exchange and queues: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return nil
}

func (c *Client) setup(ch *amqp091.Channel) error {
	err := ch.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, q := range []string{c.expenseQueue, c.inviteQueue} {
		if q == "" {
			continue
		}
		if _, err := ch.QueueDeclare(q, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", q, err)
		}
		if err := ch.QueueBind(q, q, c.exchangeName, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", q, err)
		}
	}
	return nil
}

// ensureChannel reconnects when the broker dropped the connection.
func (c *Client) ensureChannel() (*amqp091.Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn != nil && !c.conn.IsClosed() && c.channel != nil && !c.channel.IsClosed() {
		return c.channel, nil
	}
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}
	c.conn, c.channel = nil, nil
	if err := c.connectLocked(); err != nil {
		return nil, err
	}
	slog.Info("Reconnected to AMQP broker", "exchange", c.exchangeName)
	return c.channel, nil
}

// PublishExpenseMaterialized announces an expense created from a recurring expense.
func (c *Client) PublishExpenseMaterialized(ctx context.Context, msg *ExpenseMaterializedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.expenseQueue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published expense materialized message",
		"expense_id", msg.ExpenseID,
		"recurring_expense_id", msg.RecurringExpenseID,
		"queue", c.expenseQueue)
	return nil
}

// PublishHouseholdInvited announces a new household invitation.
func (c *Client) PublishHouseholdInvited(ctx context.Context, msg *HouseholdInvitedMessage) error {
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	if err := c.publish(ctx, c.inviteQueue, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Published household invited message",
		"household_id", msg.HouseholdID,
		"user_id", msg.UserID,
		"queue", c.inviteQueue)
	return nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.isCircuitOpen() {
		return fmt.Errorf("publish to %s: %w", routingKey, ErrCircuitOpen)
	}

	ch, err := c.ensureChannel()
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish to %s: %w", routingKey, err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err = ch.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	return nil
}

// ConsumeExpenseMaterialized delivers expense materialized messages to handler
// until ctx is cancelled, reconnecting with backoff when the broker goes away.
// A handler error requeues the message; an unparsable body is dropped.
func (c *Client) ConsumeExpenseMaterialized(ctx context.Context, handler func(context.Context, *ExpenseMaterializedMessage) error) error {
	return c.consumeWithReconnect(ctx, c.expenseQueue, func(body []byte) (bool, error) {
		msg, err := ExpenseMaterializedMessageFromJSON(body)
		if err != nil {
			return false, err
		}
		slog.InfoContext(ctx, "Processing expense materialized message", "expense_id", msg.ExpenseID)
		return true, handler(ctx, msg)
	})
}

// ConsumeHouseholdInvited delivers household invited messages to handler.
func (c *Client) ConsumeHouseholdInvited(ctx context.Context, handler func(context.Context, *HouseholdInvitedMessage) error) error {
	return c.consumeWithReconnect(ctx, c.inviteQueue, func(body []byte) (bool, error) {
		msg, err := HouseholdInvitedMessageFromJSON(body)
		if err != nil {
			return false, err
		}
		slog.InfoContext(ctx, "Processing household invited message", "household_id", msg.HouseholdID, "email", msg.Email)
		return true, handler(ctx, msg)
	})
}

// handleFunc reports whether the body was understood and whether handling failed.
type handleFunc func(body []byte) (parsed bool, err error)

func (c *Client) consumeWithReconnect(ctx context.Context, queue string, handle handleFunc) error {
	attempt := 0
	for {
		err := c.consume(ctx, queue, handle, func() { attempt = 0 })
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "AMQP consumer disconnected, retrying",
			"queue", queue,
			"error", err,
			"backoff", wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (c *Client) consume(ctx context.Context, queue string, handle handleFunc, onConnected func()) error {
	ch, err := c.ensureChannel()
	if err != nil {
		return err
	}

	msgs, err := ch.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}
	onConnected()

	slog.InfoContext(ctx, "Started consuming messages", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "queue", queue, "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}

			parsed, err := handle(delivery.Body)
			switch {
			case !parsed:
				slog.ErrorContext(ctx, "Failed to unmarshal message", "queue", queue, "error", err)
				_ = delivery.Nack(false, false)
			case err != nil:
				slog.ErrorContext(ctx, "Failed to handle message", "queue", queue, "error", err)
				_ = delivery.Nack(false, true)
			default:
				_ = delivery.Ack(false)
			}
		}
	}
}

func (c *Client) isCircuitOpen() bool {
	if atomic.LoadInt32(&c.state) != StateOpen {
		return false
	}
	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()
	if time.Since(last) > openTimeout {
		atomic.CompareAndSwapInt32(&c.state, StateOpen, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	n := atomic.AddInt64(&c.failureCount, 1)
	if n >= maxFailures || atomic.LoadInt32(&c.state) == StateHalfOpen {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns 1s, 2s, 4s, ... capped at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, amqp091.ErrClosed) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"connection", "eof", "broken pipe", "channel closed", "dial"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
