package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
)

// ErrDeliveriesClosed is returned by RabbitConsumer.Run when the broker closes
// the delivery channel.
var ErrDeliveriesClosed = errors.New("rabbitmq delivery channel closed")

const publishTimeout = 5 * time.Second

// declareTopology declares the durable work queue and its dead-letter queue.
// Rejected or nacked-without-requeue deliveries land in "<queue>.dlq".
func declareTopology(ch *amqp.Channel, queue string) error {
	dlq := queue + ".dlq"
	if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare %s: %w", dlq, err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{
		"x-dead-letter-exchange":    "",
		"x-dead-letter-routing-key": dlq,
	}); err != nil {
		return fmt.Errorf("declare %s: %w", queue, err)
	}
	return nil
}

func dial(url, queue string) (*amqp.Connection, *amqp.Channel, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, nil, fmt.Errorf("rabbit dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("rabbit channel: %w", err)
	}
	if err := declareTopology(ch, queue); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, nil, err
	}
	return conn, ch, nil
}

// RabbitPublisher is a Queue that publishes persistent JSON jobs to RabbitMQ.
type RabbitPublisher struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string
}

// NewRabbitPublisher connects to url and declares queue with its DLQ.
func NewRabbitPublisher(url, queue string) (*RabbitPublisher, error) {
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	return &RabbitPublisher{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue publishes job through the default exchange.
func (p *RabbitPublisher) Enqueue(ctx context.Context, job Job) error {
	body, err := Encode(job)
	if err != nil {
		return err
	}
	cctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	return p.ch.PublishWithContext(cctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.EnqueuedAt,
		Body:         body,
	})
}

// Close releases the channel and connection.
func (p *RabbitPublisher) Close(context.Context) error {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

// RabbitConsumer drains the work queue with a bounded worker pool.
//
// A delivery is acked when the handler succeeds. Malformed payloads go
// straight to the DLQ. A handler failure is requeued once; a failure on the
// redelivery dead-letters the job.
type RabbitConsumer struct {
	conn        *amqp.Connection
	ch          *amqp.Channel
	queue       string
	concurrency int
	handler     Handler
	log         zerolog.Logger
}

// NewRabbitConsumer connects, declares the topology and sets the prefetch
// count to concurrency.
func NewRabbitConsumer(url, queue string, concurrency int, h Handler, log zerolog.Logger) (*RabbitConsumer, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	conn, ch, err := dial(url, queue)
	if err != nil {
		return nil, err
	}
	if err := ch.Qos(concurrency, 0, false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("rabbit qos: %w", err)
	}
	return &RabbitConsumer{
		conn:        conn,
		ch:          ch,
		queue:       queue,
		concurrency: concurrency,
		handler:     h,
		log:         log.With().Str("component", "queue").Str("driver", "rabbitmq").Logger(),
	}, nil
}

// Run consumes until ctx is cancelled or the broker closes the channel.
// In-flight jobs are allowed to finish before Run returns.
func (c *RabbitConsumer) Run(ctx context.Context) error {
	msgs, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("rabbit consume: %w", err)
	}
	c.log.Info().Str("queue", c.queue).Int("concurrency", c.concurrency).Msg("consumer started")
	return c.dispatch(ctx, msgs)
}

// Close releases the channel and connection.
func (c *RabbitConsumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *RabbitConsumer) dispatch(ctx context.Context, msgs <-chan amqp.Delivery) error {
	jobs := make(chan amqp.Delivery, c.concurrency*2)
	// Handlers outlive ctx so a shutdown does not abort half-sent pushes.
	hctx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	wg.Add(c.concurrency)
	for i := 0; i < c.concurrency; i++ {
		go func() {
			defer wg.Done()
			for d := range jobs {
				queueDepth.WithLabelValues("rabbitmq").Dec()
				c.handle(hctx, d)
			}
		}()
	}
	defer func() {
		close(jobs)
		wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			c.log.Info().Msg("consumer shutting down")
			return nil
		case d, ok := <-msgs:
			if !ok {
				return ErrDeliveriesClosed
			}
			queueDepth.WithLabelValues("rabbitmq").Inc()
			jobs <- d
		}
	}
}

func (c *RabbitConsumer) handle(ctx context.Context, d amqp.Delivery) {
	job, err := Decode(d.Body)
	if err != nil {
		jobsHandled.WithLabelValues("rabbitmq", "malformed").Inc()
		c.log.Warn().Err(err).Uint64("delivery_tag", d.DeliveryTag).Msg("dropping malformed job")
		_ = d.Nack(false, false)
		return
	}
	if d.Redelivered {
		job.Attempt++
	}

	start := time.Now()
	if err := c.run(ctx, job); err != nil {
		jobsHandled.WithLabelValues("rabbitmq", "error").Inc()
		requeue := !d.Redelivered
		c.log.Error().Err(err).
			Str("job_id", job.ID).
			Str("message_id", job.MessageID).
			Int("attempt", job.Attempt).
			Bool("requeue", requeue).
			Dur("cost", time.Since(start)).
			Msg("dispatch job failed")
		_ = d.Nack(false, requeue)
		return
	}

	jobsHandled.WithLabelValues("rabbitmq", "ok").Inc()
	if err := d.Ack(false); err != nil {
		c.log.Warn().Err(err).Str("job_id", job.ID).Msg("ack failed")
	}
}

func (c *RabbitConsumer) run(ctx context.Context, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return c.handler(ctx, job)
}
