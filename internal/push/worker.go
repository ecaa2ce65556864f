package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/group-chat-backend/internal/config"
	"github.com/tbourn/group-chat-backend/internal/domain"
)

// SubscriptionStore is the part of Registry the worker needs.
type SubscriptionStore interface {
	ListForUser(ctx context.Context, userID string) ([]domain.PushSubscription, error)
	Invalidate(ctx context.Context, id string) error
}

// Message is the notification shown by the service worker.
type Message struct {
	Title string         `json:"title"`
	Body  string         `json:"body"`
	Icon  string         `json:"icon,omitempty"`
	Tag   string         `json:"tag,omitempty"`
	Data  map[string]any `json:"data,omitempty"`
}

// EndpointReport is the result for one subscription.
type EndpointReport struct {
	SubscriptionID string
	EndpointHost   string
	Status         int
	Attempts       int
	Outcome        Outcome
	Err            error
}

// DeliveryReport collects the per-endpoint results for one recipient.
type DeliveryReport struct {
	RecipientID string
	Endpoints   []EndpointReport
	// Err is set when the recipient's subscriptions could not be loaded.
	Err error
}

// Count returns how many endpoints ended with outcome o.
func (r DeliveryReport) Count(o Outcome) int {
	n := 0
	for _, e := range r.Endpoints {
		if e.Outcome == o {
			n++
		}
	}
	return n
}

// Worker pushes a Message to every subscription of a recipient.
type Worker struct {
	Store     SubscriptionStore
	Transport Transport
	Log       zerolog.Logger

	// Timeout bounds each send. Zero means 8s.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts for transient failures.
	// Zero keeps a single attempt per endpoint.
	MaxRetries int
	// RetryBase is the first backoff interval when retries are enabled.
	RetryBase time.Duration
}

// NewWorker builds a Worker from push configuration.
func NewWorker(store SubscriptionStore, tr Transport, cfg config.PushConfig, log zerolog.Logger) *Worker {
	return &Worker{
		Store:      store,
		Transport:  tr,
		Log:        log.With().Str("component", "push_worker").Logger(),
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		RetryBase:  cfg.RetryBase,
	}
}

// Deliver sends msg to each of recipientID's subscriptions. Failures are
// recorded in the report and never stop the remaining endpoints.
func (w *Worker) Deliver(ctx context.Context, recipientID string, msg Message) DeliveryReport {
	ctx, span := otel.Tracer("push/Worker").Start(ctx, "Deliver",
		trace.WithAttributes(attribute.String("recipient.id", recipientID)),
	)
	defer span.End()

	report := DeliveryReport{RecipientID: recipientID}
	subs, err := w.Store.ListForUser(ctx, recipientID)
	if err != nil {
		report.Err = fmt.Errorf("list subscriptions: %w", err)
		w.Log.Error().Err(err).Str("recipient_id", recipientID).Msg("load push subscriptions")
		return report
	}
	if len(subs) == 0 {
		return report
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		report.Err = fmt.Errorf("encode push payload: %w", err)
		return report
	}

	for i := range subs {
		report.Endpoints = append(report.Endpoints, w.deliverOne(ctx, recipientID, &subs[i], payload))
	}
	span.SetAttributes(
		attribute.Int("push.endpoints", len(subs)),
		attribute.Int("push.delivered", report.Count(OutcomeDelivered)),
	)
	return report
}

func (w *Worker) deliverOne(ctx context.Context, recipientID string, sub *domain.PushSubscription, payload []byte) EndpointReport {
	start := time.Now()
	rep := EndpointReport{SubscriptionID: sub.ID, EndpointHost: EndpointHost(sub.Endpoint)}

	op := func() (int, error) {
		rep.Attempts++
		status, err := w.send(ctx, sub, payload)
		rep.Outcome = Classify(status, err)
		switch rep.Outcome {
		case OutcomeDelivered:
			return status, nil
		case OutcomeTransient:
			return status, attemptErr(rep.Outcome, status, err)
		default:
			return status, backoff.Permanent(attemptErr(rep.Outcome, status, err))
		}
	}

	if w.MaxRetries > 0 {
		b := backoff.NewExponentialBackOff()
		if w.RetryBase > 0 {
			b.InitialInterval = w.RetryBase
		}
		rep.Status, rep.Err = backoff.Retry(ctx, op,
			backoff.WithBackOff(b),
			backoff.WithMaxTries(uint(w.MaxRetries)+1),
			backoff.WithNotify(func(err error, next time.Duration) {
				w.Log.Debug().Err(err).
					Str("subscription_id", sub.ID).
					Dur("retry_in", next).
					Msg("retrying push delivery")
			}),
		)
	} else {
		rep.Status, rep.Err = op()
	}

	if rep.Outcome == OutcomePruned {
		if err := w.Store.Invalidate(ctx, sub.ID); err != nil && !IsNotFound(err) {
			rep.Err = fmt.Errorf("%w; invalidate: %v", rep.Err, err)
		}
	}

	deliveries.WithLabelValues(string(rep.Outcome)).Inc()
	deliveryLat.Observe(time.Since(start).Seconds())

	ev := w.Log.Info()
	if rep.Outcome != OutcomeDelivered {
		ev = w.Log.Warn().Err(rep.Err)
	}
	ev.Str("recipient_id", recipientID).
		Str("subscription_id", sub.ID).
		Str("endpoint_host", rep.EndpointHost).
		Int("status", rep.Status).
		Int("attempts", rep.Attempts).
		Str("outcome", string(rep.Outcome)).
		Msg("push delivery")
	return rep
}

func (w *Worker) send(ctx context.Context, sub *domain.PushSubscription, payload []byte) (int, error) {
	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return w.Transport.Send(cctx, sub, payload)
}

// attemptErr wraps a failed attempt in the sentinel for its outcome.
func attemptErr(o Outcome, status int, cause error) error {
	if cause != nil {
		return fmt.Errorf("%w: %w", outcomeErr(o), cause)
	}
	return fmt.Errorf("%w: status %d", outcomeErr(o), status)
}
