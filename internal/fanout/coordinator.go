package fanout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/push"
	"github.com/tbourn/group-chat-backend/internal/queue"
	"github.com/tbourn/group-chat-backend/internal/realtime"
	"github.com/tbourn/group-chat-backend/internal/repo"
)

// Pusher delivers a notification to a recipient's push endpoints.
type Pusher interface {
	Deliver(ctx context.Context, recipientID string, msg push.Message) push.DeliveryReport
}

// State is how far a recipient got through the fan-out.
type State int

const (
	StatePending State = iota
	StateNotificationCreated
	StateDeliveryAttempted
)

func (s State) String() string {
	switch s {
	case StateNotificationCreated:
		return "notification_created"
	case StateDeliveryAttempted:
		return "delivery_attempted"
	default:
		return "pending"
	}
}

// RecipientResult is the outcome for one recipient.
type RecipientResult struct {
	RecipientID    string
	NotificationID string
	// Created is false when the notification already existed.
	Created  bool
	State    State
	Delivery *push.DeliveryReport
	Err      error
}

// Report summarizes one fan-out.
type Report struct {
	MessageID  string
	Recipients []RecipientResult
	// Err is set when the fan-out could not start (e.g. a DataIntegrityError).
	Err error
}

// Failed returns how many recipients ended with an error.
func (r Report) Failed() int {
	n := 0
	for _, rr := range r.Recipients {
		if rr.Err != nil {
			n++
		}
	}
	return n
}

// Coordinator runs the fan-out for newly created messages.
type Coordinator struct {
	DB       *gorm.DB
	Resolver *Resolver
	Store    *Store
	// Push is optional; without it only in-app notifications are created.
	Push   Pusher
	Signal realtime.Signaler
	Log    zerolog.Logger

	// Concurrency caps how many recipients are processed at once.
	Concurrency int
	// Icon is the optional icon URL put into push payloads.
	Icon string
}

// NewCoordinator wires a Coordinator over db. pusher and sig may be nil.
func NewCoordinator(db *gorm.DB, pusher Pusher, sig realtime.Signaler, concurrency int, log zerolog.Logger) *Coordinator {
	if sig == nil {
		sig = realtime.Noop{}
	}
	return &Coordinator{
		DB:          db,
		Resolver:    NewResolver(db),
		Store:       NewStore(db),
		Push:        pusher,
		Signal:      sig,
		Log:         log.With().Str("component", "fanout").Logger(),
		Concurrency: concurrency,
	}
}

// HandleJob is the queue.Handler entry point. It loads the message and runs
// OnMessageCreated. Only infrastructure failures are returned, so the queue
// may retry; integrity problems are logged and dropped.
func (c *Coordinator) HandleJob(ctx context.Context, job queue.Job) error {
	msg, err := repo.GetMessage(ctx, c.DB, job.MessageID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.reportIntegrity(&DataIntegrityError{MessageID: job.MessageID, Field: "message", Err: ErrMissingReference})
		return nil
	}
	if err != nil {
		return fmt.Errorf("load message %s: %w", job.MessageID, err)
	}

	rep := c.OnMessageCreated(ctx, msg)
	if rep.Err != nil && !IsDataIntegrity(rep.Err) {
		return rep.Err
	}
	return nil
}

// OnMessageCreated notifies every member of msg's room except its author.
// It never panics and never fails the caller; problems end up in the
// returned Report and in the logs.
func (c *Coordinator) OnMessageCreated(ctx context.Context, msg *domain.Message) Report {
	start := time.Now()
	ctx, span := otel.Tracer("fanout/Coordinator").Start(ctx, "OnMessageCreated",
		trace.WithAttributes(
			attribute.String("message.id", msg.ID),
			attribute.String("chat.id", msg.ChatRoomID),
		),
	)
	defer span.End()
	defer func() { fanoutLat.Observe(time.Since(start).Seconds()) }()

	report := Report{MessageID: msg.ID}
	log := c.Log.With().Str("message_id", msg.ID).Str("chat_id", msg.ChatRoomID).Logger()

	res, err := c.Resolver.ResolveRecipients(ctx, msg)
	if err != nil {
		report.Err = err
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve recipients")
		var die *DataIntegrityError
		if errors.As(err, &die) {
			c.reportIntegrity(die)
		} else {
			fanoutJobs.WithLabelValues("error").Inc()
			log.Error().Err(err).Msg("resolve recipients")
		}
		return report
	}
	span.SetAttributes(attribute.Int("fanout.recipients", len(res.Recipients)))
	if len(res.Recipients) == 0 {
		fanoutJobs.WithLabelValues("ok").Inc()
		log.Debug().Msg("no recipients")
		return report
	}

	rendered := Render(res.Room, res.Author, msg)
	report.Recipients = make([]RecipientResult, len(res.Recipients))

	var g errgroup.Group
	g.SetLimit(c.limit())
	for i, rid := range res.Recipients {
		g.Go(func() error {
			report.Recipients[i] = c.processRecipient(ctx, log, rid, msg, rendered)
			return nil
		})
	}
	_ = g.Wait()

	failed := report.Failed()
	result := "ok"
	if failed > 0 {
		result = "partial"
	}
	fanoutJobs.WithLabelValues(result).Inc()
	log.Info().
		Int("recipients", len(res.Recipients)).
		Int("failed", failed).
		Dur("took", time.Since(start)).
		Msg("fan-out finished")
	return report
}

// processRecipient runs Pending -> NotificationCreated -> DeliveryAttempted
// for one recipient. Errors and panics stay inside the returned result.
func (c *Coordinator) processRecipient(ctx context.Context, log zerolog.Logger, recipientID string, msg *domain.Message, r Rendered) (out RecipientResult) {
	out = RecipientResult{RecipientID: recipientID, State: StatePending}
	defer func() {
		if p := recover(); p != nil {
			out.Err = fmt.Errorf("recipient panic: %v", p)
		}
		if out.Err != nil {
			log.Error().Err(out.Err).
				Str("recipient_id", recipientID).
				Str("state", out.State.String()).
				Msg("recipient fan-out failed")
		}
	}()

	n, created, err := c.Store.CreateNotification(ctx, recipientID, msg, r)
	if err != nil {
		out.Err = fmt.Errorf("create notification: %w", err)
		return out
	}
	out.NotificationID, out.Created, out.State = n.ID, created, StateNotificationCreated

	if created && c.Signal != nil {
		unread, err := repo.CountNotifications(ctx, c.DB, recipientID, true)
		if err != nil {
			log.Warn().Err(err).Str("recipient_id", recipientID).Msg("count unread")
		}
		c.Signal.NotificationCreated(ctx, n, unread)
	}

	if c.Push == nil {
		return out
	}
	rep := c.Push.Deliver(ctx, recipientID, c.pushMessage(n, r))
	out.Delivery, out.State = &rep, StateDeliveryAttempted
	log.Debug().
		Str("recipient_id", recipientID).
		Str("notification_id", n.ID).
		Bool("created", created).
		Int("endpoints", len(rep.Endpoints)).
		Int("delivered", rep.Count(push.OutcomeDelivered)).
		Int("pruned", rep.Count(push.OutcomePruned)).
		Int("transient", rep.Count(push.OutcomeTransient)).
		Msg("push attempted")
	return out
}

func (c *Coordinator) pushMessage(n *domain.Notification, r Rendered) push.Message {
	p := r.Payload
	return push.Message{
		Title: n.Title,
		Body:  n.Body,
		Icon:  c.Icon,
		Tag:   "chat-" + p.ChatID,
		Data: map[string]any{
			"notification_id": n.ID,
			"chat_id":         p.ChatID,
			"chat_slug":       p.ChatSlug,
			"chat_title":      p.ChatTitle,
			"sender_id":       p.SenderID,
			"sender_name":     p.SenderName,
			"message_id":      p.MessageID,
			"excerpt":         p.Excerpt,
			"url":             p.URL,
		},
	}
}

func (c *Coordinator) reportIntegrity(err *DataIntegrityError) {
	fanoutJobs.WithLabelValues("integrity_error").Inc()
	c.Log.Error().Err(err).
		Str("message_id", err.MessageID).
		Str("chat_id", err.ChatID).
		Str("author_id", err.AuthorID).
		Str("missing", err.Field).
		Msg("fan-out aborted")
	sentry.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("component", "fanout")
		scope.SetTag("message_id", err.MessageID)
		scope.SetLevel(sentry.LevelError)
		sentry.CaptureException(err)
	})
}

func (c *Coordinator) limit() int {
	if c.Concurrency > 0 {
		return c.Concurrency
	}
	return 8
}
