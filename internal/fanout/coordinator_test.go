package fanout

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbourn/group-chat-backend/internal/config"
	"github.com/tbourn/group-chat-backend/internal/domain"
	"github.com/tbourn/group-chat-backend/internal/push"
	"github.com/tbourn/group-chat-backend/internal/queue"
	"github.com/tbourn/group-chat-backend/internal/repo"
)

type pushCall struct {
	recipient string
	msg       push.Message
}

type fakePusher struct {
	mu      sync.Mutex
	calls   []pushCall
	panicOn map[string]bool
}

func (f *fakePusher) Deliver(_ context.Context, recipientID string, msg push.Message) push.DeliveryReport {
	if f.panicOn[recipientID] {
		panic("transport exploded")
	}
	f.mu.Lock()
	f.calls = append(f.calls, pushCall{recipient: recipientID, msg: msg})
	f.mu.Unlock()
	return push.DeliveryReport{RecipientID: recipientID}
}

func (f *fakePusher) recipients() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.calls))
	for _, c := range f.calls {
		out = append(out, c.recipient)
	}
	sort.Strings(out)
	return out
}

type recordingSignaler struct {
	mu     sync.Mutex
	unread map[string]int64
}

func (s *recordingSignaler) NotificationCreated(_ context.Context, n *domain.Notification, unread int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unread == nil {
		s.unread = map[string]int64{}
	}
	s.unread[n.UserID] = unread
}

// endpointTransport answers each send with the status configured for the
// subscription's endpoint and records which endpoints were hit.
type endpointTransport struct {
	mu     sync.Mutex
	status map[string]int
	hits   []string
}

func (e *endpointTransport) Send(_ context.Context, sub *domain.PushSubscription, _ []byte) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.hits = append(e.hits, sub.Endpoint)
	if st, ok := e.status[sub.Endpoint]; ok {
		return st, nil
	}
	return 201, nil
}

func TestOnMessageCreated_EndToEnd(t *testing.T) {
	db := newFanoutDB(t)
	ctx := context.Background()
	msg := seedChat(t, db, "a", "a", "b", "d")
	for id, name := range map[string]string{"a": "A", "b": "B", "d": "D"} {
		require.NoError(t, repo.UpsertUser(ctx, db, id, name))
	}

	reg := push.NewRegistry(db, zerolog.Nop())
	for _, s := range []struct{ user, endpoint string }{
		{"b", "https://push.example.com/b1"},
		{"d", "https://push.example.com/d1"},
		{"d", "https://push.example.com/d-gone"},
	} {
		_, err := reg.Upsert(ctx, s.user, push.SubscriptionInput{Endpoint: s.endpoint, PublicKey: "p", AuthSecret: "x"})
		require.NoError(t, err)
	}
	tr := &endpointTransport{status: map[string]int{"https://push.example.com/d-gone": 410}}
	worker := push.NewWorker(reg, tr, config.PushConfig{}, zerolog.Nop())
	sig := &recordingSignaler{}

	c := NewCoordinator(db, worker, sig, 4, zerolog.Nop())
	rep := c.OnMessageCreated(ctx, msg)

	require.NoError(t, rep.Err)
	require.Len(t, rep.Recipients, 2)
	assert.Zero(t, rep.Failed())
	for _, rr := range rep.Recipients {
		assert.True(t, rr.Created)
		assert.Equal(t, StateDeliveryAttempted, rr.State)
		require.NotNil(t, rr.Delivery)
	}
	assert.Equal(t, "b", rep.Recipients[0].RecipientID)
	assert.Equal(t, 1, rep.Recipients[0].Delivery.Count(push.OutcomeDelivered))
	assert.Equal(t, "d", rep.Recipients[1].RecipientID)
	assert.Equal(t, 1, rep.Recipients[1].Delivery.Count(push.OutcomeDelivered))
	assert.Equal(t, 1, rep.Recipients[1].Delivery.Count(push.OutcomePruned))

	var notes []domain.Notification
	require.NoError(t, db.Where("message_id = ?", msg.ID).Order("user_id").Find(&notes).Error)
	require.Len(t, notes, 2)
	for i, want := range []string{"b", "d"} {
		assert.Equal(t, want, notes[i].UserID)
		assert.Equal(t, "New message from A", notes[i].Title)
		assert.Equal(t, "hello", notes[i].Body)
		assert.False(t, notes[i].IsRead())
	}

	assert.Len(t, tr.hits, 3)
	subs, err := reg.ListForUser(ctx, "d")
	require.NoError(t, err)
	require.Len(t, subs, 1, "gone endpoint is pruned")
	assert.Equal(t, "https://push.example.com/d1", subs[0].Endpoint)

	assert.Equal(t, map[string]int64{"b": 1, "d": 1}, sig.unread)
}

func TestOnMessageCreated_TwiceCreatesNoDuplicates(t *testing.T) {
	db := newFanoutDB(t)
	msg := seedChat(t, db, "a", "a", "b", "c", "d")
	p := &fakePusher{}
	sig := &recordingSignaler{}
	c := NewCoordinator(db, p, sig, 2, zerolog.Nop())

	first := c.OnMessageCreated(context.Background(), msg)
	second := c.OnMessageCreated(context.Background(), msg)

	assert.Equal(t, int64(3), countNotifications(t, db, msg.ID))
	for i := range second.Recipients {
		assert.False(t, second.Recipients[i].Created)
		assert.Equal(t, first.Recipients[i].NotificationID, second.Recipients[i].NotificationID)
	}
	// Push is at-least-once: the replay re-attempts delivery.
	assert.Equal(t, []string{"b", "b", "c", "c", "d", "d"}, p.recipients())
	assert.Len(t, sig.unread, 3)
}

func TestOnMessageCreated_RecipientFailureIsIsolated(t *testing.T) {
	db := newFanoutDB(t)
	msg := seedChat(t, db, "a", "a", "b", "c", "d")
	p := &fakePusher{panicOn: map[string]bool{"c": true}}
	c := NewCoordinator(db, p, nil, 1, zerolog.Nop())

	var rep Report
	require.NotPanics(t, func() { rep = c.OnMessageCreated(context.Background(), msg) })

	assert.Equal(t, 1, rep.Failed())
	byID := map[string]RecipientResult{}
	for _, rr := range rep.Recipients {
		byID[rr.RecipientID] = rr
	}
	assert.Error(t, byID["c"].Err)
	assert.Equal(t, StateNotificationCreated, byID["c"].State)
	assert.NoError(t, byID["b"].Err)
	assert.NoError(t, byID["d"].Err)
	assert.Equal(t, []string{"b", "d"}, p.recipients())
	assert.Equal(t, int64(3), countNotifications(t, db, msg.ID))
}

func TestOnMessageCreated_NoRecipients(t *testing.T) {
	db := newFanoutDB(t)
	msg := seedChat(t, db, "a", "a")
	p := &fakePusher{}
	c := NewCoordinator(db, p, nil, 0, zerolog.Nop())

	rep := c.OnMessageCreated(context.Background(), msg)
	assert.NoError(t, rep.Err)
	assert.Empty(t, rep.Recipients)
	assert.Zero(t, countNotifications(t, db, msg.ID))
	assert.Empty(t, p.recipients())
}

func TestOnMessageCreated_WithoutPusher(t *testing.T) {
	db := newFanoutDB(t)
	msg := seedChat(t, db, "a", "a", "b")
	c := NewCoordinator(db, nil, nil, 0, zerolog.Nop())

	rep := c.OnMessageCreated(context.Background(), msg)
	require.Len(t, rep.Recipients, 1)
	assert.Equal(t, StateNotificationCreated, rep.Recipients[0].State)
	assert.Nil(t, rep.Recipients[0].Delivery)
	assert.Equal(t, int64(1), countNotifications(t, db, msg.ID))
}

func TestOnMessageCreated_IntegrityErrorCreatesNothing(t *testing.T) {
	db := newFanoutDB(t)
	p := &fakePusher{}
	c := NewCoordinator(db, p, nil, 0, zerolog.Nop())

	rep := c.OnMessageCreated(context.Background(), &domain.Message{ID: "m1", ChatRoomID: "gone", UserID: "a"})
	assert.True(t, IsDataIntegrity(rep.Err))
	assert.Zero(t, countNotifications(t, db, "m1"))
	assert.Empty(t, p.recipients())
}

func TestPushMessage_CarriesNotificationAndChat(t *testing.T) {
	db := newFanoutDB(t)
	msg := seedChat(t, db, "a", "a", "b")
	p := &fakePusher{}
	c := NewCoordinator(db, p, nil, 0, zerolog.Nop())
	c.Icon = "/icon.png"

	rep := c.OnMessageCreated(context.Background(), msg)
	require.Len(t, p.calls, 1)
	got := p.calls[0].msg
	assert.Equal(t, "/icon.png", got.Icon)
	assert.Equal(t, "chat-"+msg.ChatRoomID, got.Tag)
	assert.Equal(t, rep.Recipients[0].NotificationID, got.Data["notification_id"])
	assert.Equal(t, msg.ID, got.Data["message_id"])
}

func TestHandleJob(t *testing.T) {
	db := newFanoutDB(t)
	msg := seedChat(t, db, "a", "a", "b")
	c := NewCoordinator(db, nil, nil, 0, zerolog.Nop())

	require.NoError(t, c.HandleJob(context.Background(), queue.Job{ID: "j1", MessageID: msg.ID}))
	assert.Equal(t, int64(1), countNotifications(t, db, msg.ID))

	assert.NoError(t, c.HandleJob(context.Background(), queue.Job{ID: "j2", MessageID: "missing"}),
		"a vanished message is not retried")
}

func TestHandleJob_InfrastructureErrorIsReturned(t *testing.T) {
	db := newFanoutDB(t)
	c := NewCoordinator(db, nil, nil, 0, zerolog.Nop())
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	err = c.HandleJob(context.Background(), queue.Job{ID: "j1", MessageID: "m1"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrMissingReference))
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "pending", StatePending.String())
	assert.Equal(t, "notification_created", StateNotificationCreated.String())
	assert.Equal(t, "delivery_attempted", StateDeliveryAttempted.String())
}
