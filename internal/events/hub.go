package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// Publisher is the fanout surface services depend on.
type Publisher interface {
	// Broadcast delivers to every subscriber on the global topic.
	Broadcast(ctx context.Context, event Event)
	// PublishTo delivers only to subscribers of email's topic.
	PublishTo(ctx context.Context, email string, event Event)
}

// FanoutRecorder counts delivery outcomes.
type FanoutRecorder interface {
	RecordFanout(kind string, delivered, dropped int)
}

// Subscription is one connected subscriber. Events is closed on Unsubscribe.
type Subscription struct {
	ID       string
	Identity domain.Identity
	Events   <-chan Event

	ch chan Event
}

// Topic returns the identity-scoped topic name.
func (s *Subscription) Topic() string {
	return UserTopic(s.Identity.Email)
}

// UserTopic names the topic scoped to a single identity.
func UserTopic(email string) string {
	return "user:" + email
}

// GlobalTopic carries broadcasts.
const GlobalTopic = "global"

// Hub fans events out to subscribers. Sends never block: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]*Subscription

	presence   *Registry
	dispatcher Dispatcher
	recorder   FanoutRecorder
	buffer     int
	logger     *zap.Logger
	nowFn      func() time.Time
}

// HubOption customises a Hub.
type HubOption func(*Hub)

// WithDispatcher attaches listeners that observe every broadcast.
func WithDispatcher(d Dispatcher) HubOption {
	return func(h *Hub) { h.dispatcher = d }
}

// WithRecorder attaches delivery counters.
func WithRecorder(r FanoutRecorder) HubOption {
	return func(h *Hub) { h.recorder = r }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) HubOption {
	return func(h *Hub) { h.nowFn = now }
}

// NewHub builds a hub over presence.
func NewHub(presence *Registry, buffer int, logger *zap.Logger, opts ...HubOption) *Hub {
	if buffer <= 0 {
		buffer = 32
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if presence == nil {
		presence = NewRegistry()
	}
	h := &Hub{
		subscribers: make(map[string]*Subscription),
		presence:    presence,
		buffer:      buffer,
		logger:      logger,
		nowFn:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Presence exposes the registry for read-only queries.
func (h *Hub) Presence() *Registry {
	return h.presence
}

// Subscribe registers identity, joins its topics and broadcasts fresh online counts.
func (h *Hub) Subscribe(ctx context.Context, identity domain.Identity) *Subscription {
	ch := make(chan Event, h.buffer)
	sub := &Subscription{
		ID:       uuid.NewString(),
		Identity: identity,
		Events:   ch,
		ch:       ch,
	}

	h.mu.Lock()
	h.subscribers[sub.ID] = sub
	h.mu.Unlock()
	h.presence.Connect(sub.ID, identity)

	h.logger.Debug("subscriber connected",
		zap.String("subscription_id", sub.ID),
		zap.String("email", identity.Email),
		zap.String("role", string(identity.Role)),
	)
	h.broadcastOnlineCounts(ctx)
	return sub
}

// Unsubscribe removes sub, closes its channel and broadcasts fresh online counts.
func (h *Hub) Unsubscribe(ctx context.Context, sub *Subscription) {
	if sub == nil {
		return
	}
	h.mu.Lock()
	_, ok := h.subscribers[sub.ID]
	if ok {
		delete(h.subscribers, sub.ID)
		close(sub.ch)
	}
	h.mu.Unlock()
	if !ok {
		return
	}
	h.presence.Disconnect(sub.ID)

	h.logger.Debug("subscriber disconnected", zap.String("subscription_id", sub.ID))
	h.broadcastOnlineCounts(ctx)
}

// Broadcast delivers on the global topic, then runs dispatcher listeners.
func (h *Hub) Broadcast(ctx context.Context, event Event) {
	h.deliver(GlobalTopic, event, func(*Subscription) bool { return true })
	if h.dispatcher != nil {
		h.dispatcher.Dispatch(ctx, event)
	}
}

// PublishTo delivers to every connection of email.
func (h *Hub) PublishTo(_ context.Context, email string, event Event) {
	h.deliver(UserTopic(email), event, func(s *Subscription) bool { return s.Identity.Email == email })
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

func (h *Hub) deliver(topic string, event Event, match func(*Subscription) bool) {
	delivered, dropped := 0, 0

	h.mu.RLock()
	for _, sub := range h.subscribers {
		if !match(sub) {
			continue
		}
		select {
		case sub.ch <- event:
			delivered++
		default:
			dropped++
			h.logger.Warn("subscriber buffer full; event dropped",
				zap.String("topic", topic),
				zap.String("subscription_id", sub.ID),
				zap.String("kind", string(event.Kind)),
			)
		}
	}
	h.mu.RUnlock()

	if h.recorder != nil {
		h.recorder.RecordFanout(string(event.Kind), delivered, dropped)
	}
}

func (h *Hub) broadcastOnlineCounts(ctx context.Context) {
	payload := OnlineCountsPayload{AgentsOnline: h.presence.Count(domain.RoleAgent)}
	h.Broadcast(ctx, NewEvent(EventUpdateOnlineCounts, "", "", payload, h.nowFn()))
}
