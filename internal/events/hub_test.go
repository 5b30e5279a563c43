package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

var (
	agentA = domain.Identity{ID: "a1", Email: "a1@example.com", Role: domain.RoleAgent}
	agentB = domain.Identity{ID: "a2", Email: "a2@example.com", Role: domain.RoleAgent}
	member = domain.Identity{ID: "u1", Email: "u1@example.com", Role: domain.RoleUser}
)

func drain(sub *Subscription) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-sub.Events:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func lastOnlineCount(t *testing.T, events []Event) int {
	t.Helper()
	for i := len(events) - 1; i >= 0; i-- {
		if events[i].Kind == EventUpdateOnlineCounts {
			return events[i].Payload.(OnlineCountsPayload).AgentsOnline
		}
	}
	t.Fatalf("no online count event in %d events", len(events))
	return -1
}

func TestPresenceCountTracksConnections(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(NewRegistry(), 8, nil)

	watcher := hub.Subscribe(ctx, member)
	assert.Equal(t, 0, lastOnlineCount(t, drain(watcher)))

	first := hub.Subscribe(ctx, agentA)
	second := hub.Subscribe(ctx, agentB)
	again := hub.Subscribe(ctx, agentA)
	assert.Equal(t, 3, hub.Presence().Count(domain.RoleAgent))
	assert.Equal(t, 3, lastOnlineCount(t, drain(watcher)))

	hub.Unsubscribe(ctx, first)
	hub.Unsubscribe(ctx, first)
	assert.Equal(t, 2, hub.Presence().Count(domain.RoleAgent))
	assert.Equal(t, 2, lastOnlineCount(t, drain(watcher)))

	hub.Unsubscribe(ctx, second)
	hub.Unsubscribe(ctx, again)
	assert.Equal(t, 0, hub.Presence().Count(domain.RoleAgent))
	assert.Equal(t, 0, lastOnlineCount(t, drain(watcher)))
	assert.Len(t, hub.Presence().Snapshot(), 1)

	drain(first)
	_, open := <-first.Events
	assert.False(t, open)
}

func TestPresenceSurvivesConcurrentChurn(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(NewRegistry(), 4, nil)
	const workers = 50

	var wg sync.WaitGroup
	subs := make(chan *Subscription, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			identity := agentA
			if i%2 == 1 {
				identity = member
			}
			// Every worker flaps once before holding a connection.
			hub.Unsubscribe(ctx, hub.Subscribe(ctx, identity))
			subs <- hub.Subscribe(ctx, identity)
		}(i)
	}
	wg.Wait()
	close(subs)

	assert.Equal(t, workers, hub.SubscriberCount())
	assert.Equal(t, workers/2, hub.Presence().Count(domain.RoleAgent))
	assert.Equal(t, workers/2, hub.Presence().Count(domain.RoleUser))
	assert.Len(t, hub.Presence().Snapshot(), workers)

	held := make([]*Subscription, 0, workers)
	for sub := range subs {
		held = append(held, sub)
	}
	for _, sub := range held {
		wg.Add(1)
		go func(sub *Subscription) {
			defer wg.Done()
			hub.Unsubscribe(ctx, sub)
			hub.Unsubscribe(ctx, sub)
		}(sub)
	}
	wg.Wait()

	assert.Equal(t, 0, hub.SubscriberCount())
	assert.Equal(t, 0, hub.Presence().Count(domain.RoleAgent))
	assert.Empty(t, hub.Presence().Snapshot())
}

func TestPublishToOnlyReachesRecipient(t *testing.T) {
	ctx := context.Background()
	hub := NewHub(NewRegistry(), 8, nil)
	userSub := hub.Subscribe(ctx, member)
	agentSub := hub.Subscribe(ctx, agentA)
	drain(userSub)
	drain(agentSub)

	hub.PublishTo(ctx, member.Email, NewEvent(EventNotification, "t-1", member.Email, nil, time.Now()))

	got := drain(userSub)
	require.Len(t, got, 1)
	assert.Equal(t, EventNotification, got[0].Kind)
	assert.Empty(t, drain(agentSub))
	assert.Equal(t, "user:u1@example.com", userSub.Topic())
}

type countingRecorder struct {
	mu                 sync.Mutex
	delivered, dropped int
}

func (c *countingRecorder) RecordFanout(_ string, delivered, dropped int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.delivered += delivered
	c.dropped += dropped
}

func TestBroadcastDropsWhenBufferFull(t *testing.T) {
	ctx := context.Background()
	recorder := &countingRecorder{}
	hub := NewHub(NewRegistry(), 1, nil, WithRecorder(recorder))

	slow := hub.Subscribe(ctx, member)
	ev := NewEvent(EventTicketUpdated, "t-1", member.Email, nil, time.Now())
	hub.Broadcast(ctx, ev)
	hub.Broadcast(ctx, ev)

	assert.Len(t, drain(slow), 1)
	assert.Equal(t, 2, recorder.dropped)
}

func TestDispatcherObservesBroadcastAndSurvivesErrors(t *testing.T) {
	ctx := context.Background()
	dispatcher := NewInMemoryDispatcher(nil)
	var seen []EventKind
	dispatcher.Subscribe(EventTicketArchived, func(context.Context, Event) error {
		return errors.New("listener down")
	})
	dispatcher.SubscribeAll(func(_ context.Context, ev Event) error {
		seen = append(seen, ev.Kind)
		return nil
	})

	hub := NewHub(NewRegistry(), 4, nil, WithDispatcher(dispatcher))
	hub.Broadcast(ctx, NewEvent(EventTicketArchived, "t-1", "", nil, time.Now()))
	hub.PublishTo(ctx, member.Email, NewEvent(EventNotification, "t-1", "", nil, time.Now()))

	assert.Equal(t, []EventKind{EventTicketArchived}, seen)
}

type fakeRedis struct {
	channel string
	message []byte
	err     error
}

func (f *fakeRedis) Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	f.channel = channel
	f.message, _ = message.([]byte)
	cmd := redis.NewIntCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
	} else {
		cmd.SetVal(1)
	}
	return cmd
}

func TestRedisRelay(t *testing.T) {
	ctx := context.Background()
	client := &fakeRedis{}
	relay := NewRedisRelay(client, "helpdesk:events")

	ev := NewEvent(EventTicketCreated, "t-9", "u1@example.com", TicketChangedPayload{Title: "printer"}, time.Now())
	require.NoError(t, relay.Handle(ctx, ev))
	assert.Equal(t, "helpdesk:events", client.channel)
	assert.Contains(t, string(client.message), `"ticket_id":"t-9"`)

	client.err = errors.New("connection refused")
	assert.Error(t, relay.Handle(ctx, ev))
}
