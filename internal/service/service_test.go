package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

var (
	admin     = domain.Identity{ID: "admin-1", Name: "Ada", Email: "admin@example.com", Role: domain.RoleAdmin}
	agentOne  = domain.Identity{ID: "agent-1", Name: "Ann", Email: "ann@example.com", Role: domain.RoleAgent}
	agentTwo  = domain.Identity{ID: "agent-2", Name: "Bob", Email: "bob@example.com", Role: domain.RoleAgent}
	submitter = domain.Identity{ID: "user-1", Name: "Uma", Email: "uma@example.com", Role: domain.RoleUser}
	stranger  = domain.Identity{ID: "user-2", Name: "Sam", Email: "sam@example.com", Role: domain.RoleUser}
)

type publishedEvent struct {
	to    string
	event events.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) Broadcast(_ context.Context, ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{to: events.GlobalTopic, event: ev})
}

func (p *recordingPublisher) PublishTo(_ context.Context, email string, ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{to: events.UserTopic(email), event: ev})
}

func (p *recordingPublisher) kinds(topic string) []events.EventKind {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.EventKind
	for _, e := range p.events {
		if e.to == topic {
			out = append(out, e.event.Kind)
		}
	}
	return out
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store       *memory.Store
	clock       *fakeClock
	publisher   *recordingPublisher
	notifier    *NotificationService
	tickets     *TicketService
	assignments *AssignmentService
	archive     *ArchiveService
	workload    *WorkloadIndex
}

func newTestEnv(t *testing.T, optimistic bool) *testEnv {
	t.Helper()
	store := memory.NewStore()
	for _, identity := range []domain.Identity{admin, agentOne, agentTwo, submitter, stranger} {
		identity := identity
		require.NoError(t, store.Identities().Upsert(context.Background(), &identity))
	}
	clock := &fakeClock{now: time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)}
	publisher := &recordingPublisher{}
	notifier := NewNotificationService(NotificationDependencies{
		NotificationRepo: store.Notifications(),
		Publisher:        publisher,
		Config:           config.NotificationConfig{TTLHours: 168, ListLimit: 20},
		Clock:            clock.Now,
	})
	workload := NewWorkloadIndex(store.Tickets(), store.Identities(), clock.Now)
	return &testEnv{
		store:     store,
		clock:     clock,
		publisher: publisher,
		notifier:  notifier,
		workload:  workload,
		tickets: NewTicketService(TicketDependencies{
			TicketRepo:        store.Tickets(),
			IdentityRepo:      store.Identities(),
			Notifier:          notifier,
			Publisher:         publisher,
			Policy:            sla.DefaultPolicy(),
			OptimisticLocking: optimistic,
			Clock:             clock.Now,
		}),
		assignments: NewAssignmentService(AssignmentDependencies{
			TicketRepo:        store.Tickets(),
			IdentityRepo:      store.Identities(),
			Workload:          workload,
			Notifier:          notifier,
			Publisher:         publisher,
			OptimisticLocking: optimistic,
			Clock:             clock.Now,
		}),
		archive: NewArchiveService(ArchiveDependencies{
			TicketRepo:  store.Tickets(),
			ArchiveRepo: store.Archive(),
			Publisher:   publisher,
			Clock:       clock.Now,
		}),
	}
}

func (e *testEnv) createTicket(t *testing.T, title string, priority domain.TicketPriority, category string) *domain.Ticket {
	t.Helper()
	ticket, err := e.tickets.CreateTicket(context.Background(), submitter, TicketCreateInput{
		Title:       title,
		Description: "details for " + title,
		Classification: domain.Classification{
			Category:           category,
			Priority:           priority,
			CategoryConfidence: 0.9,
			PriorityConfidence: 0.8,
		},
	})
	require.NoError(t, err)
	return ticket
}

func (e *testEnv) notificationTypes(t *testing.T, who domain.Identity) []domain.NotificationType {
	t.Helper()
	items, err := e.notifier.List(context.Background(), who, 100)
	require.NoError(t, err)
	out := make([]domain.NotificationType, 0, len(items))
	for _, n := range items {
		out = append(out, n.Type)
	}
	return out
}

func strPtr(s string) *string { return &s }
