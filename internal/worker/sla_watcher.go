package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/service"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

// BreachRecorder counts raised breach alerts.
type BreachRecorder interface {
	RecordSLABreach()
}

// SLAWatcher periodically scans active critical tickets and alerts assignees
// about breaching ones. Each ticket alerts its assignee at most once.
type SLAWatcher struct {
	tickets   repository.TicketRepository
	notifier  *service.NotificationService
	publisher events.Publisher
	policy    sla.Policy
	recorder  BreachRecorder
	interval  time.Duration
	logger    *zap.Logger
	nowFn     func() time.Time
}

// SLAWatcherDependencies bundles collaborators for the watcher.
type SLAWatcherDependencies struct {
	TicketRepo repository.TicketRepository
	Notifier   *service.NotificationService
	Publisher  events.Publisher
	Policy     sla.Policy
	Recorder   BreachRecorder
	Interval   time.Duration
	Logger     *zap.Logger
	Clock      func() time.Time
}

// NewSLAWatcher builds the watcher.
func NewSLAWatcher(deps SLAWatcherDependencies) *SLAWatcher {
	w := &SLAWatcher{
		tickets:   deps.TicketRepo,
		notifier:  deps.Notifier,
		publisher: deps.Publisher,
		policy:    deps.Policy,
		recorder:  deps.Recorder,
		interval:  deps.Interval,
		logger:    deps.Logger,
		nowFn:     deps.Clock,
	}
	if len(w.policy.Allotments) == 0 {
		w.policy = sla.DefaultPolicy()
	}
	if w.logger == nil {
		w.logger = zap.NewNop()
	}
	if w.nowFn == nil {
		w.nowFn = func() time.Time { return time.Now().UTC() }
	}
	return w
}

// Run scans on every tick until ctx is cancelled. A non-positive interval
// disables the watcher.
func (w *SLAWatcher) Run(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("sla watcher disabled")
		return
	}
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.logger.Info("sla watcher started", zap.Duration("interval", w.interval))
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sla watcher stopped")
			return
		case <-ticker.C:
			if _, err := w.Scan(ctx); err != nil {
				w.logger.Error("sla scan failed", zap.Error(err))
			}
		}
	}
}

// Scan runs one pass and returns the number of alerts raised.
func (w *SLAWatcher) Scan(ctx context.Context) (int, error) {
	tickets, err := w.tickets.List(ctx, repository.TicketFilter{
		Statuses:   []domain.TicketStatus{domain.TicketStatusOpen, domain.TicketStatusInProgress},
		Priorities: []domain.TicketPriority{domain.TicketPriorityCritical},
	})
	if err != nil {
		return 0, err
	}

	now := w.nowFn()
	raised := 0
	for _, ticket := range tickets {
		if ctx.Err() != nil {
			return raised, ctx.Err()
		}
		if ticket.AssignedTo == nil {
			continue
		}
		status := w.policy.ForTicket(ticket, now)
		if !status.IsBreaching {
			continue
		}
		assignee := *ticket.AssignedTo
		seen, err := w.notifier.HasNotified(ctx, assignee, domain.NotificationSLABreach, ticket.ID)
		if err != nil {
			w.logger.Warn("sla dedupe lookup failed", zap.String("ticket_id", ticket.ID), zap.Error(err))
			continue
		}
		if seen {
			continue
		}

		// Without a stored alert the next tick cannot dedupe, so hold the broadcast until one persists.
		alert := w.notifier.Notify(ctx, assignee,
			"SLA breach imminent",
			"Critical ticket \""+ticket.Title+"\" is about to exceed its SLA",
			domain.SLABreachData{
				TicketID:  ticket.ID,
				Title:     ticket.Title,
				Priority:  ticket.Classification.Priority,
				HoursLeft: status.HoursLeft,
			}, ticket.Classification.Priority)
		if alert == nil {
			continue
		}
		if w.publisher != nil {
			w.publisher.Broadcast(ctx, events.TicketEvent(events.EventSLABreach, ticket, events.SLABreachPayload{
				AssignedTo: assignee,
				HoursLeft:  status.HoursLeft,
			}, now))
		}
		if w.recorder != nil {
			w.recorder.RecordSLABreach()
		}
		w.logger.Warn("sla breach",
			zap.String("ticket_id", ticket.ID),
			zap.String("assignee", assignee),
			zap.Float64("hours_left", status.HoursLeft),
		)
		raised++
	}
	return raised, nil
}
