package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// Clock returns the current instant. Tests inject a fixed clock.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }

func clockOrDefault(c Clock) Clock {
	if c == nil {
		return systemClock
	}
	return c
}

func loggerOrNop(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func mapRepoError(err error, resource string, id string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		return apperrors.NewNotFound(resource, map[string]any{"id": id})
	case errors.Is(err, repository.ErrVersionConflict):
		return apperrors.NewConflict(resource+" was modified concurrently; re-fetch and retry", map[string]any{"id": id})
	case errors.Is(err, repository.ErrConflict):
		return apperrors.NewConflict(resource+" already exists", map[string]any{"id": id})
	default:
		return apperrors.MapError(err)
	}
}

// ticketWriter applies the configured write policy: last-write-wins by
// default, compare-and-set on version when optimistic locking is enabled.
type ticketWriter struct {
	tickets    repository.TicketRepository
	optimistic bool
}

func (w ticketWriter) save(ctx context.Context, ticket *domain.Ticket, readVersion int64) error {
	var err error
	if w.optimistic {
		err = w.tickets.CompareAndUpdate(ctx, ticket, readVersion)
	} else {
		err = w.tickets.Update(ctx, ticket)
	}
	return mapRepoError(err, "ticket", ticket.ID)
}

// checkExpectedVersion rejects a caller-supplied stale version up front.
func (w ticketWriter) checkExpectedVersion(ticket *domain.Ticket, expected *int64) error {
	if !w.optimistic || expected == nil || *expected == ticket.Version {
		return nil
	}
	return apperrors.NewConflict("ticket version is stale", map[string]any{
		"id":       ticket.ID,
		"expected": *expected,
		"current":  ticket.Version,
	})
}

func resolveAgent(ctx context.Context, identities repository.IdentityRepository, email string) (*domain.Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperrors.NewInvalidRequest("agent_email required", nil)
	}
	agent, err := identities.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperrors.NewInvalidAgent(email)
		}
		return nil, apperrors.MapError(err)
	}
	if !agent.Role.IsStaff() {
		return nil, apperrors.NewInvalidAgent(email)
	}
	return agent, nil
}

// requireStaff and requireAdmin reject callers whose role lacks the privilege.
// Both report FORBIDDEN; UNAUTHORIZED is left to the auth middleware.
func requireStaff(actor domain.Identity, action string) error {
	if !actor.Role.IsStaff() {
		return apperrors.NewForbidden("agent or admin role required to " + action)
	}
	return nil
}

func requireAdmin(actor domain.Identity, action string) error {
	if actor.Role != domain.RoleAdmin {
		return apperrors.NewForbidden("admin role required to " + action)
	}
	return nil
}

// announcer pushes the side effects of a committed mutation. Nothing here
// returns an error: delivery is best-effort once the store write succeeded.
type announcer struct {
	notifier  *NotificationService
	publisher events.Publisher
	logger    *zap.Logger
	nowFn     Clock
}

func (a announcer) broadcast(ctx context.Context, kind events.EventKind, ticket domain.Ticket, payload any) {
	if a.publisher == nil {
		return
	}
	a.publisher.Broadcast(ctx, events.TicketEvent(kind, ticket, payload, a.nowFn()))
}

func (a announcer) notify(ctx context.Context, recipient, title, message string, data domain.NotificationData, priority domain.TicketPriority) {
	if a.notifier == nil {
		return
	}
	a.notifier.Notify(ctx, recipient, title, message, data, priority)
}

func (a announcer) ticketChanged(ctx context.Context, kind events.EventKind, ticket domain.Ticket, oldStatus domain.TicketStatus) {
	a.broadcast(ctx, kind, ticket, events.TicketChangedPayload{
		Title:      ticket.Title,
		Status:     ticket.Status,
		OldStatus:  oldStatus,
		Priority:   ticket.Classification.Priority,
		Category:   ticket.Classification.Category,
		AssignedTo: ticket.AssignedTo,
		Version:    ticket.Version,
	})
}

// assignment emits the submitter, new-assignee and previous-assignee
// notifications plus the global reassignment event.
func (a announcer) assignment(ctx context.Context, ticket domain.Ticket, previous *string, actor domain.Identity) {
	if ticket.AssignedTo == nil {
		return
	}
	assignee := *ticket.AssignedTo
	priority := ticket.Classification.Priority
	var assignedAt time.Time
	if ticket.AssignedAt != nil {
		assignedAt = *ticket.AssignedAt
	}

	a.notify(ctx, ticket.SubmitterEmail,
		"Ticket assigned",
		"Your ticket \""+ticket.Title+"\" has been assigned to "+assignee,
		domain.AssignedData{
			TicketID:   ticket.ID,
			Title:      ticket.Title,
			AssignedTo: assignee,
			AssignedBy: actor.Email,
			AssignedAt: assignedAt,
		}, priority)

	a.notify(ctx, assignee,
		"New ticket assigned",
		"You have been assigned \""+ticket.Title+"\"",
		domain.TicketAssignedData{
			TicketID:   ticket.ID,
			Title:      ticket.Title,
			Priority:   priority,
			AssignedBy: actor.Email,
		}, priority)

	if previous != nil && *previous != assignee {
		a.notify(ctx, *previous,
			"Ticket reassigned",
			"\""+ticket.Title+"\" has been reassigned to "+assignee,
			domain.TicketUnassignedData{
				TicketID:     ticket.ID,
				Title:        ticket.Title,
				ReassignedTo: assignee,
				ReassignedBy: actor.Email,
			}, priority)
	}

	a.broadcast(ctx, events.EventTicketReassigned, ticket, events.TicketReassignedPayload{
		From: previous,
		To:   assignee,
		By:   actor.Email,
	})
}
