package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	"github.com/spec-kit/helpdesk-service/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const defaultCategory = "general"

// TicketService coordinates ticket lifecycle workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	identities repository.IdentityRepository
	writer     ticketWriter
	policy     sla.Policy
	announce   announcer
	logger     *zap.Logger
	nowFn      Clock
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo        repository.TicketRepository
	IdentityRepo      repository.IdentityRepository
	Notifier          *NotificationService
	Publisher         events.Publisher
	Policy            sla.Policy
	OptimisticLocking bool
	Logger            *zap.Logger
	Clock             Clock
}

// TicketCreateInput describes ticket creation payload. Classification is
// produced by the external classifier and stored as given.
type TicketCreateInput struct {
	Title          string
	Description    string
	Classification domain.Classification
}

// TransitionInput describes a status change with an optional simultaneous assignment.
type TransitionInput struct {
	Status          domain.TicketStatus
	AssignTo        *string
	ExpectedVersion *int64
}

// TicketListFilter describes listing filters. Users are always narrowed to
// their own tickets.
type TicketListFilter struct {
	AssignedTo *string
	Category   *string
	Statuses   []domain.TicketStatus
	Priorities []domain.TicketPriority
	SearchTerm *string
	Limit      int
	Offset     int
}

// TicketSLA pairs a ticket id with its derived SLA view.
type TicketSLA struct {
	TicketID string     `json:"ticket_id"`
	Status   sla.Status `json:"sla"`
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	policy := deps.Policy
	if len(policy.Allotments) == 0 {
		policy = sla.DefaultPolicy()
	}
	logger := loggerOrNop(deps.Logger)
	nowFn := clockOrDefault(deps.Clock)
	return &TicketService{
		tickets:    deps.TicketRepo,
		identities: deps.IdentityRepo,
		writer:     ticketWriter{tickets: deps.TicketRepo, optimistic: deps.OptimisticLocking},
		policy:     policy,
		announce: announcer{
			notifier:  deps.Notifier,
			publisher: deps.Publisher,
			logger:    logger,
			nowFn:     nowFn,
		},
		logger: logger,
		nowFn:  nowFn,
	}
}

// CreateTicket persists a new open ticket for submitter.
func (s *TicketService) CreateTicket(ctx context.Context, submitter domain.Identity, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if title == "" {
		return nil, apperrors.NewInvalidRequest("title required", nil)
	}
	if description == "" {
		return nil, apperrors.NewInvalidRequest("description required", nil)
	}
	classification, err := normalizeClassification(input.Classification)
	if err != nil {
		return nil, err
	}

	now := s.nowFn()
	ticket := &domain.Ticket{
		ID:                  uuid.NewString(),
		Title:               title,
		Description:         description,
		SubmitterID:         submitter.ID,
		SubmitterEmail:      submitter.Email,
		Classification:      classification,
		Status:              domain.TicketStatusOpen,
		ReassignmentHistory: []domain.ReassignmentEntry{},
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, mapRepoError(err, "ticket", ticket.ID)
	}
	s.logger.Info("ticket created",
		zap.String("ticket_id", ticket.ID),
		zap.String("submitter", ticket.SubmitterEmail),
		zap.String("priority", string(classification.Priority)),
	)

	s.announce.notify(ctx, ticket.SubmitterEmail,
		"Ticket created",
		"Your ticket \""+ticket.Title+"\" has been received",
		domain.TicketCreatedData{
			TicketID: ticket.ID,
			Title:    ticket.Title,
			Category: classification.Category,
			Priority: classification.Priority,
		}, classification.Priority)
	s.announce.ticketChanged(ctx, events.EventTicketCreated, *ticket, "")
	return ticket, nil
}

// TransitionStatus moves a ticket through the state machine. The stored
// record is untouched when any check fails.
func (s *TicketService) TransitionStatus(ctx context.Context, ticketID string, input TransitionInput, actor domain.Identity) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	if err := authorizeTransition(*ticket, input.Status, actor); err != nil {
		return nil, err
	}
	if err := s.writer.checkExpectedVersion(ticket, input.ExpectedVersion); err != nil {
		return nil, err
	}

	var assignee *domain.Identity
	if input.AssignTo != nil && strings.TrimSpace(*input.AssignTo) != "" {
		if err := requireStaff(actor, "assign tickets"); err != nil {
			return nil, err
		}
		assignee, err = resolveAgent(ctx, s.identities, *input.AssignTo)
		if err != nil {
			return nil, err
		}
	}

	updated := ticket.Clone()
	now := s.nowFn()
	oldStatus := updated.Status
	if err := updated.Transition(input.Status, now); err != nil {
		return nil, err
	}
	previous := updated.AssignedTo
	if assignee != nil {
		updated.AssignTo(assignee.Email, actor.Email, now)
	}
	if err := s.writer.save(ctx, &updated, ticket.Version); err != nil {
		return nil, err
	}

	s.logger.Info("ticket status changed",
		zap.String("ticket_id", updated.ID),
		zap.String("from", string(oldStatus)),
		zap.String("to", string(updated.Status)),
		zap.String("actor", actor.Email),
	)
	s.announce.notify(ctx, updated.SubmitterEmail,
		"Ticket status updated",
		"Your ticket \""+updated.Title+"\" is now "+string(updated.Status),
		domain.StatusUpdatedData{
			TicketID:   updated.ID,
			OldStatus:  oldStatus,
			Status:     updated.Status,
			UpdatedBy:  actor.Email,
			AssignedTo: updated.AssignedTo,
		}, updated.Classification.Priority)
	s.announce.ticketChanged(ctx, events.EventTicketUpdated, updated, oldStatus)
	if assignee != nil {
		s.announce.assignment(ctx, updated, previous, actor)
	}
	return &updated, nil
}

// SubmitFeedback records the submitter's one-time rating.
func (s *TicketService) SubmitFeedback(ctx context.Context, ticketID string, actor domain.Identity, rating int, comment string) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	if !strings.EqualFold(ticket.SubmitterEmail, actor.Email) {
		return nil, apperrors.NewForbidden("only the submitter can rate a ticket")
	}

	updated := ticket.Clone()
	if err := updated.SubmitFeedback(rating, strings.TrimSpace(comment), s.nowFn()); err != nil {
		return nil, err
	}
	if err := s.writer.save(ctx, &updated, ticket.Version); err != nil {
		return nil, err
	}

	data := domain.FeedbackSubmittedData{
		TicketID:    updated.ID,
		TicketTitle: updated.Title,
		Rating:      rating,
		Comment:     updated.Feedback.Comment,
	}
	if updated.AssignedTo != nil {
		s.announce.notify(ctx, *updated.AssignedTo,
			"Feedback received",
			"\""+updated.Title+"\" was rated by its submitter",
			data, updated.Classification.Priority)
	}
	s.announce.broadcast(ctx, events.EventFeedbackAdded, updated, events.FeedbackPayload{Rating: rating})
	return &updated, nil
}

// GetTicket loads a live ticket visible to actor.
func (s *TicketService) GetTicket(ctx context.Context, ticketID string, actor domain.Identity) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	if !actor.Role.IsStaff() && !strings.EqualFold(ticket.SubmitterEmail, actor.Email) {
		return nil, apperrors.NewForbidden("ticket belongs to another submitter")
	}
	return ticket, nil
}

// ListTickets returns live tickets matching filter, newest first.
func (s *TicketService) ListTickets(ctx context.Context, actor domain.Identity, filter TicketListFilter) ([]domain.Ticket, error) {
	repoFilter := repository.TicketFilter{
		AssignedTo: filter.AssignedTo,
		Category:   filter.Category,
		Statuses:   filter.Statuses,
		Priorities: filter.Priorities,
		SearchTerm: filter.SearchTerm,
		Limit:      filter.Limit,
		Offset:     filter.Offset,
	}
	if !actor.Role.IsStaff() {
		email := actor.Email
		repoFilter.SubmitterEmail = &email
	}
	tickets, err := s.tickets.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// SLA computes remaining time for a visible ticket.
func (s *TicketService) SLA(ctx context.Context, ticketID string, actor domain.Identity) (*TicketSLA, error) {
	ticket, err := s.GetTicket(ctx, ticketID, actor)
	if err != nil {
		return nil, err
	}
	return &TicketSLA{TicketID: ticket.ID, Status: s.policy.ForTicket(*ticket, s.nowFn())}, nil
}

// authorizeTransition enforces who may apply which edge. Users may only
// reopen or confirm an AI resolution on their own tickets.
func authorizeTransition(ticket domain.Ticket, next domain.TicketStatus, actor domain.Identity) error {
	if actor.Role.IsStaff() {
		return nil
	}
	if actor.Role != domain.RoleUser {
		return apperrors.NewForbidden("unknown role")
	}
	if !strings.EqualFold(ticket.SubmitterEmail, actor.Email) {
		return apperrors.NewForbidden("ticket belongs to another submitter")
	}
	if ticket.Status == domain.TicketStatusAIResolved &&
		(next == domain.TicketStatusOpen || next == domain.TicketStatusResolved) {
		return nil
	}
	return apperrors.NewForbidden("users may only reopen or confirm an AI-resolved ticket")
}

func normalizeClassification(in domain.Classification) (domain.Classification, error) {
	out := in
	out.Category = strings.TrimSpace(in.Category)
	if out.Category == "" {
		out.Category = defaultCategory
	}
	if !out.Priority.Valid() {
		out.Priority = domain.TicketPriorityMedium
	}
	if in.CategoryConfidence < 0 || in.CategoryConfidence > 1 {
		return domain.Classification{}, apperrors.NewInvalidRequest("category_confidence must be within [0,1]", map[string]any{"value": in.CategoryConfidence})
	}
	if in.PriorityConfidence < 0 || in.PriorityConfidence > 1 {
		return domain.Classification{}, apperrors.NewInvalidRequest("priority_confidence must be within [0,1]", map[string]any{"value": in.PriorityConfidence})
	}
	return out, nil
}
