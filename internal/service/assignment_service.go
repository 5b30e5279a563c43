package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// AssignmentService applies assignment and reassignment.
type AssignmentService struct {
	tickets    repository.TicketRepository
	identities repository.IdentityRepository
	workload   *WorkloadIndex
	writer     ticketWriter
	announce   announcer
	logger     *zap.Logger
	nowFn      Clock
}

// AssignmentDependencies bundles collaborators for assignment.
type AssignmentDependencies struct {
	TicketRepo        repository.TicketRepository
	IdentityRepo      repository.IdentityRepository
	Workload          *WorkloadIndex
	Notifier          *NotificationService
	Publisher         events.Publisher
	OptimisticLocking bool
	Logger            *zap.Logger
	Clock             Clock
}

// NewAssignmentService constructs the service.
func NewAssignmentService(deps AssignmentDependencies) *AssignmentService {
	logger := loggerOrNop(deps.Logger)
	nowFn := clockOrDefault(deps.Clock)
	workload := deps.Workload
	if workload == nil {
		workload = NewWorkloadIndex(deps.TicketRepo, deps.IdentityRepo, nowFn)
	}
	return &AssignmentService{
		tickets:    deps.TicketRepo,
		identities: deps.IdentityRepo,
		workload:   workload,
		writer:     ticketWriter{tickets: deps.TicketRepo, optimistic: deps.OptimisticLocking},
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

// Assign sets agentEmail as the ticket's assignee. Reassignment is the same
// call on an already assigned ticket.
func (s *AssignmentService) Assign(ctx context.Context, ticketID, agentEmail string, actor domain.Identity) (*domain.Ticket, error) {
	if err := requireStaff(actor, "assign tickets"); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	agent, err := resolveAgent(ctx, s.identities, agentEmail)
	if err != nil {
		return nil, err
	}
	return s.apply(ctx, ticket, agent.Email, actor)
}

// AutoAssign picks the least loaded agent and assigns the ticket to them.
func (s *AssignmentService) AutoAssign(ctx context.Context, ticketID string, actor domain.Identity) (*domain.Ticket, error) {
	if err := requireStaff(actor, "assign tickets"); err != nil {
		return nil, err
	}
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	candidates, err := s.workload.Candidates(ctx)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, apperrors.NewConflict("no agents available for assignment", map[string]any{"ticket_id": ticketID})
	}
	best := candidates[0]
	s.logger.Debug("auto-assign candidate selected",
		zap.String("ticket_id", ticketID),
		zap.String("agent", best.AgentEmail),
		zap.Int("active", best.ActiveTickets),
		zap.Float64("efficiency", best.Efficiency),
	)
	return s.apply(ctx, ticket, best.AgentEmail, actor)
}

func (s *AssignmentService) apply(ctx context.Context, ticket *domain.Ticket, agentEmail string, actor domain.Identity) (*domain.Ticket, error) {
	updated := ticket.Clone()
	previous := updated.AssignedTo
	updated.AssignTo(agentEmail, actor.Email, s.nowFn())
	if err := s.writer.save(ctx, &updated, ticket.Version); err != nil {
		return nil, err
	}

	fields := []zap.Field{
		zap.String("ticket_id", updated.ID),
		zap.String("agent", agentEmail),
		zap.String("actor", actor.Email),
	}
	if previous != nil {
		fields = append(fields, zap.String("previous", *previous))
	}
	s.logger.Info("ticket assigned", fields...)
	s.announce.assignment(ctx, updated, previous, actor)
	return &updated, nil
}
