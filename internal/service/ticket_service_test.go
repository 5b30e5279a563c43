package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func TestCreateTicketDefaultsAndValidation(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	ticket, err := env.tickets.CreateTicket(ctx, submitter, TicketCreateInput{
		Title:          "  VPN down ",
		Description:    "cannot connect",
		Classification: domain.Classification{Priority: "urgent"},
	})
	require.NoError(t, err)
	assert.Equal(t, "VPN down", ticket.Title)
	assert.Equal(t, domain.TicketStatusOpen, ticket.Status)
	assert.Equal(t, domain.TicketPriorityMedium, ticket.Classification.Priority)
	assert.Equal(t, "general", ticket.Classification.Category)
	assert.Nil(t, ticket.ResolvedAt)
	assert.Equal(t, []domain.NotificationType{domain.NotificationTicketCreated}, env.notificationTypes(t, submitter))
	assert.Contains(t, env.publisher.kinds(events.GlobalTopic), events.EventTicketCreated)

	_, err = env.tickets.CreateTicket(ctx, submitter, TicketCreateInput{Title: "x"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidRequest))

	_, err = env.tickets.CreateTicket(ctx, submitter, TicketCreateInput{
		Title:          "x",
		Description:    "y",
		Classification: domain.Classification{CategoryConfidence: 1.5},
	})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidRequest))
}

func TestTransitionStatusLifecycle(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ticket := env.createTicket(t, "Printer jam", domain.TicketPriorityHigh, "hardware")

	updated, err := env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusInProgress}, agentOne)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, updated.Status)
	assert.Nil(t, updated.AssignedTo, "moving to in_progress does not imply assignment")

	env.clock.Advance(time.Hour)
	updated, err = env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusResolved}, agentOne)
	require.NoError(t, err)
	require.NotNil(t, updated.ResolvedAt)
	firstResolved := *updated.ResolvedAt

	env.clock.Advance(time.Hour)
	updated, err = env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusClosed}, agentOne)
	require.NoError(t, err)
	assert.Equal(t, firstResolved, *updated.ResolvedAt)
	assert.Equal(t, env.clock.Now(), updated.UpdatedAt)

	types := env.notificationTypes(t, submitter)
	assert.Len(t, types, 4)
	assert.Equal(t, domain.NotificationStatusUpdated, types[0])
}

func TestTransitionRejectedLeavesTicketUnchanged(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ticket := env.createTicket(t, "Disk full", domain.TicketPriorityLow, "storage")

	_, err := env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusClosed}, agentOne)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidTransition))

	_, err = env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{
		Status:   domain.TicketStatusInProgress,
		AssignTo: strPtr("nobody@example.com"),
	}, agentOne)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidAgent))

	_, err = env.tickets.TransitionStatus(ctx, "missing", TransitionInput{Status: domain.TicketStatusInProgress}, agentOne)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	stored, err := env.store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, *ticket, *stored)
}

func TestTransitionWithAssignment(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ticket := env.createTicket(t, "Email bounce", domain.TicketPriorityMedium, "email")

	updated, err := env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{
		Status:   domain.TicketStatusInProgress,
		AssignTo: strPtr(agentTwo.Email),
	}, agentOne)
	require.NoError(t, err)
	require.NotNil(t, updated.AssignedTo)
	assert.Equal(t, agentTwo.Email, *updated.AssignedTo)
	require.Len(t, updated.ReassignmentHistory, 1)
	assert.Equal(t, agentOne.Email, updated.ReassignmentHistory[0].By)
	assert.Equal(t, []domain.NotificationType{domain.NotificationTicketAssigned}, env.notificationTypes(t, agentTwo))
	assert.Contains(t, env.publisher.kinds(events.GlobalTopic), events.EventTicketReassigned)
}

func TestUserTransitionRules(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ticket := env.createTicket(t, "Password reset", domain.TicketPriorityLow, "account")

	_, err := env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusInProgress}, submitter)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusInProgress}, agentOne)
	require.NoError(t, err)
	_, err = env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusAIResolved}, agentOne)
	require.NoError(t, err)

	_, err = env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusOpen}, stranger)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	_, err = env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusClosed}, submitter)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	reopened, err := env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusOpen}, submitter)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusOpen, reopened.Status)
	assert.Nil(t, reopened.ResolvedAt)
}

func TestOptimisticLockingRejectsStaleVersion(t *testing.T) {
	env := newTestEnv(t, true)
	ctx := context.Background()
	ticket := env.createTicket(t, "Laptop slow", domain.TicketPriorityMedium, "hardware")

	stale := ticket.Version
	_, err := env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusInProgress, ExpectedVersion: &stale}, agentOne)
	require.NoError(t, err)

	_, err = env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusResolved, ExpectedVersion: &stale}, agentOne)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeConflict))

	stored, err := env.store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusInProgress, stored.Status)
}

func TestSubmitFeedbackOnce(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ticket := env.createTicket(t, "Monitor flicker", domain.TicketPriorityLow, "hardware")

	_, err := env.tickets.SubmitFeedback(ctx, ticket.ID, submitter, 5, "early")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidRequest))

	_, err = env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusInProgress, AssignTo: strPtr(agentOne.Email)}, agentOne)
	require.NoError(t, err)
	_, err = env.tickets.TransitionStatus(ctx, ticket.ID, TransitionInput{Status: domain.TicketStatusResolved}, agentOne)
	require.NoError(t, err)

	_, err = env.tickets.SubmitFeedback(ctx, ticket.ID, stranger, 1, "")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	rated, err := env.tickets.SubmitFeedback(ctx, ticket.ID, submitter, 4, "thanks")
	require.NoError(t, err)
	require.NotNil(t, rated.Feedback.Rating)
	assert.Equal(t, 4, *rated.Feedback.Rating)

	_, err = env.tickets.SubmitFeedback(ctx, ticket.ID, submitter, 1, "changed my mind")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidRequest))

	stored, err := env.store.Tickets().GetByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, *stored.Feedback.Rating)
	assert.Contains(t, env.notificationTypes(t, agentOne), domain.NotificationFeedbackSubmitted)
	assert.Contains(t, env.publisher.kinds(events.GlobalTopic), events.EventFeedbackAdded)
}

func TestVisibilityAndSLA(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	ticket := env.createTicket(t, "Server down", domain.TicketPriorityCritical, "infra")
	other, err := env.tickets.CreateTicket(ctx, stranger, TicketCreateInput{Title: "Other", Description: "other"})
	require.NoError(t, err)

	_, err = env.tickets.GetTicket(ctx, other.ID, submitter)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeForbidden))

	mine, err := env.tickets.ListTickets(ctx, submitter, TicketListFilter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, ticket.ID, mine[0].ID)

	all, err := env.tickets.ListTickets(ctx, agentOne, TicketListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	env.clock.Advance(90 * time.Minute)
	status, err := env.tickets.SLA(ctx, ticket.ID, submitter)
	require.NoError(t, err)
	assert.Equal(t, 0.0, status.Status.HoursLeft)
	assert.True(t, status.Status.IsBreaching)
}
