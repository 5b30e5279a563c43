package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

func TestNotifyPersistsAndPublishesToRecipient(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()

	n := env.notifier.Notify(ctx, submitter.Email, "Hello", "body", domain.TicketCreatedData{TicketID: "t-1", Title: "x"}, "")
	require.NotNil(t, n)
	assert.Equal(t, domain.NotificationTicketCreated, n.Type)
	assert.Equal(t, "t-1", n.TicketID)
	assert.Equal(t, domain.TicketPriorityMedium, n.Priority)
	assert.Equal(t, env.clock.Now().Add(168*time.Hour), n.ExpiresAt)
	assert.Equal(t, []events.EventKind{events.EventNotification}, env.publisher.kinds(events.UserTopic(submitter.Email)))

	unread, err := env.notifier.UnreadCount(ctx, submitter)
	require.NoError(t, err)
	assert.Equal(t, 1, unread)

	seen, err := env.notifier.HasNotified(ctx, submitter.Email, domain.NotificationTicketCreated, "t-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestMarkRead(t *testing.T) {
	env := newTestEnv(t, false)
	ctx := context.Background()
	n := env.notifier.Notify(ctx, submitter.Email, "Hello", "body", domain.TicketCreatedData{TicketID: "t-1"}, domain.TicketPriorityHigh)
	require.NotNil(t, n)

	_, err := env.notifier.MarkRead(ctx, n.ID, stranger)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	_, err = env.notifier.MarkRead(ctx, "missing", submitter)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeNotFound))

	read, err := env.notifier.MarkRead(ctx, n.ID, submitter)
	require.NoError(t, err)
	require.NotNil(t, read.ReadAt)
	firstRead := *read.ReadAt

	env.clock.Advance(time.Minute)
	again, err := env.notifier.MarkRead(ctx, n.ID, submitter)
	require.NoError(t, err)
	assert.Equal(t, firstRead, *again.ReadAt)

	unread, err := env.notifier.UnreadCount(ctx, submitter)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

type failingNotifications struct {
	repository.NotificationRepository
}

func (failingNotifications) Create(context.Context, *domain.Notification) error {
	return errors.New("disk full")
}

func TestNotifySwallowsPersistenceFailure(t *testing.T) {
	publisher := &recordingPublisher{}
	svc := NewNotificationService(NotificationDependencies{
		NotificationRepo: failingNotifications{},
		Publisher:        publisher,
	})
	n := svc.Notify(context.Background(), "x@example.com", "t", "m", domain.TicketCreatedData{TicketID: "t-1"}, domain.TicketPriorityLow)
	assert.Nil(t, n)
	assert.Empty(t, publisher.kinds(events.UserTopic("x@example.com")))
}
