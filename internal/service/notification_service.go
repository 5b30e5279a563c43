package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const defaultNotificationListLimit = 20

// NotificationService persists per-recipient notifications and pushes them
// to the recipient's topic.
type NotificationService struct {
	notifications repository.NotificationRepository
	publisher     events.Publisher
	logger        *zap.Logger
	cfg           config.NotificationConfig
	nowFn         Clock
}

// NotificationDependencies bundles collaborators for the notification service.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	Publisher        events.Publisher
	Logger           *zap.Logger
	Config           config.NotificationConfig
	Clock            Clock
}

// NewNotificationService creates the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		notifications: deps.NotificationRepo,
		publisher:     deps.Publisher,
		logger:        loggerOrNop(deps.Logger),
		cfg:           deps.Config,
		nowFn:         clockOrDefault(deps.Clock),
	}
}

// Notify stores the notification and publishes it to recipient. Failures are
// logged; the triggering mutation has already committed.
func (n *NotificationService) Notify(ctx context.Context, recipient, title, message string, data domain.NotificationData, priority domain.TicketPriority) *domain.Notification {
	recipient = strings.TrimSpace(recipient)
	if recipient == "" || data == nil {
		return nil
	}
	now := n.nowFn()
	notification := domain.NewNotification(uuid.NewString(), recipient, title, message, data, priority, now, n.cfg.TTL())
	if err := n.notifications.Create(ctx, &notification); err != nil {
		n.logger.Error("persist notification",
			zap.String("recipient", recipient),
			zap.String("type", string(notification.Type)),
			zap.String("ticket_id", notification.TicketID),
			zap.Error(err),
		)
		return nil
	}
	if n.publisher != nil {
		n.publisher.PublishTo(ctx, recipient, events.NewEvent(events.EventNotification, notification.TicketID, recipient, notification, now))
	}
	return &notification
}

// List returns the recipient's newest notifications.
func (n *NotificationService) List(ctx context.Context, recipient domain.Identity, limit int) ([]domain.Notification, error) {
	if limit <= 0 {
		limit = n.cfg.ListLimit
	}
	if limit <= 0 {
		limit = defaultNotificationListLimit
	}
	items, err := n.notifications.ListByRecipient(ctx, recipient.Email, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return items, nil
}

// UnreadCount returns how many notifications recipient has not read.
func (n *NotificationService) UnreadCount(ctx context.Context, recipient domain.Identity) (int, error) {
	count, err := n.notifications.CountUnread(ctx, recipient.Email)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	return count, nil
}

// MarkRead flags a notification read. Another recipient's notification is
// reported as missing.
func (n *NotificationService) MarkRead(ctx context.Context, id string, recipient domain.Identity) (*domain.Notification, error) {
	notification, err := n.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, mapRepoError(err, "notification", id)
	}
	if !strings.EqualFold(notification.RecipientEmail, recipient.Email) {
		return nil, apperrors.NewNotFound("notification", map[string]any{"id": id})
	}
	if notification.Read {
		return notification, nil
	}
	notification.MarkRead(n.nowFn())
	if err := n.notifications.Update(ctx, notification); err != nil {
		return nil, mapRepoError(err, "notification", id)
	}
	return notification, nil
}

// HasNotified reports whether recipient already holds a notification of kind for ticketID.
func (n *NotificationService) HasNotified(ctx context.Context, recipient string, kind domain.NotificationType, ticketID string) (bool, error) {
	exists, err := n.notifications.ExistsForTicket(ctx, recipient, kind, ticketID)
	if err != nil {
		return false, apperrors.MapError(err)
	}
	return exists, nil
}
