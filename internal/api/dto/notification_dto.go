package dto

import "github.com/spec-kit/helpdesk-service/internal/domain"

// NotificationListResponse pairs the newest notifications with the unread count.
type NotificationListResponse struct {
	Items  []domain.Notification `json:"items"`
	Unread int                   `json:"unread"`
}
