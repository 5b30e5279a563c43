package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// NotificationType enumerates the notification variants.
type NotificationType string

const (
	NotificationTicketCreated     NotificationType = "ticket_created"
	NotificationStatusUpdated     NotificationType = "status_updated"
	NotificationAssigned          NotificationType = "assigned"
	NotificationTicketAssigned    NotificationType = "ticket_assigned"
	NotificationTicketUnassigned  NotificationType = "ticket_unassigned"
	NotificationFeedbackSubmitted NotificationType = "feedback_submitted"
	NotificationSLABreach         NotificationType = "sla_breach"
)

// DefaultNotificationTTL is the soft retention hint applied to new notifications.
const DefaultNotificationTTL = 7 * 24 * time.Hour

// NotificationData is the per-type payload. Each variant reports its own type.
type NotificationData interface {
	NotificationType() NotificationType
}

type TicketCreatedData struct {
	TicketID string         `json:"ticket_id"`
	Title    string         `json:"title"`
	Category string         `json:"category"`
	Priority TicketPriority `json:"priority"`
}

type StatusUpdatedData struct {
	TicketID   string       `json:"ticket_id"`
	OldStatus  TicketStatus `json:"old_status"`
	Status     TicketStatus `json:"status"`
	UpdatedBy  string       `json:"updated_by"`
	AssignedTo *string      `json:"assigned_to,omitempty"`
}

type AssignedData struct {
	TicketID   string    `json:"ticket_id"`
	Title      string    `json:"title"`
	AssignedTo string    `json:"assigned_to"`
	AssignedBy string    `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

type TicketAssignedData struct {
	TicketID   string         `json:"ticket_id"`
	Title      string         `json:"title"`
	Priority   TicketPriority `json:"priority"`
	AssignedBy string         `json:"assigned_by"`
}

type TicketUnassignedData struct {
	TicketID     string `json:"ticket_id"`
	Title        string `json:"title"`
	ReassignedTo string `json:"reassigned_to"`
	ReassignedBy string `json:"reassigned_by"`
}

type FeedbackSubmittedData struct {
	TicketID    string `json:"ticket_id"`
	TicketTitle string `json:"ticket_title"`
	Rating      int    `json:"rating"`
	Comment     string `json:"comment,omitempty"`
}

type SLABreachData struct {
	TicketID  string         `json:"ticket_id"`
	Title     string         `json:"title"`
	Priority  TicketPriority `json:"priority"`
	HoursLeft float64        `json:"hours_left"`
}

func (TicketCreatedData) NotificationType() NotificationType     { return NotificationTicketCreated }
func (StatusUpdatedData) NotificationType() NotificationType     { return NotificationStatusUpdated }
func (AssignedData) NotificationType() NotificationType          { return NotificationAssigned }
func (TicketAssignedData) NotificationType() NotificationType    { return NotificationTicketAssigned }
func (TicketUnassignedData) NotificationType() NotificationType  { return NotificationTicketUnassigned }
func (FeedbackSubmittedData) NotificationType() NotificationType { return NotificationFeedbackSubmitted }
func (SLABreachData) NotificationType() NotificationType         { return NotificationSLABreach }

// Notification is addressed to a single recipient by email.
type Notification struct {
	ID             string           `json:"id"`
	RecipientEmail string           `json:"recipient_email"`
	Type           NotificationType `json:"type"`
	Title          string           `json:"title"`
	Message        string           `json:"message"`
	Data           NotificationData `json:"data"`
	TicketID       string           `json:"ticket_id,omitempty"`
	Read           bool             `json:"read"`
	ReadAt         *time.Time       `json:"read_at,omitempty"`
	Priority       TicketPriority   `json:"priority"`
	CreatedAt      time.Time        `json:"created_at"`
	ExpiresAt      time.Time        `json:"expires_at"`
}

// NewNotification builds a notification whose type follows its payload.
func NewNotification(id, recipient, title, message string, data NotificationData, priority TicketPriority, now time.Time, ttl time.Duration) Notification {
	if ttl <= 0 {
		ttl = DefaultNotificationTTL
	}
	if !priority.Valid() {
		priority = TicketPriorityMedium
	}
	return Notification{
		ID:             id,
		RecipientEmail: recipient,
		Type:           data.NotificationType(),
		Title:          title,
		Message:        message,
		Data:           data,
		TicketID:       ticketIDOf(data),
		Priority:       priority,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}
}

// MarkRead flags the notification read; the first read timestamp wins.
func (n *Notification) MarkRead(at time.Time) {
	if n.Read && n.ReadAt != nil {
		return
	}
	t := at
	n.Read = true
	n.ReadAt = &t
}

// DecodeNotificationData rebuilds the typed payload stored as JSON.
func DecodeNotificationData(kind NotificationType, raw []byte) (NotificationData, error) {
	var target NotificationData
	switch kind {
	case NotificationTicketCreated:
		target = &TicketCreatedData{}
	case NotificationStatusUpdated:
		target = &StatusUpdatedData{}
	case NotificationAssigned:
		target = &AssignedData{}
	case NotificationTicketAssigned:
		target = &TicketAssignedData{}
	case NotificationTicketUnassigned:
		target = &TicketUnassignedData{}
	case NotificationFeedbackSubmitted:
		target = &FeedbackSubmittedData{}
	case NotificationSLABreach:
		target = &SLABreachData{}
	default:
		return nil, fmt.Errorf("unknown notification type %q", kind)
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, target); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", kind, err)
		}
	}
	return derefData(target), nil
}

func derefData(d NotificationData) NotificationData {
	switch v := d.(type) {
	case *TicketCreatedData:
		return *v
	case *StatusUpdatedData:
		return *v
	case *AssignedData:
		return *v
	case *TicketAssignedData:
		return *v
	case *TicketUnassignedData:
		return *v
	case *FeedbackSubmittedData:
		return *v
	case *SLABreachData:
		return *v
	}
	return d
}

func ticketIDOf(data NotificationData) string {
	switch v := data.(type) {
	case TicketCreatedData:
		return v.TicketID
	case StatusUpdatedData:
		return v.TicketID
	case AssignedData:
		return v.TicketID
	case TicketAssignedData:
		return v.TicketID
	case TicketUnassignedData:
		return v.TicketID
	case FeedbackSubmittedData:
		return v.TicketID
	case SLABreachData:
		return v.TicketID
	}
	return ""
}
