package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// EventKind enumerates supported event identifiers.
type EventKind string

const (
	EventTicketCreated      EventKind = "ticket_created"
	EventTicketUpdated      EventKind = "ticket_updated"
	EventTicketReassigned   EventKind = "ticket_reassigned"
	EventTicketArchived     EventKind = "ticket_archived"
	EventTicketRestored     EventKind = "ticket_restored"
	EventTicketDeleted      EventKind = "ticket_deleted"
	EventFeedbackAdded      EventKind = "feedback_added"
	EventNotification       EventKind = "notification"
	EventUpdateOnlineCounts EventKind = "update_online_counts"
	EventSLABreach          EventKind = "sla_breach"
)

// Event is the envelope pushed to subscribers.
type Event struct {
	ID             string    `json:"id"`
	Kind           EventKind `json:"kind"`
	TicketID       string    `json:"ticket_id,omitempty"`
	SubmitterEmail string    `json:"submitter_email,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Payload        any       `json:"payload,omitempty"`
}

// NewEvent stamps a fresh envelope.
func NewEvent(kind EventKind, ticketID, submitterEmail string, payload any, now time.Time) Event {
	return Event{
		ID:             uuid.NewString(),
		Kind:           kind,
		TicketID:       ticketID,
		SubmitterEmail: submitterEmail,
		Timestamp:      now,
		Payload:        payload,
	}
}

// TicketEvent builds an envelope addressed by the ticket's id and submitter.
func TicketEvent(kind EventKind, ticket domain.Ticket, payload any, now time.Time) Event {
	return NewEvent(kind, ticket.ID, ticket.SubmitterEmail, payload, now)
}

// TicketChangedPayload accompanies ticket_created and ticket_updated.
type TicketChangedPayload struct {
	Title      string                `json:"title"`
	Status     domain.TicketStatus   `json:"status"`
	OldStatus  domain.TicketStatus   `json:"old_status,omitempty"`
	Priority   domain.TicketPriority `json:"priority"`
	Category   string                `json:"category"`
	AssignedTo *string               `json:"assigned_to,omitempty"`
	Version    int64                 `json:"version"`
}

// TicketReassignedPayload payload.
type TicketReassignedPayload struct {
	From *string `json:"from,omitempty"`
	To   string  `json:"to"`
	By   string  `json:"by"`
}

// ArchivePayload accompanies archive, restore and delete events.
type ArchivePayload struct {
	ArchivedID string `json:"archived_id"`
	Reason     string `json:"reason,omitempty"`
	By         string `json:"by"`
}

// FeedbackPayload payload.
type FeedbackPayload struct {
	Rating int `json:"rating"`
}

// OnlineCountsPayload is the fresh presence aggregate.
type OnlineCountsPayload struct {
	AgentsOnline int `json:"agents_online"`
}

// SLABreachPayload payload.
type SLABreachPayload struct {
	AssignedTo string  `json:"assigned_to"`
	HoursLeft  float64 `json:"hours_left"`
}
