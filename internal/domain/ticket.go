package domain

import (
	"time"

	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "open"
	TicketStatusInProgress TicketStatus = "in_progress"
	TicketStatusAIResolved TicketStatus = "ai_resolved"
	TicketStatusResolved   TicketStatus = "resolved"
	TicketStatusClosed     TicketStatus = "closed"
)

// Valid reports whether s is a known status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusOpen, TicketStatusInProgress, TicketStatusAIResolved, TicketStatusResolved, TicketStatusClosed:
		return true
	}
	return false
}

// IsActive reports whether the ticket still needs work.
func (s TicketStatus) IsActive() bool {
	return s == TicketStatusOpen || s == TicketStatusInProgress
}

// IsResolved reports whether the status carries a resolution timestamp.
func (s TicketStatus) IsResolved() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow      TicketPriority = "low"
	TicketPriorityMedium   TicketPriority = "medium"
	TicketPriorityHigh     TicketPriority = "high"
	TicketPriorityCritical TicketPriority = "critical"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh, TicketPriorityCritical:
		return true
	}
	return false
}

// Entities is the structured extraction bag produced by the classifier.
type Entities struct {
	Devices     []string `json:"devices,omitempty"`
	Usernames   []string `json:"usernames,omitempty"`
	ErrorCodes  []string `json:"error_codes,omitempty"`
	IPAddresses []string `json:"ip_addresses,omitempty"`
	URLs        []string `json:"urls,omitempty"`
}

// Classification is the opaque classifier output persisted at creation.
type Classification struct {
	Category           string         `json:"category"`
	Priority           TicketPriority `json:"priority"`
	CategoryConfidence float64        `json:"category_confidence"`
	PriorityConfidence float64        `json:"priority_confidence"`
	Entities           Entities       `json:"entities"`
}

// Feedback is the submitter's one-time rating of a resolved ticket.
type Feedback struct {
	Submitted bool       `json:"submitted"`
	Rating    *int       `json:"rating,omitempty"`
	Comment   string     `json:"comment,omitempty"`
	At        *time.Time `json:"feedback_at,omitempty"`
}

// ReassignmentEntry is one append-only record of an assignment change.
type ReassignmentEntry struct {
	From *string   `json:"from"`
	To   string    `json:"to"`
	By   string    `json:"by"`
	At   time.Time `json:"at"`
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	Description         string              `json:"description"`
	SubmitterID         string              `json:"submitter_id"`
	SubmitterEmail      string              `json:"submitter_email"`
	Classification      Classification      `json:"classification"`
	Status              TicketStatus        `json:"status"`
	AssignedTo          *string             `json:"assigned_to,omitempty"`
	AssignedAt          *time.Time          `json:"assigned_at,omitempty"`
	Feedback            Feedback            `json:"feedback"`
	ReassignmentHistory []ReassignmentEntry `json:"reassignment_history"`
	Version             int64               `json:"version"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
	ResolvedAt          *time.Time          `json:"resolved_at,omitempty"`
}

var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusOpen:       {TicketStatusInProgress},
	TicketStatusInProgress: {TicketStatusAIResolved, TicketStatusResolved},
	TicketStatusAIResolved: {TicketStatusOpen, TicketStatusResolved, TicketStatusClosed},
	TicketStatusResolved:   {TicketStatusClosed},
	TicketStatusClosed:     {},
}

// CanTransition reports whether current -> next is in the allowed table.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Transition moves the ticket to next. The ticket is untouched on error.
func (t *Ticket) Transition(next TicketStatus, now time.Time) error {
	if !next.Valid() || !CanTransition(t.Status, next) {
		return apperrors.NewInvalidTransition(string(t.Status), string(next))
	}
	t.Status = next
	if next.IsResolved() && t.ResolvedAt == nil {
		resolved := now
		t.ResolvedAt = &resolved
	}
	t.UpdatedAt = now
	return nil
}

// AssignTo records a (re)assignment. assigned_at only moves on first assignment.
func (t *Ticket) AssignTo(agentEmail, by string, now time.Time) {
	var from *string
	if t.AssignedTo != nil {
		prev := *t.AssignedTo
		from = &prev
	}
	t.ReassignmentHistory = append(t.ReassignmentHistory, ReassignmentEntry{
		From: from,
		To:   agentEmail,
		By:   by,
		At:   now,
	})
	assignee := agentEmail
	t.AssignedTo = &assignee
	if t.AssignedAt == nil {
		assigned := now
		t.AssignedAt = &assigned
	}
	t.UpdatedAt = now
}

// SubmitFeedback stores the one-time rating for a resolved or closed ticket.
func (t *Ticket) SubmitFeedback(rating int, comment string, now time.Time) error {
	if t.Feedback.Submitted {
		return apperrors.NewInvalidRequest("feedback already submitted for this ticket", map[string]any{"ticket_id": t.ID})
	}
	if !t.Status.IsResolved() {
		return apperrors.NewInvalidRequest("feedback is only accepted for resolved tickets", map[string]any{"status": t.Status})
	}
	if rating < 1 || rating > 5 {
		return apperrors.NewInvalidRequest("rating must be between 1 and 5", map[string]any{"rating": rating})
	}
	r := rating
	at := now
	t.Feedback = Feedback{Submitted: true, Rating: &r, Comment: comment, At: &at}
	t.UpdatedAt = now
	return nil
}

// Clone returns a deep copy so callers can mutate without aliasing stored state.
func (t Ticket) Clone() Ticket {
	out := t
	out.AssignedTo = cloneString(t.AssignedTo)
	out.AssignedAt = cloneTime(t.AssignedAt)
	out.ResolvedAt = cloneTime(t.ResolvedAt)
	out.Feedback.Rating = cloneInt(t.Feedback.Rating)
	out.Feedback.At = cloneTime(t.Feedback.At)
	out.Classification.Entities = Entities{
		Devices:     cloneStrings(t.Classification.Entities.Devices),
		Usernames:   cloneStrings(t.Classification.Entities.Usernames),
		ErrorCodes:  cloneStrings(t.Classification.Entities.ErrorCodes),
		IPAddresses: cloneStrings(t.Classification.Entities.IPAddresses),
		URLs:        cloneStrings(t.Classification.Entities.URLs),
	}
	if t.ReassignmentHistory != nil {
		out.ReassignmentHistory = make([]ReassignmentEntry, len(t.ReassignmentHistory))
		for i, entry := range t.ReassignmentHistory {
			entry.From = cloneString(entry.From)
			out.ReassignmentHistory[i] = entry
		}
	}
	return out
}

func cloneString(v *string) *string {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneInt(v *int) *int {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneStrings(v []string) []string {
	if v == nil {
		return nil
	}
	return append([]string(nil), v...)
}
