package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/sla"
)

// EntitiesPayload mirrors the classifier's extraction bag.
type EntitiesPayload struct {
	Devices     []string `json:"devices"`
	Usernames   []string `json:"usernames"`
	ErrorCodes  []string `json:"error_codes"`
	IPAddresses []string `json:"ip_addresses"`
	URLs        []string `json:"urls"`
}

// ClassificationPayload is the classifier record supplied at creation.
type ClassificationPayload struct {
	Category           string                `json:"category"`
	Priority           domain.TicketPriority `json:"priority"`
	CategoryConfidence float64               `json:"category_confidence"`
	PriorityConfidence float64               `json:"priority_confidence"`
	Entities           EntitiesPayload       `json:"entities"`
}

// ToDomain converts the payload.
func (p ClassificationPayload) ToDomain() domain.Classification {
	return domain.Classification{
		Category:           p.Category,
		Priority:           p.Priority,
		CategoryConfidence: p.CategoryConfidence,
		PriorityConfidence: p.PriorityConfidence,
		Entities: domain.Entities{
			Devices:     p.Entities.Devices,
			Usernames:   p.Entities.Usernames,
			ErrorCodes:  p.Entities.ErrorCodes,
			IPAddresses: p.Entities.IPAddresses,
			URLs:        p.Entities.URLs,
		},
	}
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Classification ClassificationPayload `json:"classification"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status          domain.TicketStatus `json:"status"`
	AssignTo        *string             `json:"assign_to"`
	ExpectedVersion *int64              `json:"expected_version"`
}

// AssignRequest payload.
type AssignRequest struct {
	AgentEmail string `json:"agent_email"`
}

// FeedbackRequest payload.
type FeedbackRequest struct {
	Rating  int    `json:"rating"`
	Comment string `json:"comment"`
}

// TicketResponse is the canonical ticket view with its live SLA.
type TicketResponse struct {
	ID                  string                     `json:"id"`
	Title               string                     `json:"title"`
	Description         string                     `json:"description"`
	SubmitterID         string                     `json:"submitter_id"`
	SubmitterEmail      string                     `json:"submitter_email"`
	Classification      domain.Classification      `json:"classification"`
	Status              domain.TicketStatus        `json:"status"`
	AssignedTo          *string                    `json:"assigned_to"`
	AssignedAt          *time.Time                 `json:"assigned_at"`
	Feedback            domain.Feedback            `json:"feedback"`
	ReassignmentHistory []domain.ReassignmentEntry `json:"reassignment_history"`
	Version             int64                      `json:"version"`
	CreatedAt           time.Time                  `json:"created_at"`
	UpdatedAt           time.Time                  `json:"updated_at"`
	ResolvedAt          *time.Time                 `json:"resolved_at"`
	SLA                 *sla.Status                `json:"sla,omitempty"`
}

// NewTicketResponse maps a ticket. status may be nil.
func NewTicketResponse(ticket *domain.Ticket, status *sla.Status) TicketResponse {
	history := ticket.ReassignmentHistory
	if history == nil {
		history = []domain.ReassignmentEntry{}
	}
	return TicketResponse{
		ID:                  ticket.ID,
		Title:               ticket.Title,
		Description:         ticket.Description,
		SubmitterID:         ticket.SubmitterID,
		SubmitterEmail:      ticket.SubmitterEmail,
		Classification:      ticket.Classification,
		Status:              ticket.Status,
		AssignedTo:          ticket.AssignedTo,
		AssignedAt:          ticket.AssignedAt,
		Feedback:            ticket.Feedback,
		ReassignmentHistory: history,
		Version:             ticket.Version,
		CreatedAt:           ticket.CreatedAt,
		UpdatedAt:           ticket.UpdatedAt,
		ResolvedAt:          ticket.ResolvedAt,
		SLA:                 status,
	}
}
