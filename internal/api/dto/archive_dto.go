package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ArchiveRequest payload.
type ArchiveRequest struct {
	Reason string `json:"reason"`
}

// BulkArchiveRequest payload.
type BulkArchiveRequest struct {
	TicketIDs []string `json:"ticket_ids"`
	Reason    string   `json:"reason"`
}

// BulkArchiveItem reports one id of a bulk run.
type BulkArchiveItem struct {
	TicketID   string     `json:"ticket_id"`
	Success    bool       `json:"success"`
	ArchivedID string     `json:"archived_id,omitempty"`
	Error      *ErrorBody `json:"error,omitempty"`
}

// BulkArchiveResponse summarises a bulk run.
type BulkArchiveResponse struct {
	Archived int               `json:"archived"`
	Failed   int               `json:"failed"`
	Results  []BulkArchiveItem `json:"results"`
}

// ErrorBody is the wire shape of a domain error.
type ErrorBody struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// ArchivedTicketResponse view.
type ArchivedTicketResponse struct {
	ID                 string         `json:"id"`
	OriginalTicketID   string         `json:"original_ticket_id"`
	Ticket             TicketResponse `json:"ticket"`
	ArchiveReason      string         `json:"archive_reason"`
	ArchivedBy         string         `json:"archived_by"`
	ArchivedByID       string         `json:"archived_by_id"`
	ArchivedAt         time.Time      `json:"archived_at"`
	OriginalCreatedAt  time.Time      `json:"original_created_at"`
	OriginalUpdatedAt  time.Time      `json:"original_updated_at"`
	OriginalResolvedAt *time.Time     `json:"original_resolved_at"`
}

// NewArchivedTicketResponse maps an archive record.
func NewArchivedTicketResponse(a *domain.ArchivedTicket) ArchivedTicketResponse {
	return ArchivedTicketResponse{
		ID:                 a.ID,
		OriginalTicketID:   a.OriginalTicketID,
		Ticket:             NewTicketResponse(&a.Ticket, nil),
		ArchiveReason:      a.ArchiveReason,
		ArchivedBy:         a.ArchivedBy,
		ArchivedByID:       a.ArchivedByID,
		ArchivedAt:         a.ArchivedAt,
		OriginalCreatedAt:  a.OriginalCreatedAt,
		OriginalUpdatedAt:  a.OriginalUpdatedAt,
		OriginalResolvedAt: a.OriginalResolvedAt,
	}
}
