package domain

import "time"

// ArchivedTicket is a point-in-time copy of a ticket removed from the live store.
type ArchivedTicket struct {
	ID                 string
	OriginalTicketID   string
	Ticket             Ticket
	ArchiveReason      string
	ArchivedBy         string
	ArchivedByID       string
	ArchivedAt         time.Time
	OriginalCreatedAt  time.Time
	OriginalUpdatedAt  time.Time
	OriginalResolvedAt *time.Time
}

// NewArchivedTicket snapshots ticket with archive metadata.
func NewArchivedTicket(id string, ticket Ticket, reason string, by Identity, now time.Time) ArchivedTicket {
	snapshot := ticket.Clone()
	return ArchivedTicket{
		ID:                 id,
		OriginalTicketID:   ticket.ID,
		Ticket:             snapshot,
		ArchiveReason:      reason,
		ArchivedBy:         by.Email,
		ArchivedByID:       by.ID,
		ArchivedAt:         now,
		OriginalCreatedAt:  ticket.CreatedAt,
		OriginalUpdatedAt:  ticket.UpdatedAt,
		OriginalResolvedAt: cloneTime(ticket.ResolvedAt),
	}
}

// RestoredTicket rebuilds the live ticket with its original id and fields.
func (a ArchivedTicket) RestoredTicket(now time.Time) Ticket {
	ticket := a.Ticket.Clone()
	ticket.ID = a.OriginalTicketID
	ticket.CreatedAt = a.OriginalCreatedAt
	ticket.ResolvedAt = cloneTime(a.OriginalResolvedAt)
	ticket.UpdatedAt = now
	return ticket
}
