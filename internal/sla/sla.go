// Package sla computes remaining SLA time per priority class. Nothing here is stored;
// callers recompute on every read.
package sla

import (
	"math"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// DefaultBreachThresholdHours is the remaining time under which a critical ticket alerts.
const DefaultBreachThresholdHours = 0.5

// Policy maps priorities to their allotted resolution window.
type Policy struct {
	Allotments           map[domain.TicketPriority]time.Duration
	BreachThresholdHours float64
}

// Status is the derived SLA view of a ticket at a point in time.
type Status struct {
	Priority    domain.TicketPriority `json:"priority"`
	Allotment   time.Duration         `json:"allotment"`
	HoursLeft   float64               `json:"hours_left"`
	IsBreaching bool                  `json:"is_breaching"`
}

// DefaultPolicy returns the standard allotment table.
func DefaultPolicy() Policy {
	return Policy{
		Allotments: map[domain.TicketPriority]time.Duration{
			domain.TicketPriorityCritical: time.Hour,
			domain.TicketPriorityHigh:     2 * time.Hour,
			domain.TicketPriorityMedium:   4 * time.Hour,
			domain.TicketPriorityLow:      8 * time.Hour,
		},
		BreachThresholdHours: DefaultBreachThresholdHours,
	}
}

// Allotment returns the window for priority, falling back to medium.
func (p Policy) Allotment(priority domain.TicketPriority) time.Duration {
	if d, ok := p.Allotments[priority]; ok && d > 0 {
		return d
	}
	if d, ok := p.Allotments[domain.TicketPriorityMedium]; ok && d > 0 {
		return d
	}
	return DefaultPolicy().Allotments[domain.TicketPriorityMedium]
}

// Remaining computes hours left and the breach flag. Only critical tickets breach.
func (p Policy) Remaining(priority domain.TicketPriority, createdAt, now time.Time) Status {
	allotment := p.Allotment(priority)
	elapsed := now.Sub(createdAt).Hours()
	left := math.Max(0, allotment.Hours()-elapsed)
	left = math.Round(left*100) / 100

	threshold := p.BreachThresholdHours
	if threshold <= 0 {
		threshold = DefaultBreachThresholdHours
	}
	return Status{
		Priority:    priority,
		Allotment:   allotment,
		HoursLeft:   left,
		IsBreaching: priority == domain.TicketPriorityCritical && left < threshold,
	}
}

// Remaining evaluates the default policy.
func Remaining(priority domain.TicketPriority, createdAt, now time.Time) Status {
	return DefaultPolicy().Remaining(priority, createdAt, now)
}

// ForTicket evaluates p against a ticket.
func (p Policy) ForTicket(ticket domain.Ticket, now time.Time) Status {
	return p.Remaining(ticket.Classification.Priority, ticket.CreatedAt, now)
}
