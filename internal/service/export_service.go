package service

import (
	"context"
	"math"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	exportNotificationLimit = 50
	exportDataVersion       = "1.0"
)

// UserExportStats summarises a user's own history.
type UserExportStats struct {
	TotalTickets     int     `json:"total_tickets"`
	ResolvedTickets  int     `json:"resolved_tickets"`
	OpenTickets      int     `json:"open_tickets"`
	FeedbackProvided int     `json:"feedback_provided"`
	AverageRating    float64 `json:"average_rating"`
	FavoriteCategory string  `json:"favorite_category,omitempty"`
}

// ExportedFeedback is one rated ticket.
type ExportedFeedback struct {
	TicketID    string     `json:"ticket_id"`
	TicketTitle string     `json:"ticket_title"`
	Rating      int        `json:"rating"`
	Comment     string     `json:"comment,omitempty"`
	At          *time.Time `json:"feedback_at,omitempty"`
}

// UserExport is everything the engine holds about one submitter.
type UserExport struct {
	Stats         UserExportStats       `json:"stats"`
	Tickets       []domain.Ticket       `json:"tickets"`
	Notifications []domain.Notification `json:"notifications"`
	Feedback      []ExportedFeedback    `json:"feedback"`
	ExportedAt    time.Time             `json:"exported_at"`
	DataVersion   string                `json:"data_version"`
	TotalRecords  int                   `json:"total_records"`
}

// ExportService assembles per-user data exports from the live stores.
type ExportService struct {
	tickets       repository.TicketRepository
	notifications repository.NotificationRepository
	nowFn         Clock
}

// NewExportService constructs the service.
func NewExportService(tickets repository.TicketRepository, notifications repository.NotificationRepository, clock Clock) *ExportService {
	return &ExportService{tickets: tickets, notifications: notifications, nowFn: clockOrDefault(clock)}
}

// Export returns the caller's tickets, newest notifications and feedback.
// Archived tickets are not included.
func (s *ExportService) Export(ctx context.Context, actor domain.Identity) (*UserExport, error) {
	email := actor.Email
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{SubmitterEmail: &email})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	notifications, err := s.notifications.ListByRecipient(ctx, email, exportNotificationLimit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	out := &UserExport{
		Tickets:       tickets,
		Notifications: notifications,
		Feedback:      []ExportedFeedback{},
		ExportedAt:    s.nowFn(),
		DataVersion:   exportDataVersion,
	}
	if out.Tickets == nil {
		out.Tickets = []domain.Ticket{}
	}
	if out.Notifications == nil {
		out.Notifications = []domain.Notification{}
	}

	categories := make(map[string]int)
	ratingSum := 0
	for _, t := range tickets {
		out.Stats.TotalTickets++
		if t.Status.IsResolved() {
			out.Stats.ResolvedTickets++
		} else {
			out.Stats.OpenTickets++
		}
		if t.Classification.Category != "" {
			categories[t.Classification.Category]++
		}
		if t.Feedback.Submitted && t.Feedback.Rating != nil {
			ratingSum += *t.Feedback.Rating
			out.Feedback = append(out.Feedback, ExportedFeedback{
				TicketID:    t.ID,
				TicketTitle: t.Title,
				Rating:      *t.Feedback.Rating,
				Comment:     t.Feedback.Comment,
				At:          t.Feedback.At,
			})
		}
	}
	out.Stats.FeedbackProvided = len(out.Feedback)
	if n := len(out.Feedback); n > 0 {
		out.Stats.AverageRating = math.Round(float64(ratingSum)/float64(n)*100) / 100
	}
	best := 0
	for category, n := range categories {
		if n > best || (n == best && category < out.Stats.FavoriteCategory) {
			best = n
			out.Stats.FavoriteCategory = category
		}
	}
	out.TotalRecords = len(out.Tickets) + len(out.Notifications) + 1
	return out, nil
}
