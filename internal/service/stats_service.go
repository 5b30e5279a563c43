package service

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	statsWindow               = 30 * 24 * time.Hour
	defaultAvgResponseMinutes = 30
	maxResponseMinutes        = 7 * 24 * 60
	satisfactionUnknown       = "N/A"
)

// PresenceCounter reports connected identities per role.
type PresenceCounter interface {
	Count(role domain.Role) int
}

// Trend compares today against yesterday.
type Trend string

const (
	TrendUp     Trend = "up"
	TrendDown   Trend = "down"
	TrendStable Trend = "stable"
)

// LiveStats is the dashboard snapshot.
type LiveStats struct {
	TicketsToday          int              `json:"tickets_today"`
	ResolvedToday         int              `json:"resolved_today"`
	ActiveTickets         int              `json:"active_tickets"`
	AvgResponseMinutes    int              `json:"avg_response_minutes"`
	SatisfactionRate      string           `json:"satisfaction_rate"`
	ResolutionRate        int              `json:"resolution_rate"`
	OverallResolutionRate int              `json:"overall_resolution_rate"`
	SupportTeamMembers    int              `json:"support_team_members"`
	ActiveAgents          int              `json:"active_agents"`
	Trends                map[string]Trend `json:"trends"`
	GeneratedAt           time.Time        `json:"generated_at"`
}

// StatsService recomputes dashboard figures from the ticket store.
type StatsService struct {
	tickets    repository.TicketRepository
	identities repository.IdentityRepository
	presence   PresenceCounter
	nowFn      Clock
}

// NewStatsService constructs the service. presence may be nil.
func NewStatsService(tickets repository.TicketRepository, identities repository.IdentityRepository, presence PresenceCounter, clock Clock) *StatsService {
	return &StatsService{
		tickets:    tickets,
		identities: identities,
		presence:   presence,
		nowFn:      clockOrDefault(clock),
	}
}

// Live computes the current snapshot.
func (s *StatsService) Live(ctx context.Context) (*LiveStats, error) {
	tickets, err := s.tickets.List(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	agents, err := s.identities.ListByRole(ctx, domain.RoleAgent)
	if err != nil {
		return nil, apperrors.MapError(err)
	}

	now := s.nowFn()
	today := startOfDay(now)
	yesterday := today.Add(-24 * time.Hour)
	windowStart := now.Add(-statsWindow)

	var (
		createdToday, createdYesterday   int
		resolvedToday, resolvedYesterday int
		active                           int
		windowCreated, windowResolved    int
		responseMinutes                  float64
		responseSamples                  int
		ratingSum, ratingCount           int
	)
	for _, ticket := range tickets {
		if ticket.Status.IsActive() {
			active++
		}
		switch {
		case !ticket.CreatedAt.Before(today):
			createdToday++
		case !ticket.CreatedAt.Before(yesterday):
			createdYesterday++
		}
		resolved := ticket.Status == domain.TicketStatusResolved && ticket.ResolvedAt != nil
		if resolved {
			switch {
			case !ticket.ResolvedAt.Before(today):
				resolvedToday++
			case !ticket.ResolvedAt.Before(yesterday):
				resolvedYesterday++
			}
		}
		if ticket.Feedback.Submitted && ticket.Feedback.Rating != nil &&
			ticket.Feedback.At != nil && !ticket.Feedback.At.Before(windowStart) {
			ratingSum += *ticket.Feedback.Rating
			ratingCount++
		}
		if ticket.CreatedAt.Before(windowStart) {
			continue
		}
		windowCreated++
		if resolved {
			windowResolved++
			minutes := ticket.ResolvedAt.Sub(ticket.CreatedAt).Minutes()
			if minutes > 0 && minutes < maxResponseMinutes {
				responseMinutes += minutes
				responseSamples++
			}
		}
	}

	stats := &LiveStats{
		TicketsToday:          createdToday,
		ResolvedToday:         resolvedToday,
		ActiveTickets:         active,
		AvgResponseMinutes:    defaultAvgResponseMinutes,
		SatisfactionRate:      satisfactionUnknown,
		ResolutionRate:        percent(resolvedToday, createdToday),
		OverallResolutionRate: percent(windowResolved, windowCreated),
		SupportTeamMembers:    len(agents),
		GeneratedAt:           now,
		Trends: map[string]Trend{
			"tickets":  trendOf(createdToday, createdYesterday),
			"resolved": trendOf(resolvedToday, resolvedYesterday),
		},
	}
	if responseSamples > 0 {
		stats.AvgResponseMinutes = int(math.Round(responseMinutes / float64(responseSamples)))
	}
	if ratingCount > 0 {
		rate := math.Round(float64(ratingSum) / float64(ratingCount) / 5 * 100)
		stats.SatisfactionRate = strconv.Itoa(int(rate)) + "%"
	}
	if s.presence != nil {
		stats.ActiveAgents = s.presence.Count(domain.RoleAgent)
	}
	return stats, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}

func trendOf(today, yesterday int) Trend {
	switch {
	case today > yesterday:
		return TrendUp
	case today < yesterday:
		return TrendDown
	default:
		return TrendStable
	}
}
