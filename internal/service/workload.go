package service

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const (
	overloadThreshold     = 8
	defaultBoardLimit     = 5
	defaultSpikeWindow    = 5 * time.Minute
	spikeCriticalMinimum  = 2
	heatmapIntensityScale = 300
)

// AgentWorkload is the derived load of one assignee.
type AgentWorkload struct {
	AgentEmail         string  `json:"agent_email"`
	AgentName          string  `json:"agent_name,omitempty"`
	ActiveTickets      int     `json:"active_tickets"`
	ResolvedTickets    int     `json:"resolved_tickets"`
	AvgResolutionHours float64 `json:"avg_resolution_hours"`
	Efficiency         float64 `json:"efficiency"`
	IsOverloaded       bool    `json:"is_overloaded"`
}

// LeaderboardEntry ranks an assignee by resolved count.
type LeaderboardEntry struct {
	AgentEmail      string `json:"agent_email"`
	ResolvedTickets int    `json:"resolved_tickets"`
}

// HeatmapCell is the open-ticket pressure of one category.
type HeatmapCell struct {
	Category  string  `json:"category"`
	Count     int     `json:"count"`
	Intensity float64 `json:"intensity"`
}

// PrioritySpike describes a burst of critical tickets.
type PrioritySpike struct {
	Detected      bool          `json:"detected"`
	CriticalCount int           `json:"critical_count"`
	TopCategory   string        `json:"top_category,omitempty"`
	Window        time.Duration `json:"window"`
}

// Efficiency blends throughput, current load and speed into a 0..100 score.
func Efficiency(active, resolved int, avgResolutionHours float64) float64 {
	score := float64(resolved)*2 +
		math.Max(0, float64(10-active))*3 +
		math.Max(0, 8-avgResolutionHours)*3.75
	return math.Max(0, math.Min(100, score))
}

// WorkloadIndex derives agent load from the ticket store on every call. It
// keeps no state of its own.
type WorkloadIndex struct {
	tickets    repository.TicketRepository
	identities repository.IdentityRepository
	nowFn      Clock
}

// NewWorkloadIndex builds the index.
func NewWorkloadIndex(tickets repository.TicketRepository, identities repository.IdentityRepository, clock Clock) *WorkloadIndex {
	return &WorkloadIndex{tickets: tickets, identities: identities, nowFn: clockOrDefault(clock)}
}

// Compute returns one entry per assignee holding at least one ticket,
// highest efficiency first.
func (w *WorkloadIndex) Compute(ctx context.Context) ([]AgentWorkload, error) {
	tickets, err := w.tickets.List(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	out := aggregateWorkload(tickets)
	sortByEfficiency(out)
	return out, nil
}

// Candidates returns a workload for every agent identity, including agents
// without tickets, ordered best candidate first.
func (w *WorkloadIndex) Candidates(ctx context.Context) ([]AgentWorkload, error) {
	agents, err := w.identities.ListByRole(ctx, domain.RoleAgent)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	tickets, err := w.tickets.List(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	byEmail := make(map[string]AgentWorkload)
	for _, load := range aggregateWorkload(tickets) {
		byEmail[load.AgentEmail] = load
	}
	out := make([]AgentWorkload, 0, len(agents))
	for _, agent := range agents {
		load, ok := byEmail[agent.Email]
		if !ok {
			load = AgentWorkload{AgentEmail: agent.Email, Efficiency: Efficiency(0, 0, 0)}
		}
		load.AgentName = agent.Name
		out = append(out, load)
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.IsOverloaded != b.IsOverloaded {
			return !a.IsOverloaded
		}
		if a.ActiveTickets != b.ActiveTickets {
			return a.ActiveTickets < b.ActiveTickets
		}
		if a.Efficiency != b.Efficiency {
			return a.Efficiency > b.Efficiency
		}
		return a.AgentEmail < b.AgentEmail
	})
	return out, nil
}

// Leaderboard ranks assignees by resolved tickets.
func (w *WorkloadIndex) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = defaultBoardLimit
	}
	tickets, err := w.tickets.List(ctx, repository.TicketFilter{Statuses: []domain.TicketStatus{domain.TicketStatusResolved}})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	counts := make(map[string]int)
	for _, ticket := range tickets {
		if ticket.AssignedTo == nil {
			continue
		}
		counts[*ticket.AssignedTo]++
	}
	out := make([]LeaderboardEntry, 0, len(counts))
	for email, count := range counts {
		out = append(out, LeaderboardEntry{AgentEmail: email, ResolvedTickets: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ResolvedTickets != out[j].ResolvedTickets {
			return out[i].ResolvedTickets > out[j].ResolvedTickets
		}
		return out[i].AgentEmail < out[j].AgentEmail
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CategoryHeatmap scores open tickets per category against the store total.
func (w *WorkloadIndex) CategoryHeatmap(ctx context.Context, limit int) ([]HeatmapCell, error) {
	if limit <= 0 {
		limit = defaultBoardLimit
	}
	tickets, err := w.tickets.List(ctx, repository.TicketFilter{})
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	counts := make(map[string]int)
	for _, ticket := range tickets {
		if ticket.Status == domain.TicketStatusOpen {
			counts[ticket.Classification.Category]++
		}
	}
	out := make([]HeatmapCell, 0, len(counts))
	for category, count := range counts {
		intensity := 0.0
		if total := len(tickets); total > 0 {
			intensity = math.Min(100, math.Round(float64(count)/float64(total)*heatmapIntensityScale))
		}
		out = append(out, HeatmapCell{Category: category, Count: count, Intensity: intensity})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Category < out[j].Category
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// PrioritySpike flags more than two critical tickets created within window.
func (w *WorkloadIndex) PrioritySpike(ctx context.Context, window time.Duration) (PrioritySpike, error) {
	if window <= 0 {
		window = defaultSpikeWindow
	}
	tickets, err := w.tickets.List(ctx, repository.TicketFilter{Priorities: []domain.TicketPriority{domain.TicketPriorityCritical}})
	if err != nil {
		return PrioritySpike{}, apperrors.MapError(err)
	}
	since := w.nowFn().Add(-window)
	categories := make(map[string]int)
	count := 0
	for _, ticket := range tickets {
		if ticket.CreatedAt.Before(since) {
			continue
		}
		count++
		categories[ticket.Classification.Category]++
	}
	spike := PrioritySpike{CriticalCount: count, Window: window}
	if count <= spikeCriticalMinimum {
		return spike, nil
	}
	spike.Detected = true
	best := -1
	for category, n := range categories {
		if n > best || (n == best && category < spike.TopCategory) {
			best = n
			spike.TopCategory = category
		}
	}
	return spike, nil
}

func aggregateWorkload(tickets []domain.Ticket) []AgentWorkload {
	type acc struct {
		active, resolved int
		hours            float64
		timed            int
	}
	accs := make(map[string]*acc)
	for _, ticket := range tickets {
		if ticket.AssignedTo == nil {
			continue
		}
		a, ok := accs[*ticket.AssignedTo]
		if !ok {
			a = &acc{}
			accs[*ticket.AssignedTo] = a
		}
		switch {
		case ticket.Status.IsActive():
			a.active++
		case ticket.Status == domain.TicketStatusResolved:
			a.resolved++
			if ticket.ResolvedAt != nil {
				a.hours += ticket.ResolvedAt.Sub(ticket.CreatedAt).Hours()
				a.timed++
			}
		}
	}
	out := make([]AgentWorkload, 0, len(accs))
	for email, a := range accs {
		avg := 0.0
		if a.timed > 0 {
			avg = a.hours / float64(a.timed)
		}
		// Score on the true mean; only the reported average is rounded.
		out = append(out, AgentWorkload{
			AgentEmail:         email,
			ActiveTickets:      a.active,
			ResolvedTickets:    a.resolved,
			AvgResolutionHours: math.Round(avg*10) / 10,
			Efficiency:         math.Round(Efficiency(a.active, a.resolved, avg)),
			IsOverloaded:       a.active > overloadThreshold,
		})
	}
	return out
}

func sortByEfficiency(loads []AgentWorkload) {
	sort.Slice(loads, func(i, j int) bool {
		if loads[i].Efficiency != loads[j].Efficiency {
			return loads[i].Efficiency > loads[j].Efficiency
		}
		return loads[i].AgentEmail < loads[j].AgentEmail
	})
}
