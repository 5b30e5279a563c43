package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
)

func TestLiveStats(t *testing.T) {
	env := newTestEnv(t, false)
	now := env.clock.Now()
	rating := func(v int) *int { return &v }

	seedTicket(t, env, domain.Ticket{ID: "today-open", Status: domain.TicketStatusOpen, CreatedAt: now.Add(-time.Hour)})
	seedTicket(t, env, domain.Ticket{
		ID:         "today-resolved",
		Status:     domain.TicketStatusResolved,
		CreatedAt:  now.Add(-2 * time.Hour),
		ResolvedAt: resolvedAfter(now.Add(-2*time.Hour), 40*time.Minute),
		Feedback:   domain.Feedback{Submitted: true, Rating: rating(4), At: resolvedAfter(now, -time.Minute)},
	})
	seedTicket(t, env, domain.Ticket{
		ID:         "yesterday-resolved",
		Status:     domain.TicketStatusResolved,
		CreatedAt:  now.Add(-26 * time.Hour),
		ResolvedAt: resolvedAfter(now.Add(-26*time.Hour), 20*time.Minute),
		Feedback:   domain.Feedback{Submitted: true, Rating: rating(5), At: resolvedAfter(now, -24*time.Hour)},
	})
	seedTicket(t, env, domain.Ticket{ID: "ancient", Status: domain.TicketStatusInProgress, CreatedAt: now.Add(-60 * 24 * time.Hour)})

	registry := events.NewRegistry()
	registry.Connect("c1", agentOne)
	registry.Connect("c2", submitter)

	stats, err := NewStatsService(env.store.Tickets(), env.store.Identities(), registry, env.clock.Now).Live(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, stats.TicketsToday)
	assert.Equal(t, 1, stats.ResolvedToday)
	assert.Equal(t, 2, stats.ActiveTickets)
	assert.Equal(t, 30, stats.AvgResponseMinutes)
	assert.Equal(t, "90%", stats.SatisfactionRate)
	assert.Equal(t, 50, stats.ResolutionRate)
	assert.Equal(t, 67, stats.OverallResolutionRate)
	assert.Equal(t, 2, stats.SupportTeamMembers)
	assert.Equal(t, 1, stats.ActiveAgents)
	assert.Equal(t, TrendUp, stats.Trends["tickets"])
	assert.Equal(t, TrendStable, stats.Trends["resolved"])
}

func TestLiveStatsDefaults(t *testing.T) {
	env := newTestEnv(t, false)
	stats, err := NewStatsService(env.store.Tickets(), env.store.Identities(), nil, env.clock.Now).Live(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 30, stats.AvgResponseMinutes)
	assert.Equal(t, "N/A", stats.SatisfactionRate)
	assert.Zero(t, stats.ResolutionRate)
	assert.Zero(t, stats.ActiveAgents)
}
