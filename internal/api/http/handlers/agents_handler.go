package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

// AgentsHandler serves derived dashboard views: workload, stats and presence.
type AgentsHandler struct {
	workload *service.WorkloadIndex
	stats    *service.StatsService
	exports  *service.ExportService
	presence *events.Registry
}

// NewAgentsHandler constructs handler.
func NewAgentsHandler(workload *service.WorkloadIndex, stats *service.StatsService, exports *service.ExportService, presence *events.Registry) *AgentsHandler {
	return &AgentsHandler{workload: workload, stats: stats, exports: exports, presence: presence}
}

// Me GET /me.
func (h *AgentsHandler) Me(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewIdentityResponse(identity)})
}

// Export GET /me/export.
func (h *AgentsHandler) Export(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	export, err := h.exports.Export(c.UserContext(), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.UserExportResponse{User: dto.NewIdentityResponse(identity), UserExport: export}})
}

// Workload GET /agents/workload.
func (h *AgentsHandler) Workload(c *fiber.Ctx) error {
	loads, err := h.workload.Compute(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": loads})
}

// Leaderboard GET /agents/leaderboard.
func (h *AgentsHandler) Leaderboard(c *fiber.Ctx) error {
	board, err := h.workload.Leaderboard(c.UserContext(), parseInt(c.Query("limit"), 0))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": board})
}

// LiveStats GET /stats/live.
func (h *AgentsHandler) LiveStats(c *fiber.Ctx) error {
	stats, err := h.stats.Live(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": stats})
}

// Heatmap GET /stats/heatmap.
func (h *AgentsHandler) Heatmap(c *fiber.Ctx) error {
	cells, err := h.workload.CategoryHeatmap(c.UserContext(), parseInt(c.Query("limit"), 0))
	if err != nil {
		return err
	}
	window := time.Duration(parseInt(c.Query("spike_window_minutes"), 0)) * time.Minute
	spike, err := h.workload.PrioritySpike(c.UserContext(), window)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"categories": cells, "spike": spike}})
}

// Presence GET /presence.
func (h *AgentsHandler) Presence(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	resp := dto.PresenceResponse{
		AgentsOnline: h.presence.Count(domain.RoleAgent),
		Counts: map[domain.Role]int{
			domain.RoleUser:  h.presence.Count(domain.RoleUser),
			domain.RoleAgent: h.presence.Count(domain.RoleAgent),
			domain.RoleAdmin: h.presence.Count(domain.RoleAdmin),
		},
	}
	if identity.Role.IsStaff() {
		for _, entry := range h.presence.Snapshot() {
			resp.Connections = append(resp.Connections, dto.PresenceConnection{Email: entry.Email, Role: entry.Role})
		}
	}
	return c.JSON(fiber.Map{"data": resp})
}
