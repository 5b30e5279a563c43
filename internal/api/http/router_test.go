package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-service/internal/auth"
	"github.com/spec-kit/helpdesk-service/internal/config"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/observability"
	"github.com/spec-kit/helpdesk-service/internal/repository/memory"
	"github.com/spec-kit/helpdesk-service/internal/service"
)

type testServer struct {
	app    *fiber.App
	hub    *events.Hub
	tokens map[domain.Role]string
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	people := map[domain.Role]domain.Identity{
		domain.RoleUser:  {ID: "u1", Email: "user@example.com", Role: domain.RoleUser},
		domain.RoleAgent: {ID: "a1", Email: "agent@example.com", Role: domain.RoleAgent},
		domain.RoleAdmin: {ID: "x1", Email: "admin@example.com", Role: domain.RoleAdmin},
	}
	tokenManager := auth.NewTokenManager("router-test", 5)
	tokens := make(map[domain.Role]string)
	for role, identity := range people {
		identity := identity
		require.NoError(t, store.Identities().Upsert(ctx, &identity))
		raw, _, err := tokenManager.GenerateToken(identity)
		require.NoError(t, err)
		tokens[role] = raw
	}

	metrics := observability.NewMetrics()
	hub := events.NewHub(events.NewRegistry(), 8, nil, events.WithRecorder(metrics))
	notifier := service.NewNotificationService(service.NotificationDependencies{
		NotificationRepo: store.Notifications(),
		Publisher:        hub,
		Config:           config.NotificationConfig{ListLimit: 20},
	})
	workload := service.NewWorkloadIndex(store.Tickets(), store.Identities(), nil)
	tickets := service.NewTicketService(service.TicketDependencies{
		TicketRepo:   store.Tickets(),
		IdentityRepo: store.Identities(),
		Notifier:     notifier,
		Publisher:    hub,
	})
	assignments := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:   store.Tickets(),
		IdentityRepo: store.Identities(),
		Workload:     workload,
		Notifier:     notifier,
		Publisher:    hub,
	})
	archive := service.NewArchiveService(service.ArchiveDependencies{
		TicketRepo:  store.Tickets(),
		ArchiveRepo: store.Archive(),
		Publisher:   hub,
	})
	stats := service.NewStatsService(store.Tickets(), store.Identities(), hub.Presence(), nil)
	exports := service.NewExportService(store.Tickets(), store.Notifications(), nil)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("helpdesk-test", "test", nil, nil, metrics, hub),
		Tickets:        handlers.NewTicketsHandler(tickets, assignments),
		Archive:        handlers.NewArchiveHandler(archive),
		Notifications:  handlers.NewNotificationsHandler(notifier),
		Agents:         handlers.NewAgentsHandler(workload, stats, exports, hub.Presence()),
		Stream:         handlers.NewStreamHandler(hub, time.Second, make(chan struct{}), nil),
		AuthMiddleware: auth.NewAuthMiddleware(tokenManager, store.Identities()),
	})
	return &testServer{app: app, hub: hub, tokens: tokens}
}

type envelope struct {
	Data        json.RawMessage `json:"data"`
	Subscribers *int            `json:"subscribers"`
	Error       *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, role domain.Role, body any) (int, envelope) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	if token, ok := s.tokens[role]; ok {
		req.Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp.StatusCode, env
}

func TestTicketLifecycleOverHTTP(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, fiber.MethodPost, "/api/tickets", "", map[string]any{"title": "x", "description": "y"})
	assert.Equal(t, fiber.StatusUnauthorized, status)
	require.NotNil(t, env.Error)
	assert.Equal(t, "UNAUTHORIZED", env.Error.Code)

	status, env = srv.do(t, fiber.MethodPost, "/api/tickets", domain.RoleUser, map[string]any{
		"title":       "VPN broken",
		"description": "cannot reach intranet",
		"classification": map[string]any{
			"category":            "network",
			"priority":            "critical",
			"category_confidence": 0.91,
			"priority_confidence": 0.77,
			"entities":            map[string]any{"devices": []string{"laptop"}},
		},
	})
	require.Equal(t, fiber.StatusCreated, status)
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "open", created.Status)

	status, env = srv.do(t, fiber.MethodPatch, "/api/tickets/"+created.ID+"/status", domain.RoleUser, map[string]any{"status": "in_progress"})
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, env = srv.do(t, fiber.MethodPatch, "/api/tickets/"+created.ID+"/status", domain.RoleAgent, map[string]any{"status": "closed"})
	assert.Equal(t, fiber.StatusConflict, status)
	assert.Equal(t, "INVALID_TRANSITION", env.Error.Code)

	status, env = srv.do(t, fiber.MethodPatch, "/api/tickets/"+created.ID+"/assign", domain.RoleAgent, map[string]any{"agent_email": "user@example.com"})
	assert.Equal(t, fiber.StatusUnprocessableEntity, status)
	assert.Equal(t, "INVALID_AGENT", env.Error.Code)

	status, _ = srv.do(t, fiber.MethodPatch, "/api/tickets/"+created.ID+"/status", domain.RoleAgent, map[string]any{
		"status":    "in_progress",
		"assign_to": "agent@example.com",
	})
	assert.Equal(t, fiber.StatusOK, status)

	status, env = srv.do(t, fiber.MethodGet, "/api/tickets/"+created.ID, domain.RoleUser, nil)
	require.Equal(t, fiber.StatusOK, status)
	var detail struct {
		AssignedTo *string `json:"assigned_to"`
		SLA        struct {
			Priority string `json:"priority"`
		} `json:"sla"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &detail))
	require.NotNil(t, detail.AssignedTo)
	assert.Equal(t, "agent@example.com", *detail.AssignedTo)
	assert.Equal(t, "critical", detail.SLA.Priority)

	status, env = srv.do(t, fiber.MethodGet, "/api/notifications", domain.RoleUser, nil)
	require.Equal(t, fiber.StatusOK, status)
	var inbox struct {
		Items  []map[string]any `json:"items"`
		Unread int              `json:"unread"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &inbox))
	assert.Equal(t, 3, inbox.Unread)
}

func TestBulkArchiveOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	status, env := srv.do(t, fiber.MethodPost, "/api/tickets", domain.RoleUser, map[string]any{"title": "a", "description": "b"})
	require.Equal(t, fiber.StatusCreated, status)
	var created struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	status, _ = srv.do(t, fiber.MethodPost, "/api/tickets/bulk-archive", domain.RoleUser, map[string]any{
		"ticket_ids": []string{created.ID},
		"reason":     "mine",
	})
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env = srv.do(t, fiber.MethodPost, "/api/tickets/bulk-archive", domain.RoleAgent, map[string]any{
		"ticket_ids": []string{created.ID, "missing"},
		"reason":     "cleanup",
	})
	require.Equal(t, fiber.StatusMultiStatus, status)
	var result struct {
		Archived int `json:"archived"`
		Failed   int `json:"failed"`
		Results  []struct {
			TicketID string `json:"ticket_id"`
			Success  bool   `json:"success"`
			Error    *struct {
				Code string `json:"code"`
			} `json:"error"`
		} `json:"results"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &result))
	assert.Equal(t, 1, result.Archived)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Results, 2)
	assert.True(t, result.Results[0].Success)
	require.NotNil(t, result.Results[1].Error)
	assert.Equal(t, "NOT_FOUND", result.Results[1].Error.Code)

	status, env = srv.do(t, fiber.MethodGet, "/api/tickets/"+created.ID, domain.RoleAgent, nil)
	assert.Equal(t, fiber.StatusNotFound, status)

	status, env = srv.do(t, fiber.MethodGet, "/api/archived", domain.RoleUser, nil)
	require.Equal(t, fiber.StatusOK, status)
	var archived []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &archived))
	assert.Len(t, archived, 1)
}

func TestGuardsAndHealth(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, fiber.MethodGet, "/api/agents/workload", domain.RoleUser, nil)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", env.Error.Code)

	status, _ = srv.do(t, fiber.MethodGet, "/api/agents/workload", domain.RoleAgent, nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, _ = srv.do(t, fiber.MethodDelete, "/api/archived", domain.RoleAgent, nil)
	assert.Equal(t, fiber.StatusForbidden, status)

	status, env = srv.do(t, fiber.MethodGet, "/api/nowhere", domain.RoleAdmin, nil)
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", env.Error.Code)

	status, _ = srv.do(t, fiber.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env = srv.do(t, fiber.MethodGet, "/health/ready", "", nil)
	assert.Equal(t, fiber.StatusOK, status)

	status, env = srv.do(t, fiber.MethodGet, "/health/metrics", "", nil)
	require.Equal(t, fiber.StatusOK, status)
	assert.Contains(t, string(env.Data), "requests")
	require.NotNil(t, env.Subscribers)
	assert.Equal(t, 0, *env.Subscribers)

	sub := srv.hub.Subscribe(context.Background(), domain.Identity{ID: "watcher", Email: "watch@example.com", Role: domain.RoleAgent})
	defer srv.hub.Unsubscribe(context.Background(), sub)
	_, env = srv.do(t, fiber.MethodGet, "/health/metrics", "", nil)
	require.NotNil(t, env.Subscribers)
	assert.Equal(t, 1, *env.Subscribers)
}

func TestExportOverHTTP(t *testing.T) {
	srv := newTestServer(t)
	status, _ := srv.do(t, fiber.MethodPost, "/api/tickets", domain.RoleUser, map[string]any{"title": "a", "description": "b"})
	require.Equal(t, fiber.StatusCreated, status)

	status, env := srv.do(t, fiber.MethodGet, "/api/me/export", domain.RoleUser, nil)
	require.Equal(t, fiber.StatusOK, status)
	var export struct {
		User struct {
			Email string `json:"email"`
		} `json:"user"`
		Stats struct {
			TotalTickets int `json:"total_tickets"`
			OpenTickets  int `json:"open_tickets"`
		} `json:"stats"`
		Notifications []map[string]any `json:"notifications"`
		TotalRecords  int              `json:"total_records"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &export))
	assert.Equal(t, "user@example.com", export.User.Email)
	assert.Equal(t, 1, export.Stats.TotalTickets)
	assert.Equal(t, 1, export.Stats.OpenTickets)
	assert.Len(t, export.Notifications, 1)
	assert.Equal(t, 3, export.TotalRecords)

	status, env = srv.do(t, fiber.MethodGet, "/api/me/export", domain.RoleAgent, nil)
	require.Equal(t, fiber.StatusOK, status)
	require.NoError(t, json.Unmarshal(env.Data, &export))
	assert.Equal(t, "agent@example.com", export.User.Email)
}
