package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/events"
)

// StreamHandler pushes hub events to a connected client as Server-Sent Events.
// Each open stream is one presence entry.
type StreamHandler struct {
	hub       *events.Hub
	heartbeat time.Duration
	shutdown  <-chan struct{}
	logger    *zap.Logger
}

// NewStreamHandler constructs handler. Streams end when shutdown is closed.
func NewStreamHandler(hub *events.Hub, heartbeat time.Duration, shutdown <-chan struct{}, logger *zap.Logger) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = 25 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StreamHandler{hub: hub, heartbeat: heartbeat, shutdown: shutdown, logger: logger}
}

// Stream GET /stream.
func (h *StreamHandler) Stream(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	sub := h.hub.Subscribe(context.Background(), identity)
	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer h.hub.Unsubscribe(context.Background(), sub)

		ticker := time.NewTicker(h.heartbeat)
		defer ticker.Stop()

		if err := writeComment(w, "connected "+sub.ID); err != nil {
			return
		}
		for {
			select {
			case <-h.shutdown:
				return
			case ev, ok := <-sub.Events:
				if !ok {
					return
				}
				if err := writeEvent(w, ev); err != nil {
					h.logger.Debug("stream closed", zap.String("subscription_id", sub.ID), zap.Error(err))
					return
				}
			case <-ticker.C:
				if err := writeComment(w, "ping"); err != nil {
					return
				}
			}
		}
	}))
	return nil
}

// writeEvent frames ev as one SSE message and flushes it.
func writeEvent(w *bufio.Writer, ev events.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if _, err := fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Kind, payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeComment(w *bufio.Writer, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return err
	}
	return w.Flush()
}
