package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-service/internal/api/dto"
	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/service"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

// ArchiveHandler exposes archive, restore and deletion endpoints.
type ArchiveHandler struct {
	archive *service.ArchiveService
}

// NewArchiveHandler constructs handler.
func NewArchiveHandler(archive *service.ArchiveService) *ArchiveHandler {
	return &ArchiveHandler{archive: archive}
}

// Archive POST /tickets/:id/archive.
func (h *ArchiveHandler) Archive(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.ArchiveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	archived, err := h.archive.Archive(c.UserContext(), c.Params("id"), identity, req.Reason)
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewArchivedTicketResponse(archived)})
}

// BulkArchive POST /tickets/bulk-archive.
func (h *ArchiveHandler) BulkArchive(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	var req dto.BulkArchiveRequest
	if err := parseBody(c, &req); err != nil {
		return err
	}
	results, err := h.archive.BulkArchive(c.UserContext(), req.TicketIDs, identity, req.Reason)
	if err != nil {
		return err
	}
	resp := dto.BulkArchiveResponse{Results: make([]dto.BulkArchiveItem, 0, len(results))}
	for _, r := range results {
		item := dto.BulkArchiveItem{TicketID: r.TicketID, Success: r.Succeeded(), ArchivedID: r.ArchivedID}
		if r.Err != nil {
			de := apperrors.ToDomainError(r.Err)
			item.Error = &dto.ErrorBody{Code: de.Code, Message: de.Message, Details: de.Details}
			resp.Failed++
		} else {
			resp.Archived++
		}
		resp.Results = append(resp.Results, item)
	}
	status := http.StatusOK
	if resp.Failed > 0 && resp.Archived > 0 {
		status = http.StatusMultiStatus
	}
	return c.Status(status).JSON(fiber.Map{"data": resp})
}

// ListArchived GET /archived.
func (h *ArchiveHandler) ListArchived(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	limit, offset := pagination(c)
	filter := service.ArchiveListFilter{
		DaysOld:    parseInt(c.Query("days_old"), 0),
		Category:   optionalQuery(c, "category"),
		ArchivedBy: optionalQuery(c, "archived_by"),
		Limit:      limit,
		Offset:     offset,
	}
	if s := optionalQuery(c, "status"); s != nil {
		status := domain.TicketStatus(*s)
		if !status.Valid() {
			return apperrors.NewInvalidRequest("unknown status", map[string]any{"status": *s})
		}
		filter.Status = &status
	}
	records, err := h.archive.ListArchived(c.UserContext(), identity, filter)
	if err != nil {
		return err
	}
	items := make([]dto.ArchivedTicketResponse, 0, len(records))
	for i := range records {
		items = append(items, dto.NewArchivedTicketResponse(&records[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// Restore POST /archived/:id/restore.
func (h *ArchiveHandler) Restore(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	ticket, err := h.archive.Restore(c.UserContext(), c.Params("id"), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewTicketResponse(ticket, nil)})
}

// PermanentDelete DELETE /archived/:id.
func (h *ArchiveHandler) PermanentDelete(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	if err := h.archive.PermanentDelete(c.UserContext(), c.Params("id"), identity); err != nil {
		return err
	}
	return c.SendStatus(http.StatusNoContent)
}

// Purge DELETE /archived.
func (h *ArchiveHandler) Purge(c *fiber.Ctx) error {
	identity, err := currentIdentity(c)
	if err != nil {
		return err
	}
	removed, err := h.archive.PurgeArchived(c.UserContext(), parseInt(c.Query("days_old"), 0), identity)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": fiber.Map{"removed": removed}})
}
