package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/domain"
	"github.com/spec-kit/helpdesk-service/internal/events"
	"github.com/spec-kit/helpdesk-service/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-service/pkg/util/errorutil"
)

const defaultPurgeDays = 90

// ArchiveService moves tickets between the live and archived stores.
type ArchiveService struct {
	tickets   repository.TicketRepository
	archive   repository.ArchiveRepository
	announce  announcer
	purgeDays int
	logger    *zap.Logger
	nowFn     Clock
}

// ArchiveDependencies bundles collaborators for archiving.
type ArchiveDependencies struct {
	TicketRepo  repository.TicketRepository
	ArchiveRepo repository.ArchiveRepository
	Publisher   events.Publisher
	PurgeDays   int
	Logger      *zap.Logger
	Clock       Clock
}

// ArchiveListFilter narrows archived listings. DaysOld keeps records archived
// at least that many days ago.
type ArchiveListFilter struct {
	DaysOld    int
	Category   *string
	Status     *domain.TicketStatus
	ArchivedBy *string
	Limit      int
	Offset     int
}

// BulkArchiveResult reports the outcome for one ticket id.
type BulkArchiveResult struct {
	TicketID   string `json:"ticket_id"`
	ArchivedID string `json:"archived_id,omitempty"`
	Err        error  `json:"-"`
}

// Succeeded reports whether the id was archived.
func (r BulkArchiveResult) Succeeded() bool {
	return r.Err == nil
}

// NewArchiveService constructs the service.
func NewArchiveService(deps ArchiveDependencies) *ArchiveService {
	purge := deps.PurgeDays
	if purge <= 0 {
		purge = defaultPurgeDays
	}
	logger := loggerOrNop(deps.Logger)
	nowFn := clockOrDefault(deps.Clock)
	return &ArchiveService{
		tickets:   deps.TicketRepo,
		archive:   deps.ArchiveRepo,
		announce:  announcer{publisher: deps.Publisher, logger: logger, nowFn: nowFn},
		purgeDays: purge,
		logger:    logger,
		nowFn:     nowFn,
	}
}

// Archive snapshots a live ticket and removes it from the live store in one step.
func (s *ArchiveService) Archive(ctx context.Context, ticketID string, actor domain.Identity, reason string) (*domain.ArchivedTicket, error) {
	if err := requireStaff(actor, "archive tickets"); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewInvalidRequest("archive reason required", nil)
	}
	return s.archiveOne(ctx, ticketID, actor, reason)
}

// BulkArchive archives each id independently. Completed items stay archived
// whatever happens to later ones.
func (s *ArchiveService) BulkArchive(ctx context.Context, ticketIDs []string, actor domain.Identity, reason string) ([]BulkArchiveResult, error) {
	if err := requireStaff(actor, "archive tickets"); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperrors.NewInvalidRequest("archive reason required", nil)
	}
	if len(ticketIDs) == 0 {
		return nil, apperrors.NewInvalidRequest("ticket_ids required", nil)
	}

	results := make([]BulkArchiveResult, 0, len(ticketIDs))
	succeeded := 0
	for _, id := range ticketIDs {
		result := BulkArchiveResult{TicketID: id}
		archived, err := s.archiveOne(ctx, id, actor, reason)
		if err != nil {
			result.Err = err
		} else {
			result.ArchivedID = archived.ID
			succeeded++
		}
		results = append(results, result)
	}
	s.logger.Info("bulk archive finished",
		zap.Int("requested", len(ticketIDs)),
		zap.Int("archived", succeeded),
		zap.String("actor", actor.Email),
	)
	return results, nil
}

// Restore recreates the live ticket from its archive record.
func (s *ArchiveService) Restore(ctx context.Context, archivedID string, actor domain.Identity) (*domain.Ticket, error) {
	if err := requireAdmin(actor, "restore tickets"); err != nil {
		return nil, err
	}
	archived, err := s.archive.GetByID(ctx, archivedID)
	if err != nil {
		return nil, mapRepoError(err, "archived ticket", archivedID)
	}
	ticket := archived.RestoredTicket(s.nowFn())
	if err := s.archive.Restore(ctx, archivedID, &ticket); err != nil {
		return nil, mapRepoError(err, "ticket", ticket.ID)
	}
	s.logger.Info("ticket restored",
		zap.String("ticket_id", ticket.ID),
		zap.String("archived_id", archivedID),
		zap.String("actor", actor.Email),
	)
	s.announce.broadcast(ctx, events.EventTicketRestored, ticket, events.ArchivePayload{
		ArchivedID: archivedID,
		By:         actor.Email,
	})
	return &ticket, nil
}

// PermanentDelete irreversibly removes an archive record.
func (s *ArchiveService) PermanentDelete(ctx context.Context, archivedID string, actor domain.Identity) error {
	if err := requireAdmin(actor, "delete archived tickets"); err != nil {
		return err
	}
	archived, err := s.archive.GetByID(ctx, archivedID)
	if err != nil {
		return mapRepoError(err, "archived ticket", archivedID)
	}
	if err := s.archive.Delete(ctx, archivedID); err != nil {
		return mapRepoError(err, "archived ticket", archivedID)
	}
	s.logger.Warn("archived ticket permanently deleted",
		zap.String("archived_id", archivedID),
		zap.String("ticket_id", archived.OriginalTicketID),
		zap.String("actor", actor.Email),
	)
	s.announce.broadcast(ctx, events.EventTicketDeleted, archived.Ticket, events.ArchivePayload{
		ArchivedID: archivedID,
		By:         actor.Email,
	})
	return nil
}

// ListArchived returns archive records, newest archive first. Users only
// see their own.
func (s *ArchiveService) ListArchived(ctx context.Context, actor domain.Identity, filter ArchiveListFilter) ([]domain.ArchivedTicket, error) {
	if filter.DaysOld < 0 {
		return nil, apperrors.NewInvalidRequest("days_old must not be negative", map[string]any{"days_old": filter.DaysOld})
	}
	repoFilter := repository.ArchiveFilter{ArchivedBy: filter.ArchivedBy}
	if !actor.Role.IsStaff() {
		email := actor.Email
		repoFilter.SubmitterEmail = &email
	}
	if filter.DaysOld > 0 {
		before := s.nowFn().Add(-time.Duration(filter.DaysOld) * 24 * time.Hour)
		repoFilter.ArchivedBefore = &before
	}
	postFilter := filter.Category != nil || filter.Status != nil
	if !postFilter {
		repoFilter.Limit = filter.Limit
		repoFilter.Offset = filter.Offset
	}

	records, err := s.archive.List(ctx, repoFilter)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	if !postFilter {
		return records, nil
	}

	out := make([]domain.ArchivedTicket, 0, len(records))
	for _, record := range records {
		if filter.Category != nil && record.Ticket.Classification.Category != *filter.Category {
			continue
		}
		if filter.Status != nil && record.Ticket.Status != *filter.Status {
			continue
		}
		out = append(out, record)
	}
	return pageOf(out, filter.Limit, filter.Offset), nil
}

// PurgeArchived deletes records archived more than daysOld days ago. A zero
// daysOld uses the configured retention.
func (s *ArchiveService) PurgeArchived(ctx context.Context, daysOld int, actor domain.Identity) (int64, error) {
	if err := requireAdmin(actor, "purge archived tickets"); err != nil {
		return 0, err
	}
	if daysOld < 0 {
		return 0, apperrors.NewInvalidRequest("days_old must not be negative", map[string]any{"days_old": daysOld})
	}
	if daysOld == 0 {
		daysOld = s.purgeDays
	}
	cutoff := s.nowFn().Add(-time.Duration(daysOld) * 24 * time.Hour)
	removed, err := s.archive.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	s.logger.Info("archived tickets purged",
		zap.Int64("removed", removed),
		zap.Int("days_old", daysOld),
		zap.String("actor", actor.Email),
	)
	return removed, nil
}

func (s *ArchiveService) archiveOne(ctx context.Context, ticketID string, actor domain.Identity, reason string) (*domain.ArchivedTicket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	archived := domain.NewArchivedTicket(uuid.NewString(), *ticket, reason, actor, s.nowFn())
	if err := s.archive.Archive(ctx, &archived); err != nil {
		return nil, mapRepoError(err, "ticket", ticketID)
	}
	s.logger.Info("ticket archived",
		zap.String("ticket_id", ticketID),
		zap.String("archived_id", archived.ID),
		zap.String("actor", actor.Email),
	)
	s.announce.broadcast(ctx, events.EventTicketArchived, *ticket, events.ArchivePayload{
		ArchivedID: archived.ID,
		Reason:     reason,
		By:         actor.Email,
	})
	return &archived, nil
}

func pageOf[T any](items []T, limit, offset int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return []T{}
		}
		items = items[offset:]
	}
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
