package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// ArchiveFilter captures archive listing parameters.
type ArchiveFilter struct {
	SubmitterEmail *string
	ArchivedBy     *string
	// ArchivedBefore keeps rows archived at or before the instant.
	ArchivedBefore *time.Time
	Limit          int
	Offset         int
}

// ArchiveRepository moves tickets between the live and archive stores.
type ArchiveRepository interface {
	// Archive removes the live ticket and stores the snapshot in one step.
	// It fails with ErrVersionConflict when the live row is no longer at
	// archived.Ticket.Version, so a snapshot never replaces a newer write.
	Archive(ctx context.Context, archived *domain.ArchivedTicket) error
	// Restore removes the archive record and re-inserts ticket in one step.
	Restore(ctx context.Context, archivedID string, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.ArchivedTicket, error)
	List(ctx context.Context, filter ArchiveFilter) ([]domain.ArchivedTicket, error)
	Delete(ctx context.Context, id string) error
	// DeleteOlderThan purges records archived strictly before cutoff.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type archiveRepository struct {
	pool *pgxpool.Pool
}

// NewArchiveRepository instantiates the repository.
func NewArchiveRepository(pool *pgxpool.Pool) ArchiveRepository {
	return &archiveRepository{pool: pool}
}

const archiveColumns = `id, original_ticket_id, snapshot, submitter_email, archive_reason, archived_by,
               archived_by_id, archived_at, original_created_at, original_updated_at, original_resolved_at`

func (r *archiveRepository) Archive(ctx context.Context, archived *domain.ArchivedTicket) error {
	snapshot, err := json.Marshal(archived.Ticket)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM tickets WHERE id=$1 AND version=$2`,
			archived.OriginalTicketID, archived.Ticket.Version)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			var exists bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM tickets WHERE id=$1)`,
				archived.OriginalTicketID).Scan(&exists); err != nil {
				return err
			}
			if exists {
				return ErrVersionConflict
			}
			return ErrNotFound
		}
		const insert = `INSERT INTO archived_tickets (` + archiveColumns + `)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`
		_, err = tx.Exec(ctx, insert,
			archived.ID,
			archived.OriginalTicketID,
			snapshot,
			archived.Ticket.SubmitterEmail,
			archived.ArchiveReason,
			archived.ArchivedBy,
			archived.ArchivedByID,
			archived.ArchivedAt,
			archived.OriginalCreatedAt,
			archived.OriginalUpdatedAt,
			archived.OriginalResolvedAt,
		)
		return mapPgError(err)
	})
}

func (r *archiveRepository) Restore(ctx context.Context, archivedID string, ticket *domain.Ticket) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		cmd, err := tx.Exec(ctx, `DELETE FROM archived_tickets WHERE id=$1`, archivedID)
		if err != nil {
			return err
		}
		if cmd.RowsAffected() == 0 {
			return ErrNotFound
		}
		return insertTicket(ctx, tx, ticket)
	})
}

func (r *archiveRepository) GetByID(ctx context.Context, id string) (*domain.ArchivedTicket, error) {
	query := `SELECT ` + archiveColumns + ` FROM archived_tickets WHERE id=$1`
	archived, err := scanArchived(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return archived, nil
}

func (r *archiveRepository) List(ctx context.Context, filter ArchiveFilter) ([]domain.ArchivedTicket, error) {
	clauses := []string{"1=1"}
	args := []any{}
	if filter.SubmitterEmail != nil {
		args = append(args, *filter.SubmitterEmail)
		clauses = append(clauses, fmt.Sprintf("submitter_email=$%d", len(args)))
	}
	if filter.ArchivedBy != nil {
		args = append(args, *filter.ArchivedBy)
		clauses = append(clauses, fmt.Sprintf("archived_by=$%d", len(args)))
	}
	if filter.ArchivedBefore != nil {
		args = append(args, *filter.ArchivedBefore)
		clauses = append(clauses, fmt.Sprintf("archived_at <= $%d", len(args)))
	}

	query := fmt.Sprintf(`SELECT %s FROM archived_tickets WHERE %s ORDER BY archived_at DESC, id`,
		archiveColumns, strings.Join(clauses, " AND "))
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET %d", filter.Offset)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.ArchivedTicket
	for rows.Next() {
		archived, err := scanArchived(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *archived)
	}
	return result, rows.Err()
}

func (r *archiveRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM archived_tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *archiveRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM archived_tickets WHERE archived_at < $1`, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func scanArchived(row rowScanner) (*domain.ArchivedTicket, error) {
	var (
		archived  domain.ArchivedTicket
		snapshot  []byte
		submitter string
	)
	if err := row.Scan(
		&archived.ID,
		&archived.OriginalTicketID,
		&snapshot,
		&submitter,
		&archived.ArchiveReason,
		&archived.ArchivedBy,
		&archived.ArchivedByID,
		&archived.ArchivedAt,
		&archived.OriginalCreatedAt,
		&archived.OriginalUpdatedAt,
		&archived.OriginalResolvedAt,
	); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(snapshot, &archived.Ticket); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &archived, nil
}
