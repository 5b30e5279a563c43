package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketFilter captures list parameters. A zero Limit returns every match.
type TicketFilter struct {
	SubmitterEmail *string
	AssignedTo     *string
	Category       *string
	Statuses       []domain.TicketStatus
	Priorities     []domain.TicketPriority
	SearchTerm     *string
	Limit          int
	Offset         int
}

// TicketRepository encapsulates live ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	// Update overwrites the stored ticket and bumps its version.
	Update(ctx context.Context, ticket *domain.Ticket) error
	// CompareAndUpdate writes only when the stored version equals expected.
	CompareAndUpdate(ctx context.Context, ticket *domain.Ticket, expected int64) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, title, description, submitter_id, submitter_email, category, priority,
               category_confidence, priority_confidence, entities, status, assigned_to, assigned_at,
               feedback, reassignment_history, version, created_at, updated_at, resolved_at`

const insertTicketQuery = `
        INSERT INTO tickets (` + ticketColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	if ticket.Version == 0 {
		ticket.Version = 1
	}
	return insertTicket(ctx, r.pool, ticket)
}

func insertTicket(ctx context.Context, db execer, ticket *domain.Ticket) error {
	args, err := ticketArgs(ticket)
	if err != nil {
		return err
	}
	_, err = db.Exec(ctx, insertTicketQuery, args...)
	return mapPgError(err)
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	return r.update(ctx, ticket, nil)
}

func (r *ticketRepository) CompareAndUpdate(ctx context.Context, ticket *domain.Ticket, expected int64) error {
	return r.update(ctx, ticket, &expected)
}

func (r *ticketRepository) update(ctx context.Context, ticket *domain.Ticket, expected *int64) error {
	entities, feedback, history, err := ticketJSON(ticket)
	if err != nil {
		return err
	}
	query := `
        UPDATE tickets SET title=$1, description=$2, category=$3, priority=$4,
            category_confidence=$5, priority_confidence=$6, entities=$7, status=$8,
            assigned_to=$9, assigned_at=$10, feedback=$11, reassignment_history=$12,
            updated_at=$13, resolved_at=$14, version=version+1
        WHERE id=$15`
	args := []any{
		ticket.Title,
		ticket.Description,
		ticket.Classification.Category,
		ticket.Classification.Priority,
		ticket.Classification.CategoryConfidence,
		ticket.Classification.PriorityConfidence,
		entities,
		ticket.Status,
		ticket.AssignedTo,
		ticket.AssignedAt,
		feedback,
		history,
		ticket.UpdatedAt,
		ticket.ResolvedAt,
		ticket.ID,
	}
	if expected != nil {
		args = append(args, *expected)
		query += " AND version=$16"
	}
	query += " RETURNING version"

	var version int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&version); err != nil {
		err = mapPgError(err)
		if errors.Is(err, ErrNotFound) && expected != nil {
			if _, getErr := r.GetByID(ctx, ticket.ID); getErr == nil {
				return ErrVersionConflict
			}
		}
		return err
	}
	ticket.Version = version
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, error) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.SubmitterEmail != nil {
		args = append(args, *filter.SubmitterEmail)
		clauses = append(clauses, fmt.Sprintf("submitter_email=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("assigned_to=$%d", len(args)))
	}
	if filter.Category != nil {
		args = append(args, *filter.Category)
		clauses = append(clauses, fmt.Sprintf("category=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, pr := range filter.Priorities {
			args = append(args, pr)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		search := "%" + strings.ToLower(strings.TrimSpace(*filter.SearchTerm)) + "%"
		args = append(args, search)
		placeholder := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf("(LOWER(title) LIKE %s OR LOWER(description) LIKE %s)", placeholder, placeholder))
	}

	query := fmt.Sprintf(`SELECT %s FROM tickets WHERE %s ORDER BY created_at DESC, id`,
		ticketColumns, strings.Join(clauses, " AND "))
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

	var result []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}

func ticketJSON(ticket *domain.Ticket) (entities, feedback, history []byte, err error) {
	if entities, err = json.Marshal(ticket.Classification.Entities); err != nil {
		return nil, nil, nil, fmt.Errorf("encode entities: %w", err)
	}
	if feedback, err = json.Marshal(ticket.Feedback); err != nil {
		return nil, nil, nil, fmt.Errorf("encode feedback: %w", err)
	}
	entries := ticket.ReassignmentHistory
	if entries == nil {
		entries = []domain.ReassignmentEntry{}
	}
	if history, err = json.Marshal(entries); err != nil {
		return nil, nil, nil, fmt.Errorf("encode reassignment history: %w", err)
	}
	return entities, feedback, history, nil
}

func ticketArgs(ticket *domain.Ticket) ([]any, error) {
	entities, feedback, history, err := ticketJSON(ticket)
	if err != nil {
		return nil, err
	}
	return []any{
		ticket.ID,
		ticket.Title,
		ticket.Description,
		ticket.SubmitterID,
		ticket.SubmitterEmail,
		ticket.Classification.Category,
		ticket.Classification.Priority,
		ticket.Classification.CategoryConfidence,
		ticket.Classification.PriorityConfidence,
		entities,
		ticket.Status,
		ticket.AssignedTo,
		ticket.AssignedAt,
		feedback,
		history,
		ticket.Version,
		ticket.CreatedAt,
		ticket.UpdatedAt,
		ticket.ResolvedAt,
	}, nil
}

func scanTicket(row rowScanner) (*domain.Ticket, error) {
	var (
		ticket                      domain.Ticket
		entities, feedback, history []byte
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.SubmitterID,
		&ticket.SubmitterEmail,
		&ticket.Classification.Category,
		&ticket.Classification.Priority,
		&ticket.Classification.CategoryConfidence,
		&ticket.Classification.PriorityConfidence,
		&entities,
		&ticket.Status,
		&ticket.AssignedTo,
		&ticket.AssignedAt,
		&feedback,
		&history,
		&ticket.Version,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ResolvedAt,
	); err != nil {
		return nil, err
	}
	if len(entities) > 0 {
		if err := json.Unmarshal(entities, &ticket.Classification.Entities); err != nil {
			return nil, fmt.Errorf("decode entities: %w", err)
		}
	}
	if len(feedback) > 0 {
		if err := json.Unmarshal(feedback, &ticket.Feedback); err != nil {
			return nil, fmt.Errorf("decode feedback: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &ticket.ReassignmentHistory); err != nil {
			return nil, fmt.Errorf("decode reassignment history: %w", err)
		}
	}
	return &ticket, nil
}
