package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// NotificationRepository persists per-recipient notifications.
type NotificationRepository interface {
	Create(ctx context.Context, notification *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	// Update persists the read state.
	Update(ctx context.Context, notification *domain.Notification) error
	// ListByRecipient returns newest first; a zero limit returns all.
	ListByRecipient(ctx context.Context, email string, limit int) ([]domain.Notification, error)
	CountUnread(ctx context.Context, email string) (int, error)
	ExistsForTicket(ctx context.Context, email string, kind domain.NotificationType, ticketID string) (bool, error)
}

type notificationRepository struct {
	pool *pgxpool.Pool
}

// NewNotificationRepository instantiates the repository.
func NewNotificationRepository(pool *pgxpool.Pool) NotificationRepository {
	return &notificationRepository{pool: pool}
}

const notificationColumns = `id, recipient_email, type, title, message, data, ticket_id, read, read_at,
               priority, created_at, expires_at`

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	data, err := json.Marshal(n.Data)
	if err != nil {
		return fmt.Errorf("encode notification data: %w", err)
	}
	const query = `INSERT INTO notifications (` + notificationColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err = r.pool.Exec(ctx, query,
		n.ID,
		n.RecipientEmail,
		n.Type,
		n.Title,
		n.Message,
		data,
		n.TicketID,
		n.Read,
		n.ReadAt,
		n.Priority,
		n.CreatedAt,
		n.ExpiresAt,
	)
	return mapPgError(err)
}

func (r *notificationRepository) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id=$1`
	n, err := scanNotification(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, mapPgError(err)
	}
	return n, nil
}

func (r *notificationRepository) Update(ctx context.Context, n *domain.Notification) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE notifications SET read=$1, read_at=$2 WHERE id=$3`, n.Read, n.ReadAt, n.ID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, email string, limit int) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications
        WHERE recipient_email=$1 ORDER BY created_at DESC, id`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := r.pool.Query(ctx, query, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *n)
	}
	return result, rows.Err()
}

func (r *notificationRepository) CountUnread(ctx context.Context, email string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM notifications WHERE recipient_email=$1 AND NOT read`, email).Scan(&count)
	return count, err
}

func (r *notificationRepository) ExistsForTicket(ctx context.Context, email string, kind domain.NotificationType, ticketID string) (bool, error) {
	const query = `SELECT EXISTS (
            SELECT 1 FROM notifications WHERE recipient_email=$1 AND type=$2 AND ticket_id=$3)`
	var exists bool
	err := r.pool.QueryRow(ctx, query, email, kind, ticketID).Scan(&exists)
	return exists, err
}

func scanNotification(row rowScanner) (*domain.Notification, error) {
	var (
		n    domain.Notification
		data []byte
	)
	if err := row.Scan(
		&n.ID,
		&n.RecipientEmail,
		&n.Type,
		&n.Title,
		&n.Message,
		&data,
		&n.TicketID,
		&n.Read,
		&n.ReadAt,
		&n.Priority,
		&n.CreatedAt,
		&n.ExpiresAt,
	); err != nil {
		return nil, err
	}
	payload, err := domain.DecodeNotificationData(n.Type, data)
	if err != nil {
		return nil, err
	}
	n.Data = payload
	return &n, nil
}
