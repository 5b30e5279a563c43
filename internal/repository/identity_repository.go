package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// IdentityRepository resolves authenticated actors.
type IdentityRepository interface {
	// Upsert inserts or refreshes an identity keyed by id.
	Upsert(ctx context.Context, identity *domain.Identity) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	// ListByRole returns identities holding any of roles, ordered by email.
	ListByRole(ctx context.Context, roles ...domain.Role) ([]domain.Identity, error)
}

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

func (r *identityRepository) Upsert(ctx context.Context, identity *domain.Identity) error {
	const query = `
        INSERT INTO identities (id, name, email, role)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (id) DO UPDATE SET name=EXCLUDED.name, email=EXCLUDED.email, role=EXCLUDED.role
        RETURNING created_at`
	err := r.pool.QueryRow(ctx, query,
		identity.ID,
		identity.Name,
		identity.Email,
		identity.Role,
	).Scan(&identity.CreatedAt)
	return mapPgError(err)
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	return r.fetchSingle(ctx, `SELECT id, name, email, role, created_at FROM identities WHERE id=$1`, id)
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	return r.fetchSingle(ctx, `SELECT id, name, email, role, created_at FROM identities WHERE email=$1`, email)
}

func (r *identityRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Identity, error) {
	var identity domain.Identity
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&identity.ID,
		&identity.Name,
		&identity.Email,
		&identity.Role,
		&identity.CreatedAt,
	); err != nil {
		return nil, mapPgError(err)
	}
	return &identity, nil
}

func (r *identityRepository) ListByRole(ctx context.Context, roles ...domain.Role) ([]domain.Identity, error) {
	if len(roles) == 0 {
		return nil, nil
	}
	args := make([]any, len(roles))
	placeholders := make([]string, len(roles))
	for i, role := range roles {
		args[i] = role
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	query := fmt.Sprintf(`SELECT id, name, email, role, created_at FROM identities
        WHERE role IN (%s) ORDER BY email`, strings.Join(placeholders, ","))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Identity
	for rows.Next() {
		var identity domain.Identity
		if err := rows.Scan(&identity.ID, &identity.Name, &identity.Email, &identity.Role, &identity.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, identity)
	}
	return result, rows.Err()
}
