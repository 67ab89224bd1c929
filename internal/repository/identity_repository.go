package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/campusgate/edu-gateway/internal/domain"
)

// IdentityRepository defines persistence access for dashboard identities.
// Lookup misses return domain.ErrIdentityNotFound.
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByEmail(ctx context.Context, email string) (*domain.Identity, error)
	// Upsert returns the identity owning profile.Email, creating a student
	// identity when none exists. Role and activity of an existing identity are kept.
	Upsert(ctx context.Context, profile domain.OAuthProfile) (*domain.Identity, error)
	List(ctx context.Context, limit, offset int) ([]domain.Identity, error)
	Ping(ctx context.Context) error
}

type identityRepository struct {
	pool *pgxpool.Pool
}

// NewIdentityRepository returns a Postgres-backed implementation.
func NewIdentityRepository(pool *pgxpool.Pool) IdentityRepository {
	return &identityRepository{pool: pool}
}

const identityColumns = `id::text, email, name, picture, google_id, role, password_hash, active, created_at, updated_at`

func (r *identityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	const query = `
        INSERT INTO identities (email, name, picture, google_id, role, password_hash, active)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id::text, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		identity.Email,
		identity.Name,
		identity.Picture,
		identity.GoogleID,
		identity.Role,
		identity.PasswordHash,
		identity.Active,
	).Scan(&identity.ID, &identity.CreatedAt, &identity.UpdatedAt)
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE id::text=$1`
	return scanIdentity(r.pool.QueryRow(ctx, query, id))
}

func (r *identityRepository) GetByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE lower(email)=lower($1)`
	return scanIdentity(r.pool.QueryRow(ctx, query, email))
}

func (r *identityRepository) Upsert(ctx context.Context, profile domain.OAuthProfile) (*domain.Identity, error) {
	query := `
        INSERT INTO identities (email, name, picture, google_id, role, active)
        VALUES (lower($1), $2, $3, NULLIF($4, ''), 'student', TRUE)
        ON CONFLICT (email) DO UPDATE SET
            google_id  = COALESCE(identities.google_id, EXCLUDED.google_id),
            name       = CASE WHEN identities.name = '' THEN EXCLUDED.name ELSE identities.name END,
            picture    = EXCLUDED.picture,
            updated_at = NOW()
        RETURNING ` + identityColumns

	return scanIdentity(r.pool.QueryRow(ctx, query,
		profile.Email,
		profile.Name,
		profile.Picture,
		profile.ID,
	))
}

func (r *identityRepository) List(ctx context.Context, limit, offset int) ([]domain.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities ORDER BY created_at, email LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *identity)
	}
	return out, rows.Err()
}

func (r *identityRepository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func scanIdentity(row pgx.Row) (*domain.Identity, error) {
	var identity domain.Identity
	if err := row.Scan(
		&identity.ID,
		&identity.Email,
		&identity.Name,
		&identity.Picture,
		&identity.GoogleID,
		&identity.Role,
		&identity.PasswordHash,
		&identity.Active,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}
	return &identity, nil
}
