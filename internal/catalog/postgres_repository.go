package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const serviceColumns = `id, name, duration_minutes, price_cents, category, active, created_at, updated_at`

// PostgresRepository stores services in the relational database.
type PostgresRepository struct {
	db DB
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(db DB) *PostgresRepository {
	if db == nil {
		panic("catalog: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, id int64) (*Service, error) {
	row := r.db.QueryRow(ctx, `SELECT `+serviceColumns+` FROM services WHERE id = $1`, id)
	svc, err := scanService(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrServiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("catalog: get service %d: %w", id, err)
	}
	return svc, nil
}

func (r *PostgresRepository) List(ctx context.Context, activeOnly bool) ([]Service, error) {
	query := `SELECT ` + serviceColumns + ` FROM services`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id ASC`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("catalog: list services: %w", err)
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		svc, err := scanService(rows)
		if err != nil {
			return nil, fmt.Errorf("catalog: scan service: %w", err)
		}
		out = append(out, *svc)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) Create(ctx context.Context, svc *Service) error {
	err := r.db.QueryRow(ctx, `
		INSERT INTO services (name, duration_minutes, price_cents, category, active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`,
		svc.Name, svc.DurationMinutes, svc.PriceCents, svc.Category, svc.Active,
	).Scan(&svc.ID, &svc.CreatedAt, &svc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: insert service: %w", err)
	}
	return nil
}

// Update rewrites a service. The row is locked FOR UPDATE first so a duration
// change and the bookings check cannot interleave with an admission, which
// holds the same row FOR SHARE until it commits.
func (r *PostgresRepository) Update(ctx context.Context, svc *Service) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("catalog: begin update service %d: %w", svc.ID, err)
	}
	defer tx.Rollback(ctx)

	var current int
	err = tx.QueryRow(ctx, `SELECT duration_minutes FROM services WHERE id = $1 FOR UPDATE`, svc.ID).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrServiceNotFound
	}
	if err != nil {
		return fmt.Errorf("catalog: lock service %d: %w", svc.ID, err)
	}
	if current != svc.DurationMinutes {
		var referenced bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM bookings WHERE service_id = $1)`, svc.ID).Scan(&referenced); err != nil {
			return fmt.Errorf("catalog: check service usage: %w", err)
		}
		if referenced {
			return ErrServiceInUse
		}
	}

	err = tx.QueryRow(ctx, `
		UPDATE services SET name = $2, duration_minutes = $3, price_cents = $4, category = $5, active = $6, updated_at = now()
		WHERE id = $1
		RETURNING updated_at`,
		svc.ID, svc.Name, svc.DurationMinutes, svc.PriceCents, svc.Category, svc.Active,
	).Scan(&svc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("catalog: update service %d: %w", svc.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("catalog: commit update service %d: %w", svc.ID, err)
	}
	return nil
}

func scanService(row pgx.Row) (*Service, error) {
	var svc Service
	if err := row.Scan(&svc.ID, &svc.Name, &svc.DurationMinutes, &svc.PriceCents, &svc.Category, &svc.Active, &svc.CreatedAt, &svc.UpdatedAt); err != nil {
		return nil, err
	}
	return &svc, nil
}
