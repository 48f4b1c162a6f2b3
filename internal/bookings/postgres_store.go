package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool abstracts the pgx pool surface the store needs so pgxmock can stand in.
type PgxPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// exclusion_violation, raised by bookings_no_overlap.
const pgExclusionViolation = "23P01"

const bookingColumns = `id, service_id, to_char(booking_date, 'YYYY-MM-DD'), start_minute, end_minute,
	patient_name, patient_email, patient_phone, status, payment_method, payment_reference,
	sync_status, external_event_id, sync_attempts, last_sync_error, created_at, updated_at, cancelled_at`

// PostgresStore persists bookings in Postgres. Every admission and
// cancellation takes a transaction-scoped advisory lock keyed by date, and
// the bookings_no_overlap exclusion constraint backs the same invariant.
type PostgresStore struct {
	db  PgxPool
	now func() time.Time
}

var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a store over a pgx pool.
func NewPostgresStore(db PgxPool) *PostgresStore {
	if db == nil {
		panic("bookings: pgx pool required")
	}
	return &PostgresStore{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bookings: get %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: get %s: %w", id, err)
	}
	return b, nil
}

func (s *PostgresStore) ListActiveByDate(ctx context.Context, date string) ([]Booking, error) {
	return listActiveByDate(ctx, s.db, date)
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]Booking, error) {
	var (
		conds []string
		args  []any
	)
	if filter.Date != "" {
		args = append(args, filter.Date)
		conds = append(conds, fmt.Sprintf("booking_date = $%d::date", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.SyncStatus != "" {
		args = append(args, string(filter.SyncStatus))
		conds = append(conds, fmt.Sprintf("sync_status = $%d", len(args)))
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	args = append(args, limit)

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(` ORDER BY booking_date, start_minute LIMIT $%d`, len(args))

	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("bookings: list: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (s *PostgresStore) CountByService(ctx context.Context, serviceID int64) (int, error) {
	var count int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM bookings WHERE service_id = $1`, serviceID).Scan(&count); err != nil {
		return 0, fmt.Errorf("bookings: count by service: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) Reserve(ctx context.Context, b *Booking, check ReserveCheck) error {
	if b == nil {
		return Invalid("booking", "is required")
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("bookings: begin reserve: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := lockDate(ctx, tx, b.Date); err != nil {
		return err
	}
	if err := lockServiceDuration(ctx, tx, b); err != nil {
		return err
	}
	existing, err := listActiveByDate(ctx, tx, b.Date)
	if err != nil {
		return err
	}
	if other := conflicting(existing, b.StartMinute, b.EndMinute); other != nil {
		return fmt.Errorf("bookings: reserve %s %s: overlaps booking %s: %w", b.Date, b.StartTime(), other.ID, ErrSlotUnavailable)
	}
	if check != nil {
		if err := check(existing); err != nil {
			return err
		}
	}

	prepareReservation(b, s.now())
	_, err = tx.Exec(ctx, `
		INSERT INTO bookings (id, service_id, booking_date, start_minute, end_minute,
			patient_name, patient_email, patient_phone, status, payment_method, payment_reference,
			sync_status, external_event_id, sync_attempts, last_sync_error, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		b.ID, b.ServiceID, b.Date, b.StartMinute, b.EndMinute,
		b.Patient.Name, b.Patient.Email, b.Patient.Phone, string(b.Status), b.PaymentMethod, b.PaymentReference,
		string(b.SyncStatus), b.ExternalEventID, b.SyncAttempts, b.LastSyncError, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgExclusionViolation {
			return fmt.Errorf("bookings: reserve %s %s: %w", b.Date, b.StartTime(), ErrSlotUnavailable)
		}
		return fmt.Errorf("bookings: insert booking: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("bookings: commit reserve: %w", err)
	}
	return nil
}

func (s *PostgresStore) Cancel(ctx context.Context, id uuid.UUID) (*Booking, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("bookings: begin cancel: %w", err)
	}
	defer tx.Rollback(ctx)

	var date string
	err = tx.QueryRow(ctx, `SELECT to_char(booking_date, 'YYYY-MM-DD') FROM bookings WHERE id = $1`, id).Scan(&date)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bookings: cancel %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: cancel lookup: %w", err)
	}
	if err := lockDate(ctx, tx, date); err != nil {
		return nil, err
	}

	now := s.now()
	row := tx.QueryRow(ctx, `
		UPDATE bookings SET status = 'cancelled', cancelled_at = $2, updated_at = $2
		WHERE id = $1 AND status IN ('pending', 'confirmed')
		RETURNING `+bookingColumns, id, now)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bookings: cancel %s: already cancelled: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("bookings: cancel %s: %w", id, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("bookings: commit cancel: %w", err)
	}
	return b, nil
}

func (s *PostgresStore) Confirm(ctx context.Context, id uuid.UUID) (*Booking, error) {
	row := s.db.QueryRow(ctx, `
		UPDATE bookings SET status = 'confirmed', updated_at = $2
		WHERE id = $1 AND status = 'pending'
		RETURNING `+bookingColumns, id, s.now())
	b, err := scanBooking(row)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("bookings: confirm %s: %w", id, err)
	}

	current, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == StatusConfirmed {
		return current, nil
	}
	return nil, fmt.Errorf("bookings: confirm %s: %w", id, Invalid("status", "cancelled bookings cannot be confirmed"))
}

func (s *PostgresStore) MarkSynced(ctx context.Context, id uuid.UUID, eventID string, attempts int) error {
	return s.exec(ctx, "mark synced", id, `
		UPDATE bookings SET sync_status = 'synced', external_event_id = $2, sync_attempts = $3,
			last_sync_error = '', updated_at = $4
		WHERE id = $1`, id, eventID, attempts, s.now())
}

func (s *PostgresStore) MarkSyncFailed(ctx context.Context, id uuid.UUID, attempts int, reason string) error {
	return s.exec(ctx, "mark sync failed", id, `
		UPDATE bookings SET sync_status = 'failed', sync_attempts = $2, last_sync_error = $3, updated_at = $4
		WHERE id = $1`, id, attempts, reason, s.now())
}

func (s *PostgresStore) ClearExternalEvent(ctx context.Context, id uuid.UUID) error {
	return s.exec(ctx, "clear external event", id, `
		UPDATE bookings SET external_event_id = '', updated_at = $2
		WHERE id = $1`, id, s.now())
}

func (s *PostgresStore) ListUnsynced(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status IN ('pending', 'confirmed') AND sync_status = 'not_attempted' AND created_at < $1
		ORDER BY created_at ASC LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("bookings: list unsynced: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (s *PostgresStore) ListOrphanedEvents(ctx context.Context, cutoff time.Time, limit int) ([]Booking, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE status = 'cancelled' AND sync_status = 'synced' AND external_event_id <> '' AND updated_at < $1
		ORDER BY updated_at ASC LIMIT $2`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("bookings: list orphaned events: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func (s *PostgresStore) exec(ctx context.Context, action string, id uuid.UUID, sql string, args ...any) error {
	tag, err := s.db.Exec(ctx, sql, args...)
	if err != nil {
		return fmt.Errorf("bookings: %s: %w", action, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bookings: %s %s: %w", action, id, ErrNotFound)
	}
	return nil
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func lockDate(ctx context.Context, q querier, date string) error {
	if _, err := q.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext('booking:' || $1))`, date); err != nil {
		return fmt.Errorf("bookings: lock date %s: %w", date, err)
	}
	return nil
}

// lockServiceDuration share-locks the service row until commit and checks the
// interval still matches its duration. The catalog takes the same row FOR
// UPDATE before changing a duration.
func lockServiceDuration(ctx context.Context, tx pgx.Tx, b *Booking) error {
	var duration int
	err := tx.QueryRow(ctx, `SELECT duration_minutes FROM services WHERE id = $1 FOR SHARE`, b.ServiceID).Scan(&duration)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bookings: reserve: service %d: %w", b.ServiceID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("bookings: lock service %d: %w", b.ServiceID, err)
	}
	if duration != b.EndMinute-b.StartMinute {
		return fmt.Errorf("bookings: reserve %s %s: service %d duration changed to %d minutes: %w",
			b.Date, b.StartTime(), b.ServiceID, duration, ErrSlotUnavailable)
	}
	return nil
}

func listActiveByDate(ctx context.Context, q querier, date string) ([]Booking, error) {
	rows, err := q.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE booking_date = $1::date AND status IN ('pending', 'confirmed')
		ORDER BY start_minute ASC`, date)
	if err != nil {
		return nil, fmt.Errorf("bookings: list active by date: %w", err)
	}
	defer rows.Close()
	return scanBookings(rows)
}

func scanBookings(rows pgx.Rows) ([]Booking, error) {
	var result []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("bookings: scan booking: %w", err)
		}
		result = append(result, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookings: iterate bookings: %w", err)
	}
	return result, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var (
		b                  Booking
		status, syncStatus string
	)
	err := row.Scan(
		&b.ID, &b.ServiceID, &b.Date, &b.StartMinute, &b.EndMinute,
		&b.Patient.Name, &b.Patient.Email, &b.Patient.Phone, &status, &b.PaymentMethod, &b.PaymentReference,
		&syncStatus, &b.ExternalEventID, &b.SyncAttempts, &b.LastSyncError, &b.CreatedAt, &b.UpdatedAt, &b.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	b.Status = Status(status)
	b.SyncStatus = SyncStatus(syncStatus)
	return &b, nil
}
