package bookings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var bookingRowColumns = []string{
	"id", "service_id", "booking_date", "start_minute", "end_minute",
	"patient_name", "patient_email", "patient_phone", "status", "payment_method", "payment_reference",
	"sync_status", "external_event_id", "sync_attempts", "last_sync_error", "created_at", "updated_at", "cancelled_at",
}

func addBookingRow(rows *pgxmock.Rows, id uuid.UUID, date string, start, end int, status Status, sync SyncStatus) *pgxmock.Rows {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	var cancelledAt *time.Time
	return rows.AddRow(
		id, int64(1), date, start, end,
		"Ada", "ada@example.com", "", string(status), "card", "pay_1",
		string(sync), "", 0, "", now, now, cancelledAt,
	)
}

func newMockStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewPostgresStore(mock), mock
}

func expectServiceDuration(mock pgxmock.PgxPoolIface, serviceID int64, minutes int) {
	mock.ExpectQuery("SELECT duration_minutes FROM services WHERE id = \\$1 FOR SHARE").WithArgs(serviceID).
		WillReturnRows(pgxmock.NewRows([]string{"duration_minutes"}).AddRow(minutes))
}

func TestPostgresStore_ReserveInsertsUnderDateLock(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("2025-06-02").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	expectServiceDuration(mock, 1, 30)
	mock.ExpectQuery("WHERE booking_date").WithArgs("2025-06-02").
		WillReturnRows(addBookingRow(pgxmock.NewRows(bookingRowColumns), uuid.New(), "2025-06-02", 540, 570, StatusPending, SyncSynced))
	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	var checked []Booking
	b := newBooking("2025-06-02", 600, 630)
	err := store.Reserve(context.Background(), b, func(existing []Booking) error {
		checked = existing
		return nil
	})
	require.NoError(t, err)
	assert.Len(t, checked, 1)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, SyncNotAttempted, b.SyncStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReserveRejectsOverlapWithoutInsert(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("2025-06-02").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	expectServiceDuration(mock, 1, 30)
	mock.ExpectQuery("WHERE booking_date").WithArgs("2025-06-02").
		WillReturnRows(addBookingRow(pgxmock.NewRows(bookingRowColumns), uuid.New(), "2025-06-02", 600, 630, StatusConfirmed, SyncSynced))
	mock.ExpectRollback()

	err := store.Reserve(context.Background(), newBooking("2025-06-02", 615, 645), nil)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReserveMapsExclusionViolation(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("2025-06-02").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	expectServiceDuration(mock, 1, 30)
	mock.ExpectQuery("WHERE booking_date").WithArgs("2025-06-02").WillReturnRows(pgxmock.NewRows(bookingRowColumns))
	mock.ExpectExec("INSERT INTO bookings").WillReturnError(&pgconn.PgError{Code: "23P01", ConstraintName: "bookings_no_overlap"})
	mock.ExpectRollback()

	err := store.Reserve(context.Background(), newBooking("2025-06-02", 600, 630), nil)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReserveInsertFailureRollsBack(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("2025-06-02").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	expectServiceDuration(mock, 1, 30)
	mock.ExpectQuery("WHERE booking_date").WithArgs("2025-06-02").WillReturnRows(pgxmock.NewRows(bookingRowColumns))
	mock.ExpectExec("INSERT INTO bookings").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := store.Reserve(context.Background(), newBooking("2025-06-02", 600, 630), nil)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReserveRejectsChangedServiceDuration(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("2025-06-02").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	expectServiceDuration(mock, 1, 45)
	mock.ExpectRollback()

	err := store.Reserve(context.Background(), newBooking("2025-06-02", 600, 630), nil)
	assert.ErrorIs(t, err, ErrSlotUnavailable)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ReserveUnknownService(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("2025-06-02").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("FROM services WHERE id = \\$1 FOR SHARE").WithArgs(int64(1)).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := store.Reserve(context.Background(), newBooking("2025-06-02", 600, 630), nil)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CancelUnknownBooking(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT to_char").WithArgs(id).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.Cancel(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CancelAlreadyCancelled(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT to_char").WithArgs(id).WillReturnRows(pgxmock.NewRows([]string{"booking_date"}).AddRow("2025-06-02"))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("2025-06-02").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("UPDATE bookings SET status = 'cancelled'").WithArgs(id, pgxmock.AnyArg()).WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	_, err := store.Cancel(context.Background(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CancelActiveBooking(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT to_char").WithArgs(id).WillReturnRows(pgxmock.NewRows([]string{"booking_date"}).AddRow("2025-06-02"))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("2025-06-02").WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectQuery("UPDATE bookings SET status = 'cancelled'").WithArgs(id, pgxmock.AnyArg()).
		WillReturnRows(addBookingRow(pgxmock.NewRows(bookingRowColumns), id, "2025-06-02", 600, 630, StatusCancelled, SyncSynced))
	mock.ExpectCommit()

	b, err := store.Cancel(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)
	assert.Equal(t, "10:00", b.StartTime())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkSyncedUnknownBooking(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectExec("UPDATE bookings SET sync_status = 'synced'").
		WithArgs(id, "evt-1", 1, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.MarkSynced(context.Background(), id, "evt-1", 1)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListAppliesFilters(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("booking_date = \\$1::date AND sync_status = \\$2").
		WithArgs("2025-06-02", "failed", 25).
		WillReturnRows(addBookingRow(pgxmock.NewRows(bookingRowColumns), uuid.New(), "2025-06-02", 600, 630, StatusPending, SyncFailed))

	got, err := store.List(context.Background(), ListFilter{Date: "2025-06-02", SyncStatus: SyncFailed, Limit: 25})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, SyncFailed, got[0].SyncStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ConfirmCancelledBooking(t *testing.T) {
	store, mock := newMockStore(t)
	id := uuid.New()

	mock.ExpectQuery("UPDATE bookings SET status = 'confirmed'").WithArgs(id, pgxmock.AnyArg()).WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("WHERE id = \\$1").WithArgs(id).
		WillReturnRows(addBookingRow(pgxmock.NewRows(bookingRowColumns), id, "2025-06-02", 600, 630, StatusCancelled, SyncSynced))

	_, err := store.Confirm(context.Background(), id)
	assert.ErrorIs(t, err, ErrValidation)
	assert.NoError(t, mock.ExpectationsWereMet())
}
