package handlers

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/wolfman30/clinic-booking/internal/bookings"
	"github.com/wolfman30/clinic-booking/pkg/logging"
)

const (
	calendarSyncMetric = "clinic_calendar_sync_total"
	failedSampleLimit  = 20
)

var activeStatuses = []string{string(bookings.StatusPending), string(bookings.StatusConfirmed)}

// CalendarSyncSummary is the staff view of calendar drift.
type CalendarSyncSummary struct {
	Success      bool                  `json:"success"`
	GeneratedAt  time.Time             `json:"generatedAt"`
	ByStatus     map[string]int        `json:"byStatus"`
	RecentFailed []FailedSyncBooking   `json:"recentFailed"`
	WorkerCalls  map[string]CallTotals `json:"workerCalls"`
}

// FailedSyncBooking is an active booking whose calendar event is missing.
type FailedSyncBooking struct {
	ID            uuid.UUID `json:"id"`
	BookingDate   string    `json:"bookingDate"`
	StartTime     string    `json:"startTime"`
	SyncAttempts  int       `json:"syncAttempts"`
	LastSyncError string    `json:"lastSyncError"`
}

// CallTotals counts bridge calls by outcome since process start.
type CallTotals map[string]float64

// CalendarSyncHandler reports how far the calendar has drifted from the store.
type CalendarSyncHandler struct {
	db       *sql.DB
	gatherer prometheus.Gatherer
	logger   *logging.Logger
	now      func() time.Time
}

// NewCalendarSyncHandler creates a CalendarSyncHandler. A nil gatherer uses
// the default prometheus registry.
func NewCalendarSyncHandler(db *sql.DB, gatherer prometheus.Gatherer, logger *logging.Logger) *CalendarSyncHandler {
	if logger == nil {
		logger = logging.Default()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &CalendarSyncHandler{db: db, gatherer: gatherer, logger: logger, now: time.Now}
}

// GetSummary returns sync status counts for active bookings, the most recent
// failures and this process's bridge call totals.
// GET /admin/calendar-sync/summary
func (h *CalendarSyncHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary := CalendarSyncSummary{
		Success:      true,
		GeneratedAt:  h.now().UTC(),
		ByStatus:     map[string]int{},
		RecentFailed: []FailedSyncBooking{},
		WorkerCalls:  snapshotCalendarCalls(h.gatherer),
	}
	if h.db == nil {
		writeJSON(w, http.StatusOK, summary)
		return
	}

	byStatus, err := h.countByStatus(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	summary.ByStatus = byStatus

	failed, err := h.recentFailed(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	summary.RecentFailed = failed
	writeJSON(w, http.StatusOK, summary)
}

func (h *CalendarSyncHandler) countByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT sync_status, COUNT(*)
		FROM bookings
		WHERE status = ANY($1)
		GROUP BY sync_status
	`, pq.Array(activeStatuses))
	if err != nil {
		return nil, fmt.Errorf("handlers: count sync status: %w", err)
	}
	defer rows.Close()

	out := map[string]int{
		string(bookings.SyncNotAttempted): 0,
		string(bookings.SyncSynced):       0,
		string(bookings.SyncFailed):       0,
	}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("handlers: scan sync status: %w", err)
		}
		out[status] = count
	}
	return out, rows.Err()
}

func (h *CalendarSyncHandler) recentFailed(ctx context.Context) ([]FailedSyncBooking, error) {
	rows, err := h.db.QueryContext(ctx, `
		SELECT id, to_char(booking_date, 'YYYY-MM-DD'), start_minute, sync_attempts, last_sync_error
		FROM bookings
		WHERE sync_status = 'failed' AND status = ANY($1)
		ORDER BY updated_at DESC
		LIMIT $2
	`, pq.Array(activeStatuses), failedSampleLimit)
	if err != nil {
		return nil, fmt.Errorf("handlers: list failed syncs: %w", err)
	}
	defer rows.Close()

	out := []FailedSyncBooking{}
	for rows.Next() {
		var f FailedSyncBooking
		var start int
		if err := rows.Scan(&f.ID, &f.BookingDate, &start, &f.SyncAttempts, &f.LastSyncError); err != nil {
			return nil, fmt.Errorf("handlers: scan failed sync: %w", err)
		}
		f.StartTime = bookings.FormatClock(start)
		out = append(out, f)
	}
	return out, rows.Err()
}

// snapshotCalendarCalls sums the calendar sync counter by operation and outcome.
func snapshotCalendarCalls(gatherer prometheus.Gatherer) map[string]CallTotals {
	out := map[string]CallTotals{}
	mfs, err := gatherer.Gather()
	if err != nil {
		return out
	}
	for _, mf := range mfs {
		if mf == nil || mf.GetName() != calendarSyncMetric {
			continue
		}
		for _, metric := range mf.Metric {
			if metric == nil || metric.GetCounter() == nil {
				continue
			}
			op := labelValue(metric, "operation")
			if out[op] == nil {
				out[op] = CallTotals{}
			}
			out[op][labelValue(metric, "outcome")] += metric.GetCounter().GetValue()
		}
	}
	return out
}

func labelValue(metric *dto.Metric, name string) string {
	for _, lp := range metric.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}
