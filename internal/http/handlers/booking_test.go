package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func slotStarts(t *testing.T, body map[string]any) []string {
	t.Helper()
	raw, ok := body["availableSlots"].([]any)
	require.True(t, ok, "availableSlots missing: %v", body)
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		out = append(out, s.(map[string]any)["start"].(string))
	}
	return out
}

func TestBookingFunnel(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/slots?date=2025-06-03&serviceId=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30", "11:00", "11:30"}, slotStarts(t, decodeBody(t, rec)))

	rec = env.do(t, http.MethodPost, "/booking", bookingBody("2025-06-03", "10:00"))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	booking := body["booking"].(map[string]any)
	assert.Equal(t, "pending", booking["status"])
	assert.Equal(t, "2025-06-03", booking["bookingDate"])
	assert.Equal(t, "10:00", booking["startTime"])
	assert.Equal(t, "10:30", booking["endTime"])
	assert.Equal(t, "not_attempted", booking["calendarSyncStatus"])
	assert.Len(t, env.calendar.creates, 1)

	rec = env.do(t, http.MethodGet, "/slots?date=2025-06-03&serviceId=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"09:00", "09:30", "10:30", "11:00", "11:30"}, slotStarts(t, decodeBody(t, rec)))

	rec = env.do(t, http.MethodPost, "/booking", bookingBody("2025-06-03", "10:00"))
	assert.Equal(t, http.StatusConflict, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "slot is no longer available", body["message"])

	id := booking["id"].(string)
	rec = env.do(t, http.MethodPost, "/booking/"+id+"/cancel", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decodeBody(t, rec)["success"])

	rec = env.do(t, http.MethodPost, "/booking/"+id+"/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/slots?date=2025-06-03&serviceId=1", nil)
	assert.Contains(t, slotStarts(t, decodeBody(t, rec)), "10:00")
}

func TestGetSlotsErrors(t *testing.T) {
	env := newTestEnv(t)

	cases := []struct {
		name   string
		path   string
		status int
	}{
		{"missing date", "/slots?serviceId=1", http.StatusBadRequest},
		{"bad date", "/slots?date=03-06-2025&serviceId=1", http.StatusBadRequest},
		{"bad service id", "/slots?date=2025-06-03&serviceId=abc", http.StatusBadRequest},
		{"unknown service", "/slots?date=2025-06-03&serviceId=99", http.StatusNotFound},
		{"inactive service", "/slots?date=2025-06-03&serviceId=2", http.StatusNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodGet, tc.path, nil)
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, false, decodeBody(t, rec)["success"])
		})
	}
}

func TestGetSlotsClosedDayIsEmpty(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/slots?date=2025-06-07&serviceId=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, slotStarts(t, decodeBody(t, rec)))
}

func TestCreateBookingErrors(t *testing.T) {
	env := newTestEnv(t)

	noContact := bookingBody("2025-06-03", "09:00")
	noContact["patientInfo"] = map[string]any{"name": "Grace Hopper"}
	unknown := bookingBody("2025-06-03", "09:00")
	unknown["serviceId"] = 99

	cases := []struct {
		name   string
		body   any
		status int
	}{
		{"empty body", "", http.StatusBadRequest},
		{"malformed json", "{", http.StatusBadRequest},
		{"unknown field", `{"serviceId":1,"surprise":true}`, http.StatusBadRequest},
		{"no contact", noContact, http.StatusBadRequest},
		{"unknown service", unknown, http.StatusNotFound},
		{"closed day", bookingBody("2025-06-07", "10:00"), http.StatusConflict},
		{"off grid", bookingBody("2025-06-03", "10:10"), http.StatusConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/booking", tc.body)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
		})
	}

	list, err := env.store.List(context.Background(), bookingsFilterAll)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestCancelBookingBadID(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/booking/not-a-uuid/cancel", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/booking/7f7c1c7e-2f0e-4a44-9d38-6f3b2b0e0d11/cancel", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListServicesHidesInactive(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/services", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	services := decodeBody(t, rec)["services"].([]any)
	require.Len(t, services, 1)
	assert.Equal(t, "Consultation", services[0].(map[string]any)["name"])

	rec = env.do(t, http.MethodGet, "/admin/services", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["services"].([]any), 2)
}
