package calendarsync

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Queue carries calendar jobs between the API and the workers.
type Queue interface {
	Send(ctx context.Context, body string, delay time.Duration) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one received job.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobKind string

const (
	jobCreate jobKind = "create"
	jobDelete jobKind = "delete"
)

type queuePayload struct {
	ID        string    `json:"id"`
	Kind      jobKind   `json:"kind"`
	BookingID uuid.UUID `json:"booking_id"`
	EventID   string    `json:"event_id,omitempty"`
	Attempt   int       `json:"attempt"`
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}
	if payload.Attempt <= 0 {
		payload.Attempt = 1
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("calendarsync: failed to encode payload: %w", err)
	}
	return payload, string(body), nil
}
