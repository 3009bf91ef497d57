package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "PENDING"
	OutboxStatusProcessed OutboxStatus = "PROCESSED"
	OutboxStatusFailed    OutboxStatus = "FAILED"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// PatientEvent is the payload published for every patient mutation.
type PatientEvent struct {
	PatientID string    `json:"patient_id"`
	RecordID  uuid.UUID `json:"record_id"`
	Op        string    `json:"op"`
	ActorID   uuid.UUID `json:"actor_id"`
	At        time.Time `json:"at"`
}

// NewPatientEvent builds a pending outbox event of type "patient.<op>".
func NewPatientEvent(r *PatientRecord, op string, actorID uuid.UUID) (*OutboxEvent, error) {
	now := time.Now().UTC()
	payload, err := json.Marshal(PatientEvent{
		PatientID: r.PatientID,
		RecordID:  r.ID,
		Op:        op,
		ActorID:   actorID,
		At:        now,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal patient event: %w", err)
	}
	return &OutboxEvent{
		ID:        uuid.New(),
		EventType: "patient." + op,
		Payload:   payload,
		Status:    OutboxStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
