package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

const maxDescriptionLen = 100

type Payment struct {
	ID                        string
	OwnerID                   string
	AmountCents               int64
	Source                    string
	Destination               string
	Description               string
	Status                    Status
	ErrorCode                 string
	SourceSettlementDate      *time.Time
	DestinationSettlementDate *time.Time
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

func NewPayment(ownerID string, amountCents int64, source, destination, description string) (Payment, error) {
	if amountCents <= 0 {
		return Payment{}, &ValidationError{Reason: "amount must be positive"}
	}
	source = strings.TrimSpace(source)
	destination = strings.TrimSpace(destination)
	if source == "" || destination == "" {
		return Payment{}, &ValidationError{Reason: "source and destination are required"}
	}
	if source == destination {
		return Payment{}, &ValidationError{Reason: "source and destination must differ"}
	}
	if len(description) > maxDescriptionLen {
		return Payment{}, &ValidationError{Reason: "description exceeds 100 characters"}
	}
	now := time.Now().UTC()
	return Payment{
		ID:          NewPaymentID(),
		OwnerID:     ownerID,
		AmountCents: amountCents,
		Source:      source,
		Destination: destination,
		Description: description,
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func NewPaymentID() string {
	return "pmt_" + uuid.NewString()[:8]
}

func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return Status(s), nil
	}
	return "", &ValidationError{Reason: "unknown status: " + s}
}

// StatusChange carries the fields a single transition is allowed to touch.
type StatusChange struct {
	Status                    Status
	ErrorCode                 string
	SourceSettlementDate      *time.Time
	DestinationSettlementDate *time.Time
	UpdatedAt                 time.Time
}
