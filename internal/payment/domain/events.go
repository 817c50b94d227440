package domain

import "time"

type PaymentCreated struct {
	PaymentID   string
	OwnerID     string
	AmountCents int64
	Source      string
	Destination string
}

type PaymentStatusChanged struct {
	PaymentID                 string
	OldStatus                 Status
	NewStatus                 Status
	ErrorCode                 string
	SourceSettlementDate      *time.Time
	DestinationSettlementDate *time.Time
}
