package model

import "time"

const (
	AlertStatusPending       = "pending"
	AlertStatusInvestigating = "investigating"
	AlertStatusConfirmed     = "confirmed"
	AlertStatusDismissed     = "dismissed"
)

// ValidAlertStatuses mirrors the CHECK constraint on fraud_alerts.status.
var ValidAlertStatuses = map[string]bool{
	AlertStatusPending:       true,
	AlertStatusInvestigating: true,
	AlertStatusConfirmed:     true,
	AlertStatusDismissed:     true,
}

type FraudAlert struct {
	ID            int64     `json:"id"`
	UserID        int64     `json:"user_id"`
	TransactionID *int64    `json:"transaction_id"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"created_at"`
}

// FraudAlertView is a FraudAlert joined with its owner and transaction.
type FraudAlertView struct {
	FraudAlert
	UserName             string   `json:"user_name"`
	TransactionReference *string  `json:"transaction_reference"`
	TransactionAmount    *float64 `json:"transaction_amount"`
}
