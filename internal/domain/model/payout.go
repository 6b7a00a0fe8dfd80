package model

import "github.com/shopspring/decimal"

// PayoutState is the partner's payout vocabulary narrowed to three values.
type PayoutState string

const (
	PayoutStateProcessing PayoutState = "processing"
	PayoutStateCompleted  PayoutState = "completed"
	PayoutStateFailed     PayoutState = "failed"
)

// PayoutRequest describes the fiat transfer the partner must perform.
type PayoutRequest struct {
	OrderID         string
	Target          PayoutTarget
	FiatAmount      decimal.Decimal
	FiatCurrency    string
	SourceAddress   string
	IdempotencyHint string
}

// PayoutStatus is the partner's view of a submitted payout.
type PayoutStatus struct {
	PartnerOrderID string
	State          PayoutState
	Reference      string
	FailureReason  string
}
