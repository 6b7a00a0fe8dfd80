package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus describes settlement lifecycle.
type OrderStatus string

const (
	OrderStatusAwaitingProof    OrderStatus = "AWAITING_PROOF"
	OrderStatusProofVerified    OrderStatus = "PROOF_VERIFIED"
	OrderStatusSubmittingPayout OrderStatus = "SUBMITTING_PAYOUT"
	OrderStatusPayoutAccepted   OrderStatus = "PAYOUT_ACCEPTED"
	OrderStatusCompleted        OrderStatus = "COMPLETED"
	OrderStatusFailed           OrderStatus = "FAILED"
)

// Terminal reports whether no further transitions are possible.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusCompleted || s == OrderStatusFailed
}

// Order is one settlement attempt: an on-chain receipt turned into a fiat payout.
type Order struct {
	ID                string
	IdempotencyKey    *string
	PayoutTarget      PayoutTarget
	PayerAddress      string
	CollectionAddress string
	Asset             Asset
	// ExpectedAmount is the minimum raw amount the collection address must receive.
	ExpectedAmount string
	FiatAmount     decimal.Decimal
	FiatCurrency   string
	Quote          Quote

	TransactionRef *string
	VerifiedAmount *string
	VerifiedAt     *time.Time

	PartnerReference *string
	PartnerStatus    *string
	FailureReason    *string

	Status           OrderStatus
	SubmitAttempts   int
	SubmitClaim      *string
	SubmitLeaseUntil *time.Time
	LastCheckedAt    *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPartnerReference reports whether the payout gateway already accepted this order.
func (o *Order) HasPartnerReference() bool {
	return o.PartnerReference != nil && *o.PartnerReference != ""
}

// AmountSide tells which leg of the quote the caller fixed.
type AmountSide string

const (
	AmountSideToken AmountSide = "token"
	AmountSideFiat  AmountSide = "fiat"
)

// CreateOrderInput carries the caller's order request.
type CreateOrderInput struct {
	PayoutTargetID string
	Amount         string
	Side           AmountSide
	Token          string
	PayerAddress   string
	IdempotencyKey string
}
