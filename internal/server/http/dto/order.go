package dto

import "time"

// CreateOrderRequest describes order creation payload.
type CreateOrderRequest struct {
	PayoutTargetID string `json:"payoutTargetId"`
	Amount         string `json:"amount"`
	Side           string `json:"side"`
	Token          string `json:"token"`
	PayerAddress   string `json:"payerAddress"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// ProofRequest carries the on-chain transaction digest proving payment.
type ProofRequest struct {
	TransactionDigest string `json:"transactionDigest"`
}

// AssetResponse identifies the token the payer must send.
type AssetResponse struct {
	Symbol   string `json:"symbol"`
	CoinType string `json:"coinType"`
	Decimals int    `json:"decimals"`
}

// QuoteResponse echoes the quote fixed at creation.
type QuoteResponse struct {
	TokenAmount string `json:"tokenAmount"`
	FiatAmount  string `json:"fiatAmount"`
	Rate        string `json:"rate"`
	Fee         string `json:"fee"`
}

// OrderResponse is the full current view of an order.
type OrderResponse struct {
	OrderID           string        `json:"orderId"`
	Status            string        `json:"status"`
	PayoutTargetID    string        `json:"payoutTargetId"`
	PayerAddress      string        `json:"payerAddress"`
	ToAddress         string        `json:"toAddress"`
	ExpectedAsset     AssetResponse `json:"expectedAsset"`
	ExpectedAmountRaw string        `json:"expectedAmountRaw"`
	ExpectedAmount    string        `json:"expectedAmount,omitempty"`
	FiatAmount        string        `json:"fiatAmount"`
	FiatCurrency      string        `json:"fiatCurrency"`
	Quote             QuoteResponse `json:"quote"`
	TransactionDigest *string       `json:"transactionDigest,omitempty"`
	VerifiedAmountRaw *string       `json:"verifiedAmountRaw,omitempty"`
	VerifiedAt        *time.Time    `json:"verifiedAt,omitempty"`
	PartnerReference  *string       `json:"partnerReference,omitempty"`
	PartnerStatus     *string       `json:"partnerStatus,omitempty"`
	FailureReason     *string       `json:"failureReason,omitempty"`
	SubmitAttempts    int           `json:"submitAttempts"`
	LastCheckedAt     *time.Time    `json:"lastCheckedAt,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}

// OrderEventResponse is one entry of an order's audit trail.
type OrderEventResponse struct {
	Status    string    `json:"status"`
	Note      string    `json:"note,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// ErrorResponse describes a failed request. Verification failures fill
// Reason and, for short payments, Required and Actual.
type ErrorResponse struct {
	Error    string         `json:"error"`
	Field    string         `json:"field,omitempty"`
	Reason   string         `json:"reason,omitempty"`
	Required string         `json:"required,omitempty"`
	Actual   string         `json:"actual,omitempty"`
	Order    *OrderResponse `json:"order,omitempty"`
}
