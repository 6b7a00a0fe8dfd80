package model

import "github.com/shopspring/decimal"

// QuoteRequest asks the exchange partner to size one leg from the other.
type QuoteRequest struct {
	Side     AmountSide
	Amount   decimal.Decimal
	Token    string
	Currency string
	Country  string
}

// Quote is the partner's answer computed at call time.
type Quote struct {
	TokenAmount decimal.Decimal
	FiatAmount  decimal.Decimal
	Rate        decimal.Decimal
	Fee         decimal.Decimal
}
