package model

// Asset identifies a token accepted for settlement.
type Asset struct {
	Symbol   string
	CoinType string
	Decimals int
}
