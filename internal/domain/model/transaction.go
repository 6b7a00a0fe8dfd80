package model

// TransferReceipt is the verified portion of an on-chain transaction.
type TransferReceipt struct {
	Reference string
	Recipient string
	CoinType  string
	Amount    string
}
