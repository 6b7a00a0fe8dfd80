package model

import "encoding/json"

// PayoutTarget is a pre-resolved fiat destination. Descriptor is carried through untouched.
type PayoutTarget struct {
	ID         string
	Currency   string
	Country    string
	Descriptor json.RawMessage
}
