package model

import "time"

// OrderEvent is one recorded status transition.
type OrderEvent struct {
	OrderID   string
	Status    OrderStatus
	Note      string
	CreatedAt time.Time
}
