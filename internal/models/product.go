package models

import "time"

// Product is a stocked item. Stock is never negative.
type Product struct {
	ID         string    `json:"id" binding:"required"`
	Name       string    `json:"name"`
	Category   string    `json:"category"`
	Stock      int       `json:"stock"`
	LastUpdate time.Time `json:"last_update"`
}

type MovementKind string

const (
	MovementInbound    MovementKind = "inbound"
	MovementOutbound   MovementKind = "outbound"
	MovementAdjustment MovementKind = "adjustment"
)

// Movement is one stock change. Quantity is positive for inbound and
// outbound; an adjustment carries a signed correction.
type Movement struct {
	ProductID string       `json:"product_id"`
	Kind      MovementKind `json:"kind"`
	Quantity  int          `json:"quantity"`
	Reference string       `json:"reference,omitempty"`
	At        time.Time    `json:"at"`
}

// Delta returns the signed change the movement applies to stock.
func (m Movement) Delta() int {
	switch m.Kind {
	case MovementInbound:
		return m.Quantity
	case MovementOutbound:
		return -m.Quantity
	default:
		return m.Quantity
	}
}

// DailyPoint is one day of a product's history: units sold and closing stock.
type DailyPoint struct {
	Date  time.Time `json:"date"`
	Sales int       `json:"sales"`
	Stock int       `json:"stock"`
}
