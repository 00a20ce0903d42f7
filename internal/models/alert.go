package models

import (
	"time"

	"github.com/google/uuid"
)

// Classification is where a stock reading sits relative to its threshold band.
type Classification string

const (
	ClassNormal Classification = "normal"
	ClassLow    Classification = "low"
	ClassHigh   Classification = "high"
)

// Classify places stock in the band [min, max]. Both bounds are inclusive.
func Classify(stock int, t AlertThreshold) Classification {
	switch {
	case stock < t.MinStock:
		return ClassLow
	case stock > t.MaxStock:
		return ClassHigh
	default:
		return ClassNormal
	}
}

type AlertType string

const (
	AlertLowStock  AlertType = "low_stock"
	AlertHighStock AlertType = "high_stock"
)

type AlertStatus string

const (
	AlertPending   AlertStatus = "pending"
	AlertProcessed AlertStatus = "processed"
	AlertIgnored   AlertStatus = "ignored"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertPending, AlertProcessed, AlertIgnored:
		return true
	}
	return false
}

// CanTransition allows only pending -> processed and pending -> ignored.
func (s AlertStatus) CanTransition(to AlertStatus) bool {
	switch s {
	case AlertPending:
		return to == AlertProcessed || to == AlertIgnored
	case AlertProcessed, AlertIgnored:
		return false
	default:
		return false
	}
}

// AlertEvent is one threshold breach. Stock and threshold are snapshots taken
// when the breach was detected and do not follow later threshold edits.
type AlertEvent struct {
	ID                 uuid.UUID   `json:"id"`
	ProductID          string      `json:"product_id"`
	Type               AlertType   `json:"type"`
	StockAtTrigger     int         `json:"stock_at_trigger"`
	ThresholdAtTrigger int         `json:"threshold_at_trigger"`
	ThresholdKey       string      `json:"threshold_key"`
	Frequency          Frequency   `json:"frequency"`
	Timestamp          time.Time   `json:"timestamp"`
	Status             AlertStatus `json:"status"`
	UpdatedAt          time.Time   `json:"updated_at"`
	DispatchedAt       *time.Time  `json:"dispatched_at,omitempty"`
}

// AlertFilter narrows a ledger listing. Zero fields match everything.
type AlertFilter struct {
	ProductID string
	Status    AlertStatus
	Since     time.Time
}

func (f AlertFilter) Match(e AlertEvent) bool {
	if f.ProductID != "" && e.ProductID != f.ProductID {
		return false
	}
	if f.Status != "" && e.Status != f.Status {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}
