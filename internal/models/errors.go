package models

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRange is returned when a threshold has minStock >= maxStock.
	ErrInvalidRange = errors.New("invalid range: min stock must be below max stock")
	// ErrInvalidAmount is returned for negative stock, thresholds or quantities.
	ErrInvalidAmount = errors.New("invalid amount")
	// ErrInvalidTransition is returned for a status change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrNotFound          = errors.New("not found")
	ErrInvalidArgument   = errors.New("invalid argument")
)

// ChannelDeliveryError reports a failed send over one channel to one recipient.
type ChannelDeliveryError struct {
	Channel   Channel
	Recipient string
	Err       error
}

func (e *ChannelDeliveryError) Error() string {
	return fmt.Sprintf("delivery via %s to %q failed: %v", e.Channel, e.Recipient, e.Err)
}

func (e *ChannelDeliveryError) Unwrap() error {
	return e.Err
}
