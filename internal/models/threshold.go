package models

import "fmt"

type Frequency string

const (
	FrequencyRealtime Frequency = "realtime"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
)

func (f Frequency) Valid() bool {
	switch f {
	case FrequencyRealtime, FrequencyDaily, FrequencyWeekly:
		return true
	}
	return false
}

// Scope selects whether a threshold is keyed by product or by category.
type Scope string

const (
	ScopeProduct  Scope = "product"
	ScopeCategory Scope = "category"
)

type ThresholdKey struct {
	Scope Scope  `json:"scope"`
	ID    string `json:"id"`
}

func ProductKey(id string) ThresholdKey { return ThresholdKey{Scope: ScopeProduct, ID: id} }
func CategoryKey(id string) ThresholdKey { return ThresholdKey{Scope: ScopeCategory, ID: id} }

func (k ThresholdKey) String() string {
	return fmt.Sprintf("%s:%s", k.Scope, k.ID)
}

type NotifyMethods struct {
	Email    bool `json:"email"`
	System   bool `json:"system"`
	SMS      bool `json:"sms"`
	Telegram bool `json:"telegram"`
}

// Enabled reports whether the given channel is switched on.
func (n NotifyMethods) Enabled(ch Channel) bool {
	switch ch {
	case ChannelEmail:
		return n.Email
	case ChannelSystem:
		return n.System
	case ChannelSMS:
		return n.SMS
	case ChannelTelegram:
		return n.Telegram
	default:
		return false
	}
}

// AlertThreshold is the stock band and notification preferences for a
// product or a category.
type AlertThreshold struct {
	Key             ThresholdKey  `json:"key"`
	MinStock        int           `json:"min_stock"`
	MaxStock        int           `json:"max_stock"`
	IsEnabled       bool          `json:"is_enabled"`
	NotifyMethods   NotifyMethods `json:"notify_methods"`
	Frequency       Frequency     `json:"frequency"`
	AutoReplenish   bool          `json:"auto_replenish"`
	ReplenishAmount int           `json:"replenish_amount"`
	Contacts        []string      `json:"contacts"`
}

// Validate checks amounts before the range so a negative bound reports
// ErrInvalidAmount rather than ErrInvalidRange.
func (t AlertThreshold) Validate() error {
	if t.MinStock < 0 || t.MaxStock < 0 || t.ReplenishAmount < 0 {
		return fmt.Errorf("%w: thresholds and replenish amount must not be negative", ErrInvalidAmount)
	}
	if t.MinStock >= t.MaxStock {
		return fmt.Errorf("%w: min=%d max=%d", ErrInvalidRange, t.MinStock, t.MaxStock)
	}
	if t.AutoReplenish && t.ReplenishAmount <= 0 {
		return fmt.Errorf("%w: replenish amount must be positive when auto replenish is on", ErrInvalidAmount)
	}
	if t.Frequency != "" && !t.Frequency.Valid() {
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidArgument, t.Frequency)
	}
	return nil
}

// ThresholdPatch is a partial threshold used by batch updates. Nil fields
// are left unchanged.
type ThresholdPatch struct {
	MinStock        *int           `json:"min_stock,omitempty"`
	MaxStock        *int           `json:"max_stock,omitempty"`
	IsEnabled       *bool          `json:"is_enabled,omitempty"`
	NotifyMethods   *NotifyMethods `json:"notify_methods,omitempty"`
	Frequency       *Frequency     `json:"frequency,omitempty"`
	AutoReplenish   *bool          `json:"auto_replenish,omitempty"`
	ReplenishAmount *int           `json:"replenish_amount,omitempty"`
	Contacts        []string       `json:"contacts,omitempty"`
}

// Apply returns a copy of t with the patch's set fields overwritten.
func (p ThresholdPatch) Apply(t AlertThreshold) AlertThreshold {
	if p.MinStock != nil {
		t.MinStock = *p.MinStock
	}
	if p.MaxStock != nil {
		t.MaxStock = *p.MaxStock
	}
	if p.IsEnabled != nil {
		t.IsEnabled = *p.IsEnabled
	}
	if p.NotifyMethods != nil {
		t.NotifyMethods = *p.NotifyMethods
	}
	if p.Frequency != nil {
		t.Frequency = *p.Frequency
	}
	if p.AutoReplenish != nil {
		t.AutoReplenish = *p.AutoReplenish
	}
	if p.ReplenishAmount != nil {
		t.ReplenishAmount = *p.ReplenishAmount
	}
	if p.Contacts != nil {
		t.Contacts = append([]string(nil), p.Contacts...)
	}
	return t
}
