// Package risk implements the Portfolio Risk Controller: a
// cross-strategy gate that validates proposed trades against exposure,
// drawdown and daily-loss limits and can halt the whole system, using
// a tagged-variant, sticky-halt design.
package risk

import (
	"sync"

	"gridengine/internal/tradingtypes"
)

// Limits are the Risk Controller's configurable hard limits; zero value
// fields fall back to the documented defaults.
type Limits struct {
	MaxTotalExposureFraction float64 // default 0.60 of total capital
	MaxDrawdownFraction      float64 // default 0.15 peak-to-current
	MaxDailyLossFraction     float64 // default 0.05, i.e. daily P&L >= -5%
}

func defaultLimits() Limits {
	return Limits{
		MaxTotalExposureFraction: 0.60,
		MaxDrawdownFraction:      0.15,
		MaxDailyLossFraction:     0.05,
	}
}

// TraderState is the read-only view a trader reports when requesting
// authorization; the controller never mutates a trader, matching the
// data model's "holds read-only references" ownership rule.
type TraderState struct {
	Pair      string
	Inventory float64
	MarkPrice float64
}

// Controller aggregates exposure across all Grid Traders and gates new
// signals. Accessed under a single mutex held only for the duration of
// authorize, per the concurrency model.
type Controller struct {
	mu sync.Mutex

	limits Limits

	highWaterMark float64
	dayStartEquity float64
	halted        bool
	haltReason    string
}

// New constructs a Controller. Zero-valued Limits fields are replaced
// with the documented defaults.
func New(limits Limits) *Controller {
	d := defaultLimits()
	if limits.MaxTotalExposureFraction == 0 {
		limits.MaxTotalExposureFraction = d.MaxTotalExposureFraction
	}
	if limits.MaxDrawdownFraction == 0 {
		limits.MaxDrawdownFraction = d.MaxDrawdownFraction
	}
	if limits.MaxDailyLossFraction == 0 {
		limits.MaxDailyLossFraction = d.MaxDailyLossFraction
	}
	return &Controller{limits: limits}
}

// StartDay resets the daily P&L baseline; called by the Live Engine or
// Backtest Driver at the start of each trading day.
func (c *Controller) StartDay(equity float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.dayStartEquity = equity
	if equity > c.highWaterMark {
		c.highWaterMark = equity
	}
}

// Authorize evaluates a proposed signal against the current aggregate
// exposure, drawdown and daily-loss state. Halt is sticky: once
// triggered, every subsequent call returns Halt until Reset is called.
// A Deny suppresses only this signal; it never mutates trader state.
func (c *Controller) Authorize(signal tradingtypes.Signal, traders []TraderState, totalCapital, currentEquity float64) tradingtypes.AuthResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.halted {
		return tradingtypes.AuthResult{Decision: tradingtypes.Halt, Reason: c.haltReason}
	}

	if currentEquity > c.highWaterMark {
		c.highWaterMark = currentEquity
	}

	if c.highWaterMark > 0 {
		drawdown := (c.highWaterMark - currentEquity) / c.highWaterMark
		if drawdown >= c.limits.MaxDrawdownFraction {
			c.halted = true
			c.haltReason = "drawdown limit breached"
			return tradingtypes.AuthResult{Decision: tradingtypes.Halt, Reason: c.haltReason}
		}
	}

	if c.dayStartEquity > 0 {
		dailyPnLFraction := (currentEquity - c.dayStartEquity) / c.dayStartEquity
		if dailyPnLFraction <= -c.limits.MaxDailyLossFraction {
			c.halted = true
			c.haltReason = "daily loss limit breached"
			return tradingtypes.AuthResult{Decision: tradingtypes.Halt, Reason: c.haltReason}
		}
	}

	if signal.Kind == tradingtypes.SignalBuy {
		exposure := aggregateExposure(traders)
		if totalCapital > 0 && exposure/totalCapital >= c.limits.MaxTotalExposureFraction {
			return tradingtypes.AuthResult{Decision: tradingtypes.Deny, Reason: "exposure cap"}
		}
	}

	return tradingtypes.AuthResult{Decision: tradingtypes.Allow}
}

func aggregateExposure(traders []TraderState) (exposure float64) {
	for _, t := range traders {
		exposure += t.Inventory * t.MarkPrice
	}
	return
}

// Reset clears a sticky Halt, an explicit operator action.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.halted = false
	c.haltReason = ""
}

// IsHalted reports the controller's current halt state.
func (c *Controller) IsHalted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted
}
