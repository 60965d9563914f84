// Package exchange adapts the Live Engine's OrderExecutor and
// PriceSource interfaces onto a real Binance-style REST/WebSocket API
// and onto the in-process Market Simulator for paper trading.
package exchange

import (
	"gridengine/internal/tradingtypes"
)

// Exchange is the interface every adapter (live or paper) must satisfy.
// It is a superset of liveengine.OrderExecutor; it does not include
// liveengine.PriceSource's NextPrice, so prices come from a separate
// feed value (BookTickerFeed or PriceSeriesFeed). It has no order
// cancellation method.
type Exchange interface {
	GetPrice(pair string) (float64, error)
	GetOrderBookSnapshot(pair string) (tradingtypes.OrderBookSnapshot, error)
	ExecuteOrder(order tradingtypes.Order) (tradingtypes.Fill, error)
	Close() error
}
