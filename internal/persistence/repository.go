// Package persistence persists each pair's Grid Trader runtime state
// so the Live Engine can resume a trading session after a restart
// without replaying its whole signal history.
package persistence

import "gridengine/internal/tradingtypes"

// PairRuntimeState is the serializable snapshot of one pair's Grid
// Trader: one record per pair, matching the multi-pair actor model.
type PairRuntimeState struct {
	Pair          string
	Phase         tradingtypes.TraderPhase
	Position      tradingtypes.PositionState
	ActiveSpacing float64
	Center        float64
}

// StateRepository abstracts the runtime-state store (BadgerDB in
// production, in-memory for tests) from the rest of the engine.
type StateRepository interface {
	// SaveState atomically persists one pair's runtime state.
	SaveState(state PairRuntimeState) error

	// LoadState loads a pair's runtime state. It returns (nil, nil) if
	// no state has been saved for that pair yet.
	LoadState(pair string) (*PairRuntimeState, error)

	// Close releases the underlying database handle.
	Close() error
}
