package storage

import "context"

// ChainState is the last committed position of the local ledger.
type ChainState struct {
	Slot      uint64 // last committed slot
	Blockhash string // base58 blockhash produced at Slot
}

// ChainStateStore persists the ledger position so a restarted validator
// continues its slot and blockhash sequence.
type ChainStateStore interface {
	// GetChainState returns the last saved position.
	// Returns ErrNotFound if nothing has been saved yet.
	GetChainState(ctx context.Context) (*ChainState, error)

	// SetChainState saves the position.
	SetChainState(ctx context.Context, state *ChainState) error
}
