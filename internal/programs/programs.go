// Package programs assembles the modules deployed on the local ledger.
package programs

import (
	"solana-issuance-lab/internal/ledger"
	"solana-issuance-lab/internal/programs/ata"
	"solana-issuance-lab/internal/programs/counter"
	"solana-issuance-lab/internal/programs/metadata"
	"solana-issuance-lab/internal/programs/nft"
	"solana-issuance-lab/internal/programs/spltoken"
	"solana-issuance-lab/internal/programs/system"
	"solana-issuance-lab/internal/programs/token"
)

// Builtins returns the collaborator modules the issuance modules invoke.
func Builtins() []ledger.Program {
	return []ledger.Program{
		system.New(),
		spltoken.New(),
		ata.New(),
		metadata.New(),
	}
}

// All returns the builtins plus the three issuance modules.
func All() []ledger.Program {
	return append(Builtins(), token.New(), nft.New(), counter.New())
}
