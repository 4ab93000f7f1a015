package ledger

import (
	"bytes"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

func snapshot(infos []*AccountInfo) map[solana.PublicKey]*Account {
	pre := make(map[solana.PublicKey]*Account, len(infos))
	for _, info := range infos {
		if _, ok := pre[info.Key]; !ok {
			pre[info.Key] = info.account.clone()
		}
	}
	return pre
}

// verify applies the ownership rules to the changes program made since pre
// was taken.
func verify(program solana.PublicKey, infos []*AccountInfo, pre map[solana.PublicKey]*Account) error {
	writable := make(map[solana.PublicKey]bool, len(infos))
	current := make(map[solana.PublicKey]*Account, len(infos))
	for _, info := range infos {
		writable[info.Key] = writable[info.Key] || info.IsWritable
		current[info.Key] = info.account
	}

	var before, after uint64
	for key, post := range current {
		old := pre[key]
		before += old.Lamports
		after += post.Lamports

		if old.equal(post) {
			continue
		}
		if !writable[key] {
			if old.Lamports != post.Lamports {
				return fmt.Errorf("%w: %s", ErrReadonlyLamportChange, key)
			}
			return fmt.Errorf("%w: %s", ErrReadonlyModified, key)
		}
		if old.Executable || post.Executable {
			return fmt.Errorf("%w: %s", ErrExecutableModified, key)
		}
		ownedByProgram := old.Owner.Equals(program)
		if !old.Owner.Equals(post.Owner) && !ownedByProgram {
			return fmt.Errorf("%w: %s", ErrModifiedProgramID, key)
		}
		if !ownedByProgram && !bytes.Equal(old.Data, post.Data) {
			return fmt.Errorf("%w: %s", ErrExternalDataModified, key)
		}
		if !ownedByProgram && post.Lamports < old.Lamports {
			return fmt.Errorf("%w: %s", ErrExternalLamportSpend, key)
		}
		if len(post.Data) > 0 && post.Lamports < MinimumBalance(uint64(len(post.Data))) {
			return fmt.Errorf("%w: %s", ErrInsufficientFundsRent, key)
		}
	}

	if before != after {
		return ErrUnbalancedInstruction
	}
	return nil
}
