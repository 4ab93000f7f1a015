package ledger

import (
	"bytes"

	"github.com/gagliardetto/solana-go"

	"solana-issuance-lab/internal/domain"
)

// Account is the in-memory form of a ledger account.
type Account struct {
	Lamports   uint64
	Data       []byte
	Owner      solana.PublicKey
	Executable bool
}

func (a *Account) clone() *Account {
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

func (a *Account) equal(b *Account) bool {
	return a.Lamports == b.Lamports &&
		a.Owner == b.Owner &&
		a.Executable == b.Executable &&
		bytes.Equal(a.Data, b.Data)
}

func accountFromDomain(d *domain.Account) (*Account, error) {
	owner, err := solana.PublicKeyFromBase58(d.Owner)
	if err != nil {
		return nil, err
	}
	return &Account{
		Lamports:   d.Lamports,
		Data:       append([]byte(nil), d.Data...),
		Owner:      owner,
		Executable: d.Executable,
	}, nil
}

func (a *Account) toDomain(key solana.PublicKey, slot uint64) *domain.Account {
	return &domain.Account{
		Address:    key.String(),
		Lamports:   a.Lamports,
		Data:       append([]byte(nil), a.Data...),
		Owner:      a.Owner.String(),
		Executable: a.Executable,
		Slot:       slot,
	}
}

// AccountInfo is a module's view of one instruction account. Writes go
// straight to the transaction working set; the runtime checks them when
// the instruction returns.
type AccountInfo struct {
	Key        solana.PublicKey
	IsSigner   bool
	IsWritable bool

	account *Account
}

// NewAccountInfo wraps acct for direct module tests.
func NewAccountInfo(key solana.PublicKey, signer, writable bool, acct *Account) *AccountInfo {
	return &AccountInfo{Key: key, IsSigner: signer, IsWritable: writable, account: acct}
}

// Lamports returns the balance.
func (a *AccountInfo) Lamports() uint64 { return a.account.Lamports }

// Owner returns the owning program.
func (a *AccountInfo) Owner() solana.PublicKey { return a.account.Owner }

// Data returns the live data slice. Modules may write into it in place.
func (a *AccountInfo) Data() []byte { return a.account.Data }

// Executable reports whether the account is a deployed module.
func (a *AccountInfo) Executable() bool { return a.account.Executable }

// IsOwnedBy reports whether program owns the account.
func (a *AccountInfo) IsOwnedBy(program solana.PublicKey) bool {
	return a.account.Owner.Equals(program)
}

// IsEmpty reports whether the account was never created: no lamports, no
// data and owned by the system module.
func (a *AccountInfo) IsEmpty() bool {
	return a.account.Lamports == 0 &&
		len(a.account.Data) == 0 &&
		a.account.Owner.Equals(solana.SystemProgramID)
}

// IsUnallocated reports whether the account carries no data and is still
// owned by the system module. Lamports sent to the address beforehand do
// not make it allocated.
func (a *AccountInfo) IsUnallocated() bool {
	return len(a.account.Data) == 0 && a.account.Owner.Equals(solana.SystemProgramID)
}

// SetLamports replaces the balance.
func (a *AccountInfo) SetLamports(v uint64) { a.account.Lamports = v }

// SetData replaces the data, resizing as needed.
func (a *AccountInfo) SetData(data []byte) {
	a.account.Data = append(a.account.Data[:0:0], data...)
}

// Allocate sets the data to size zero bytes.
func (a *AccountInfo) Allocate(size uint64) {
	a.account.Data = make([]byte, size)
}

// Assign transfers ownership to program.
func (a *AccountInfo) Assign(program solana.PublicKey) { a.account.Owner = program }
