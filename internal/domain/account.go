package domain

// Account is a ledger account as persisted by the account store.
// Corresponds to accounts table in PostgreSQL.
type Account struct {
	Address    string // base58 public key, primary key
	Lamports   uint64 // balance; zero means the account does not exist
	Data       []byte // raw account data
	Owner      string // base58 program id owning the data
	Executable bool   // true for deployed modules
	Slot       uint64 // slot of the last write
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Data = append([]byte(nil), a.Data...)
	return &c
}

// Exists reports whether the account holds lamports or data.
func (a *Account) Exists() bool {
	return a != nil && (a.Lamports > 0 || len(a.Data) > 0)
}
