package domain

// TransactionRecord is one executed transaction in the transaction log.
// Corresponds to transactions table in ClickHouse.
type TransactionRecord struct {
	Signature string   // base58 first signature, primary key
	Slot      uint64   // slot the transaction landed in
	BlockTime int64    // Unix timestamp in seconds
	Err       string   // JSON-encoded transaction error, empty on success
	Logs      []string // program log lines
	Raw       []byte   // wire-encoded transaction
	Fee       uint64   // lamports charged
	Accounts  []string // base58 account keys referenced by the message
}

// Succeeded reports whether the transaction committed.
func (r *TransactionRecord) Succeeded() bool {
	return r.Err == ""
}

// Commitment levels reported by the transaction log.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)
