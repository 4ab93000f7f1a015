package solana

import (
	"encoding/json"
	"errors"
	"fmt"
)

// JSON-RPC error codes returned by the validator.
const (
	CodeInvalidParams      = -32602
	CodeMethodNotFound     = -32601
	CodeInvalidRequest     = -32600
	CodeParseError         = -32700
	CodeSendTxPreflight    = -32002
	CodeInvalidTransaction = -32003
)

// Commitment levels.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// SignatureInfo from getSignaturesForAddress.
type SignatureInfo struct {
	Signature string
	Slot      int64
	BlockTime *int64
	Err       interface{}
}

// SignaturesOpts defines optional pagination parameters for getSignaturesForAddress.
type SignaturesOpts struct {
	Before string // Start searching backwards from this signature
	Until  string // Search until this signature
	Limit  int    // Maximum number of signatures to return
}

// AccountInfo represents Solana account information.
type AccountInfo struct {
	Lamports   uint64 `json:"lamports"`
	Owner      string `json:"owner"`
	Data       string `json:"data"` // base64 encoded
	Executable bool   `json:"executable"`
	RentEpoch  uint64 `json:"rentEpoch"`
}

// Blockhash is the result of getLatestBlockhash.
type Blockhash struct {
	Blockhash            string `json:"blockhash"`
	LastValidBlockHeight uint64 `json:"lastValidBlockHeight"`
}

// SignatureStatus is one entry of getSignatureStatuses.
type SignatureStatus struct {
	Slot               uint64      `json:"slot"`
	Confirmations      *uint64     `json:"confirmations"`
	Err                interface{} `json:"err"`
	ConfirmationStatus string      `json:"confirmationStatus"`
}

// SendOpts are the sendTransaction options.
type SendOpts struct {
	SkipPreflight       bool
	PreflightCommitment string
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// SimulationFailure is the data of a failed preflight.
type SimulationFailure struct {
	Err  json.RawMessage `json:"err"`
	Logs []string        `json:"logs"`
}

// AsSimulationFailure extracts preflight failure data from err.
func AsSimulationFailure(err error) (*SimulationFailure, bool) {
	var rpcErr *RPCError
	if !errors.As(err, &rpcErr) || rpcErr.Code != CodeSendTxPreflight || len(rpcErr.Data) == 0 {
		return nil, false
	}
	var sf SimulationFailure
	if json.Unmarshal(rpcErr.Data, &sf) != nil {
		return nil, false
	}
	return &sf, true
}
