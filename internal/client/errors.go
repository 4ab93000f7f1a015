package client

import (
	"encoding/json"
	"errors"
	"fmt"

	"solana-issuance-lab/internal/idl"
)

// Client errors.
var (
	ErrAccountNotFound     = errors.New("account not found")
	ErrUnexpectedOwner     = errors.New("account owned by unexpected program")
	ErrConfirmationTimeout = errors.New("transaction not confirmed in time")
)

// TxError is a transaction rejected by the ledger. Index is the failing
// instruction, or -1 for transaction-level errors. Code is set for custom
// program errors only.
type TxError struct {
	Signature string
	Index     int
	Code      *idl.ErrorCode
	Kind      string
	Raw       json.RawMessage
	Logs      []string
}

func (e *TxError) Error() string {
	switch {
	case e.Index < 0:
		return fmt.Sprintf("transaction failed: %s", e.Kind)
	case e.Code != nil:
		return fmt.Sprintf("instruction %d failed: %s (custom program error: 0x%x)", e.Index, e.Kind, uint32(*e.Code))
	default:
		return fmt.Sprintf("instruction %d failed: %s", e.Index, e.Kind)
	}
}

// Is matches the module error sentinels by code, so callers can write
// errors.Is(err, idl.ErrUnauthorized).
func (e *TxError) Is(target error) bool {
	var pe *idl.ProgramError
	if e.Code == nil || !errors.As(target, &pe) {
		return false
	}
	known, ok := idl.ErrorForCode(*e.Code)
	return ok && known == pe
}

// ProgramError returns the module error named by the custom code, if any.
func (e *TxError) ProgramError() (*idl.ProgramError, bool) {
	if e.Code == nil {
		return nil, false
	}
	return idl.ErrorForCode(*e.Code)
}

// decodeTxError parses the host's wire form of a transaction error:
// a bare string, {"InstructionError":[idx,"Name"]} or
// {"InstructionError":[idx,{"Custom":code}]}.
func decodeTxError(raw json.RawMessage) (*TxError, error) {
	e := &TxError{Index: -1, Raw: raw}

	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		e.Kind = name
		return e, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("decode transaction error: %w", err)
	}
	ixErr, ok := obj["InstructionError"]
	if !ok {
		for k := range obj {
			e.Kind = k
		}
		return e, nil
	}

	var pair [2]json.RawMessage
	if err := json.Unmarshal(ixErr, &pair); err != nil {
		return nil, fmt.Errorf("decode instruction error: %w", err)
	}
	if err := json.Unmarshal(pair[0], &e.Index); err != nil {
		return nil, fmt.Errorf("decode instruction index: %w", err)
	}

	if err := json.Unmarshal(pair[1], &name); err == nil {
		e.Kind = name
		return e, nil
	}
	var custom struct {
		Custom *uint32 `json:"Custom"`
	}
	if err := json.Unmarshal(pair[1], &custom); err != nil || custom.Custom == nil {
		e.Kind = string(pair[1])
		return e, nil
	}
	code := idl.ErrorCode(*custom.Custom)
	e.Code = &code
	e.Kind = "Custom"
	if pe, ok := idl.ErrorForCode(code); ok {
		e.Kind = pe.Name
	}
	return e, nil
}
