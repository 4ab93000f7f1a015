package idl

import (
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
)

// ErrorCode is the custom program error code carried on the wire.
type ErrorCode uint32

// Error codes. The numbering is part of the wire contract.
const (
	CodeAlreadyInitialized ErrorCode = 6000 + iota
	CodeNotInitialized
	CodeAccountMismatch
	CodeSeedMismatch
	CodeUnauthorized
	CodeArithmeticOverflow
	CodeExternalRejection
	CodeInvalidInstruction
	CodeInsufficientFunds
)

// ProgramError is a tagged failure that modules return and clients decode.
type ProgramError struct {
	Code ErrorCode
	Name string
	Msg  string
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

// Error taxonomy.
var (
	ErrAlreadyInitialized = &ProgramError{CodeAlreadyInitialized, "AlreadyInitialized", "account is already initialized"}
	ErrNotInitialized     = &ProgramError{CodeNotInitialized, "NotInitialized", "account is not initialized"}
	ErrAccountMismatch    = &ProgramError{CodeAccountMismatch, "AccountMismatch", "account owner, size or type does not match"}
	ErrSeedMismatch       = &ProgramError{CodeSeedMismatch, "SeedMismatch", "address does not match seed derivation"}
	ErrUnauthorized       = &ProgramError{CodeUnauthorized, "Unauthorized", "missing required signature or authority"}
	ErrArithmeticOverflow = &ProgramError{CodeArithmeticOverflow, "ArithmeticOverflow", "amount exceeds representable range"}
	ErrExternalRejection  = &ProgramError{CodeExternalRejection, "ExternalRejection", "rejected by downstream module"}
	ErrInvalidInstruction = &ProgramError{CodeInvalidInstruction, "InvalidInstruction", "instruction data could not be decoded"}
	ErrInsufficientFunds  = &ProgramError{CodeInsufficientFunds, "InsufficientFunds", "not enough lamports"}
)

var errorsByCode = map[ErrorCode]*ProgramError{}

func init() {
	for _, e := range []*ProgramError{
		ErrAlreadyInitialized,
		ErrNotInitialized,
		ErrAccountMismatch,
		ErrSeedMismatch,
		ErrUnauthorized,
		ErrArithmeticOverflow,
		ErrExternalRejection,
		ErrInvalidInstruction,
		ErrInsufficientFunds,
	} {
		errorsByCode[e.Code] = e
	}
}

// ErrorForCode maps a wire code back to its sentinel.
func ErrorForCode(code ErrorCode) (*ProgramError, bool) {
	e, ok := errorsByCode[code]
	return e, ok
}

// CodeOf extracts the program error code from err, if any.
func CodeOf(err error) (ErrorCode, bool) {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

// ConstraintError names the account and constraint that failed.
type ConstraintError struct {
	Kind       *ProgramError
	Role       string
	Address    solana.PublicKey
	Constraint string
	Detail     string
}

func (e *ConstraintError) Error() string {
	msg := fmt.Sprintf("%s caused by account: %s (%s), constraint: %s", e.Kind.Name, e.Role, e.Address, e.Constraint)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *ConstraintError) Unwrap() error {
	return e.Kind
}

// Violation builds a ConstraintError.
func Violation(kind *ProgramError, role string, addr solana.PublicKey, constraint, detail string) *ConstraintError {
	return &ConstraintError{
		Kind:       kind,
		Role:       role,
		Address:    addr,
		Constraint: constraint,
		Detail:     detail,
	}
}

// Rejected wraps a downstream module failure as ExternalRejection while
// keeping the original error reachable through errors.Is.
func Rejected(program string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrExternalRejection, program, err)
}
