package ledger

import (
	"errors"
	"fmt"

	"solana-issuance-lab/internal/idl"
)

// RuntimeError is a failure raised by the runtime rather than a module.
// Name is the variant reported on the wire.
type RuntimeError struct {
	Name string
	Msg  string
}

func (e *RuntimeError) Error() string {
	return e.Msg
}

// Instruction-level runtime errors.
var (
	ErrUnknownProgram        = &RuntimeError{"UnsupportedProgramId", "unsupported program id"}
	ErrMissingAccount        = &RuntimeError{"MissingAccount", "an account required by the instruction is missing"}
	ErrReadonlyModified      = &RuntimeError{"ReadonlyDataModified", "instruction modified data of a read-only account"}
	ErrReadonlyLamportChange = &RuntimeError{"ReadonlyLamportChange", "instruction changed the balance of a read-only account"}
	ErrExternalDataModified  = &RuntimeError{"ExternalAccountDataModified", "instruction modified data of an account it does not own"}
	ErrExternalLamportSpend  = &RuntimeError{"ExternalAccountLamportSpend", "instruction spent from the balance of an account it does not own"}
	ErrModifiedProgramID     = &RuntimeError{"ModifiedProgramId", "instruction illegally modified the program id of an account"}
	ErrExecutableModified    = &RuntimeError{"ExecutableModified", "instruction changed executable accounts data"}
	ErrUnbalancedInstruction = &RuntimeError{"UnbalancedInstruction", "sum of account balances before and after instruction do not match"}
	ErrCallDepth             = &RuntimeError{"CallDepth", "cross-program invocation call depth too deep"}
	ErrInsufficientFundsRent = &RuntimeError{"InsufficientFundsForRent", "account does not hold the rent-exempt minimum"}
	ErrInvalidAccountIndex   = &RuntimeError{"InvalidAccountIndex", "instruction references an account index out of range"}
)

// ErrPrivilegeEscalation is a signer or writable privilege the caller does
// not hold. It is reported as Unauthorized.
var ErrPrivilegeEscalation = fmt.Errorf("%w: privilege escalation", idl.ErrUnauthorized)

// Transaction-level runtime errors.
var (
	ErrSanitizeFailure    = &RuntimeError{"SanitizeFailure", "transaction failed to sanitize accounts offsets correctly"}
	ErrSignatureFailure   = &RuntimeError{"SignatureFailure", "transaction did not pass signature verification"}
	ErrAlreadyProcessed   = &RuntimeError{"AlreadyProcessed", "this transaction has already been processed"}
	ErrBlockhashNotFound  = &RuntimeError{"BlockhashNotFound", "blockhash not found"}
	ErrAccountNotFound    = &RuntimeError{"AccountNotFound", "attempt to debit an account but found no record of a prior credit"}
	ErrUnsupportedVersion = &RuntimeError{"UnsupportedVersion", "transaction version is unsupported"}
)

// InstructionError ties a failure to the instruction that raised it.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d: %v", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error {
	return e.Err
}

// WireError renders a transaction failure in the JSON shape clients decode:
// {"InstructionError":[idx,{"Custom":code}]} for module errors,
// {"InstructionError":[idx,"Name"]} for runtime errors and a bare variant
// name for transaction-level errors. It returns nil for nil.
func WireError(err error) interface{} {
	if err == nil {
		return nil
	}

	var ie *InstructionError
	if errors.As(err, &ie) {
		return map[string]interface{}{
			"InstructionError": []interface{}{ie.Index, instructionVariant(ie.Err)},
		}
	}

	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Name
	}
	return "InvalidTransaction"
}

func instructionVariant(err error) interface{} {
	if code, ok := idl.CodeOf(err); ok {
		return map[string]interface{}{"Custom": uint32(code)}
	}
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Name
	}
	return "GenericError"
}

// failureText is the suffix of a "Program <id> failed: " log line.
func failureText(err error) string {
	if code, ok := idl.CodeOf(err); ok {
		return fmt.Sprintf("custom program error: %#x", uint32(code))
	}
	return err.Error()
}
