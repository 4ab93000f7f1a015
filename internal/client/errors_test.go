package client

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-issuance-lab/internal/idl"
)

func TestDecodeTxError(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		index int
		kind  string
		code  *idl.ErrorCode
	}{
		{"transaction level", `"BlockhashNotFound"`, -1, "BlockhashNotFound", nil},
		{"runtime variant", `{"InstructionError":[1,"MissingRequiredSignature"]}`, 1, "MissingRequiredSignature", nil},
		{"module code", `{"InstructionError":[0,{"Custom":6004}]}`, 0, "Unauthorized", codePtr(idl.CodeUnauthorized)},
		{"foreign code", `{"InstructionError":[2,{"Custom":11}]}`, 2, "Custom", codePtr(11)},
		{"object variant", `{"InsufficientFundsForRent":{"account_index":0}}`, -1, "InsufficientFundsForRent", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := decodeTxError(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.index, e.Index)
			assert.Equal(t, tt.kind, e.Kind)
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestTxErrorMatchesSentinels(t *testing.T) {
	e, err := decodeTxError(json.RawMessage(`{"InstructionError":[0,{"Custom":6005}]}`))
	require.NoError(t, err)

	assert.True(t, errors.Is(e, idl.ErrArithmeticOverflow))
	assert.False(t, errors.Is(e, idl.ErrUnauthorized))

	pe, ok := e.ProgramError()
	require.True(t, ok)
	assert.Equal(t, "ArithmeticOverflow", pe.Name)
}

func TestDecodeTxErrorMalformed(t *testing.T) {
	_, err := decodeTxError(json.RawMessage(`[1,2`))
	assert.Error(t, err)
}

func TestUIAmount(t *testing.T) {
	assert.Equal(t, "1.5", UIAmount(1_500_000_000, 9).String())
	assert.Equal(t, "42", UIAmount(42, 0).String())
	assert.Equal(t, "18446744073709.551615", UIAmount(^uint64(0), 6).String())
	assert.Equal(t, "0.000000001", Lamports(1).String())
}

func TestParseUIAmount(t *testing.T) {
	v, err := ParseUIAmount("2.5", 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000), v)

	_, err = ParseUIAmount("0.0000001", 6)
	assert.Error(t, err)
	_, err = ParseUIAmount("-1", 0)
	assert.Error(t, err)
	_, err = ParseUIAmount("18446744073709551616", 0)
	assert.Error(t, err)
	_, err = ParseUIAmount("abc", 0)
	assert.Error(t, err)
}

func codePtr(c idl.ErrorCode) *idl.ErrorCode {
	return &c
}
