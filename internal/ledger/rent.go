package ledger

import (
	"encoding/binary"
	"math"

	"github.com/gagliardetto/solana-go"
)

// Rent parameters of the local ledger.
const (
	AccountStorageOverhead = 128
	LamportsPerByteYear    = 3480
	ExemptionThreshold     = 2
	rentBurnPercent        = 50
)

// SysvarOwnerID owns the sysvar accounts served by the runtime.
var SysvarOwnerID = solana.MustPublicKeyFromBase58("Sysvar1111111111111111111111111111111111111")

// NativeLoaderID owns the deployed module accounts.
var NativeLoaderID = solana.MustPublicKeyFromBase58("NativeLoader1111111111111111111111111111111")

// MinimumBalance returns the rent-exempt minimum for size bytes of data.
func MinimumBalance(size uint64) uint64 {
	return (AccountStorageOverhead + size) * LamportsPerByteYear * ExemptionThreshold
}

// rentSysvarData encodes lamports_per_byte_year u64, exemption_threshold f64
// and burn_percent u8.
func rentSysvarData() []byte {
	data := make([]byte, 17)
	binary.LittleEndian.PutUint64(data[0:8], LamportsPerByteYear)
	binary.LittleEndian.PutUint64(data[8:16], math.Float64bits(ExemptionThreshold))
	data[16] = rentBurnPercent
	return data
}
