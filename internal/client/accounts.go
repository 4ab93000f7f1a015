package client

import (
	"context"
	"encoding"
	"encoding/base64"
	"fmt"
	"math/big"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"solana-issuance-lab/internal/idl"
)

// fetch reads key, checks its owner and decodes its data into out.
func (c *Client) fetch(ctx context.Context, key, owner solana.PublicKey, out encoding.BinaryUnmarshaler) error {
	info, err := c.rpc.GetAccountInfo(ctx, key.String())
	if err != nil {
		return fmt.Errorf("get account %s: %w", key, err)
	}
	if info == nil {
		return fmt.Errorf("%w: %s", ErrAccountNotFound, key)
	}
	if info.Owner != owner.String() {
		return fmt.Errorf("%w: %s owned by %s, want %s", ErrUnexpectedOwner, key, info.Owner, owner)
	}
	data, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return fmt.Errorf("decode account data: %w", err)
	}
	return out.UnmarshalBinary(data)
}

// FetchMint reads a mint record.
func (c *Client) FetchMint(ctx context.Context, key solana.PublicKey) (*idl.Mint, error) {
	var m idl.Mint
	if err := c.fetch(ctx, key, idl.SPLTokenProgramID, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// FetchTokenAccount reads a holder account.
func (c *Client) FetchTokenAccount(ctx context.Context, key solana.PublicKey) (*idl.TokenAccount, error) {
	var a idl.TokenAccount
	if err := c.fetch(ctx, key, idl.SPLTokenProgramID, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// FetchMetadata reads the metadata record of mint.
func (c *Client) FetchMetadata(ctx context.Context, mint solana.PublicKey) (*idl.Metadata, error) {
	key, _, err := idl.FindMetadataAddress(mint)
	if err != nil {
		return nil, fmt.Errorf("derive metadata: %w", err)
	}
	var md idl.Metadata
	if err := c.fetch(ctx, key, idl.MetadataProgramID, &md); err != nil {
		return nil, err
	}
	return &md, nil
}

// FetchCounter reads a counter record.
func (c *Client) FetchCounter(ctx context.Context, key solana.PublicKey) (*idl.Counter, error) {
	var counter idl.Counter
	if err := c.fetch(ctx, key, idl.CounterProgramID, &counter); err != nil {
		return nil, err
	}
	return &counter, nil
}

// UIAmount renders base units with the mint's decimals.
func UIAmount(amount uint64, decimals uint8) decimal.Decimal {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(amount), -int32(decimals))
}

// ParseUIAmount converts a decimal string to base units, rejecting values
// with more precision than decimals allows or outside the u64 range.
func ParseUIAmount(s string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", s, err)
	}
	if d.IsNegative() {
		return 0, fmt.Errorf("amount %q is negative", s)
	}
	units := d.Shift(int32(decimals))
	if !units.Equal(units.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has more than %d decimal places", s, decimals)
	}
	bi := units.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("amount %q overflows u64", s)
	}
	return bi.Uint64(), nil
}

// Lamports renders lamports as SOL.
func Lamports(lamports uint64) decimal.Decimal {
	return UIAmount(lamports, 9)
}
