package client

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	"solana-issuance-lab/internal/idl"
)

// TokenResult describes a fungible class created by CreateToken.
type TokenResult struct {
	Signature solana.Signature
	Mint      solana.PublicKey
	Metadata  solana.PublicKey
}

// CreateToken creates the fungible class and its metadata record.
func (c *Client) CreateToken(ctx context.Context, params idl.CreateTokenParams) (*TokenResult, error) {
	mint, _, err := idl.FindMintAddress()
	if err != nil {
		return nil, fmt.Errorf("derive mint: %w", err)
	}
	md, _, err := idl.FindMetadataAddress(mint)
	if err != nil {
		return nil, fmt.Errorf("derive metadata: %w", err)
	}

	ix, err := idl.NewCreateTokenInstruction(idl.CreateTokenAccounts{
		Metadata: md,
		Mint:     mint,
		Payer:    c.payer.PublicKey(),
	}, params)
	if err != nil {
		return nil, err
	}
	sig, err := c.Send(ctx, []solana.Instruction{ix})
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"mint":   mint.String(),
		"symbol": params.Symbol,
	}).Info("token created")
	return &TokenResult{Signature: sig, Mint: mint, Metadata: md}, nil
}

// MintResult describes units issued into a holder account.
type MintResult struct {
	Signature   solana.Signature
	Mint        solana.PublicKey
	Destination solana.PublicKey
}

// MintToken issues amount base units of the fungible class to recipient's
// associated holder account. A zero recipient means the payer.
func (c *Client) MintToken(ctx context.Context, amount uint64, recipient solana.PublicKey) (*MintResult, error) {
	if recipient.IsZero() {
		recipient = c.payer.PublicKey()
	}
	mint, _, err := idl.FindMintAddress()
	if err != nil {
		return nil, fmt.Errorf("derive mint: %w", err)
	}
	dest, _, err := idl.FindAssociatedTokenAddress(recipient, mint)
	if err != nil {
		return nil, fmt.Errorf("derive holder account: %w", err)
	}

	ix, err := idl.NewMintTokenInstruction(idl.MintTokenAccounts{
		Mint:        mint,
		Destination: dest,
		Payer:       c.payer.PublicKey(),
		Recipient:   recipient,
	}, amount)
	if err != nil {
		return nil, err
	}
	sig, err := c.Send(ctx, []solana.Instruction{ix})
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"destination": dest.String(),
		"amount":      amount,
	}).Info("tokens minted")
	return &MintResult{Signature: sig, Mint: mint, Destination: dest}, nil
}

// NFTResult describes a unique asset created by MintNFT.
type NFTResult struct {
	Signature   solana.Signature
	Mint        solana.PublicKey
	Metadata    solana.PublicKey
	Destination solana.PublicKey
}

// MintNFT creates a unique asset under a fresh mint keypair, owned by the
// payer.
func (c *Client) MintNFT(ctx context.Context, params idl.MintNFTParams) (*NFTResult, error) {
	mintKey := solana.NewWallet().PrivateKey
	mint := mintKey.PublicKey()

	md, _, err := idl.FindMetadataAddress(mint)
	if err != nil {
		return nil, fmt.Errorf("derive metadata: %w", err)
	}
	dest, _, err := idl.FindAssociatedTokenAddress(c.payer.PublicKey(), mint)
	if err != nil {
		return nil, fmt.Errorf("derive holder account: %w", err)
	}

	ix, err := idl.NewMintNFTInstruction(idl.MintNFTAccounts{
		Metadata:    md,
		Mint:        mint,
		Destination: dest,
		Payer:       c.payer.PublicKey(),
	}, params)
	if err != nil {
		return nil, err
	}
	sig, err := c.Send(ctx, []solana.Instruction{ix}, mintKey)
	if err != nil {
		return nil, err
	}

	c.log.WithFields(logrus.Fields{
		"mint": mint.String(),
		"name": params.Name,
	}).Info("nft minted")
	return &NFTResult{Signature: sig, Mint: mint, Metadata: md, Destination: dest}, nil
}

// InitializeCounter creates a counter record under a fresh keypair.
func (c *Client) InitializeCounter(ctx context.Context) (solana.PublicKey, solana.Signature, error) {
	counter := solana.NewWallet().PrivateKey
	ix := idl.NewInitializeCounterInstruction(counter.PublicKey(), c.payer.PublicKey())
	sig, err := c.Send(ctx, []solana.Instruction{ix}, counter)
	if err != nil {
		return solana.PublicKey{}, sig, err
	}
	return counter.PublicKey(), sig, nil
}

// Increment adds one to the counter record.
func (c *Client) Increment(ctx context.Context, counter solana.PublicKey) (solana.Signature, error) {
	return c.Send(ctx, []solana.Instruction{idl.NewIncrementInstruction(counter)})
}
