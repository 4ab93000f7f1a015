// Package client drives the issuance modules over JSON-RPC: it builds and
// signs transactions, submits them, waits for finality and reads records
// back. It shares only the wire contract (internal/idl) with the modules.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus"

	solanarpc "solana-issuance-lab/internal/solana"
)

// DefaultConfirmTimeout bounds the wait for finality.
const DefaultConfirmTimeout = 30 * time.Second

// Client submits transactions on behalf of a payer.
type Client struct {
	rpc        solanarpc.RPCClient
	ws         solanarpc.WSClient
	payer      solana.PrivateKey
	commitment string
	timeout    time.Duration
	log        logrus.FieldLogger
}

// Option configures Client.
type Option func(*Client)

// WithWebsocket confirms through signature subscriptions before falling back
// to polling.
func WithWebsocket(ws solanarpc.WSClient) Option {
	return func(c *Client) {
		c.ws = ws
	}
}

// WithCommitment sets the commitment waited for.
func WithCommitment(commitment string) Option {
	return func(c *Client) {
		c.commitment = commitment
	}
}

// WithConfirmTimeout bounds the wait for finality.
func WithConfirmTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// New creates a client paying with payer.
func New(rpc solanarpc.RPCClient, payer solana.PrivateKey, opts ...Option) *Client {
	c := &Client{
		rpc:        rpc,
		payer:      payer,
		commitment: solanarpc.CommitmentFinalized,
		timeout:    DefaultConfirmTimeout,
		log:        logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Payer returns the payer address.
func (c *Client) Payer() solana.PublicKey {
	return c.payer.PublicKey()
}

// Balance returns the lamports held by key.
func (c *Client) Balance(ctx context.Context, key solana.PublicKey) (uint64, error) {
	return c.rpc.GetBalance(ctx, key.String())
}

// Airdrop requests lamports for the payer and waits for the transfer.
func (c *Client) Airdrop(ctx context.Context, lamports uint64) (solana.Signature, error) {
	sig, err := c.rpc.RequestAirdrop(ctx, c.payer.PublicKey().String(), lamports)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("request airdrop: %w", err)
	}
	if err := c.confirm(ctx, sig); err != nil {
		return solana.Signature{}, err
	}
	c.log.WithFields(logrus.Fields{
		"signature": sig,
		"lamports":  lamports,
	}).Info("airdrop confirmed")
	return solana.SignatureFromBase58(sig)
}

// Send signs ixs with the payer and extra signers, submits them as one
// transaction and waits for finality.
func (c *Client) Send(ctx context.Context, ixs []solana.Instruction, signers ...solana.PrivateKey) (solana.Signature, error) {
	hash, err := c.rpc.GetLatestBlockhash(ctx)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("get latest blockhash: %w", err)
	}
	recent, err := solana.HashFromBase58(hash.Blockhash)
	if err != nil {
		return solana.Signature{}, fmt.Errorf("parse blockhash: %w", err)
	}

	tx, err := solana.NewTransaction(ixs, recent, solana.TransactionPayer(c.payer.PublicKey()))
	if err != nil {
		return solana.Signature{}, fmt.Errorf("build transaction: %w", err)
	}
	keys := append([]solana.PrivateKey{c.payer}, signers...)
	if _, err := tx.Sign(func(pub solana.PublicKey) *solana.PrivateKey {
		for i := range keys {
			if keys[i].PublicKey().Equals(pub) {
				return &keys[i]
			}
		}
		return nil
	}); err != nil {
		return solana.Signature{}, fmt.Errorf("sign transaction: %w", err)
	}

	raw, err := tx.MarshalBinary()
	if err != nil {
		return solana.Signature{}, fmt.Errorf("encode transaction: %w", err)
	}

	sig := tx.Signatures[0]
	log := c.log.WithField("signature", sig.String())

	if _, err := c.rpc.SendTransaction(ctx, raw, &solanarpc.SendOpts{PreflightCommitment: c.commitment}); err != nil {
		if sf, ok := solanarpc.AsSimulationFailure(err); ok {
			txErr, derr := decodeTxError(sf.Err)
			if derr != nil {
				return sig, fmt.Errorf("send transaction: %w", err)
			}
			txErr.Signature = sig.String()
			txErr.Logs = sf.Logs
			log.WithField("kind", txErr.Kind).Warn("transaction rejected")
			return sig, txErr
		}
		return sig, fmt.Errorf("send transaction: %w", err)
	}

	if err := c.confirm(ctx, sig.String()); err != nil {
		return sig, err
	}
	log.Debug("transaction confirmed")
	return sig, nil
}

// confirm waits for sig to reach the client's commitment. A transaction that
// landed with an error is returned as *TxError.
func (c *Client) confirm(ctx context.Context, sig string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if c.ws != nil {
		done, err := c.confirmWS(ctx, sig)
		if done {
			return err
		}
		if err != nil {
			c.log.WithError(err).Debug("websocket confirmation unavailable, polling")
		}
	}
	return c.confirmPoll(ctx, sig)
}

// confirmWS reports done=false when the subscription could not be used.
func (c *Client) confirmWS(ctx context.Context, sig string) (bool, error) {
	ch, err := c.ws.SignatureSubscribe(ctx, sig, c.commitment)
	if err != nil {
		return false, err
	}
	select {
	case note, ok := <-ch:
		if !ok {
			if ctx.Err() != nil {
				return true, fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
			}
			return false, nil
		}
		if note.Failed() {
			return true, c.landedError(ctx, sig, note.Err)
		}
		return true, nil
	case <-ctx.Done():
		return true, fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
	}
}

func (c *Client) confirmPoll(ctx context.Context, sig string) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 100 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0

	var status *solanarpc.SignatureStatus
	err := backoff.Retry(func() error {
		statuses, err := c.rpc.GetSignatureStatuses(ctx, []string{sig})
		if err != nil {
			return err
		}
		if len(statuses) == 0 || statuses[0] == nil || !reached(statuses[0].ConfirmationStatus, c.commitment) {
			return errors.New("pending")
		}
		status = statuses[0]
		return nil
	}, backoff.WithContext(b, ctx))
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %s", ErrConfirmationTimeout, sig)
		}
		return err
	}

	if status.Err != nil {
		raw, merr := json.Marshal(status.Err)
		if merr != nil {
			return merr
		}
		return c.landedError(ctx, sig, raw)
	}
	return nil
}

// landedError decodes the error of a recorded transaction and attaches its
// logs.
func (c *Client) landedError(ctx context.Context, sig string, raw json.RawMessage) error {
	txErr, err := decodeTxError(raw)
	if err != nil {
		return err
	}
	txErr.Signature = sig
	if tx, err := c.rpc.GetTransaction(ctx, sig); err == nil && tx != nil && tx.Meta != nil {
		txErr.Logs = tx.Meta.LogMessages
	}
	return txErr
}

var commitmentRank = map[string]int{
	solanarpc.CommitmentProcessed: 1,
	solanarpc.CommitmentConfirmed: 2,
	solanarpc.CommitmentFinalized: 3,
}

func reached(have, want string) bool {
	return commitmentRank[have] >= commitmentRank[want]
}
