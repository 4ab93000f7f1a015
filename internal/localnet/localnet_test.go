package localnet_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-issuance-lab/internal/idl"
	"solana-issuance-lab/internal/ledger/ledgertest"
	"solana-issuance-lab/internal/localnet"
	"solana-issuance-lab/internal/programs"
	solanarpc "solana-issuance-lab/internal/solana"
)

type testnet struct {
	v      *localnet.Validator
	h      *ledgertest.Harness
	srv    *httptest.Server
	client *solanarpc.HTTPClient
}

func newTestnet(t *testing.T) *testnet {
	t.Helper()
	ctx := context.Background()
	logger, _ := test.NewNullLogger()

	h := ledgertest.New(t, programs.All()...)
	v, err := localnet.NewValidator(ctx, h.Runtime, h.Txs, 1_000*solana.LAMPORTS_PER_SOL,
		localnet.WithLogger(logger),
		localnet.WithAirdropCap(10*solana.LAMPORTS_PER_SOL),
	)
	require.NoError(t, err)

	srv := httptest.NewServer(localnet.NewServer(v, logger).Routes())
	t.Cleanup(srv.Close)

	return &testnet{
		v:      v,
		h:      h,
		srv:    srv,
		client: solanarpc.NewHTTPClient(srv.URL, solanarpc.WithMaxRetries(0)),
	}
}

func (n *testnet) wsURL() string {
	return "ws" + strings.TrimPrefix(n.srv.URL, "http")
}

func (n *testnet) sign(t *testing.T, payer solana.PrivateKey, ixs []solana.Instruction, signers ...solana.PrivateKey) *solana.Transaction {
	t.Helper()
	hash, _ := n.v.Runtime().LatestBlockhash()
	return ledgertest.Sign(t, hash, payer, ixs, signers...)
}

func encode(t *testing.T, tx *solana.Transaction) []byte {
	t.Helper()
	raw, err := tx.MarshalBinary()
	require.NoError(t, err)
	return raw
}

func TestAirdropOverRPC(t *testing.T) {
	n := newTestnet(t)
	ctx := context.Background()
	wallet := solana.NewWallet().PublicKey()

	sig, err := n.client.RequestAirdrop(ctx, wallet.String(), 2*solana.LAMPORTS_PER_SOL)
	require.NoError(t, err)

	balance, err := n.client.GetBalance(ctx, wallet.String())
	require.NoError(t, err)
	assert.Equal(t, 2*solana.LAMPORTS_PER_SOL, balance)

	statuses, err := n.client.GetSignatureStatuses(ctx, []string{sig})
	require.NoError(t, err)
	require.NotNil(t, statuses[0])
	assert.Equal(t, solanarpc.CommitmentFinalized, statuses[0].ConfirmationStatus)
	assert.Nil(t, statuses[0].Err)

	tx, err := n.client.GetTransaction(ctx, sig)
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Contains(t, tx.Meta.LogMessages, "Program 11111111111111111111111111111111 success")
	assert.Contains(t, tx.Message.AccountKeys, n.v.Faucet().String())
}

func TestAirdropLimits(t *testing.T) {
	n := newTestnet(t)
	ctx := context.Background()
	wallet := solana.NewWallet().PublicKey().String()

	for _, lamports := range []uint64{0, 11 * solana.LAMPORTS_PER_SOL} {
		_, err := n.client.RequestAirdrop(ctx, wallet, lamports)
		var rpcErr *solanarpc.RPCError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, solanarpc.CodeInvalidParams, rpcErr.Code)
	}

	_, err := n.client.RequestAirdrop(ctx, "not-a-key", 1)
	assert.Error(t, err)
}

func TestSendTransactionPreflightFailure(t *testing.T) {
	n := newTestnet(t)
	ctx := context.Background()
	payer := n.h.NewWallet(t)
	counter := solana.NewWallet().PublicKey()

	tx := n.sign(t, payer, []solana.Instruction{idl.NewIncrementInstruction(counter)})
	_, err := n.client.SendTransaction(ctx, encode(t, tx), nil)
	require.Error(t, err)

	sf, ok := solanarpc.AsSimulationFailure(err)
	require.True(t, ok, "got %v", err)
	assert.JSONEq(t, `{"InstructionError":[0,{"Custom":6001}]}`, string(sf.Err))
	assert.NotEmpty(t, sf.Logs)

	// not recorded
	statuses, err := n.client.GetSignatureStatuses(ctx, []string{tx.Signatures[0].String()})
	require.NoError(t, err)
	assert.Nil(t, statuses[0])
}

func TestSendTransactionSkipPreflightRecordsFailure(t *testing.T) {
	n := newTestnet(t)
	ctx := context.Background()
	payer := n.h.NewWallet(t)

	tx := n.sign(t, payer, []solana.Instruction{idl.NewIncrementInstruction(solana.NewWallet().PublicKey())})
	sig, err := n.client.SendTransaction(ctx, encode(t, tx), &solanarpc.SendOpts{SkipPreflight: true})
	require.NoError(t, err)
	assert.Equal(t, tx.Signatures[0].String(), sig)

	statuses, err := n.client.GetSignatureStatuses(ctx, []string{sig})
	require.NoError(t, err)
	require.NotNil(t, statuses[0])
	assert.NotNil(t, statuses[0].Err)

	sigs, err := n.client.GetSignaturesForAddress(ctx, payer.PublicKey().String(), nil)
	require.NoError(t, err)
	require.Len(t, sigs, 1)
	assert.NotNil(t, sigs[0].Err)
}

func TestSendTransactionBadSignature(t *testing.T) {
	n := newTestnet(t)
	payer := n.h.NewWallet(t)

	tx := n.sign(t, payer, []solana.Instruction{idl.NewSystemTransferInstruction(payer.PublicKey(), solana.NewWallet().PublicKey(), 1)})
	tx.Signatures[0][0] ^= 0xff

	_, err := n.client.SendTransaction(context.Background(), encode(t, tx), nil)
	var rpcErr *solanarpc.RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, solanarpc.CodeInvalidTransaction, rpcErr.Code)
}

func TestGetAccountInfoAfterCreateToken(t *testing.T) {
	n := newTestnet(t)
	ctx := context.Background()
	payer := n.h.NewWallet(t)

	mint, _, err := idl.FindMintAddress()
	require.NoError(t, err)
	md, _, err := idl.FindMetadataAddress(mint)
	require.NoError(t, err)

	ix, err := idl.NewCreateTokenInstruction(
		idl.CreateTokenAccounts{Metadata: md, Mint: mint, Payer: payer.PublicKey()},
		idl.CreateTokenParams{Name: "My Token", Symbol: "MTK", URI: "https://example.com/metadata", Decimals: 9},
	)
	require.NoError(t, err)
	_, err = n.client.SendTransaction(ctx, encode(t, n.sign(t, payer, []solana.Instruction{ix})), nil)
	require.NoError(t, err)

	info, err := n.client.GetAccountInfo(ctx, mint.String())
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, idl.SPLTokenProgramID.String(), info.Owner)
	assert.Equal(t, uint64(1_461_600), info.Lamports)

	missing, err := n.client.GetAccountInfo(ctx, solana.NewWallet().PublicKey().String())
	require.NoError(t, err)
	assert.Nil(t, missing)

	rent, err := n.client.GetMinimumBalanceForRentExemption(ctx, idl.MintSize)
	require.NoError(t, err)
	assert.Equal(t, info.Lamports, rent)
}

func TestSignatureSubscribeBeforeAndAfter(t *testing.T) {
	n := newTestnet(t)
	ctx := context.Background()
	payer := n.h.NewWallet(t)

	ws, err := solanarpc.NewWSClient(ctx, n.wsURL(), nil)
	require.NoError(t, err)
	defer ws.Close()

	tx := n.sign(t, payer, []solana.Instruction{idl.NewSystemTransferInstruction(payer.PublicKey(), solana.NewWallet().PublicKey(), 1_000_000)})
	sig := tx.Signatures[0].String()

	before, err := ws.SignatureSubscribe(ctx, sig, solanarpc.CommitmentFinalized)
	require.NoError(t, err)

	_, err = n.client.SendTransaction(ctx, encode(t, tx), nil)
	require.NoError(t, err)

	select {
	case note := <-before:
		assert.Equal(t, sig, note.Signature)
		assert.False(t, note.Failed())
		assert.Equal(t, int64(n.v.Runtime().Slot()), note.Slot)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification")
	}

	// already recorded: notified right after the subscription
	after, err := ws.SignatureSubscribe(ctx, sig, solanarpc.CommitmentFinalized)
	require.NoError(t, err)
	select {
	case note := <-after:
		assert.Equal(t, sig, note.Signature)
	case <-time.After(2 * time.Second):
		t.Fatal("no notification for recorded signature")
	}
}

func TestUnknownMethodAndBatch(t *testing.T) {
	n := newTestnet(t)

	body := `[{"jsonrpc":"2.0","id":1,"method":"getSlot"},{"jsonrpc":"2.0","id":2,"method":"getBlockProduction"}]`
	resp, err := http.Post(n.srv.URL, "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out []struct {
		ID     int              `json:"id"`
		Result *json.RawMessage `json:"result"`
		Error  *struct {
			Code int `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.Len(t, out, 2)
	assert.NotNil(t, out[0].Result)
	require.NotNil(t, out[1].Error)
	assert.Equal(t, solanarpc.CodeMethodNotFound, out[1].Error.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	n := newTestnet(t)
	_, err := n.client.GetSlot(context.Background())
	require.NoError(t, err)

	resp, err := http.Get(n.srv.URL + "/healthz")
	require.NoError(t, err)
	var health struct {
		Status string `json:"status"`
		Faucet string `json:"faucet"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	resp.Body.Close()
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, n.v.Faucet().String(), health.Faucet)

	resp, err = http.Get(n.srv.URL + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `issuance_lab_rpc_requests_total{method="getSlot",status="ok"} 1`)
}

func TestGetSignaturesForAddressWindow(t *testing.T) {
	n := newTestnet(t)
	ctx := context.Background()
	payer := n.h.NewWallet(t)
	dest := solana.NewWallet().PublicKey()

	var sigs []string
	for i := 0; i < 3; i++ {
		tx := n.sign(t, payer, []solana.Instruction{idl.NewSystemTransferInstruction(payer.PublicKey(), dest, uint64(1_000_000+i))})
		sig, err := n.client.SendTransaction(ctx, encode(t, tx), nil)
		require.NoError(t, err)
		sigs = append(sigs, sig)
	}

	all, err := n.client.GetSignaturesForAddress(ctx, dest.String(), nil)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, sigs[2], all[0].Signature)

	window, err := n.client.GetSignaturesForAddress(ctx, dest.String(), &solanarpc.SignaturesOpts{Before: sigs[2], Until: sigs[0]})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, sigs[1], window[0].Signature)

	limited, err := n.client.GetSignaturesForAddress(ctx, dest.String(), &solanarpc.SignaturesOpts{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGetProgramAccounts(t *testing.T) {
	n := newTestnet(t)
	ctx := context.Background()
	payer := n.h.NewWallet(t)

	var counters []string
	for i := 0; i < 2; i++ {
		counter := solana.NewWallet().PrivateKey
		tx := n.sign(t, payer, []solana.Instruction{idl.NewInitializeCounterInstruction(counter.PublicKey(), payer.PublicKey())}, counter)
		_, err := n.client.SendTransaction(ctx, encode(t, tx), nil)
		require.NoError(t, err)
		counters = append(counters, counter.PublicKey().String())
	}

	call := func(params string) []struct {
		Pubkey string `json:"pubkey"`
	} {
		body := `{"jsonrpc":"2.0","id":1,"method":"getProgramAccounts","params":` + params + `}`
		resp, err := http.Post(n.srv.URL, "application/json", bytes.NewBufferString(body))
		require.NoError(t, err)
		defer resp.Body.Close()
		var out struct {
			Result []struct {
				Pubkey string `json:"pubkey"`
			} `json:"result"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
		return out.Result
	}

	program := idl.CounterProgramID.String()
	all := call(`["` + program + `",{"encoding":"base64","filters":[{"dataSize":16}]}]`)
	require.Len(t, all, 2)
	var got []string
	for _, a := range all {
		got = append(got, a.Pubkey)
	}
	assert.ElementsMatch(t, counters, got)

	assert.Empty(t, call(`["`+program+`",{"filters":[{"dataSize":82}]}]`))
}
