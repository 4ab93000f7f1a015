package localnet

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"solana-issuance-lab/internal/domain"
	"solana-issuance-lab/internal/ledger"
	solanarpc "solana-issuance-lab/internal/solana"
	"solana-issuance-lab/internal/storage"
)

const (
	maxRequestBytes     = 1 << 20
	maxSignaturesLimit  = 1000
	maxStatusSignatures = 256
)

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

// rpcError is a JSON-RPC error with optional data.
type rpcError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

func errParse(err error) *rpcError {
	return &rpcError{Code: solanarpc.CodeParseError, Message: "Parse error: " + err.Error()}
}

func errInvalidParams(format string, args ...interface{}) *rpcError {
	return &rpcError{Code: solanarpc.CodeInvalidParams, Message: "Invalid params: " + fmt.Sprintf(format, args...)}
}

func errMethodNotFound(method string) *rpcError {
	return &rpcError{Code: solanarpc.CodeMethodNotFound, Message: "Method not found: " + method}
}

func errInternal(err error) *rpcError {
	return &rpcError{Code: -32603, Message: "Internal error: " + err.Error()}
}

func resultResponse(id json.RawMessage, result interface{}) *rpcResponse {
	if result == nil {
		result = json.RawMessage("null")
	}
	return &rpcResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, err error) *rpcResponse {
	var re *rpcError
	if !errors.As(err, &re) {
		re = errInternal(err)
	}
	if id == nil {
		id = json.RawMessage("null")
	}
	return &rpcResponse{JSONRPC: "2.0", ID: id, Error: re}
}

// decodeParams unpacks positional params into targets. Missing trailing
// params leave their targets untouched.
func decodeParams(raw json.RawMessage, targets ...interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	var params []json.RawMessage
	if err := json.Unmarshal(raw, &params); err != nil {
		return errInvalidParams("expected an array")
	}
	if len(params) > len(targets) {
		return errInvalidParams("expected at most %d params, got %d", len(targets), len(params))
	}
	for i, p := range params {
		if string(p) == "null" {
			continue
		}
		if err := json.Unmarshal(p, targets[i]); err != nil {
			return errInvalidParams("param %d: %v", i, err)
		}
	}
	return nil
}

func parsePubkey(s string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, errInvalidParams("invalid pubkey %q", s)
	}
	return key, nil
}

func parseSignature(s string) (solana.Signature, error) {
	sig, err := solana.SignatureFromBase58(s)
	if err != nil {
		return solana.Signature{}, errInvalidParams("invalid signature %q", s)
	}
	return sig, nil
}

// storedError returns the recorded wire error, nil on success.
func storedError(rec *domain.TransactionRecord) interface{} {
	if rec.Succeeded() {
		return nil
	}
	return json.RawMessage(rec.Err)
}

type methodFunc func(ctx context.Context, params json.RawMessage) (interface{}, error)

func (s *Server) methods() map[string]methodFunc {
	return map[string]methodFunc{
		"getAccountInfo":                    s.getAccountInfo,
		"getBalance":                        s.getBalance,
		"getHealth":                         s.getHealth,
		"getLatestBlockhash":                s.getLatestBlockhash,
		"getProgramAccounts":                s.getProgramAccounts,
		"getMinimumBalanceForRentExemption": s.getMinimumBalanceForRentExemption,
		"getSignatureStatuses":              s.getSignatureStatuses,
		"getSignaturesForAddress":           s.getSignaturesForAddress,
		"getSlot":                           s.getSlot,
		"getTransaction":                    s.getTransaction,
		"requestAirdrop":                    s.requestAirdrop,
		"sendTransaction":                   s.sendTransaction,
	}
}

// handleRPC serves single and batched JSON-RPC requests.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		writeJSON(w, errorResponse(nil, errParse(err)))
		return
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var reqs []rpcRequest
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			writeJSON(w, errorResponse(nil, errParse(err)))
			return
		}
		out := make([]*rpcResponse, 0, len(reqs))
		for i := range reqs {
			out = append(out, s.dispatch(r.Context(), &reqs[i]))
		}
		writeJSON(w, out)
		return
	}

	var req rpcRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		writeJSON(w, errorResponse(nil, errParse(err)))
		return
	}
	writeJSON(w, s.dispatch(r.Context(), &req))
}

func (s *Server) dispatch(ctx context.Context, req *rpcRequest) *rpcResponse {
	start := time.Now()
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.v.metrics.RecordRPC("invalid", "error", time.Since(start).Seconds())
		return errorResponse(req.ID, &rpcError{Code: solanarpc.CodeInvalidRequest, Message: "Invalid request"})
	}

	fn, ok := s.handlers[req.Method]
	if !ok {
		s.v.metrics.RecordRPC("unknown", "error", time.Since(start).Seconds())
		return errorResponse(req.ID, errMethodNotFound(req.Method))
	}

	result, err := fn(ctx, req.Params)
	if err != nil {
		s.v.metrics.RecordRPC(req.Method, "error", time.Since(start).Seconds())
		s.log.WithError(err).WithField("method", req.Method).Debug("rpc request failed")
		return errorResponse(req.ID, err)
	}
	s.v.metrics.RecordRPC(req.Method, "ok", time.Since(start).Seconds())
	return resultResponse(req.ID, result)
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// withContext wraps a result with the current slot.
func (s *Server) withContext(value interface{}) interface{} {
	return map[string]interface{}{
		"context": map[string]interface{}{"slot": s.v.rt.Slot()},
		"value":   value,
	}
}

func (s *Server) getHealth(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return "ok", nil
}

func (s *Server) getSlot(ctx context.Context, params json.RawMessage) (interface{}, error) {
	return s.v.rt.Slot(), nil
}

func (s *Server) getLatestBlockhash(ctx context.Context, params json.RawMessage) (interface{}, error) {
	hash, lastValid := s.v.rt.LatestBlockhash()
	return s.withContext(solanarpc.Blockhash{
		Blockhash:            hash.String(),
		LastValidBlockHeight: lastValid,
	}), nil
}

func (s *Server) getMinimumBalanceForRentExemption(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var size uint64
	if err := decodeParams(params, &size); err != nil {
		return nil, err
	}
	return ledger.MinimumBalance(size), nil
}

func (s *Server) getBalance(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var addr string
	var opts map[string]interface{}
	if err := decodeParams(params, &addr, &opts); err != nil {
		return nil, err
	}
	key, err := parsePubkey(addr)
	if err != nil {
		return nil, err
	}
	balance, err := s.v.Balance(ctx, key)
	if err != nil {
		return nil, err
	}
	return s.withContext(balance), nil
}

func (s *Server) getAccountInfo(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var addr string
	var opts struct {
		Encoding string `json:"encoding"`
	}
	if err := decodeParams(params, &addr, &opts); err != nil {
		return nil, err
	}
	key, err := parsePubkey(addr)
	if err != nil {
		return nil, err
	}

	acct, err := s.v.rt.GetAccount(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return s.withContext(nil), nil
		}
		return nil, err
	}

	var data []string
	switch opts.Encoding {
	case "base58":
		data = []string{base58.Encode(acct.Data), "base58"}
	case "base64", "":
		data = []string{base64.StdEncoding.EncodeToString(acct.Data), "base64"}
	default:
		return nil, errInvalidParams("unsupported encoding %q", opts.Encoding)
	}

	return s.withContext(map[string]interface{}{
		"lamports":   acct.Lamports,
		"owner":      acct.Owner.String(),
		"data":       data,
		"executable": acct.Executable,
		"rentEpoch":  uint64(0),
		"space":      len(acct.Data),
	}), nil
}

// getProgramAccounts supports the dataSize and memcmp filters; memcmp bytes
// are base58.
func (s *Server) getProgramAccounts(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var addr string
	var opts struct {
		Encoding string `json:"encoding"`
		Filters  []struct {
			DataSize *int `json:"dataSize"`
			Memcmp   *struct {
				Offset int    `json:"offset"`
				Bytes  string `json:"bytes"`
			} `json:"memcmp"`
		} `json:"filters"`
	}
	if err := decodeParams(params, &addr, &opts); err != nil {
		return nil, err
	}
	program, err := parsePubkey(addr)
	if err != nil {
		return nil, err
	}
	if opts.Encoding != "" && opts.Encoding != "base64" {
		return nil, errInvalidParams("unsupported encoding %q", opts.Encoding)
	}

	type memcmp struct {
		offset int
		bytes  []byte
	}
	var sizes []int
	var cmps []memcmp
	for _, f := range opts.Filters {
		switch {
		case f.DataSize != nil:
			sizes = append(sizes, *f.DataSize)
		case f.Memcmp != nil:
			b, err := base58.Decode(f.Memcmp.Bytes)
			if err != nil {
				return nil, errInvalidParams("memcmp bytes: %v", err)
			}
			cmps = append(cmps, memcmp{f.Memcmp.Offset, b})
		default:
			return nil, errInvalidParams("unsupported filter")
		}
	}

	accounts, err := s.v.rt.ProgramAccounts(ctx, program)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, len(accounts))
next:
	for _, ka := range accounts {
		data := ka.Account.Data
		for _, size := range sizes {
			if len(data) != size {
				continue next
			}
		}
		for _, c := range cmps {
			if c.offset < 0 || c.offset+len(c.bytes) > len(data) || !bytes.Equal(data[c.offset:c.offset+len(c.bytes)], c.bytes) {
				continue next
			}
		}
		out = append(out, map[string]interface{}{
			"pubkey": ka.Key.String(),
			"account": map[string]interface{}{
				"lamports":   ka.Account.Lamports,
				"owner":      ka.Account.Owner.String(),
				"data":       []string{base64.StdEncoding.EncodeToString(data), "base64"},
				"executable": ka.Account.Executable,
				"rentEpoch":  uint64(0),
				"space":      len(data),
			},
		})
	}
	return out, nil
}

func (s *Server) requestAirdrop(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var addr string
	var lamports uint64
	if err := decodeParams(params, &addr, &lamports); err != nil {
		return nil, err
	}
	key, err := parsePubkey(addr)
	if err != nil {
		return nil, err
	}

	sig, err := s.v.Airdrop(ctx, key, lamports)
	switch {
	case errors.Is(err, ErrAirdropCap), errors.Is(err, ErrAirdropZero):
		return nil, errInvalidParams("%v", err)
	case err != nil:
		return nil, errInternal(err)
	}
	return sig.String(), nil
}

func (s *Server) sendTransaction(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var encoded string
	var opts struct {
		Encoding            string `json:"encoding"`
		SkipPreflight       bool   `json:"skipPreflight"`
		PreflightCommitment string `json:"preflightCommitment"`
	}
	if err := decodeParams(params, &encoded, &opts); err != nil {
		return nil, err
	}

	var raw []byte
	var err error
	switch opts.Encoding {
	case "base58", "":
		raw, err = base58.Decode(encoded)
	case "base64":
		raw, err = base64.StdEncoding.DecodeString(encoded)
	default:
		return nil, errInvalidParams("unsupported encoding %q", opts.Encoding)
	}
	if err != nil {
		return nil, errInvalidParams("invalid %s transaction: %v", opts.Encoding, err)
	}

	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, errInvalidParams("failed to deserialize transaction: %v", err)
	}

	receipt, err := s.v.Submit(ctx, tx, ledger.ExecuteOptions{RecordFailed: opts.SkipPreflight})
	if err != nil {
		return nil, errInternal(err)
	}
	if receipt.Err != nil && !receipt.Recorded {
		return nil, preflightError(receipt)
	}
	return receipt.Signature.String(), nil
}

// preflightError reports a transaction that was not recorded.
func preflightError(receipt *ledger.Receipt) *rpcError {
	if errors.Is(receipt.Err, ledger.ErrSignatureFailure) || errors.Is(receipt.Err, ledger.ErrSanitizeFailure) {
		return &rpcError{
			Code:    solanarpc.CodeInvalidTransaction,
			Message: "Transaction signature verification failure",
		}
	}
	logs := receipt.Logs
	if logs == nil {
		logs = []string{}
	}
	return &rpcError{
		Code:    solanarpc.CodeSendTxPreflight,
		Message: "Transaction simulation failed: " + receipt.Err.Error(),
		Data: map[string]interface{}{
			"err":           ledger.WireError(receipt.Err),
			"logs":          logs,
			"accounts":      nil,
			"unitsConsumed": 0,
		},
	}
}

func (s *Server) getSignatureStatuses(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var sigs []string
	var opts map[string]interface{}
	if err := decodeParams(params, &sigs, &opts); err != nil {
		return nil, err
	}
	if len(sigs) > maxStatusSignatures {
		return nil, errInvalidParams("too many signatures: %d > %d", len(sigs), maxStatusSignatures)
	}

	out := make([]*solanarpc.SignatureStatus, len(sigs))
	for i, sig := range sigs {
		if _, err := parseSignature(sig); err != nil {
			return nil, err
		}
		rec, err := s.v.Transaction(ctx, sig)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			continue
		}
		out[i] = &solanarpc.SignatureStatus{
			Slot:               rec.Slot,
			Err:                storedError(rec),
			ConfirmationStatus: solanarpc.CommitmentFinalized,
		}
	}
	return s.withContext(out), nil
}

func (s *Server) getTransaction(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var sig string
	var opts struct {
		Encoding string `json:"encoding"`
	}
	if err := decodeParams(params, &sig, &opts); err != nil {
		return nil, err
	}
	if _, err := parseSignature(sig); err != nil {
		return nil, err
	}

	rec, err := s.v.Transaction(ctx, sig)
	if err != nil || rec == nil {
		return nil, err
	}
	tx, err := solana.TransactionFromBytes(rec.Raw)
	if err != nil {
		return nil, errInternal(fmt.Errorf("decode stored transaction: %w", err))
	}

	status := map[string]interface{}{"Ok": nil}
	if !rec.Succeeded() {
		status = map[string]interface{}{"Err": storedError(rec)}
	}

	var body interface{}
	switch opts.Encoding {
	case "json", "":
		body = encodeTransactionJSON(tx)
	case "base64":
		body = []string{base64.StdEncoding.EncodeToString(rec.Raw), "base64"}
	default:
		return nil, errInvalidParams("unsupported encoding %q", opts.Encoding)
	}

	return map[string]interface{}{
		"slot":      rec.Slot,
		"blockTime": rec.BlockTime,
		"meta": map[string]interface{}{
			"err":         storedError(rec),
			"status":      status,
			"fee":         rec.Fee,
			"logMessages": rec.Logs,
		},
		"transaction": body,
	}, nil
}

func encodeTransactionJSON(tx *solana.Transaction) map[string]interface{} {
	sigs := make([]string, len(tx.Signatures))
	for i, sig := range tx.Signatures {
		sigs[i] = sig.String()
	}
	keys := make([]string, len(tx.Message.AccountKeys))
	for i, k := range tx.Message.AccountKeys {
		keys[i] = k.String()
	}
	ixs := make([]map[string]interface{}, len(tx.Message.Instructions))
	for i, ci := range tx.Message.Instructions {
		accounts := make([]uint16, len(ci.Accounts))
		copy(accounts, ci.Accounts)
		ixs[i] = map[string]interface{}{
			"programIdIndex": ci.ProgramIDIndex,
			"accounts":       accounts,
			"data":           base58.Encode(ci.Data),
		}
	}
	return map[string]interface{}{
		"signatures": sigs,
		"message": map[string]interface{}{
			"accountKeys": keys,
			"header": map[string]interface{}{
				"numRequiredSignatures":       tx.Message.Header.NumRequiredSignatures,
				"numReadonlySignedAccounts":   tx.Message.Header.NumReadonlySignedAccounts,
				"numReadonlyUnsignedAccounts": tx.Message.Header.NumReadonlyUnsignedAccounts,
			},
			"recentBlockhash": tx.Message.RecentBlockhash.String(),
			"instructions":    ixs,
		},
	}
}

func (s *Server) getSignaturesForAddress(ctx context.Context, params json.RawMessage) (interface{}, error) {
	var addr string
	var opts struct {
		Limit  int    `json:"limit"`
		Before string `json:"before"`
		Until  string `json:"until"`
	}
	if err := decodeParams(params, &addr, &opts); err != nil {
		return nil, err
	}
	if _, err := parsePubkey(addr); err != nil {
		return nil, err
	}
	if opts.Limit <= 0 || opts.Limit > maxSignaturesLimit {
		opts.Limit = maxSignaturesLimit
	}

	// newest first; before/until bound the window exclusively
	recs, err := s.v.txs.GetByAccount(ctx, addr, maxSignaturesLimit)
	if err != nil {
		return nil, err
	}

	out := make([]map[string]interface{}, 0, opts.Limit)
	started := opts.Before == ""
	for _, rec := range recs {
		if !started {
			started = rec.Signature == opts.Before
			continue
		}
		if rec.Signature == opts.Until {
			break
		}
		out = append(out, map[string]interface{}{
			"signature":          rec.Signature,
			"slot":               rec.Slot,
			"blockTime":          rec.BlockTime,
			"err":                storedError(rec),
			"memo":               nil,
			"confirmationStatus": solanarpc.CommitmentFinalized,
		})
		if len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}
