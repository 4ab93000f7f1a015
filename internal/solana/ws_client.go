package solana

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// WSClientConfig configures WebSocket client behavior.
type WSClientConfig struct {
	// ReconnectDelay is initial delay before reconnect attempt.
	ReconnectDelay time.Duration
	// MaxReconnectDelay is maximum delay between reconnect attempts.
	MaxReconnectDelay time.Duration
	// PingInterval is interval for sending ping frames.
	PingInterval time.Duration
	// ReadTimeout is timeout for reading messages.
	ReadTimeout time.Duration
	// WriteTimeout is timeout for writing messages.
	WriteTimeout time.Duration
	// SubscribeTimeout bounds the wait for a subscription id.
	SubscribeTimeout time.Duration
	// Logger receives connection and protocol errors.
	Logger logrus.FieldLogger
}

// DefaultWSConfig returns default WebSocket configuration.
func DefaultWSConfig() WSClientConfig {
	return WSClientConfig{
		ReconnectDelay:    1 * time.Second,
		MaxReconnectDelay: 30 * time.Second,
		PingInterval:      30 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		SubscribeTimeout:  30 * time.Second,
		Logger:            logrus.StandardLogger(),
	}
}

// signatureSub is one live signature subscription.
type signatureSub struct {
	signature  string
	commitment string
	ch         chan SignatureNotification
	gone       chan struct{}
}

// finish closes the waiter. The caller must have removed sub from subs.
func (s *signatureSub) finish() {
	close(s.ch)
	close(s.gone)
}

type subscribeResult struct {
	id  int64
	err error
}

// pendingSub waits for the server to acknowledge a subscribe request.
type pendingSub struct {
	sub *signatureSub
	ch  chan subscribeResult
}

// WSClientImpl implements WSClient using gorilla/websocket.
type WSClientImpl struct {
	endpoint string
	config   WSClientConfig
	log      logrus.FieldLogger

	conn      *websocket.Conn
	connMu    sync.Mutex
	closed    atomic.Bool
	requestID atomic.Uint64

	// subs maps subscription ID to its waiter
	subs   map[int64]*signatureSub
	subsMu sync.Mutex

	// pendingSubs maps request ID to channel waiting for subscription ID
	pendingSubs   map[uint64]pendingSub
	pendingSubsMu sync.Mutex

	// done signals shutdown
	done chan struct{}
	wg   sync.WaitGroup

	// reconnecting indicates reconnection in progress
	reconnecting atomic.Bool
}

// NewWSClient creates a new WebSocket client and connects to the endpoint.
func NewWSClient(ctx context.Context, endpoint string, config *WSClientConfig) (*WSClientImpl, error) {
	cfg := DefaultWSConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}
	if cfg.SubscribeTimeout == 0 {
		cfg.SubscribeTimeout = 30 * time.Second
	}

	c := &WSClientImpl{
		endpoint:    endpoint,
		config:      cfg,
		log:         cfg.Logger.WithField("component", "ws"),
		subs:        make(map[int64]*signatureSub),
		pendingSubs: make(map[uint64]pendingSub),
		done:        make(chan struct{}),
	}

	if err := c.connect(ctx); err != nil {
		return nil, err
	}

	c.wg.Add(1)
	go c.readLoop()

	c.wg.Add(1)
	go c.pingLoop()

	return c, nil
}

// connect establishes WebSocket connection.
func (c *WSClientImpl) connect(ctx context.Context) error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}

	conn, _, err := dialer.DialContext(ctx, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("websocket dial: %w", err)
	}

	c.conn = conn
	return nil
}

// SignatureSubscribe subscribes to the status of signature. The
// subscription is bound to ctx: when ctx ends first, the channel is closed
// and signatureUnsubscribe is sent.
func (c *WSClientImpl) SignatureSubscribe(ctx context.Context, signature, commitment string) (<-chan SignatureNotification, error) {
	if commitment == "" {
		commitment = CommitmentFinalized
	}

	sub := &signatureSub{
		signature:  signature,
		commitment: commitment,
		ch:         make(chan SignatureNotification, 1),
		gone:       make(chan struct{}),
	}
	subID, err := c.subscribe(ctx, sub)
	if err != nil {
		return nil, err
	}
	c.log.WithFields(logrus.Fields{"signature": signature, "subscription": subID}).Debug("signature subscribed")

	go c.release(ctx, sub)
	return sub.ch, nil
}

// release drops sub when ctx ends before its notification arrives.
func (c *WSClientImpl) release(ctx context.Context, sub *signatureSub) {
	select {
	case <-ctx.Done():
	case <-sub.gone:
		return
	case <-c.done:
		return
	}

	// the id may have changed across a reconnect
	c.subsMu.Lock()
	var subID int64
	found := false
	for id, s := range c.subs {
		if s == sub {
			subID, found = id, true
			delete(c.subs, id)
			break
		}
	}
	c.subsMu.Unlock()
	if !found {
		return
	}
	sub.finish()

	if err := c.unsubscribe(subID); err != nil {
		c.log.WithError(err).WithField("subscription", subID).Debug("unsubscribe failed")
	}
}

// unsubscribe sends signatureUnsubscribe without waiting for the reply.
func (c *WSClientImpl) unsubscribe(subID int64) error {
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      c.requestID.Add(1),
		Method:  "signatureUnsubscribe",
		Params:  []interface{}{subID},
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	return c.conn.WriteJSON(req)
}

// subscribe sends signatureSubscribe and registers sub under the returned id.
func (c *WSClientImpl) subscribe(ctx context.Context, sub *signatureSub) (int64, error) {
	if c.closed.Load() {
		return 0, fmt.Errorf("client closed")
	}

	reqID := c.requestID.Add(1)
	req := wsRequest{
		JSONRPC: "2.0",
		ID:      reqID,
		Method:  "signatureSubscribe",
		Params: []interface{}{
			sub.signature,
			map[string]string{"commitment": sub.commitment},
		},
	}

	confirmCh := make(chan subscribeResult, 1)
	c.pendingSubsMu.Lock()
	c.pendingSubs[reqID] = pendingSub{sub: sub, ch: confirmCh}
	c.pendingSubsMu.Unlock()

	forget := func() {
		c.pendingSubsMu.Lock()
		delete(c.pendingSubs, reqID)
		c.pendingSubsMu.Unlock()
	}

	c.connMu.Lock()
	if c.conn == nil {
		c.connMu.Unlock()
		forget()
		return 0, fmt.Errorf("not connected")
	}

	c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
	err := c.conn.WriteJSON(req)
	c.connMu.Unlock()

	if err != nil {
		forget()
		return 0, fmt.Errorf("write subscribe: %w", err)
	}

	select {
	case res, ok := <-confirmCh:
		if !ok {
			return 0, fmt.Errorf("client closed")
		}
		if res.err != nil {
			return 0, res.err
		}
		return res.id, nil
	case <-time.After(c.config.SubscribeTimeout):
		forget()
		return 0, fmt.Errorf("subscription timeout after %s", c.config.SubscribeTimeout)
	case <-c.done:
		return 0, fmt.Errorf("client closed")
	case <-ctx.Done():
		forget()
		return 0, ctx.Err()
	}
}

// Close closes the WebSocket connection.
func (c *WSClientImpl) Close() error {
	if c.closed.Swap(true) {
		return nil // Already closed
	}

	close(c.done)

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.conn.Close()
	}
	c.connMu.Unlock()

	c.subsMu.Lock()
	for id, sub := range c.subs {
		delete(c.subs, id)
		sub.finish()
	}
	c.subsMu.Unlock()

	c.pendingSubsMu.Lock()
	for id, p := range c.pendingSubs {
		close(p.ch)
		delete(c.pendingSubs, id)
	}
	c.pendingSubsMu.Unlock()

	c.wg.Wait()
	return nil
}

// readLoop reads messages from WebSocket and dispatches to subscribers.
func (c *WSClientImpl) readLoop() {
	defer c.wg.Done()

	reconnectDelay := c.config.ReconnectDelay

	for !c.closed.Load() {
		c.connMu.Lock()
		conn := c.conn
		c.connMu.Unlock()

		if conn == nil {
			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		conn.SetReadDeadline(time.Now().Add(c.config.ReadTimeout))

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.closed.Load() {
				return
			}
			c.log.WithError(err).Warn("websocket read failed, reconnecting")

			if !c.reconnecting.Swap(true) {
				go c.reconnect(reconnectDelay)
			}

			reconnectDelay = reconnectDelay * 2
			if reconnectDelay > c.config.MaxReconnectDelay {
				reconnectDelay = c.config.MaxReconnectDelay
			}

			select {
			case <-c.done:
				return
			case <-time.After(100 * time.Millisecond):
				continue
			}
		}

		reconnectDelay = c.config.ReconnectDelay

		c.handleMessage(message)
	}
}

// reconnect attempts to reconnect and resubscribe.
func (c *WSClientImpl) reconnect(delay time.Duration) {
	defer c.reconnecting.Store(false)

	if c.closed.Load() {
		return
	}

	select {
	case <-c.done:
		return
	case <-time.After(delay):
	}

	c.connMu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.connMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := c.connect(ctx); err != nil {
		// Reconnect failed, will retry on next read error
		c.log.WithError(err).Warn("websocket reconnect failed")
		return
	}

	c.resubscribeAll()
}

// resubscribeAll moves every live subscription to the new connection. A
// signature that finalized while disconnected is notified immediately by the
// server on resubscribe.
func (c *WSClientImpl) resubscribeAll() {
	c.subsMu.Lock()
	live := make(map[int64]*signatureSub, len(c.subs))
	for id, sub := range c.subs {
		live[id] = sub
		delete(c.subs, id)
	}
	c.subsMu.Unlock()

	for oldSubID, sub := range live {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_, err := c.subscribe(ctx, sub)
		cancel()

		if err != nil {
			c.log.WithError(err).WithField("signature", sub.signature).Warn("resubscribe failed")
			// Keep the old mapping so Close still releases the waiter.
			c.subsMu.Lock()
			c.subs[oldSubID] = sub
			c.subsMu.Unlock()
		}
	}
}

// handleMessage processes incoming WebSocket message.
func (c *WSClientImpl) handleMessage(message []byte) {
	var env wsEnvelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.log.WithError(err).Warn("undecodable websocket message")
		return
	}

	switch {
	case env.Method == "signatureNotification":
		c.handleSignatureNotification(env.Params)
	case env.Error != nil:
		c.resolvePending(env.ID, subscribeResult{err: env.Error})
	case env.ID != 0:
		var subID int64
		if err := json.Unmarshal(env.Result, &subID); err != nil {
			// unsubscribe acknowledgements carry a bool
			return
		}
		c.resolvePending(env.ID, subscribeResult{id: subID})
	}
}

// resolvePending registers the subscription on success and hands the result
// to the waiting subscriber. It runs on the read loop, so the registration
// lands before any notification for the new id is read.
func (c *WSClientImpl) resolvePending(reqID uint64, res subscribeResult) {
	c.pendingSubsMu.Lock()
	p, ok := c.pendingSubs[reqID]
	if ok {
		delete(c.pendingSubs, reqID)
	}
	c.pendingSubsMu.Unlock()

	if !ok {
		return
	}
	if res.err == nil {
		c.subsMu.Lock()
		c.subs[res.id] = p.sub
		c.subsMu.Unlock()
	}
	p.ch <- res
}

// handleSignatureNotification delivers the notification and retires the
// subscription; the server cancels it after one notification.
func (c *WSClientImpl) handleSignatureNotification(params *wsNotificationParams) {
	if params == nil {
		return
	}

	c.subsMu.Lock()
	sub, ok := c.subs[params.Subscription]
	if ok {
		delete(c.subs, params.Subscription)
	}
	c.subsMu.Unlock()

	if !ok {
		c.log.WithField("subscription", params.Subscription).Debug("notification for unknown subscription")
		return
	}

	n := SignatureNotification{
		Signature: sub.signature,
		Err:       params.Result.Value.Err,
	}
	if params.Result.Context != nil {
		n.Slot = params.Result.Context.Slot
	}

	sub.ch <- n
	sub.finish()
}

// pingLoop sends periodic ping frames to keep connection alive.
func (c *WSClientImpl) pingLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.connMu.Lock()
			if c.conn != nil {
				c.conn.SetWriteDeadline(time.Now().Add(c.config.WriteTimeout))
				if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					c.log.WithError(err).Debug("ping failed")
				}
			}
			c.connMu.Unlock()
		}
	}
}

// WebSocket message types

type wsRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params,omitempty"`
}

// wsEnvelope covers responses and notifications.
type wsEnvelope struct {
	JSONRPC string                `json:"jsonrpc"`
	ID      uint64                `json:"id"`
	Method  string                `json:"method"`
	Result  json.RawMessage       `json:"result"`
	Error   *RPCError             `json:"error"`
	Params  *wsNotificationParams `json:"params"`
}

type wsNotificationParams struct {
	Subscription int64                `json:"subscription"`
	Result       wsNotificationResult `json:"result"`
}

type wsNotificationResult struct {
	Context *wsContext       `json:"context"`
	Value   wsSignatureValue `json:"value"`
}

type wsContext struct {
	Slot int64 `json:"slot"`
}

type wsSignatureValue struct {
	Err json.RawMessage `json:"err"`
}
