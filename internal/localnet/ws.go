package localnet

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"solana-issuance-lab/internal/observability"
)

const wsWriteTimeout = 10 * time.Second

// hub tracks signature subscriptions across websocket connections. A
// subscription is removed once notified.
type hub struct {
	mu      sync.Mutex
	nextID  int64
	bySig   map[string]map[int64]*wsConn
	metrics *observability.Metrics
}

func newHub(m *observability.Metrics) *hub {
	return &hub{
		bySig:   make(map[string]map[int64]*wsConn),
		metrics: m,
	}
}

func (h *hub) allocate() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	return h.nextID
}

func (h *hub) register(sig string, id int64, c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	subs := h.bySig[sig]
	if subs == nil {
		subs = make(map[int64]*wsConn)
		h.bySig[sig] = subs
	}
	subs[id] = c
	c.subs[id] = sig
	h.metrics.WSSubscriptions.Inc()
}

// claim removes one subscription and reports whether it was still live.
func (h *hub) claim(sig string, id int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.removeLocked(sig, id)
}

func (h *hub) removeLocked(sig string, id int64) bool {
	subs := h.bySig[sig]
	c, ok := subs[id]
	if !ok {
		return false
	}
	delete(subs, id)
	if len(subs) == 0 {
		delete(h.bySig, sig)
	}
	delete(c.subs, id)
	h.metrics.WSSubscriptions.Dec()
	return true
}

// unsubscribe removes a subscription held by c.
func (h *hub) unsubscribe(c *wsConn, id int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	sig, ok := c.subs[id]
	if !ok {
		return false
	}
	return h.removeLocked(sig, id)
}

// drop removes every subscription of a closed connection.
func (h *hub) drop(c *wsConn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, sig := range c.subs {
		h.removeLocked(sig, id)
	}
}

// publish notifies and retires every subscription to sig.
func (h *hub) publish(sig string, slot uint64, wireErr interface{}) {
	h.mu.Lock()
	subs := h.bySig[sig]
	claimed := make(map[int64]*wsConn, len(subs))
	for id, c := range subs {
		claimed[id] = c
		h.removeLocked(sig, id)
	}
	h.mu.Unlock()

	for id, c := range claimed {
		c.notify(id, slot, wireErr)
		h.metrics.WSNotifications.Inc()
	}
}

// wsConn is one websocket client. Writes are serialized.
type wsConn struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	subs    map[int64]string // guarded by hub.mu
	log     logrus.FieldLogger
}

func (c *wsConn) write(v interface{}) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		c.log.WithError(err).Debug("websocket write failed")
	}
}

func (c *wsConn) notify(id int64, slot uint64, wireErr interface{}) {
	c.write(map[string]interface{}{
		"jsonrpc": "2.0",
		"method":  "signatureNotification",
		"params": map[string]interface{}{
			"subscription": id,
			"result": map[string]interface{}{
				"context": map[string]interface{}{"slot": slot},
				"value":   map[string]interface{}{"err": wireErr},
			},
		},
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// handleWS serves signatureSubscribe and signatureUnsubscribe.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := &wsConn{
		conn: conn,
		subs: make(map[int64]string),
		log:  s.log.WithField("remote", r.RemoteAddr),
	}
	defer func() {
		s.v.hub.drop(c)
		conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var req rpcRequest
		if err := json.Unmarshal(msg, &req); err != nil {
			c.write(errorResponse(nil, errParse(err)))
			continue
		}

		switch req.Method {
		case "signatureSubscribe":
			s.wsSignatureSubscribe(r.Context(), c, &req)
		case "signatureUnsubscribe":
			var id int64
			if err := decodeParams(req.Params, &id); err != nil {
				c.write(errorResponse(req.ID, err))
				continue
			}
			c.write(resultResponse(req.ID, s.v.hub.unsubscribe(c, id)))
		default:
			c.write(errorResponse(req.ID, errMethodNotFound(req.Method)))
		}
	}
}

// wsSignatureSubscribe acknowledges before registering so the subscription
// id always precedes its notification on the wire. A signature recorded
// before registration is caught by the store lookup that follows.
func (s *Server) wsSignatureSubscribe(ctx context.Context, c *wsConn, req *rpcRequest) {
	var sig string
	var opts struct {
		Commitment string `json:"commitment"`
	}
	if err := decodeParams(req.Params, &sig, &opts); err != nil {
		c.write(errorResponse(req.ID, err))
		return
	}
	if _, err := parseSignature(sig); err != nil {
		c.write(errorResponse(req.ID, err))
		return
	}

	h := s.v.hub
	id := h.allocate()
	c.write(resultResponse(req.ID, id))
	h.register(sig, id, c)

	rec, err := s.v.Transaction(ctx, sig)
	if err != nil {
		s.log.WithError(err).Warn("signature lookup failed")
		return
	}
	if rec != nil && h.claim(sig, id) {
		c.notify(id, rec.Slot, storedError(rec))
		h.metrics.WSNotifications.Inc()
	}
}
