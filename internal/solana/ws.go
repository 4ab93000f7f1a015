package solana

import (
	"context"
	"encoding/json"
)

// WSClient defines Solana WebSocket subscription interface.
type WSClient interface {
	// SignatureSubscribe waits for signature to reach a commitment level.
	// The channel yields one notification and is then closed. When ctx ends
	// first the channel is closed empty and the server subscription dropped.
	SignatureSubscribe(ctx context.Context, signature, commitment string) (<-chan SignatureNotification, error)

	// Close closes the WebSocket connection.
	Close() error
}

// SignatureNotification represents a signatureNotification message.
type SignatureNotification struct {
	Signature string
	Slot      int64
	Err       json.RawMessage // null on success
}

// Failed reports whether the transaction failed.
func (n SignatureNotification) Failed() bool {
	return len(n.Err) > 0 && string(n.Err) != "null"
}
