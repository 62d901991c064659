// Package push defines the push notification gateway boundary.
package push

import "context"

// Message is one push notification addressed to a device token.
type Message struct {
	To       string         `json:"to"`
	Title    string         `json:"title"`
	Body     string         `json:"body"`
	Priority string         `json:"priority,omitempty"`
	Data     map[string]any `json:"data,omitempty"`
}

// DeliveryStatus is the per-message outcome reported by the gateway.
type DeliveryStatus string

const (
	DeliveryOK    DeliveryStatus = "ok"
	DeliveryError DeliveryStatus = "error"
)

// Receipt is the gateway's per-message delivery result.
type Receipt struct {
	Status  DeliveryStatus `json:"status"`
	Message string         `json:"message,omitempty"`
}

// Gateway delivers push notifications in batches.
type Gateway interface {
	// SendBatch submits all messages in one gateway call and returns one
	// receipt per message, in order.
	SendBatch(ctx context.Context, messages []Message) ([]Receipt, error)
}
