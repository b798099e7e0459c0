// Package notify defines the outbound messaging boundary. The chat transport
// implements it; the engine only ever sees this interface.
package notify

import "context"

// Action is one labeled button attached to an outbound message. Data is the
// opaque callback payload the transport echoes back when the button is tapped.
type Action struct {
	Label string
	Data  string
}

// Outbound is a message for one recipient: text plus optional actions.
type Outbound struct {
	Text    string
	Actions [][]Action
}

// Notifier dispatches status messages to counterparties by platform user ID.
// Delivery failures are the implementation's to log; they must never
// propagate into payment outcomes.
type Notifier interface {
	Send(ctx context.Context, platformID int64, msg Outbound) error
}

// Noop discards all notifications. Used in tests and degraded setups.
type Noop struct{}

func (Noop) Send(context.Context, int64, Outbound) error { return nil }
