package bridge

import "context"

// Sender is the outbound half of the transport. Split out as an interface so
// translator and dispatcher tests can capture frames without a socket.
type Sender interface {
	Send(ctx context.Context, payload []byte) error
}
