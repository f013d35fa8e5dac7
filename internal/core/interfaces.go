package core

import "errors"

// Frame is a raw signaling payload as read from the wire.
type Frame []byte

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

// SignalConn abstracts the transport endpoint of a single connection.
// Owned by the adapter; the adapter must Close() it. TrySend never blocks:
// a full outbound buffer returns ErrBackpressure, a torn-down connection
// returns ErrClosed.
type SignalConn interface {
	TrySend(Frame) error
	Close()
}
