// Package transport provides the persistent point-to-point channels the
// exchange core posts boundary payloads on.
//
// A Channel is bound to one directed Address for its whole topology epoch
// and owns a reusable float64 buffer guarded by an explicit state machine:
//
//	Available -> Sending -> Sent -> Available            (send side)
//	Available -> Receiving -> Received | ReceivedNull    (receive side)
//
// Only the round's drain step returns a channel to Available; nothing else
// may overwrite a buffer that is not Available. ReceivedNull is a valid
// terminal state meaning the counterpart's variable was unallocated this
// round.
//
// The Transport interface matches the operations a reliable non-blocking
// wire must provide; Loopback implements it in-process for same-rank
// neighbors and for tests.
package transport
