package transport

// Transport is the reliable, non-blocking wire beneath the exchange core.
// Implementations must tolerate arbitrary posting order between sends and
// receives on both ends; the only cross-process agreement is channel
// identity via the Address.
type Transport interface {
	// CreateChannel binds a persistent endpoint to an address. Called once
	// per topology epoch per direction.
	CreateChannel(addr Address, capacity int, dir Direction) (*Channel, error)
	// PostSend hands the channel's packed buffer (or a null marker for an
	// unallocated variable) to the wire. Non-blocking.
	PostSend(ch *Channel) error
	// PostReceive arms a receive channel for this round. Non-blocking.
	PostReceive(ch *Channel) error
	// Poll reports the channel's state without blocking.
	Poll(ch *Channel) State
	// WaitLocalCompletion blocks until a posted send is locally retired.
	WaitLocalCompletion(ch *Channel) error
}
