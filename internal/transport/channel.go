package transport

import (
	"fmt"
	"sync"
)

// Address uniquely identifies one directed channel instance. Both endpoints
// of a physical interface derive the same Address independently, so channels
// pair up without negotiation.
type Address struct {
	Sender   int
	Receiver int
	Variable string
	Location int
	Flux     bool // flux-correction channels are disjoint from ghost channels
}

func (a Address) String() string {
	kind := ""
	if a.Flux {
		kind = "/flux"
	}
	return fmt.Sprintf("%d->%d/%s@%d%s", a.Sender, a.Receiver, a.Variable, a.Location, kind)
}

// State is a channel's lifecycle position.
type State uint8

const (
	Available State = iota
	Sending
	Sent
	Receiving
	Received
	ReceivedNull
)

func (s State) String() string {
	switch s {
	case Available:
		return "available"
	case Sending:
		return "sending"
	case Sent:
		return "sent"
	case Receiving:
		return "receiving"
	case Received:
		return "received"
	case ReceivedNull:
		return "received-null"
	default:
		return "unknown"
	}
}

// Direction tells which half of a logical channel an endpoint owns.
type Direction uint8

const (
	Send Direction = iota
	Recv
)

func (d Direction) String() string {
	if d == Send {
		return "send"
	}
	return "recv"
}

// Channel is one endpoint of a persistent boundary connection. The buffer is
// reusable across rounds; the generation counter bumps whenever the backing
// storage changes, which is what cache validation compares against.
type Channel struct {
	mu       sync.Mutex
	addr     Address
	dir      Direction
	capacity int

	state   State
	buf     []float64
	gen     uint64
	payload int
	null    bool
}

func newChannel(addr Address, capacity int, dir Direction) *Channel {
	c := &Channel{addr: addr, dir: dir, capacity: capacity}
	if dir == Recv {
		// Receive buffers are materialized for the whole epoch so arrivals
		// never change the storage identity the cache recorded.
		c.reserveLocked()
	}
	return c
}

// Addr returns the channel's address.
func (c *Channel) Addr() Address { return c.addr }

// Dir returns which half of the logical channel this endpoint is.
func (c *Channel) Dir() Direction { return c.dir }

// Capacity returns the buffer capacity in values.
func (c *Channel) Capacity() int { return c.capacity }

// State returns the current lifecycle state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsAvailableForWrite reports whether the buffer may be overwritten. This is
// the backpressure check: a false answer means the previous round's data is
// still in flight and the caller must defer.
func (c *Channel) IsAvailableForWrite() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == Available
}

// Reserve ensures the buffer is materialized, bumping the generation when
// storage is (re)created. Called by sender-side cache validation while the
// variable is allocated.
func (c *Channel) Reserve() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reserveLocked()
}

func (c *Channel) reserveLocked() {
	if c.buf == nil {
		c.buf = make([]float64, c.capacity)
		c.gen++
	}
}

// Release drops the buffer storage. Called by sender-side cache validation
// while the variable is unallocated.
func (c *Channel) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.buf != nil {
		c.buf = nil
		c.gen++
	}
}

// Generation identifies the current backing storage; zero means the buffer
// was never materialized.
func (c *Channel) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// Buffer exposes the backing storage for packing and unpacking. The caller
// must hold the state that entitles it to the buffer (Available before a
// send, Received after an arrival).
func (c *Channel) Buffer() []float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buf
}

// IsNull reports whether the last arrival carried the null marker.
func (c *Channel) IsNull() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.null
}

// Payload returns the value count of the last posted or delivered payload.
func (c *Channel) Payload() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.payload
}

// Post stages a send: Available -> Sending, recording the payload length
// and the null marker. The caller follows up with Transport.PostSend.
func (c *Channel) Post(n int, null bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Available {
		return fmt.Errorf("channel %s: post in state %s", c.addr, c.state)
	}
	if !null {
		c.reserveLocked()
	}
	c.state = Sending
	c.payload = n
	c.null = null
	return nil
}

// completeSend moves Sending -> Sent; idempotent once sent.
func (c *Channel) completeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == Sending {
		c.state = Sent
	}
}

// arm moves Available -> Receiving.
func (c *Channel) arm() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Available {
		return fmt.Errorf("channel %s: arm in state %s", c.addr, c.state)
	}
	c.state = Receiving
	return nil
}

// deliver lands an arrival: Receiving -> Received or ReceivedNull.
func (c *Channel) deliver(payload []float64, null bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Receiving {
		return fmt.Errorf("channel %s: deliver in state %s", c.addr, c.state)
	}
	if null {
		c.state = ReceivedNull
		c.null = true
		c.payload = 0
		return nil
	}
	c.reserveLocked()
	c.payload = copy(c.buf, payload)
	c.null = false
	c.state = Received
	return nil
}

// Reset unconditionally returns the channel to Available. Only the round's
// drain step calls this.
func (c *Channel) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = Available
}
