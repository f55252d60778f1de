package transport

import (
	"fmt"
	"sync"
)

// Loopback is an in-process Transport. It pairs the send and receive
// channels created under the same Address and moves payloads with a copy.
// Same-rank neighbor relations ride on it in production; tests use it to
// exercise the full protocol without a wire.
type Loopback struct {
	mu    sync.Mutex
	pairs map[Address]*loopPair
}

type loopPair struct {
	send *Channel
	recv *Channel

	// pending holds a payload that arrived before the receiver armed.
	pending     []float64
	pendingNull bool
	hasPending  bool
}

// NewLoopback creates an empty in-process transport.
func NewLoopback() *Loopback {
	return &Loopback{pairs: make(map[Address]*loopPair)}
}

// CreateChannel registers one endpoint of a logical channel. Creating the
// same (address, direction) twice replaces the endpoint, which is what a new
// topology epoch does.
func (t *Loopback) CreateChannel(addr Address, capacity int, dir Direction) (*Channel, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("channel %s: capacity %d", addr, capacity)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	p := t.pairs[addr]
	if p == nil {
		p = &loopPair{}
		t.pairs[addr] = p
	}
	ch := newChannel(addr, capacity, dir)
	if dir == Send {
		p.send = ch
	} else {
		p.recv = ch
	}
	return ch, nil
}

// PostSend transfers the sender's buffer to the paired receiver, or parks it
// until the receiver arms. Local completion is immediate for a loopback.
func (t *Loopback) PostSend(ch *Channel) error {
	t.mu.Lock()
	p := t.pairs[ch.addr]
	t.mu.Unlock()
	if p == nil || p.send != ch {
		return fmt.Errorf("channel %s: not a registered send endpoint", ch.addr)
	}
	null := ch.IsNull()
	n := ch.Payload()
	if err := validatePosted(ch); err != nil {
		return err
	}
	var payload []float64
	if !null {
		buf := ch.Buffer()
		if n > len(buf) {
			return fmt.Errorf("channel %s: payload %d exceeds buffer %d", ch.addr, n, len(buf))
		}
		payload = append([]float64(nil), buf[:n]...)
	}
	ch.completeSend()

	t.mu.Lock()
	defer t.mu.Unlock()
	if p.recv != nil && p.recv.State() == Receiving {
		return p.recv.deliver(payload, null)
	}
	p.pending = payload
	p.pendingNull = null
	p.hasPending = true
	return nil
}

func validatePosted(ch *Channel) error {
	if s := ch.State(); s != Sending {
		return fmt.Errorf("channel %s: post-send in state %s", ch.addr, s)
	}
	return nil
}

// PostReceive arms the receiver and drains any payload that arrived early.
func (t *Loopback) PostReceive(ch *Channel) error {
	if err := ch.arm(); err != nil {
		return err
	}
	t.mu.Lock()
	p := t.pairs[ch.addr]
	var payload []float64
	var null, has bool
	if p != nil && p.recv == ch && p.hasPending {
		payload, null, has = p.pending, p.pendingNull, true
		p.pending, p.hasPending = nil, false
	}
	t.mu.Unlock()
	if has {
		return ch.deliver(payload, null)
	}
	return nil
}

// Poll returns the channel's current state; arrivals are delivered eagerly
// so no progress work happens here.
func (t *Loopback) Poll(ch *Channel) State { return ch.State() }

// WaitLocalCompletion retires a posted send. Loopback sends complete at post
// time, so this only settles the state machine.
func (t *Loopback) WaitLocalCompletion(ch *Channel) error {
	ch.completeSend()
	return nil
}
