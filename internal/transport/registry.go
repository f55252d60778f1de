package transport

import (
	"sync"

	"github.com/google/uuid"
)

// Registry owns every persistent channel for the current topology epoch,
// keyed by Address. Caches hold non-owning pointers looked up once at build
// time; the registry alone creates and drops channels. Ghost exchange and
// flux correction use disjoint key spaces so one relation can carry both.
type Registry struct {
	mu    sync.RWMutex
	epoch uuid.UUID

	send     map[Address]*Channel
	recv     map[Address]*Channel
	fluxSend map[Address]*Channel
	fluxRecv map[Address]*Channel
}

// NewRegistry creates an empty registry with a fresh epoch id.
func NewRegistry() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.epoch = uuid.New()
	r.send = make(map[Address]*Channel)
	r.recv = make(map[Address]*Channel)
	r.fluxSend = make(map[Address]*Channel)
	r.fluxRecv = make(map[Address]*Channel)
}

// BeginEpoch drops every channel and starts a new topology epoch. Channel
// identity does not persist across epochs.
func (r *Registry) BeginEpoch() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
	return r.epoch
}

// Epoch returns the current epoch id.
func (r *Registry) Epoch() uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.epoch
}

func (r *Registry) table(dir Direction, flux bool) map[Address]*Channel {
	switch {
	case flux && dir == Send:
		return r.fluxSend
	case flux:
		return r.fluxRecv
	case dir == Send:
		return r.send
	default:
		return r.recv
	}
}

// Put registers a channel under an address.
func (r *Registry) Put(addr Address, ch *Channel, flux bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table(ch.Dir(), flux)[addr] = ch
}

// Get resolves an address to its channel. A miss means topology setup never
// created the channel, which callers treat as a configuration error.
func (r *Registry) Get(addr Address, dir Direction, flux bool) (*Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.table(dir, flux)[addr]
	return ch, ok
}

// Len returns the channel count for one table, mostly for logging and tests.
func (r *Registry) Len(dir Direction, flux bool) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.table(dir, flux))
}
