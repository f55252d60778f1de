// Package exchange is the halo-exchange core: it enumerates block
// boundaries, derives channel addresses, maintains the per-round buffer
// caches with their validity protocol, and drives the channel lifecycle for
// ghost-zone and flux-correction rounds.
//
// The protocol is order-insensitive by construction. Each process builds its
// buffer caches in an independently shuffled slot order; the only
// cross-process agreement is the Address both endpoints derive for a shared
// interface. Backpressure is explicit: a round whose channels are not all
// available is reported as not ready and must be retried by the caller, and
// nothing in this package forces progress past that check.
package exchange
