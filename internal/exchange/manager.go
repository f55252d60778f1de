package exchange

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gridmesh/halo/internal/executor"
	"github.com/gridmesh/halo/internal/geometry"
	"github.com/gridmesh/halo/internal/infrastructure/config"
	"github.com/gridmesh/halo/internal/infrastructure/logging"
	"github.com/gridmesh/halo/internal/infrastructure/monitoring"
	"github.com/gridmesh/halo/internal/mesh"
	"github.com/gridmesh/halo/internal/transport"
)

// ErrNotReady reports backpressure: a previous round's data still occupies at
// least one channel. The round made no state change; retry after progress.
var ErrNotReady = errors.New("exchange round not ready")

// cacheKey addresses one buffer cache per subset tag and direction.
type cacheKey struct {
	tag Tag
	dir transport.Direction
}

// Manager drives the exchange protocol for one process's block set: topology
// epoch setup, buffer cache maintenance, and the per-round channel lifecycle.
// Methods serialize on an internal mutex; the intended pattern is a single
// control goroutine, with the bulk pack and unpack work fanned out over the
// worker pool.
type Manager struct {
	mu sync.Mutex

	set  *mesh.Set
	tr   transport.Transport
	reg  *transport.Registry
	rank int

	log     *logging.Logger
	metrics *monitoring.Metrics
	pool    *executor.Pool

	seed          int64
	deterministic bool

	epoch  uuid.UUID
	caches map[cacheKey]*Cache
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(log *logging.Logger) Option {
	return func(m *Manager) { m.log = log }
}

// WithMetrics sets the metrics collector.
func WithMetrics(mt *monitoring.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithSeed sets the cache slot shuffle seed.
func WithSeed(seed int64) Option {
	return func(m *Manager) { m.seed = seed }
}

// WithWorkers bounds the pack/unpack parallelism.
func WithWorkers(n int) Option {
	return func(m *Manager) { m.pool = executor.New(n) }
}

// WithDeterministicOrder keeps cache slots in enumeration order instead of
// shuffling them. Intended for debugging; correctness never depends on it.
func WithDeterministicOrder() Option {
	return func(m *Manager) { m.deterministic = true }
}

// NewManager creates a manager over one block set and transport. rank is the
// calling process's identity for local/nonlocal classification.
func NewManager(set *mesh.Set, tr transport.Transport, rank int, opts ...Option) *Manager {
	m := &Manager{
		set:    set,
		tr:     tr,
		reg:    transport.NewRegistry(),
		rank:   rank,
		log:    logging.NewNop(),
		pool:   executor.New(1),
		caches: make(map[cacheKey]*Cache),
	}
	for _, o := range opts {
		o(m)
	}
	return m
}

// NewManagerFromConfig creates a manager tuned by the environment-driven
// configuration: shuffle seed, slot ordering, and worker count. Options apply
// on top of the configured values.
func NewManagerFromConfig(set *mesh.Set, tr transport.Transport, rank int, cfg *config.Config, opts ...Option) *Manager {
	base := []Option{
		WithSeed(cfg.Exchange.ShuffleSeed),
		WithWorkers(cfg.Exchange.Workers),
	}
	if cfg.Exchange.Deterministic {
		base = append(base, WithDeterministicOrder())
	}
	return NewManager(set, tr, rank, append(base, opts...)...)
}

// Registry exposes the channel registry, mostly for tests and diagnostics.
func (m *Manager) Registry() *transport.Registry { return m.reg }

// Epoch returns the current topology epoch id.
func (m *Manager) Epoch() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.epoch
}

// SetupChannels starts a new topology epoch: it drops every channel and
// cache, then creates both endpoints of a persistent channel for every
// ghost-exchanging boundary, plus flux-correction endpoints for face and
// edge relations. Channel capacity covers every transfer rule the relation
// could use, so allocation churn never resizes a channel.
//
// Call it after mesh construction and after every remesh or rebalance.
func (m *Manager) SetupChannels() (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.epoch = m.reg.BeginEpoch()
	m.caches = make(map[cacheKey]*Cache)
	l := m.set.Layout

	count := 0
	var err error
	ForEachBoundary(m.set, Any, m.rank, func(b *mesh.Block, nb mesh.Neighbor, v *mesh.Variable) Control {
		rel := nb.Relation()
		if cerr := geometry.CheckSizes(l, rel, v.Orient); cerr != nil {
			err = fmt.Errorf("%s: %w", describe(b, nb, v), cerr)
			return Stop
		}
		capacity := geometry.VariableBufferSize(l, nb.Off, v.Orient)

		sch, cerr := m.tr.CreateChannel(SendKey(b, nb, v), capacity, transport.Send)
		if cerr != nil {
			err = cerr
			return Stop
		}
		m.reg.Put(sch.Addr(), sch, false)

		rch, cerr := m.tr.CreateChannel(ReceiveKey(b, nb, v), capacity, transport.Recv)
		if cerr != nil {
			err = cerr
			return Stop
		}
		m.reg.Put(rch.Addr(), rch, false)
		count += 2

		// Flux correction rides on its own channels so a relation can carry
		// ghosts and fluxes in the same round. The finer side sends, the
		// coarser side receives; corners never carry flux.
		if geometry.FluxEligible(rel) {
			fcap := geometry.FluxBufferSize(l, nb.Off, nb.Conn)
			if rel.Delta <= 0 {
				fch, cerr := m.tr.CreateChannel(FluxSendKey(b, nb, v), fcap, transport.Send)
				if cerr != nil {
					err = cerr
					return Stop
				}
				m.reg.Put(fch.Addr(), fch, true)
				count++
			}
			if rel.Delta >= 0 {
				fch, cerr := m.tr.CreateChannel(FluxReceiveKey(b, nb, v), fcap, transport.Recv)
				if cerr != nil {
					err = cerr
					return Stop
				}
				m.reg.Put(fch.Addr(), fch, true)
				count++
			}
		}
		return Continue
	})
	if err != nil {
		return m.epoch, err
	}

	if m.metrics != nil {
		m.metrics.ChannelsActive.Set(float64(count))
	}
	m.log.Info("topology epoch started",
		zap.String("epoch", m.epoch.String()),
		zap.Int("blocks", m.set.Len()),
		zap.Int("channels", count))
	return m.epoch, nil
}

func isFlux(tag Tag) bool { return tag == FluxSend || tag == FluxRecv }

func (m *Manager) factory(tag Tag, dir transport.Direction) Factory {
	switch {
	case isFlux(tag):
		return FluxFactory(m.set.Layout)
	case dir == transport.Send:
		return SendFactory(m.set.Layout)
	default:
		return RecvFactory(m.set.Layout)
	}
}

// ensureCache returns a valid cache for (tag, dir), building or rebuilding as
// the validity protocol demands. The sender-side unfinished flag surfaces as
// ErrNotReady before any rebuild happens, so backpressure never discards a
// cache that is merely busy.
func (m *Manager) ensureCache(tag Tag, dir transport.Direction) (*Cache, error) {
	key := cacheKey{tag, dir}
	c := m.caches[key]
	if c == nil {
		c = NewCache(tag, dir, isFlux(tag))
		if err := c.Build(m.set, m.reg, m.rank, m.seed, m.deterministic); err != nil {
			return nil, err
		}
		if err := c.Rebuild(m.set, m.rank, m.factory(tag, dir)); err != nil {
			return nil, err
		}
		m.caches[key] = c
		m.countRebuild(tag, dir)
		return c, nil
	}

	rebuild, nbound, unfinished := c.Validate(m.set, m.rank)
	if unfinished {
		if m.metrics != nil {
			m.metrics.RoundsDeferred.WithLabelValues(tag.String()).Inc()
		}
		return nil, fmt.Errorf("%w: %s %s channels still in flight", ErrNotReady, tag, dir)
	}
	if !rebuild {
		return c, nil
	}
	if nbound != c.Len() {
		// Boundary count changed: slot assignment itself is stale.
		if err := c.Build(m.set, m.reg, m.rank, m.seed, m.deterministic); err != nil {
			return nil, err
		}
	}
	if err := c.Rebuild(m.set, m.rank, m.factory(tag, dir)); err != nil {
		return nil, err
	}
	m.countRebuild(tag, dir)
	return c, nil
}

func (m *Manager) countRebuild(tag Tag, dir transport.Direction) {
	if m.metrics != nil {
		m.metrics.CacheRebuilds.WithLabelValues(tag.String(), dir.String()).Inc()
	}
	m.log.Debug("buffer cache rebuilt",
		zap.String("tag", tag.String()),
		zap.String("dir", dir.String()))
}

// BuildOrValidateCache ensures the (tag, direction) buffer cache exists and
// is current, running the validity protocol and rebuilding when required.
// The round operations do this implicitly; schedulers call it directly to
// pay the rebuild cost at a chosen point.
func (m *Manager) BuildOrValidateCache(tag Tag, dir transport.Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, err := m.ensureCache(tag, dir)
	return err
}

// StartReceiving arms every receive channel in the tag's subset for the
// coming round. Arrivals that beat the arming are parked by the transport,
// so calling order against the senders does not matter.
func (m *Manager) StartReceiving(tag Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.ensureCache(tag, transport.Recv)
	if err != nil {
		return err
	}
	for _, ch := range c.Channels() {
		if err := m.tr.PostReceive(ch); err != nil {
			return err
		}
	}
	return nil
}

// SendBoundaries packs and posts every send in the tag's subset. If any
// channel in the subset still holds an unretired previous send, nothing is
// posted and ErrNotReady is returned; retry after draining. Unallocated
// variables post the null marker instead of a payload.
func (m *Manager) SendBoundaries(ctx context.Context, tag Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := time.Now()

	c, err := m.ensureCache(tag, transport.Send)
	if err != nil {
		return err
	}
	for _, ch := range c.Channels() {
		if !ch.IsAvailableForWrite() {
			if m.metrics != nil {
				m.metrics.RoundsDeferred.WithLabelValues(tag.String()).Inc()
			}
			return fmt.Errorf("%w: channel %s occupied", ErrNotReady, ch.Addr())
		}
	}
	if m.metrics != nil {
		m.metrics.RoundsStarted.WithLabelValues(tag.String()).Inc()
	}

	descs := c.Descs()
	sizes := make([]int, len(descs))
	_, err = m.pool.Run(ctx, len(descs), func(i int) error {
		d := &descs[i]
		if !d.Allocated {
			return nil
		}
		n, perr := d.PackPayload(m.set.Layout)
		sizes[i] = n
		return perr
	})
	if err != nil {
		return err
	}

	// Posting is sequential: the transport owns its own concurrency and the
	// channel state transitions must not race the availability check above.
	nulls := 0
	for i := range descs {
		d := &descs[i]
		if d.Allocated {
			if err := d.Chan.Post(sizes[i], false); err != nil {
				return err
			}
		} else {
			if err := d.Chan.Post(0, true); err != nil {
				return err
			}
			nulls++
		}
		if err := m.tr.PostSend(d.Chan); err != nil {
			return err
		}
	}

	if m.metrics != nil {
		m.metrics.Boundaries.WithLabelValues("pack").Add(float64(len(descs) - nulls))
		if nulls > 0 {
			m.metrics.NullSends.Add(float64(nulls))
		}
		m.metrics.RoundDuration.WithLabelValues("send").Observe(time.Since(start).Seconds())
	}
	m.log.Debug("boundaries sent",
		zap.String("tag", tag.String()),
		zap.Int("posted", len(descs)),
		zap.Int("null", nulls))
	return nil
}

// ReceiveBoundaries polls the tag's receive subset and reports whether every
// arrival has landed. It never blocks; callers loop it against their own
// schedule.
func (m *Manager) ReceiveBoundaries(tag Tag) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.ensureCache(tag, transport.Recv)
	if err != nil {
		return false, err
	}
	all := true
	for _, ch := range c.Channels() {
		switch m.tr.Poll(ch) {
		case transport.Received, transport.ReceivedNull:
		default:
			all = false
		}
	}
	return all, nil
}

// SetBoundaries unpacks every landed arrival in the tag's subset into its
// ghost region. Null arrivals write the default value when the receiving
// variable is allocated; arrivals for an unallocated receiver are dropped.
// Call it once ReceiveBoundaries reports completion.
func (m *Manager) SetBoundaries(ctx context.Context, tag Tag) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := time.Now()

	c, err := m.ensureCache(tag, transport.Recv)
	if err != nil {
		return err
	}
	descs := c.Descs()
	res, err := m.pool.Run(ctx, len(descs), func(i int) error {
		d := &descs[i]
		if !d.Allocated {
			return nil
		}
		switch d.Chan.State() {
		case transport.Received:
			return d.UnpackPayload(m.set.Layout)
		case transport.ReceivedNull:
			d.FillDefault(0)
			return nil
		default:
			return fmt.Errorf("%s: set before arrival (state %s)",
				describe(d.Block, d.Nb, d.Var), d.Chan.State())
		}
	})
	if err != nil {
		return err
	}

	if m.metrics != nil {
		m.metrics.Boundaries.WithLabelValues("unpack").Add(float64(res.Applied))
		m.metrics.RoundDuration.WithLabelValues("set").Observe(time.Since(start).Seconds())
	}
	m.log.Debug("boundaries set",
		zap.String("tag", tag.String()),
		zap.Uint32("applied", res.Applied))
	return nil
}

// Drain retires the tag's round: it waits for local completion of every
// posted send, counts receives that never arrived, and returns every touched
// channel to the available state. The returned count is zero for a round
// that fully completed; a nonzero count means the caller stopped polling
// early and the corresponding ghost regions were not updated.
func (m *Manager) Drain(tag Tag) (notArrived int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	start := time.Now()

	if c := m.caches[cacheKey{tag, transport.Send}]; c != nil {
		for _, ch := range c.Channels() {
			if ch.State() == transport.Sending {
				if werr := m.tr.WaitLocalCompletion(ch); werr != nil {
					return 0, werr
				}
			}
			ch.Reset()
		}
	}
	if c := m.caches[cacheKey{tag, transport.Recv}]; c != nil {
		for _, ch := range c.Channels() {
			if ch.State() == transport.Receiving {
				notArrived++
			}
			ch.Reset()
		}
	}

	if m.metrics != nil {
		m.metrics.RoundDuration.WithLabelValues("drain").Observe(time.Since(start).Seconds())
	}
	if notArrived > 0 {
		m.log.Warn("round drained with missing arrivals",
			zap.String("tag", tag.String()),
			zap.Int("not_arrived", notArrived))
	}
	return notArrived, nil
}

// Exchange runs one complete round for the tag: arm receives, send, poll to
// completion, set, drain. It is the convenience composition of the individual
// phases; ctx bounds both the polling loop and the bulk phases. A flux tag
// runs the paired subsets: the send side enumerates finer-side boundaries,
// the receive side coarser-side ones.
func (m *Manager) Exchange(ctx context.Context, tag Tag, pollInterval time.Duration) error {
	sendTag, recvTag := tag, tag
	if isFlux(tag) {
		sendTag, recvTag = FluxSend, FluxRecv
	}
	if err := m.StartReceiving(recvTag); err != nil {
		return err
	}
	if err := m.SendBoundaries(ctx, sendTag); err != nil {
		return err
	}
	for {
		done, err := m.ReceiveBoundaries(recvTag)
		if err != nil {
			return err
		}
		if done {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
	if err := m.SetBoundaries(ctx, recvTag); err != nil {
		return err
	}
	n, err := m.Drain(sendTag)
	if err != nil {
		return err
	}
	if recvTag != sendTag {
		nr, derr := m.Drain(recvTag)
		if derr != nil {
			return derr
		}
		n += nr
	}
	if n > 0 {
		return fmt.Errorf("round %s drained with %d missing arrivals", tag, n)
	}
	return nil
}
