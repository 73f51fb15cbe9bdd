package kafka

import (
	"sync"
	"time"
)

// metadataState is the tagged union driving single-flight refreshes: either
// nobody is currently refreshing and the last good snapshot is cached
// (Loaded), or a refresh is in flight and later callers join its waiters
// instead of issuing a second one (Loading, §4.3).
type metadataState struct {
	mu       sync.Mutex
	loading  bool
	waiters  []chan error
	snapshot *Metadata
}

func newMetadataState() *metadataState {
	return &metadataState{}
}

func (s *metadataState) current() *Metadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

// refresh runs fetch exactly once per overlapping set of callers. Every
// caller that arrives while a refresh is already in flight is parked on its
// own channel and released with that single refresh's outcome, rather than
// triggering a redundant round trip (§4.3: "single-flight" refresh).
func (s *metadataState) refresh(fetch func() (*Metadata, error)) error {
	s.mu.Lock()
	if s.loading {
		wait := make(chan error, 1)
		s.waiters = append(s.waiters, wait)
		s.mu.Unlock()
		return <-wait
	}
	s.loading = true
	s.mu.Unlock()

	snapshot, err := fetch()

	s.mu.Lock()
	if err == nil {
		s.snapshot = snapshot
	}
	s.loading = false
	waiters := s.waiters
	s.waiters = nil
	s.mu.Unlock()

	for _, w := range waiters {
		w <- err
	}
	return err
}

// metadataStore owns the periodic and on-demand refresh of cluster topology
// for one Client (§4.3, §4.4).
type metadataStore struct {
	conf    *Config
	state   *metadataState
	seeds   []string // bootstrap addresses, probed concurrently; the first answer wins
	dial    func(addr string) (*Broker, error)
	brokers brokerPool

	closeOnce sync.Once
	done      chan struct{}
}

// brokerPool hands out live *Broker connections keyed by address, reusing
// an already-open connection rather than redialing on every refresh.
type brokerPool struct {
	mu      sync.Mutex
	byAddr  map[string]*Broker
}

func newBrokerPool() brokerPool {
	return brokerPool{byAddr: make(map[string]*Broker)}
}

func (p *brokerPool) get(addr string, id BrokerID, conf *Config) (*Broker, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if b, ok := p.byAddr[addr]; ok && b.Connected() {
		return b, nil
	}
	b := NewBroker(addr, id)
	if err := b.Open(conf); err != nil {
		return nil, err
	}
	p.byAddr[addr] = b
	return b, nil
}

func (p *brokerPool) closeAll() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, b := range p.byAddr {
		_ = b.Close()
	}
}

// evictIdle closes and forgets every pooled broker that has sat unused past
// Config.Net.MaxConnectionIdle (§2, §4.2, §5); the next get redials it.
func (p *brokerPool) evictIdle(now time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for addr, b := range p.byAddr {
		if b.idle(now) {
			_ = b.Close()
			delete(p.byAddr, addr)
		}
	}
}

func newMetadataStore(conf *Config, seeds []string) *metadataStore {
	return &metadataStore{
		conf:    conf,
		state:   newMetadataState(),
		seeds:   seeds,
		brokers: newBrokerPool(),
		done:    make(chan struct{}),
	}
}

// bootstrap performs the initial metadata fetch by probing every seed
// address concurrently and taking the first successful response, per §4.3's
// "parallel-probe, first-success-wins" bootstrap strategy.
func (m *metadataStore) bootstrap() error {
	return m.state.refresh(func() (*Metadata, error) {
		return m.fetchFromAny(m.seeds)
	})
}

// ensure returns the current snapshot, triggering a blocking refresh first
// if none has ever loaded successfully.
func (m *metadataStore) ensure() (*Metadata, error) {
	if snap := m.state.current(); snap != nil {
		return snap, nil
	}
	if err := m.bootstrap(); err != nil {
		return nil, err
	}
	return m.state.current(), nil
}

// refreshNow forces a new fetch, addressed at every broker known from the
// last snapshot (falling back to the seed list if none loaded yet). Used
// when a request returns a retriable, metadata-invalidating error (§4.4).
func (m *metadataStore) refreshNow() error {
	addrs := m.seeds
	if snap := m.state.current(); snap != nil {
		addrs = nil
		for _, b := range snap.Brokers() {
			addrs = append(addrs, b.Addr())
		}
	}
	return m.state.refresh(func() (*Metadata, error) {
		return m.fetchFromAny(addrs)
	})
}

type probeResult struct {
	meta *Metadata
	err  error
}

func (m *metadataStore) fetchFromAny(addrs []string) (*Metadata, error) {
	if len(addrs) == 0 {
		return nil, ErrOutOfBrokers
	}
	results := make(chan probeResult, len(addrs))
	for _, addr := range addrs {
		addr := addr
		go func() {
			meta, err := m.fetchFrom(addr)
			results <- probeResult{meta, err}
		}()
	}
	var lastErr error = ErrOutOfBrokers
	for range addrs {
		r := <-results
		if r.err == nil {
			return r.meta, nil
		}
		lastErr = r.err
	}
	return nil, lastErr
}

func (m *metadataStore) fetchFrom(addr string) (*Metadata, error) {
	b, err := m.brokers.get(addr, BrokerID(-1), m.conf)
	if err != nil {
		return nil, err
	}

	req := &MetadataRequest{Version: 1}
	if m.conf.Metadata.Full {
		req.Topics = nil
	}
	resp := &MetadataResponse{Version: req.Version}
	if err := b.sendAndReceive(req, resp); err != nil {
		return nil, err
	}
	meta := resp.toMetadata()

	if m.conf.ApiVersionRequest {
		meta = m.stapleUsableVersions(meta)
	}
	return meta, nil
}

// stapleUsableVersions probes every broker in meta with ApiVersions and
// publishes the resulting table atomically alongside the brokers it
// describes (§4.3).
func (m *metadataStore) stapleUsableVersions(meta *Metadata) *Metadata {
	versions := make(map[BrokerID]map[apiKey]apiVersionRange)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, info := range meta.Brokers() {
		info := info
		wg.Add(1)
		go func() {
			defer wg.Done()
			b, err := m.brokers.get(info.Addr(), info.ID, m.conf)
			if err != nil {
				return
			}
			req := &ApiVersionsRequest{Version: 0}
			resp := &ApiVersionsResponse{Version: 0}
			if err := b.sendAndReceive(req, resp); err != nil {
				return
			}
			mu.Lock()
			versions[info.ID] = resp.usableVersions()
			mu.Unlock()
		}()
	}
	wg.Wait()
	if len(versions) == 0 {
		return meta
	}
	return meta.withUsableVersions(versions)
}

// run starts the background refresh ticker and the idle-broker eviction
// sweep. Each is a no-op on its own when the governing config value is 0
// (§6).
func (m *metadataStore) run() {
	if m.conf.Metadata.RefreshFrequency > 0 {
		go func() {
			ticker := time.NewTicker(m.conf.Metadata.RefreshFrequency)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					if err := m.refreshNow(); err != nil && logger != nil {
						logger.Printf("kafka: background metadata refresh failed: %v", err)
					}
				case <-m.done:
					return
				}
			}
		}()
	}
	m.runIdleSweep()
}

// runIdleSweep periodically closes pooled broker connections that have gone
// unused past Config.Net.MaxConnectionIdle (§2 component table, §4.2, §5).
func (m *metadataStore) runIdleSweep() {
	if m.conf.Net.MaxConnectionIdle <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(m.conf.Net.MaxConnectionIdle / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.brokers.evictIdle(time.Now())
			case <-m.done:
				return
			}
		}
	}()
}

func (m *metadataStore) close() {
	m.closeOnce.Do(func() {
		close(m.done)
		m.brokers.closeAll()
	})
}
