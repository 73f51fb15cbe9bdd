package kafka

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/go-resiliency/breaker"
	"github.com/rcrowley/go-metrics"
)

// responsePromise is handed to the caller of send() and fulfilled by the
// broker's single reader goroutine once the matching correlation id comes
// back across the wire (§4.2).
type responsePromise struct {
	correlationID int32
	headerVersion int16
	packets       chan []byte
	errs          chan error
}

func (p *responsePromise) handle(packets []byte, err error) {
	if err != nil {
		p.errs <- err
		return
	}
	p.packets <- packets
}

// Broker owns a single TCP connection to one Kafka server process and
// demultiplexes its responses by correlation id (§4.2). A Broker is safe
// for concurrent use: many goroutines may call sendAndReceive at once, each
// blocking only on its own response.
type Broker struct {
	id   BrokerID
	addr string

	conf *Config

	lock sync.Mutex
	conn net.Conn

	// sendMu serializes encode+write+enqueue in send so that concurrent
	// callers (many goroutines may call send at once) can't interleave
	// writes on the wire or enqueue responsePromises out of order relative
	// to what was actually written; correlation-id dispatch depends on
	// promises being enqueued in the same order requests hit the wire.
	sendMu sync.Mutex

	correlationID int32
	inflight      int32 // atomic: count of requests awaiting a response

	responses chan *responsePromise
	done      chan struct{}

	breaker *breaker.Breaker

	lastUsed int64 // atomic: unix nanos of last successful send, for idle eviction

	registerMetrics sync.Once
	incomingByteRate  metrics.Meter
	outgoingByteRate  metrics.Meter
	requestRate       metrics.Meter
	requestLatency    metrics.Timer
}

// NewBroker constructs a Broker for addr. The connection is not opened until
// Open is called; id is the broker id as reported by metadata, or -1 for a
// bootstrap seed broker (§3, §4.2).
func NewBroker(addr string, id BrokerID) *Broker {
	return &Broker{
		id:   id,
		addr: addr,
	}
}

// ID returns the broker id this connection was opened for.
func (b *Broker) ID() BrokerID { return b.id }

// Addr returns the host:port this broker dials.
func (b *Broker) Addr() string { return b.addr }

// Open dials addr synchronously, through a circuit breaker, and returns the
// dial error if it fails (§4.2). Each call to Open creates a fresh breaker,
// so failures of earlier Open calls do not trip it: every call dials.
func (b *Broker) Open(conf *Config) error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.conn != nil {
		return ErrAlreadyConnected
	}
	b.conf = conf
	b.breaker = breaker.New(3, 1, 10*time.Second)
	b.done = make(chan struct{})
	b.responses = make(chan *responsePromise, 16)

	err := b.breaker.Run(func() (err error) {
		dialer := net.Dialer{Timeout: conf.Net.DialTimeout}
		b.conn, err = dialer.Dial("tcp", b.addr)
		return err
	})
	if err != nil {
		b.done = nil
		return err
	}

	b.registerMetrics.Do(func() {
		if conf.MetricRegistry == nil {
			return
		}
		b.incomingByteRate = metrics.GetOrRegisterMeter(fmt.Sprintf("incoming-byte-rate-for-broker-%d", b.id), conf.MetricRegistry)
		b.outgoingByteRate = metrics.GetOrRegisterMeter(fmt.Sprintf("outgoing-byte-rate-for-broker-%d", b.id), conf.MetricRegistry)
		b.requestRate = metrics.GetOrRegisterMeter(fmt.Sprintf("request-rate-for-broker-%d", b.id), conf.MetricRegistry)
		b.requestLatency = metrics.GetOrRegisterTimer(fmt.Sprintf("request-latency-for-broker-%d", b.id), conf.MetricRegistry)
	})

	atomic.StoreInt64(&b.lastUsed, time.Now().UnixNano())
	go b.responseReceiver()
	return nil
}

// Connected reports whether Open succeeded and Close has not since been
// called.
func (b *Broker) Connected() bool {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.conn != nil
}

// Close tears down the connection, releasing any goroutines blocked in
// sendAndReceive with ErrNotConnected.
func (b *Broker) Close() error {
	b.lock.Lock()
	defer b.lock.Unlock()

	if b.conn == nil {
		return ErrNotConnected
	}

	close(b.done)
	err := b.conn.Close()
	b.conn = nil
	b.done = nil
	return err
}

// idle reports whether this broker has not been used for longer than
// Config.Net.MaxConnectionIdle, for a caller-driven eviction sweep (§4.2).
func (b *Broker) idle(now time.Time) bool {
	if b.conf == nil || b.conf.Net.MaxConnectionIdle <= 0 {
		return false
	}
	last := time.Unix(0, atomic.LoadInt64(&b.lastUsed))
	return now.Sub(last) > b.conf.Net.MaxConnectionIdle
}

// InFlightRequests returns the number of requests sent to this broker that
// have not yet received a response, the first of the three send-path
// middlewares in §4.2.
func (b *Broker) InFlightRequests() int32 {
	return atomic.LoadInt32(&b.inflight)
}

// send writes req and, when expectResponse is true, enqueues and returns the
// responsePromise the reader goroutine will fulfil. It does not wait for the
// response; sendAndReceive waits for it or for Config.Net.RequestTimeout to
// elapse (§4.2's request-timeout middleware).
func (b *Broker) send(body protocolBody, expectResponse bool) (*responsePromise, error) {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	b.lock.Lock()
	if b.conn == nil {
		b.lock.Unlock()
		return nil, ErrNotConnected
	}
	conn := b.conn
	clientID := b.conf.ClientID
	timeout := b.conf.Net.RequestTimeout
	done := b.done
	b.correlationID++
	correlationID := b.correlationID
	b.lock.Unlock()

	req := &request{correlationID: correlationID, clientID: clientID, body: body}
	buf, err := encodeRequest(req)
	if err != nil {
		return nil, err
	}

	atomic.AddInt32(&b.inflight, 1)
	if DebugLogger != nil {
		DebugLogger.Printf("kafka: broker %s sending %s v%d correlation=%d", b.addr, body.key(), body.version(), correlationID)
	}

	// Everything from here on (the write itself, and enqueuing this
	// request's responsePromise) must stay under sendMu: the broker
	// correlates replies to promises strictly by enqueue order, so a
	// second goroutine's write or enqueue slipping in between would
	// desynchronize that ordering from what actually went out on the wire.
	if err := conn.SetWriteDeadline(time.Now().Add(timeout)); err != nil {
		atomic.AddInt32(&b.inflight, -1)
		return nil, err
	}
	if _, err := conn.Write(buf); err != nil {
		atomic.AddInt32(&b.inflight, -1)
		return nil, err
	}
	atomic.StoreInt64(&b.lastUsed, time.Now().UnixNano())
	if b.outgoingByteRate != nil {
		b.outgoingByteRate.Mark(int64(len(buf)))
	}
	if b.requestRate != nil {
		b.requestRate.Mark(1)
	}

	if !expectResponse {
		atomic.AddInt32(&b.inflight, -1)
		return nil, nil
	}

	promise := &responsePromise{
		correlationID: correlationID,
		headerVersion: 0,
		packets:       make(chan []byte, 1),
		errs:          make(chan error, 1),
	}

	select {
	case b.responses <- promise:
		return promise, nil
	case <-done:
		atomic.AddInt32(&b.inflight, -1)
		return nil, ErrNotConnected
	}
}

// sendAndReceive is the common path used by every RPC in client.go: frame
// the request, wait for the matching response or request_timeout, and leave
// version negotiation to the caller.
func (b *Broker) sendAndReceive(req protocolBody, resp protocolBody) error {
	promise, err := b.send(req, true)
	if err != nil {
		return err
	}

	start := time.Now()
	timeout := b.conf.Net.RequestTimeout
	select {
	case buf := <-promise.packets:
		if b.requestLatency != nil {
			b.requestLatency.Update(time.Since(start))
		}
		atomic.AddInt32(&b.inflight, -1)
		return decodeResponseBody(buf, resp, resp.version())
	case err := <-promise.errs:
		atomic.AddInt32(&b.inflight, -1)
		return err
	case <-time.After(timeout):
		atomic.AddInt32(&b.inflight, -1)
		return ErrRequestTimedOut
	case <-b.done:
		atomic.AddInt32(&b.inflight, -1)
		return ErrNotConnected
	}
}

// responseReceiver is the single reader goroutine for this connection. It
// reads length-prefixed response frames, demultiplexes them onto the
// responsePromise queued by send in FIFO order (Kafka guarantees in-order
// responses per connection), and fulfils each promise as it resolves.
func (b *Broker) responseReceiver() {
	header := make([]byte, 4)
	for {
		select {
		case promise := <-b.responses:
			b.waitResponse(promise, header)
		case <-b.done:
			return
		}
	}
}

func (b *Broker) waitResponse(promise *responsePromise, header []byte) {
	b.lock.Lock()
	conn := b.conn
	b.lock.Unlock()
	if conn == nil {
		promise.handle(nil, ErrNotConnected)
		return
	}

	if _, err := readFull(conn, header); err != nil {
		promise.handle(nil, err)
		return
	}
	size := int32(header[0])<<24 | int32(header[1])<<16 | int32(header[2])<<8 | int32(header[3])
	if size < 0 || size > int32(MaxResponseSize) {
		promise.handle(nil, PacketDecodingError{Info: "response size out of bounds"})
		return
	}

	body := make([]byte, size)
	if _, err := readFull(conn, body); err != nil {
		promise.handle(nil, err)
		return
	}
	if b.incomingByteRate != nil {
		b.incomingByteRate.Mark(int64(size) + 4)
	}

	correlationID, rest, err := decodeResponseHeader(body)
	if err != nil {
		promise.handle(nil, err)
		return
	}
	if correlationID != promise.correlationID {
		promise.handle(nil, ErrCorrelationMismatch)
		return
	}
	promise.handle(rest, nil)
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := conn.Read(buf[n:])
		if err != nil {
			return n, err
		}
		n += m
	}
	return n, nil
}

// MaxResponseSize bounds the response frame length accepted from a broker,
// guarding against a corrupted length prefix turning into an unbounded
// allocation.
const MaxResponseSize = 100 * 1024 * 1024
