package kafka

import (
	"sync"
	"time"
)

// bufferPool is the buffer_memory counting semaphore of §4.8: total bytes
// available for in-flight producer batches, blocking acquirers until space
// frees up or max_block_ms elapses.
type bufferPool struct {
	mu    sync.Mutex
	cond  *sync.Cond
	used  int64
	total int64
}

func newBufferPool(total int64) *bufferPool {
	p := &bufferPool{total: total}
	p.cond = sync.NewCond(&p.mu)
	return p
}

// acquire reserves n bytes, blocking up to maxBlock for room to free up. A
// non-positive maxBlock fails immediately rather than blocking forever.
func (p *bufferPool) acquire(n int64, maxBlock time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.used+n <= p.total {
		p.used += n
		return nil
	}
	if maxBlock <= 0 {
		return ErrBufferExhausted
	}

	deadline := time.Now().Add(maxBlock)
	for p.used+n > p.total {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return ErrBufferExhausted
		}
		timer := time.AfterFunc(remaining, p.cond.Broadcast)
		p.cond.Wait()
		timer.Stop()
	}
	p.used += n
	return nil
}

func (p *bufferPool) release(n int64) {
	p.mu.Lock()
	p.used -= n
	if p.used < 0 {
		p.used = 0
	}
	p.mu.Unlock()
	p.cond.Broadcast()
}

// recordAccumulator holds one FIFO queue of producerBatch per TopicPartition
// (§4.8). Producer.Send appends into the tail batch of its partition's
// queue; the sender drains ready batches from the head of each queue,
// preserving per-partition ordering.
type recordAccumulator struct {
	conf *Config
	pool *bufferPool

	mu      sync.Mutex
	batches map[TopicPartition][]*producerBatch
	closed  bool
}

func newRecordAccumulator(conf *Config) *recordAccumulator {
	return &recordAccumulator{
		conf:    conf,
		pool:    newBufferPool(conf.Producer.BufferMemory),
		batches: make(map[TopicPartition][]*producerBatch),
	}
}

func (a *recordAccumulator) batchSizeBytes() int {
	if a.conf.Producer.Flush.Bytes > 0 {
		return a.conf.Producer.Flush.Bytes
	}
	return a.conf.Producer.MaxMessageBytes
}

// append tries the tail batch for msg's partition; failing that it blocks
// for buffer_memory and starts a new batch (§4.8).
func (a *recordAccumulator) append(msg *ProducerMessage) (*producerBatch, error) {
	tp := TopicPartition{Topic: msg.Topic, Partition: msg.Partition}
	batchSize := a.batchSizeBytes()

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil, ErrShuttingDown
	}
	queue := a.batches[tp]
	if n := len(queue); n > 0 {
		tail := queue[n-1]
		if tail.tryAppend(msg, batchSize) {
			a.mu.Unlock()
			return tail, nil
		}
		tail.close()
	}
	a.mu.Unlock()

	size := int64(msg.byteSize())
	if err := a.pool.acquire(size, a.conf.Producer.MaxBlock); err != nil {
		return nil, err
	}

	batch := newProducerBatch(msg.Topic, msg.Partition)
	if !batch.tryAppend(msg, batchSize) {
		a.pool.release(size)
		return nil, PacketEncodingError{Info: "message larger than batch size"}
	}

	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		a.pool.release(size)
		return nil, ErrShuttingDown
	}
	a.batches[tp] = append(a.batches[tp], batch)
	a.mu.Unlock()
	return batch, nil
}

// drainReady returns, per partition, the head batch if it is ready: full,
// about to overflow (already Closed by append), linger_ms expired, or a
// flush was forced (§4.8). Each returned batch is marked Closed.
func (a *recordAccumulator) drainReady(force bool) map[TopicPartition]*producerBatch {
	a.mu.Lock()
	defer a.mu.Unlock()

	batchSize := a.batchSizeBytes()
	out := make(map[TopicPartition]*producerBatch)
	for tp, queue := range a.batches {
		if len(queue) == 0 {
			continue
		}
		head := queue[0]
		if head.empty() {
			continue
		}
		ready := head.isClosed() || head.full(batchSize) || head.expired(a.conf.Producer.Flush.Frequency) || force
		if !ready {
			continue
		}
		head.close()
		out[tp] = head
	}
	return out
}

// partitions lists every TopicPartition currently holding at least one
// batch, for the sender to resolve leaders against.
func (a *recordAccumulator) partitions() []TopicPartition {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]TopicPartition, 0, len(a.batches))
	for tp, queue := range a.batches {
		if len(queue) > 0 {
			out = append(out, tp)
		}
	}
	return out
}

// completeBatch pops batch off the head of tp's queue once it has been
// durably acknowledged or permanently failed, and releases its share of
// buffer_memory.
func (a *recordAccumulator) completeBatch(tp TopicPartition, batch *producerBatch) {
	a.mu.Lock()
	queue := a.batches[tp]
	if len(queue) > 0 && queue[0] == batch {
		a.batches[tp] = queue[1:]
	}
	a.mu.Unlock()
	a.pool.release(batch.size())
}

// requeue puts batch back at the head of tp's queue for a retry attempt.
func (a *recordAccumulator) requeue(tp TopicPartition, batch *producerBatch) {
	a.mu.Lock()
	defer a.mu.Unlock()
	queue := a.batches[tp]
	a.batches[tp] = append([]*producerBatch{batch}, queue...)
}

// close stops further appends; in-flight batches still drain normally.
func (a *recordAccumulator) close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}

// isEmpty reports whether every partition queue has been fully drained,
// used by Producer.Close to wait out in-flight sends.
func (a *recordAccumulator) isEmpty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, queue := range a.batches {
		if len(queue) > 0 {
			return false
		}
	}
	return true
}
