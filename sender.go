package kafka

import (
	"sync"
	"time"

	"github.com/eapache/queue"
)

// retryItem is a failed batch waiting out Producer.Retry.Backoff before it
// is handed back to the accumulator for another attempt (§4.9).
type retryItem struct {
	readyAt time.Time
	tp      TopicPartition
	batch   *producerBatch
}

// sender is the single cooperative loop draining ready batches from the
// accumulator, grouping them by leader broker, and bounding the number of
// simultaneously in-flight Produce requests (§4.9). It never runs more than
// one send goroutine per broker per cycle, so per-partition ordering is
// preserved: a partition's next batch is not dequeued until its predecessor
// completes or is requeued for retry.
type sender struct {
	client *Client
	conf   *Config
	acc    *recordAccumulator

	sem chan struct{}

	wake    chan struct{}
	flushCh chan chan struct{}
	closeCh chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup

	retryMu    sync.Mutex
	retryQueue *queue.Queue
}

func newSender(client *Client, acc *recordAccumulator) *sender {
	conf := client.Config()
	return &sender{
		client:     client,
		conf:       conf,
		acc:        acc,
		sem:        make(chan struct{}, conf.Producer.MaxInFlightRequests),
		wake:       make(chan struct{}, 1),
		flushCh:    make(chan chan struct{}),
		closeCh:    make(chan struct{}),
		retryQueue: queue.New(),
	}
}

func (s *sender) start() {
	s.wg.Add(1)
	go s.run()
}

// signal wakes the loop early, used after an append so a batch that just
// became full doesn't wait for the next tick.
func (s *sender) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// flush forces every non-empty batch to be treated as ready and blocks
// until that cycle's sends have all completed.
func (s *sender) flush() {
	done := make(chan struct{})
	select {
	case s.flushCh <- done:
		<-done
	case <-s.closeCh:
	}
}

func (s *sender) close() {
	s.closeOnce.Do(func() { close(s.closeCh) })
	s.wg.Wait()
}

func (s *sender) run() {
	defer s.wg.Done()

	interval := s.conf.Producer.Flush.Frequency
	if interval <= 0 {
		interval = 10 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.closeCh:
			s.drainUntilEmpty()
			return
		case done := <-s.flushCh:
			s.cycle(true)
			close(done)
		case <-s.wake:
			s.cycle(false)
		case <-ticker.C:
			s.cycle(false)
		}
		s.promoteRetries()
	}
}

// drainUntilEmpty forces repeated flush cycles until the accumulator has no
// batches left, bounded so Producer.Close cannot hang forever on a
// permanently unreachable broker.
func (s *sender) drainUntilEmpty() {
	deadline := time.Now().Add(s.conf.Producer.Timeout * 10)
	for !s.acc.isEmpty() && time.Now().Before(deadline) {
		s.cycle(true)
		s.promoteRetries()
		if !s.acc.isEmpty() {
			time.Sleep(s.conf.Producer.Retry.Backoff)
		}
	}
}

func (s *sender) cycle(force bool) {
	ready := s.acc.drainReady(force)
	if len(ready) == 0 {
		return
	}

	byBroker := make(map[*Broker][]TopicPartition)
	for tp := range ready {
		broker, err := s.client.Leader(tp.Topic, tp.Partition)
		if err != nil {
			s.client.RefreshMetadata(tp.Topic)
			s.scheduleRetry(tp, ready[tp])
			continue
		}
		byBroker[broker] = append(byBroker[broker], tp)
	}

	var wg sync.WaitGroup
	for broker, tps := range byBroker {
		s.sem <- struct{}{}
		wg.Add(1)
		go func(broker *Broker, tps []TopicPartition) {
			defer wg.Done()
			defer func() { <-s.sem }()
			s.sendBatchesTo(broker, tps, ready)
		}(broker, tps)
	}
	wg.Wait()
}

// messageVersion selects the wire Message version to emit: version 1
// (timestamped) once the configured broker floor is at least 0.10, version
// 0 otherwise (§3, §6).
func (s *sender) messageVersion() int8 {
	if s.conf.BrokerVersionFallback.AtLeast(V0_10_0_0) {
		return 1
	}
	return 0
}

// sendBatchesTo builds one ProduceRequest carrying every ready batch whose
// leader is broker, sends it, and routes each partition's result back to
// the accumulator (ack, retry, or permanent failure) and to every blocked
// Producer.Send caller in that batch.
func (s *sender) sendBatchesTo(broker *Broker, tps []TopicPartition, ready map[TopicPartition]*producerBatch) {
	req := &ProduceRequest{
		RequiredAcks: s.conf.Producer.RequiredAcks,
		Timeout:      int32(s.conf.Producer.Timeout / time.Millisecond),
	}
	version := s.messageVersion()

	for _, tp := range tps {
		batch := ready[tp]
		set, err := batch.toMessageSet(version, s.conf.Producer.Compression)
		if err != nil {
			s.failBatch(tp, batch, err)
			continue
		}
		for _, item := range set.Items {
			req.AddMessage(tp.Topic, tp.Partition, item.Message, item.Offset)
		}
	}

	if req.RequiredAcks == NoResponse {
		for _, tp := range tps {
			if batch, ok := ready[tp]; ok {
				s.ackBatch(tp, batch, -1, time.Time{})
			}
		}
		if _, err := s.client.RequestProduce(tps[0].Topic, tps[0].Partition, req); err != nil {
			logger.Printf("kafka: fire-and-forget produce to broker %d failed: %v", broker.ID(), err)
		}
		return
	}

	resp, err := s.client.RequestProduce(tps[0].Topic, tps[0].Partition, req)
	if err != nil {
		for _, tp := range tps {
			if batch, ok := ready[tp]; ok {
				s.scheduleRetry(tp, batch)
			}
		}
		return
	}

	for _, tp := range tps {
		batch, ok := ready[tp]
		if !ok {
			continue
		}
		block := resp.GetBlock(tp.Topic, tp.Partition)
		if block == nil {
			s.failBatch(tp, batch, ErrIncompleteResponse)
			continue
		}
		if block.Err == ErrNoError {
			s.ackBatch(tp, batch, block.BaseOffset, time.Now())
			continue
		}
		if block.Err.Retriable() {
			s.scheduleRetry(tp, batch)
			continue
		}
		s.failBatch(tp, batch, KafkaError{Code: block.Err})
	}
}

func (s *sender) ackBatch(tp TopicPartition, batch *producerBatch, baseOffset int64, ts time.Time) {
	offset := baseOffset
	batch.complete(func(m *ProducerMessage) ProducerResult {
		res := ProducerResult{Partition: tp.Partition, Offset: offset, Timestamp: ts}
		if offset >= 0 {
			offset++
		}
		return res
	})
	s.acc.completeBatch(tp, batch)
}

func (s *sender) failBatch(tp TopicPartition, batch *producerBatch, err error) {
	batch.complete(func(*ProducerMessage) ProducerResult {
		return ProducerResult{Partition: tp.Partition, Err: err}
	})
	s.acc.completeBatch(tp, batch)
}

// scheduleRetry requeues batch for another attempt after Retry.Backoff, or
// fails it permanently once Retry.Max attempts are exhausted (§4.9).
func (s *sender) scheduleRetry(tp TopicPartition, batch *producerBatch) {
	if batch.bumpRetries() > s.conf.Producer.Retry.Max {
		s.failBatch(tp, batch, ErrRequestTimedOut)
		return
	}
	s.acc.completeBatch(tp, batch)
	s.retryMu.Lock()
	s.retryQueue.Add(&retryItem{
		readyAt: time.Now().Add(s.conf.Producer.Retry.Backoff),
		tp:      tp,
		batch:   batch,
	})
	s.retryMu.Unlock()
}

// promoteRetries moves every retryItem whose backoff has elapsed back onto
// the accumulator, at the head of its partition's queue so it is the next
// batch sent for that partition.
func (s *sender) promoteRetries() {
	s.retryMu.Lock()
	defer s.retryMu.Unlock()

	now := time.Now()
	for s.retryQueue.Length() > 0 {
		item := s.retryQueue.Peek().(*retryItem)
		if item.readyAt.After(now) {
			return
		}
		s.retryQueue.Remove()
		s.acc.requeue(item.tp, item.batch)
	}
}
