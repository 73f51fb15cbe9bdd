package kafka

import (
	"testing"
	"time"
)

func testAccumulatorConfig() *Config {
	conf := NewConfig()
	conf.Producer.Flush.Bytes = 64
	conf.Producer.BufferMemory = 4096
	conf.Producer.MaxBlock = 50 * time.Millisecond
	return conf
}

func TestRecordAccumulatorAppendStartsNewBatchOnOverflow(t *testing.T) {
	acc := newRecordAccumulator(testAccumulatorConfig())
	tp := TopicPartition{Topic: "t1", Partition: 0}

	first, err := acc.append(&ProducerMessage{Topic: "t1", Partition: 0, Value: make([]byte, 40)})
	if err != nil {
		t.Fatal(err)
	}
	second, err := acc.append(&ProducerMessage{Topic: "t1", Partition: 0, Value: make([]byte, 40)})
	if err != nil {
		t.Fatal(err)
	}
	if first == second {
		t.Fatal("second append should have overflowed into a new batch")
	}
	if !first.isClosed() {
		t.Fatal("the overflowed-from batch should have been closed")
	}

	queue := acc.batches[tp]
	if len(queue) != 2 {
		t.Fatalf("expected 2 queued batches, got %d", len(queue))
	}
}

func TestRecordAccumulatorDrainReadyRequiresNonEmpty(t *testing.T) {
	acc := newRecordAccumulator(testAccumulatorConfig())
	ready := acc.drainReady(true)
	if len(ready) != 0 {
		t.Fatalf("an empty accumulator should never report ready batches, got %d", len(ready))
	}

	if _, err := acc.append(&ProducerMessage{Topic: "t1", Partition: 0, Value: []byte("x")}); err != nil {
		t.Fatal(err)
	}
	ready = acc.drainReady(true)
	if len(ready) != 1 {
		t.Fatalf("forced drain should surface the one pending batch, got %d", len(ready))
	}
	ready = acc.drainReady(false)
	if len(ready) != 1 {
		t.Fatal("a batch already marked Closed by a forced drain stays ready on the next cycle")
	}
}

func TestRecordAccumulatorCompleteBatchPopsHead(t *testing.T) {
	acc := newRecordAccumulator(testAccumulatorConfig())
	tp := TopicPartition{Topic: "t1", Partition: 0}

	batch, err := acc.append(&ProducerMessage{Topic: "t1", Partition: 0, Value: []byte("x")})
	if err != nil {
		t.Fatal(err)
	}
	acc.completeBatch(tp, batch)
	if len(acc.batches[tp]) != 0 {
		t.Fatalf("completing the only queued batch should empty the queue, got %d left", len(acc.batches[tp]))
	}
	if !acc.isEmpty() {
		t.Fatal("accumulator should report empty once every queue is drained")
	}
}

func TestBufferPoolAcquireBlocksAndTimesOut(t *testing.T) {
	pool := newBufferPool(100)
	if err := pool.acquire(100, time.Second); err != nil {
		t.Fatal(err)
	}
	if err := pool.acquire(1, 20*time.Millisecond); err != ErrBufferExhausted {
		t.Fatalf("expected ErrBufferExhausted once the pool is full, got %v", err)
	}

	released := make(chan struct{})
	go func() {
		time.Sleep(10 * time.Millisecond)
		pool.release(100)
		close(released)
	}()
	if err := pool.acquire(50, 200*time.Millisecond); err != nil {
		t.Fatalf("acquire should succeed once release frees capacity: %v", err)
	}
	<-released
}
