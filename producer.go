package kafka

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"
)

// Partitioner chooses a destination partition for a message that did not
// specify one explicitly. The default mirrors the common Kafka client
// convention: hash the key when present, otherwise round-robin.
type Partitioner interface {
	Partition(msg *ProducerMessage, numPartitions int32) int32
}

type hashPartitioner struct {
	roundRobin int32 // atomic
}

func (p *hashPartitioner) Partition(msg *ProducerMessage, numPartitions int32) int32 {
	if numPartitions <= 0 {
		return 0
	}
	if len(msg.Key) == 0 {
		n := atomic.AddInt32(&p.roundRobin, 1)
		return n % numPartitions
	}
	h := fnv.New32a()
	h.Write(msg.Key)
	return int32(h.Sum32()) % numPartitions
}

// NewHashPartitioner returns the default Partitioner.
func NewHashPartitioner() Partitioner { return &hashPartitioner{} }

// Producer accumulates ProducerMessages into per-partition batches and
// drives them to their leader brokers via a background sender (§4.8, §4.9).
// Send blocks the caller until the batch containing its message is
// acknowledged, retried to exhaustion, or ctx is canceled; it does not wait
// for any other message's batch.
type Producer struct {
	client      *Client
	ownClient   bool
	conf        *Config
	acc         *recordAccumulator
	sender      *sender
	partitioner Partitioner

	closeOnce sync.Once
}

// NewProducer dials addrs and returns a Producer owning that Client; Close
// closes the Client too.
func NewProducer(addrs []string, conf *Config) (*Producer, error) {
	client, err := NewClient(addrs, conf)
	if err != nil {
		return nil, err
	}
	p, err := NewProducerFromClient(client)
	if err != nil {
		client.Close()
		return nil, err
	}
	p.ownClient = true
	return p, nil
}

// NewProducerFromClient builds a Producer sharing an existing Client; Close
// leaves the Client open for the caller to reuse or close separately.
func NewProducerFromClient(client *Client) (*Producer, error) {
	conf := client.Config()
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	p := &Producer{
		client:      client,
		conf:        conf,
		acc:         newRecordAccumulator(conf),
		partitioner: NewHashPartitioner(),
	}
	p.sender = newSender(client, p.acc)
	p.sender.start()
	return p, nil
}

// Send appends msg to its partition's batch and blocks until that batch is
// acknowledged or permanently fails, or ctx is canceled. If msg.Partition
// is negative, the configured Partitioner assigns one.
func (p *Producer) Send(ctx context.Context, msg *ProducerMessage) (ProducerResult, error) {
	if msg.Partition < 0 {
		partitions, err := p.client.Partitions(msg.Topic)
		if err != nil {
			return ProducerResult{}, err
		}
		idx := p.partitioner.Partition(msg, int32(len(partitions)))
		if idx < 0 || int(idx) >= len(partitions) {
			idx = 0
		}
		msg.Partition = partitions[idx]
	}

	msg.resultCh = make(chan ProducerResult, 1)
	batch, err := p.acc.append(msg)
	if err != nil {
		return ProducerResult{}, err
	}
	if batch.full(p.acc.batchSizeBytes()) {
		p.sender.signal()
	}

	select {
	case res := <-msg.resultCh:
		return res, res.Err
	case <-ctx.Done():
		return ProducerResult{}, ctx.Err()
	}
}

// Flush forces every pending batch to be sent immediately, regardless of
// linger_ms, and waits for that cycle's sends to complete.
func (p *Producer) Flush() {
	p.sender.flush()
}

// Close flushes and stops the background sender. If this Producer owns its
// Client (constructed via NewProducer), the Client is closed too.
func (p *Producer) Close() error {
	var err error
	p.closeOnce.Do(func() {
		p.acc.close()
		p.sender.close()
		if p.ownClient {
			err = p.client.Close()
		}
	})
	return err
}
