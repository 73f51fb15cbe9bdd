package kafka

import (
	"sync"
	"sync/atomic"
	"time"
)

// ConsumerMessage is one decoded record delivered to a PartitionConsumer.
type ConsumerMessage struct {
	Key, Value []byte
	Topic      string
	Partition  int32
	Offset     int64
	Timestamp  time.Time
}

// ConsumerError wraps an error encountered while consuming one partition.
type ConsumerError struct {
	Topic     string
	Partition int32
	Err       error
}

func (ce ConsumerError) Error() string {
	return "kafka: error while consuming " + TopicPartition{ce.Topic, ce.Partition}.String() + ": " + ce.Err.Error()
}

func (ce ConsumerError) Unwrap() error { return ce.Err }

// Consumer manages PartitionConsumers that fetch records from one or more
// partitions. Maintains per-partition position the way §4.7 describes: a
// fetch cycle groups every assigned partition by leader broker into one
// Fetch request per broker, and responses advance position past each
// delivered record.
type Consumer struct {
	client *Client
	conf   *Config

	lock     sync.Mutex
	children map[string]map[int32]*PartitionConsumer
	brokers  map[*Broker]*brokerConsumer
}

// NewConsumer dials addrs and returns a Consumer ready to ConsumePartition.
func NewConsumer(addrs []string, conf *Config) (*Consumer, error) {
	client, err := NewClient(addrs, conf)
	if err != nil {
		return nil, err
	}
	return NewConsumerFromClient(client)
}

// NewConsumerFromClient builds a Consumer over an already-open Client. The
// caller remains responsible for closing client.
func NewConsumerFromClient(client *Client) (*Consumer, error) {
	return &Consumer{
		client:   client,
		conf:     client.Config(),
		children: make(map[string]map[int32]*PartitionConsumer),
		brokers:  make(map[*Broker]*brokerConsumer),
	}, nil
}

// Close shuts the consumer down. Every PartitionConsumer must already be
// closed.
func (c *Consumer) Close() error { return nil }

func (c *Consumer) Topics() ([]string, error)            { return c.client.Topics() }
func (c *Consumer) Partitions(topic string) ([]int32, error) { return c.client.Partitions(topic) }

// ConsumePartition starts fetching topic-partition from offset (a literal
// offset, or OffsetNewest/OffsetOldest) and returns the PartitionConsumer
// delivering its record stream.
func (c *Consumer) ConsumePartition(topic string, partition int32, offset int64) (*PartitionConsumer, error) {
	pc := &PartitionConsumer{
		consumer:  c,
		conf:      c.conf,
		topic:     topic,
		partition: partition,
		messages:  make(chan *ConsumerMessage, 256),
		errors:    make(chan *ConsumerError, 16),
		feeder:    make(chan *FetchResponse, 1),
		dying:     make(chan struct{}),
		fetchSize: c.conf.Consumer.Fetch.Default,
	}

	if err := pc.chooseStartingOffset(offset); err != nil {
		return nil, err
	}

	if err := c.addChild(pc); err != nil {
		return nil, err
	}

	leader, err := c.client.Leader(topic, partition)
	if err != nil {
		c.removeChild(pc)
		return nil, err
	}

	go pc.responseFeeder()
	pc.broker = c.refBrokerConsumer(leader)
	pc.broker.input <- pc
	return pc, nil
}

func (c *Consumer) addChild(pc *PartitionConsumer) error {
	c.lock.Lock()
	defer c.lock.Unlock()
	byPartition := c.children[pc.topic]
	if byPartition == nil {
		byPartition = make(map[int32]*PartitionConsumer)
		c.children[pc.topic] = byPartition
	}
	if byPartition[pc.partition] != nil {
		return ConfigurationError("that topic/partition is already being consumed")
	}
	byPartition[pc.partition] = pc
	return nil
}

func (c *Consumer) removeChild(pc *PartitionConsumer) {
	c.lock.Lock()
	defer c.lock.Unlock()
	delete(c.children[pc.topic], pc.partition)
}

func (c *Consumer) refBrokerConsumer(broker *Broker) *brokerConsumer {
	c.lock.Lock()
	defer c.lock.Unlock()
	bc := c.brokers[broker]
	if bc == nil {
		bc = c.newBrokerConsumer(broker)
		c.brokers[broker] = bc
	}
	bc.refs++
	return bc
}

func (c *Consumer) unrefBrokerConsumer(bc *brokerConsumer) {
	c.lock.Lock()
	defer c.lock.Unlock()
	bc.refs--
	if bc.refs == 0 {
		close(bc.input)
		if c.brokers[bc.broker] == bc {
			delete(c.brokers, bc.broker)
		}
	}
}

// HighWaterMarks returns the last observed high water mark per partition.
func (c *Consumer) HighWaterMarks() map[string]map[int32]int64 {
	c.lock.Lock()
	defer c.lock.Unlock()
	out := make(map[string]map[int32]int64, len(c.children))
	for topic, byPartition := range c.children {
		hwm := make(map[int32]int64, len(byPartition))
		for partition, pc := range byPartition {
			hwm[partition] = pc.HighWaterMarkOffset()
		}
		out[topic] = hwm
	}
	return out
}

// Pause suspends fetching from the named partitions without affecting
// their subscription (§4.7).
func (c *Consumer) Pause(topicPartitions map[string][]int32) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for topic, partitions := range topicPartitions {
		for _, p := range partitions {
			if pc := c.children[topic][p]; pc != nil {
				pc.Pause()
			}
		}
	}
}

// Resume resumes the named partitions.
func (c *Consumer) Resume(topicPartitions map[string][]int32) {
	c.lock.Lock()
	defer c.lock.Unlock()
	for topic, partitions := range topicPartitions {
		for _, p := range partitions {
			if pc := c.children[topic][p]; pc != nil {
				pc.Resume()
			}
		}
	}
}

// PartitionConsumer delivers the decoded record stream for one
// topic-partition. Must be closed (AsyncClose or Close) to release its
// broker reference.
type PartitionConsumer struct {
	highWaterMarkOffset int64 // atomic

	consumer *Consumer
	conf     *Config
	broker   *brokerConsumer
	messages chan *ConsumerMessage
	errors   chan *ConsumerError
	feeder   chan *FetchResponse

	dying     chan struct{}
	closeOnce sync.Once

	topic     string
	partition int32
	offset    int64
	fetchSize int32
	paused    int32
}

func (pc *PartitionConsumer) chooseStartingOffset(offset int64) error {
	switch offset {
	case OffsetNewest, OffsetOldest:
		req := &ListOffsetsRequest{Version: 0}
		req.AddBlock(pc.topic, pc.partition, offset)
		resp, err := pc.consumer.client.RequestListOffsets(pc.topic, pc.partition, req)
		if err != nil {
			return err
		}
		block := resp.GetBlock(pc.topic, pc.partition)
		if block == nil || block.Err != ErrNoError {
			return ErrIncompleteResponse
		}
		pc.offset = block.ResolvedOffset()
	default:
		if offset < 0 {
			return PacketDecodingError{"invalid starting offset"}
		}
		pc.offset = offset
	}
	return nil
}

// Messages returns the channel of decoded records.
func (pc *PartitionConsumer) Messages() <-chan *ConsumerMessage { return pc.messages }

// Errors returns the channel of non-fatal consume errors.
func (pc *PartitionConsumer) Errors() <-chan *ConsumerError { return pc.errors }

// HighWaterMarkOffset returns the partition's last observed high water mark.
func (pc *PartitionConsumer) HighWaterMarkOffset() int64 {
	return atomic.LoadInt64(&pc.highWaterMarkOffset)
}

// Pause suspends fetching for this partition only.
func (pc *PartitionConsumer) Pause() { atomic.StoreInt32(&pc.paused, 1) }

// Resume resumes fetching for this partition.
func (pc *PartitionConsumer) Resume() { atomic.StoreInt32(&pc.paused, 0) }

// IsPaused reports the current pause state.
func (pc *PartitionConsumer) IsPaused() bool { return atomic.LoadInt32(&pc.paused) == 1 }

// AsyncClose starts shutdown without draining pending messages.
func (pc *PartitionConsumer) AsyncClose() {
	pc.closeOnce.Do(func() {
		close(pc.dying)
		if pc.broker != nil {
			pc.broker.input <- pc
			pc.consumer.unrefBrokerConsumer(pc.broker)
		}
	})
}

// Close stops fetching and drains any pending errors.
func (pc *PartitionConsumer) Close() error {
	pc.AsyncClose()
	var errs ConsumerErrors
drain:
	for {
		select {
		case err := <-pc.errors:
			errs = append(errs, err)
		default:
			break drain
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ConsumerErrors batches every error a Close drained from a PartitionConsumer.
type ConsumerErrors []*ConsumerError

func (ce ConsumerErrors) Error() string {
	return "kafka: multiple errors while consuming"
}

func (pc *PartitionConsumer) sendError(err error) {
	ce := &ConsumerError{Topic: pc.topic, Partition: pc.partition, Err: err}
	select {
	case pc.errors <- ce:
	default:
		logger.Printf("%v", ce)
	}
}

// responseFeeder decodes each FetchResponse handed to it by its
// brokerConsumer into individual ConsumerMessages, advancing offset past
// each one (§4.7). An empty block after max_wait_time is simply ignored,
// not an error.
func (pc *PartitionConsumer) responseFeeder() {
	defer close(pc.messages)
	for {
		select {
		case resp, ok := <-pc.feeder:
			if !ok {
				return
			}
			pc.handleResponse(resp)
		case <-pc.dying:
			return
		}
	}
}

func (pc *PartitionConsumer) handleResponse(resp *FetchResponse) {
	block := resp.GetBlock(pc.topic, pc.partition)
	if block == nil {
		return
	}
	if block.Err == ErrOffsetOutOfRange {
		pc.resetOffset()
		return
	}
	if block.Err != ErrNoError {
		pc.sendError(KafkaError{Code: block.Err})
		return
	}

	atomic.StoreInt64(&pc.highWaterMarkOffset, block.HighWatermark)
	if block.Set == nil {
		return
	}
	for _, item := range block.Set.Items {
		if item.Offset < pc.offset {
			continue
		}
		msg := &ConsumerMessage{
			Topic:     pc.topic,
			Partition: pc.partition,
			Offset:    item.Offset,
			Key:       item.Message.Key,
			Value:     item.Message.Value,
			Timestamp: item.Message.Timestamp,
		}
		select {
		case pc.messages <- msg:
			pc.offset = item.Offset + 1
		case <-pc.dying:
			return
		}
	}
}

// resetOffset applies Config.Consumer.Offsets.Initial on OffsetOutOfRange
// (§4.7).
func (pc *PartitionConsumer) resetOffset() {
	reset := OffsetOldest
	if pc.conf.Consumer.Offsets.Initial == OffsetResetLatest {
		reset = OffsetNewest
	}
	if err := pc.chooseStartingOffset(reset); err != nil {
		pc.sendError(err)
	}
}

// brokerConsumer batches the pending fetches of every PartitionConsumer
// currently assigned to one leader broker into a single Fetch request per
// cycle (§4.7), then fans each decoded block back out to its subscriber.
type brokerConsumer struct {
	consumer  *Consumer
	broker    *Broker
	input     chan *PartitionConsumer
	refs      int

	lock         sync.Mutex
	subscriptions map[*PartitionConsumer]struct{}
}

func (c *Consumer) newBrokerConsumer(broker *Broker) *brokerConsumer {
	bc := &brokerConsumer{
		consumer:      c,
		broker:        broker,
		input:         make(chan *PartitionConsumer),
		subscriptions: make(map[*PartitionConsumer]struct{}),
	}
	go bc.subscriptionManager()
	go bc.fetchLoop()
	return bc
}

// subscriptionManager serializes (un)subscription against the fetch loop's
// read of the subscription set: a PartitionConsumer sent on input toggles
// membership, closing dying signals AsyncClose.
func (bc *brokerConsumer) subscriptionManager() {
	for pc := range bc.input {
		bc.lock.Lock()
		select {
		case <-pc.dying:
			delete(bc.subscriptions, pc)
		default:
			bc.subscriptions[pc] = struct{}{}
		}
		bc.lock.Unlock()
	}
}

// fetchLoop is the single cooperative loop issuing one Fetch request per
// cycle for every still-unpaused subscriber (§4.7). A cycle with zero
// unpaused subscribers idles briefly rather than spinning.
func (bc *brokerConsumer) fetchLoop() {
	for {
		req := bc.buildRequest()
		if req == nil {
			time.Sleep(bc.consumer.conf.Consumer.Fetch.MaxWaitTime)
			if bc.done() {
				return
			}
			continue
		}

		resp := &FetchResponse{}
		bc.consumer.client.negotiate(bc.broker.ID(), req, resp)
		err := bc.broker.sendAndReceive(req, resp)

		bc.lock.Lock()
		subs := make([]*PartitionConsumer, 0, len(bc.subscriptions))
		for pc := range bc.subscriptions {
			subs = append(subs, pc)
		}
		bc.lock.Unlock()

		if err != nil {
			bc.abandon(subs, err)
			return
		}
		for _, pc := range subs {
			select {
			case pc.feeder <- resp:
			case <-pc.dying:
			}
		}
	}
}

func (bc *brokerConsumer) buildRequest() *FetchRequest {
	bc.lock.Lock()
	defer bc.lock.Unlock()
	req := &FetchRequest{
		MaxWaitTime: int32(bc.consumer.conf.Consumer.Fetch.MaxWaitTime / time.Millisecond),
		MinBytes:    bc.consumer.conf.Consumer.Fetch.MinBytes,
	}
	any := false
	for pc := range bc.subscriptions {
		if pc.IsPaused() {
			continue
		}
		req.AddBlock(pc.topic, pc.partition, pc.offset, pc.fetchSize)
		any = true
	}
	if !any {
		return nil
	}
	return req
}

func (bc *brokerConsumer) done() bool {
	bc.lock.Lock()
	defer bc.lock.Unlock()
	return len(bc.subscriptions) == 0
}

// abandon sends every subscriber back to the consumer to be reassigned
// against a freshly refreshed leader, per §4.4's leadership-error retry
// policy applied to the fetch path.
func (bc *brokerConsumer) abandon(subs []*PartitionConsumer, err error) {
	_ = bc.consumer.client.RefreshMetadata()
	for _, pc := range subs {
		pc.sendError(err)
		bc.consumer.unrefBrokerConsumer(bc)
		leader, lerr := bc.consumer.client.Leader(pc.topic, pc.partition)
		if lerr != nil {
			pc.sendError(lerr)
			continue
		}
		newBC := bc.consumer.refBrokerConsumer(leader)
		pc.broker = newBC
		newBC.input <- pc
	}
}
