package kafka

import "testing"

func testConsumer() *Consumer {
	conf := NewConfig()
	return &Consumer{
		conf:     conf,
		children: make(map[string]map[int32]*PartitionConsumer),
		brokers:  make(map[*Broker]*brokerConsumer),
	}
}

func testPartitionConsumer(topic string, partition int32) *PartitionConsumer {
	return &PartitionConsumer{
		topic:     topic,
		partition: partition,
		dying:     make(chan struct{}),
		feeder:    make(chan *FetchResponse, 1),
	}
}

func TestRefBrokerConsumerSharesOneInstancePerBroker(t *testing.T) {
	c := testConsumer()
	broker := NewBroker("127.0.0.1:0", BrokerID(1))

	bc1 := c.refBrokerConsumer(broker)
	bc2 := c.refBrokerConsumer(broker)
	if bc1 != bc2 {
		t.Fatal("two refs against the same broker should share one brokerConsumer")
	}
	if bc1.refs != 2 {
		t.Fatalf("refs = %d, want 2", bc1.refs)
	}

	c.unrefBrokerConsumer(bc1)
	if _, ok := c.brokers[broker]; !ok {
		t.Fatal("brokerConsumer should still be registered while a ref remains")
	}

	c.unrefBrokerConsumer(bc2)
	if _, ok := c.brokers[broker]; ok {
		t.Fatal("the last unref should remove the brokerConsumer from the map")
	}
}

func TestAddChildRejectsDuplicateTopicPartition(t *testing.T) {
	c := testConsumer()
	pc1 := testPartitionConsumer("t1", 0)
	if err := c.addChild(pc1); err != nil {
		t.Fatal(err)
	}
	pc2 := testPartitionConsumer("t1", 0)
	if err := c.addChild(pc2); err == nil {
		t.Fatal("a second ConsumePartition on the same topic-partition should fail")
	}
}

func TestRemoveChildAllowsReconsumption(t *testing.T) {
	c := testConsumer()
	pc1 := testPartitionConsumer("t1", 0)
	if err := c.addChild(pc1); err != nil {
		t.Fatal(err)
	}
	c.removeChild(pc1)

	pc2 := testPartitionConsumer("t1", 0)
	if err := c.addChild(pc2); err != nil {
		t.Fatalf("re-adding after removeChild should succeed: %v", err)
	}
}

func TestBuildRequestSkipsPausedSubscribers(t *testing.T) {
	c := testConsumer()
	broker := NewBroker("127.0.0.1:0", BrokerID(1))
	bc := &brokerConsumer{
		consumer:      c,
		broker:        broker,
		input:         make(chan *PartitionConsumer),
		subscriptions: make(map[*PartitionConsumer]struct{}),
	}

	active := testPartitionConsumer("t1", 0)
	paused := testPartitionConsumer("t1", 1)
	paused.Pause()
	bc.subscriptions[active] = struct{}{}
	bc.subscriptions[paused] = struct{}{}

	req := bc.buildRequest()
	if req == nil {
		t.Fatal("at least one unpaused subscriber should produce a non-nil request")
	}
	total := 0
	for _, topic := range req.Topics {
		total += len(topic.Partitions)
	}
	if total != 1 {
		t.Fatalf("expected exactly 1 block (the unpaused partition), got %d", total)
	}
}

func TestBuildRequestReturnsNilWhenEverySubscriberIsPaused(t *testing.T) {
	c := testConsumer()
	broker := NewBroker("127.0.0.1:0", BrokerID(1))
	bc := &brokerConsumer{
		consumer:      c,
		broker:        broker,
		input:         make(chan *PartitionConsumer),
		subscriptions: make(map[*PartitionConsumer]struct{}),
	}
	paused := testPartitionConsumer("t1", 0)
	paused.Pause()
	bc.subscriptions[paused] = struct{}{}

	if req := bc.buildRequest(); req != nil {
		t.Fatal("a brokerConsumer with only paused subscribers should build no request")
	}
}
