package kafka

import "sort"

// Metadata is an immutable snapshot of cluster topology (§3). Snapshots are
// shared by many concurrent operations and are never mutated in place — a
// refresh always publishes a brand new *Metadata rather than editing this
// one. That makes a *Metadata safe to hand out to any number of readers
// without locking.
type Metadata struct {
	brokersByID  map[BrokerID]BrokerInfo
	brokerOrder  []BrokerID // stable iteration/index order, backs BrokerRef
	topics       map[string]TopicInfo
	topicOrder   []string
	controllerID BrokerID
}

func newMetadata(brokers []BrokerInfo, topics []TopicInfo, controllerID BrokerID) *Metadata {
	m := &Metadata{
		brokersByID:  make(map[BrokerID]BrokerInfo, len(brokers)),
		brokerOrder:  make([]BrokerID, 0, len(brokers)),
		topics:       make(map[string]TopicInfo, len(topics)),
		topicOrder:   make([]string, 0, len(topics)),
		controllerID: controllerID,
	}
	for _, b := range brokers {
		if _, exists := m.brokersByID[b.ID]; !exists {
			m.brokerOrder = append(m.brokerOrder, b.ID)
		}
		m.brokersByID[b.ID] = b
	}
	sort.Slice(m.brokerOrder, func(i, j int) bool { return m.brokerOrder[i] < m.brokerOrder[j] })
	for _, t := range topics {
		if _, exists := m.topics[t.Name]; !exists {
			m.topicOrder = append(m.topicOrder, t.Name)
		}
		m.topics[t.Name] = t
	}
	return m
}

// Brokers returns every known broker, in stable BrokerRef order.
func (m *Metadata) Brokers() []BrokerInfo {
	out := make([]BrokerInfo, len(m.brokerOrder))
	for i, id := range m.brokerOrder {
		out[i] = m.brokersByID[id]
	}
	return out
}

// FindBroker resolves a stable BrokerRef to the broker it currently names.
func (m *Metadata) FindBroker(ref BrokerRef) (BrokerInfo, bool) {
	if int(ref) < 0 || int(ref) >= len(m.brokerOrder) {
		return BrokerInfo{}, false
	}
	b, ok := m.brokersByID[m.brokerOrder[ref]]
	return b, ok
}

// BrokerByID looks a broker up by its cluster-unique id.
func (m *Metadata) BrokerByID(id BrokerID) (BrokerInfo, bool) {
	b, ok := m.brokersByID[id]
	return b, ok
}

// RefOf returns the BrokerRef currently naming id in this snapshot (§3).
func (m *Metadata) RefOf(id BrokerID) (BrokerRef, bool) {
	for i, bid := range m.brokerOrder {
		if bid == id {
			return BrokerRef(i), true
		}
	}
	return noBrokerRef, false
}

// LeaderFor resolves the broker leading a topic-partition, per §3's
// `leader_for(TopicPartition) -> Option<Broker>`.
func (m *Metadata) LeaderFor(tp TopicPartition) (BrokerInfo, bool) {
	topic, ok := m.topics[tp.Topic]
	if !ok {
		return BrokerInfo{}, false
	}
	for _, p := range topic.Partitions {
		if p.Partition == tp.Partition && p.hasLeader() {
			return m.BrokerByID(p.Leader)
		}
	}
	return BrokerInfo{}, false
}

// Topics returns every known topic name, in the order they were first seen.
func (m *Metadata) Topics() []string {
	out := make([]string, len(m.topicOrder))
	copy(out, m.topicOrder)
	return out
}

// Partitions returns the partitions known for topic, sorted ascending
// (data model invariant (b): partitions are densely numbered 0..count).
func (m *Metadata) Partitions(topic string) []int32 {
	t, ok := m.topics[topic]
	if !ok {
		return nil
	}
	out := make([]int32, len(t.Partitions))
	for i, p := range t.Partitions {
		out[i] = p.Partition
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Topic returns the full partition detail known for a topic.
func (m *Metadata) Topic(name string) (TopicInfo, bool) {
	t, ok := m.topics[name]
	return t, ok
}

// ControllerID returns the broker id reported as the cluster controller, or
// false if none was reported (pre-0.10 brokers).
func (m *Metadata) ControllerID() (BrokerID, bool) {
	if m.controllerID == 0 {
		return 0, false
	}
	return m.controllerID, true
}

// withUsableVersions returns a copy of m with per-broker API version tables
// stapled on, published atomically alongside the brokers they describe
// (§4.3: "results are stapled onto the snapshot before publication").
func (m *Metadata) withUsableVersions(versions map[BrokerID]map[apiKey]apiVersionRange) *Metadata {
	brokers := m.Brokers()
	for i, b := range brokers {
		if v, ok := versions[b.ID]; ok {
			b.UsableAPIVersions = v
			brokers[i] = b
		}
	}
	topics := make([]TopicInfo, len(m.topicOrder))
	for i, name := range m.topicOrder {
		topics[i] = m.topics[name]
	}
	return newMetadata(brokers, topics, m.controllerID)
}
