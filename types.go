package kafka

import "fmt"

// BrokerID identifies a Kafka server process cluster-wide (§3). It is
// stable across metadata refreshes even though a broker's address is not.
type BrokerID int32

// BrokerInfo is the immutable description of one cluster member as reported
// by a Metadata or ApiVersions response (§3).
type BrokerInfo struct {
	ID   BrokerID
	Host string
	Port int32
	Rack string

	// UsableAPIVersions is this broker's intersected-with-nothing range
	// table, stapled on by an ApiVersions probe (§4.3). Nil until probed.
	UsableAPIVersions map[apiKey]apiVersionRange
}

func (b BrokerInfo) Addr() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

// BrokerRef is a small index into a Metadata snapshot's broker array. It is
// stable for comparisons and for pinning group coordinators across
// refreshes even though the underlying slice is reallocated on every
// refresh (§3).
type BrokerRef int

const noBrokerRef BrokerRef = -1

// TopicPartition keys into metadata and into producer/consumer state (§3).
// Equality is structural, so it is a valid Go map key as-is.
type TopicPartition struct {
	Topic     string
	Partition int32
}

func (tp TopicPartition) String() string {
	return fmt.Sprintf("%s-%d", tp.Topic, tp.Partition)
}

// PartitionInfo describes one partition of a topic (§3).
type PartitionInfo struct {
	Partition int32
	Leader    BrokerID // -1 when absent
	Replicas  []BrokerID
	ISR       []BrokerID
	Err       KError
}

func (p PartitionInfo) hasLeader() bool {
	return p.Leader >= 0
}

// TopicInfo is a topic's partitions as reported by a Metadata response.
type TopicInfo struct {
	Name       string
	Partitions []PartitionInfo
	Err        KError
}
