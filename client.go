package kafka

import (
	"sort"
	"sync"
)

// Client is the typed RPC surface every higher-level component (producer,
// consumer, ConsumerGroup) is built on. It owns the metadata store and the
// pool of broker connections, and implements the retriable-error-triggers-
// refresh-and-retry policy of §4.4 once, centrally, rather than in each
// caller.
type Client struct {
	conf *Config
	meta *metadataStore

	closeOnce sync.Once
}

// NewClient dials addrs and blocks until the first metadata snapshot loads.
func NewClient(addrs []string, conf *Config) (*Client, error) {
	if conf == nil {
		conf = NewConfig()
	}
	if err := conf.Validate(); err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, ConfigurationError("at least one broker address is required")
	}

	c := &Client{
		conf: conf,
		meta: newMetadataStore(conf, addrs),
	}
	if _, err := c.meta.ensure(); err != nil {
		return nil, err
	}
	c.meta.run()
	return c, nil
}

// Close releases every broker connection and stops the background refresh
// goroutine.
func (c *Client) Close() error {
	c.closeOnce.Do(c.meta.close)
	return nil
}

// Config returns the configuration this client was constructed with.
func (c *Client) Config() *Config { return c.conf }

// Topics returns every topic name known from the last metadata snapshot.
func (c *Client) Topics() ([]string, error) {
	meta, err := c.meta.ensure()
	if err != nil {
		return nil, err
	}
	return meta.Topics(), nil
}

// Partitions returns the sorted partition ids of topic.
func (c *Client) Partitions(topic string) ([]int32, error) {
	meta, err := c.meta.ensure()
	if err != nil {
		return nil, err
	}
	if parts := meta.Partitions(topic); parts != nil {
		return parts, nil
	}
	if err := c.RefreshMetadata(topic); err != nil {
		return nil, err
	}
	meta = c.meta.state.current()
	return meta.Partitions(topic), nil
}

// RefreshMetadata forces a new metadata fetch; topics is currently
// informational only since this client always fetches full topology
// (every Metadata request asks for all topics, whatever Config.Metadata.Full
// is set to).
func (c *Client) RefreshMetadata(topics ...string) error {
	return c.meta.refreshNow()
}

// brokerFor opens (or reuses) a connection to info.
func (c *Client) brokerFor(info BrokerInfo) (*Broker, error) {
	return c.meta.brokers.get(info.Addr(), info.ID, c.conf)
}

// Leader returns an open connection to the current leader of topic-partition.
func (c *Client) Leader(topic string, partition int32) (*Broker, error) {
	meta, err := c.meta.ensure()
	if err != nil {
		return nil, err
	}
	tp := TopicPartition{Topic: topic, Partition: partition}
	info, ok := meta.LeaderFor(tp)
	if !ok {
		if err := c.RefreshMetadata(topic); err != nil {
			return nil, err
		}
		meta = c.meta.state.current()
		info, ok = meta.LeaderFor(tp)
		if !ok {
			return nil, ErrLeaderNotAvailable
		}
	}
	return c.brokerFor(info)
}

// Controller returns an open connection to the cluster controller.
func (c *Client) Controller() (*Broker, error) {
	meta, err := c.meta.ensure()
	if err != nil {
		return nil, err
	}
	id, ok := meta.ControllerID()
	if !ok {
		return nil, ErrControllerNotAvailable
	}
	info, ok := meta.BrokerByID(id)
	if !ok {
		return nil, ErrBrokerNotFound
	}
	return c.brokerFor(info)
}

// anyBroker returns a connection to an arbitrary known broker, used for
// requests that are not partition- or controller-scoped (FindCoordinator,
// ListGroups).
func (c *Client) anyBroker() (*Broker, error) {
	meta, err := c.meta.ensure()
	if err != nil {
		return nil, err
	}
	brokers := meta.Brokers()
	if len(brokers) == 0 {
		return nil, ErrOutOfBrokers
	}
	sort.Slice(brokers, func(i, j int) bool {
		bi, _ := c.brokerFor(brokers[i])
		bj, _ := c.brokerFor(brokers[j])
		if bi == nil || bj == nil {
			return false
		}
		return bi.InFlightRequests() < bj.InFlightRequests()
	})
	return c.brokerFor(brokers[0])
}

// Coordinator returns an open connection to the coordinator broker for
// groupID (§4.6 step 1).
func (c *Client) Coordinator(groupID string) (*Broker, error) {
	b, err := c.anyBroker()
	if err != nil {
		return nil, err
	}
	req := &FindCoordinatorRequest{Version: 0, GroupID: groupID}
	resp := &FindCoordinatorResponse{Version: 0}
	if err := c.do(b, req, resp, func() KError { return resp.Err }, c.anyBroker); err != nil {
		return nil, err
	}
	meta, err := c.meta.ensure()
	if err != nil {
		return nil, err
	}
	info, ok := meta.BrokerByID(resp.CoordinatorID)
	if !ok {
		info = BrokerInfo{ID: resp.CoordinatorID, Host: resp.Host, Port: resp.Port}
	}
	return c.brokerFor(info)
}

// do sends req to b with its negotiated version and decodes into resp. If
// the round trip succeeds but brokerErr reports a retriable KError (§4.4),
// it refreshes metadata, re-resolves the broker to send to via resolve (the
// leader or coordinator may have moved), and retries the round trip exactly
// once, then re-checks brokerErr against the retried response.
func (c *Client) do(b *Broker, req, resp protocolBody, brokerErr func() KError, resolve func() (*Broker, error)) error {
	c.negotiate(b.ID(), req, resp)

	if err := b.sendAndReceive(req, resp); err != nil {
		return err
	}
	if brokerErr == nil || brokerErr() == ErrNoError {
		return nil
	}
	if !brokerErr().Retriable() {
		return KafkaError{Code: brokerErr()}
	}
	if err := c.RefreshMetadata(); err != nil {
		return KafkaError{Code: brokerErr()}
	}
	retryBroker := b
	if resolve != nil {
		rb, err := resolve()
		if err != nil {
			return KafkaError{Code: brokerErr()}
		}
		retryBroker = rb
	}
	c.negotiate(retryBroker.ID(), req, resp)
	if err := retryBroker.sendAndReceive(req, resp); err != nil {
		return err
	}
	if brokerErr() != ErrNoError {
		return KafkaError{Code: brokerErr()}
	}
	return nil
}

// negotiate sets req and resp to the intersected version for key, falling
// back to this client's own max when no ApiVersions probe has run yet.
func (c *Client) negotiate(brokerID BrokerID, req, resp protocolBody) {
	version, err := c.negotiatedVersion(brokerID, req.key())
	if err != nil {
		version = supportedVersions[req.key()].max
	}
	req.setVersion(version)
	resp.setVersion(version)
}

// negotiatedVersion looks up the intersected version range for brokerID and
// key using the last stapled ApiVersions probe, falling back to this
// client's own max when no probe has run (§4.1, §4.4).
func (c *Client) negotiatedVersion(brokerID BrokerID, key apiKey) (int16, error) {
	meta := c.meta.state.current()
	if meta == nil {
		return negotiateVersion(key, nil)
	}
	info, ok := meta.BrokerByID(brokerID)
	if !ok || info.UsableAPIVersions == nil {
		return negotiateVersion(key, nil)
	}
	return negotiateVersion(key, info.UsableAPIVersions)
}

// RequestProduce sends req to the current leader of topic/partition (as the
// cached metadata names it) and returns the broker's per-partition
// acknowledgement (§4.9). It does not go through do, so a retriable error in
// the response is returned as is rather than retried.
func (c *Client) RequestProduce(topic string, partition int32, req *ProduceRequest) (*ProduceResponse, error) {
	b, err := c.Leader(topic, partition)
	if err != nil {
		return nil, err
	}
	resp := &ProduceResponse{}
	c.negotiate(b.ID(), req, resp)
	if req.RequiredAcks == NoResponse {
		_, err := b.send(req, false)
		return nil, err
	}
	if err := b.sendAndReceive(req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RequestFetch sends a Fetch request to the leader of topic-partition and
// retries once on a retriable per-partition error (§4.4, §4.7). An empty
// result with ErrNoError after max_wait_time is a normal response, not a
// retry trigger.
func (c *Client) RequestFetch(topic string, partition int32, req *FetchRequest) (*FetchResponse, error) {
	b, err := c.Leader(topic, partition)
	if err != nil {
		return nil, err
	}
	resp := &FetchResponse{}
	err = c.do(b, req, resp, func() KError {
		if block := resp.GetBlock(topic, partition); block != nil {
			return block.Err
		}
		return ErrNoError
	}, func() (*Broker, error) { return c.Leader(topic, partition) })
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// RequestListOffsets resolves offsets for topic-partition via the partition
// leader (§4.7).
func (c *Client) RequestListOffsets(topic string, partition int32, req *ListOffsetsRequest) (*ListOffsetsResponse, error) {
	b, err := c.Leader(topic, partition)
	if err != nil {
		return nil, err
	}
	resp := &ListOffsetsResponse{}
	err = c.do(b, req, resp, func() KError {
		if block := resp.GetBlock(topic, partition); block != nil {
			return block.Err
		}
		return ErrNoError
	}, func() (*Broker, error) { return c.Leader(topic, partition) })
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// RequestOffsetCommit sends an OffsetCommit request to groupID's coordinator.
func (c *Client) RequestOffsetCommit(groupID string, req *OffsetCommitRequest) (*OffsetCommitResponse, error) {
	b, err := c.Coordinator(groupID)
	if err != nil {
		return nil, err
	}
	resp := &OffsetCommitResponse{}
	c.negotiate(b.ID(), req, resp)
	if err := b.sendAndReceive(req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RequestOffsetFetch sends an OffsetFetch request to groupID's coordinator.
func (c *Client) RequestOffsetFetch(groupID string, req *OffsetFetchRequest) (*OffsetFetchResponse, error) {
	b, err := c.Coordinator(groupID)
	if err != nil {
		return nil, err
	}
	resp := &OffsetFetchResponse{}
	c.negotiate(b.ID(), req, resp)
	if err := b.sendAndReceive(req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RequestJoinGroup sends a JoinGroup request to groupID's coordinator.
func (c *Client) RequestJoinGroup(coordinator *Broker, req *JoinGroupRequest) (*JoinGroupResponse, error) {
	resp := &JoinGroupResponse{}
	c.negotiate(coordinator.ID(), req, resp)
	if err := coordinator.sendAndReceive(req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RequestSyncGroup sends a SyncGroup request to coordinator.
func (c *Client) RequestSyncGroup(coordinator *Broker, req *SyncGroupRequest) (*SyncGroupResponse, error) {
	resp := &SyncGroupResponse{}
	c.negotiate(coordinator.ID(), req, resp)
	if err := coordinator.sendAndReceive(req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RequestHeartbeat sends a Heartbeat request to coordinator.
func (c *Client) RequestHeartbeat(coordinator *Broker, req *HeartbeatRequest) (*HeartbeatResponse, error) {
	resp := &HeartbeatResponse{}
	c.negotiate(coordinator.ID(), req, resp)
	if err := coordinator.sendAndReceive(req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// RequestLeaveGroup sends a LeaveGroup request to coordinator.
func (c *Client) RequestLeaveGroup(coordinator *Broker, req *LeaveGroupRequest) (*LeaveGroupResponse, error) {
	resp := &LeaveGroupResponse{}
	c.negotiate(coordinator.ID(), req, resp)
	if err := coordinator.sendAndReceive(req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}
