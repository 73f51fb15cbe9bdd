package kafka

import (
	"sync"
	"time"
)

// groupState is the tagged union driving one member's membership in a
// consumer group (§4.6): Unjoined has no coordinator assignment at all,
// Rebalancing is mid-join/sync, Stable holds the pinned coordinator and
// generation a heartbeat loop keeps alive.
type groupState int

const (
	groupUnjoined groupState = iota
	groupRebalancing
	groupStable
)

// GroupAssignment is this member's own partitions after a successful
// rebalance (§4.6 step 5), keyed by topic.
type GroupAssignment map[string][]int32

// ConsumerGroup drives one member through the join/sync/heartbeat/leave
// state machine of §4.6. It owns exactly one coordinator connection, held as
// a *Broker and reused while that connection stays open (it is not tracked
// by BrokerRef), and exactly one heartbeat goroutine while Stable.
type ConsumerGroup struct {
	client   *Client
	conf     *Config
	groupID  string
	topics   []string

	mu           sync.Mutex
	state        groupState
	memberID     string
	generationID int32
	coordinator  *Broker

	assignment GroupAssignment
	assignedCh chan GroupAssignment

	heartbeatDone chan struct{}
	stopOnce      sync.Once
	closeOnce     sync.Once
}

// NewConsumerGroup constructs a group member that will subscribe to topics
// once Join is called.
func NewConsumerGroup(client *Client, groupID string, topics []string) *ConsumerGroup {
	return &ConsumerGroup{
		client:     client,
		conf:       client.Config(),
		groupID:    groupID,
		topics:     topics,
		state:      groupUnjoined,
		assignedCh: make(chan GroupAssignment, 1),
	}
}

// Assignments delivers this member's partition assignment every time a
// rebalance completes.
func (g *ConsumerGroup) Assignments() <-chan GroupAssignment { return g.assignedCh }

// Join enters Rebalancing and drives the member through JoinGroup/SyncGroup
// to Stable (§4.6 steps 1-5), then starts the heartbeat loop.
func (g *ConsumerGroup) Join() error {
	g.mu.Lock()
	g.state = groupRebalancing
	g.mu.Unlock()

	coordinator, err := g.resolveCoordinator()
	if err != nil {
		return err
	}

	joinReq := &JoinGroupRequest{
		GroupID:          g.groupID,
		SessionTimeout:   int32(g.conf.Consumer.Group.SessionTimeout / time.Millisecond),
		RebalanceTimeout: int32(g.conf.Consumer.Group.RebalanceTimeout / time.Millisecond),
		MemberID:         g.memberID,
		ProtocolType:     "consumer",
	}
	for _, strat := range g.conf.Consumer.Group.AssignmentStrategies {
		subBytes, err := encodeSubscription(&ConsumerGroupMemberMetadata{Topics: g.topics})
		if err != nil {
			return err
		}
		joinReq.AddGroupProtocolMetadata(string(strat), subBytes)
	}

	joinResp, err := g.client.RequestJoinGroup(coordinator, joinReq)
	if err != nil {
		return err
	}
	if joinResp.Err != ErrNoError {
		return g.handleGroupError(joinResp.Err)
	}

	g.mu.Lock()
	g.memberID = joinResp.MemberID
	g.generationID = joinResp.GenerationID
	g.mu.Unlock()

	syncReq := &SyncGroupRequest{
		GroupID:      g.groupID,
		GenerationID: joinResp.GenerationID,
		MemberID:     joinResp.MemberID,
	}

	if joinResp.IsLeader() {
		strategy := balanceStrategyFor(joinResp.GroupProtocol, g.conf.Consumer.Group.AssignmentStrategies)
		if strategy == nil {
			return UnsupportedVersionError{APIKey: int16(apiKeyJoinGroup)}
		}
		members := make(map[string]*ConsumerGroupMemberMetadata, len(joinResp.Members))
		for _, m := range joinResp.Members {
			sub, err := decodeSubscription(m.Metadata)
			if err != nil {
				return err
			}
			members[m.MemberID] = sub
		}
		meta, err := g.client.meta.ensure()
		if err != nil {
			return err
		}
		plan, err := strategy.Plan(members, meta)
		if err != nil {
			return err
		}
		assigned := make(map[string]bool)
		for _, byTopic := range plan {
			for topic := range byTopic {
				assigned[topic] = true
			}
		}
		for _, topic := range g.topics {
			if !assigned[topic] {
				logger.Printf("kafka: consumer group %s: subscribed topic %s has no assigned partitions", g.groupID, topic)
			}
		}
		for topic := range assigned {
			if !subscribesTo(&ConsumerGroupMemberMetadata{Topics: g.topics}, topic) {
				g.topics = append(g.topics, topic)
			}
		}
		for memberID, byTopic := range plan {
			assignBytes, err := encodeAssignment(&ConsumerGroupMemberAssignment{Topics: byTopic})
			if err != nil {
				return err
			}
			syncReq.AddGroupAssignment(memberID, assignBytes)
		}
	}

	syncResp, err := g.client.RequestSyncGroup(coordinator, syncReq)
	if err != nil {
		return err
	}
	if syncResp.Err != ErrNoError {
		return g.handleGroupError(syncResp.Err)
	}

	assignment, err := decodeAssignment(syncResp.MemberAssignment)
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.coordinator = coordinator
	g.assignment = GroupAssignment(assignment.Topics)
	g.state = groupStable
	g.mu.Unlock()

	select {
	case g.assignedCh <- g.assignment:
	default:
	}

	g.startHeartbeat()
	return nil
}

// resolveCoordinator finds (or reuses) the coordinator broker for this
// group (§4.6 step 1).
func (g *ConsumerGroup) resolveCoordinator() (*Broker, error) {
	g.mu.Lock()
	if g.coordinator != nil && g.coordinator.Connected() {
		b := g.coordinator
		g.mu.Unlock()
		return b, nil
	}
	g.mu.Unlock()

	b, err := g.client.Coordinator(g.groupID)
	if err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.coordinator = b
	g.mu.Unlock()
	return b, nil
}

// handleGroupError applies §4.6's heartbeat/join error transitions and
// returns the resulting error for the caller to see.
func (g *ConsumerGroup) handleGroupError(kerr KError) error {
	g.mu.Lock()
	switch kerr {
	case ErrRebalanceInProgress:
		g.state = groupRebalancing
	case ErrIllegalGeneration, ErrUnknownMemberId:
		g.memberID = ""
		g.state = groupRebalancing
	default:
		g.state = groupUnjoined
	}
	g.mu.Unlock()
	return KafkaError{Code: kerr}
}

// startHeartbeat launches the time.Ticker-driven loop that keeps this
// member's session alive while Stable (§4.6).
func (g *ConsumerGroup) startHeartbeat() {
	g.stopHeartbeat()
	g.stopOnce = sync.Once{}
	g.heartbeatDone = make(chan struct{})
	done := g.heartbeatDone
	go func() {
		ticker := time.NewTicker(g.conf.Consumer.Group.HeartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				g.heartbeatOnce()
			case <-done:
				return
			}
		}
	}()
}

func (g *ConsumerGroup) heartbeatOnce() {
	g.mu.Lock()
	if g.state != groupStable {
		g.mu.Unlock()
		return
	}
	coordinator := g.coordinator
	req := &HeartbeatRequest{
		GroupID:      g.groupID,
		GenerationID: g.generationID,
		MemberID:     g.memberID,
	}
	g.mu.Unlock()

	resp, err := g.client.RequestHeartbeat(coordinator, req)
	if err != nil {
		time.Sleep(g.conf.Consumer.Group.RetryBackoff)
		return
	}
	if resp.Err == ErrNoError {
		return
	}

	switch resp.Err {
	case ErrRebalanceInProgress:
		g.mu.Lock()
		g.state = groupRebalancing
		g.mu.Unlock()
		go func() {
			if err := g.Join(); err != nil {
				logger.Printf("kafka: consumer group %s rejoin failed: %v", g.groupID, err)
			}
		}()
	case ErrIllegalGeneration, ErrUnknownMemberId:
		g.mu.Lock()
		g.memberID = ""
		g.state = groupRebalancing
		g.mu.Unlock()
		go func() {
			if err := g.Join(); err != nil {
				logger.Printf("kafka: consumer group %s rejoin failed: %v", g.groupID, err)
			}
		}()
	}
}

// LeaveGroup leaves the group from Stable (§4.6); from any other state it
// returns ErrGroupLoadInProgress, matching the source behavior described in
// spec.md §4.6.
func (g *ConsumerGroup) LeaveGroup() error {
	g.mu.Lock()
	if g.state != groupStable {
		g.mu.Unlock()
		return KafkaError{Code: ErrGroupLoadInProgress}
	}
	coordinator := g.coordinator
	req := &LeaveGroupRequest{GroupID: g.groupID, MemberID: g.memberID}
	g.state = groupUnjoined
	g.mu.Unlock()

	g.stopHeartbeat()

	_, err := g.client.RequestLeaveGroup(coordinator, req)
	return err
}

func (g *ConsumerGroup) stopHeartbeat() {
	g.stopOnce.Do(func() {
		if g.heartbeatDone != nil {
			close(g.heartbeatDone)
		}
	})
}

// Close leaves the group (if Stable) and releases the heartbeat goroutine.
func (g *ConsumerGroup) Close() error {
	var err error
	g.closeOnce.Do(func() {
		err = g.LeaveGroup()
	})
	return err
}
