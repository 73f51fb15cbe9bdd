package kafka

import "sort"

// BalanceStrategy computes a partition assignment from every group
// member's advertised subscription, run only by the elected leader
// (§4.5, §4.6 step 3). Implementations are pure functions of their inputs
// so that, per the determinism invariant, the same inputs always produce
// the same assignment regardless of which member happens to compute it.
type BalanceStrategy interface {
	Name() string
	Plan(members map[string]*ConsumerGroupMemberMetadata, meta *Metadata) (map[string]map[string][]int32, error)
}

// BalanceStrategyRange implements the "Range" assignor of §4.5: per topic,
// sort the consumers subscribed to it by member id and the partitions
// ascending, then divide as evenly as possible, front-loading the
// remainder onto the first consumers in sorted order.
type BalanceStrategyRange struct{}

func (BalanceStrategyRange) Name() string { return "range" }

func (BalanceStrategyRange) Plan(members map[string]*ConsumerGroupMemberMetadata, meta *Metadata) (map[string]map[string][]int32, error) {
	plan := make(map[string]map[string][]int32, len(members))
	for id := range members {
		plan[id] = make(map[string][]int32)
	}

	for topic, consumers := range consumersByTopic(members) {
		sort.Strings(consumers)
		partitions := meta.Partitions(topic)
		if len(partitions) == 0 {
			continue
		}
		numConsumers := len(consumers)
		numPartitions := len(partitions)
		perConsumer := numPartitions / numConsumers
		extra := numPartitions % numConsumers

		idx := 0
		for i, id := range consumers {
			count := perConsumer
			if i < extra {
				count++
			}
			if count == 0 {
				continue
			}
			plan[id][topic] = append(plan[id][topic], partitions[idx:idx+count]...)
			idx += count
		}
	}
	return plan, nil
}

// BalanceStrategyRoundRobin implements the "Round-robin" assignor of §4.5:
// flatten every (topic, partition) pair sorted by topic then partition, and
// deal them out in member-id order, skipping members not subscribed to
// that partition's topic.
type BalanceStrategyRoundRobin struct{}

func (BalanceStrategyRoundRobin) Name() string { return "roundrobin" }

func (BalanceStrategyRoundRobin) Plan(members map[string]*ConsumerGroupMemberMetadata, meta *Metadata) (map[string]map[string][]int32, error) {
	plan := make(map[string]map[string][]int32, len(members))
	ids := make([]string, 0, len(members))
	for id := range members {
		plan[id] = make(map[string][]int32)
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) == 0 {
		return plan, nil
	}

	type tp struct {
		topic     string
		partition int32
	}
	var all []tp
	topics := make([]string, 0)
	seen := make(map[string]bool)
	for _, m := range members {
		for _, t := range m.Topics {
			if !seen[t] {
				seen[t] = true
				topics = append(topics, t)
			}
		}
	}
	sort.Strings(topics)
	for _, topic := range topics {
		for _, p := range meta.Partitions(topic) {
			all = append(all, tp{topic, p})
		}
	}

	next := 0
	for _, pair := range all {
		// advance to the next member subscribed to pair.topic, wrapping at
		// most len(ids) times so an unsubscribed partition is skipped
		// rather than looping forever.
		for i := 0; i < len(ids); i++ {
			id := ids[next%len(ids)]
			next++
			if subscribesTo(members[id], pair.topic) {
				plan[id][pair.topic] = append(plan[id][pair.topic], pair.partition)
				break
			}
		}
	}
	return plan, nil
}

func consumersByTopic(members map[string]*ConsumerGroupMemberMetadata) map[string][]string {
	out := make(map[string][]string)
	for id, m := range members {
		for _, t := range m.Topics {
			out[t] = append(out[t], id)
		}
	}
	return out
}

func subscribesTo(m *ConsumerGroupMemberMetadata, topic string) bool {
	for _, t := range m.Topics {
		if t == topic {
			return true
		}
	}
	return false
}

// balanceStrategyFor resolves the locally supported assignor matching a
// negotiated protocol name (§4.6 step 3), or nil if unrecognized.
func balanceStrategyFor(name string, strategies []AssignmentStrategy) BalanceStrategy {
	for _, s := range strategies {
		if string(s) != name {
			continue
		}
		switch s {
		case AssignmentStrategyRange:
			return BalanceStrategyRange{}
		case AssignmentStrategyRoundRobin:
			return BalanceStrategyRoundRobin{}
		}
	}
	return nil
}
