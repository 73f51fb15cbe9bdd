package kafka

import "testing"

func testMetadataWithPartitions(topics map[string]int) *Metadata {
	brokers := []BrokerInfo{{ID: 1, Host: "localhost", Port: 9092}}
	topicInfos := make([]TopicInfo, 0, len(topics))
	for name, n := range topics {
		partitions := make([]PartitionInfo, n)
		for i := 0; i < n; i++ {
			partitions[i] = PartitionInfo{Partition: int32(i), Leader: 1, Replicas: []BrokerID{1}, ISR: []BrokerID{1}}
		}
		topicInfos = append(topicInfos, TopicInfo{Name: name, Partitions: partitions})
	}
	return newMetadata(brokers, topicInfos, 1)
}

// TestBalanceStrategyRangeDeterministic exercises the §8 "assignor
// determinism" edge case: identical inputs must produce an identical plan
// regardless of how many times Plan is invoked.
func TestBalanceStrategyRangeDeterministic(t *testing.T) {
	meta := testMetadataWithPartitions(map[string]int{"t1": 7})
	members := map[string]*ConsumerGroupMemberMetadata{
		"c1": {Topics: []string{"t1"}},
		"c2": {Topics: []string{"t1"}},
		"c3": {Topics: []string{"t1"}},
	}

	var first map[string]map[string][]int32
	for i := 0; i < 5; i++ {
		plan, err := BalanceStrategyRange{}.Plan(members, meta)
		if err != nil {
			t.Fatalf("plan %d: %v", i, err)
		}
		if i == 0 {
			first = plan
			continue
		}
		for id, byTopic := range first {
			if !int32SlicesEqual(byTopic["t1"], plan[id]["t1"]) {
				t.Fatalf("run %d diverged for %s: %v vs %v", i, id, byTopic["t1"], plan[id]["t1"])
			}
		}
	}

	total := 0
	for _, byTopic := range first {
		total += len(byTopic["t1"])
	}
	if total != 7 {
		t.Fatalf("range plan assigned %d partitions, want 7", total)
	}
	// remainder (7 = 2*3 + 1) front-loads onto the first consumer in sorted order
	if len(first["c1"]["t1"]) != 3 {
		t.Fatalf("c1 got %d partitions, want 3", len(first["c1"]["t1"]))
	}
}

func TestBalanceStrategyRoundRobinSkipsUnsubscribed(t *testing.T) {
	meta := testMetadataWithPartitions(map[string]int{"t1": 3, "t2": 3})
	members := map[string]*ConsumerGroupMemberMetadata{
		"c1": {Topics: []string{"t1", "t2"}},
		"c2": {Topics: []string{"t2"}},
	}

	plan, err := BalanceStrategyRoundRobin{}.Plan(members, meta)
	if err != nil {
		t.Fatal(err)
	}
	if len(plan["c2"]["t1"]) != 0 {
		t.Fatalf("c2 is not subscribed to t1 but got partitions: %v", plan["c2"]["t1"])
	}
	total := len(plan["c1"]["t1"]) + len(plan["c1"]["t2"]) + len(plan["c2"]["t2"])
	if total != 6 {
		t.Fatalf("roundrobin plan assigned %d partitions total, want 6", total)
	}
}

func int32SlicesEqual(a, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
