package kafka

import "testing"

// TestMetadataResponseToMetadataFlattensTopology exercises the §8 scenario 2
// parse path: a MetadataResponse with one broker, a healthy topic and a
// partition reporting a leaderless error must flatten into a Metadata
// snapshot that still reports the healthy partition's leader correctly and
// the leaderless one as having no leader.
func TestMetadataResponseToMetadataFlattensTopology(t *testing.T) {
	resp := &MetadataResponse{
		Version:      1,
		ControllerID: 5,
		Brokers: []metadataBroker{
			{NodeID: 5, Host: "broker-a", Port: 9092},
			{NodeID: 6, Host: "broker-b", Port: 9092},
		},
		Topics: []metadataTopic{
			{
				Name: "t1",
				Partitions: []metadataPartition{
					{ID: 0, Leader: 5, Replicas: []int32{5, 6}, ISR: []int32{5, 6}},
					{ID: 1, Leader: -1, ErrorCode: int16(ErrLeaderNotAvailable), Replicas: []int32{5, 6}, ISR: []int32{6}},
				},
			},
		},
	}

	meta := resp.toMetadata()

	controllerID, ok := meta.ControllerID()
	if !ok || controllerID != 5 {
		t.Fatalf("controller id = %v, ok=%v, want 5/true", controllerID, ok)
	}

	leader, ok := meta.LeaderFor(TopicPartition{Topic: "t1", Partition: 0})
	if !ok || leader.ID != 5 || leader.Host != "broker-a" {
		t.Fatalf("LeaderFor(t1/0) = %+v, ok=%v, want broker-a/5", leader, ok)
	}

	if _, ok := meta.LeaderFor(TopicPartition{Topic: "t1", Partition: 1}); ok {
		t.Fatal("partition 1 has no leader and should resolve to ok=false")
	}

	parts := meta.Partitions("t1")
	if len(parts) != 2 || parts[0] != 0 || parts[1] != 1 {
		t.Fatalf("Partitions(t1) = %v, want [0 1]", parts)
	}
}

func TestMetadataResponseControllerIDAbsentBeforeV1(t *testing.T) {
	resp := &MetadataResponse{Version: 0}
	meta := resp.toMetadata()
	if _, ok := meta.ControllerID(); ok {
		t.Fatal("version 0 metadata never reports a controller id")
	}
}

func TestMetadataRequestEncodesNilTopicsAsWildcard(t *testing.T) {
	req := &MetadataRequest{Version: 1, Topics: nil}
	testEncodable(t, "nil topics", req, []byte{0xff, 0xff, 0xff, 0xff})
}

func TestMetadataRequestEncodesExplicitTopics(t *testing.T) {
	req := &MetadataRequest{Version: 1, Topics: []string{"t1"}}
	testEncodable(t, "explicit topics", req, []byte{
		0x00, 0x00, 0x00, 0x01, // array length 1
		0x00, 0x02, 't', '1', // "t1"
	})
}
