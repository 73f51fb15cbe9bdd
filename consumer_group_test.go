package kafka

import "testing"

// TestHandleGroupErrorTransitions exercises the §8 scenario 5 state machine:
// each heartbeat/join error drives the member to a specific next state, per
// §4.6's transition table.
func TestHandleGroupErrorTransitions(t *testing.T) {
	cases := []struct {
		name          string
		kerr          KError
		wantState     groupState
		wantMemberID  string
	}{
		{"rebalance in progress re-enters Rebalancing", ErrRebalanceInProgress, groupRebalancing, "keep-me"},
		{"illegal generation forgets member id and re-enters Rebalancing", ErrIllegalGeneration, groupRebalancing, ""},
		{"unknown member id forgets member id and re-enters Rebalancing", ErrUnknownMemberId, groupRebalancing, ""},
		{"any other broker error falls back to Unjoined", ErrNotCoordinatorForGroup, groupUnjoined, "keep-me"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			g := &ConsumerGroup{state: groupStable, memberID: "keep-me"}
			err := g.handleGroupError(tc.kerr)

			kerr, ok := err.(KafkaError)
			if !ok || kerr.Code != tc.kerr {
				t.Fatalf("handleGroupError returned %v, want KafkaError{%v}", err, tc.kerr)
			}
			if g.state != tc.wantState {
				t.Fatalf("state = %v, want %v", g.state, tc.wantState)
			}
			if g.memberID != tc.wantMemberID {
				t.Fatalf("memberID = %q, want %q", g.memberID, tc.wantMemberID)
			}
		})
	}
}

func TestLeaveGroupWhenNotStableIsGroupLoadInProgress(t *testing.T) {
	g := &ConsumerGroup{state: groupUnjoined}
	err := g.LeaveGroup()
	kerr, ok := err.(KafkaError)
	if !ok || kerr.Code != ErrGroupLoadInProgress {
		t.Fatalf("got %v, want KafkaError{ErrGroupLoadInProgress}", err)
	}
	// must not have touched heartbeat/coordinator state it doesn't own
	if g.state != groupUnjoined {
		t.Fatalf("state changed to %v, should be left alone", g.state)
	}
}

func TestHeartbeatOnceIsNoopWhenNotStable(t *testing.T) {
	g := &ConsumerGroup{state: groupRebalancing}
	// client is nil: if heartbeatOnce did anything beyond the state check
	// it would panic on the nil client, so reaching here cleanly is the
	// assertion.
	g.heartbeatOnce()
	if g.state != groupRebalancing {
		t.Fatalf("state changed to %v, heartbeatOnce should leave a non-Stable member alone", g.state)
	}
}

func TestStopHeartbeatIsIdempotent(t *testing.T) {
	g := &ConsumerGroup{heartbeatDone: make(chan struct{})}
	g.stopHeartbeat()
	g.stopHeartbeat() // a second call must not panic on a closed channel
	select {
	case <-g.heartbeatDone:
	default:
		t.Fatal("heartbeatDone should be closed after stopHeartbeat")
	}
}
