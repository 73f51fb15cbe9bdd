package kafka

import (
	"encoding/binary"
	"net"
	"testing"
	"time"
)

// brokerTestServer is a minimal single-connection Kafka-ish listener: it
// reads one length-prefixed request frame at a time and hands it to respond,
// which decides what (if anything) to write back. Good enough to drive
// Broker's framing and correlation-id matching without a real cluster.
type brokerTestServer struct {
	ln net.Listener
}

func newBrokerTestServer(t *testing.T, respond func(conn net.Conn, correlationID int32)) *brokerTestServer {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	srv := &brokerTestServer{ln: ln}
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			header := make([]byte, 4)
			if _, err := readFull(conn, header); err != nil {
				return
			}
			size := binary.BigEndian.Uint32(header)
			body := make([]byte, size)
			if _, err := readFull(conn, body); err != nil {
				return
			}
			// apiKey(2) + version(2) + correlationID(4) + ...
			correlationID := int32(binary.BigEndian.Uint32(body[4:8]))
			respond(conn, correlationID)
		}
	}()
	return srv
}

func (s *brokerTestServer) addr() string { return s.ln.Addr().String() }
func (s *brokerTestServer) close()       { s.ln.Close() }

func writeFrame(t *testing.T, conn net.Conn, correlationID int32, payload []byte) {
	t.Helper()
	body := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(body, uint32(correlationID))
	copy(body[4:], payload)
	frame := make([]byte, 4+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body)))
	copy(frame[4:], body)
	if _, err := conn.Write(frame); err != nil {
		t.Fatal(err)
	}
}

func TestBrokerSendAndReceiveMatchesCorrelationID(t *testing.T) {
	resp := &MetadataResponse{Version: 0}
	payload, err := encode(resp, 0)
	if err != nil {
		t.Fatal(err)
	}

	srv := newBrokerTestServer(t, func(conn net.Conn, correlationID int32) {
		writeFrame(t, conn, correlationID, payload)
	})
	defer srv.close()

	conf := NewConfig()
	conf.Net.RequestTimeout = time.Second
	b := NewBroker(srv.addr(), BrokerID(1))
	if err := b.Open(conf); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	req := &MetadataRequest{Version: 0, Topics: []string{"t1"}}
	out := &MetadataResponse{}
	if err := b.sendAndReceive(req, out); err != nil {
		t.Fatal(err)
	}
}

func TestBrokerSendAndReceiveRejectsMismatchedCorrelationID(t *testing.T) {
	resp := &MetadataResponse{Version: 0}
	payload, err := encode(resp, 0)
	if err != nil {
		t.Fatal(err)
	}

	srv := newBrokerTestServer(t, func(conn net.Conn, correlationID int32) {
		writeFrame(t, conn, correlationID+1, payload) // deliberately wrong
	})
	defer srv.close()

	conf := NewConfig()
	conf.Net.RequestTimeout = time.Second
	b := NewBroker(srv.addr(), BrokerID(1))
	if err := b.Open(conf); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	req := &MetadataRequest{Version: 0}
	out := &MetadataResponse{}
	if err := b.sendAndReceive(req, out); err != ErrCorrelationMismatch {
		t.Fatalf("got %v, want ErrCorrelationMismatch", err)
	}
}

// TestBrokerSendAndReceiveTimesOutWithNoResponse exercises the §8 scenario 4
// case: the broker accepts the request but never answers (e.g. a fetch that
// found nothing new before max_wait_time elapsed and the connection stalls
// beyond that) — the caller must see ErrRequestTimedOut, not hang forever.
func TestBrokerSendAndReceiveTimesOutWithNoResponse(t *testing.T) {
	srv := newBrokerTestServer(t, func(conn net.Conn, correlationID int32) {
		// never respond
	})
	defer srv.close()

	conf := NewConfig()
	conf.Net.RequestTimeout = 50 * time.Millisecond
	b := NewBroker(srv.addr(), BrokerID(1))
	if err := b.Open(conf); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	req := &MetadataRequest{Version: 0}
	out := &MetadataResponse{}
	if err := b.sendAndReceive(req, out); err != ErrRequestTimedOut {
		t.Fatalf("got %v, want ErrRequestTimedOut", err)
	}
}

func TestBrokerInFlightRequestsTracksOutstandingCalls(t *testing.T) {
	release := make(chan struct{})
	srv := newBrokerTestServer(t, func(conn net.Conn, correlationID int32) {
		<-release
		resp := &MetadataResponse{Version: 0}
		payload, _ := encode(resp, 0)
		writeFrame(t, conn, correlationID, payload)
	})
	defer srv.close()

	conf := NewConfig()
	conf.Net.RequestTimeout = 5 * time.Second
	b := NewBroker(srv.addr(), BrokerID(1))
	if err := b.Open(conf); err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	done := make(chan struct{})
	go func() {
		req := &MetadataRequest{Version: 0}
		out := &MetadataResponse{}
		_ = b.sendAndReceive(req, out)
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for b.InFlightRequests() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if b.InFlightRequests() != 1 {
		t.Fatalf("InFlightRequests() = %d while a request is pending, want 1", b.InFlightRequests())
	}
	close(release)
	<-done
}
