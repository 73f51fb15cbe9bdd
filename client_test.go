package kafka

import (
	"net"
	"testing"
	"time"
)

func TestNegotiateVersionFallsBackToOwnMaxWhenNoProbe(t *testing.T) {
	v, err := negotiateVersion(apiKeyFetch, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v != supportedVersions[apiKeyFetch].max {
		t.Fatalf("version = %d, want this client's own max %d", v, supportedVersions[apiKeyFetch].max)
	}
}

func TestNegotiateVersionIntersectsBrokerRange(t *testing.T) {
	usable := map[apiKey]apiVersionRange{apiKeyFetch: {0, 1}}
	v, err := negotiateVersion(apiKeyFetch, usable)
	if err != nil {
		t.Fatal(err)
	}
	if v != 1 {
		t.Fatalf("version = %d, want 1 (broker's lower max)", v)
	}
}

func TestNegotiateVersionDisjointRangesAreUnsupported(t *testing.T) {
	usable := map[apiKey]apiVersionRange{apiKeyFetch: {10, 20}}
	if _, err := negotiateVersion(apiKeyFetch, usable); err == nil {
		t.Fatal("expected UnsupportedVersionError for a disjoint broker range")
	}
}

func TestNegotiateVersionUnknownKeyIsUnsupported(t *testing.T) {
	if _, err := negotiateVersion(apiKey(999), nil); err == nil {
		t.Fatal("expected UnsupportedVersionError for a key this client never implemented")
	}
}

// TestMetadataStoreFetchFromAnyTakesFirstSuccess exercises §4.3's
// parallel-probe bootstrap: one seed is unreachable, the other answers, and
// the store must publish the answering seed's snapshot rather than failing.
func TestMetadataStoreFetchFromAnyTakesFirstSuccess(t *testing.T) {
	resp := &MetadataResponse{Version: 1, ControllerID: 7, Topics: []metadataTopic{{Name: "t1"}}}
	payload, err := encode(resp, 1)
	if err != nil {
		t.Fatal(err)
	}
	srv := newBrokerTestServer(t, func(conn net.Conn, correlationID int32) {
		writeFrame(t, conn, correlationID, payload)
	})
	defer srv.close()

	conf := NewConfig()
	conf.ApiVersionRequest = false
	conf.Net.DialTimeout = 500 * time.Millisecond
	conf.Net.RequestTimeout = 2 * time.Second

	store := newMetadataStore(conf, nil)
	defer store.close()

	meta, err := store.fetchFromAny([]string{"127.0.0.1:1", srv.addr()})
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := meta.Topic("t1"); !ok {
		t.Fatal("expected the snapshot from the answering seed to carry topic t1")
	}
}
