package kafka

import (
	"testing"
	"time"
)

func TestProducerBatchTryAppendRespectsSize(t *testing.T) {
	b := newProducerBatch("t1", 0)
	small := &ProducerMessage{Value: []byte("hi")}
	if !b.tryAppend(small, 10000) {
		t.Fatal("first append into an empty batch should always succeed")
	}
	big := &ProducerMessage{Value: make([]byte, 10000)}
	if b.tryAppend(big, 10000) {
		t.Fatal("append that would overflow batchSize should be rejected")
	}
	if b.full(10000) {
		t.Fatal("batch holding one small message should not be full at this batchSize")
	}
}

func TestProducerBatchCloseIsTerminal(t *testing.T) {
	b := newProducerBatch("t1", 0)
	b.close()
	if b.tryAppend(&ProducerMessage{}, 100) {
		t.Fatal("append into a closed batch must be rejected")
	}
	if !b.isClosed() {
		t.Fatal("isClosed should report true after close")
	}
}

func TestProducerBatchExpired(t *testing.T) {
	b := newProducerBatch("t1", 0)
	if b.expired(0) {
		t.Fatal("an empty batch with linger disabled should not report expired")
	}
	b.tryAppend(&ProducerMessage{}, 1000)
	if !b.expired(0) {
		t.Fatal("linger_ms == 0 should mean ready as soon as non-empty")
	}
	if b.expired(time.Hour) {
		t.Fatal("a just-created batch should not be expired against an hour-long linger")
	}
}

func TestProducerBatchCompleteDeliversToEveryMessage(t *testing.T) {
	b := newProducerBatch("t1", 2)
	msgs := make([]*ProducerMessage, 3)
	for i := range msgs {
		msgs[i] = &ProducerMessage{resultCh: make(chan ProducerResult, 1)}
		b.tryAppend(msgs[i], 100000)
	}
	b.complete(func(m *ProducerMessage) ProducerResult {
		return ProducerResult{Partition: 2, Offset: 42}
	})
	for i, m := range msgs {
		select {
		case res := <-m.resultCh:
			if res.Offset != 42 {
				t.Fatalf("message %d got offset %d, want 42", i, res.Offset)
			}
		default:
			t.Fatalf("message %d never received a result", i)
		}
	}
}

func TestProducerBatchToMessageSetUncompressed(t *testing.T) {
	b := newProducerBatch("t1", 0)
	b.tryAppend(&ProducerMessage{Key: []byte("k1"), Value: []byte("v1")}, 100000)
	b.tryAppend(&ProducerMessage{Key: []byte("k2"), Value: []byte("v2")}, 100000)

	set, err := b.toMessageSet(1, CompressionNone)
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Items) != 2 {
		t.Fatalf("got %d items, want 2", len(set.Items))
	}
	if set.Items[0].Offset != 0 || set.Items[1].Offset != 1 {
		t.Fatalf("expected relative offsets 0,1, got %d,%d", set.Items[0].Offset, set.Items[1].Offset)
	}
}

func TestProducerBatchToMessageSetCompressedRoundTrips(t *testing.T) {
	b := newProducerBatch("t1", 0)
	for i := 0; i < 3; i++ {
		b.tryAppend(&ProducerMessage{Key: []byte("k"), Value: []byte("payload")}, 100000)
	}

	set, err := b.toMessageSet(1, CompressionGzip)
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Items) != 1 {
		t.Fatalf("compressed set should wrap in a single outer message, got %d items", len(set.Items))
	}
	outer := set.Items[0].Message
	if outer.Codec != CompressionGzip {
		t.Fatalf("outer message codec = %v, want gzip", outer.Codec)
	}

	encoded, err := encodeForTest(outer)
	if err != nil {
		t.Fatal(err)
	}
	decoded := &Message{Version: 1}
	if err := decoded.decode(&realDecoder{raw: encoded}, 1); err != nil {
		t.Fatal(err)
	}
	inner, err := decodeInnerSet(decoded.Value, set.Items[0].Offset)
	if err != nil {
		t.Fatal(err)
	}
	if len(inner) != 3 {
		t.Fatalf("decoded inner set has %d messages, want 3", len(inner))
	}
}
