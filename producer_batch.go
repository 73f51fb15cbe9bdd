package kafka

import (
	"sync"
	"time"
)

// ProducerMessage is handed to the accumulator by a caller of Producer.Send
// (§4.8). Its outcome (offset, timestamp or error) arrives as a
// ProducerResult on resultCh.
type ProducerMessage struct {
	Topic     string
	Partition int32
	Key       []byte
	Value     []byte
	Timestamp time.Time
	Metadata  interface{}

	resultCh chan ProducerResult
}

// ProducerResult is what a Producer.Send caller eventually reads back: the
// broker-assigned offset on success, or a permanent Err on failure (every
// message of a failed batch receives the same single error).
type ProducerResult struct {
	Partition int32
	Offset    int64
	Timestamp time.Time
	Err       error
}

// byteSize approximates this record's contribution to a batch, including
// the message-set entry overhead (offset + size + CRC + header fields);
// exactness only matters for staying under batch_size/max_message_bytes,
// not for wire compatibility.
func (m *ProducerMessage) byteSize() int {
	const messageSetEntryOverhead = 8 + 4 + 4 + 1 + 1 + 8 // offset, size, crc, magic, attrs, timestamp
	return messageSetEntryOverhead + len(m.Key) + len(m.Value)
}

// producerBatch is one Open-or-Closed accumulation of messages destined for
// a single topic-partition (§4.8). Open accepts further appends; once
// Closed it is immutable and eligible to be picked up by the sender.
type producerBatch struct {
	topic     string
	partition int32
	createdAt time.Time

	mu       sync.Mutex
	messages []*ProducerMessage
	byteSize int
	closed   bool
	retries  int
}

func newProducerBatch(topic string, partition int32) *producerBatch {
	return &producerBatch{
		topic:     topic,
		partition: partition,
		createdAt: time.Now(),
	}
}

// tryAppend appends msg if the batch is Open and has room for it (§4.8:
// "tries the tail batch if Open and capacity suffices"). An empty batch
// always accepts its first message, even one larger than batchSize; after
// that an append that would take the batch past batchSize is refused, so
// the accumulator can close the batch and start a new one for it.
func (b *producerBatch) tryAppend(msg *ProducerMessage, batchSize int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	size := msg.byteSize()
	if len(b.messages) > 0 && b.byteSize+size > batchSize {
		return false
	}
	b.messages = append(b.messages, msg)
	b.byteSize += size
	return true
}

// full reports whether the batch has reached batchSize, one of §4.8's
// ready conditions.
func (b *producerBatch) full(batchSize int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.byteSize >= batchSize
}

// expired reports whether linger_ms has elapsed since the first append.
func (b *producerBatch) expired(linger time.Duration) bool {
	if linger <= 0 {
		return len(b.messages) > 0
	}
	return time.Since(b.createdAt) >= linger
}

// close transitions Open -> Closed; idempotent.
func (b *producerBatch) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *producerBatch) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

func (b *producerBatch) empty() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.messages) == 0
}

func (b *producerBatch) size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return int64(b.byteSize)
}

// bumpRetries increments and returns this batch's retry count, used by the
// sender to enforce Producer.Retry.Max (§4.9).
func (b *producerBatch) bumpRetries() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.retries++
	return b.retries
}

// toMessageSet renders every accumulated record into the wire message-set
// shape, relative offsets 0..n-1 (the broker reassigns real offsets on
// append), optionally wrapped in one compressed outer message (§4.8, §6).
func (b *producerBatch) toMessageSet(version int8, codec CompressionCodec) (*MessageSet, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	items := make([]MessageSetItem, len(b.messages))
	for i, m := range b.messages {
		items[i] = MessageSetItem{
			Offset: int64(i),
			Message: &Message{
				Version:   version,
				Key:       m.Key,
				Value:     m.Value,
				Timestamp: m.Timestamp,
			},
		}
	}
	if codec == CompressionNone {
		return &MessageSet{Items: items}, nil
	}

	inner := &MessageSet{Items: items}
	encodedInner, err := encode(wrapMessageSet{inner}, 0)
	if err != nil {
		return nil, err
	}
	// wrapper.Value carries the uncompressed inner set; Message.encode
	// compresses it itself when Codec != CompressionNone.
	wrapper := &Message{
		Version:   version,
		Codec:     codec,
		Timestamp: b.messages[0].Timestamp,
		Value:     encodedInner,
	}
	return &MessageSet{Items: []MessageSetItem{{Offset: int64(len(items) - 1), Message: wrapper}}}, nil
}

// wrapMessageSet adapts *MessageSet to protocolBody so it can go through
// the shared two-pass encode helper when serializing a compressed inner
// set (it is never sent as a standalone request).
type wrapMessageSet struct{ s *MessageSet }

func (w wrapMessageSet) key() apiKey                    { return 0 }
func (w wrapMessageSet) version() int16                 { return 0 }
func (w wrapMessageSet) setVersion(int16)               {}
func (w wrapMessageSet) encode(pe packetEncoder) error  { return w.s.encode(pe) }
func (w wrapMessageSet) decode(pd packetDecoder, _ int16) error {
	return w.s.decodeMessages(pd)
}

// complete delivers result to every message in the batch, satisfying each
// caller blocked on Producer.Send.
func (b *producerBatch) complete(result func(m *ProducerMessage) ProducerResult) {
	b.mu.Lock()
	msgs := make([]*ProducerMessage, len(b.messages))
	copy(msgs, b.messages)
	b.mu.Unlock()

	for _, m := range msgs {
		if m.resultCh != nil {
			m.resultCh <- result(m)
		}
	}
}
