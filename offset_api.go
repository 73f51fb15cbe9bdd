package kafka

// OffsetNewest and OffsetOldest are the well-known timestamps used by ListOffsets to
// ask "what is the earliest/latest offset" instead of a real wall-clock
// timestamp (§4.7 offset reset).
const (
	OffsetNewest int64 = -1
	OffsetOldest int64 = -2
)

type listOffsetsRequestPartition struct {
	Partition  int32
	Timestamp  int64
	MaxOffsets int32 // version 0 only
}

func (p *listOffsetsRequestPartition) encode(pe packetEncoder, version int16) error {
	pe.putInt32(p.Partition)
	pe.putInt64(p.Timestamp)
	if version == 0 {
		pe.putInt32(p.MaxOffsets)
	}
	return nil
}

func (p *listOffsetsRequestPartition) decode(pd packetDecoder, version int16) (err error) {
	if p.Partition, err = pd.getInt32(); err != nil {
		return err
	}
	if p.Timestamp, err = pd.getInt64(); err != nil {
		return err
	}
	if version == 0 {
		if p.MaxOffsets, err = pd.getInt32(); err != nil {
			return err
		}
	}
	return nil
}

type listOffsetsRequestTopic struct {
	Topic      string
	Partitions []listOffsetsRequestPartition
}

func (t *listOffsetsRequestTopic) encode(pe packetEncoder, version int16) error {
	if err := pe.putString(t.Topic); err != nil {
		return err
	}
	if err := pe.putArrayLength(len(t.Partitions)); err != nil {
		return err
	}
	for i := range t.Partitions {
		if err := t.Partitions[i].encode(pe, version); err != nil {
			return err
		}
	}
	return nil
}

func (t *listOffsetsRequestTopic) decode(pd packetDecoder, version int16) error {
	var err error
	if t.Topic, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	t.Partitions = make([]listOffsetsRequestPartition, n)
	for i := range t.Partitions {
		if err := t.Partitions[i].decode(pd, version); err != nil {
			return err
		}
	}
	return nil
}

// ListOffsetsRequest (API key 2, versions 0-1) resolves a topic-partition's
// offset for a given timestamp, notably OffsetNewest/OffsetOldest (§4.7).
type ListOffsetsRequest struct {
	Version   int16
	ReplicaID int32 // always -1
	Topics    []listOffsetsRequestTopic
}

func (r *ListOffsetsRequest) key() apiKey        { return apiKeyListOffsets }
func (r *ListOffsetsRequest) version() int16     { return r.Version }
func (r *ListOffsetsRequest) setVersion(v int16) { r.Version = v }

func (r *ListOffsetsRequest) encode(pe packetEncoder) error {
	pe.putInt32(-1)
	if err := pe.putArrayLength(len(r.Topics)); err != nil {
		return err
	}
	for i := range r.Topics {
		if err := r.Topics[i].encode(pe, r.Version); err != nil {
			return err
		}
	}
	return nil
}

func (r *ListOffsetsRequest) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	if r.ReplicaID, err = pd.getInt32(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Topics = make([]listOffsetsRequestTopic, n)
	for i := range r.Topics {
		if err := r.Topics[i].decode(pd, version); err != nil {
			return err
		}
	}
	return nil
}

// AddBlock registers a partition to resolve the offset of at timestamp.
func (r *ListOffsetsRequest) AddBlock(topic string, partition int32, timestamp int64) {
	for i := range r.Topics {
		if r.Topics[i].Topic == topic {
			r.Topics[i].Partitions = append(r.Topics[i].Partitions, listOffsetsRequestPartition{partition, timestamp, 1})
			return
		}
	}
	r.Topics = append(r.Topics, listOffsetsRequestTopic{
		Topic:      topic,
		Partitions: []listOffsetsRequestPartition{{partition, timestamp, 1}},
	})
}

type listOffsetsResponsePartition struct {
	Partition int32
	Err       KError
	Timestamp int64 // version >= 1, -1 if unknown
	Offsets   []int64
	Offset    int64 // version >= 1
}

func (p *listOffsetsResponsePartition) decode(pd packetDecoder, version int16) (err error) {
	if p.Partition, err = pd.getInt32(); err != nil {
		return err
	}
	ec, err := pd.getInt16()
	if err != nil {
		return err
	}
	p.Err = KError(ec)
	if version == 0 {
		if p.Offsets, err = pd.getInt64Array(); err != nil {
			return err
		}
	} else {
		if p.Timestamp, err = pd.getInt64(); err != nil {
			return err
		}
		if p.Offset, err = pd.getInt64(); err != nil {
			return err
		}
	}
	return nil
}

func (p *listOffsetsResponsePartition) encode(pe packetEncoder, version int16) error {
	pe.putInt32(p.Partition)
	pe.putInt16(int16(p.Err))
	if version == 0 {
		return pe.putInt64Array(p.Offsets)
	}
	pe.putInt64(p.Timestamp)
	pe.putInt64(p.Offset)
	return nil
}

type listOffsetsResponseTopic struct {
	Topic      string
	Partitions []listOffsetsResponsePartition
}

func (t *listOffsetsResponseTopic) decode(pd packetDecoder, version int16) error {
	var err error
	if t.Topic, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	t.Partitions = make([]listOffsetsResponsePartition, n)
	for i := range t.Partitions {
		if err := t.Partitions[i].decode(pd, version); err != nil {
			return err
		}
	}
	return nil
}

func (t *listOffsetsResponseTopic) encode(pe packetEncoder, version int16) error {
	if err := pe.putString(t.Topic); err != nil {
		return err
	}
	if err := pe.putArrayLength(len(t.Partitions)); err != nil {
		return err
	}
	for i := range t.Partitions {
		if err := t.Partitions[i].encode(pe, version); err != nil {
			return err
		}
	}
	return nil
}

// ListOffsetsResponse answers the offset(s) resolved for each requested
// partition (§4.1).
type ListOffsetsResponse struct {
	Version int16
	Topics  []listOffsetsResponseTopic
}

func (r *ListOffsetsResponse) key() apiKey        { return apiKeyListOffsets }
func (r *ListOffsetsResponse) version() int16     { return r.Version }
func (r *ListOffsetsResponse) setVersion(v int16) { r.Version = v }

func (r *ListOffsetsResponse) encode(pe packetEncoder) error {
	if err := pe.putArrayLength(len(r.Topics)); err != nil {
		return err
	}
	for i := range r.Topics {
		if err := r.Topics[i].encode(pe, r.Version); err != nil {
			return err
		}
	}
	return nil
}

func (r *ListOffsetsResponse) decode(pd packetDecoder, version int16) error {
	r.Version = version
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Topics = make([]listOffsetsResponseTopic, n)
	for i := range r.Topics {
		if err := r.Topics[i].decode(pd, version); err != nil {
			return err
		}
	}
	return nil
}

// GetBlock returns the resolved offset for (topic,partition) regardless of
// which wire version produced it.
func (r *ListOffsetsResponse) GetBlock(topic string, partition int32) *listOffsetsResponsePartition {
	for i := range r.Topics {
		if r.Topics[i].Topic != topic {
			continue
		}
		for j := range r.Topics[i].Partitions {
			if r.Topics[i].Partitions[j].Partition == partition {
				return &r.Topics[i].Partitions[j]
			}
		}
	}
	return nil
}

// ResolvedOffset returns the single offset value regardless of version
// shape (v0's Offsets[0] or v1's Offset).
func (p *listOffsetsResponsePartition) ResolvedOffset() int64 {
	if len(p.Offsets) > 0 {
		return p.Offsets[0]
	}
	return p.Offset
}
