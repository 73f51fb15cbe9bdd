package kafka

type offsetCommitRequestPartition struct {
	Partition int32
	Offset    int64
	Timestamp int64 // version 1 only
	Metadata  *string
}

func (p *offsetCommitRequestPartition) encode(pe packetEncoder, version int16) error {
	pe.putInt32(p.Partition)
	pe.putInt64(p.Offset)
	if version == 1 {
		pe.putInt64(p.Timestamp)
	}
	return pe.putNullableString(p.Metadata)
}

func (p *offsetCommitRequestPartition) decode(pd packetDecoder, version int16) (err error) {
	if p.Partition, err = pd.getInt32(); err != nil {
		return err
	}
	if p.Offset, err = pd.getInt64(); err != nil {
		return err
	}
	if version == 1 {
		if p.Timestamp, err = pd.getInt64(); err != nil {
			return err
		}
	}
	if p.Metadata, err = pd.getNullableString(); err != nil {
		return err
	}
	return nil
}

type offsetCommitRequestTopic struct {
	Topic      string
	Partitions []offsetCommitRequestPartition
}

func (t *offsetCommitRequestTopic) encode(pe packetEncoder, version int16) error {
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

func (t *offsetCommitRequestTopic) decode(pd packetDecoder, version int16) error {
	var err error
	if t.Topic, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	t.Partitions = make([]offsetCommitRequestPartition, n)
	for i := range t.Partitions {
		if err := t.Partitions[i].decode(pd, version); err != nil {
			return err
		}
	}
	return nil
}

// OffsetCommitRequest (API key 8, versions 0-2) persists a consumer group's
// position for one or more partitions (§4.4, §4.6).
type OffsetCommitRequest struct {
	Version       int16
	GroupID       string
	GenerationID  int32  // version >= 1
	MemberID      string // version >= 1
	RetentionTime int64  // version == 2, -1 for broker default
	Topics        []offsetCommitRequestTopic
}

func (r *OffsetCommitRequest) key() apiKey        { return apiKeyOffsetCommit }
func (r *OffsetCommitRequest) version() int16     { return r.Version }
func (r *OffsetCommitRequest) setVersion(v int16) { r.Version = v }

func (r *OffsetCommitRequest) encode(pe packetEncoder) error {
	if err := pe.putString(r.GroupID); err != nil {
		return err
	}
	if r.Version >= 1 {
		pe.putInt32(r.GenerationID)
		if err := pe.putString(r.MemberID); err != nil {
			return err
		}
	}
	if r.Version == 2 {
		pe.putInt64(r.RetentionTime)
	}
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

func (r *OffsetCommitRequest) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	if r.GroupID, err = pd.getString(); err != nil {
		return err
	}
	if version >= 1 {
		if r.GenerationID, err = pd.getInt32(); err != nil {
			return err
		}
		if r.MemberID, err = pd.getString(); err != nil {
			return err
		}
	}
	if version == 2 {
		if r.RetentionTime, err = pd.getInt64(); err != nil {
			return err
		}
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Topics = make([]offsetCommitRequestTopic, n)
	for i := range r.Topics {
		if err := r.Topics[i].decode(pd, version); err != nil {
			return err
		}
	}
	return nil
}

// AddBlock registers a partition's offset for commit.
func (r *OffsetCommitRequest) AddBlock(topic string, partition int32, offset int64, timestamp int64, metadata string) {
	meta := &metadata
	for i := range r.Topics {
		if r.Topics[i].Topic == topic {
			r.Topics[i].Partitions = append(r.Topics[i].Partitions, offsetCommitRequestPartition{partition, offset, timestamp, meta})
			return
		}
	}
	r.Topics = append(r.Topics, offsetCommitRequestTopic{
		Topic:      topic,
		Partitions: []offsetCommitRequestPartition{{partition, offset, timestamp, meta}},
	})
}

type offsetCommitResponsePartition struct {
	Partition int32
	Err       KError
}

func (p *offsetCommitResponsePartition) encode(pe packetEncoder) error {
	pe.putInt32(p.Partition)
	pe.putInt16(int16(p.Err))
	return nil
}

func (p *offsetCommitResponsePartition) decode(pd packetDecoder) (err error) {
	if p.Partition, err = pd.getInt32(); err != nil {
		return err
	}
	ec, err := pd.getInt16()
	if err != nil {
		return err
	}
	p.Err = KError(ec)
	return nil
}

type offsetCommitResponseTopic struct {
	Topic      string
	Partitions []offsetCommitResponsePartition
}

func (t *offsetCommitResponseTopic) encode(pe packetEncoder) error {
	if err := pe.putString(t.Topic); err != nil {
		return err
	}
	if err := pe.putArrayLength(len(t.Partitions)); err != nil {
		return err
	}
	for i := range t.Partitions {
		if err := t.Partitions[i].encode(pe); err != nil {
			return err
		}
	}
	return nil
}

func (t *offsetCommitResponseTopic) decode(pd packetDecoder) error {
	var err error
	if t.Topic, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	t.Partitions = make([]offsetCommitResponsePartition, n)
	for i := range t.Partitions {
		if err := t.Partitions[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// OffsetCommitResponse reports the per-partition result of a commit (§4.4).
type OffsetCommitResponse struct {
	Version int16
	Topics  []offsetCommitResponseTopic
}

func (r *OffsetCommitResponse) key() apiKey        { return apiKeyOffsetCommit }
func (r *OffsetCommitResponse) version() int16     { return r.Version }
func (r *OffsetCommitResponse) setVersion(v int16) { r.Version = v }

func (r *OffsetCommitResponse) encode(pe packetEncoder) error {
	if err := pe.putArrayLength(len(r.Topics)); err != nil {
		return err
	}
	for i := range r.Topics {
		if err := r.Topics[i].encode(pe); err != nil {
			return err
		}
	}
	return nil
}

func (r *OffsetCommitResponse) decode(pd packetDecoder, version int16) error {
	r.Version = version
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Topics = make([]offsetCommitResponseTopic, n)
	for i := range r.Topics {
		if err := r.Topics[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}
