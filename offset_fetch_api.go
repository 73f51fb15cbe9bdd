package kafka

type offsetFetchRequestTopic struct {
	Topic      string
	Partitions []int32
}

func (t *offsetFetchRequestTopic) encode(pe packetEncoder) error {
	if err := pe.putString(t.Topic); err != nil {
		return err
	}
	return pe.putInt32Array(t.Partitions)
}

func (t *offsetFetchRequestTopic) decode(pd packetDecoder) error {
	var err error
	if t.Topic, err = pd.getString(); err != nil {
		return err
	}
	t.Partitions, err = pd.getInt32Array()
	return err
}

// OffsetFetchRequest (API key 9, versions 0-1) retrieves a consumer group's
// previously committed offsets (§4.4, §4.6).
type OffsetFetchRequest struct {
	Version int16
	GroupID string
	Topics  []offsetFetchRequestTopic
}

func (r *OffsetFetchRequest) key() apiKey        { return apiKeyOffsetFetch }
func (r *OffsetFetchRequest) version() int16     { return r.Version }
func (r *OffsetFetchRequest) setVersion(v int16) { r.Version = v }

func (r *OffsetFetchRequest) encode(pe packetEncoder) error {
	if err := pe.putString(r.GroupID); err != nil {
		return err
	}
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

func (r *OffsetFetchRequest) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	if r.GroupID, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Topics = make([]offsetFetchRequestTopic, n)
	for i := range r.Topics {
		if err := r.Topics[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// AddPartition registers a partition whose committed offset should be
// fetched.
func (r *OffsetFetchRequest) AddPartition(topic string, partition int32) {
	for i := range r.Topics {
		if r.Topics[i].Topic == topic {
			r.Topics[i].Partitions = append(r.Topics[i].Partitions, partition)
			return
		}
	}
	r.Topics = append(r.Topics, offsetFetchRequestTopic{Topic: topic, Partitions: []int32{partition}})
}

type offsetFetchResponsePartition struct {
	Partition int32
	Offset    int64
	Metadata  string
	Err       KError
}

func (p *offsetFetchResponsePartition) encode(pe packetEncoder) error {
	pe.putInt32(p.Partition)
	pe.putInt64(p.Offset)
	if err := pe.putString(p.Metadata); err != nil {
		return err
	}
	pe.putInt16(int16(p.Err))
	return nil
}

func (p *offsetFetchResponsePartition) decode(pd packetDecoder) (err error) {
	if p.Partition, err = pd.getInt32(); err != nil {
		return err
	}
	if p.Offset, err = pd.getInt64(); err != nil {
		return err
	}
	if p.Metadata, err = pd.getString(); err != nil {
		return err
	}
	ec, err := pd.getInt16()
	if err != nil {
		return err
	}
	p.Err = KError(ec)
	return nil
}

type offsetFetchResponseTopic struct {
	Topic      string
	Partitions []offsetFetchResponsePartition
}

func (t *offsetFetchResponseTopic) encode(pe packetEncoder) error {
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

func (t *offsetFetchResponseTopic) decode(pd packetDecoder) error {
	var err error
	if t.Topic, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	t.Partitions = make([]offsetFetchResponsePartition, n)
	for i := range t.Partitions {
		if err := t.Partitions[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// OffsetFetchResponse answers the committed offset for each requested
// partition (§4.4).
type OffsetFetchResponse struct {
	Version int16
	Topics  []offsetFetchResponseTopic
}

func (r *OffsetFetchResponse) key() apiKey        { return apiKeyOffsetFetch }
func (r *OffsetFetchResponse) version() int16     { return r.Version }
func (r *OffsetFetchResponse) setVersion(v int16) { r.Version = v }

func (r *OffsetFetchResponse) encode(pe packetEncoder) error {
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

func (r *OffsetFetchResponse) decode(pd packetDecoder, version int16) error {
	r.Version = version
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Topics = make([]offsetFetchResponseTopic, n)
	for i := range r.Topics {
		if err := r.Topics[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// GetBlock returns the committed-offset block for (topic,partition).
func (r *OffsetFetchResponse) GetBlock(topic string, partition int32) *offsetFetchResponsePartition {
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
