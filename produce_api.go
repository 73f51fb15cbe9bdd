package kafka

// producePartitionData is one partition's message set in a Produce request.
type producePartitionData struct {
	Partition int32
	Set       *MessageSet
}

func (p *producePartitionData) encode(pe packetEncoder) error {
	pe.putInt32(p.Partition)
	pe.push(&messageSizeField{})
	if err := p.Set.encode(pe); err != nil {
		return err
	}
	return pe.pop()
}

func (p *producePartitionData) decode(pd packetDecoder) error {
	rd, ok := pd.(*realDecoder)
	if !ok {
		return PacketDecodingError{"produce partition decode requires a realDecoder"}
	}
	var err error
	if p.Partition, err = rd.getInt32(); err != nil {
		return err
	}
	size, err := rd.getInt32()
	if err != nil {
		return err
	}
	raw, err := rd.getRawBytes(int(size))
	if err != nil {
		return err
	}
	p.Set = &MessageSet{}
	inner := &realDecoder{raw: raw}
	return p.Set.decodeMessages(inner)
}

type produceTopicData struct {
	Topic      string
	Partitions []producePartitionData
}

func (t *produceTopicData) encode(pe packetEncoder) error {
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

func (t *produceTopicData) decode(pd packetDecoder) error {
	var err error
	if t.Topic, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	t.Partitions = make([]producePartitionData, n)
	for i := range t.Partitions {
		if err := t.Partitions[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// ProduceRequest (API key 0, versions 0-2) appends record batches to the
// leader of one or more partitions (§6).
type ProduceRequest struct {
	Version     int16
	RequiredAcks RequiredAcks
	Timeout     int32 // milliseconds
	Topics      []produceTopicData
}

func (r *ProduceRequest) key() apiKey        { return apiKeyProduce }
func (r *ProduceRequest) version() int16     { return r.Version }
func (r *ProduceRequest) setVersion(v int16) { r.Version = v }

func (r *ProduceRequest) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.RequiredAcks))
	pe.putInt32(r.Timeout)
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

func (r *ProduceRequest) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	acks, err := pd.getInt16()
	if err != nil {
		return err
	}
	r.RequiredAcks = RequiredAcks(acks)
	if r.Timeout, err = pd.getInt32(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Topics = make([]produceTopicData, n)
	for i := range r.Topics {
		if err := r.Topics[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// AddMessage appends one record to the named topic-partition's pending
// message set, creating the set on first use.
func (r *ProduceRequest) AddMessage(topic string, partition int32, msg *Message, offset int64) {
	for i := range r.Topics {
		if r.Topics[i].Topic != topic {
			continue
		}
		for j := range r.Topics[i].Partitions {
			if r.Topics[i].Partitions[j].Partition == partition {
				r.Topics[i].Partitions[j].Set.Items = append(r.Topics[i].Partitions[j].Set.Items, MessageSetItem{Offset: offset, Message: msg})
				return
			}
		}
		r.Topics[i].Partitions = append(r.Topics[i].Partitions, producePartitionData{
			Partition: partition,
			Set:       &MessageSet{Items: []MessageSetItem{{Offset: offset, Message: msg}}},
		})
		return
	}
	r.Topics = append(r.Topics, produceTopicData{
		Topic: topic,
		Partitions: []producePartitionData{{
			Partition: partition,
			Set:       &MessageSet{Items: []MessageSetItem{{Offset: offset, Message: msg}}},
		}},
	})
}

type producePartitionResponse struct {
	Partition int32
	Err       KError
	BaseOffset int64
	LogAppendTime int64 // version >= 2, -1 if CreateTime
}

func (p *producePartitionResponse) encode(pe packetEncoder, version int16) error {
	pe.putInt32(p.Partition)
	pe.putInt16(int16(p.Err))
	pe.putInt64(p.BaseOffset)
	if version >= 2 {
		pe.putInt64(p.LogAppendTime)
	}
	return nil
}

func (p *producePartitionResponse) decode(pd packetDecoder, version int16) (err error) {
	if p.Partition, err = pd.getInt32(); err != nil {
		return err
	}
	ec, err := pd.getInt16()
	if err != nil {
		return err
	}
	p.Err = KError(ec)
	if p.BaseOffset, err = pd.getInt64(); err != nil {
		return err
	}
	if version >= 2 {
		if p.LogAppendTime, err = pd.getInt64(); err != nil {
			return err
		}
	}
	return nil
}

type produceTopicResponse struct {
	Topic      string
	Partitions []producePartitionResponse
}

func (t *produceTopicResponse) encode(pe packetEncoder, version int16) error {
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

func (t *produceTopicResponse) decode(pd packetDecoder, version int16) error {
	var err error
	if t.Topic, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	t.Partitions = make([]producePartitionResponse, n)
	for i := range t.Partitions {
		if err := t.Partitions[i].decode(pd, version); err != nil {
			return err
		}
	}
	return nil
}

// ProduceResponse is the broker's per-partition acknowledgement (§4.9).
// Version 2 responses carry an appended throttle_time_ms (§6).
type ProduceResponse struct {
	Version      int16
	Topics       []produceTopicResponse
	ThrottleTime int32 // version >= 2
}

func (r *ProduceResponse) key() apiKey        { return apiKeyProduce }
func (r *ProduceResponse) version() int16     { return r.Version }
func (r *ProduceResponse) setVersion(v int16) { r.Version = v }

func (r *ProduceResponse) encode(pe packetEncoder) error {
	if err := pe.putArrayLength(len(r.Topics)); err != nil {
		return err
	}
	for i := range r.Topics {
		if err := r.Topics[i].encode(pe, r.Version); err != nil {
			return err
		}
	}
	if r.Version >= 2 {
		pe.putInt32(r.ThrottleTime)
	}
	return nil
}

func (r *ProduceResponse) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Topics = make([]produceTopicResponse, n)
	for i := range r.Topics {
		if err := r.Topics[i].decode(pd, version); err != nil {
			return err
		}
	}
	if version >= 2 {
		if r.ThrottleTime, err = pd.getInt32(); err != nil {
			return err
		}
	}
	return nil
}

// GetBlock returns the per-partition response for (topic,partition), or nil
// if the broker didn't mention it (ErrIncompleteResponse territory).
func (r *ProduceResponse) GetBlock(topic string, partition int32) *producePartitionResponse {
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
