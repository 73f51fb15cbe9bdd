package kafka

// fetchRequestPartition is one partition block of a Fetch request (§4.7):
// fetch_offset plus the per-partition byte cap.
type fetchRequestPartition struct {
	Partition  int32
	FetchOffset int64
	MaxBytes   int32
}

func (p *fetchRequestPartition) encode(pe packetEncoder) error {
	pe.putInt32(p.Partition)
	pe.putInt64(p.FetchOffset)
	pe.putInt32(p.MaxBytes)
	return nil
}

func (p *fetchRequestPartition) decode(pd packetDecoder) (err error) {
	if p.Partition, err = pd.getInt32(); err != nil {
		return err
	}
	if p.FetchOffset, err = pd.getInt64(); err != nil {
		return err
	}
	if p.MaxBytes, err = pd.getInt32(); err != nil {
		return err
	}
	return nil
}

type fetchRequestTopic struct {
	Topic      string
	Partitions []fetchRequestPartition
}

func (t *fetchRequestTopic) encode(pe packetEncoder) error {
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

func (t *fetchRequestTopic) decode(pd packetDecoder) error {
	var err error
	if t.Topic, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	t.Partitions = make([]fetchRequestPartition, n)
	for i := range t.Partitions {
		if err := t.Partitions[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// FetchRequest (API key 1, versions 0-3) requests new records for a set of
// partitions, grouped one request per leader broker (§4.7).
type FetchRequest struct {
	Version     int16
	ReplicaID   int32 // always -1: this client is never a follower replica
	MaxWaitTime int32 // milliseconds
	MinBytes    int32
	MaxBytes    int32 // version >= 3
	Topics      []fetchRequestTopic
}

func (r *FetchRequest) key() apiKey        { return apiKeyFetch }
func (r *FetchRequest) version() int16     { return r.Version }
func (r *FetchRequest) setVersion(v int16) { r.Version = v }

func (r *FetchRequest) encode(pe packetEncoder) error {
	pe.putInt32(-1)
	pe.putInt32(r.MaxWaitTime)
	pe.putInt32(r.MinBytes)
	if r.Version >= 3 {
		pe.putInt32(r.MaxBytes)
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

func (r *FetchRequest) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	if r.ReplicaID, err = pd.getInt32(); err != nil {
		return err
	}
	if r.MaxWaitTime, err = pd.getInt32(); err != nil {
		return err
	}
	if r.MinBytes, err = pd.getInt32(); err != nil {
		return err
	}
	if version >= 3 {
		if r.MaxBytes, err = pd.getInt32(); err != nil {
			return err
		}
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Topics = make([]fetchRequestTopic, n)
	for i := range r.Topics {
		if err := r.Topics[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// AddBlock registers a partition to fetch, creating its topic entry on first
// use.
func (r *FetchRequest) AddBlock(topic string, partition int32, fetchOffset int64, maxBytes int32) {
	for i := range r.Topics {
		if r.Topics[i].Topic == topic {
			r.Topics[i].Partitions = append(r.Topics[i].Partitions, fetchRequestPartition{partition, fetchOffset, maxBytes})
			return
		}
	}
	r.Topics = append(r.Topics, fetchRequestTopic{
		Topic:      topic,
		Partitions: []fetchRequestPartition{{partition, fetchOffset, maxBytes}},
	})
}

type fetchResponsePartition struct {
	Partition    int32
	Err          KError
	HighWatermark int64
	Set          *MessageSet
}

func (p *fetchResponsePartition) decode(pd packetDecoder) error {
	rd, ok := pd.(*realDecoder)
	if !ok {
		return PacketDecodingError{"fetch response partition decode requires a realDecoder"}
	}
	var err error
	if p.Partition, err = rd.getInt32(); err != nil {
		return err
	}
	ec, err := rd.getInt16()
	if err != nil {
		return err
	}
	p.Err = KError(ec)
	if p.HighWatermark, err = rd.getInt64(); err != nil {
		return err
	}
	size, err := rd.getInt32()
	if err != nil {
		return err
	}
	if size < 0 {
		return PacketDecodingError{"negative message set size"}
	}
	if rd.remaining() < int(size) {
		return ErrInsufficientData
	}
	raw, err := rd.getRawBytes(int(size))
	if err != nil {
		return err
	}
	p.Set = &MessageSet{}
	inner := &realDecoder{raw: raw}
	return p.Set.decodeMessages(inner)
}

func (p *fetchResponsePartition) encode(pe packetEncoder) error {
	pe.putInt32(p.Partition)
	pe.putInt16(int16(p.Err))
	pe.putInt64(p.HighWatermark)
	pe.push(&messageSizeField{})
	if p.Set != nil {
		if err := p.Set.encode(pe); err != nil {
			return err
		}
	}
	return pe.pop()
}

type fetchResponseTopic struct {
	Topic      string
	Partitions []fetchResponsePartition
}

func (t *fetchResponseTopic) decode(pd packetDecoder) error {
	var err error
	if t.Topic, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	t.Partitions = make([]fetchResponsePartition, n)
	for i := range t.Partitions {
		if err := t.Partitions[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

func (t *fetchResponseTopic) encode(pe packetEncoder) error {
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

// FetchResponse carries the decoded record stream for every requested
// partition (§4.7). An empty Set with no error after max_wait_time elapses
// is a normal "no new data" response (§8 scenario 4), not a failure.
type FetchResponse struct {
	Version      int16
	ThrottleTime int32 // version >= 1
	Topics       []fetchResponseTopic
}

func (r *FetchResponse) key() apiKey        { return apiKeyFetch }
func (r *FetchResponse) version() int16     { return r.Version }
func (r *FetchResponse) setVersion(v int16) { r.Version = v }

func (r *FetchResponse) encode(pe packetEncoder) error {
	if r.Version >= 1 {
		pe.putInt32(r.ThrottleTime)
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

func (r *FetchResponse) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	if version >= 1 {
		if r.ThrottleTime, err = pd.getInt32(); err != nil {
			return err
		}
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Topics = make([]fetchResponseTopic, n)
	for i := range r.Topics {
		if err := r.Topics[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// GetBlock returns the decoded partition block for (topic,partition).
func (r *FetchResponse) GetBlock(topic string, partition int32) *fetchResponsePartition {
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
