package kafka

// MetadataRequest (API key 3, versions 0-2) asks the broker for cluster
// topology: known brokers, and the partitions/leaders of the requested
// topics (or every topic, if Topics is nil).
type MetadataRequest struct {
	Version int16
	Topics  []string // nil requests all topics
}

func (r *MetadataRequest) key() apiKey      { return apiKeyMetadata }
func (r *MetadataRequest) version() int16   { return r.Version }
func (r *MetadataRequest) setVersion(v int16) { r.Version = v }

func (r *MetadataRequest) encode(pe packetEncoder) error {
	if r.Topics == nil {
		return pe.putArrayLength(-1) // -1 requests every topic on versions >= 1
	}
	return pe.putStringArray(r.Topics)
}

func (r *MetadataRequest) decode(pd packetDecoder, version int16) error {
	r.Version = version
	topics, err := pd.getStringArray()
	if err != nil {
		return err
	}
	r.Topics = topics
	return nil
}

type metadataBroker struct {
	NodeID int32
	Host   string
	Port   int32
	Rack   *string // versions >= 1
}

func (b *metadataBroker) encode(pe packetEncoder, version int16) error {
	pe.putInt32(b.NodeID)
	if err := pe.putString(b.Host); err != nil {
		return err
	}
	pe.putInt32(b.Port)
	if version >= 1 {
		return pe.putNullableString(b.Rack)
	}
	return nil
}

func (b *metadataBroker) decode(pd packetDecoder, version int16) (err error) {
	if b.NodeID, err = pd.getInt32(); err != nil {
		return err
	}
	if b.Host, err = pd.getString(); err != nil {
		return err
	}
	if b.Port, err = pd.getInt32(); err != nil {
		return err
	}
	if version >= 1 {
		if b.Rack, err = pd.getNullableString(); err != nil {
			return err
		}
	}
	return nil
}

type metadataPartition struct {
	ErrorCode int16
	ID        int32
	Leader    int32
	Replicas  []int32
	ISR       []int32
}

func (p *metadataPartition) encode(pe packetEncoder) error {
	pe.putInt16(p.ErrorCode)
	pe.putInt32(p.ID)
	pe.putInt32(p.Leader)
	if err := pe.putInt32Array(p.Replicas); err != nil {
		return err
	}
	return pe.putInt32Array(p.ISR)
}

func (p *metadataPartition) decode(pd packetDecoder) (err error) {
	if p.ErrorCode, err = pd.getInt16(); err != nil {
		return err
	}
	if p.ID, err = pd.getInt32(); err != nil {
		return err
	}
	if p.Leader, err = pd.getInt32(); err != nil {
		return err
	}
	if p.Replicas, err = pd.getInt32Array(); err != nil {
		return err
	}
	if p.ISR, err = pd.getInt32Array(); err != nil {
		return err
	}
	return nil
}

type metadataTopic struct {
	ErrorCode  int16
	Name       string
	Partitions []metadataPartition
}

func (t *metadataTopic) encode(pe packetEncoder) error {
	pe.putInt16(t.ErrorCode)
	if err := pe.putString(t.Name); err != nil {
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

func (t *metadataTopic) decode(pd packetDecoder) (err error) {
	if t.ErrorCode, err = pd.getInt16(); err != nil {
		return err
	}
	if t.Name, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	t.Partitions = make([]metadataPartition, n)
	for i := range t.Partitions {
		if err := t.Partitions[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// MetadataResponse is the broker's cluster topology snapshot (§3, §4.3).
// toMetadata flattens it into the immutable *Metadata the client publishes.
type MetadataResponse struct {
	Version       int16
	ThrottleTime  int32 // version >= 2
	Brokers       []metadataBroker
	ControllerID  int32 // version >= 1, -1 if unknown
	Topics        []metadataTopic
}

func (r *MetadataResponse) key() apiKey        { return apiKeyMetadata }
func (r *MetadataResponse) version() int16     { return r.Version }
func (r *MetadataResponse) setVersion(v int16) { r.Version = v }

func (r *MetadataResponse) encode(pe packetEncoder) error {
	if r.Version >= 2 {
		pe.putInt32(r.ThrottleTime)
	}
	if err := pe.putArrayLength(len(r.Brokers)); err != nil {
		return err
	}
	for i := range r.Brokers {
		if err := r.Brokers[i].encode(pe, r.Version); err != nil {
			return err
		}
	}
	if r.Version >= 1 {
		pe.putInt32(r.ControllerID)
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

func (r *MetadataResponse) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	if version >= 2 {
		if r.ThrottleTime, err = pd.getInt32(); err != nil {
			return err
		}
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Brokers = make([]metadataBroker, n)
	for i := range r.Brokers {
		if err := r.Brokers[i].decode(pd, version); err != nil {
			return err
		}
	}
	if version >= 1 {
		if r.ControllerID, err = pd.getInt32(); err != nil {
			return err
		}
	} else {
		r.ControllerID = -1
	}
	n, err = pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Topics = make([]metadataTopic, n)
	for i := range r.Topics {
		if err := r.Topics[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// toMetadata flattens a decoded MetadataResponse into the immutable snapshot
// type the rest of the client operates on.
func (r *MetadataResponse) toMetadata() *Metadata {
	brokers := make([]BrokerInfo, len(r.Brokers))
	for i, b := range r.Brokers {
		rack := ""
		if b.Rack != nil {
			rack = *b.Rack
		}
		brokers[i] = BrokerInfo{ID: BrokerID(b.NodeID), Host: b.Host, Port: b.Port, Rack: rack}
	}
	topics := make([]TopicInfo, len(r.Topics))
	for i, t := range r.Topics {
		partitions := make([]PartitionInfo, len(t.Partitions))
		for j, p := range t.Partitions {
			replicas := make([]BrokerID, len(p.Replicas))
			for k, rep := range p.Replicas {
				replicas[k] = BrokerID(rep)
			}
			isr := make([]BrokerID, len(p.ISR))
			for k, s := range p.ISR {
				isr[k] = BrokerID(s)
			}
			leader := BrokerID(p.Leader)
			if p.Leader < 0 {
				leader = -1
			}
			partitions[j] = PartitionInfo{
				Partition: p.ID,
				Leader:    leader,
				Replicas:  replicas,
				ISR:       isr,
				Err:       KError(p.ErrorCode),
			}
		}
		topics[i] = TopicInfo{Name: t.Name, Partitions: partitions, Err: KError(t.ErrorCode)}
	}
	var controllerID BrokerID
	if r.ControllerID > 0 {
		controllerID = BrokerID(r.ControllerID)
	}
	return newMetadata(brokers, topics, controllerID)
}
