package kafka

import "sort"

// ConsumerGroupMemberMetadata is the serialized_subscription a member
// advertises in JoinGroup's group_protocols (§4.5, §4.6 step 2): a topic
// list plus opaque user_data the assignor preserves verbatim but never
// interprets.
type ConsumerGroupMemberMetadata struct {
	Version  int16
	Topics   []string
	UserData []byte
}

func (m *ConsumerGroupMemberMetadata) encode(pe packetEncoder) error {
	pe.putInt16(m.Version)
	if err := pe.putStringArray(m.Topics); err != nil {
		return err
	}
	return pe.putBytes(m.UserData)
}

func (m *ConsumerGroupMemberMetadata) decode(pd packetDecoder) (err error) {
	if m.Version, err = pd.getInt16(); err != nil {
		return err
	}
	if m.Topics, err = pd.getStringArray(); err != nil {
		return err
	}
	m.UserData, err = pd.getBytes()
	return err
}

// encodeSubscription serializes m for use as a JoinGroupRequest protocol's
// metadata bytes.
func encodeSubscription(m *ConsumerGroupMemberMetadata) ([]byte, error) {
	return encode(wrapMemberMetadata{m}, 0)
}

// decodeSubscription parses a member's serialized_subscription bytes, as
// seen by the leader computing an assignment (§4.6 step 3).
func decodeSubscription(raw []byte) (*ConsumerGroupMemberMetadata, error) {
	m := &ConsumerGroupMemberMetadata{}
	if err := decode(raw, wrapMemberMetadata{m}, 0); err != nil {
		return nil, err
	}
	return m, nil
}

// wrapMemberMetadata adapts ConsumerGroupMemberMetadata to protocolBody so
// it can go through the shared encode/decode two-pass helpers without
// itself needing a key/version (it is never sent as a top-level request).
type wrapMemberMetadata struct {
	m *ConsumerGroupMemberMetadata
}

func (w wrapMemberMetadata) key() apiKey          { return 0 }
func (w wrapMemberMetadata) version() int16       { return w.m.Version }
func (w wrapMemberMetadata) setVersion(v int16)   { w.m.Version = v }
func (w wrapMemberMetadata) encode(pe packetEncoder) error { return w.m.encode(pe) }
func (w wrapMemberMetadata) decode(pd packetDecoder, version int16) error {
	w.m.Version = version
	return w.m.decode(pd)
}

// ConsumerGroupMemberAssignment is the serialized Assignment a member
// receives back from SyncGroup (§4.6 step 4-5): the partitions it owns per
// topic, plus the leader's opaque user_data carried through unchanged.
type ConsumerGroupMemberAssignment struct {
	Version    int16
	Topics     map[string][]int32
	UserData   []byte
}

func (a *ConsumerGroupMemberAssignment) encode(pe packetEncoder) error {
	pe.putInt16(a.Version)
	if err := pe.putArrayLength(len(a.Topics)); err != nil {
		return err
	}
	names := make([]string, 0, len(a.Topics))
	for name := range a.Topics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := pe.putString(name); err != nil {
			return err
		}
		if err := pe.putInt32Array(a.Topics[name]); err != nil {
			return err
		}
	}
	return pe.putBytes(a.UserData)
}

func (a *ConsumerGroupMemberAssignment) decode(pd packetDecoder) error {
	var err error
	if a.Version, err = pd.getInt16(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	// An open question resolution (SPEC_FULL.md) treats zero topics here
	// as a valid, empty assignment rather than an error; decodeAssignment
	// handles a zero-length encoded assignment the same way.
	a.Topics = make(map[string][]int32, n)
	for i := 0; i < n; i++ {
		name, err := pd.getString()
		if err != nil {
			return err
		}
		parts, err := pd.getInt32Array()
		if err != nil {
			return err
		}
		a.Topics[name] = parts
	}
	a.UserData, err = pd.getBytes()
	return err
}

func encodeAssignment(a *ConsumerGroupMemberAssignment) ([]byte, error) {
	return encode(wrapAssignment{a}, 0)
}

func decodeAssignment(raw []byte) (*ConsumerGroupMemberAssignment, error) {
	a := &ConsumerGroupMemberAssignment{}
	if len(raw) == 0 {
		a.Topics = make(map[string][]int32)
		return a, nil
	}
	if err := decode(raw, wrapAssignment{a}, 0); err != nil {
		return nil, err
	}
	return a, nil
}

type wrapAssignment struct {
	a *ConsumerGroupMemberAssignment
}

func (w wrapAssignment) key() apiKey          { return 0 }
func (w wrapAssignment) version() int16       { return w.a.Version }
func (w wrapAssignment) setVersion(v int16)   { w.a.Version = v }
func (w wrapAssignment) encode(pe packetEncoder) error { return w.a.encode(pe) }
func (w wrapAssignment) decode(pd packetDecoder, version int16) error {
	w.a.Version = version
	return w.a.decode(pd)
}
