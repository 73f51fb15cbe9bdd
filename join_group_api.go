package kafka

// groupProtocol is one {name, serialized_subscription} entry a member
// advertises to the coordinator during JoinGroup (§4.6 step 2).
type groupProtocol struct {
	Name     string
	Metadata []byte
}

func (p *groupProtocol) encode(pe packetEncoder) error {
	if err := pe.putString(p.Name); err != nil {
		return err
	}
	return pe.putBytes(p.Metadata)
}

func (p *groupProtocol) decode(pd packetDecoder) (err error) {
	if p.Name, err = pd.getString(); err != nil {
		return err
	}
	p.Metadata, err = pd.getBytes()
	return err
}

// JoinGroupRequest (API key 11, versions 0-1) is how a member enters or
// re-enters a consumer group (§4.6 step 2). MemberID is empty on first
// join; the broker assigns one in the response.
type JoinGroupRequest struct {
	Version          int16
	GroupID          string
	SessionTimeout   int32
	RebalanceTimeout int32 // version >= 1
	MemberID         string
	ProtocolType     string
	GroupProtocols   []groupProtocol
}

func (r *JoinGroupRequest) key() apiKey        { return apiKeyJoinGroup }
func (r *JoinGroupRequest) version() int16     { return r.Version }
func (r *JoinGroupRequest) setVersion(v int16) { r.Version = v }

func (r *JoinGroupRequest) encode(pe packetEncoder) error {
	if err := pe.putString(r.GroupID); err != nil {
		return err
	}
	pe.putInt32(r.SessionTimeout)
	if r.Version >= 1 {
		pe.putInt32(r.RebalanceTimeout)
	}
	if err := pe.putString(r.MemberID); err != nil {
		return err
	}
	if err := pe.putString(r.ProtocolType); err != nil {
		return err
	}
	if err := pe.putArrayLength(len(r.GroupProtocols)); err != nil {
		return err
	}
	for i := range r.GroupProtocols {
		if err := r.GroupProtocols[i].encode(pe); err != nil {
			return err
		}
	}
	return nil
}

func (r *JoinGroupRequest) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	if r.GroupID, err = pd.getString(); err != nil {
		return err
	}
	if r.SessionTimeout, err = pd.getInt32(); err != nil {
		return err
	}
	if version >= 1 {
		if r.RebalanceTimeout, err = pd.getInt32(); err != nil {
			return err
		}
	}
	if r.MemberID, err = pd.getString(); err != nil {
		return err
	}
	if r.ProtocolType, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.GroupProtocols = make([]groupProtocol, n)
	for i := range r.GroupProtocols {
		if err := r.GroupProtocols[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// AddGroupProtocolMetadata registers one assignor's serialized subscription.
func (r *JoinGroupRequest) AddGroupProtocolMetadata(name string, metadata []byte) {
	r.GroupProtocols = append(r.GroupProtocols, groupProtocol{Name: name, Metadata: metadata})
}

// joinGroupResponseMember is one member's serialized subscription as seen
// by the group leader, used to compute the assignment (§4.6 step 3).
type joinGroupResponseMember struct {
	MemberID string
	Metadata []byte
}

func (m *joinGroupResponseMember) encode(pe packetEncoder) error {
	if err := pe.putString(m.MemberID); err != nil {
		return err
	}
	return pe.putBytes(m.Metadata)
}

func (m *joinGroupResponseMember) decode(pd packetDecoder) (err error) {
	if m.MemberID, err = pd.getString(); err != nil {
		return err
	}
	m.Metadata, err = pd.getBytes()
	return err
}

// JoinGroupResponse yields the generation, the agreed protocol, the group
// leader's id, this member's own assigned id, and — only for the leader —
// every member's serialized subscription (§4.6 step 2-3).
type JoinGroupResponse struct {
	Version      int16
	Err          KError
	GenerationID int32
	GroupProtocol string
	LeaderID     string
	MemberID     string
	Members      []joinGroupResponseMember
}

func (r *JoinGroupResponse) key() apiKey        { return apiKeyJoinGroup }
func (r *JoinGroupResponse) version() int16     { return r.Version }
func (r *JoinGroupResponse) setVersion(v int16) { r.Version = v }

func (r *JoinGroupResponse) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.Err))
	pe.putInt32(r.GenerationID)
	if err := pe.putString(r.GroupProtocol); err != nil {
		return err
	}
	if err := pe.putString(r.LeaderID); err != nil {
		return err
	}
	if err := pe.putString(r.MemberID); err != nil {
		return err
	}
	if err := pe.putArrayLength(len(r.Members)); err != nil {
		return err
	}
	for i := range r.Members {
		if err := r.Members[i].encode(pe); err != nil {
			return err
		}
	}
	return nil
}

func (r *JoinGroupResponse) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	ec, err := pd.getInt16()
	if err != nil {
		return err
	}
	r.Err = KError(ec)
	if r.GenerationID, err = pd.getInt32(); err != nil {
		return err
	}
	if r.GroupProtocol, err = pd.getString(); err != nil {
		return err
	}
	if r.LeaderID, err = pd.getString(); err != nil {
		return err
	}
	if r.MemberID, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Members = make([]joinGroupResponseMember, n)
	for i := range r.Members {
		if err := r.Members[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// IsLeader reports whether this member was elected group leader, i.e. is
// responsible for computing the assignment (§4.6 step 3).
func (r *JoinGroupResponse) IsLeader() bool {
	return r.LeaderID == r.MemberID
}
