package kafka

// DescribeGroupsRequest (API key 15, version 0) asks a group's coordinator
// for its membership and state, used mainly by operational tooling rather
// than the steady-state client (§4.1).
type DescribeGroupsRequest struct {
	Version  int16
	GroupIDs []string
}

func (r *DescribeGroupsRequest) key() apiKey        { return apiKeyDescribeGroups }
func (r *DescribeGroupsRequest) version() int16     { return r.Version }
func (r *DescribeGroupsRequest) setVersion(v int16) { r.Version = v }

func (r *DescribeGroupsRequest) encode(pe packetEncoder) error {
	return pe.putStringArray(r.GroupIDs)
}

func (r *DescribeGroupsRequest) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	r.GroupIDs, err = pd.getStringArray()
	return err
}

type describeGroupsResponseMember struct {
	MemberID         string
	ClientID         string
	ClientHost       string
	MemberMetadata   []byte
	MemberAssignment []byte
}

func (m *describeGroupsResponseMember) encode(pe packetEncoder) error {
	if err := pe.putString(m.MemberID); err != nil {
		return err
	}
	if err := pe.putString(m.ClientID); err != nil {
		return err
	}
	if err := pe.putString(m.ClientHost); err != nil {
		return err
	}
	if err := pe.putBytes(m.MemberMetadata); err != nil {
		return err
	}
	return pe.putBytes(m.MemberAssignment)
}

func (m *describeGroupsResponseMember) decode(pd packetDecoder) (err error) {
	if m.MemberID, err = pd.getString(); err != nil {
		return err
	}
	if m.ClientID, err = pd.getString(); err != nil {
		return err
	}
	if m.ClientHost, err = pd.getString(); err != nil {
		return err
	}
	if m.MemberMetadata, err = pd.getBytes(); err != nil {
		return err
	}
	m.MemberAssignment, err = pd.getBytes()
	return err
}

type describeGroupsResponseGroup struct {
	Err          KError
	GroupID      string
	State        string
	ProtocolType string
	Protocol     string
	Members      []describeGroupsResponseMember
}

func (g *describeGroupsResponseGroup) encode(pe packetEncoder) error {
	pe.putInt16(int16(g.Err))
	if err := pe.putString(g.GroupID); err != nil {
		return err
	}
	if err := pe.putString(g.State); err != nil {
		return err
	}
	if err := pe.putString(g.ProtocolType); err != nil {
		return err
	}
	if err := pe.putString(g.Protocol); err != nil {
		return err
	}
	if err := pe.putArrayLength(len(g.Members)); err != nil {
		return err
	}
	for i := range g.Members {
		if err := g.Members[i].encode(pe); err != nil {
			return err
		}
	}
	return nil
}

func (g *describeGroupsResponseGroup) decode(pd packetDecoder) error {
	ec, err := pd.getInt16()
	if err != nil {
		return err
	}
	g.Err = KError(ec)
	if g.GroupID, err = pd.getString(); err != nil {
		return err
	}
	if g.State, err = pd.getString(); err != nil {
		return err
	}
	if g.ProtocolType, err = pd.getString(); err != nil {
		return err
	}
	if g.Protocol, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	g.Members = make([]describeGroupsResponseMember, n)
	for i := range g.Members {
		if err := g.Members[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// DescribeGroupsResponse reports each requested group's membership.
type DescribeGroupsResponse struct {
	Version int16
	Groups  []describeGroupsResponseGroup
}

func (r *DescribeGroupsResponse) key() apiKey        { return apiKeyDescribeGroups }
func (r *DescribeGroupsResponse) version() int16     { return r.Version }
func (r *DescribeGroupsResponse) setVersion(v int16) { r.Version = v }

func (r *DescribeGroupsResponse) encode(pe packetEncoder) error {
	if err := pe.putArrayLength(len(r.Groups)); err != nil {
		return err
	}
	for i := range r.Groups {
		if err := r.Groups[i].encode(pe); err != nil {
			return err
		}
	}
	return nil
}

func (r *DescribeGroupsResponse) decode(pd packetDecoder, version int16) error {
	r.Version = version
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Groups = make([]describeGroupsResponseGroup, n)
	for i := range r.Groups {
		if err := r.Groups[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}
