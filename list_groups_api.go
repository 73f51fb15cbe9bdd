package kafka

// ListGroupsRequest (API key 16, version 0) has no body.
type ListGroupsRequest struct {
	Version int16
}

func (r *ListGroupsRequest) key() apiKey          { return apiKeyListGroups }
func (r *ListGroupsRequest) version() int16       { return r.Version }
func (r *ListGroupsRequest) setVersion(v int16)   { r.Version = v }
func (r *ListGroupsRequest) encode(pe packetEncoder) error { return nil }
func (r *ListGroupsRequest) decode(pd packetDecoder, version int16) error {
	r.Version = version
	return nil
}

type listGroupsResponseGroup struct {
	GroupID      string
	ProtocolType string
}

func (g *listGroupsResponseGroup) encode(pe packetEncoder) error {
	if err := pe.putString(g.GroupID); err != nil {
		return err
	}
	return pe.putString(g.ProtocolType)
}

func (g *listGroupsResponseGroup) decode(pd packetDecoder) (err error) {
	if g.GroupID, err = pd.getString(); err != nil {
		return err
	}
	g.ProtocolType, err = pd.getString()
	return err
}

// ListGroupsResponse enumerates every consumer group known to the broker.
type ListGroupsResponse struct {
	Version int16
	Err     KError
	Groups  []listGroupsResponseGroup
}

func (r *ListGroupsResponse) key() apiKey        { return apiKeyListGroups }
func (r *ListGroupsResponse) version() int16     { return r.Version }
func (r *ListGroupsResponse) setVersion(v int16) { r.Version = v }

func (r *ListGroupsResponse) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.Err))
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

func (r *ListGroupsResponse) decode(pd packetDecoder, version int16) error {
	r.Version = version
	ec, err := pd.getInt16()
	if err != nil {
		return err
	}
	r.Err = KError(ec)
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Groups = make([]listGroupsResponseGroup, n)
	for i := range r.Groups {
		if err := r.Groups[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}
