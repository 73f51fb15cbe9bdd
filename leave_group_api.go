package kafka

// LeaveGroupRequest (API key 13, version 0) tells the coordinator this
// member is leaving the group intentionally (§4.6).
type LeaveGroupRequest struct {
	Version  int16
	GroupID  string
	MemberID string
}

func (r *LeaveGroupRequest) key() apiKey        { return apiKeyLeaveGroup }
func (r *LeaveGroupRequest) version() int16     { return r.Version }
func (r *LeaveGroupRequest) setVersion(v int16) { r.Version = v }

func (r *LeaveGroupRequest) encode(pe packetEncoder) error {
	if err := pe.putString(r.GroupID); err != nil {
		return err
	}
	return pe.putString(r.MemberID)
}

func (r *LeaveGroupRequest) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	if r.GroupID, err = pd.getString(); err != nil {
		return err
	}
	r.MemberID, err = pd.getString()
	return err
}

// LeaveGroupResponse reports whether the departure was accepted.
type LeaveGroupResponse struct {
	Version int16
	Err     KError
}

func (r *LeaveGroupResponse) key() apiKey        { return apiKeyLeaveGroup }
func (r *LeaveGroupResponse) version() int16     { return r.Version }
func (r *LeaveGroupResponse) setVersion(v int16) { r.Version = v }

func (r *LeaveGroupResponse) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.Err))
	return nil
}

func (r *LeaveGroupResponse) decode(pd packetDecoder, version int16) error {
	r.Version = version
	ec, err := pd.getInt16()
	if err != nil {
		return err
	}
	r.Err = KError(ec)
	return nil
}
