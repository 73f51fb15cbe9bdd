package kafka

// HeartbeatRequest (API key 12, version 0) keeps a member's group
// membership alive between rebalances (§4.6).
type HeartbeatRequest struct {
	Version      int16
	GroupID      string
	GenerationID int32
	MemberID     string
}

func (r *HeartbeatRequest) key() apiKey        { return apiKeyHeartbeat }
func (r *HeartbeatRequest) version() int16     { return r.Version }
func (r *HeartbeatRequest) setVersion(v int16) { r.Version = v }

func (r *HeartbeatRequest) encode(pe packetEncoder) error {
	if err := pe.putString(r.GroupID); err != nil {
		return err
	}
	pe.putInt32(r.GenerationID)
	return pe.putString(r.MemberID)
}

func (r *HeartbeatRequest) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	if r.GroupID, err = pd.getString(); err != nil {
		return err
	}
	if r.GenerationID, err = pd.getInt32(); err != nil {
		return err
	}
	r.MemberID, err = pd.getString()
	return err
}

// HeartbeatResponse reports whether the heartbeat was accepted. A non-zero
// Err (RebalanceInProgress, IllegalGeneration, UnknownMemberId) mutates the
// coordinator state machine rather than surfacing to the caller (§4.6, §7).
type HeartbeatResponse struct {
	Version int16
	Err     KError
}

func (r *HeartbeatResponse) key() apiKey        { return apiKeyHeartbeat }
func (r *HeartbeatResponse) version() int16     { return r.Version }
func (r *HeartbeatResponse) setVersion(v int16) { r.Version = v }

func (r *HeartbeatResponse) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.Err))
	return nil
}

func (r *HeartbeatResponse) decode(pd packetDecoder, version int16) error {
	r.Version = version
	ec, err := pd.getInt16()
	if err != nil {
		return err
	}
	r.Err = KError(ec)
	return nil
}
