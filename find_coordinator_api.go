package kafka

// FindCoordinatorRequest (API key 10, version 0) asks any broker which
// broker is the coordinator for a consumer group (§4.6 step 1).
type FindCoordinatorRequest struct {
	Version int16
	GroupID string
}

func (r *FindCoordinatorRequest) key() apiKey        { return apiKeyFindCoordinator }
func (r *FindCoordinatorRequest) version() int16     { return r.Version }
func (r *FindCoordinatorRequest) setVersion(v int16) { r.Version = v }

func (r *FindCoordinatorRequest) encode(pe packetEncoder) error {
	return pe.putString(r.GroupID)
}

func (r *FindCoordinatorRequest) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	r.GroupID, err = pd.getString()
	return err
}

// FindCoordinatorResponse names the coordinator broker for the requested
// group.
type FindCoordinatorResponse struct {
	Version     int16
	Err         KError
	CoordinatorID BrokerID
	Host        string
	Port        int32
}

func (r *FindCoordinatorResponse) key() apiKey        { return apiKeyFindCoordinator }
func (r *FindCoordinatorResponse) version() int16     { return r.Version }
func (r *FindCoordinatorResponse) setVersion(v int16) { r.Version = v }

func (r *FindCoordinatorResponse) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.Err))
	pe.putInt32(int32(r.CoordinatorID))
	if err := pe.putString(r.Host); err != nil {
		return err
	}
	pe.putInt32(r.Port)
	return nil
}

func (r *FindCoordinatorResponse) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	ec, err := pd.getInt16()
	if err != nil {
		return err
	}
	r.Err = KError(ec)
	id, err := pd.getInt32()
	if err != nil {
		return err
	}
	r.CoordinatorID = BrokerID(id)
	if r.Host, err = pd.getString(); err != nil {
		return err
	}
	if r.Port, err = pd.getInt32(); err != nil {
		return err
	}
	return nil
}
