package kafka

// syncGroupRequestAssignment is one member's computed partition assignment,
// sent only by the leader; followers send an empty assignment list (§4.6
// step 4).
type syncGroupRequestAssignment struct {
	MemberID   string
	Assignment []byte
}

func (a *syncGroupRequestAssignment) encode(pe packetEncoder) error {
	if err := pe.putString(a.MemberID); err != nil {
		return err
	}
	return pe.putBytes(a.Assignment)
}

func (a *syncGroupRequestAssignment) decode(pd packetDecoder) (err error) {
	if a.MemberID, err = pd.getString(); err != nil {
		return err
	}
	a.Assignment, err = pd.getBytes()
	return err
}

// SyncGroupRequest (API key 14, version 0) distributes the leader's computed
// assignment to every group member (§4.6 step 4).
type SyncGroupRequest struct {
	Version      int16
	GroupID      string
	GenerationID int32
	MemberID     string
	Assignments  []syncGroupRequestAssignment // non-empty only on the leader's call
}

func (r *SyncGroupRequest) key() apiKey        { return apiKeySyncGroup }
func (r *SyncGroupRequest) version() int16     { return r.Version }
func (r *SyncGroupRequest) setVersion(v int16) { r.Version = v }

func (r *SyncGroupRequest) encode(pe packetEncoder) error {
	if err := pe.putString(r.GroupID); err != nil {
		return err
	}
	pe.putInt32(r.GenerationID)
	if err := pe.putString(r.MemberID); err != nil {
		return err
	}
	if err := pe.putArrayLength(len(r.Assignments)); err != nil {
		return err
	}
	for i := range r.Assignments {
		if err := r.Assignments[i].encode(pe); err != nil {
			return err
		}
	}
	return nil
}

func (r *SyncGroupRequest) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	if r.GroupID, err = pd.getString(); err != nil {
		return err
	}
	if r.GenerationID, err = pd.getInt32(); err != nil {
		return err
	}
	if r.MemberID, err = pd.getString(); err != nil {
		return err
	}
	n, err := pd.getArrayLength()
	if err != nil {
		return err
	}
	r.Assignments = make([]syncGroupRequestAssignment, n)
	for i := range r.Assignments {
		if err := r.Assignments[i].decode(pd); err != nil {
			return err
		}
	}
	return nil
}

// AddGroupAssignment registers a member's computed assignment (leader-only).
func (r *SyncGroupRequest) AddGroupAssignment(memberID string, assignment []byte) {
	r.Assignments = append(r.Assignments, syncGroupRequestAssignment{memberID, assignment})
}

// SyncGroupResponse carries this member's own serialized assignment, as
// decided by the leader (§4.6 step 4-5). Per the open question resolution
// in SPEC_FULL.md, a zero-length MemberAssignment decodes to an assignment
// with zero topics rather than an error.
type SyncGroupResponse struct {
	Version          int16
	Err              KError
	MemberAssignment []byte
}

func (r *SyncGroupResponse) key() apiKey        { return apiKeySyncGroup }
func (r *SyncGroupResponse) version() int16     { return r.Version }
func (r *SyncGroupResponse) setVersion(v int16) { r.Version = v }

func (r *SyncGroupResponse) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.Err))
	return pe.putBytes(r.MemberAssignment)
}

func (r *SyncGroupResponse) decode(pd packetDecoder, version int16) (err error) {
	r.Version = version
	ec, err := pd.getInt16()
	if err != nil {
		return err
	}
	r.Err = KError(ec)
	r.MemberAssignment, err = pd.getBytes()
	return err
}
