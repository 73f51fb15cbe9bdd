package kafka

import (
	"encoding/binary"
	"fmt"
)

// apiKey identifies a request/response shape on the wire (§4.1).
type apiKey int16

const (
	apiKeyProduce           apiKey = 0
	apiKeyFetch             apiKey = 1
	apiKeyListOffsets       apiKey = 2
	apiKeyMetadata          apiKey = 3
	apiKeyOffsetCommit      apiKey = 8
	apiKeyOffsetFetch       apiKey = 9
	apiKeyFindCoordinator   apiKey = 10
	apiKeyJoinGroup         apiKey = 11
	apiKeyHeartbeat         apiKey = 12
	apiKeyLeaveGroup        apiKey = 13
	apiKeySyncGroup         apiKey = 14
	apiKeyDescribeGroups    apiKey = 15
	apiKeyListGroups        apiKey = 16
	apiKeySaslHandshake     apiKey = 17
	apiKeyApiVersions       apiKey = 18
)

// apiVersionRange is the inclusive [min,max] range of versions this client
// implements for a given API key. It must satisfy min <= max (data model
// invariant (c)).
type apiVersionRange struct {
	min, max int16
}

// supportedVersions is this client's own implemented range per API, used to
// intersect against a broker's UsableApiVersions table (§4.1, §4.4).
var supportedVersions = map[apiKey]apiVersionRange{
	apiKeyProduce:         {0, 2},
	apiKeyFetch:           {0, 3},
	apiKeyListOffsets:     {0, 1},
	apiKeyMetadata:        {0, 2},
	apiKeyOffsetCommit:    {0, 2},
	apiKeyOffsetFetch:     {0, 1},
	apiKeyFindCoordinator: {0, 0},
	apiKeyJoinGroup:       {0, 1},
	apiKeyHeartbeat:       {0, 0},
	apiKeyLeaveGroup:      {0, 0},
	apiKeySyncGroup:       {0, 0},
	apiKeyDescribeGroups:  {0, 0},
	apiKeyListGroups:      {0, 0},
	apiKeySaslHandshake:   {0, 0},
	apiKeyApiVersions:     {0, 0},
}

// negotiateVersion selects min(client_max, broker_max) for an API key,
// per §4.1 and §4.4. usable is nil when no probe has happened yet, in which
// case the client's own max is used directly.
func negotiateVersion(key apiKey, usable map[apiKey]apiVersionRange) (int16, error) {
	mine, ok := supportedVersions[key]
	if !ok {
		return 0, UnsupportedVersionError{APIKey: int16(key)}
	}
	if usable == nil {
		return mine.max, nil
	}
	broker, ok := usable[key]
	if !ok {
		return 0, UnsupportedVersionError{APIKey: int16(key), MinGot: -1, MaxGot: -1}
	}
	if broker.max < mine.min || broker.min > mine.max {
		return 0, UnsupportedVersionError{APIKey: int16(key), MinGot: broker.min, MaxGot: broker.max}
	}
	v := mine.max
	if broker.max < v {
		v = broker.max
	}
	return v, nil
}

// protocolBody is implemented by every request and response shape. encode and
// decode are versioned explicitly rather than dispatched through reflection,
// matching the teacher's per-type encode/decode methods.
type protocolBody interface {
	key() apiKey
	version() int16
	setVersion(v int16)
	encode(pe packetEncoder) error
	decode(pd packetDecoder, version int16) error
}

// request is the envelope wrapping every request body: the four-field header
// of §4.1 plus a versioned body.
type request struct {
	correlationID int32
	clientID      string
	body          protocolBody
}

func (r *request) encode(pe packetEncoder) error {
	pe.putInt16(int16(r.body.key()))
	pe.putInt16(r.body.version())
	pe.putInt32(r.correlationID)
	if err := pe.putNullableString(&r.clientID); err != nil {
		return err
	}
	return r.body.encode(pe)
}

// encodeRequest frames a request with its i32 length prefix, excluding the
// length field itself per §4.1.
func encodeRequest(r *request) ([]byte, error) {
	prep := &prepEncoder{}
	if err := r.encode(prep); err != nil {
		return nil, err
	}
	buf := make([]byte, prep.length+4)
	binary.BigEndian.PutUint32(buf, uint32(prep.length))
	real := &realEncoder{raw: buf[4:]}
	if err := r.encode(real); err != nil {
		return nil, err
	}
	return buf, nil
}

// response is the envelope every decoded response carries: the correlation
// id that must match a pending request (§4.1) plus the typed body.
type response struct {
	correlationID int32
	body          protocolBody
}

func decodeResponseHeader(buf []byte) (correlationID int32, rest []byte, err error) {
	d := &realDecoder{raw: buf}
	correlationID, err = d.getInt32()
	if err != nil {
		return 0, nil, err
	}
	return correlationID, buf[d.off:], nil
}

func decodeResponseBody(buf []byte, body protocolBody, version int16) error {
	return decode(buf, body, version)
}

func (k apiKey) String() string {
	switch k {
	case apiKeyProduce:
		return "Produce"
	case apiKeyFetch:
		return "Fetch"
	case apiKeyListOffsets:
		return "ListOffsets"
	case apiKeyMetadata:
		return "Metadata"
	case apiKeyOffsetCommit:
		return "OffsetCommit"
	case apiKeyOffsetFetch:
		return "OffsetFetch"
	case apiKeyFindCoordinator:
		return "GroupCoordinator"
	case apiKeyJoinGroup:
		return "JoinGroup"
	case apiKeyHeartbeat:
		return "Heartbeat"
	case apiKeyLeaveGroup:
		return "LeaveGroup"
	case apiKeySyncGroup:
		return "SyncGroup"
	case apiKeyDescribeGroups:
		return "DescribeGroups"
	case apiKeyListGroups:
		return "ListGroups"
	case apiKeySaslHandshake:
		return "SaslHandshake"
	case apiKeyApiVersions:
		return "ApiVersions"
	default:
		return fmt.Sprintf("apiKey(%d)", int16(k))
	}
}
