package kafka

import (
	"errors"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ErrOutOfBrokers is returned when the client has run out of brokers to talk
// to because all of them errored or otherwise failed to respond.
var ErrOutOfBrokers = errors.New("kafka: client has run out of available brokers to talk to")

// ErrBrokerNotFound is returned when there is no broker for the requested id.
var ErrBrokerNotFound = errors.New("kafka: broker for id is not found")

// ErrClosedClient reports use of a client that has already been closed. No
// Client method in this package returns it.
var ErrClosedClient = errors.New("kafka: tried to use a client that was closed")

// ErrClosedConsumerGroup reports use of a consumer group that has already
// left and closed. No ConsumerGroup method in this package returns it.
var ErrClosedConsumerGroup = errors.New("kafka: tried to use a consumer group that was closed")

// ErrIncompleteResponse is returned when the broker returns a syntactically
// valid response that does not contain the expected information.
var ErrIncompleteResponse = errors.New("kafka: response did not contain all the expected topic/partition blocks")

// ErrAlreadyConnected is returned when calling Open on a broker that is
// already connected or connecting.
var ErrAlreadyConnected = errors.New("kafka: broker connection already initiated")

// ErrNotConnected is returned when trying to send on, or Close, a broker that
// is not connected.
var ErrNotConnected = errors.New("kafka: broker not connected")

// ErrInsufficientData is returned when decoding and the packet is truncated.
// This is expected at the tail of a fetch response, since the broker may
// return a partial message at the end of a message set.
var ErrInsufficientData = errors.New("kafka: insufficient data to decode packet, more bytes expected")

// ErrShuttingDown is returned when a record is appended to the accumulator
// while the producer is closing.
var ErrShuttingDown = errors.New("kafka: message received by producer while shutting down")

// ErrBufferExhausted is returned by the accumulator when buffer_memory is
// exhausted and max_block_ms elapses before space frees up.
var ErrBufferExhausted = errors.New("kafka: producer buffer exhausted, append blocked past max block time")

// ErrRequestTimedOut is returned by the connection multiplexer when no
// response arrives within request_timeout.
var ErrRequestTimedOut = errors.New("kafka: request timed out waiting for a response")

// ErrCanceled reports a pending call dropped before completion. No code path
// in this package returns it; a Producer.Send whose context ends returns
// ctx.Err().
var ErrCanceled = errors.New("kafka: operation canceled")

// ErrCorrelationMismatch is returned when a response's correlation id does
// not match the request it was read in response to, which can only mean the
// connection's byte stream has desynchronized.
var ErrCorrelationMismatch = errors.New("kafka: response correlation id did not match request")

// ErrControllerNotAvailable is returned when the broker did not report a
// usable controller id.
var ErrControllerNotAvailable = errors.New("kafka: controller is not available")

// ErrUnexpectedResponse reports a response for a different API than the one
// the caller expected. No code path in this package returns it: each
// response is decoded directly into the typed body the caller supplied.
type ErrUnexpectedResponse struct {
	APIKey int16
}

func (e ErrUnexpectedResponse) Error() string {
	return fmt.Sprintf("kafka: unexpected response for api key %d", e.APIKey)
}

// MultiErrorFormat is the format multiError applies when it folds several
// errors into one hashicorp/go-multierror value. multiError has no caller in
// this package; fetch and produce failures are reported one error at a time.
var MultiErrorFormat multierror.ErrorFormatFunc = func(es []error) string {
	if len(es) == 1 {
		return es[0].Error()
	}
	points := make([]string, len(es))
	for i, e := range es {
		points[i] = fmt.Sprintf("* %s", e)
	}
	return fmt.Sprintf("%d errors occurred:\n\t%s\n", len(es), strings.Join(points, "\n\t"))
}

func multiError(errs ...error) error {
	merr := multierror.Append(nil, errs...)
	merr.ErrorFormat = MultiErrorFormat
	return merr.ErrorOrNil()
}

// PacketEncodingError is returned when encoding a request fails, for example
// when a string is too long to fit the wire's length prefix.
type PacketEncodingError struct {
	Info string
}

func (e PacketEncodingError) Error() string {
	return fmt.Sprintf("kafka: error encoding packet: %s", e.Info)
}

// PacketDecodingError is returned when decoding a broker's response fails for
// a reason other than truncation — a bad CRC, a negative length, or any
// other value outside the wire grammar.
type PacketDecodingError struct {
	Info string
}

func (e PacketDecodingError) Error() string {
	return fmt.Sprintf("kafka: error decoding packet: %s", e.Info)
}

// ConfigurationError is returned from a constructor (NewClient, NewConsumer,
// NewProducer, ...) when the supplied Config fails Validate.
type ConfigurationError string

func (e ConfigurationError) Error() string {
	return "kafka: invalid configuration (" + string(e) + ")"
}

// UnsupportedVersionError is returned when the negotiated API version table
// has no overlap between client and broker for a requested API key.
type UnsupportedVersionError struct {
	APIKey  int16
	Wanted  int16
	MinGot  int16
	MaxGot  int16
}

func (e UnsupportedVersionError) Error() string {
	return fmt.Sprintf("kafka: no supported version for api key %d (broker supports %d-%d)", e.APIKey, e.MinGot, e.MaxGot)
}

// KError is the numeric error code reported directly by the Kafka broker.
// See https://kafka.apache.org/protocol#protocol_error_codes
type KError int16

const (
	ErrNoError                         KError = 0
	ErrUnknown                         KError = -1
	ErrOffsetOutOfRange                KError = 1
	ErrInvalidMessage                  KError = 2
	ErrUnknownTopicOrPartition         KError = 3
	ErrInvalidMessageSize              KError = 4
	ErrLeaderNotAvailable              KError = 5
	ErrNotLeaderForPartition           KError = 6
	ErrRequestTimedOutCode             KError = 7
	ErrBrokerNotAvailable              KError = 8
	ErrReplicaNotAvailable             KError = 9
	ErrMessageSizeTooLarge             KError = 10
	ErrStaleControllerEpochCode        KError = 11
	ErrOffsetMetadataTooLarge          KError = 12
	ErrNetworkException                KError = 13
	ErrGroupLoadInProgress             KError = 14
	ErrGroupCoordinatorNotAvailable    KError = 15
	ErrNotCoordinatorForGroup          KError = 16
	ErrInvalidTopic                    KError = 17
	ErrMessageSetSizeTooLarge          KError = 18
	ErrNotEnoughReplicas               KError = 19
	ErrNotEnoughReplicasAfterAppend    KError = 20
	ErrInvalidRequiredAcks             KError = 21
	ErrIllegalGeneration               KError = 22
	ErrInconsistentGroupProtocol       KError = 23
	ErrInvalidGroupId                  KError = 24
	ErrUnknownMemberId                 KError = 25
	ErrInvalidSessionTimeout           KError = 26
	ErrRebalanceInProgress             KError = 27
	ErrInvalidCommitOffsetSize         KError = 28
	ErrTopicAuthorizationFailed        KError = 29
	ErrGroupAuthorizationFailed        KError = 30
	ErrClusterAuthorizationFailed      KError = 31
	ErrInvalidTimestamp                KError = 32
	ErrUnsupportedSASLMechanism        KError = 33
	ErrIllegalSASLState                KError = 34
	ErrUnsupportedVersion              KError = 35
	ErrTopicAlreadyExists              KError = 36
	ErrInvalidPartitions               KError = 37
	ErrInvalidReplicationFactor        KError = 38
	ErrInvalidReplicaAssignment        KError = 39
	ErrInvalidConfig                   KError = 40
	ErrNotController                   KError = 41
	ErrInvalidRequest                  KError = 42
	ErrUnsupportedForMessageFormat     KError = 43
	ErrPolicyViolation                 KError = 44
)

func (e KError) Error() string {
	switch e {
	case ErrNoError:
		return "kafka server: not an error"
	case ErrUnknown:
		return "kafka server: unexpected error, no specific error code is available"
	case ErrOffsetOutOfRange:
		return "kafka server: the requested offset is outside the range of offsets maintained by the server for the given topic/partition"
	case ErrInvalidMessage:
		return "kafka server: message contents does not match its CRC"
	case ErrUnknownTopicOrPartition:
		return "kafka server: request was for a topic or partition that does not exist on this broker"
	case ErrInvalidMessageSize:
		return "kafka server: message has a negative size"
	case ErrLeaderNotAvailable:
		return "kafka server: in the middle of a leadership election, there is currently no leader for this partition and hence it is unavailable for writes"
	case ErrNotLeaderForPartition:
		return "kafka server: operation that is not the leader for that topic-partition"
	case ErrRequestTimedOutCode:
		return "kafka server: request exceeded the user-specified time limit in the request"
	case ErrBrokerNotAvailable:
		return "kafka server: broker is not available"
	case ErrReplicaNotAvailable:
		return "kafka server: replica is expected on a broker, but is not"
	case ErrMessageSizeTooLarge:
		return "kafka server: message is larger than the maximum configured segment size"
	case ErrStaleControllerEpochCode:
		return "kafka server: controller moved to another broker"
	case ErrOffsetMetadataTooLarge:
		return "kafka server: metadata field of the offset request was too large"
	case ErrNetworkException:
		return "kafka server: the server disconnected before a response was received"
	case ErrGroupLoadInProgress:
		return "kafka server: offsets load is in progress"
	case ErrGroupCoordinatorNotAvailable:
		return "kafka server: group coordinator is not available"
	case ErrNotCoordinatorForGroup:
		return "kafka server: broker is not the coordinator for this group"
	case ErrInvalidTopic:
		return "kafka server: request specified an illegal topic"
	case ErrMessageSetSizeTooLarge:
		return "kafka server: message batch larger than configured server segment size"
	case ErrNotEnoughReplicas:
		return "kafka server: not enough in-sync replicas to satisfy required acks"
	case ErrNotEnoughReplicasAfterAppend:
		return "kafka server: the message was written to the log, but not enough replicas acknowledged it"
	case ErrInvalidRequiredAcks:
		return "kafka server: invalid value for required acks"
	case ErrIllegalGeneration:
		return "kafka server: consumer generation id is not current generation"
	case ErrInconsistentGroupProtocol:
		return "kafka server: member's supported protocols are incompatible with those of the existing members"
	case ErrInvalidGroupId:
		return "kafka server: group id is empty or null"
	case ErrUnknownMemberId:
		return "kafka server: member id is not in the current generation"
	case ErrInvalidSessionTimeout:
		return "kafka server: session timeout is not within the range allowed by the broker"
	case ErrRebalanceInProgress:
		return "kafka server: group is rebalancing, re-join required"
	case ErrInvalidCommitOffsetSize:
		return "kafka server: offset commit was rejected because of oversize metadata"
	case ErrTopicAuthorizationFailed:
		return "kafka server: not authorized to access topics"
	case ErrGroupAuthorizationFailed:
		return "kafka server: not authorized to access group"
	case ErrClusterAuthorizationFailed:
		return "kafka server: not authorized to use cluster-level operation"
	case ErrInvalidTimestamp:
		return "kafka server: timestamp of the message is out of acceptable range"
	case ErrUnsupportedSASLMechanism:
		return "kafka server: broker does not support the requested SASL mechanism"
	case ErrIllegalSASLState:
		return "kafka server: request is not valid given the current SASL state"
	case ErrUnsupportedVersion:
		return "kafka server: version of API is not supported"
	case ErrTopicAlreadyExists:
		return "kafka server: topic already exists"
	case ErrInvalidPartitions:
		return "kafka server: number of partitions is invalid"
	case ErrInvalidReplicationFactor:
		return "kafka server: replication factor is invalid"
	case ErrInvalidReplicaAssignment:
		return "kafka server: replica assignment is invalid"
	case ErrInvalidConfig:
		return "kafka server: configuration is invalid"
	case ErrNotController:
		return "kafka server: broker is not the controller"
	case ErrInvalidRequest:
		return "kafka server: request is malformed"
	case ErrUnsupportedForMessageFormat:
		return "kafka server: message format version does not support the requested function"
	case ErrPolicyViolation:
		return "kafka server: request violates configured policy"
	}
	return fmt.Sprintf("kafka server: unknown error code %d", int16(e))
}

// Retriable reports whether an automatic metadata refresh and single retry
// should be attempted for this broker-reported error, per the client's
// retry policy (spec §4.4).
func (e KError) Retriable() bool {
	switch e {
	case ErrLeaderNotAvailable, ErrNotLeaderForPartition, ErrUnknownTopicOrPartition,
		ErrGroupCoordinatorNotAvailable, ErrNotCoordinatorForGroup:
		return true
	}
	return false
}

// KafkaError wraps a broker-reported KError so it satisfies the standard
// error interface while preserving the numeric code for callers that need
// to branch on it (errors.As).
type KafkaError struct {
	Code KError
}

func (e KafkaError) Error() string {
	return e.Code.Error()
}

func (e KafkaError) Unwrap() error {
	return e.Code
}
