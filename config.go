package kafka

import (
	"time"

	"github.com/rcrowley/go-metrics"
)

// RequiredAcks controls how many replicas must acknowledge a Produce
// request before the broker responds (§6). -1 means "all in-sync
// replicas", matching Kafka's own acks=-1 convention.
type RequiredAcks int16

const (
	NoResponse   RequiredAcks = 0
	WaitForLocal RequiredAcks = 1
	WaitForAll   RequiredAcks = -1
)

// OffsetResetStrategy selects what a consumer does when its committed or
// requested offset falls outside the broker's retained range
// (ErrOffsetOutOfRange, §4.7).
type OffsetResetStrategy int

const (
	OffsetResetLatest OffsetResetStrategy = iota
	OffsetResetEarliest
)

// AssignmentStrategy names one of the built-in partition assignors (§4.5).
type AssignmentStrategy string

const (
	AssignmentStrategyRange      AssignmentStrategy = "range"
	AssignmentStrategyRoundRobin AssignmentStrategy = "roundrobin"
)

// KafkaVersion names a broker version (§6). Config.BrokerVersionFallback
// only selects the message format the producer writes; API version
// negotiation does not read it, and falls back to this client's own maximum
// version when no ApiVersions probe result is available.
type KafkaVersion struct {
	major, minor, patch int
}

func NewKafkaVersion(major, minor, patch int) KafkaVersion {
	return KafkaVersion{major, minor, patch}
}

// AtLeast reports whether v is the same version as, or newer than, other.
func (v KafkaVersion) AtLeast(other KafkaVersion) bool {
	if v.major != other.major {
		return v.major > other.major
	}
	if v.minor != other.minor {
		return v.minor > other.minor
	}
	return v.patch >= other.patch
}

var (
	V0_10_0_0 = NewKafkaVersion(0, 10, 0)
	V0_11_0_0 = NewKafkaVersion(0, 11, 0)
	V1_0_0_0  = NewKafkaVersion(1, 0, 0)
	V2_0_0_0  = NewKafkaVersion(2, 0, 0)
)

// Config gathers every recognized option from §6, nested by concern the way
// the teacher's own sarama.Config does (Config.Net, Config.Metadata,
// Config.Producer, Config.Consumer.Group, ...).
type Config struct {
	ClientID string

	Net struct {
		RequestTimeout    time.Duration
		MaxConnectionIdle time.Duration
		DialTimeout       time.Duration
	}

	Metadata struct {
		RefreshFrequency time.Duration // 0 disables automatic refresh
		Full             bool
		RetryMax         int
		RetryBackoff     time.Duration
	}

	ApiVersionRequest     bool
	BrokerVersionFallback KafkaVersion

	Producer struct {
		RequiredAcks    RequiredAcks
		Timeout         time.Duration
		Compression     CompressionCodec
		Flush           struct {
			Bytes       int
			Frequency   time.Duration
		}
		MaxMessageBytes   int
		BufferMemory      int64
		MaxBlock          time.Duration
		Retry             struct {
			Max     int
			Backoff time.Duration
		}
		MaxInFlightRequests int
	}

	Consumer struct {
		Group struct {
			SessionTimeout    time.Duration
			RebalanceTimeout  time.Duration
			HeartbeatInterval time.Duration
			RetryBackoff      time.Duration
			AssignmentStrategies []AssignmentStrategy
		}
		Offsets struct {
			AutoCommit struct {
				Enable   bool
				Interval time.Duration
			}
			Initial OffsetResetStrategy
		}
		Fetch struct {
			MinBytes   int32
			MaxWaitTime time.Duration
			Default    int32
		}
		MaxProcessingTime time.Duration
		MaxPollRecords    int
	}

	MetricRegistry metrics.Registry
}

// NewConfig returns a Config populated with the same defaults the teacher's
// sarama.NewConfig ships (tuned to this module's exact field names).
func NewConfig() *Config {
	c := &Config{}
	c.ClientID = "kafka-go-client"

	c.Net.RequestTimeout = 30 * time.Second
	c.Net.MaxConnectionIdle = 9 * time.Minute
	c.Net.DialTimeout = 30 * time.Second

	c.Metadata.RefreshFrequency = 10 * time.Minute
	c.Metadata.RetryMax = 3
	c.Metadata.RetryBackoff = 250 * time.Millisecond

	c.ApiVersionRequest = true
	c.BrokerVersionFallback = V0_10_0_0

	c.Producer.RequiredAcks = WaitForLocal
	c.Producer.Timeout = 10 * time.Second
	c.Producer.Compression = CompressionNone
	c.Producer.Flush.Bytes = 16 * 1024
	c.Producer.Flush.Frequency = 0
	c.Producer.MaxMessageBytes = 1000000
	c.Producer.BufferMemory = 32 * 1024 * 1024
	c.Producer.MaxBlock = 60 * time.Second
	c.Producer.Retry.Max = 3
	c.Producer.Retry.Backoff = 100 * time.Millisecond
	c.Producer.MaxInFlightRequests = 5

	c.Consumer.Group.SessionTimeout = 10 * time.Second
	c.Consumer.Group.RebalanceTimeout = 60 * time.Second
	c.Consumer.Group.HeartbeatInterval = 3 * time.Second
	c.Consumer.Group.RetryBackoff = 2 * time.Second
	c.Consumer.Group.AssignmentStrategies = []AssignmentStrategy{AssignmentStrategyRange}
	c.Consumer.Offsets.AutoCommit.Enable = true
	c.Consumer.Offsets.AutoCommit.Interval = 1 * time.Second
	c.Consumer.Offsets.Initial = OffsetResetLatest
	c.Consumer.Fetch.MinBytes = 1
	c.Consumer.Fetch.MaxWaitTime = 250 * time.Millisecond
	c.Consumer.Fetch.Default = 1024 * 1024
	c.Consumer.MaxProcessingTime = 100 * time.Millisecond
	c.Consumer.MaxPollRecords = 0

	c.MetricRegistry = metrics.NewRegistry()

	return c
}

// Validate checks the invariants of §3 and §4.6: heartbeat_interval <
// session_timeout / 3, and rebalance_timeout >= session_timeout.
func (c *Config) Validate() error {
	if c.Producer.MaxInFlightRequests <= 0 {
		return ConfigurationError("Producer.MaxInFlightRequests must be > 0")
	}
	if c.Producer.BufferMemory <= 0 {
		return ConfigurationError("Producer.BufferMemory must be > 0")
	}
	if c.Consumer.Group.HeartbeatInterval >= c.Consumer.Group.SessionTimeout/3 {
		return ConfigurationError("Consumer.Group.HeartbeatInterval must be less than SessionTimeout/3")
	}
	if c.Consumer.Group.RebalanceTimeout < c.Consumer.Group.SessionTimeout {
		return ConfigurationError("Consumer.Group.RebalanceTimeout must be >= SessionTimeout")
	}
	if len(c.ClientID) == 0 {
		return ConfigurationError("ClientID must not be empty")
	}
	for _, strat := range c.Consumer.Group.AssignmentStrategies {
		if strat != AssignmentStrategyRange && strat != AssignmentStrategyRoundRobin {
			return ConfigurationError("unknown Consumer.Group assignment strategy: " + string(strat))
		}
	}
	return nil
}
