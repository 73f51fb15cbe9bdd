package kafka

import (
	"io/ioutil"
	stdlog "log"
)

// Logger is the interface this package logs through. It is satisfied by the
// standard library's *log.Logger; embedders that want structured logging
// wire their own implementation in front of it (zap's SugaredLogger,
// go-kit/log, logrus, ...) rather than this package picking one for them.
type Logger interface {
	Print(v ...interface{})
	Printf(format string, v ...interface{})
	Println(v ...interface{})
}

// logger is the logger this package writes debug and warning lines to. It
// defaults to a no-op logger; replace it with SetLogger before constructing
// a Client to observe connection and rebalance activity.
var logger Logger = stdlog.New(ioutil.Discard, "[kafka] ", stdlog.LstdFlags)

// SetLogger replaces the package-level logger used by every Client, Broker
// and ConsumerGroup constructed afterwards.
func SetLogger(l Logger) {
	if l != nil {
		logger = l
	}
}

// DebugLogger, when set, receives fine-grained request/response tracing
// from the connection multiplexer (§4.2). It is kept separate from Logger
// because it is typically far noisier and embedders enable it only while
// diagnosing a specific connection.
var DebugLogger Logger
