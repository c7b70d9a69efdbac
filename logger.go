package dnscore

import (
	"github.com/miekg/dns"
	"github.com/sirupsen/logrus"
)

// Log is a package-global logger used throughout the library. Configuration
// can be changed directly on this instance, or the instance can be replaced
// wholesale before any Context is constructed.
var Log = logrus.New()

// logger returns a log entry pre-populated with the fields that matter for
// a single lookup: its 16-bit query id, the name being looked up and its
// record type.
func logger(id uint16, name string, qtype uint16) *logrus.Entry {
	return Log.WithFields(logrus.Fields{
		"id":    id,
		"qname": name,
		"qtype": dns.TypeToString[qtype],
	})
}
