// Package flow defines the canonical flow record that every input flavor
// parser converts into, and the small value types that travel with it.
package flow

import (
	"fmt"
	"net/netip"
	"time"
)

// RecordType distinguishes the kind of record a flavor parser produced.
// Only Conn and Argus feed the profiler/symbolizer; the others are parsed
// so the rest of the record is available for logging, but are dropped
// before aggregation.
type RecordType int

const (
	RecordUnknown RecordType = iota
	RecordConn
	RecordHTTP
	RecordDNS
	RecordSSH
	RecordSSL
	RecordIRC
	RecordLong
	RecordArgus
)

var recordTypeNames = map[RecordType]string{
	RecordUnknown: "unknown",
	RecordConn:    "conn",
	RecordHTTP:    "http",
	RecordDNS:     "dns",
	RecordSSH:     "ssh",
	RecordSSL:     "ssl",
	RecordIRC:     "irc",
	RecordLong:    "long",
	RecordArgus:   "argus",
}

var recordTypeValues = func() map[string]RecordType {
	m := make(map[string]RecordType, len(recordTypeNames))
	for k, v := range recordTypeNames {
		m[v] = k
	}
	return m
}()

func (rt RecordType) String() string {
	if s, ok := recordTypeNames[rt]; ok {
		return s
	}
	return "unknown"
}

// ParseRecordType maps a plain lowercase record name (e.g. "conn", the
// trailing segment of a Zeek "type" path such as "./zeek_files/conn") to a
// RecordType. Unrecognized values come back as RecordUnknown rather than an
// error; RecordUnknown never feeds the aggregators.
func ParseRecordType(s string) RecordType {
	if rt, ok := recordTypeValues[s]; ok {
		return rt
	}
	return RecordUnknown
}

// Feeds reports whether this record type is aggregated downstream. Only
// conn and argus records feed the profiler/symbolizer.
func (rt RecordType) Feeds() bool {
	return rt == RecordConn || rt == RecordArgus
}

// Flow is the canonical, flavor-independent representation of a single
// bidirectional network flow record.
type Flow struct {
	StartTime time.Time
	Duration  time.Duration
	Proto     string
	AppProto  string
	SAddr     netip.Addr
	DAddr     netip.Addr
	SPort     uint16
	DPort     uint16
	Direction string
	State     string
	StateHist string
	Pkts      uint64
	SPkts     uint64
	DPkts     uint64
	Bytes     uint64
	SBytes    uint64
	DBytes    uint64
	UID       string
	SMac      string
	DMac      string
	RecordType RecordType
}

// EndTime is start + duration. Duration must be added as seconds, never as
// whole days — a naive reuse of time.AddDate(0,0,int(duration)) is wrong.
func (f Flow) EndTime() time.Time {
	return f.StartTime.Add(f.Duration)
}

// Valid reports the two packet/byte-count invariants every stored
// canonical flow must satisfy.
func (f Flow) Valid() bool {
	return f.Pkts == f.SPkts+f.DPkts && f.Bytes == f.SBytes+f.DBytes
}

// TupleID identifies an outbound conversation class within a profile/TW:
// daddr:dport:proto.
func (f Flow) TupleID() string {
	return fmt.Sprintf("%s:%d:%s", f.DAddr, f.DPort, f.Proto)
}

// HasMAC reports whether neither address parsed as IPv4/IPv6 (a MAC-only
// flow) — such flows must be rejected before home-net policy or profiling
// ever sees them.
func (f Flow) HasMAC() bool {
	return !f.SAddr.IsValid() && !f.DAddr.IsValid()
}
