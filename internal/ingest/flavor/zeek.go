package flavor

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/flowprofiler/flowprofiler/internal/flow"
)

// ZeekParser reads pre-parsed Zeek log records (JSON-decoded maps, the
// shape described in §4.2) by well-known field name. Missing optional
// fields default to zero or empty string rather than erroring, matching
// the reference implementation's per-field try/except-default pattern.
type ZeekParser struct{}

func (ZeekParser) ParseMap(rec map[string]any) (flow.Flow, error) {
	rt := zeekRecordType(mapString(rec, "type"))
	if !rt.Feeds() {
		if rt == flow.RecordDNS {
			return flow.Flow{}, fmt.Errorf("%w: dns qtype %s", ErrDrop, dnsQueryTypeName(rec))
		}
		return flow.Flow{}, ErrDrop
	}

	dur := time.Duration(mapFloat(rec, "duration") * float64(time.Second))
	spkts := mapUint(rec, "orig_pkts")
	dpkts := mapUint(rec, "resp_pkts")
	sbytes := mapUint(rec, "orig_bytes")
	dbytes := mapUint(rec, "resp_bytes")

	hist := mapString(rec, "history")
	state := mapString(rec, "conn_state")
	if hist == "" {
		hist = state
	}

	f := flow.Flow{
		StartTime:  unixSeconds(mapFloat(rec, "ts")),
		Duration:   dur,
		Proto:      mapString(rec, "proto"),
		AppProto:   mapString(rec, "service"),
		SAddr:      parseAddr(mapString(rec, "id.orig_h")),
		DAddr:      parseAddr(mapString(rec, "id.resp_h")),
		SPort:      uint16(mapUint(rec, "id.orig_p")),
		DPort:      uint16(mapUint(rec, "id.resp_p")),
		Direction:  "->",
		State:      state,
		StateHist:  hist,
		Pkts:       spkts + dpkts,
		SPkts:      spkts,
		DPkts:      dpkts,
		Bytes:      sbytes + dbytes,
		SBytes:     sbytes,
		DBytes:     dbytes,
		UID:        mapString(rec, "uid"),
		SMac:       mapString(rec, "orig_l2_addr"),
		DMac:       mapString(rec, "resp_l2_addr"),
		RecordType: rt,
	}
	if !rt.Feeds() {
		if rt == flow.RecordDNS {
			return f, fmt.Errorf("%w: dns qtype %s", ErrDrop, dnsQueryTypeName(rec))
		}
		return f, ErrDrop
	}
	return f, nil
}

// dnsQueryTypeName normalizes a dns.log record's query-type field into a
// friendly name for the drop-reason log line. Zeek usually already
// supplies "qtype_name" as a string, but falls back to the numeric
// "qtype" code (decoded via miekg/dns's type table) when it doesn't.
func dnsQueryTypeName(rec map[string]any) string {
	if name := mapString(rec, "qtype_name"); name != "" {
		return name
	}
	if code := mapUint(rec, "qtype"); code != 0 {
		if name, ok := dns.TypeToString[uint16(code)]; ok {
			return name
		}
	}
	return "unknown"
}

// zeekRecordType maps the trailing path segment of Zeek's "type" field
// (e.g. "./zeek_files/conn" -> "conn") to a RecordType.
func zeekRecordType(typ string) flow.RecordType {
	idx := strings.LastIndexByte(typ, '/')
	tail := typ
	if idx >= 0 {
		tail = typ[idx+1:]
	}
	return flow.ParseRecordType(tail)
}

func unixSeconds(secs float64) time.Time {
	whole := int64(secs)
	frac := secs - float64(whole)
	return time.Unix(whole, int64(frac*float64(time.Second))).UTC()
}

func parseAddr(s string) netip.Addr {
	a, _ := netip.ParseAddr(s)
	return a
}

func mapString(rec map[string]any, key string) string {
	if v, ok := rec[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func mapFloat(rec map[string]any, key string) float64 {
	if v, ok := rec[key]; ok {
		switch n := v.(type) {
		case float64:
			return n
		case int:
			return float64(n)
		case int64:
			return float64(n)
		}
	}
	return 0
}

func mapUint(rec map[string]any, key string) uint64 {
	f := mapFloat(rec, key)
	if f < 0 {
		return 0
	}
	return uint64(f)
}
