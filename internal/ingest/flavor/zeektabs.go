package flavor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/flowprofiler/flowprofiler/internal/flow"
)

// zeekTabsFields are the well-known Zeek ASCII conn.log column names
// this parser understands, the tab-separated-value sibling of the
// structured-map Zeek format §4.2 describes.
var zeekTabsFields = []string{
	"ts", "uid", "id.orig_h", "id.orig_p", "id.resp_h", "id.resp_p",
	"proto", "service", "duration", "orig_bytes", "resp_bytes",
	"conn_state", "history", "orig_pkts", "resp_pkts",
	"orig_l2_addr", "resp_l2_addr",
}

// ZeekTabsParser parses Zeek's tab-separated ASCII conn.log format. A
// "#fields" header line (standard for Zeek ASCII logs) supplies the
// column order; NewZeekTabsParser also accepts a plain header row of
// the same field names with no leading directive, matching how the
// flavor detector's header-consumption rule (§4.1) treats the first
// line of any TSV/CSV stream.
type ZeekTabsParser struct {
	idx map[string]int
}

func NewZeekTabsParser(header string) *ZeekTabsParser {
	header = strings.TrimPrefix(header, "#fields")
	header = strings.TrimSpace(header)
	idx := make(map[string]int)
	for i, tok := range strings.Split(header, "\t") {
		tok = strings.TrimSpace(tok)
		for _, known := range zeekTabsFields {
			if tok == known {
				idx[known] = i
				break
			}
		}
	}
	return &ZeekTabsParser{idx: idx}
}

func (p *ZeekTabsParser) field(fields []string, name string) (string, bool) {
	i, ok := p.idx[name]
	if !ok || i >= len(fields) {
		return "", false
	}
	v := fields[i]
	if v == "-" {
		return "", false
	}
	return v, true
}

func (p *ZeekTabsParser) Parse(raw []byte) (flow.Flow, error) {
	if strings.HasPrefix(string(raw), "#") {
		return flow.Flow{}, ErrDrop
	}
	fields := strings.Split(string(raw), "\t")

	tsStr, _ := p.field(fields, "ts")
	ts, err := parseZeekEpoch(tsStr)
	if err != nil {
		return flow.Flow{}, fmt.Errorf("flavor: zeek-tabs ts: %w", err)
	}

	durStr, _ := p.field(fields, "duration")
	dur := parseArgusDuration(durStr)

	spktsStr, _ := p.field(fields, "orig_pkts")
	dpktsStr, _ := p.field(fields, "resp_pkts")
	sbytesStr, _ := p.field(fields, "orig_bytes")
	dbytesStr, _ := p.field(fields, "resp_bytes")
	spkts := parseArgusUint(spktsStr)
	dpkts := parseArgusUint(dpktsStr)
	sbytes := parseArgusUint(sbytesStr)
	dbytes := parseArgusUint(dbytesStr)

	state, _ := p.field(fields, "conn_state")
	hist, ok := p.field(fields, "history")
	if !ok {
		hist = state
	}
	saddr, _ := p.field(fields, "id.orig_h")
	daddr, _ := p.field(fields, "id.resp_h")
	sport, _ := p.field(fields, "id.orig_p")
	dport, _ := p.field(fields, "id.resp_p")
	proto, _ := p.field(fields, "proto")
	service, _ := p.field(fields, "service")
	uid, _ := p.field(fields, "uid")
	smac, _ := p.field(fields, "orig_l2_addr")
	dmac, _ := p.field(fields, "resp_l2_addr")

	f := flow.Flow{
		StartTime:  ts,
		Duration:   dur,
		Proto:      proto,
		AppProto:   service,
		SAddr:      parseAddr(saddr),
		DAddr:      parseAddr(daddr),
		SPort:      parseArgusPort(sport),
		DPort:      parseArgusPort(dport),
		Direction:  "->",
		State:      state,
		StateHist:  hist,
		Pkts:       spkts + dpkts,
		SPkts:      spkts,
		DPkts:      dpkts,
		Bytes:      sbytes + dbytes,
		SBytes:     sbytes,
		DBytes:     dbytes,
		UID:        uid,
		SMac:       smac,
		DMac:       dmac,
		RecordType: flow.RecordConn,
	}
	return f, nil
}

func parseZeekEpoch(s string) (time.Time, error) {
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return time.Time{}, err
	}
	return unixSeconds(secs), nil
}
