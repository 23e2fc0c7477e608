package flavor

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/gopacket/layers"

	"github.com/flowprofiler/flowprofiler/internal/flow"
	"github.com/flowprofiler/flowprofiler/internal/timefmt"
)

// argusColumn names the canonical fields an Argus CSV header token can
// map onto, per §4.2's keyword table.
type argusColumn int

const (
	colStartTime argusColumn = iota
	colDur
	colProto
	colSAddr
	colSPort
	colDir
	colDAddr
	colDPort
	colState
	colPkts
	colBytes
)

// argusKeywords is evaluated in order against each lower-cased header
// token; the first keyword found as a substring wins. Order matters:
// "srca" must be checked before a looser "addr"-style match would ever
// be introduced, so ambiguous tokens resolve the way §4.2 specifies.
var argusKeywords = []struct {
	keyword string
	column  argusColumn
}{
	{"time", colStartTime},
	{"dur", colDur},
	{"proto", colProto},
	{"srca", colSAddr},
	{"sport", colSPort},
	{"dir", colDir},
	{"dsta", colDAddr},
	{"dport", colDPort},
	{"state", colState},
	{"totpkts", colPkts},
	{"totbytes", colBytes},
}

// ArgusParser parses Argus-style CSV records. The first line of a
// stream is always a header; NewArgusParser consumes it to build the
// column index map used for every subsequent line.
type ArgusParser struct {
	idx        map[argusColumn]int
	sep        string
	timeFormat string
}

// NewArgusParser derives a column index map from a CSV header line by
// substring-matching each token (case-insensitive) against the §4.2
// keyword table. Header tokens that match nothing are ignored; columns
// with no matching header remain unset and the resulting Flow leaves
// the corresponding field at its zero value.
func NewArgusParser(header string, sep string, timeFormat string) *ArgusParser {
	if sep == "" {
		sep = ","
	}
	if timeFormat == "" {
		timeFormat = timefmt.DefaultFormat
	}
	idx := make(map[argusColumn]int)
	for i, tok := range strings.Split(header, sep) {
		lower := strings.ToLower(strings.TrimSpace(tok))
		for _, kw := range argusKeywords {
			if strings.Contains(lower, kw.keyword) {
				idx[kw.column] = i
				break
			}
		}
	}
	return &ArgusParser{idx: idx, sep: sep, timeFormat: timeFormat}
}

func (p *ArgusParser) Parse(raw []byte) (flow.Flow, error) {
	fields := strings.Split(string(raw), p.sep)

	f := flow.Flow{RecordType: flow.RecordArgus}

	if i, ok := p.idx[colStartTime]; ok && i < len(fields) {
		ts, err := timefmt.Parse(p.timeFormat, strings.TrimSpace(fields[i]))
		if err != nil {
			return flow.Flow{}, fmt.Errorf("flavor: argus starttime: %w", err)
		}
		f.StartTime = ts
	}
	if i, ok := p.idx[colDur]; ok && i < len(fields) {
		f.Duration = parseArgusDuration(fields[i])
	}
	if i, ok := p.idx[colProto]; ok && i < len(fields) {
		f.Proto = parseArgusProto(fields[i])
	}
	if i, ok := p.idx[colSAddr]; ok && i < len(fields) {
		f.SAddr = parseAddr(strings.TrimSpace(fields[i]))
	}
	if i, ok := p.idx[colSPort]; ok && i < len(fields) {
		f.SPort = parseArgusPort(fields[i])
	}
	if i, ok := p.idx[colDir]; ok && i < len(fields) {
		f.Direction = strings.TrimSpace(fields[i])
	}
	if i, ok := p.idx[colDAddr]; ok && i < len(fields) {
		f.DAddr = parseAddr(strings.TrimSpace(fields[i]))
	}
	if i, ok := p.idx[colDPort]; ok && i < len(fields) {
		f.DPort = parseArgusPort(fields[i])
	}
	if i, ok := p.idx[colState]; ok && i < len(fields) {
		f.State = strings.TrimSpace(fields[i])
		f.StateHist = f.State
	}
	if i, ok := p.idx[colPkts]; ok && i < len(fields) {
		f.Pkts = parseArgusUint(fields[i])
	}
	if i, ok := p.idx[colBytes]; ok && i < len(fields) {
		f.Bytes = parseArgusUint(fields[i])
	}
	return f, nil
}

func parseArgusDuration(s string) time.Duration {
	secs, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return time.Duration(secs * float64(time.Second))
}

func parseArgusPort(s string) uint16 {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 16)
	if err != nil {
		return 0
	}
	return uint16(n)
}

func parseArgusUint(s string) uint64 {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// parseArgusProto resolves a protocol field that may already be a name
// (tcp/udp/icmp) or a raw IANA protocol number, using gopacket's
// IPProtocol name table for the numeric case.
func parseArgusProto(s string) string {
	s = strings.TrimSpace(s)
	if n, err := strconv.ParseUint(s, 10, 8); err == nil {
		return strings.ToLower(layers.IPProtocol(n).String())
	}
	return strings.ToLower(s)
}
