// Package flavor classifies and parses the four input record shapes the
// profiler accepts (zeek, zeek-tabs, suricata, argus), mirroring the
// teacher's ingest/processors routers (csvrouter.go, jsonextract.go):
// stateless, line-at-a-time, never fatal on a single bad record.
package flavor

import (
	"errors"
	"strings"

	"github.com/buger/jsonparser"
)

// Flavor is one of the four record shapes detect recognizes.
type Flavor int

const (
	Unknown Flavor = iota
	Zeek
	ZeekTabs
	Suricata
	Argus
)

func (f Flavor) String() string {
	switch f {
	case Zeek:
		return "zeek"
	case ZeekTabs:
		return "zeek-tabs"
	case Suricata:
		return "suricata"
	case Argus:
		return "argus"
	}
	return "unknown"
}

// ErrUnknownFlavor is returned when detection cannot classify a line by
// any of the three rules; this is a fatal, stream-level error, not a
// per-line one.
var ErrUnknownFlavor = errors.New("flavor: unable to classify input")

// Detect classifies a single line of raw input. It is only ever called
// once per stream, against the first line.
//
// Detection is a raw-text heuristic: Zeek's structured-map shape is
// decided by the caller (DetectMap) before any text ever reaches here,
// since an ingest source that hands over pre-parsed maps never produces
// a line for this function to look at.
func Detect(line []byte) (Flavor, error) {
	if looksLikeSuricata(line) {
		return Suricata, nil
	}
	commas := strings.Count(string(line), ",")
	tabs := strings.Count(string(line), "\t")
	switch {
	case commas > tabs:
		return Argus, nil
	case tabs > commas:
		return ZeekTabs, nil
	default:
		return Unknown, ErrUnknownFlavor
	}
}

// DetectMap classifies a pre-parsed record. Per §4.1 rule 1, any
// structured map handed to the ingest channel is always Zeek.
func DetectMap(map[string]any) Flavor {
	return Zeek
}

// looksLikeSuricata reports whether line parses as JSON with
// event_type=="flow", per §4.1 rule 2. A JSON parse failure or a missing
// event_type is not an error here -- it just means try the next rule.
func looksLikeSuricata(line []byte) bool {
	v, err := jsonparser.GetString(line, "event_type")
	if err != nil {
		return false
	}
	return v == "flow"
}
