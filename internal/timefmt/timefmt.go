// Package timefmt converts the small set of strptime-style timestamp
// format tokens the Argus/CSV flavors use (e.g. "YYYY/MM/DD
// HH:MM:SS.ffffff") into Go's reference-time layout, and parses values
// against the result. This mirrors the teacher's timegrinder package in
// spirit (a named format plus a parse function) without pulling in its
// full custom-format/regex machinery, which is overkill for the single
// configurable format the spec names.
package timefmt

import (
	"strings"
	"time"
)

// DefaultFormat is the default Argus/CSV timestamp format.
const DefaultFormat = "YYYY/MM/DD HH:MM:SS.ffffff"

// tokens recognized left-to-right, longest first so "ffffff" is matched
// before any shorter overlapping token could be.
var tokens = []string{"YYYY", "ffffff", "HH", "DD", "SS", "MM"}

// ToGoLayout converts a strptime-style format string into a Go reference
// time layout string. "MM" is ambiguous on its own (the spec's own
// default format uses it for both month, in "YYYY/MM/DD", and minute, in
// "HH:MM:SS") so it is resolved positionally: the first MM in the format
// is the month, every subsequent one is the minute.
func ToGoLayout(format string) string {
	var b strings.Builder
	mmSeen := false
	for i := 0; i < len(format); {
		matched := false
		for _, tok := range tokens {
			if !strings.HasPrefix(format[i:], tok) {
				continue
			}
			if tok == "MM" {
				if !mmSeen {
					b.WriteString("01")
					mmSeen = true
				} else {
					b.WriteString("04")
				}
			} else {
				b.WriteString(goToken(tok))
			}
			i += len(tok)
			matched = true
			break
		}
		if !matched {
			b.WriteByte(format[i])
			i++
		}
	}
	return b.String()
}

func goToken(tok string) string {
	switch tok {
	case "YYYY":
		return "2006"
	case "DD":
		return "02"
	case "HH":
		return "15"
	case "SS":
		return "05"
	case "ffffff":
		return "000000"
	}
	return tok
}

// Parse parses value against a strptime-style format string.
func Parse(format, value string) (time.Time, error) {
	return time.Parse(ToGoLayout(format), value)
}
