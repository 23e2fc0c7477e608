package flavor

import (
	"testing"
)

const argusHeader = "StartTime,Dur,Proto,SrcAddr,Sport,Dir,DstAddr,Dport,State,TotPkts,TotBytes"

func TestNewArgusParserBuildsColumnIndex(t *testing.T) {
	p := NewArgusParser(argusHeader, ",", "")
	want := map[argusColumn]int{
		colStartTime: 0,
		colDur:       1,
		colProto:     2,
		colSAddr:     3,
		colSPort:     4,
		colDir:       5,
		colDAddr:     6,
		colDPort:     7,
		colState:     8,
		colPkts:      9,
		colBytes:     10,
	}
	for col, i := range want {
		if got := p.idx[col]; got != i {
			t.Errorf("idx[%v] = %d, want %d", col, got, i)
		}
	}
}

func TestArgusParserParsesRow(t *testing.T) {
	p := NewArgusParser(argusHeader, ",", "")
	row := "2024/03/15 13:45:30.000000,1.5,tcp,10.0.0.1,51234,->,93.184.216.34,443,FIN,10,2000"
	f, err := p.Parse([]byte(row))
	if err != nil {
		t.Fatal(err)
	}
	if f.SAddr.String() != "10.0.0.1" || f.DAddr.String() != "93.184.216.34" {
		t.Errorf("addrs = %v -> %v", f.SAddr, f.DAddr)
	}
	if f.SPort != 51234 || f.DPort != 443 {
		t.Errorf("ports = %d -> %d", f.SPort, f.DPort)
	}
	if f.Pkts != 10 || f.Bytes != 2000 {
		t.Errorf("pkts=%d bytes=%d", f.Pkts, f.Bytes)
	}
	if f.State != "FIN" {
		t.Errorf("State = %q", f.State)
	}
}

func TestArgusParserNumericProtoResolvesViaGopacket(t *testing.T) {
	p := NewArgusParser(argusHeader, ",", "")
	row := "2024/03/15 13:45:30.000000,0.0,6,10.0.0.1,0,->,10.0.0.2,0,,0,0"
	f, err := p.Parse([]byte(row))
	if err != nil {
		t.Fatal(err)
	}
	if f.Proto != "tcp" {
		t.Errorf("Proto = %q, want tcp for IANA protocol 6", f.Proto)
	}
}

func TestArgusParserMissingColumnsLeaveZeroValue(t *testing.T) {
	p := NewArgusParser("StartTime,Proto", ",", "")
	f, err := p.Parse([]byte("2024/03/15 13:45:30.000000,tcp"))
	if err != nil {
		t.Fatal(err)
	}
	if f.SPort != 0 || f.DPort != 0 {
		t.Errorf("expected zero ports for absent columns, got %d/%d", f.SPort, f.DPort)
	}
}
