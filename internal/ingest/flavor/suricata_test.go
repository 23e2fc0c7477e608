package flavor

import (
	"testing"

	"github.com/flowprofiler/flowprofiler/internal/flow"
)

const suricataFlow = `{"timestamp":"2024-03-15T13:45:30.123456+00:00","flow_id":123456,"event_type":"flow","src_ip":"10.0.0.1","src_port":51234,"dest_ip":"93.184.216.34","dest_port":443,"proto":"TCP","app_proto":"tls","flow":{"pkts_toserver":5,"pkts_toclient":7,"bytes_toserver":500,"bytes_toclient":7000,"start":"2024-03-15T13:45:30.123456+00:00","end":"2024-03-15T13:45:32.123456+00:00","age":2,"state":"established"}}`

func TestDetectRecognizesSuricataFlow(t *testing.T) {
	f, err := Detect([]byte(suricataFlow))
	if err != nil {
		t.Fatal(err)
	}
	if f != Suricata {
		t.Fatalf("Detect() = %v, want Suricata", f)
	}
}

func TestSuricataParserParsesFlowEvent(t *testing.T) {
	f, err := SuricataParser{}.Parse([]byte(suricataFlow))
	if err != nil {
		t.Fatal(err)
	}
	if f.SAddr.String() != "10.0.0.1" || f.DAddr.String() != "93.184.216.34" {
		t.Errorf("addrs = %v -> %v", f.SAddr, f.DAddr)
	}
	if f.SPort != 51234 || f.DPort != 443 {
		t.Errorf("ports = %d -> %d", f.SPort, f.DPort)
	}
	if f.Pkts != 12 || f.Bytes != 7500 {
		t.Errorf("pkts=%d bytes=%d, want 12/7500", f.Pkts, f.Bytes)
	}
	if !f.Valid() {
		t.Errorf("flow fails invariants: %+v", f)
	}
	if f.AppProto != "tls" {
		t.Errorf("AppProto = %q", f.AppProto)
	}
	if f.Proto != "tcp" {
		t.Errorf("Proto = %q, want lower-cased %q", f.Proto, "tcp")
	}
	if f.RecordType != flow.RecordConn {
		t.Errorf("RecordType = %v, want conn (a Suricata flow event is a connection summary and must be aggregated)", f.RecordType)
	}
	if !f.RecordType.Feeds() {
		t.Errorf("RecordType.Feeds() = false, want true: Suricata flow events must reach the symbolizer/aggregators, not be dropped")
	}
}
