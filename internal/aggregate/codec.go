package aggregate

import "encoding/json"

// Counter fields (SrcIPs, DstIPs, SrcPorts, DstPorts) and OutTuples are
// stored as JSON blobs inside hash fields, per the spec's data model —
// a typed Go value in memory, JSON only at the Store boundary.

func encodeCounters(m map[string]int64) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		// map[string]int64 is always marshalable.
		panic(err)
	}
	return string(b)
}

func decodeCounters(s string) (map[string]int64, error) {
	m := make(map[string]int64)
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}

func encodeTuples(m map[string]string) string {
	if len(m) == 0 {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		panic(err)
	}
	return string(b)
}

func decodeTuples(s string) (map[string]string, error) {
	m := make(map[string]string)
	if s == "" {
		return m, nil
	}
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		return nil, err
	}
	return m, nil
}
