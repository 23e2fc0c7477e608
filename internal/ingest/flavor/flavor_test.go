package flavor

import "testing"

func TestDetectCommasMeansArgus(t *testing.T) {
	f, err := Detect([]byte("2024/03/15,1.5,tcp,10.0.0.1,51234"))
	if err != nil {
		t.Fatal(err)
	}
	if f != Argus {
		t.Fatalf("Detect() = %v, want Argus", f)
	}
}

func TestDetectTabsMeansZeekTabs(t *testing.T) {
	f, err := Detect([]byte("1538080852.403669\tCewh6D2USNVtfcLxZe\t192.168.2.12"))
	if err != nil {
		t.Fatal(err)
	}
	if f != ZeekTabs {
		t.Fatalf("Detect() = %v, want ZeekTabs", f)
	}
}

func TestDetectTieOrZeroFails(t *testing.T) {
	if _, err := Detect([]byte("no delimiters here")); err != ErrUnknownFlavor {
		t.Errorf("err = %v, want ErrUnknownFlavor for zero-of-both", err)
	}
	if _, err := Detect([]byte("a,b\tc")); err != ErrUnknownFlavor {
		t.Errorf("err = %v, want ErrUnknownFlavor for a tie", err)
	}
}

func TestDetectMapAlwaysZeek(t *testing.T) {
	if f := DetectMap(map[string]any{"type": "conn"}); f != Zeek {
		t.Errorf("DetectMap() = %v, want Zeek", f)
	}
}
