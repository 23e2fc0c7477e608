package lines

import (
	"bytes"
	"compress/gzip"
	"io"
	"strings"
	"testing"
)

func TestReaderPlainText(t *testing.T) {
	r, err := Open(strings.NewReader("one\ntwo\nthree\n"))
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for {
		ln, err := r.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatal(err)
		}
		got = append(got, string(ln))
	}
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestReaderTransparentGzip(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	zw.Write([]byte("alpha\nbeta\n"))
	zw.Close()

	r, err := Open(&buf)
	if err != nil {
		t.Fatal(err)
	}
	ln, err := r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if string(ln) != "alpha" {
		t.Errorf("first line = %q, want alpha", ln)
	}
	ln, err = r.Next()
	if err != nil {
		t.Fatal(err)
	}
	if string(ln) != "beta" {
		t.Errorf("second line = %q, want beta", ln)
	}
}

func TestOpenEmptyStream(t *testing.T) {
	_, err := Open(strings.NewReader(""))
	if err != ErrEmpty {
		t.Fatalf("err = %v, want ErrEmpty", err)
	}
}
