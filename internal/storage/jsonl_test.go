package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadAll_NonExistentFile(t *testing.T) {
	pubs, err := ReadAll("/nonexistent/path/pubs.jsonl")
	if err != nil {
		t.Fatalf("ReadAll() error = %v (should return nil for nonexistent file)", err)
	}
	if len(pubs) != 0 {
		t.Errorf("ReadAll() returned %v, want nil or empty slice", pubs)
	}
}

func TestWriteAll_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubs.jsonl")
	want := testPubs()

	if err := WriteAll(path, want); err != nil {
		t.Fatalf("WriteAll() error = %v", err)
	}
	got, err := ReadAll(path)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	data, _ := os.ReadFile(path)
	if n := strings.Count(string(data), "\n"); n != len(want) {
		t.Errorf("file has %d lines, want %d", n, len(want))
	}
}

func TestReadAll_InvalidLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pubs.jsonl")
	content := `{"key":"A","type":"misc","title":"t","authors":null,"year":2020,"contributor":"X"}` + "\n\nnot json\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	_, err := ReadAll(path)
	if err == nil || !strings.Contains(err.Error(), "line 3") {
		t.Errorf("ReadAll() error = %v, want a line 3 parse error", err)
	}
}

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	if err := Encode(&buf, testPubs()[1:2]); err != nil {
		t.Fatal(err)
	}
	want := `{"key":"Trung2022Graph","type":"inproceedings","title":"Graph Signal Processing for Sensor Networks","authors":[{"first":"Linh Trung","last":"Nguyen"}],"venue":"Proc. ATC","year":2022,"contributor":"NguyenLinhTrung"}` + "\n"
	if buf.String() != want {
		t.Errorf("Encode() =\n%s\nwant\n%s", buf.String(), want)
	}
}

func TestFind(t *testing.T) {
	pubs := testPubs()
	if i, ok := FindByKey(pubs, "Son2022Book"); !ok || i != 2 {
		t.Errorf("FindByKey() = %d, %v", i, ok)
	}
	if i, ok := FindByDOI(pubs, "10.1109/access.2023.1"); !ok || i != 0 {
		t.Errorf("FindByDOI() = %d, %v", i, ok)
	}
	if _, ok := FindByDOI(pubs, ""); ok {
		t.Error("FindByDOI(\"\") should not match")
	}
}
