package cli

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func newTestOutput(jsonMode bool) (*Output, *bytes.Buffer, *bytes.Buffer) {
	var w, errW bytes.Buffer
	return &Output{jsonMode: jsonMode, w: &w, errW: &errW}, &w, &errW
}

func TestPrint_Table(t *testing.T) {
	out, w, _ := newTestOutput(false)

	out.Print([]string{"NUMBER", "STATUS"}, [][]string{{"ORD-1", "PENDING"}}, nil)

	got := w.String()
	if !strings.Contains(got, "NUMBER") || !strings.Contains(got, "ORD-1") {
		t.Errorf("table output = %q, want headers and row", got)
	}
}

func TestPrint_JSONMode(t *testing.T) {
	out, w, _ := newTestOutput(true)

	out.Print([]string{"NUMBER"}, nil, map[string]string{"number": "ORD-1"})

	var decoded map[string]string
	if err := json.Unmarshal(w.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if decoded["number"] != "ORD-1" {
		t.Errorf("decoded = %v", decoded)
	}
}

func TestPrint_EmptyResult(t *testing.T) {
	out, w, errW := newTestOutput(false)

	out.Print([]string{"NUMBER"}, nil, nil)

	// Nothing on stdout, the marker goes to stderr.
	if w.Len() != 0 {
		t.Errorf("stdout = %q, want empty", w.String())
	}
	if !strings.Contains(errW.String(), "nothing found") {
		t.Errorf("stderr = %q, want empty-result marker", errW.String())
	}
}
