package output

import (
	"strings"
	"testing"
)

type tableRow struct {
	Name string
	ID   uint32
}

func TestTableFormatterSliceOfStructs(t *testing.T) {
	f := NewFormatter("table")
	got := f.Format([]tableRow{
		{Name: "filter_tbl", ID: 1},
		{Name: "fwd_tbl", ID: 2},
	})

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3:\n%s", len(lines), got)
	}
	if !strings.HasPrefix(lines[0], "NAME") || !strings.Contains(lines[0], "ID") {
		t.Fatalf("header = %q", lines[0])
	}
	if !strings.Contains(lines[1], "filter_tbl") || !strings.Contains(lines[2], "fwd_tbl") {
		t.Fatalf("rows missing:\n%s", got)
	}
}

func TestTableFormatterEmptySlice(t *testing.T) {
	got := NewFormatter("table").Format([]tableRow{})
	if got != "No entries found.\n" {
		t.Fatalf("got %q", got)
	}
}

func TestTableFormatterSingleStruct(t *testing.T) {
	got := NewFormatter("").Format(tableRow{Name: "filter_tbl", ID: 9})
	if !strings.Contains(got, "Name:") || !strings.Contains(got, "filter_tbl") {
		t.Fatalf("got %q", got)
	}
}

func TestJSONFormatter(t *testing.T) {
	got := NewFormatter("json").Format(tableRow{Name: "x", ID: 3})
	if !strings.Contains(got, `"Name": "x"`) {
		t.Fatalf("got %q", got)
	}
	if !strings.HasSuffix(got, "\n") {
		t.Fatal("json output should end with newline")
	}
}

func TestYAMLFormatter(t *testing.T) {
	got := NewFormatter("YAML").Format(tableRow{Name: "x", ID: 3})
	if !strings.Contains(got, "name: x") {
		t.Fatalf("got %q", got)
	}
}
