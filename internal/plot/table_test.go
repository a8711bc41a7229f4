package plot

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecodeTable_Split(t *testing.T) {
	raw := []byte(`{
		"index": ["('Generator', 'wind')", "('Generator', 'gas')"],
		"columns": [2030, 2040],
		"data": [[12.5, null], [3, 4.123456789]]
	}`)
	tbl, err := DecodeTable(raw)
	if err != nil {
		t.Fatalf("DecodeTable() error = %v", err)
	}

	if diff := cmp.Diff([]string{"2030", "2040"}, tbl.Columns); diff != "" {
		t.Errorf("columns mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"('Generator', 'wind')", "('Generator', 'gas')"}, tbl.Index); diff != "" {
		t.Errorf("index mismatch (-want +got):\n%s", diff)
	}
	cells := []struct {
		row, col int
		want     string
	}{
		{0, 0, "12.5"},
		{0, 1, ""},
		{1, 1, "4.12346"},
		{5, 0, ""},
	}
	for _, c := range cells {
		if got := tbl.Cell(c.row, c.col); got != c.want {
			t.Errorf("Cell(%d, %d) = %q, want %q", c.row, c.col, got, c.want)
		}
	}
}

func TestDecodeTable_Series(t *testing.T) {
	tbl, err := DecodeTable([]byte(`{"solar": 2, "gas": 1.5, "wind": 3}`))
	if err != nil {
		t.Fatalf("DecodeTable() error = %v", err)
	}
	if diff := cmp.Diff([]string{"gas", "solar", "wind"}, tbl.Index); diff != "" {
		t.Errorf("series should be ordered by key (-want +got):\n%s", diff)
	}
	if tbl.Len() != 3 || tbl.Columns[0] != SeriesColumn || tbl.Cell(0, 0) != "1.5" {
		t.Errorf("unexpected table %+v", tbl)
	}
}

func TestDecodeTable_Rejects(t *testing.T) {
	tests := map[string]string{
		"not an object":      `[1, 2]`,
		"null":               `null`,
		"ragged frame":       `{"index": ["a"], "columns": ["x", "y"], "data": [[1]]}`,
		"index rows differ":  `{"index": ["a", "b"], "columns": ["x"], "data": [[1]]}`,
		"nested series item": `{"wind": {"2030": 1}}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodeTable([]byte(raw)); err == nil {
				t.Error("expected an error")
			}
		})
	}
}
