package gsheets

import "testing"

func TestColumnLetter(t *testing.T) {
	tests := []struct {
		n    int
		want string
	}{
		{1, "A"},
		{2, "B"},
		{26, "Z"},
		{27, "AA"},
		{28, "AB"},
		{52, "AZ"},
		{53, "BA"},
		{702, "ZZ"},
		{703, "AAA"},
	}
	for _, tt := range tests {
		if got := ColumnLetter(tt.n); got != tt.want {
			t.Errorf("ColumnLetter(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}

func TestRowRange(t *testing.T) {
	got := rowRange("Points", 3, 5)
	want := "Points!A3:E3"
	if got != want {
		t.Errorf("rowRange = %q, want %q", got, want)
	}

	got = rowRange("Sheet1", 10, 27)
	want = "Sheet1!A10:AA10"
	if got != want {
		t.Errorf("rowRange wide = %q, want %q", got, want)
	}
}

func TestParseRowNumber(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"Sheet1!A7:E7", 7},
		{"Points!AA12:AE12", 12},
		{"Sheet1!B3", 3},
		{"garbage", 0},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseRowNumber(tt.in); got != tt.want {
			t.Errorf("parseRowNumber(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}
