package calc

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{name: "empty", in: "", want: nil},
		{name: "blank", in: "   ", want: nil},
		{name: "single", in: "A1", want: []string{"A1"}},
		{name: "simple list", in: "1, 2 ,3", want: []string{"1", "2", "3"}},
		{name: "nested call kept whole", in: "IF(A1>0,B1,0),C1", want: []string{"IF(A1>0,B1,0)", "C1"}},
		{name: "deep nesting", in: "SUM(MAX(1,2),MIN(3,ABS(-4))),5", want: []string{"SUM(MAX(1,2),MIN(3,ABS(-4)))", "5"}},
		{name: "trailing blank dropped", in: "1,2, ", want: []string{"1", "2"}},
		{name: "middle blank kept", in: "1,,2", want: []string{"1", "", "2"}},
		{name: "range", in: "A1:B2,C3", want: []string{"A1:B2", "C3"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, SplitArgs(tt.in)); diff != "" {
				t.Errorf("SplitArgs(%q) mismatch (-want +got):\n%s", tt.in, diff)
			}
		})
	}
}

func TestMatchParen(t *testing.T) {
	tests := []struct {
		in   string
		open int
		want int
		ok   bool
	}{
		{"SUM(1)", 3, 5, true},
		{"SUM(IF(1,2),3)", 3, 13, true},
		{"SUM(1)+MAX(2)", 3, 5, true},
		{"SUM(A1:A2", 3, -1, false},
		{"SUM(IF(1,2)", 3, -1, false},
	}
	for _, tt := range tests {
		got, ok := matchParen(tt.in, tt.open)
		if got != tt.want || ok != tt.ok {
			t.Errorf("matchParen(%q, %d) = %d, %v; want %d, %v", tt.in, tt.open, got, ok, tt.want, tt.ok)
		}
	}
}
