package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		// empty -> default
		{"", 10, 10},
		// valid ints
		{"42", 0, 42},
		{"-13", 1, -13},
		{"0012", 99, 12},
		// invalid -> default (no trim)
		{"x", 5, 5},
		{" 42", 7, 7},
		// overflow -> default
		{"999999999999999999999999", -1, -1},
	}

	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ n, lo, hi, want int }{
		{5, 1, 10, 5},
		{0, 1, 10, 1},
		{50, 1, 10, 10},
		{500, 1, 0, 500}, // open upper bound
	}
	for _, tc := range cases {
		if got := Clamp(tc.n, tc.lo, tc.hi); got != tc.want {
			t.Fatalf("Clamp(%d,%d,%d) = %d; want %d", tc.n, tc.lo, tc.hi, got, tc.want)
		}
	}
}

func TestNewPage(t *testing.T) {
	cases := []struct {
		name                 string
		number, size         int
		defSize, maxSize     int
		wantNumber, wantSize int
		wantOffset           int
	}{
		{"defaults", 0, 0, 20, 100, 1, 20, 0},
		{"third page", 3, 10, 20, 100, 3, 10, 20},
		{"capped size", 2, 1000, 20, 100, 2, 100, 100},
		{"negative number", -4, 5, 20, 100, 1, 5, 0},
		{"no cap", 1, 1000, 20, 0, 1, 1000, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := NewPage(tc.number, tc.size, tc.defSize, tc.maxSize)
			if p.Number != tc.wantNumber || p.Size != tc.wantSize || p.Offset() != tc.wantOffset {
				t.Fatalf("got %+v offset=%d", p, p.Offset())
			}
		})
	}
}

func TestTotalPages(t *testing.T) {
	cases := []struct {
		total int64
		size  int
		want  int
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{5, 0, 0},
	}
	for _, tc := range cases {
		if got := TotalPages(tc.total, tc.size); got != tc.want {
			t.Fatalf("TotalPages(%d,%d) = %d; want %d", tc.total, tc.size, got, tc.want)
		}
	}
}
