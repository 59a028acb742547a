package utils

import (
	"testing"
)

func TestNormalizePhoneNumber(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"+919876543210", "+919876543210"},
		{"9876543210", "+919876543210"},      // default region
		{" 98765 43210 ", "+919876543210"},   // whitespace and spacing
		{"+1 650-253-0000", "+16502530000"},  // explicit country code wins
	}
	for _, c := range cases {
		got, err := NormalizePhoneNumber(c.in)
		if err != nil {
			t.Fatalf("NormalizePhoneNumber(%q): %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("NormalizePhoneNumber(%q): expected %q, got %q", c.in, c.want, got)
		}
	}

	for _, in := range []string{"", "abc", "123"} {
		if _, err := NormalizePhoneNumber(in); err == nil {
			t.Fatalf("NormalizePhoneNumber(%q): expected error", in)
		}
	}
}

func TestUniqueSlice(t *testing.T) {
	got := UniqueSlice([]int{3, 1, 3, 2, 1})
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("expected [3 1 2], got %v", got)
	}
}

func TestDereferencePtr(t *testing.T) {
	v := 7
	if got := DereferencePtr(&v); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
	if got := DereferencePtr[int](nil); got != 0 {
		t.Fatalf("expected zero value, got %d", got)
	}
	if got := DereferencePtr[int](nil, 5); got != 5 {
		t.Fatalf("expected default 5, got %d", got)
	}
}
