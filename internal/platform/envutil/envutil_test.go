package envutil

import (
	"testing"
	"time"
)

func TestIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_INT", "not-a-number")
	if got := Int("ENVUTIL_TEST_INT", 42); got != 42 {
		t.Fatalf("Int fallback = %d, want 42", got)
	}
	t.Setenv("ENVUTIL_TEST_INT", "7")
	if got := Int("ENVUTIL_TEST_INT", 42); got != 7 {
		t.Fatalf("Int = %d, want 7", got)
	}
}

func TestFloat(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_FLOAT", "0.85")
	if got := Float("ENVUTIL_TEST_FLOAT", 0.5); got != 0.85 {
		t.Fatalf("Float = %v, want 0.85", got)
	}
	t.Setenv("ENVUTIL_TEST_FLOAT", "")
	if got := Float("ENVUTIL_TEST_FLOAT", 0.5); got != 0.5 {
		t.Fatalf("Float fallback = %v, want 0.5", got)
	}
}

func TestBool(t *testing.T) {
	cases := []struct {
		raw  string
		def  bool
		want bool
	}{
		{"1", false, true},
		{"yes", false, true},
		{"off", true, false},
		{"", true, true},
		{"maybe", false, false},
	}
	for _, tc := range cases {
		t.Setenv("ENVUTIL_TEST_BOOL", tc.raw)
		if got := Bool("ENVUTIL_TEST_BOOL", tc.def); got != tc.want {
			t.Fatalf("Bool(%q, %v) = %v, want %v", tc.raw, tc.def, got, tc.want)
		}
	}
}

func TestDurationRejectsNegative(t *testing.T) {
	t.Setenv("ENVUTIL_TEST_DUR", "-5s")
	if got := Duration("ENVUTIL_TEST_DUR", time.Minute); got != time.Minute {
		t.Fatalf("Duration = %v, want fallback 1m", got)
	}
	t.Setenv("ENVUTIL_TEST_DUR", "90s")
	if got := Duration("ENVUTIL_TEST_DUR", time.Minute); got != 90*time.Second {
		t.Fatalf("Duration = %v, want 90s", got)
	}
}
