package core

import "testing"

func TestEngineCallLimiter(t *testing.T) {
	l := NewEngineCallLimiter(2)
	if err := l.Increment(); err != nil {
		t.Fatalf("first call: %v", err)
	}
	if err := l.Increment(); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if l.Remaining() != 0 {
		t.Errorf("remaining = %d", l.Remaining())
	}
	if err := l.Increment(); err == nil {
		t.Error("third call should exceed the limit")
	}
	if l.Count() != 3 {
		t.Errorf("count = %d", l.Count())
	}
}

func TestEngineCallLimiterUnlimited(t *testing.T) {
	l := NewEngineCallLimiter(0)
	for i := 0; i < 100; i++ {
		if err := l.Increment(); err != nil {
			t.Fatalf("unlimited limiter errored at %d: %v", i, err)
		}
	}
	if l.Remaining() != -1 {
		t.Errorf("unlimited remaining = %d", l.Remaining())
	}
}
