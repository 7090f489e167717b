package token

import (
	"strings"
	"testing"
)

func TestNewCounter_KnownEncoding(t *testing.T) {
	c, err := NewCounter("cl100k_base")
	if err != nil {
		t.Fatalf("NewCounter failed for cl100k_base: %v", err)
	}
	if c.Degraded() {
		t.Fatal("counter should not be degraded with a valid encoding")
	}

	n := c.Count("Hello, world!")
	if n <= 0 {
		t.Errorf("expected positive token count, got %d", n)
	}
}

func TestNewCounter_UnknownEncoding_Degrades(t *testing.T) {
	c, err := NewCounter("no-such-encoding")
	if err == nil {
		t.Fatal("expected error for unknown encoding")
	}
	if c == nil {
		t.Fatal("degraded counter must still be usable")
	}
	if !c.Degraded() {
		t.Error("counter should report degraded mode")
	}

	// Heuristic: len/4.
	text := strings.Repeat("a", 40)
	if got := c.Count(text); got != 10 {
		t.Errorf("degraded Count = %d, want 10", got)
	}
}

func TestCount_Deterministic(t *testing.T) {
	c, err := NewCounter("cl100k_base")
	if err != nil {
		t.Fatalf("NewCounter failed: %v", err)
	}

	text := "The quick brown fox jumps over the lazy dog."
	first := c.Count(text)
	for i := 0; i < 5; i++ {
		if got := c.Count(text); got != first {
			t.Fatalf("Count not deterministic: %d vs %d", got, first)
		}
	}
}

func TestCount_EmptyText(t *testing.T) {
	c, err := NewCounter("cl100k_base")
	if err != nil {
		t.Fatalf("NewCounter failed: %v", err)
	}
	if got := c.Count(""); got != 0 {
		t.Errorf("Count(\"\") = %d, want 0", got)
	}
}

func TestCount_ConcurrentUse(t *testing.T) {
	c, err := NewCounter("cl100k_base")
	if err != nil {
		t.Fatalf("NewCounter failed: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				c.Count("concurrent token counting should be safe")
			}
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}
}
