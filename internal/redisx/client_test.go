package redisx

import (
	"testing"
	"time"
)

func TestNew_AppliesTimeouts(t *testing.T) {
	t.Parallel()
	r := New("localhost:6379")
	defer r.Close()

	opts := r.Options()
	if opts.ReadTimeout != 2*time.Second {
		t.Fatalf("expected read timeout 2s, got %v", opts.ReadTimeout)
	}
	if opts.WriteTimeout != 2*time.Second {
		t.Fatalf("expected write timeout 2s, got %v", opts.WriteTimeout)
	}
}
