package utils

import (
	"fmt"
	"testing"
)

func TestDeref(t *testing.T) {
	if got := Deref(Ptr(int64(30)), 60); got != 30 {
		t.Fatalf("expected 30, got %d", got)
	}
	if got := Deref[int64](nil, 60); got != 60 {
		t.Fatalf("expected fallback 60, got %d", got)
	}
	if got := Deref(nil, "fallback"); got != "fallback" {
		t.Fatalf("expected fallback string, got %s", got)
	}
}

func TestIsPermanent(t *testing.T) {
	perm := PermError("access denied writing s3://bucket/key")
	if !IsPermanent(perm) {
		t.Fatal("PermError should be permanent")
	}
	if !IsPermanent(fmt.Errorf("error uploading: %w", perm)) {
		t.Fatal("wrapped PermError should still be permanent")
	}
	if IsPermanent(fmt.Errorf("connection refused")) {
		t.Fatal("plain error should not be permanent")
	}
	if IsPermanent(nil) {
		t.Fatal("nil should not be permanent")
	}
}
