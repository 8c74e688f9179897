package errors

import (
	"fmt"
	"testing"
)

func TestNestError(t *testing.T) {
	err := New(ErrCodeUnknownDomain, "unknown domain")
	if err.Code != ErrCodeUnknownDomain {
		t.Errorf("expected code %s, got %s", ErrCodeUnknownDomain, err.Code)
	}

	cause := fmt.Errorf("underlying error")
	wrapped := Wrap(cause, ErrCodePersistenceFailed, "write failed")

	if wrapped.Unwrap() != cause {
		t.Error("Unwrap should return the cause")
	}

	if !Is(wrapped, ErrCodePersistenceFailed) {
		t.Error("Is should return true for matching code")
	}

	if Is(wrapped, ErrCodeDecodeFailed) {
		t.Error("Is should return false for non-matching code")
	}

	detailed := err.WithDetail("domain", "groups").WithDetail("count", 2)
	if detailed.Details["domain"] != "groups" {
		t.Error("WithDetail should add details")
	}
}

func TestIsThroughFmtWrap(t *testing.T) {
	inner := PermissionDenied("p1", "tokens")
	outer := fmt.Errorf("mutate: %w", inner)

	if !Is(outer, ErrCodePermissionDenied) {
		t.Error("Is should see codes through fmt.Errorf wrapping")
	}
	if GetCode(outer) != ErrCodePermissionDenied {
		t.Errorf("unexpected code %s", GetCode(outer))
	}
	if v, ok := Detail(outer, "domain"); !ok || v != "tokens" {
		t.Errorf("Detail returned %v, %v", v, ok)
	}
	if Is(nil, ErrCodeInternal) {
		t.Error("nil error must not match")
	}
	if Is(fmt.Errorf("plain"), "") {
		t.Error("empty code must not match plain errors")
	}
}

func TestErrorConstructors(t *testing.T) {
	err := PersistenceFailed("crow-nest", "patrols", fmt.Errorf("quota"))
	if err.Code != ErrCodePersistenceFailed {
		t.Errorf("expected code %s, got %s", ErrCodePersistenceFailed, err.Code)
	}
	if err.Details["key"] != "patrols" {
		t.Error("PersistenceFailed should include key detail")
	}

	err = RelayRunning(4242)
	if err.Details["pid"] != 4242 {
		t.Error("RelayRunning should include pid detail")
	}

	err = DecodeFailed("not json", nil)
	if err.Cause != nil {
		t.Error("DecodeFailed without cause should not wrap")
	}
}
