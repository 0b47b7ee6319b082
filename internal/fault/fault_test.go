package fault

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	err := Newf(NotFound, "domain %s is not registered", "ghost.aint")

	kind, ok := KindOf(err)
	if !ok || kind != NotFound {
		t.Errorf("KindOf = (%v, %v), want (NotFound, true)", kind, ok)
	}

	// Classification survives wrapping.
	wrapped := fmt.Errorf("outer: %w", err)
	if !IsKind(wrapped, NotFound) {
		t.Error("IsKind failed on wrapped error")
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("KindOf classified a plain error")
	}
}

func TestWrapUnwraps(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("append message", cause)

	if !errors.Is(err, cause) {
		t.Error("wrapped cause not reachable via errors.Is")
	}
	if !IsKind(err, StorageUnavailable) {
		t.Error("Storage did not classify as StorageUnavailable")
	}
}

func TestFatal(t *testing.T) {
	if !StorageUnavailable.Fatal() {
		t.Error("StorageUnavailable should be fatal")
	}
	for _, kind := range []Kind{InvalidDomain, DuplicateDomain, NotFound, UnknownRecipient, UnknownMessage, TierDenied, RateLimited, ValidationError} {
		if kind.Fatal() {
			t.Errorf("%s should not be fatal", kind)
		}
	}
}
