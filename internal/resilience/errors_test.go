package resilience

import (
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
)

func TestIsTransient_ExplicitTransientError(t *testing.T) {
	err := NewTransientError(errors.New("server overloaded"), 503)
	if !IsTransient(err) {
		t.Error("expected TransientError to be transient")
	}
}

func TestIsTransient_ErisWrapped(t *testing.T) {
	inner := NewTransientError(errors.New("rate limited"), 429)
	wrapped := eris.Wrap(eris.Wrap(inner, "all retries exhausted"), "download")
	if !IsTransient(wrapped) {
		t.Error("expected eris-wrapped TransientError to be transient")
	}
}

func TestIsTransient_NilError(t *testing.T) {
	if IsTransient(nil) {
		t.Error("nil error should not be transient")
	}
}

func TestIsTransient_RegularError(t *testing.T) {
	if IsTransient(errors.New("edgar: filing has no reportingOwner")) {
		t.Error("regular error should not be transient")
	}
}

func TestIsTransient_Syscall(t *testing.T) {
	for _, errno := range []syscall.Errno{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED} {
		if !IsTransient(fmt.Errorf("dial tcp: %w", errno)) {
			t.Errorf("%v should be transient", errno)
		}
	}
}

func TestIsTransient_NetworkTimeout(t *testing.T) {
	err := &net.DNSError{IsTimeout: true, Err: "timeout"}
	if !IsTransient(err) {
		t.Error("network timeout should be transient")
	}
}

func TestIsTransient_StringPatterns(t *testing.T) {
	for _, p := range []string{"connection reset by peer", "TLS handshake timeout", "unexpected EOF"} {
		if !IsTransient(errors.New(p)) {
			t.Errorf("%q should be transient", p)
		}
	}
}

func TestClassifyError(t *testing.T) {
	if got := ClassifyError(NewTransientError(errors.New("503"), 503)); got != ClassTransient {
		t.Errorf("got %q, want %q", got, ClassTransient)
	}
	if got := ClassifyError(errors.New("no transactions")); got != ClassPermanent {
		t.Errorf("got %q, want %q", got, ClassPermanent)
	}
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner, 502)
	if !errors.Is(te, inner) {
		t.Error("expected Unwrap to expose inner error")
	}
	if te.Error() != "inner" {
		t.Errorf("unexpected message %q", te.Error())
	}
}
