package domain

import (
	"errors"
	"testing"
)

func TestErrorWrapsCause(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := Transport("fetching gateway url", cause)

	if !errors.Is(err, cause) {
		t.Fatal("Transport error does not unwrap to its cause")
	}
	if err.Kind != KindTransport {
		t.Fatalf("Kind = %v, want %v", err.Kind, KindTransport)
	}
}

func TestErrorMessageWithoutCause(t *testing.T) {
	err := User("invalid url", nil)

	want := "user: invalid url"
	if err.Error() != want {
		t.Fatalf("Error() = %q, want %q", err.Error(), want)
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindTransport: "transport",
		KindProtocol:  "protocol",
		KindStorage:   "storage",
		KindUser:      "user",
		KindFatal:     "fatal",
		Kind(99):      "unknown",
	}

	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
