package models

import (
	"errors"
	"fmt"
	"io"
	"testing"
)

func TestChannelErrorUnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("session file: %w", &ChannelError{
		Class: "file",
		Op:    "read",
		Err:   ErrUnauthenticated,
	})

	if !errors.Is(err, ErrUnauthenticated) {
		t.Error("wrapped channel error should match ErrUnauthenticated")
	}
	var chErr *ChannelError
	if !errors.As(err, &chErr) {
		t.Fatal("errors.As failed to find *ChannelError")
	}
	if chErr.Class != "file" || chErr.Op != "read" {
		t.Errorf("extracted = %+v", chErr)
	}
}

func TestChannelErrorOrdinaryFailure(t *testing.T) {
	err := &ChannelError{Class: "network", Op: "dial", Err: io.ErrUnexpectedEOF}

	if errors.Is(err, ErrUnauthenticated) {
		t.Error("plain transport failure must not look unauthenticated")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Error("cause lost through Unwrap")
	}
	if got := err.Error(); got != "channel network dial: unexpected EOF" {
		t.Errorf("Error() = %q", got)
	}
}

func TestSnapshotErrorMessages(t *testing.T) {
	withStatus := &SnapshotError{Class: "file", Status: 503, Err: errors.New("decode body")}
	if got := withStatus.Error(); got != "snapshot file: status 503: decode body" {
		t.Errorf("Error() = %q", got)
	}

	noStatus := &SnapshotError{Class: "network", Err: io.EOF}
	if got := noStatus.Error(); got != "snapshot network: EOF" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(noStatus, io.EOF) {
		t.Error("cause lost through Unwrap")
	}
}

func TestControlErrorMessage(t *testing.T) {
	err := &ControlError{Class: "file", Op: "start", Reason: "already running"}
	if got := err.Error(); got != "control start file: already running" {
		t.Errorf("Error() = %q", got)
	}

	var ctl *ControlError
	if !errors.As(fmt.Errorf("request: %w", err), &ctl) {
		t.Fatal("errors.As failed to find *ControlError")
	}
	if ctl.Fatal {
		t.Error("Fatal should default to false")
	}
}

func TestInternalInvariantErrorMessage(t *testing.T) {
	err := &InternalInvariantError{Detail: "negative log size"}
	if got := err.Error(); got != "internal invariant violated: negative log size" {
		t.Errorf("Error() = %q", got)
	}
}
