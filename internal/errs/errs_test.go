package errs

import (
	"errors"
	"testing"
)

var errClass = New("remote write failed")

func TestMark(t *testing.T) {
	cause := errors.New("connection reset")
	marked := Mark(cause, errClass)

	if !Is(marked, errClass) {
		t.Error("marked error should match the mark")
	}
	if errors.Is(marked, errClass) {
		t.Error("stdlib errors.Is does not see marks; use errs.Is")
	}
	if !errors.Is(marked, cause) {
		t.Error("marked error should still match its cause")
	}
	if Mark(nil, errClass) != errClass {
		t.Error("Mark(nil) should return the mark")
	}
}

func TestWrap(t *testing.T) {
	if Wrap(nil, "x") != nil {
		t.Error("Wrap(nil) should be nil")
	}
	if Wrapf(nil, "x %d", 1) != nil {
		t.Error("Wrapf(nil) should be nil")
	}

	cause := errors.New("boom")
	wrapped := Wrapf(Mark(cause, errClass), "insert order %s", "o-1")
	if wrapped.Error() != "insert order o-1: boom" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
	if !Is(wrapped, errClass) || !Is(wrapped, cause) {
		t.Error("wrapping should keep both mark and cause")
	}
}
