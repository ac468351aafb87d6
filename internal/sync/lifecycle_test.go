package sync

import (
	"errors"
	"testing"
)

func TestLifecycleReplaceClosesPrior(t *testing.T) {
	var l Lifecycle
	var closed []string

	open := func(name string) func() (func(), error) {
		return func() (func(), error) {
			return func() { closed = append(closed, name) }, nil
		}
	}

	if err := l.Replace(open("first")); err != nil {
		t.Fatal(err)
	}
	if err := l.Replace(open("second")); err != nil {
		t.Fatal(err)
	}
	if len(closed) != 1 || closed[0] != "first" {
		t.Fatalf("closed = %v, want [first]", closed)
	}
	if l.Open() != 1 {
		t.Errorf("Open() = %d, want 1", l.Open())
	}

	if !l.Close() {
		t.Error("Close() = false with an active handle")
	}
	if l.Close() {
		t.Error("second Close() = true")
	}
	if len(closed) != 2 {
		t.Errorf("teardown ran %d times, want 2", len(closed))
	}
	if l.Active() || l.Open() != 0 {
		t.Error("lifecycle still active after Close")
	}
}

func TestLifecycleCloseBeforeReplace(t *testing.T) {
	var l Lifecycle
	if l.Close() {
		t.Error("Close() on zero Lifecycle = true")
	}
}

func TestLifecycleFailedOpenHoldsNothing(t *testing.T) {
	var l Lifecycle
	closed := 0
	_ = l.Replace(func() (func(), error) { return func() { closed++ }, nil })

	err := l.Replace(func() (func(), error) { return nil, errors.New("refused") })
	if err == nil {
		t.Fatal("expected error")
	}
	if closed != 1 {
		t.Errorf("prior handle closed %d times, want 1", closed)
	}
	if l.Active() {
		t.Error("failed open left a handle")
	}
}
