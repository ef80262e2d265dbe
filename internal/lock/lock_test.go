package lock

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestAcquireRecordsHolder(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "sessions", "main")

	l, err := Acquire(dir, "wppd")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = l.Release() })

	f, err := os.Open(filepath.Join(dir, "LOCK"))
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	got := readHolder(f)
	want := l.Holder()
	if got.PID != os.Getpid() || got.Owner != "wppd" || got.Host != want.Host {
		t.Errorf("recorded %+v, want %+v", got, want)
	}
	if d := want.Since.Sub(got.Since); d < 0 || d > time.Second {
		t.Errorf("since = %v, want about %v", got.Since, want.Since)
	}
}

func TestAcquireHeld(t *testing.T) {
	dir := t.TempDir()
	first, err := Acquire(dir, "wppd")
	if err != nil {
		t.Fatal(err)
	}

	_, err = Acquire(dir, "wppctl")
	if !errors.Is(err, ErrHeld) {
		t.Fatalf("second Acquire err = %v, want ErrHeld", err)
	}
	var held *HeldError
	if !errors.As(err, &held) {
		t.Fatalf("err %T is not *HeldError", err)
	}
	if held.Holder.Owner != "wppd" || held.Holder.PID != os.Getpid() {
		t.Errorf("holder = %+v", held.Holder)
	}
	if !strings.Contains(err.Error(), "wppd (PID ") {
		t.Errorf("message = %q", err)
	}

	if err := first.Release(); err != nil {
		t.Fatal(err)
	}
	again, err := Acquire(dir, "wppctl")
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	_ = again.Release()
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	if _, held := Probe(dir); held {
		t.Error("no lock file, but Probe reports held")
	}

	l, err := Acquire(dir, "wppd")
	if err != nil {
		t.Fatal(err)
	}
	h, held := Probe(dir)
	if !held || h.Owner != "wppd" || h.Since.IsZero() {
		t.Errorf("Probe = %+v, %v", h, held)
	}

	_ = l.Release()
	if _, held := Probe(dir); held {
		t.Error("Probe reports held after Release")
	}
}

func TestReleaseTwiceAndNil(t *testing.T) {
	var none *Lock
	if err := none.Release(); err != nil {
		t.Errorf("nil Release = %v", err)
	}

	l, err := Acquire(t.TempDir(), "wppd")
	if err != nil {
		t.Fatal(err)
	}
	for i := range 2 {
		if err := l.Release(); err != nil {
			t.Errorf("Release #%d = %v", i+1, err)
		}
	}
}

func TestHolderString(t *testing.T) {
	tests := []struct {
		h    Holder
		want string
	}{
		{Holder{PID: 7}, "PID 7"},
		{Holder{PID: 7, Owner: "wppd"}, "wppd (PID 7)"},
		{Holder{PID: 7, Owner: "wppd", Host: "box"}, "wppd (PID 7) on box"},
	}
	for _, tt := range tests {
		if got := tt.h.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.h, got, tt.want)
		}
	}
}
