package lock

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestAcquire_Exclusive(t *testing.T) {
	dir := t.TempDir()
	l, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if l.Info().RunID == "" || l.Info().PID != os.Getpid() {
		t.Errorf("unexpected payload: %+v", l.Info())
	}

	if _, err := Acquire(dir); !errors.Is(err, ErrLocked) {
		t.Fatalf("second Acquire: err = %v, want ErrLocked", err)
	}

	info, err := Read(dir)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if info.RunID != l.Info().RunID {
		t.Errorf("Read run id = %q, want %q", info.RunID, l.Info().RunID)
	}

	if err := l.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release: %v", err)
	}
	if _, err := Read(dir); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Read after release: err = %v", err)
	}

	again, err := Acquire(dir)
	if err != nil {
		t.Fatalf("Acquire after release: %v", err)
	}
	defer again.Release()
	if again.Info().RunID == l.Info().RunID {
		t.Error("run ids should differ between sessions")
	}
}

func TestAcquire_StaleMarkerStillLocks(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Acquire(dir); !errors.Is(err, ErrLocked) {
		t.Errorf("err = %v, want ErrLocked", err)
	}
}

func TestAcquire_MissingDir(t *testing.T) {
	_, err := Acquire(filepath.Join(t.TempDir(), "nope"))
	if err == nil || errors.Is(err, ErrLocked) {
		t.Errorf("err = %v, want a non-lock error", err)
	}
}

func TestRelease_Nil(t *testing.T) {
	var l *Lock
	if err := l.Release(); err != nil {
		t.Errorf("nil Release: %v", err)
	}
}
