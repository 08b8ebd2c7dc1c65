package render

import (
	"context"
	"errors"
	"testing"
)

// fakeStarter hands out cancelable contexts in place of Chrome processes.
type fakeStarter struct {
	started  int
	browsers []context.CancelFunc
	fail     error
}

func (f *fakeStarter) start() (context.Context, context.CancelFunc, context.CancelFunc, error) {
	if f.fail != nil {
		return nil, nil, nil, f.fail
	}
	f.started++
	ctx, cancel := context.WithCancel(context.Background())
	f.browsers = append(f.browsers, cancel)
	return ctx, cancel, func() {}, nil
}

func TestBrowser_ReusedWhileAlive(t *testing.T) {
	fs := &fakeStarter{}
	r := NewPDFRenderer(nil, PDFConfig{})
	r.start = fs.start

	first, err := r.browser()
	if err != nil {
		t.Fatal(err)
	}
	second, err := r.browser()
	if err != nil {
		t.Fatal(err)
	}
	if first != second || fs.started != 1 {
		t.Errorf("started %d browsers for two articles, want 1", fs.started)
	}
}

func TestBrowser_RestartsAfterCrash(t *testing.T) {
	fs := &fakeStarter{}
	r := NewPDFRenderer(nil, PDFConfig{})
	r.start = fs.start

	dead, err := r.browser()
	if err != nil {
		t.Fatal(err)
	}
	fs.browsers[0]() // the browser process went away mid-batch

	next, err := r.browser()
	if err != nil {
		t.Fatal(err)
	}
	if fs.started != 2 {
		t.Fatalf("started %d browsers, want 2", fs.started)
	}
	if next == dead || next.Err() != nil {
		t.Error("renderer kept the dead browser")
	}

	if err := r.Close(); err != nil {
		t.Fatal(err)
	}
	if next.Err() == nil {
		t.Error("Close left the browser running")
	}
}

func TestBrowser_StartFailureIsNotCached(t *testing.T) {
	fs := &fakeStarter{fail: errors.New("chrome not found")}
	r := NewPDFRenderer(nil, PDFConfig{})
	r.start = fs.start

	if _, err := r.browser(); err == nil {
		t.Fatal("expected start error")
	}
	fs.fail = nil
	if _, err := r.browser(); err != nil {
		t.Fatalf("second attempt: %v", err)
	}
	if fs.started != 1 {
		t.Errorf("started = %d, want 1", fs.started)
	}
}
