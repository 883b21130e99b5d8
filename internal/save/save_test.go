package save

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/local/pagedesk/internal/storage"
)

type fakeDest struct {
	written  []byte
	writeErr error
	closed   bool
}

func (d *fakeDest) Write(_ context.Context, data []byte) error {
	if d.writeErr != nil {
		return d.writeErr
	}
	d.written = append([]byte(nil), data...)
	return nil
}

func (d *fakeDest) Close() error { d.closed = true; return nil }

func (d *fakeDest) Describe() string { return "fake://dest" }

type fakeProvider struct {
	available  bool
	acquireErr error
	dest       *fakeDest
	acquired   int
}

func (p *fakeProvider) Available() bool { return p.available }

func (p *fakeProvider) Acquire(context.Context, string) (Destination, error) {
	p.acquired++
	if p.acquireErr != nil {
		return nil, p.acquireErr
	}
	return p.dest, nil
}

type fakeDownload struct {
	name  string
	data  []byte
	err   error
	calls int
}

func (d *fakeDownload) Download(name string, data []byte) error {
	d.calls++
	if d.err != nil {
		return d.err
	}
	d.name = name
	d.data = data
	return nil
}

func mutateOK(out []byte, counter *int) MutateFunc {
	return func() ([]byte, error) {
		*counter++
		return out, nil
	}
}

func TestRunWritesToAcquiredDestination(t *testing.T) {
	dest := &fakeDest{}
	prov := &fakeProvider{available: true, dest: dest}
	var mutations int

	res, err := Run(context.Background(), Request{
		Filename: "out",
		Mutate:   mutateOK([]byte("pdf-bytes"), &mutations),
		Provider: prov,
		Download: &fakeDownload{},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if mutations != 1 {
		t.Fatalf("mutator ran %d times, want 1", mutations)
	}
	if string(dest.written) != "pdf-bytes" {
		t.Fatalf("destination got %q", dest.written)
	}
	if !dest.closed {
		t.Fatal("destination must be closed after writing")
	}
	if res.Destination != "handle" || res.Filename != "out.pdf" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunNoCapabilityUsesDownload(t *testing.T) {
	prov := &fakeProvider{available: false}
	dl := &fakeDownload{}
	var mutations int

	res, err := Run(context.Background(), Request{
		Filename: "report.PDF",
		Mutate:   mutateOK([]byte("x"), &mutations),
		Provider: prov,
		Download: dl,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if prov.acquired != 0 {
		t.Fatal("acquire must never run when capability is absent")
	}
	if dl.calls != 1 || dl.name != "report.PDF" {
		t.Fatalf("download not used as expected: %+v", dl)
	}
	if res.Destination != "download" {
		t.Fatalf("unexpected destination: %q", res.Destination)
	}
}

func TestRunCancelledSkipsEverything(t *testing.T) {
	prov := &fakeProvider{available: true, acquireErr: ErrCancelled}
	dl := &fakeDownload{}
	var mutations int

	_, err := Run(context.Background(), Request{
		Filename: "out",
		Mutate:   mutateOK([]byte("x"), &mutations),
		Provider: prov,
		Download: dl,
	})
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
	if mutations != 0 {
		t.Fatal("mutator must never run after cancellation")
	}
	if dl.calls != 0 {
		t.Fatal("cancellation must not fall back to download")
	}
}

func TestRunAcquireFailureFallsBack(t *testing.T) {
	prov := &fakeProvider{available: true, acquireErr: fmt.Errorf("handle backend down")}
	dl := &fakeDownload{}
	var mutations int

	res, err := Run(context.Background(), Request{
		Filename: "out",
		Mutate:   mutateOK([]byte("x"), &mutations),
		Provider: prov,
		Download: dl,
	})
	if err != nil {
		t.Fatalf("non-cancellation acquire failure must not fail the save: %v", err)
	}
	if mutations != 1 || dl.calls != 1 {
		t.Fatalf("expected mutation + download fallback, got %d/%d", mutations, dl.calls)
	}
	if res.Destination != "download" {
		t.Fatalf("unexpected destination: %q", res.Destination)
	}
}

func TestRunMutationErrorAborts(t *testing.T) {
	dest := &fakeDest{}
	prov := &fakeProvider{available: true, dest: dest}
	dl := &fakeDownload{}

	wantErr := fmt.Errorf("mutation exploded")
	_, err := Run(context.Background(), Request{
		Filename: "out",
		Mutate:   func() ([]byte, error) { return nil, wantErr },
		Provider: prov,
		Download: dl,
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected mutation error, got %v", err)
	}
	if dest.written != nil || dl.calls != 0 {
		t.Fatal("no bytes may be delivered after a mutation failure")
	}
	if !dest.closed {
		t.Fatal("an acquired destination must still be released")
	}
}

func TestRunWriteFailureClosesDestination(t *testing.T) {
	dest := &fakeDest{writeErr: fmt.Errorf("disk full")}
	prov := &fakeProvider{available: true, dest: dest}
	var mutations int

	_, err := Run(context.Background(), Request{
		Filename: "out",
		Mutate:   mutateOK([]byte("x"), &mutations),
		Provider: prov,
		Download: &fakeDownload{},
	})
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected WriteError, got %v", err)
	}
	if !dest.closed {
		t.Fatal("destination must be closed even when the write fails")
	}
}

func TestRunDownloadFailureIsWriteError(t *testing.T) {
	dl := &fakeDownload{err: fmt.Errorf("pipe broke")}
	var mutations int

	_, err := Run(context.Background(), Request{
		Filename: "out",
		Mutate:   mutateOK([]byte("x"), &mutations),
		Download: dl,
	})
	var we *WriteError
	if !errors.As(err, &we) {
		t.Fatalf("expected WriteError, got %v", err)
	}
}

func TestS3ProviderThreadsPasswordIntoDestination(t *testing.T) {
	p := &S3Provider{
		Bucket:   "exports-bucket",
		Prefix:   "exports",
		Password: "hunter2",
		newClient: func(context.Context, string) (*storage.S3Client, error) {
			return &storage.S3Client{}, nil
		},
	}

	d, err := p.Acquire(context.Background(), "out.pdf")
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	sd, ok := d.(*s3Destination)
	if !ok {
		t.Fatalf("unexpected destination type %T", d)
	}
	if sd.password != "hunter2" {
		t.Fatalf("destination password = %q, uploads would be stored unencrypted", sd.password)
	}
	if !strings.HasPrefix(sd.key, "exports/") || !strings.HasSuffix(sd.key, "/out.pdf") {
		t.Fatalf("unexpected object key %q", sd.key)
	}
}

func TestForcePDFExt(t *testing.T) {
	cases := map[string]string{
		"":            "document.pdf",
		"a":           "a.pdf",
		"a.pdf":       "a.pdf",
		"a.PDF":       "a.PDF",
		"archive.tar": "archive.tar.pdf",
	}
	for in, want := range cases {
		if got := ForcePDFExt(in); got != want {
			t.Errorf("ForcePDFExt(%q) = %q, want %q", in, got, want)
		}
	}
}
