package thumbnail

import (
	"context"
	"errors"
	"testing"

	"github.com/local/pagedesk/internal/decoder"
	"github.com/local/pagedesk/internal/pdftest"
)

func TestGenerateProducesAllPagesInOrder(t *testing.T) {
	const pages = 5
	doc := pdftest.Doc(pages)

	var progress [][2]int
	thumbs, err := Generate(context.Background(), doc, Options{}, func(done, total int) {
		progress = append(progress, [2]int{done, total})
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	if len(thumbs) != pages {
		t.Fatalf("got %d thumbnails, want %d", len(thumbs), pages)
	}
	for i, th := range thumbs {
		if th.Index != i {
			t.Fatalf("thumbnail %d has index %d", i, th.Index)
		}
		if th.DataURI == "" || th.Width <= 0 || th.Height <= 0 {
			t.Fatalf("thumbnail %d incomplete: %+v", i, th)
		}
	}

	if len(progress) != pages {
		t.Fatalf("got %d progress events, want %d", len(progress), pages)
	}
	for i, p := range progress {
		if p[0] != i+1 || p[1] != pages {
			t.Fatalf("progress event %d = (%d,%d), want (%d,%d)", i, p[0], p[1], i+1, pages)
		}
	}
}

func TestGeneratePropagatesDecodeError(t *testing.T) {
	called := false
	_, err := Generate(context.Background(), []byte("broken"), Options{}, func(int, int) { called = true })

	var de *decoder.DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
	if called {
		t.Fatal("no progress should be reported when open fails")
	}
}

func TestGenerateHonorsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Generate(ctx, pdftest.Doc(3), Options{}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
