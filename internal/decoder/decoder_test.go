package decoder

import (
	"errors"
	"strings"
	"testing"

	"github.com/local/pagedesk/internal/pdftest"
)

func TestOpenAndPageCount(t *testing.T) {
	doc, err := Open(pdftest.Doc(4))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer doc.Close()

	if got := doc.PageCount(); got != 4 {
		t.Fatalf("PageCount: got %d, want 4", got)
	}
}

func TestOpenRejectsGarbage(t *testing.T) {
	_, err := Open([]byte("definitely not a pdf"))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("expected DecodeError, got %v", err)
	}
}

func TestRenderPage(t *testing.T) {
	doc, err := Open(pdftest.Doc(2))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer doc.Close()

	thumb, err := doc.RenderPage(1, 36, 70)
	if err != nil {
		t.Fatalf("RenderPage: %v", err)
	}
	if !strings.HasPrefix(thumb.DataURI, "data:image/jpeg;base64,") {
		t.Fatalf("unexpected data URI prefix: %.40s", thumb.DataURI)
	}
	if thumb.Width <= 0 || thumb.Height <= 0 {
		t.Fatalf("expected positive dimensions, got %dx%d", thumb.Width, thumb.Height)
	}
}

func TestRenderPageOutOfRange(t *testing.T) {
	doc, err := Open(pdftest.Doc(2))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer doc.Close()

	if _, err := doc.RenderPage(0, 36, 70); err == nil {
		t.Fatal("expected error for page 0 (pages are 1-based)")
	}
	if _, err := doc.RenderPage(3, 36, 70); err == nil {
		t.Fatal("expected error for page beyond document end")
	}
}
