package decoder

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image/jpeg"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog/log"
)

// DecodeError means the input bytes could not be opened as a PDF document
// (corrupt, truncated or password protected). The underlying parser failure
// is kept for logs only; callers surface it as a single generic failure.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("document could not be opened: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Document is a page-addressable handle over a decoded PDF. It is owned by
// the operation that opened it and must be closed by that owner. The handle
// is read-only; page edits always reload from the original bytes.
type Document struct {
	doc   *fitz.Document
	pages int
}

// Thumb is one rendered page in display-ready transport form.
type Thumb struct {
	DataURI string
	Width   int
	Height  int
}

// Open parses raw bytes into a Document. There is no partial decode: any
// parser rejection becomes a single DecodeError.
func Open(data []byte) (*Document, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return &Document{doc: doc, pages: doc.NumPage()}, nil
}

// PageCount returns the total addressable pages, fixed for the handle's life.
func (d *Document) PageCount() int { return d.pages }

// Close releases the underlying MuPDF handle.
func (d *Document) Close() error { return d.doc.Close() }

// RenderPage renders one page (1-based) as a JPEG data URI at the given DPI.
// Each call allocates its own pixel buffer; no render surface is shared
// between pages.
func (d *Document) RenderPage(pageNum, dpi, quality int) (Thumb, error) {
	if pageNum < 1 || pageNum > d.pages {
		return Thumb{}, fmt.Errorf("page %d out of range (document has %d pages)", pageNum, d.pages)
	}

	// go-fitz uses 0-based indexing
	img, err := d.doc.ImageDPI(pageNum-1, float64(dpi))
	if err != nil {
		return Thumb{}, fmt.Errorf("failed to render page %d: %w", pageNum, err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return Thumb{}, fmt.Errorf("failed to encode JPEG: %w", err)
	}

	log.Debug().
		Int("page", pageNum).
		Int("width", width).
		Int("height", height).
		Int("jpeg_size", buf.Len()).
		Int("dpi", dpi).
		Msg("rendered page")

	return Thumb{
		DataURI: "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:   width,
		Height:  height,
	}, nil
}
