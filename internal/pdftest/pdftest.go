// Package pdftest builds small, valid PDF documents for tests and probes the
// page structure of generated output. Fixture pages carry distinct widths so
// a page keeps its identity through remove/extract/merge operations.
package pdftest

import (
	"bytes"
	"fmt"
	"math"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// BaseWidth is the width of page 0 in fixture documents; page i is
// BaseWidth+i points wide. Height is a constant 792.
const BaseWidth = 100

// Doc returns a minimal n-page PDF. Page i (0-based) has MediaBox width
// BaseWidth+i so probes can tell pages apart after mutation.
func Doc(n int) []byte {
	if n < 1 {
		panic("pdftest: document needs at least one page")
	}

	var body bytes.Buffer
	offsets := make([]int, 0, n+3)
	body.WriteString("%PDF-1.7\n")
	// The parser refuses files under 512 bytes when locating the xref
	// section, so pad the header until even a one-page fixture clears it.
	body.WriteString("% " + strings.Repeat("fixture-padding ", 20) + "\n")

	addObj := func(s string) {
		offsets = append(offsets, body.Len())
		body.WriteString(s)
	}

	addObj("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")

	kids := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			kids += " "
		}
		kids += fmt.Sprintf("%d 0 R", 3+i)
	}
	addObj(fmt.Sprintf("2 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", kids, n))

	for i := 0; i < n; i++ {
		addObj(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent 2 0 R /MediaBox [0 0 %d 792] /Resources << >> >>\nendobj\n", 3+i, BaseWidth+i))
	}

	xrefStart := body.Len()
	body.WriteString(fmt.Sprintf("xref\n0 %d\n", len(offsets)+1))
	body.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		body.WriteString(fmt.Sprintf("%010d 00000 n \n", off))
	}
	body.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xrefStart))

	return body.Bytes()
}

// Widths probes a PDF buffer and returns the page widths in page order,
// rounded to whole points.
func Widths(data []byte) ([]int, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("validate pdf: %w", err)
	}
	dims, err := ctx.PageDims()
	if err != nil {
		return nil, fmt.Errorf("page dims: %w", err)
	}
	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = int(math.Round(d.Width))
	}
	return out, nil
}

// PageCount probes a PDF buffer for its page count.
func PageCount(data []byte) (int, error) {
	return api.PageCount(bytes.NewReader(data), model.NewDefaultConfiguration())
}

// WidthOfPage returns the fixture width a given 0-based page index carries in
// a Doc-built document.
func WidthOfPage(index int) int { return BaseWidth + index }
