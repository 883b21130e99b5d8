package mutate

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/rs/zerolog/log"

	"github.com/local/pagedesk/internal/metrics"
)

// MutationError means a page operation failed after inputs were accepted:
// a source buffer did not parse, an index was out of range, or the page copy
// itself failed. No partial output ever accompanies a MutationError.
type MutationError struct {
	Op  string
	Err error
}

func (e *MutationError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *MutationError) Unwrap() error { return e.Err }

var conf *model.Configuration

func configuration() *model.Configuration {
	if conf == nil {
		conf = model.NewDefaultConfiguration()
	}
	return conf
}

// PageCount reports the number of pages in a PDF buffer.
func PageCount(data []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(data), configuration())
	if err != nil {
		return 0, fmt.Errorf("pdf page count failed: %w", err)
	}
	return n, nil
}

// RemovePages produces a new document from data with the given 0-based page
// indices removed. The document is always reloaded from the original bytes;
// a handle already consumed for thumbnailing is never reused here. The page
// selection is derived with indices sorted descending, so each 1-based page
// number is computed from a position no earlier removal has shifted.
func RemovePages(data []byte, indices []int) ([]byte, error) {
	start := time.Now()
	out, err := removePages(data, indices)
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.RecordMutation("remove", result, time.Since(start))
	return out, err
}

func removePages(data []byte, indices []int) ([]byte, error) {
	total, err := PageCount(data)
	if err != nil {
		return nil, &MutationError{Op: "remove", Err: err}
	}
	if err := validateIndices(indices, total); err != nil {
		return nil, &MutationError{Op: "remove", Err: err}
	}

	if len(indices) == 0 {
		// Nothing to remove: rewrite the document as-is so the output is a
		// fresh serialization with identical page structure.
		return rewrite(data)
	}

	desc := append([]int(nil), indices...)
	sort.Sort(sort.Reverse(sort.IntSlice(desc)))

	var buf bytes.Buffer
	if err := api.RemovePages(bytes.NewReader(data), &buf, pageSelection(desc), configuration()); err != nil {
		return nil, &MutationError{Op: "remove", Err: err}
	}

	log.Debug().Ints("indices", indices).Int("pages_before", total).Msg("removed pages")
	return buf.Bytes(), nil
}

// ExtractPages produces a new document holding only the requested 0-based
// pages, copied in ascending index order regardless of the order supplied.
// Output page order always reflects source document order, not click order.
func ExtractPages(data []byte, indices []int) ([]byte, error) {
	start := time.Now()
	out, err := extractPages(data, indices)
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.RecordMutation("extract", result, time.Since(start))
	return out, err
}

func extractPages(data []byte, indices []int) ([]byte, error) {
	total, err := PageCount(data)
	if err != nil {
		return nil, &MutationError{Op: "extract", Err: err}
	}
	if len(indices) == 0 {
		return nil, &MutationError{Op: "extract", Err: fmt.Errorf("no pages requested")}
	}
	if err := validateIndices(indices, total); err != nil {
		return nil, &MutationError{Op: "extract", Err: err}
	}

	asc := append([]int(nil), indices...)
	sort.Ints(asc)

	var buf bytes.Buffer
	if err := api.Trim(bytes.NewReader(data), &buf, pageSelection(asc), configuration()); err != nil {
		return nil, &MutationError{Op: "extract", Err: err}
	}

	log.Debug().Ints("indices", asc).Int("pages_before", total).Msg("extracted pages")
	return buf.Bytes(), nil
}

// Merge concatenates the given PDF buffers in list order. The output page
// count is the sum of the inputs'; each input keeps its own internal order.
func Merge(buffers [][]byte) ([]byte, error) {
	start := time.Now()
	out, err := merge(buffers)
	result := "success"
	if err != nil {
		result = "error"
	}
	metrics.RecordMutation("merge", result, time.Since(start))
	return out, err
}

func merge(buffers [][]byte) ([]byte, error) {
	if len(buffers) == 0 {
		return nil, &MutationError{Op: "merge", Err: fmt.Errorf("no input documents")}
	}

	// Validate every input up front so a bad buffer fails the whole merge
	// before any output exists.
	for i, b := range buffers {
		if _, err := PageCount(b); err != nil {
			return nil, &MutationError{Op: "merge", Err: fmt.Errorf("input %d: %w", i, err)}
		}
	}

	readers := make([]io.ReadSeeker, len(buffers))
	for i, b := range buffers {
		readers[i] = bytes.NewReader(b)
	}

	var buf bytes.Buffer
	if err := api.MergeRaw(readers, &buf, false, configuration()); err != nil {
		return nil, &MutationError{Op: "merge", Err: err}
	}

	log.Debug().Int("inputs", len(buffers)).Msg("merged documents")
	return buf.Bytes(), nil
}

// rewrite round-trips data through the parser, yielding a fresh serialization
// with the same page structure.
func rewrite(data []byte) ([]byte, error) {
	ctx, err := api.ReadContext(bytes.NewReader(data), configuration())
	if err != nil {
		return nil, &MutationError{Op: "remove", Err: err}
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, &MutationError{Op: "remove", Err: err}
	}
	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		return nil, &MutationError{Op: "remove", Err: err}
	}
	return buf.Bytes(), nil
}

// validateIndices rejects any 0-based index outside [0, total).
func validateIndices(indices []int, total int) error {
	for _, idx := range indices {
		if idx < 0 || idx >= total {
			return fmt.Errorf("page index %d out of range (document has %d pages)", idx, total)
		}
	}
	return nil
}

// pageSelection converts 0-based indices to pdfcpu's 1-based page selection.
func pageSelection(indices []int) []string {
	out := make([]string, len(indices))
	for i, idx := range indices {
		out[i] = strconv.Itoa(idx + 1)
	}
	return out
}
