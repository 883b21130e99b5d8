package save

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pagedesk/internal/metrics"
)

// ErrCancelled means the user explicitly dismissed destination acquisition.
// It is a silent terminal outcome: no mutation, no write, no fallback.
var ErrCancelled = errors.New("destination acquisition cancelled")

// WriteError means the mutated bytes could not be delivered, either to an
// acquired destination or through the download fallback.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("save failed: %v", e.Err) }

func (e *WriteError) Unwrap() error { return e.Err }

// Destination is an acquired writable target for one save action. It is
// never reused across save actions.
type Destination interface {
	Write(ctx context.Context, data []byte) error
	Close() error
	// Describe returns a loggable location, e.g. an s3:// URL.
	Describe() string
}

// Provider abstracts native save-destination capability so the coordinator
// never depends on a concrete runtime API. Available must reflect the
// current runtime and is queried fresh on every save action, never cached.
// Acquire returns ErrCancelled when the user refuses; any other error is
// treated as capability absence.
type Provider interface {
	Available() bool
	Acquire(ctx context.Context, filename string) (Destination, error)
}

// Downloader delivers bytes when no destination was acquired.
type Downloader interface {
	Download(filename string, data []byte) error
}

// MutateFunc computes the output document. It runs exactly once per save
// action, only after destination acquisition has fully resolved; once it
// starts there is no cancellation path.
type MutateFunc func() ([]byte, error)

// Request describes one save action.
type Request struct {
	Filename string
	Mutate   MutateFunc
	Provider Provider // nil means no native capability
	Download Downloader
}

// Result reports where the bytes ended up.
type Result struct {
	Filename    string
	Destination string // "handle" or "download"
	Location    string
	Bytes       int
}

// Run drives a single save action:
// destination check, acquisition, mutation, then write or download.
//
// Acquisition happens before any other work so runtimes that gate native
// save targets on the triggering user action still grant them. Cancelling
// the acquisition stops everything; any other acquisition failure silently
// falls back to the download path.
func Run(ctx context.Context, req Request) (Result, error) {
	name := ForcePDFExt(req.Filename)

	var dest Destination
	if req.Provider != nil && req.Provider.Available() {
		d, err := req.Provider.Acquire(ctx, name)
		switch {
		case errors.Is(err, ErrCancelled):
			log.Info().Str("filename", name).Msg("save cancelled at destination prompt")
			metrics.RecordSave("handle", "cancelled")
			return Result{}, ErrCancelled
		case err != nil:
			log.Warn().Err(err).Str("filename", name).Msg("destination unavailable, falling back to download")
		default:
			dest = d
		}
	}

	data, err := req.Mutate()
	if err != nil {
		if dest != nil {
			_ = dest.Close()
		}
		destLabel := "download"
		if dest != nil {
			destLabel = "handle"
		}
		metrics.RecordSave(destLabel, "mutation_error")
		return Result{}, err
	}

	if dest != nil {
		werr := dest.Write(ctx, data)
		cerr := dest.Close()
		if werr == nil {
			werr = cerr
		}
		if werr != nil {
			metrics.RecordSave("handle", "error")
			return Result{}, &WriteError{Err: werr}
		}
		metrics.RecordSave("handle", "success")
		log.Info().Str("filename", name).Str("location", dest.Describe()).Int("bytes", len(data)).Msg("saved to destination")
		return Result{Filename: name, Destination: "handle", Location: dest.Describe(), Bytes: len(data)}, nil
	}

	if req.Download == nil {
		metrics.RecordSave("download", "error")
		return Result{}, &WriteError{Err: fmt.Errorf("no download path configured")}
	}
	if err := req.Download.Download(name, data); err != nil {
		metrics.RecordSave("download", "error")
		return Result{}, &WriteError{Err: err}
	}
	metrics.RecordSave("download", "success")
	log.Info().Str("filename", name).Int("bytes", len(data)).Msg("delivered as download")
	return Result{Filename: name, Destination: "download", Bytes: len(data)}, nil
}

// ForcePDFExt appends .pdf when the name lacks it (case insensitive). An
// empty name becomes document.pdf.
func ForcePDFExt(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return "document.pdf"
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return name + ".pdf"
	}
	return name
}
