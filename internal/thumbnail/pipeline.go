package thumbnail

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pagedesk/internal/decoder"
	"github.com/local/pagedesk/internal/metrics"
)

// PageThumbnail is a low-resolution preview of one page. Index is 0-based and
// matches the page's position in the source document at decode time.
// Immutable once produced.
type PageThumbnail struct {
	Index   int    `json:"index"`
	DataURI string `json:"data_uri"`
	Width   int    `json:"width"`
	Height  int    `json:"height"`
}

// ProgressFunc receives (pagesCompleted, totalPages) after each page render.
type ProgressFunc func(done, total int)

// Options control render fidelity.
type Options struct {
	DPI         int
	JPEGQuality int
}

func (o Options) withDefaults() Options {
	if o.DPI <= 0 {
		o.DPI = 36
	}
	if o.JPEGQuality <= 0 {
		o.JPEGQuality = 70
	}
	return o
}

// Generate opens data and renders every page in increasing index order,
// strictly one at a time. MuPDF document handles are not safe for concurrent
// renders, and a single live render surface bounds memory for large
// documents. onProgress is invoked after each completed page.
//
// On open failure the DecodeError propagates and no thumbnails are returned.
// A page render failure likewise aborts the whole run: the caller gets a
// complete set or nothing.
func Generate(ctx context.Context, data []byte, opts Options, onProgress ProgressFunc) ([]PageThumbnail, error) {
	opts = opts.withDefaults()
	start := time.Now()

	doc, err := decoder.Open(data)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	total := doc.PageCount()
	thumbs := make([]PageThumbnail, 0, total)

	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		t, err := doc.RenderPage(i+1, opts.DPI, opts.JPEGQuality)
		if err != nil {
			return nil, fmt.Errorf("thumbnail for page %d: %w", i, err)
		}
		thumbs = append(thumbs, PageThumbnail{
			Index:   i,
			DataURI: t.DataURI,
			Width:   t.Width,
			Height:  t.Height,
		})
		metrics.RecordThumbnail()
		if onProgress != nil {
			onProgress(i+1, total)
		}
	}

	metrics.RecordThumbnailJob(time.Since(start))
	log.Info().
		Int("pages", total).
		Dur("took", time.Since(start)).
		Msg("thumbnail generation complete")

	return thumbs, nil
}
