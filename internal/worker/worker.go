package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/pagedesk/internal/decoder"
	"github.com/local/pagedesk/internal/queue"
	"github.com/local/pagedesk/internal/store"
	"github.com/local/pagedesk/internal/thumbnail"
)

// Job is one queued thumbnail run.
type Job struct {
	SessionID string `json:"session_id"`
}

// Worker consumes thumbnail jobs. A single consumer loop processes one
// document at a time: page decoding stays strictly sequential and only one
// render surface is ever live.
type Worker struct {
	queue *queue.RedisQueue
	store *store.SessionStore
	opts  thumbnail.Options

	stop chan struct{}
	wg   sync.WaitGroup
}

func New(q *queue.RedisQueue, s *store.SessionStore, opts thumbnail.Options) *Worker {
	return &Worker{queue: q, store: s, opts: opts, stop: make(chan struct{})}
}

// Start launches the consumer loop.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop signals the loop and waits for the in-flight job to finish. Once a
// document's run has begun it completes or fails; there is no mid-run
// cancellation.
func (w *Worker) Stop(ctx context.Context) {
	close(w.stop)
	done := make(chan struct{})
	go func() { w.wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-ctx.Done():
		log.Warn().Msg("worker stop timed out")
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	ctx := context.Background()
	for {
		select {
		case <-w.stop:
			return
		default:
		}

		payload, err := w.queue.Dequeue(ctx, "thumbnailer")
		if err != nil {
			log.Error().Err(err).Msg("dequeue failed")
			time.Sleep(time.Second)
			continue
		}
		if payload == nil {
			continue
		}

		var job Job
		if err := json.Unmarshal(payload, &job); err != nil {
			log.Error().Err(err).Msg("bad job payload")
			continue
		}
		w.process(ctx, job)
	}
}

func (w *Worker) process(ctx context.Context, job Job) {
	if cancelled, err := w.queue.IsCancelled(ctx, job.SessionID); err == nil && cancelled {
		log.Info().Str("session", job.SessionID).Msg("session reset before decoding, skipping job")
		_ = w.queue.ClearCancelled(ctx, job.SessionID)
		return
	}

	_, data, _, found, err := w.store.GetDocument(ctx, job.SessionID)
	if err != nil || !found {
		log.Warn().Err(err).Str("session", job.SessionID).Msg("document missing for thumbnail job")
		return
	}

	_ = w.store.SetProgress(ctx, job.SessionID, store.Progress{State: "decoding"})

	thumbs, err := thumbnail.Generate(ctx, data, w.opts, func(done, total int) {
		_ = w.store.SetProgress(ctx, job.SessionID, store.Progress{State: "decoding", Done: done, Total: total})
	})
	if err != nil {
		var de *decoder.DecodeError
		msg := "document could not be processed"
		if errors.As(err, &de) {
			msg = "document could not be opened"
		}
		log.Error().Err(err).Str("session", job.SessionID).Msg("thumbnail job failed")
		_ = w.store.SetProgress(ctx, job.SessionID, store.Progress{State: "failed", Error: msg})
		// A failed decode resets to the pre-upload state.
		_ = w.store.DiscardDocument(ctx, job.SessionID)
		return
	}

	if err := w.store.SaveThumbnails(ctx, job.SessionID, thumbs); err != nil {
		log.Error().Err(err).Str("session", job.SessionID).Msg("failed to persist thumbnails")
		_ = w.store.SetProgress(ctx, job.SessionID, store.Progress{State: "failed", Error: "internal error"})
		return
	}
	_ = w.store.SetProgress(ctx, job.SessionID, store.Progress{State: "done", Done: len(thumbs), Total: len(thumbs)})
	log.Info().Str("session", job.SessionID).Int("pages", len(thumbs)).Msg("thumbnail job complete")
}
