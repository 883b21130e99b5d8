package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/local/pagedesk/internal/filetype"
	"github.com/local/pagedesk/internal/metrics"
	"github.com/local/pagedesk/internal/mutate"
	"github.com/local/pagedesk/internal/save"
	"github.com/local/pagedesk/internal/session"
	"github.com/local/pagedesk/internal/store"
	"github.com/local/pagedesk/internal/worker"
)

type uploadResp struct {
	SessionID string `json:"session_id"`
	Filename  string `json:"filename"`
	Pages     int    `json:"pages"`
}

// handleUpload accepts a document, converts non-PDF uploads, verifies the
// buffer opens as a PDF and queues thumbnail generation.
func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	maxBytes := int64(a.deps.Upload.MaxSizeMB) << 20
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing file upload")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read upload")
		return
	}

	info := filetype.Detect(data, header.Filename)
	switch info.Kind {
	case filetype.KindPDF:
		// straight into the flow
	case filetype.KindConvertible:
		if a.deps.Converter == nil || !a.deps.Converter.Available() {
			metrics.RecordUpload("convertible", "rejected", len(data))
			writeError(w, http.StatusUnprocessableEntity, "document conversion is not available")
			return
		}
		converted, cerr := a.deps.Converter.Convert(r.Context(), data, info.Extension)
		if cerr != nil {
			log.Error().Err(cerr).Str("filename", header.Filename).Msg("conversion failed")
			metrics.RecordUpload("convertible", "error", len(data))
			writeError(w, http.StatusUnprocessableEntity, "document could not be converted")
			return
		}
		data = converted
	default:
		metrics.RecordUpload("unsupported", "rejected", len(data))
		writeError(w, http.StatusUnsupportedMediaType, "unsupported file type")
		return
	}

	// A buffer that does not open is reported as one opaque failure; no
	// diagnosis of corrupt vs encrypted.
	pages, err := mutate.PageCount(data)
	if err != nil {
		metrics.RecordUpload("pdf", "decode_error", len(data))
		writeError(w, http.StatusUnprocessableEntity, "document could not be opened")
		return
	}

	s := session.New()
	s.SetDocument(header.Filename, data, pages)

	ctx := r.Context()
	if err := a.deps.Store.SaveDocument(ctx, s.ID, header.Filename, data, pages); err != nil {
		writeError(w, http.StatusInternalServerError, "could not store document")
		return
	}
	_ = a.deps.Store.SetProgress(ctx, s.ID, store.Progress{State: "queued", Total: pages})

	payload, _ := json.Marshal(worker.Job{SessionID: s.ID})
	if err := a.deps.Queue.Enqueue(ctx, payload); err != nil {
		writeError(w, http.StatusInternalServerError, "could not queue processing")
		return
	}

	a.mu.Lock()
	a.sessions[s.ID] = s
	a.mu.Unlock()

	metrics.RecordUpload("pdf", "success", len(data))
	log.Info().Str("session", s.ID).Str("filename", header.Filename).Int("pages", pages).Msg("document uploaded")
	writeJSON(w, http.StatusOK, uploadResp{SessionID: s.ID, Filename: header.Filename, Pages: pages})
}

func (a *API) handleProgress(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/progress/")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing session id")
		return
	}
	p, found, err := a.deps.Store.GetProgress(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "progress lookup failed")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	percent := 0
	if p.Total > 0 {
		percent = p.Done * 100 / p.Total
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"state":   p.State,
		"done":    p.Done,
		"total":   p.Total,
		"percent": percent,
		"error":   p.Error,
	})
}

func (a *API) handleThumbnails(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/api/thumbnails/")
	thumbs, err := a.deps.Store.GetThumbnails(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "thumbnail lookup failed")
		return
	}
	if thumbs == nil {
		writeError(w, http.StatusNotFound, "thumbnails not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"thumbnails": thumbs})
}

type selectionReq struct {
	Action        string `json:"action"` // toggle, range, clear
	Index         int    `json:"index"`
	RangeModifier bool   `json:"range_modifier"`
}

func (a *API) handleSelection(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/selection/")
	s, ok := a.sessionByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var req selectionReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	a.mu.Lock()
	switch req.Action {
	case "toggle":
		if req.Index < 0 || req.Index >= s.TotalPages {
			a.mu.Unlock()
			writeError(w, http.StatusBadRequest, fmt.Sprintf("index %d out of range", req.Index))
			return
		}
		s.Selection.Toggle(req.Index)
	case "range":
		if req.Index < 0 || req.Index >= s.TotalPages {
			a.mu.Unlock()
			writeError(w, http.StatusBadRequest, fmt.Sprintf("index %d out of range", req.Index))
			return
		}
		s.Selection.ExtendRange(req.Index, req.RangeModifier)
	case "clear":
		s.Selection.Clear()
	default:
		a.mu.Unlock()
		writeError(w, http.StatusBadRequest, "unknown action")
		return
	}
	selected := s.Selection.Indices()
	a.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"selected": selected})
}

type saveReq struct {
	Mode     string `json:"mode"` // remove or extract
	Filename string `json:"filename"`
}

// handleSave commits the selection: destination acquisition first, then the
// mutation, then delivery to the destination or as a download body.
func (a *API) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/save/")
	s, ok := a.sessionByID(id)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}

	var req saveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	a.mu.Lock()
	indices := s.Selection.Indices()
	docBytes := s.DocBytes
	a.mu.Unlock()

	if len(docBytes) == 0 {
		writeError(w, http.StatusConflict, "no document loaded")
		return
	}

	var mutateFn save.MutateFunc
	switch req.Mode {
	case "remove":
		mutateFn = func() ([]byte, error) { return mutate.RemovePages(docBytes, indices) }
	case "extract":
		if len(indices) == 0 {
			writeError(w, http.StatusBadRequest, "no pages selected")
			return
		}
		mutateFn = func() ([]byte, error) { return mutate.ExtractPages(docBytes, indices) }
	default:
		writeError(w, http.StatusBadRequest, "mode must be remove or extract")
		return
	}

	name := req.Filename
	if name == "" {
		name = s.Filename
	}

	a.runSave(w, r, name, mutateFn)
}

// runSave drives the coordinator and renders its outcome over HTTP. The
// download fallback streams the bytes as an attachment in this response.
func (a *API) runSave(w http.ResponseWriter, r *http.Request, filename string, mutateFn save.MutateFunc) {
	dl := &httpDownloader{w: w}
	res, err := save.Run(r.Context(), save.Request{
		Filename: filename,
		Mutate:   mutateFn,
		Provider: a.deps.Provider,
		Download: dl,
	})
	switch {
	case errors.Is(err, save.ErrCancelled):
		writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
	case err != nil:
		var me *mutate.MutationError
		if errors.As(err, &me) {
			writeError(w, http.StatusUnprocessableEntity, "document could not be modified")
			return
		}
		writeError(w, http.StatusInternalServerError, "saving the document failed")
	case res.Destination == "handle":
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "saved",
			"location": res.Location,
			"filename": res.Filename,
		})
	default:
		// download: bytes already written by the downloader
	}
}

// httpDownloader delivers the output as the HTTP response body.
type httpDownloader struct {
	w http.ResponseWriter
}

func (d *httpDownloader) Download(filename string, data []byte) error {
	d.w.Header().Set("Content-Type", "application/pdf")
	d.w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	d.w.Header().Set("Content-Length", fmt.Sprintf("%d", len(data)))
	_, err := d.w.Write(data)
	return err
}

// handleReset discards all state for a session: queued work is abandoned,
// stored bytes and thumbnails are dropped, the selection is emptied.
func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/reset/")

	ctx := r.Context()
	_ = a.deps.Queue.CancelSession(ctx, id)
	_ = a.deps.Store.Delete(ctx, id)

	a.mu.Lock()
	if s, ok := a.sessions[id]; ok {
		s.Reset()
		delete(a.sessions, id)
	}
	a.mu.Unlock()

	log.Info().Str("session", id).Msg("session reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
