package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/local/pagedesk/internal/filetype"
	"github.com/local/pagedesk/internal/metrics"
	"github.com/local/pagedesk/internal/mutate"
	"github.com/local/pagedesk/internal/session"
)

type mergeSourceView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func mergeViews(l *session.SourceList) []mergeSourceView {
	out := make([]mergeSourceView, 0, l.Len())
	for _, e := range l.Entries() {
		out = append(out, mergeSourceView{ID: e.ID, Name: e.Name})
	}
	return out
}

// handleMergeUpload appends a PDF to a merge list, creating the list when no
// merge_id is supplied. List order is output order.
func (a *API) handleMergeUpload(w http.ResponseWriter, r *http.Request) {
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

	if info := filetype.Detect(data, header.Filename); info.Kind != filetype.KindPDF {
		writeError(w, http.StatusUnsupportedMediaType, "merge accepts PDF files only")
		return
	}
	if _, err := mutate.PageCount(data); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "document could not be opened")
		return
	}

	mergeID := r.FormValue("merge_id")

	a.mu.Lock()
	list, ok := a.merges[mergeID]
	if !ok {
		mergeID = uuid.NewString()
		list = &session.SourceList{}
		a.merges[mergeID] = list
	}
	if list.Len() >= a.deps.Upload.MaxMergeSources {
		a.mu.Unlock()
		writeError(w, http.StatusBadRequest, "too many merge sources")
		return
	}
	sourceID := list.Append(header.Filename, data)
	views := mergeViews(list)
	a.mu.Unlock()

	metrics.RecordUpload("pdf", "success", len(data))
	log.Info().Str("merge", mergeID).Str("source", sourceID).Str("filename", header.Filename).Msg("merge source added")
	writeJSON(w, http.StatusOK, map[string]any{
		"merge_id":  mergeID,
		"source_id": sourceID,
		"sources":   views,
	})
}

func (a *API) handleMergeList(w http.ResponseWriter, r *http.Request) {
	mergeID := strings.TrimPrefix(r.URL.Path, "/api/merge/list/")

	a.mu.Lock()
	list, ok := a.merges[mergeID]
	var views []mergeSourceView
	if ok {
		views = mergeViews(list)
	}
	a.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "unknown merge list")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"merge_id": mergeID, "sources": views})
}

type mergeEditReq struct {
	MergeID  string `json:"merge_id"`
	SourceID string `json:"source_id"`
	Position int    `json:"position"`
}

func (a *API) handleMergeRemove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req mergeEditReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	a.mu.Lock()
	list, ok := a.merges[req.MergeID]
	if ok {
		list.Remove(req.SourceID)
	}
	var views []mergeSourceView
	if ok {
		views = mergeViews(list)
	}
	a.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "unknown merge list")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": views})
}

// handleMergeMove relocates a source inside the list: remove-then-reinsert,
// relative order of all other entries preserved.
func (a *API) handleMergeMove(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req mergeEditReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	a.mu.Lock()
	list, ok := a.merges[req.MergeID]
	var moveErr error
	if ok {
		moveErr = list.Move(req.SourceID, req.Position)
	}
	var views []mergeSourceView
	if ok {
		views = mergeViews(list)
	}
	a.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "unknown merge list")
		return
	}
	if moveErr != nil {
		writeError(w, http.StatusBadRequest, "unknown source id")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sources": views})
}

type mergeSaveReq struct {
	MergeID  string `json:"merge_id"`
	Filename string `json:"filename"`
}

// handleMergeSave concatenates the list's documents in order through the
// save coordinator.
func (a *API) handleMergeSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	var req mergeSaveReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	a.mu.Lock()
	list, ok := a.merges[req.MergeID]
	var buffers [][]byte
	if ok {
		buffers = list.Buffers()
	}
	a.mu.Unlock()

	if !ok {
		writeError(w, http.StatusNotFound, "unknown merge list")
		return
	}
	if len(buffers) == 0 {
		writeError(w, http.StatusBadRequest, "merge list is empty")
		return
	}

	a.runSave(w, r, req.Filename, func() ([]byte, error) {
		return mutate.Merge(buffers)
	})
}
