package web

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/local/pagedesk/internal/config"
	"github.com/local/pagedesk/internal/converter"
	"github.com/local/pagedesk/internal/queue"
	"github.com/local/pagedesk/internal/save"
	"github.com/local/pagedesk/internal/session"
	"github.com/local/pagedesk/internal/store"
)

// Dependencies wires the editor API to its collaborators.
type Dependencies struct {
	Store     *store.SessionStore
	Queue     *queue.RedisQueue
	Converter *converter.LibreOffice
	Provider  save.Provider // nil when no native save capability exists
	Upload    config.UploadConfig
}

// API is the HTTP surface of the page editor. Selection sets and merge
// source lists are in-memory session state owned by this process; document
// bytes, thumbnails and progress live in the session store so the background
// worker can reach them.
type API struct {
	deps Dependencies

	mu       sync.Mutex
	sessions map[string]*session.State
	merges   map[string]*session.SourceList
}

func New(deps Dependencies) *API {
	return &API{
		deps:     deps,
		sessions: map[string]*session.State{},
		merges:   map[string]*session.SourceList{},
	}
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/upload_document", a.handleUpload)
	mux.HandleFunc("/api/progress/", a.handleProgress)
	mux.HandleFunc("/api/thumbnails/", a.handleThumbnails)
	mux.HandleFunc("/api/selection/", a.handleSelection)
	mux.HandleFunc("/api/save/", a.handleSave)
	mux.HandleFunc("/api/reset/", a.handleReset)
	mux.HandleFunc("/api/save_capability", a.handleCapability)
	mux.HandleFunc("/api/merge/upload", a.handleMergeUpload)
	mux.HandleFunc("/api/merge/list/", a.handleMergeList)
	mux.HandleFunc("/api/merge/remove", a.handleMergeRemove)
	mux.HandleFunc("/api/merge/move", a.handleMergeMove)
	mux.HandleFunc("/api/merge/save", a.handleMergeSave)
}

func (a *API) sessionByID(id string) (*session.State, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	s, ok := a.sessions[id]
	return s, ok
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleCapability reports whether native save-destination acquisition is
// available. Probed fresh on every call, never cached: the UI uses it to
// pick its copy ("choose location and save" vs "download file").
func (a *API) handleCapability(w http.ResponseWriter, r *http.Request) {
	available := a.deps.Provider != nil && a.deps.Provider.Available()
	writeJSON(w, http.StatusOK, map[string]bool{"native_save": available})
}
