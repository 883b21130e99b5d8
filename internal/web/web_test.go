package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/local/pagedesk/internal/config"
	"github.com/local/pagedesk/internal/pdftest"
	"github.com/local/pagedesk/internal/save"
	"github.com/local/pagedesk/internal/session"
)

func newTestAPI() *API {
	return New(Dependencies{
		Upload: config.UploadConfig{MaxSizeMB: 10, MaxMergeSources: 5},
	})
}

func addSession(a *API, pages int) *session.State {
	s := session.New()
	s.SetDocument("doc.pdf", pdftest.Doc(pages), pages)
	a.mu.Lock()
	a.sessions[s.ID] = s
	a.mu.Unlock()
	return s
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestSelectionToggleAndRange(t *testing.T) {
	a := newTestAPI()
	s := addSession(a, 6)

	rec := postJSON(t, a.handleSelection, "/api/selection/"+s.ID, selectionReq{Action: "toggle", Index: 2})
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle: status %d: %s", rec.Code, rec.Body)
	}

	rec = postJSON(t, a.handleSelection, "/api/selection/"+s.ID, selectionReq{Action: "range", Index: 5, RangeModifier: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("range: status %d: %s", rec.Code, rec.Body)
	}

	var resp struct {
		Selected []int `json:"selected"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	want := []int{2, 3, 4, 5}
	if fmt.Sprint(resp.Selected) != fmt.Sprint(want) {
		t.Fatalf("selected = %v, want %v", resp.Selected, want)
	}
}

func TestSelectionRejectsOutOfRange(t *testing.T) {
	a := newTestAPI()
	s := addSession(a, 3)

	rec := postJSON(t, a.handleSelection, "/api/selection/"+s.ID, selectionReq{Action: "toggle", Index: 3})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for out-of-range index, got %d", rec.Code)
	}
}

func TestSelectionUnknownSession(t *testing.T) {
	a := newTestAPI()
	rec := postJSON(t, a.handleSelection, "/api/selection/nope", selectionReq{Action: "toggle", Index: 0})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestSaveRemoveDownloadsResult(t *testing.T) {
	a := newTestAPI()
	s := addSession(a, 4)
	s.Selection.Toggle(1)
	s.Selection.Toggle(3)

	rec := postJSON(t, a.handleSave, "/api/save/"+s.ID, saveReq{Mode: "remove", Filename: "trimmed"})
	if rec.Code != http.StatusOK {
		t.Fatalf("save: status %d: %s", rec.Code, rec.Body)
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "trimmed.pdf") {
		t.Fatalf("expected attachment with forced .pdf extension, got %q", cd)
	}

	n, err := pdftest.PageCount(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("downloaded bytes are not a valid PDF: %v", err)
	}
	if n != 2 {
		t.Fatalf("got %d pages after removal, want 2", n)
	}
}

func TestSaveExtractRequiresSelection(t *testing.T) {
	a := newTestAPI()
	s := addSession(a, 4)

	rec := postJSON(t, a.handleSave, "/api/save/"+s.ID, saveReq{Mode: "extract"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty extract selection, got %d", rec.Code)
	}
}

type cancellingProvider struct{ acquired int }

func (p *cancellingProvider) Available() bool { return true }

func (p *cancellingProvider) Acquire(context.Context, string) (save.Destination, error) {
	p.acquired++
	return nil, save.ErrCancelled
}

func TestSaveCancelledReportsQuietly(t *testing.T) {
	a := newTestAPI()
	a.deps.Provider = &cancellingProvider{}
	s := addSession(a, 2)
	s.Selection.Toggle(0)

	rec := postJSON(t, a.handleSave, "/api/save/"+s.ID, saveReq{Mode: "remove"})
	if rec.Code != http.StatusOK {
		t.Fatalf("cancellation must not be an error: %d", rec.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "cancelled" {
		t.Fatalf("expected cancelled status, got %v", resp)
	}
}

func TestCapabilityProbe(t *testing.T) {
	a := newTestAPI()
	req := httptest.NewRequest(http.MethodGet, "/api/save_capability", nil)
	rec := httptest.NewRecorder()
	a.handleCapability(rec, req)

	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["native_save"] {
		t.Fatal("no provider configured, capability must be false")
	}

	a.deps.Provider = &cancellingProvider{}
	rec = httptest.NewRecorder()
	a.handleCapability(rec, req)
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if !resp["native_save"] {
		t.Fatal("provider configured, capability must be true")
	}
}

func multipartUpload(t *testing.T, field, filename string, data []byte, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write(data); err != nil {
		t.Fatal(err)
	}
	for k, v := range extra {
		_ = mw.WriteField(k, v)
	}
	_ = mw.Close()
	return &buf, mw.FormDataContentType()
}

func TestMergeUploadAndSave(t *testing.T) {
	a := newTestAPI()

	upload := func(name string, doc []byte, mergeID string) (string, string) {
		extra := map[string]string{}
		if mergeID != "" {
			extra["merge_id"] = mergeID
		}
		body, ctype := multipartUpload(t, "file", name, doc, extra)
		req := httptest.NewRequest(http.MethodPost, "/api/merge/upload", body)
		req.Header.Set("Content-Type", ctype)
		rec := httptest.NewRecorder()
		a.handleMergeUpload(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("merge upload: status %d: %s", rec.Code, rec.Body)
		}
		var resp struct {
			MergeID  string `json:"merge_id"`
			SourceID string `json:"source_id"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		return resp.MergeID, resp.SourceID
	}

	mergeID, _ := upload("a.pdf", pdftest.Doc(2), "")
	mergeID2, _ := upload("b.pdf", pdftest.Doc(3), mergeID)
	if mergeID2 != mergeID {
		t.Fatalf("second upload created a new list: %s vs %s", mergeID, mergeID2)
	}

	rec := postJSON(t, a.handleMergeSave, "/api/merge/save", mergeSaveReq{MergeID: mergeID, Filename: "combined"})
	if rec.Code != http.StatusOK {
		t.Fatalf("merge save: status %d: %s", rec.Code, rec.Body)
	}
	n, err := pdftest.PageCount(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("merged bytes are not a valid PDF: %v", err)
	}
	if n != 5 {
		t.Fatalf("merged page count: got %d, want 5", n)
	}
}

func TestMergeUploadRejectsNonPDF(t *testing.T) {
	a := newTestAPI()
	body, ctype := multipartUpload(t, "file", "notes.txt", []byte("plain text"), nil)
	req := httptest.NewRequest(http.MethodPost, "/api/merge/upload", body)
	req.Header.Set("Content-Type", ctype)
	rec := httptest.NewRecorder()
	a.handleMergeUpload(rec, req)
	if rec.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d: %s", rec.Code, rec.Body)
	}
}

func TestMergeMoveReorders(t *testing.T) {
	a := newTestAPI()
	list := &session.SourceList{}
	list.Append("a.pdf", pdftest.Doc(1))
	idB := list.Append("b.pdf", pdftest.Doc(1))
	list.Append("c.pdf", pdftest.Doc(1))
	a.mu.Lock()
	a.merges["m1"] = list
	a.mu.Unlock()

	rec := postJSON(t, a.handleMergeMove, "/api/merge/move", mergeEditReq{MergeID: "m1", SourceID: idB, Position: 0})
	if rec.Code != http.StatusOK {
		t.Fatalf("move: status %d: %s", rec.Code, rec.Body)
	}
	var resp struct {
		Sources []mergeSourceView `json:"sources"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	gotNames := []string{resp.Sources[0].Name, resp.Sources[1].Name, resp.Sources[2].Name}
	if fmt.Sprint(gotNames) != fmt.Sprint([]string{"b.pdf", "a.pdf", "c.pdf"}) {
		t.Fatalf("order after move: %v", gotNames)
	}
}

func TestMergeSaveEmptyList(t *testing.T) {
	a := newTestAPI()
	a.mu.Lock()
	a.merges["m1"] = &session.SourceList{}
	a.mu.Unlock()

	rec := postJSON(t, a.handleMergeSave, "/api/merge/save", mergeSaveReq{MergeID: "m1"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty merge list, got %d", rec.Code)
	}
}
