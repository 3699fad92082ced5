package net

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"clickart/internal/generate"
	"clickart/internal/session"
	"clickart/internal/sketch"
	"clickart/internal/upload"
)

type stubUploader struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *stubUploader) Upload(ctx context.Context, data []byte, meta upload.Metadata) (upload.AssetRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.calls++
	return upload.AssetRef(fmt.Sprintf("https://cdn.example/%d.png", s.calls)), nil
}

func newTestServer(t *testing.T, up upload.Uploader) (*Server, *httptest.Server) {
	t.Helper()

	gen := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"id": "pred-1", "status": "starting"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"status": "succeeded",
			"output": []string{"https://out.example/final.png"},
		})
	}))
	t.Cleanup(gen.Close)

	p := &session.Pipeline{
		Session:  session.New(),
		Buffer:   sketch.NewPathBuffer(),
		Uploader: up,
		Client:   generate.NewHTTPClient(gen.URL, "tok", generate.WithPollInterval(5*time.Millisecond)),
		Size:     64,
	}
	srv := NewServer(p)
	api := httptest.NewServer(srv.Handler())
	t.Cleanup(api.Close)
	return srv, api
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func strokeBody() sketch.Stroke {
	return sketch.Stroke{
		Points: []sketch.Point{{X: 1, Y: 1}, {X: 30, Y: 30}},
		Width:  4,
		Color:  "#000000",
		Time:   time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestStrokeLifecycleOverHTTP(t *testing.T) {
	srv, api := newTestServer(t, &stubUploader{})

	var mutations int
	var mu sync.Mutex
	srv.OnMutate = func(sketch.Snapshot) {
		mu.Lock()
		mutations++
		mu.Unlock()
	}

	if resp := postJSON(t, api.URL+"/api/strokes", strokeBody()); resp.StatusCode != http.StatusCreated {
		t.Fatalf("append stroke: status %d", resp.StatusCode)
	}

	resp, err := http.Get(api.URL + "/api/sketch")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var snap sketch.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode sketch: %v", err)
	}
	if len(snap) != 1 {
		t.Fatalf("sketch: got %d strokes want 1", len(snap))
	}

	undoResp := postJSON(t, api.URL+"/api/undo", struct{}{})
	var undo map[string]bool
	if err := json.NewDecoder(undoResp.Body).Decode(&undo); err != nil {
		t.Fatal(err)
	}
	if !undo["undone"] {
		t.Error("undo should report true with one stroke present")
	}

	// Undo on the now-empty buffer reports false without erroring.
	undoResp2 := postJSON(t, api.URL+"/api/undo", struct{}{})
	if err := json.NewDecoder(undoResp2.Body).Decode(&undo); err != nil {
		t.Fatal(err)
	}
	if undo["undone"] {
		t.Error("undo on empty buffer should report false")
	}

	if resp := postJSON(t, api.URL+"/api/clear", struct{}{}); resp.StatusCode != http.StatusNoContent {
		t.Errorf("clear: status %d", resp.StatusCode)
	}

	mu.Lock()
	defer mu.Unlock()
	if mutations != 3 {
		t.Errorf("OnMutate calls: got %d want 3 (append, undo, clear)", mutations)
	}
}

func TestStrokeValidation(t *testing.T) {
	_, api := newTestServer(t, &stubUploader{})

	resp := postJSON(t, api.URL+"/api/strokes", sketch.Stroke{Width: 4})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("pointless stroke: status %d want 400", resp.StatusCode)
	}

	raw, err := http.Post(api.URL+"/api/strokes", "application/json", strings.NewReader("not json"))
	if err != nil {
		t.Fatal(err)
	}
	defer raw.Body.Close()
	if raw.StatusCode != http.StatusBadRequest {
		t.Errorf("garbage body: status %d want 400", raw.StatusCode)
	}
}

func TestSubmitFlowOverHTTP(t *testing.T) {
	_, api := newTestServer(t, &stubUploader{})

	postJSON(t, api.URL+"/api/strokes", strokeBody())

	resp := postJSON(t, api.URL+"/api/submit", map[string]string{"prompt": "a cat"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("submit: status %d", resp.StatusCode)
	}
	var sub struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		t.Fatal(err)
	}
	if sub.ID == "" {
		t.Fatal("submit returned no id")
	}

	// The result eventually completes and shows up in the display list
	// and under its share link.
	deadline := time.Now().Add(5 * time.Second)
	var view session.View
	for time.Now().Before(deadline) {
		r, err := http.Get(api.URL + "/api/results")
		if err != nil {
			t.Fatal(err)
		}
		if err := json.NewDecoder(r.Body).Decode(&view); err != nil {
			t.Fatal(err)
		}
		r.Body.Close()
		if len(view.Results) == 1 && view.Results[0].Status == "complete" {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(view.Results) != 1 || view.Results[0].Status != "complete" {
		t.Fatalf("results never completed: %+v", view)
	}
	if view.Results[0].Output != "https://out.example/final.png" {
		t.Errorf("output: got %q", view.Results[0].Output)
	}

	for _, id := range []string{sub.ID, "pred-1"} {
		r, err := http.Get(api.URL + "/art/" + id)
		if err != nil {
			t.Fatal(err)
		}
		if r.StatusCode != http.StatusOK {
			t.Errorf("art by %q: status %d", id, r.StatusCode)
		}
		r.Body.Close()
	}
}

func TestSubmitValidation(t *testing.T) {
	_, api := newTestServer(t, &stubUploader{})

	// No prompt.
	resp := postJSON(t, api.URL+"/api/submit", map[string]string{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing prompt: status %d want 400", resp.StatusCode)
	}

	// Nothing drawn.
	resp = postJSON(t, api.URL+"/api/submit", map[string]string{"prompt": "a cat"})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("empty sketch: status %d want 422", resp.StatusCode)
	}
}

func TestSubmitErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"transient upload", &upload.NetworkError{Err: fmt.Errorf("reset")}, http.StatusBadGateway},
		{"rejected upload", &upload.RejectedError{Status: 413, Reason: "too large"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, api := newTestServer(t, &stubUploader{err: tc.err})
			postJSON(t, api.URL+"/api/strokes", strokeBody())
			resp := postJSON(t, api.URL+"/api/submit", map[string]string{"prompt": "a cat"})
			if resp.StatusCode != tc.want {
				t.Errorf("status: got %d want %d", resp.StatusCode, tc.want)
			}
		})
	}
}

func TestDuplicateSubmitConflicts(t *testing.T) {
	// Keep the first submission streaming forever so the duplicate
	// arrives while it is still active.
	gen := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]any{"id": "pred-slow", "status": "starting"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"status": "processing"})
	}))
	t.Cleanup(gen.Close)

	p := &session.Pipeline{
		Session:  session.New(),
		Buffer:   sketch.NewPathBuffer(),
		Uploader: &stubUploader{},
		Client:   generate.NewHTTPClient(gen.URL, "tok", generate.WithPollInterval(5*time.Millisecond)),
		Size:     64,
	}
	api := httptest.NewServer(NewServer(p).Handler())
	t.Cleanup(api.Close)

	postJSON(t, api.URL+"/api/strokes", strokeBody())

	if resp := postJSON(t, api.URL+"/api/submit", map[string]string{"prompt": "a cat"}); resp.StatusCode != http.StatusOK {
		t.Fatalf("first submit: status %d", resp.StatusCode)
	}
	resp := postJSON(t, api.URL+"/api/submit", map[string]string{"prompt": "a cat"})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate submit: status %d want 409", resp.StatusCode)
	}
}

func TestHealthz(t *testing.T) {
	_, api := newTestServer(t, &stubUploader{})
	resp, err := http.Get(api.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("healthz: status %d", resp.StatusCode)
	}
}

func TestArtNotFound(t *testing.T) {
	_, api := newTestServer(t, &stubUploader{})
	resp, err := http.Get(api.URL + "/art/unknown")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown art: status %d want 404", resp.StatusCode)
	}
}
