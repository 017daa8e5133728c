package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"img2imgd/internal/engine"
	"img2imgd/pkg/types"
)

type mockService struct {
	mu        sync.Mutex
	status    types.StatusResponse
	params    types.Params
	updateErr error
	accept    bool
	png       []byte
	outErr    error
	resources types.ResourcesResponse
	resErr    error
	runs      []types.RunRecord
	runsErr   error
	gotLimit  int
	ready     bool
	events    chan types.Event
	cancelled bool
}

func (m *mockService) Status() types.StatusResponse { return m.status }
func (m *mockService) Params() types.Params         { return m.params }
func (m *mockService) Ready() bool                  { return m.ready }

func (m *mockService) UpdateParams(u types.ParamsUpdate) (types.Params, error) {
	if m.updateErr != nil {
		return types.Params{}, m.updateErr
	}
	if u.Prompt != nil {
		m.params.Prompt = *u.Prompt
	}
	if u.Steps != nil {
		m.params.Steps = *u.Steps
	}
	return m.params, nil
}

func (m *mockService) Generate() types.GenerateResponse {
	if m.accept {
		return types.GenerateResponse{Accepted: true, RunID: "run-1", State: "running"}
	}
	return types.GenerateResponse{State: "running"}
}

func (m *mockService) OutputPNG() ([]byte, error) { return m.png, m.outErr }

func (m *mockService) Resources() (types.ResourcesResponse, error) { return m.resources, m.resErr }

func (m *mockService) Runs(ctx context.Context, limit int) ([]types.RunRecord, error) {
	m.mu.Lock()
	m.gotLimit = limit
	m.mu.Unlock()
	return m.runs, m.runsErr
}

func (m *mockService) Subscribe(buf int) (<-chan types.Event, func()) {
	if m.events == nil {
		m.events = make(chan types.Event, buf)
	}
	return m.events, func() {
		m.mu.Lock()
		m.cancelled = true
		m.mu.Unlock()
	}
}

type mockHTTPError struct {
	msg  string
	code int
}

func (e mockHTTPError) Error() string   { return e.msg }
func (e mockHTTPError) StatusCode() int { return e.code }

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestStatusHandler(t *testing.T) {
	svc := &mockService{status: types.StatusResponse{State: "ready", Status: "Generation time: 1.50 sec", TriggerEnabled: true}}
	w := do(t, NewMux(svc), http.MethodGet, "/status", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "application/json") {
		t.Fatalf("content-type=%s", ct)
	}
	var body types.StatusResponse
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("json: %v", err)
	}
	if body.Status != "Generation time: 1.50 sec" || !body.TriggerEnabled {
		t.Fatalf("unexpected body: %+v", body)
	}
}

func TestGetParams(t *testing.T) {
	svc := &mockService{params: types.Params{Prompt: "a cat", Steps: 20}}
	w := do(t, NewMux(svc), http.MethodGet, "/params", "")
	var p types.Params
	if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil || p.Prompt != "a cat" {
		t.Fatalf("params=%+v err=%v", p, err)
	}
}

func TestPutParams(t *testing.T) {
	svc := &mockService{params: types.Params{Prompt: "a cat", Steps: 20}}
	w := do(t, NewMux(svc), http.MethodPut, "/params", `{"steps":30}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var p types.Params
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if p.Steps != 30 || p.Prompt != "a cat" {
		t.Fatalf("params=%+v", p)
	}
}

func TestPutParams_Errors(t *testing.T) {
	h := NewMux(&mockService{})
	if w := do(t, h, http.MethodPut, "/params", "not-json"); w.Code != http.StatusBadRequest {
		t.Fatalf("bad json status=%d", w.Code)
	}
	if w := do(t, h, http.MethodPut, "/params", `{"sampler":"euler"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown field status=%d", w.Code)
	}

	req := httptest.NewRequest(http.MethodPut, "/params", bytes.NewBufferString(`{"steps":3}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("content-type status=%d", w.Code)
	}

	invalid := &mockService{updateErr: errors.Join(engine.ErrInvalidParams, errors.New("steps 0"))}
	w = do(t, NewMux(invalid), http.MethodPut, "/params", `{"steps":0}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("validation status=%d", w.Code)
	}
	var e types.ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &e); err != nil || e.Code != http.StatusBadRequest {
		t.Fatalf("error body=%s", w.Body.String())
	}
}

func TestPutParams_BodyTooLarge(t *testing.T) {
	big := make([]byte, (1<<20)+10)
	for i := range big {
		big[i] = 'a'
	}
	w := do(t, NewMux(&mockService{}), http.MethodPut, "/params", string(big))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for too-large body, got %d", w.Code)
	}
}

func TestGenerate(t *testing.T) {
	w := do(t, NewMux(&mockService{accept: true}), http.MethodPost, "/generate", "")
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d", w.Code)
	}
	var resp types.GenerateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if !resp.Accepted || resp.RunID != "run-1" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestGenerateIgnoredIs409(t *testing.T) {
	w := do(t, NewMux(&mockService{}), http.MethodPost, "/generate", "")
	if w.Code != http.StatusConflict {
		t.Fatalf("status=%d", w.Code)
	}
	var resp types.GenerateResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.Accepted || resp.State != "running" {
		t.Fatalf("resp=%+v", resp)
	}
}

func TestOutputPNG(t *testing.T) {
	svc := &mockService{png: []byte("\x89PNG fake")}
	w := do(t, NewMux(svc), http.MethodGet, "/output.png", "")
	if w.Code != http.StatusOK || w.Header().Get("Content-Type") != "image/png" {
		t.Fatalf("status=%d ct=%s", w.Code, w.Header().Get("Content-Type"))
	}
	if w.Body.String() != "\x89PNG fake" {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestRuns(t *testing.T) {
	svc := &mockService{runs: []types.RunRecord{{ID: "a"}, {ID: "b"}}}
	h := NewMux(svc)
	w := do(t, h, http.MethodGet, "/runs", "")
	var resp types.RunsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || len(resp.Runs) != 2 {
		t.Fatalf("resp=%+v err=%v", resp, err)
	}
	if svc.gotLimit != defaultRunsLimit {
		t.Fatalf("default limit=%d", svc.gotLimit)
	}
	do(t, h, http.MethodGet, "/runs?limit=5000", "")
	if svc.gotLimit != maxRunsLimit {
		t.Fatalf("clamped limit=%d", svc.gotLimit)
	}
	if w := do(t, h, http.MethodGet, "/runs?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("bad limit status=%d", w.Code)
	}
}

func TestResources(t *testing.T) {
	svc := &mockService{resources: types.ResourcesResponse{ResourceDir: "/m", Resources: []types.Resource{{ID: "x.safetensors"}}}}
	w := do(t, NewMux(svc), http.MethodGet, "/resources", "")
	var resp types.ResourcesResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil || len(resp.Resources) != 1 || resp.ResourceDir != "/m" {
		t.Fatalf("resp=%+v err=%v", resp, err)
	}
}

func TestReadyz(t *testing.T) {
	w := do(t, NewMux(&mockService{ready: true}), http.MethodGet, "/readyz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}

func TestReadyz_NotReady(t *testing.T) {
	w := do(t, NewMux(&mockService{}), http.MethodGet, "/readyz", "")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "loading") {
		t.Fatalf("body=%q", w.Body.String())
	}
}

func TestHealthz(t *testing.T) {
	w := do(t, NewMux(&mockService{}), http.MethodGet, "/healthz", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
}
