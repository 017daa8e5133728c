package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"img2imgd/internal/config"
	"img2imgd/internal/daemon"
	"img2imgd/internal/engine/enginetest"
	"img2imgd/internal/httpapi"
	"img2imgd/pkg/types"
)

// newServer wires a daemon over the fake engine behind the real HTTP mux and
// starts loading the engine.
func newServer(t *testing.T, mut func(*config.Config)) (*httptest.Server, *daemon.Daemon, *enginetest.Executor) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.ResourceDir = filepath.Join(dir, "models")
	if err := os.MkdirAll(cfg.ResourceDir, 0o755); err != nil {
		t.Fatal(err)
	}
	cfg.ParamsFile = filepath.Join(dir, "params.json")
	cfg.HistoryDB = filepath.Join(dir, "history.db")
	cfg.PollIntervalMs = 5
	if mut != nil {
		mut(&cfg)
	}
	fx := enginetest.New()
	d, err := daemon.New(daemon.Options{Config: cfg, Executor: fx, Source: image.NewRGBA(image.Rect(0, 0, 32, 32))})
	if err != nil {
		t.Fatalf("daemon: %v", err)
	}
	srv := httptest.NewServer(httpapi.NewMux(d))
	t.Cleanup(func() {
		srv.Close()
		_ = d.Close()
	})
	return srv, d, fx
}

func startAndWaitReady(t *testing.T, srv *httptest.Server, d *daemon.Daemon) {
	t.Helper()
	if err := d.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitUntil(t, "ready", func() bool {
		resp, _ := httpDo(t, http.MethodGet, srv.URL+"/readyz", nil)
		return resp.StatusCode == http.StatusOK
	})
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func httpDo(t *testing.T, method, url string, payload []byte) (*http.Response, []byte) {
	t.Helper()
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(context.Background(), method, url, body)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	b, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, b
}

func getStatus(t *testing.T, base string) types.StatusResponse {
	t.Helper()
	resp, body := httpDo(t, http.MethodGet, base+"/status", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("/status %d %s", resp.StatusCode, body)
	}
	var st types.StatusResponse
	if err := json.Unmarshal(body, &st); err != nil {
		t.Fatalf("/status json: %v", err)
	}
	return st
}
