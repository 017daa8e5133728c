package e2e

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"img2imgd/internal/config"
	"img2imgd/pkg/types"
)

// TestE2E_SingleFlight409 fires concurrent triggers while a run is blocked:
// exactly one is accepted and the rest are dropped with 409.
func TestE2E_SingleFlight409(t *testing.T) {
	srv, d, fx := newServer(t, nil)
	startAndWaitReady(t, srv, d)
	release := fx.BlockRuns()

	const n = 5
	codes := make(chan int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, _ := httpDo(t, http.MethodPost, srv.URL+"/generate", nil)
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)
	accepted, dropped := 0, 0
	for c := range codes {
		switch c {
		case http.StatusAccepted:
			accepted++
		case http.StatusConflict:
			dropped++
		default:
			t.Fatalf("unexpected status %d", c)
		}
	}
	if accepted != 1 || dropped != n-1 {
		t.Fatalf("accepted=%d dropped=%d", accepted, dropped)
	}
	if st := getStatus(t, srv.URL); st.State != "running" || st.TriggerEnabled || st.DroppedTotal != n-1 {
		t.Fatalf("status while running %+v", st)
	}
	release()
	waitUntil(t, "run done", func() bool { return getStatus(t, srv.URL).RunsTotal == 1 })
	if len(fx.Runs()) != 1 {
		t.Fatalf("engine ran %d times", len(fx.Runs()))
	}
}

// TestE2E_ParamsCapturedAtTrigger changes parameters while a run is in flight;
// the run keeps the values it started with and the next run sees the update.
func TestE2E_ParamsCapturedAtTrigger(t *testing.T) {
	srv, d, fx := newServer(t, nil)
	startAndWaitReady(t, srv, d)

	httpDo(t, http.MethodPut, srv.URL+"/params", []byte(`{"seed":1,"prompt":"first"}`))
	release := fx.BlockRuns()
	if resp, body := httpDo(t, http.MethodPost, srv.URL+"/generate", nil); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("generate %d %s", resp.StatusCode, body)
	}
	if resp, body := httpDo(t, http.MethodPut, srv.URL+"/params", []byte(`{"seed":2,"prompt":"second"}`)); resp.StatusCode != http.StatusOK {
		t.Fatalf("params during run %d %s", resp.StatusCode, body)
	}
	release()
	waitUntil(t, "first run", func() bool { return getStatus(t, srv.URL).RunsTotal == 1 })
	if st := getStatus(t, srv.URL); st.LastParams == nil || st.LastParams.Seed != 1 || st.LastParams.Prompt != "first" {
		t.Fatalf("first run params %+v", st.LastParams)
	}

	httpDo(t, http.MethodPost, srv.URL+"/generate", nil)
	waitUntil(t, "second run", func() bool { return getStatus(t, srv.URL).RunsTotal == 2 })
	runs := fx.Runs()
	if len(runs) != 2 || runs[0].Seed != 1 || runs[1].Seed != 2 || runs[1].Prompt != "second" {
		t.Fatalf("engine saw %+v", runs)
	}
}

// TestE2E_EventStream follows a run through /events.
func TestE2E_EventStream(t *testing.T) {
	srv, d, _ := newServer(t, nil)
	startAndWaitReady(t, srv, d)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("events: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("content-type %q", ct)
	}
	sc := bufio.NewScanner(resp.Body)
	// Wait for the stream to be established before triggering.
	for sc.Scan() {
		if sc.Text() == ": connected" {
			break
		}
	}
	httpDo(t, http.MethodPost, srv.URL+"/generate", nil)

	var seen []string
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var e types.Event
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &e); err != nil {
			t.Fatalf("event json: %v", err)
		}
		seen = append(seen, e.Name)
		if e.Name == "run_done" {
			if s, _ := e.Fields["status"].(string); !strings.HasPrefix(s, "Generation time: ") {
				t.Fatalf("run_done status %q", s)
			}
			break
		}
	}
	if len(seen) < 2 || seen[0] != "run_start" || seen[len(seen)-1] != "run_done" {
		t.Fatalf("events %v", seen)
	}
}

// TestE2E_TeardownWaitsForRun closes the daemon during a run: the run
// completes, is recorded, and the daemon ends disposed.
func TestE2E_TeardownWaitsForRun(t *testing.T) {
	srv, d, fx := newServer(t, nil)
	startAndWaitReady(t, srv, d)
	release := fx.BlockRuns()
	httpDo(t, http.MethodPost, srv.URL+"/generate", nil)

	closed := make(chan error, 1)
	go func() { closed <- d.Close() }()
	select {
	case <-closed:
		t.Fatalf("close returned while a run was in flight")
	case <-time.After(50 * time.Millisecond):
	}
	release()
	if err := <-closed; err != nil {
		t.Fatalf("close: %v", err)
	}
	st := getStatus(t, srv.URL)
	if st.State != "disposed" || st.RunsTotal != 1 || fx.Closes() != 1 {
		t.Fatalf("after close %+v closes=%d", st, fx.Closes())
	}
	if resp, _ := httpDo(t, http.MethodPost, srv.URL+"/generate", nil); resp.StatusCode != http.StatusConflict {
		t.Fatalf("generate after close %d", resp.StatusCode)
	}
}

// TestE2E_Unattended runs the poll loop and watches runs accumulate without
// any trigger from the API.
func TestE2E_Unattended(t *testing.T) {
	srv, d, _ := newServer(t, func(c *config.Config) { c.Mode = "unattended" })
	startAndWaitReady(t, srv, d)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = d.Run(ctx) }()
	waitUntil(t, "unattended runs", func() bool { return getStatus(t, srv.URL).RunsTotal >= 2 })
	if st := getStatus(t, srv.URL); st.Mode != "unattended" || st.FailuresTotal != 0 {
		t.Fatalf("status %+v", st)
	}
	resp, body := httpDo(t, http.MethodGet, srv.URL+"/runs?limit=1", nil)
	var runs types.RunsResponse
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &runs) != nil || len(runs.Runs) != 1 {
		t.Fatalf("/runs %d %s", resp.StatusCode, body)
	}
}
