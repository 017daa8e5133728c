package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"img2imgd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Status() types.StatusResponse
	Params() types.Params
	UpdateParams(u types.ParamsUpdate) (types.Params, error)
	// Generate fires one trigger; a busy or unready pipeline drops it.
	Generate() types.GenerateResponse
	OutputPNG() ([]byte, error)
	Resources() (types.ResourcesResponse, error)
	Runs(ctx context.Context, limit int) ([]types.RunRecord, error)
	// Subscribe streams events until cancel is called.
	Subscribe(buf int) (<-chan types.Event, func())
	Ready() bool
}

// Limits for GET /runs.
const (
	defaultRunsLimit = 20
	maxRunsLimit     = 200
)

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(MetricsMiddleware)
	if settings.CORSEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: settings.CORSOrigins,
			AllowedMethods: settings.CORSMethods,
			AllowedHeaders: settings.CORSHeaders,
			MaxAge:         300,
		}))
	}
	// Compression for JSON endpoints only; PNG is already compressed and
	// event streams must flush unbuffered.
	r.Use(middleware.Compress(5, "application/json"))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Status())
	})

	r.Get("/params", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, svc.Params())
	})

	r.Put("/params", func(w http.ResponseWriter, r *http.Request) {
		ct := r.Header.Get("Content-Type")
		if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
			writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, settings.MaxBodyBytes)
		var u types.ParamsUpdate
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(&u); err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		lvl := requestLogLevel(r)
		start := time.Now()
		p, err := svc.UpdateParams(u)
		if err != nil {
			code := statusFor(err)
			writeJSONError(w, code, err.Error())
			logEnd(r, lvl, "params", code, start, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
		logEnd(r, lvl, "params", http.StatusOK, start, nil)
	})

	r.Post("/generate", func(w http.ResponseWriter, r *http.Request) {
		lvl := requestLogLevel(r)
		start := time.Now()
		logStart(r, lvl, "generate")
		resp := svc.Generate()
		if !resp.Accepted {
			IncrementRefused("trigger_" + resp.State)
			writeJSON(w, http.StatusConflict, resp)
			logEnd(r, lvl, "generate", http.StatusConflict, start, fmt.Errorf("trigger ignored in state %s", resp.State))
			return
		}
		writeJSON(w, http.StatusAccepted, resp)
		logEnd(r, lvl, "generate", http.StatusAccepted, start, nil)
	})

	r.Get("/output.png", func(w http.ResponseWriter, r *http.Request) {
		b, err := svc.OutputPNG()
		if err != nil {
			code := statusFor(err)
			if code == http.StatusConflict {
				IncrementRefused("output_busy")
			}
			writeJSONError(w, code, err.Error())
			logEnd(r, requestLogLevel(r), "output", code, time.Now(), err)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("Content-Length", strconv.Itoa(len(b)))
		w.WriteHeader(http.StatusOK)
		n, _ := w.Write(b)
		outputBytesTotal.Add(float64(n))
	})

	r.Get("/resources", func(w http.ResponseWriter, r *http.Request) {
		res, err := svc.Resources()
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, res)
	})

	r.Get("/runs", func(w http.ResponseWriter, r *http.Request) {
		limit := defaultRunsLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				writeJSONError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxRunsLimit)
		}
		runs, err := svc.Runs(r.Context(), limit)
		if err != nil {
			writeJSONError(w, statusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, types.RunsResponse{Runs: runs})
	})

	r.Get("/events", func(w http.ResponseWriter, r *http.Request) {
		serveEvents(svc, w, r)
	})

	r.Get("/ws", func(w http.ResponseWriter, r *http.Request) {
		serveWS(svc, w, r)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)
	return r
}

// serveEvents streams events as Server-Sent Events until the client goes
// away, the server shuts down, or the service stops publishing.
func serveEvents(svc Service, w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSONError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}
	events, cancel := svc.Subscribe(64)
	defer cancel()
	eventSubscribers.Inc()
	defer eventSubscribers.Dec()

	// Join server base context with request context so shutdown ends streams too.
	ctx, stop := joinContexts(serverBaseCtx, r.Context())
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	out := io.Writer(w)
	lvl := requestLogLevel(r)
	if lvl >= LevelDebug {
		out = io.MultiWriter(w, &loggingLineWriter{})
	}
	start := time.Now()
	logStart(r, lvl, "events")
	// An initial comment commits the headers for clients that wait on them.
	fmt.Fprint(out, ": connected\n\n")
	flusher.Flush()

	tick := time.NewTicker(settings.EventHeartbeat)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			logEnd(r, lvl, "events", http.StatusOK, start, nil)
			return
		case <-tick.C:
			fmt.Fprint(out, ": ping\n\n")
			flusher.Flush()
		case e, ok := <-events:
			if !ok {
				logEnd(r, lvl, "events", http.StatusOK, start, nil)
				return
			}
			if err := writeEvent(out, e); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, e types.Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", e.Name, b)
	return err
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		if zlog != nil {
			zlog.Error().Err(err).Msg("encode response")
		}
	}
}
