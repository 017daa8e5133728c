package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServerConfig configures the executor that drives an AUTOMATIC1111-compatible
// web UI over its /sdapi/v1 API.
type ServerConfig struct {
	BaseURL        string
	APIKey         string
	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	Logger         zerolog.Logger
}

type serverExecutor struct {
	baseURL    string
	apiKey     string
	reqTimeout time.Duration
	httpClient *http.Client
	log        zerolog.Logger
}

// NewServerExecutor constructs an HTTP-backed executor.
func NewServerExecutor(cfg ServerConfig) Executor {
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = 5 * time.Second
	}
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   connect,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	// Deadlines come from the request context.
	cli := &http.Client{Transport: tr, Timeout: 0}
	return &serverExecutor{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		reqTimeout: cfg.RequestTimeout,
		httpClient: cli,
		log:        cfg.Logger,
	}
}

type sdModel struct {
	Title     string `json:"title"`
	ModelName string `json:"model_name"`
	Filename  string `json:"filename"`
}

type img2imgRequest struct {
	InitImages        []string       `json:"init_images"`
	Prompt            string         `json:"prompt"`
	DenoisingStrength float64        `json:"denoising_strength"`
	Steps             int            `json:"steps"`
	Seed              int64          `json:"seed"`
	CFGScale          float64        `json:"cfg_scale"`
	Width             int            `json:"width"`
	Height            int            `json:"height"`
	OverrideSettings  map[string]any `json:"override_settings,omitempty"`
}

type img2imgResponse struct {
	Images []string `json:"images"`
}

func (e *serverExecutor) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, e.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}
	resp, err := e.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.New("sd server http error: " + resp.Status + ": " + strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// Load checks that the server is reachable and that it knows a checkpoint
// whose name matches the base name of resourcePath. The compute target is
// decided by the server's own launch flags; only validity is checked here.
func (e *serverExecutor) Load(ctx context.Context, resourcePath string, target ComputeTarget) (Session, error) {
	if !target.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedTarget, target)
	}
	if e.baseURL == "" {
		return nil, ErrDependencyUnavailable("sd server base URL is not configured")
	}
	if e.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.reqTimeout)
		defer cancel()
	}
	var models []sdModel
	if err := e.do(ctx, http.MethodGet, "/sdapi/v1/sd-models", nil, &models); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrDependencyUnavailable("sd server unreachable: " + err.Error())
	}
	want := strings.ToLower(filepath.Base(strings.TrimRight(resourcePath, `/\`)))
	checkpoint, err := pickCheckpoint(models, want)
	if err != nil {
		return nil, err
	}
	e.log.Info().Str("event", "sdserver_load").Str("base_url", e.baseURL).Str("checkpoint", checkpoint).
		Str("target", target.String()).Msg("engine session ready")
	return &serverSession{exec: e, checkpoint: checkpoint}, nil
}

// pickCheckpoint returns the title of the first model whose title, name or
// file matches want. A resource path without a usable name ("", "/")
// selects the first model the server lists.
func pickCheckpoint(models []sdModel, want string) (string, error) {
	if want == "" || want == "." {
		if len(models) == 0 {
			return "", fmt.Errorf("%w: sd server lists no checkpoints", ErrModelNotFound)
		}
		return models[0].Title, nil
	}
	for _, m := range models {
		if strings.Contains(strings.ToLower(m.Title), want) ||
			strings.Contains(strings.ToLower(m.ModelName), want) ||
			strings.Contains(strings.ToLower(filepath.Base(m.Filename)), want) {
			return m.Title, nil
		}
	}
	return "", fmt.Errorf("%w: no checkpoint on server matches %q", ErrModelNotFound, want)
}

type serverSession struct {
	exec       *serverExecutor
	checkpoint string

	mu     sync.Mutex
	closed bool
}

func (s *serverSession) Run(ctx context.Context, source image.Image, p Params) (image.Image, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return nil, ErrSessionClosed
	}
	if s.exec.reqTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.exec.reqTimeout)
		defer cancel()
	}
	png, err := EncodePNG(source)
	if err != nil {
		return nil, err
	}
	req := img2imgRequest{
		InitImages:        []string{base64.StdEncoding.EncodeToString(png)},
		Prompt:            p.Prompt,
		DenoisingStrength: p.Strength,
		Steps:             p.Steps,
		Seed:              p.Seed,
		CFGScale:          p.GuidanceScale,
		Width:             OutputSize,
		Height:            OutputSize,
		OverrideSettings:  map[string]any{"sd_model_checkpoint": s.checkpoint},
	}
	var resp img2imgResponse
	if err := s.exec.do(ctx, http.MethodPost, "/sdapi/v1/img2img", req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Images) == 0 || resp.Images[0] == "" {
		return nil, ErrEmptyResult
	}
	raw := resp.Images[0]
	// Some builds return a data URI.
	if i := strings.Index(raw, ","); strings.HasPrefix(raw, "data:") && i > 0 {
		raw = raw[i+1:]
	}
	b, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageInvalid, err)
	}
	return DecodeImage(b)
}

func (s *serverSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
