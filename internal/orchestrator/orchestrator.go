package orchestrator

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"img2imgd/internal/engine"
	"img2imgd/internal/pipeline"
)

// Orchestrator serializes engine initialization and generation runs over one
// pipeline handle. Triggers are accepted only in Ready; parameters are captured
// when a run starts. All methods are safe for concurrent use.
type Orchestrator struct {
	cfg    Config
	log    zerolog.Logger
	pub    EventPublisher
	params ParamSource
	pipe   *pipeline.Handle

	mu           sync.Mutex
	state        State
	status       string
	initInFlight bool
	runInFlight  bool
	initFailed   bool
	initErr      string
	lastRunID    string
	lastDuration time.Duration
	lastParams   *engine.Params
	lastDone     time.Time
	hasOutput    bool
	runs         uint64
	failures     uint64
	dropped      uint64
	polled       uint64
	startedAt    time.Time

	// outMu guards the contents of the output buffer: the run goroutine
	// holds it exclusively for the whole engine call.
	outMu sync.RWMutex
	// wg tracks the in-flight init or run goroutine.
	wg sync.WaitGroup
	// settled receives a token whenever an init or run finishes.
	settled chan struct{}
	done    chan struct{}

	closeOnce sync.Once
	closeErr  error
}

// New constructs an Orchestrator and, unless cfg.DeferStart is set, begins
// loading the engine immediately.
func New(cfg Config) *Orchestrator {
	if cfg.Mode == "" {
		cfg.Mode = ModeInteractive
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	o := &Orchestrator{
		cfg:       cfg,
		pub:       cfg.Publisher,
		params:    cfg.Params,
		pipe:      pipeline.New(cfg.Executor),
		state:     StateUninitialized,
		settled:   make(chan struct{}, 1),
		done:      make(chan struct{}),
		startedAt: time.Now(),
	}
	if o.pub == nil {
		o.pub = noopPublisher{}
	}
	if o.params == nil {
		o.params = StaticParams(engine.DefaultParams())
	}
	if cfg.Logger != nil {
		o.log = cfg.Logger.With().Str("component", "orchestrator").Logger()
	} else {
		o.log = zerolog.Nop()
	}
	observeState(StateUninitialized)
	if !cfg.DeferStart {
		_ = o.Start()
	}
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// TriggerEnabled reports whether a Trigger call would be accepted now.
func (o *Orchestrator) TriggerEnabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state == StateReady
}

// Mode returns the configured drive mode.
func (o *Orchestrator) Mode() Mode { return o.cfg.Mode }

// EngineConfig returns the configuration passed to the pipeline.
func (o *Orchestrator) EngineConfig() pipeline.EngineConfig { return o.cfg.Engine }

// setState must be called with o.mu held.
func (o *Orchestrator) setState(s State) {
	o.state = s
	observeState(s)
}

func (o *Orchestrator) notifySettled() {
	select {
	case o.settled <- struct{}{}:
	default:
	}
}
